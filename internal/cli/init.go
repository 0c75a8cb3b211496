package cli

import (
	"github.com/spf13/cobra"
)

func newInitCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the database (in ./.noteline/ unless --db or config dbPath says otherwise)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			wsID, err := st.WorkspaceID(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{
					"dbPath":      st.Path,
					"workspaceId": wsID,
				},
				"_hints": []string{"noteline subjects create <name> --use"},
			})
		},
	}
	return cmd
}
