package cli

import (
	"errors"

	"noteline/internal/persist"
	"noteline/internal/store"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var errDoctorIssuesFound = errors.New("doctor found errors")

func newDoctorCmd(app *App) *cobra.Command {
	var fail bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate the stored hierarchy and the loaded documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmdContext(cmd)
			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			report, err := st.Doctor(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}

			// Loading repairs what it can; whatever is left is an engine bug.
			subs, err := st.ListSubjects(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			syncer := persist.New(st, zerolog.Nop())
			for _, sub := range subs {
				doc, err := syncer.Load(ctx, sub.ID)
				if err != nil {
					return writeErr(cmd, err)
				}
				if err := doc.Validate(); err != nil {
					report.Issues = append(report.Issues, store.DoctorIssue{
						Level:     store.DoctorIssueLevelError,
						Code:      "document_invariant",
						Message:   err.Error(),
						SubjectID: sub.ID,
					})
				}
			}

			meta := map[string]any{
				"subjects":  len(subs),
				"issues":    len(report.Issues),
				"hasErrors": report.HasErrors(),
			}
			if err := writeOut(cmd, app, map[string]any{
				"data": report,
				"meta": meta,
			}); err != nil {
				return err
			}

			if fail && report.HasErrors() {
				return errDoctorIssuesFound
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&fail, "fail", false, "Exit with non-zero status if errors are found")
	return cmd
}
