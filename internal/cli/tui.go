package cli

import (
	"context"
	"errors"
	"os"

	"noteline/internal/session"
	"noteline/internal/tui"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var errNotTerminal = errors.New("tui needs an interactive terminal (try: noteline edit)")

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Full-screen editor for the current subject",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdout.Fd()) {
				return writeErr(cmd, errNotTerminal)
			}
			ctx, cancel := context.WithCancel(cmdContext(cmd))
			defer cancel()

			st, err := app.openStore(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()
			sub, err := app.resolveSubject(ctx, st)
			if err != nil {
				return writeErr(cmd, err)
			}
			// Save failures are logged and shown in the status line; the
			// next autosave retries.
			s, err := session.Open(ctx, st, sub.ID, app.sessionOptions(nil))
			if err != nil {
				return writeErr(cmd, err)
			}
			s.Start(ctx)

			err = tui.Run(ctx, s, sub.Name)
			if cerr := s.Close(ctx); cerr != nil && err == nil {
				err = cerr
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}
