package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"noteline/internal/store"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

func newSubjectsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "subjects",
		Aliases: []string{"subject"},
		Short:   "Manage subjects (one outline document each)",
	}
	cmd.AddCommand(newSubjectsCreateCmd(app))
	cmd.AddCommand(newSubjectsListCmd(app))
	cmd.AddCommand(newSubjectsUseCmd(app))
	cmd.AddCommand(newSubjectsRenameCmd(app))
	cmd.AddCommand(newSubjectsDeleteCmd(app))
	cmd.AddCommand(newSubjectsExportCmd(app))
	cmd.AddCommand(newSubjectsImportCmd(app))
	return cmd
}

func useSubject(app *App, id int64) error {
	cfg := app.cfg
	if cfg == nil {
		cfg = &store.GlobalConfig{}
	}
	cfg.CurrentSubject = id
	return store.SaveConfig(cfg)
}

func newSubjectsCreateCmd(app *App) *cobra.Command {
	var use bool
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			sub, err := st.CreateSubject(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if use {
				if err := useSubject(app, sub.ID); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{
				"data": sub,
				"meta": map[string]any{"current": use},
			})
		},
	}
	cmd.Flags().BoolVar(&use, "use", false, "Make the new subject current")
	return cmd
}

func newSubjectsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List subjects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			subs, err := st.ListSubjects(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			var current int64
			if app.cfg != nil {
				current = app.cfg.CurrentSubject
			}
			return writeOut(cmd, app, map[string]any{
				"data": subs,
				"meta": map[string]any{"count": len(subs), "currentSubject": current},
			})
		},
	}
}

func newSubjectsUseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "use <id|name>",
		Short: "Set the current subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			app.Subject = args[0]
			sub, err := app.resolveSubject(cmd.Context(), st)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := useSubject(app, sub.ID); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": sub})
		},
	}
}

func newSubjectsRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id|name> <new-name>",
		Short: "Rename a subject",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			app.Subject = args[0]
			sub, err := app.resolveSubject(cmd.Context(), st)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := st.RenameSubject(cmd.Context(), sub.ID, args[1]); err != nil {
				return writeErr(cmd, err)
			}
			sub.Name = args[1]
			return writeOut(cmd, app, map[string]any{"data": sub})
		},
	}
}

func newSubjectsDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|name>",
		Short: "Delete a subject and all of its lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			app.Subject = args[0]
			sub, err := app.resolveSubject(cmd.Context(), st)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := st.DeleteSubject(cmd.Context(), sub.ID); err != nil {
				return writeErr(cmd, err)
			}
			if app.cfg != nil && app.cfg.CurrentSubject == sub.ID {
				if err := useSubject(app, 0); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"deleted": sub.ID}})
		},
	}
}

func newSubjectsExportCmd(app *App) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export [id|name]",
		Short: "Export a subject's stored rows as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			if len(args) == 1 {
				app.Subject = args[0]
			}
			sub, err := app.resolveSubject(cmd.Context(), st)
			if err != nil {
				return writeErr(cmd, err)
			}
			exp, err := st.ExportSubject(cmd.Context(), sub.ID)
			if err != nil {
				return writeErr(cmd, err)
			}
			if out == "" {
				return writeOut(cmd, app, exp)
			}
			b, err := json.MarshalIndent(exp, "", "  ")
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := atomic.WriteFile(out, bytes.NewReader(b)); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": out, "subject": sub.ID}})
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "Write to this file instead of stdout")
	return cmd
}

func newSubjectsImportCmd(app *App) *cobra.Command {
	var name string
	var use bool
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Create a subject from an export file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			var exp store.SubjectExport
			if err := json.Unmarshal(b, &exp); err != nil {
				return writeErr(cmd, fmt.Errorf("parse %s: %w", args[0], err))
			}
			if exp.Version == 0 {
				return writeErr(cmd, errors.New("not a subject export file"))
			}

			st, err := app.openStore(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			sub, err := st.ImportSubject(cmd.Context(), name, exp)
			if err != nil {
				return writeErr(cmd, err)
			}
			if use {
				if err := useSubject(app, sub.ID); err != nil {
					return writeErr(cmd, err)
				}
			}
			return writeOut(cmd, app, map[string]any{"data": sub})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Name for the new subject (default: the exported name)")
	cmd.Flags().BoolVar(&use, "use", false, "Make the imported subject current")
	return cmd
}
