package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"noteline/internal/autosave"
	"noteline/internal/format"
	"noteline/internal/logging"
	"noteline/internal/model"
	"noteline/internal/render"
	"noteline/internal/session"
	"noteline/internal/store"

	"github.com/spf13/cobra"
)

type App struct {
	DBPath     string
	Subject    string
	PrettyJSON bool
	Format     string
	NoColor    bool
	LogLevel   string

	cfg *store.GlobalConfig
	log *logging.Logger
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{})
}

// Execute runs the command tree and closes the log file afterwards. Cobra
// skips post-run hooks when a command fails, so the close happens here.
func Execute(ctx context.Context) error {
	app := &App{}
	return execute(ctx, newRootCmd(app), app)
}

func execute(ctx context.Context, cmd *cobra.Command, app *App) error {
	err := cmd.ExecuteContext(ctx)
	if cerr := app.log.Close(); err == nil {
		err = cerr
	}
	return err
}

func newRootCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "noteline",
		Short:        "Outline notes stored in SQLite",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a subject and make it current
  noteline subjects create Biology --use

  # Add lines (index 0 is the top of the document)
  noteline doc insert 0 "# Cells"
  noteline doc insert 1 "Everything is made of them."

  # Read it back
  noteline doc show --format md

  # Interactive editing with autosave and undo
  noteline edit
  noteline tui
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := store.LoadConfig()
		if err != nil {
			return writeErr(cmd, err)
		}
		app.cfg = cfg

		level := app.LogLevel
		b := logging.New().FromWriter(cmd.ErrOrStderr()).NoColor(app.NoColor)
		if cfg.Log != nil {
			if level == "" {
				level = cfg.Log.Level
			}
			if cfg.Log.File != "" {
				b = b.FromPath(cfg.Log.File).Rotate(cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
			}
		}
		log, err := b.Level(level).Make()
		if err != nil {
			return writeErr(cmd, err)
		}
		app.log = log
		render.ApplyColorProfile(app.NoColor)
		return nil
	}

	cmd.PersistentFlags().StringVar(&app.DBPath, "db", envOr("NOTELINE_DB", ""), "Path to the SQLite database (default: nearest .noteline/ or config dbPath)")
	cmd.PersistentFlags().StringVar(&app.Subject, "subject", envOr("NOTELINE_SUBJECT", ""), "Subject id or name (default: config currentSubject)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("NOTELINE_FORMAT", "json"), "Output format (json|text|md)")
	cmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("NOTELINE_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")

	cmd.AddCommand(newInitCmd(app))
	cmd.AddCommand(newSubjectsCmd(app))
	cmd.AddCommand(newDocCmd(app))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newDoctorCmd(app))
	cmd.AddCommand(newBackupCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	f := app.Format
	if f == "md" {
		f = "json"
	}
	return format.Write(cmd.OutOrStdout(), v, f, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

// dbPath resolves --db, then config dbPath, then workspace discovery.
func (app *App) dbPath() (string, error) {
	if app.DBPath != "" {
		return app.DBPath, nil
	}
	if app.cfg != nil && app.cfg.DBPath != "" {
		return app.cfg.DBPath, nil
	}
	return store.DefaultPath()
}

func (app *App) openStore(ctx context.Context) (*store.Store, error) {
	path, err := app.dbPath()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, path, store.WithLogger(app.log.Logger))
}

var errNoSubject = errors.New("no subject selected (use --subject, or: noteline subjects create <name> --use)")

func (app *App) resolveSubject(ctx context.Context, st *store.Store) (model.Subject, error) {
	ref := strings.TrimSpace(app.Subject)
	if ref == "" && app.cfg != nil && app.cfg.CurrentSubject != 0 {
		ref = strconv.FormatInt(app.cfg.CurrentSubject, 10)
	}
	if ref == "" {
		return model.Subject{}, errNoSubject
	}
	sub, err := st.FindSubject(ctx, ref)
	if errors.Is(err, store.ErrSubjectNotFound) {
		return model.Subject{}, errNotFound("subject", ref)
	}
	return sub, err
}

func (app *App) sessionOptions(notify func(error)) session.Options {
	opts := session.Options{Logger: app.log.Logger, Notify: notify}
	if app.cfg != nil {
		opts.Autosave = autosave.Options{Idle: app.cfg.AutosaveIdle(), Tick: app.cfg.AutosaveTick()}
		opts.UndoDepth = app.cfg.UndoDepth()
	}
	return opts
}

// withSession opens the current subject, runs fn and closes the session,
// which force-saves the document.
func withSession(cmd *cobra.Command, app *App, fn func(ctx context.Context, s *session.Session) error) (model.Subject, error) {
	return runSession(cmd, app, false, fn)
}

// withReadSession is withSession for commands that only read. Nothing is
// written back.
func withReadSession(cmd *cobra.Command, app *App, fn func(ctx context.Context, s *session.Session) error) (model.Subject, error) {
	return runSession(cmd, app, true, fn)
}

func runSession(cmd *cobra.Command, app *App, readOnly bool, fn func(ctx context.Context, s *session.Session) error) (model.Subject, error) {
	ctx := cmdContext(cmd)
	st, err := app.openStore(ctx)
	if err != nil {
		return model.Subject{}, err
	}
	defer st.Close()

	sub, err := app.resolveSubject(ctx, st)
	if err != nil {
		return model.Subject{}, err
	}
	opts := app.sessionOptions(nil)
	opts.ReadOnly = readOnly
	s, err := session.Open(ctx, st, sub.ID, opts)
	if err != nil {
		return sub, err
	}
	if err := fn(ctx, s); err != nil {
		_ = s.Close(ctx)
		return sub, err
	}
	return sub, s.Close(ctx)
}

func parseIndex(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid index: %q", s)
	}
	return n, nil
}
