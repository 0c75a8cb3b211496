package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"noteline/internal/outline"
	"noteline/internal/render"
	"noteline/internal/session"
	"noteline/internal/store"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

func newEditCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "edit",
		Short: "Edit the current subject interactively (autosave, undo/redo)",
		Long: strings.TrimSpace(`
Plain input appends a line. Commands start with ':' (type :help).
Changes are saved after a short idle period and on exit.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			out := cmd.OutOrStdout()
			notify := func(err error) { fmt.Fprintf(cmd.ErrOrStderr(), "save failed (will retry): %v\n", err) }
			s, err := session.Open(ctx, st, sub.ID, app.sessionOptions(notify))
			if err != nil {
				return writeErr(cmd, err)
			}
			s.Start(ctx)

			ed := &editor{s: s, out: out, ctx: ctx}
			fmt.Fprintf(out, "%s (%d lines). Type :help for commands.\n", sub.Name, len(s.Lines()))
			if cmd.InOrStdin() == os.Stdin && liner.TerminalSupported() {
				err = ed.runLiner()
			} else {
				err = ed.runScanner(cmd.InOrStdin())
			}
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

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

var errQuit = errors.New("quit")

type editor struct {
	s   *session.Session
	out io.Writer
	ctx context.Context
}

func historyFile() string {
	dir, err := store.ConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "edit_history")
}

func (e *editor) runLiner() error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	ln.SetCompleter(e.complete)
	if f, err := os.Open(historyFile()); err == nil {
		_, _ = ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if path := historyFile(); path != "" {
			if f, err := os.Create(path); err == nil {
				_, _ = ln.WriteHistory(f)
				f.Close()
			}
		}
	}()

	for {
		line, err := ln.PromptWithSuggestion("> ", e.suggestion(), -1)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}
		if strings.TrimSpace(line) != "" {
			ln.AppendHistory(line)
		}
		if err := e.exec(line); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(e.out, "error:", err)
		}
	}
}

func (e *editor) runScanner(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := e.exec(sc.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(e.out, "error:", err)
		}
	}
	return sc.Err()
}

// suggestion continues a list started on the last line.
func (e *editor) suggestion() string {
	lines := e.s.Lines()
	last := lines[len(lines)-1]
	if last.Kind != outline.KindContent {
		return ""
	}
	return outline.ParseList(last.Content).Next()
}

var editorCommands = []string{
	":help", ":quit", ":write", ":undo", ":redo", ":list", ":tree", ":md",
	":insert", ":set", ":delete", ":move", ":image", ":status",
}

func (e *editor) complete(line string) []string {
	if !strings.HasPrefix(line, ":") {
		return nil
	}
	var out []string
	for _, c := range editorCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

const editorHelp = `text                  append a line
:i|:insert N text     insert before line N
:s|:set N text        replace line N
:d|:delete N          delete line N
:m|:move F T [after]  move line F before (or after) line T
:img|:image N url [caption]
:u|:undo  :r|:redo
:w|:write             save now
:l|:list  :t|:tree  :md
:status
:q|:quit              save and exit`

func (e *editor) exec(input string) error {
	if !strings.HasPrefix(input, ":") {
		if strings.TrimSpace(input) == "" {
			return nil
		}
		return appendLines(e.s, []session.Line{{Content: input}})
	}
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]
	// rest of the input after the n-th argument, spacing preserved
	rest := func(n int) string {
		s := strings.TrimSpace(input)
		for i := 0; i <= n; i++ {
			s = strings.TrimLeft(s, " \t")
			if j := strings.IndexAny(s, " \t"); j >= 0 {
				s = s[j:]
			} else {
				return ""
			}
		}
		return strings.TrimLeft(s, " \t")
	}
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d argument(s); see :help", name, n)
		}
		return nil
	}

	switch name {
	case ":q", ":quit":
		return errQuit
	case ":h", ":help":
		fmt.Fprintln(e.out, editorHelp)
	case ":w", ":write":
		res, err := e.s.Save(e.ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.out, "saved (%d writes)\n", res.Writes())
	case ":u", ":undo":
		if !e.s.Undo() {
			fmt.Fprintln(e.out, "nothing to undo")
		}
	case ":r", ":redo":
		if !e.s.Redo() {
			fmt.Fprintln(e.out, "nothing to redo")
		}
	case ":l", ":list", ":ls":
		fmt.Fprintln(e.out, render.Listing(listingLines(e.s.Lines())))
	case ":t", ":tree":
		fmt.Fprintln(e.out, render.Tree(e.s.Headings()))
	case ":md":
		fmt.Fprintln(e.out, e.s.Markdown())
	case ":status":
		fmt.Fprintf(e.out, "lines=%d pending=%v undo=%v redo=%v\n", len(e.s.Lines()), e.s.Pending(), e.s.CanUndo(), e.s.CanRedo())
	case ":i", ":insert":
		if err := need(1); err != nil {
			return err
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		_, err = e.s.Insert(idx, rest(1))
		return err
	case ":s", ":set":
		if err := need(1); err != nil {
			return err
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		_, err = e.s.SetContent(idx, rest(1))
		return err
	case ":d", ":delete":
		if err := need(1); err != nil {
			return err
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		_, err = e.s.Remove(idx)
		return err
	case ":m", ":move":
		if err := need(2); err != nil {
			return err
		}
		from, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		to, err := parseIndex(args[1])
		if err != nil {
			return err
		}
		after := len(args) > 2 && args[2] == "after"
		return e.s.Move(from, to, !after)
	case ":img", ":image":
		if err := need(2); err != nil {
			return err
		}
		idx, err := parseIndex(args[0])
		if err != nil {
			return err
		}
		_, err = e.s.InsertImage(idx, args[1], rest(2))
		return err
	default:
		return fmt.Errorf("unknown command %s; see :help", name)
	}
	return nil
}
