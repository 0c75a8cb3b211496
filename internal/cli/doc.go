package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"noteline/internal/outline"
	"noteline/internal/render"
	"noteline/internal/session"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
)

func newDocCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc",
		Short: "Read and edit the current subject's document",
	}
	cmd.AddCommand(newDocShowCmd(app))
	cmd.AddCommand(newDocTreeCmd(app))
	cmd.AddCommand(newDocInsertCmd(app))
	cmd.AddCommand(newDocImageCmd(app))
	cmd.AddCommand(newDocSetCmd(app))
	cmd.AddCommand(newDocRemoveCmd(app))
	cmd.AddCommand(newDocMoveCmd(app))
	cmd.AddCommand(newDocImportCmd(app))
	cmd.AddCommand(newDocExportCmd(app))
	return cmd
}

func listingLines(lines []session.Line) []render.Line {
	out := make([]render.Line, len(lines))
	for i, l := range lines {
		text := l.Content
		if l.Kind == outline.KindImage {
			text = fmt.Sprintf("![%s](%s)", l.Content, l.ImageURL)
		}
		out[i] = render.Line{
			Index:   l.Index,
			Text:    text,
			Heading: l.Kind == outline.KindHeading,
			Level:   l.Level,
			Dirty:   l.Dirty,
		}
	}
	return out
}

func newDocShowCmd(app *App) *cobra.Command {
	var raw bool
	var width int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the document (--format json|text|md)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				lines []session.Line
				md    string
			)
			sub, err := withReadSession(cmd, app, func(_ context.Context, s *session.Session) error {
				lines = s.Lines()
				md = s.Markdown()
				return nil
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			out := cmd.OutOrStdout()
			switch app.Format {
			case "md":
				if !raw {
					md = render.Terminal(md, width)
				}
				_, err = fmt.Fprintln(out, md)
				return err
			case "text":
				_, err = fmt.Fprintln(out, render.Listing(listingLines(lines)))
				return err
			}
			return writeOut(cmd, app, map[string]any{
				"data": lines,
				"meta": map[string]any{"subject": sub.ID, "count": len(lines)},
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print markdown source instead of rendering it (--format md)")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width for rendered markdown")
	return cmd
}

func newDocTreeCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tree",
		Short: "Show the heading hierarchy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var nodes []outline.HeadingNode
			if _, err := withReadSession(cmd, app, func(_ context.Context, s *session.Session) error {
				nodes = s.Headings()
				return nil
			}); err != nil {
				return writeErr(cmd, err)
			}
			if app.Format == "text" || app.Format == "md" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), render.Tree(nodes))
				return err
			}
			return writeOut(cmd, app, map[string]any{"data": nodes})
		},
	}
}

// lineResult prints one line together with the document after the change.
func lineResult(cmd *cobra.Command, app *App, l session.Line, extra map[string]any) error {
	meta := map[string]any{}
	for k, v := range extra {
		meta[k] = v
	}
	return writeOut(cmd, app, map[string]any{"data": l, "meta": meta})
}

func newDocInsertCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "insert <index> <text>",
		Short: "Insert a line before index (index == length appends)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			text := strings.Join(args[1:], " ")
			var l session.Line
			if _, err := withSession(cmd, app, func(_ context.Context, s *session.Session) error {
				l, err = s.Insert(idx, text)
				return err
			}); err != nil {
				return writeErr(cmd, err)
			}
			return lineResult(cmd, app, l, nil)
		},
	}
}

func newDocImageCmd(app *App) *cobra.Command {
	var caption string
	cmd := &cobra.Command{
		Use:   "image <index> <url>",
		Short: "Insert an image line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			var l session.Line
			if _, err := withSession(cmd, app, func(_ context.Context, s *session.Session) error {
				l, err = s.InsertImage(idx, args[1], caption)
				return err
			}); err != nil {
				return writeErr(cmd, err)
			}
			return lineResult(cmd, app, l, nil)
		},
	}
	cmd.Flags().StringVar(&caption, "caption", "", "Image caption (alt text)")
	return cmd
}

func newDocSetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "set <index> <text>",
		Short: "Replace a line's text (may turn content into a heading or back)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			text := strings.Join(args[1:], " ")
			var (
				tr outline.Transition
				l  session.Line
			)
			if _, err := withSession(cmd, app, func(_ context.Context, s *session.Session) error {
				tr, err = s.SetContent(idx, text)
				if err != nil {
					return err
				}
				l = s.Lines()[idx]
				return nil
			}); err != nil {
				return writeErr(cmd, err)
			}
			return lineResult(cmd, app, l, map[string]any{
				"from":        tr.From,
				"to":          tr.To,
				"kindChanged": tr.Changed(),
			})
		},
	}
}

func newDocRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <index>",
		Aliases: []string{"rm"},
		Short:   "Remove a line (a heading's content moves to the enclosing heading)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := parseIndex(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			var l session.Line
			if _, err := withSession(cmd, app, func(_ context.Context, s *session.Session) error {
				l, err = s.Remove(idx)
				return err
			}); err != nil {
				return writeErr(cmd, err)
			}
			return lineResult(cmd, app, l, map[string]any{"removed": true})
		},
	}
}

func newDocMoveCmd(app *App) *cobra.Command {
	var after bool
	cmd := &cobra.Command{
		Use:   "move <from> <to>",
		Short: "Move a line before (or with --after, after) the line at <to>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseIndex(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			to, err := parseIndex(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			var lines []session.Line
			if _, err := withSession(cmd, app, func(_ context.Context, s *session.Session) error {
				if err := s.Move(from, to, !after); err != nil {
					return err
				}
				lines = s.Lines()
				return nil
			}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": lines})
		},
	}
	cmd.Flags().BoolVar(&after, "after", false, "Place the line after the target instead of before it")
	return cmd
}

// parseMarkdownLines splits markdown source into lines. Lines of the form
// ![caption](url) become image lines.
func parseMarkdownLines(src string) []session.Line {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.TrimRight(src, "\n")
	var out []session.Line
	for _, text := range strings.Split(src, "\n") {
		if caption, url, ok := parseImage(text); ok {
			out = append(out, session.Line{Kind: outline.KindImage, Content: caption, ImageURL: url})
			continue
		}
		out = append(out, session.Line{Content: text})
	}
	return out
}

func parseImage(text string) (caption, url string, ok bool) {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "![") || !strings.HasSuffix(t, ")") {
		return "", "", false
	}
	mid := strings.Index(t, "](")
	if mid < 0 {
		return "", "", false
	}
	url = strings.TrimSpace(t[mid+2 : len(t)-1])
	if url == "" || strings.ContainsAny(url, " \t") {
		return "", "", false
	}
	return t[2:mid], url, true
}

// appendLines adds lines at the end of the document. A document holding only
// the initial empty line is filled from the top instead.
func appendLines(s *session.Session, lines []session.Line) error {
	cur := s.Lines()
	at := len(cur)
	if len(cur) == 1 && cur[0].Content == "" && cur[0].Kind == outline.KindContent && len(lines) > 0 {
		first := lines[0]
		if first.Kind == outline.KindImage {
			if _, err := s.InsertImage(0, first.ImageURL, first.Content); err != nil {
				return err
			}
			if _, err := s.Remove(1); err != nil {
				return err
			}
		} else if _, err := s.SetContent(0, first.Content); err != nil {
			return err
		}
		lines = lines[1:]
		at = 1
	}
	for i, l := range lines {
		var err error
		if l.Kind == outline.KindImage {
			_, err = s.InsertImage(at+i, l.ImageURL, l.Content)
		} else {
			_, err = s.Insert(at+i, l.Content)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func clearDocument(s *session.Session) error {
	for n := len(s.Lines()); n > 0; n-- {
		if _, err := s.Remove(n - 1); err != nil {
			return err
		}
	}
	return nil
}

func newDocImportCmd(app *App) *cobra.Command {
	var replace bool
	cmd := &cobra.Command{
		Use:   "import <file.md>",
		Short: "Append (or with --replace, replace the document with) a markdown file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			lines := parseMarkdownLines(string(b))
			var count int
			if _, err := withSession(cmd, app, func(_ context.Context, s *session.Session) error {
				if replace {
					if err := clearDocument(s); err != nil {
						return err
					}
				}
				if err := appendLines(s, lines); err != nil {
					return err
				}
				count = len(s.Lines())
				return nil
			}); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{
				"data": map[string]any{"imported": len(lines), "lines": count},
			})
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "Replace the document instead of appending")
	return cmd
}

func newDocExportCmd(app *App) *cobra.Command {
	var asHTML bool
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the document as markdown (or --html)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var md string
			if _, err := withReadSession(cmd, app, func(_ context.Context, s *session.Session) error {
				md = s.Markdown()
				return nil
			}); err != nil {
				return writeErr(cmd, err)
			}
			body := md + "\n"
			if asHTML {
				h, err := render.HTML(md)
				if err != nil {
					return writeErr(cmd, err)
				}
				body = h
			}
			if out == "" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			if err := atomic.WriteFile(out, bytes.NewReader([]byte(body))); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"path": out, "bytes": len(body)}})
		},
	}
	cmd.Flags().BoolVar(&asHTML, "html", false, "Render HTML instead of markdown")
	cmd.Flags().StringVar(&out, "out", "", "Write to this file instead of stdout")
	return cmd
}
