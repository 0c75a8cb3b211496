// Package render turns documents into terminal output and HTML.
package render

import (
	"bytes"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdRendererMu sync.Mutex
	// Keyed by style and wrap width. WithAutoStyle is avoided since it can
	// block on terminal queries.
	mdRenderers = map[string]*glamour.TermRenderer{}
)

// Terminal renders markdown for a terminal of the given width. On renderer
// errors the source is returned unchanged.
func Terminal(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	if width < 10 {
		width = 10
	}

	style := MarkdownStyle()
	key := style + ":" + strconv.Itoa(width)
	mdRendererMu.Lock()
	r := mdRenderers[key]
	mdRendererMu.Unlock()

	if r == nil {
		rr, err := glamour.NewTermRenderer(
			glamour.WithStyles(styleConfig(style)),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		mdRendererMu.Lock()
		if existing := mdRenderers[key]; existing != nil {
			r = existing
		} else {
			mdRenderers[key] = rr
			r = rr
		}
		mdRendererMu.Unlock()
	}

	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func styleConfig(name string) ansi.StyleConfig {
	switch name {
	case "notty":
		return styles.NoTTYStyleConfig
	case "light":
		return styles.LightStyleConfig
	default:
		return styles.DarkStyleConfig
	}
}

// MarkdownStyle picks dark, light or notty from NOTELINE_MD_STYLE, the
// COLORFGBG hint and finally Lip Gloss's background detection.
func MarkdownStyle() string {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("NOTELINE_MD_STYLE"))) {
	case "light":
		return "light"
	case "dark":
		return "dark"
	case "notty", "plain":
		return "notty"
	}
	if colorDisabled() {
		return "notty"
	}
	// COLORFGBG is "fg;bg"; xterm colors 7-15 are light.
	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			if bg >= 7 {
				return "light"
			}
			return "dark"
		}
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}

var htmlRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		// raw HTML in notes is escaped, never passed through
		html.WithHardWraps(),
	),
)

// HTML converts markdown to an HTML fragment.
func HTML(md string) (string, error) {
	md = strings.TrimSpace(md)
	if md == "" {
		return "", nil
	}
	var b bytes.Buffer
	if err := htmlRenderer.Convert([]byte(md), &b); err != nil {
		return "", err
	}
	return b.String(), nil
}
