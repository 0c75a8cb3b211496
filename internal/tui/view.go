package tui

import (
	"fmt"
	"strings"

	"noteline/internal/outline"
	"noteline/internal/session"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#1F5FBF", Dark: "#7AA2F7"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6B6B6B", Dark: "#8A8A8A"}
	colorDirty  = lipgloss.AdaptiveColor{Light: "#B35900", Dark: "#E0AF68"}
	colorCursor = lipgloss.AdaptiveColor{Light: "#E4E9F2", Dark: "#2A2F3A"}

	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleMuted  = lipgloss.NewStyle().Foreground(colorMuted)
	styleDirty  = lipgloss.NewStyle().Foreground(colorDirty)
	styleCursor = lipgloss.NewStyle().Background(colorCursor)
)

func styleHeading(level int) lipgloss.Style {
	s := lipgloss.NewStyle().Foreground(colorAccent)
	if level <= 2 {
		s = s.Bold(true)
	}
	return s
}

func (m model) View() string {
	var b strings.Builder

	pending := ""
	if m.s.Pending() {
		pending = styleDirty.Render(" ●")
	}
	b.WriteString(styleTitle.Render(m.title) + pending)
	b.WriteByte('\n')

	rows := m.rows()
	h := m.bodyHeight()
	for i := m.offset; i < m.offset+h; i++ {
		if i < len(rows) {
			b.WriteString(rows[i])
		}
		b.WriteByte('\n')
	}

	footer := m.status
	if footer == "" {
		switch m.mode {
		case modeNormal:
			footer = "j/k move  enter edit  o/O new line  d delete  J/K reorder  u undo  ctrl+r redo  w save  q quit"
		default:
			footer = "enter commit  esc cancel"
		}
	}
	b.WriteString(styleMuted.Render(xansi.Truncate(footer, m.width, "…")))
	return b.String()
}

// rows renders every line, with the input spliced in while editing.
func (m model) rows() []string {
	rows := make([]string, 0, len(m.lines)+1)
	for i, l := range m.lines {
		if m.mode == modeInsert && i == m.insertAt {
			rows = append(rows, m.inputRow(m.indentFor(i)))
		}
		if m.mode == modeEdit && i == m.cursor {
			rows = append(rows, m.inputRow(m.indent[l.ID]))
			continue
		}
		rows = append(rows, m.lineRow(l, i == m.cursor && m.mode == modeNormal))
	}
	if m.mode == modeInsert && m.insertAt >= len(m.lines) {
		rows = append(rows, m.inputRow(m.indentFor(len(m.lines))))
	}
	return rows
}

// indentFor guesses the depth of a line inserted at index.
func (m model) indentFor(index int) int {
	if index == 0 || len(m.lines) == 0 {
		return 0
	}
	above := m.lines[index-1]
	if above.Kind == outline.KindHeading {
		return m.indent[above.ID] + 1
	}
	return m.indent[above.ID]
}

func (m model) inputRow(depth int) string {
	return "› " + strings.Repeat("  ", depth) + m.input.View()
}

func (m model) lineRow(l session.Line, selected bool) string {
	mark := "  "
	if selected {
		mark = "› "
	}
	text := l.Content
	switch l.Kind {
	case outline.KindHeading:
		text = styleHeading(l.Level).Render(text)
	case outline.KindImage:
		text = styleMuted.Render(fmt.Sprintf("[image] %s %s", l.Content, l.ImageURL))
	default:
		if text == "" && selected {
			text = styleMuted.Render("Type something…")
		}
	}
	dirty := " "
	if l.Dirty {
		dirty = styleDirty.Render("*")
	}
	row := mark + strings.Repeat("  ", m.indent[l.ID]) + text + " " + dirty
	row = xansi.Truncate(row, m.width, "…")
	if selected {
		row = styleCursor.Render(row)
	}
	return row
}
