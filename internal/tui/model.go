package tui

import (
	"context"
	"fmt"
	"time"

	"noteline/internal/outline"
	"noteline/internal/session"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type mode int

const (
	modeNormal mode = iota
	// modeEdit replaces the text of the line under the cursor.
	modeEdit
	// modeInsert adds new lines at insertAt until esc.
	modeInsert
)

type tickMsg time.Time

const refreshEvery = time.Second

type model struct {
	ctx   context.Context
	s     *session.Session
	title string

	lines  []session.Line
	indent map[outline.LineID]int

	cursor   int
	offset   int
	mode     mode
	insertAt int
	input    textinput.Model

	width  int
	height int
	status string
}

func newModel(ctx context.Context, s *session.Session, title string) model {
	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Type something…"
	in.CharLimit = 0
	m := model{ctx: ctx, s: s, title: title, input: in, width: 80, height: 24}
	m.refresh()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd { return tick() }

// refresh re-reads the document. Autosave runs in the background, so dirty
// markers can change between key presses.
func (m *model) refresh() {
	m.lines = m.s.Lines()
	depth := map[outline.LineID]int{}
	for _, h := range m.s.Headings() {
		depth[h.Line] = h.Depth
	}
	m.indent = map[outline.LineID]int{}
	for _, l := range m.lines {
		switch {
		case l.Kind == outline.KindHeading:
			m.indent[l.ID] = depth[l.ID]
		case l.Category != outline.RootRef:
			m.indent[l.ID] = depth[l.Category] + 1
		}
	}
	if m.cursor >= len(m.lines) {
		m.cursor = len(m.lines) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.scroll()
}

func (m *model) bodyHeight() int {
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

func (m *model) scroll() {
	row := m.cursor
	if m.mode == modeInsert {
		row = m.insertAt
	}
	h := m.bodyHeight()
	if row < m.offset {
		m.offset = row
	}
	if row >= m.offset+h {
		m.offset = row - h + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		m.scroll()
		return m, nil

	case tickMsg:
		if m.mode == modeNormal {
			m.refresh()
		}
		return m, tick()

	case tea.KeyMsg:
		if m.mode == modeNormal {
			return m.updateNormal(msg)
		}
		return m.updateInput(msg)
	}
	return m, nil
}

func (m model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.status = ""
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "down", "j", "ctrl+n":
		if m.cursor < len(m.lines)-1 {
			m.cursor++
		}
	case "up", "k", "ctrl+p":
		if m.cursor > 0 {
			m.cursor--
		}
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		m.cursor = len(m.lines) - 1

	case "enter", "e", "i":
		if len(m.lines) == 0 {
			return m, m.startInsert(0)
		}
		l := m.lines[m.cursor]
		m.mode = modeEdit
		m.input.SetValue(l.Content)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case "o":
		return m, m.startInsert(m.cursor + 1)
	case "O":
		return m, m.startInsert(m.cursor)

	case "d", "delete":
		if _, err := m.s.Remove(m.cursor); err != nil {
			m.status = err.Error()
		}
	case "K", "shift+up":
		if m.cursor > 0 {
			if err := m.s.Move(m.cursor, m.cursor-1, true); err != nil {
				m.status = err.Error()
			} else {
				m.cursor--
			}
		}
	case "J", "shift+down":
		if m.cursor < len(m.lines)-1 {
			if err := m.s.Move(m.cursor, m.cursor+1, false); err != nil {
				m.status = err.Error()
			} else {
				m.cursor++
			}
		}

	case "u", "ctrl+z":
		if !m.s.Undo() {
			m.status = "nothing to undo"
		}
	case "ctrl+r", "ctrl+y":
		if !m.s.Redo() {
			m.status = "nothing to redo"
		}
	case "ctrl+s", "w":
		res, err := m.s.Save(m.ctx)
		if err != nil {
			m.status = "save failed: " + err.Error()
		} else if res.Skipped {
			m.status = "nothing to save"
		} else {
			m.status = fmt.Sprintf("saved (%d writes)", res.Writes())
		}
	}
	m.refresh()
	return m, nil
}

// startInsert opens an input for a new line at index, continuing a list
// when the line above is a list item.
func (m *model) startInsert(index int) tea.Cmd {
	m.mode = modeInsert
	m.insertAt = index
	prefix := ""
	if index > 0 && index-1 < len(m.lines) {
		if above := m.lines[index-1]; above.Kind == outline.KindContent {
			prefix = outline.ParseList(above.Content).Next()
		}
	}
	m.input.SetValue(prefix)
	m.input.CursorEnd()
	m.scroll()
	return m.input.Focus()
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.mode = modeNormal
		m.input.Blur()
		m.refresh()
		return m, nil

	case "enter":
		text := m.input.Value()
		if m.mode == modeEdit {
			if _, err := m.s.SetContent(m.cursor, text); err != nil {
				m.status = err.Error()
			}
			m.mode = modeNormal
			m.input.Blur()
			m.refresh()
			return m, nil
		}
		if _, err := m.s.Insert(m.insertAt, text); err != nil {
			m.status = err.Error()
			m.mode = modeNormal
			m.input.Blur()
			m.refresh()
			return m, nil
		}
		m.cursor = m.insertAt
		m.refresh()
		return m, m.startInsert(m.insertAt + 1)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.s.Activity()
	return m, cmd
}
