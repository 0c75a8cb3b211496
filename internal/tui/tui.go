// Package tui is a full-screen editor for one subject's document.
package tui

import (
	"context"

	"noteline/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

// Run blocks until the user quits. The caller closes the session.
func Run(ctx context.Context, s *session.Session, title string) error {
	m := newModel(ctx, s, title)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
