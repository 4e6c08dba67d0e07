package cmd

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/fchimpan/paddle-pilot/internal/session"
	"github.com/fchimpan/paddle-pilot/internal/tui"
)

func defaultRunTUI(sess *session.Session, rounds, speed int) error {
	p := tea.NewProgram(
		tui.NewModel(sess, rounds, speed),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}
