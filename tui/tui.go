package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Start launches the TUI and blocks until the user quits.
func Start(opts Options) error {
	app := NewApp(opts)
	p := tea.NewProgram(app, tea.WithAltScreen())
	app.send = p.Send

	_, err := p.Run()
	app.Close()
	return err
}
