package tui

import tea "github.com/charmbracelet/bubbletea"

// View is one screen of the application.
type View interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (View, tea.Cmd)

	// View renders the content without the header and status bar.
	View() string

	Name() string

	// ShortHelp returns key bindings for the bottom help bar.
	ShortHelp() []KeyBinding

	SetSize(width, height int)

	// WantsTextInput reports whether printable keys belong to the view
	// rather than to global shortcuts.
	WantsTextInput() bool
}

// KeyBinding describes a keyboard shortcut for the help bar.
type KeyBinding struct {
	Key  string
	Desc string
}
