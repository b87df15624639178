package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette for dark terminals.
var (
	ColorPrimary   = lipgloss.Color("255") // White
	ColorSecondary = lipgloss.Color("240") // Dark Gray
	ColorAccent    = lipgloss.Color("39")  // Blue / Cyan
	ColorSuccess   = lipgloss.Color("42")  // Green
	ColorError     = lipgloss.Color("196") // Red
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorDim       = lipgloss.Color("240") // Dimmed text
	ColorSnow      = lipgloss.Color("45")  // Snowflake blue

	ColorHighlightBg = lipgloss.Color("236")
)

var (
	StyleNormal = lipgloss.NewStyle().Foreground(ColorPrimary)
	StyleDimmed = lipgloss.NewStyle().Foreground(ColorDim)
	StyleBold   = lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary)

	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning)

	StyleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorSecondary)

	StyleTitle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).MarginBottom(1)
	StylePrompt = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

	StyleListItemActive = lipgloss.NewStyle().
				Foreground(ColorAccent).
				Bold(true)

	StyleStatusBar = lipgloss.NewStyle().
			Foreground(ColorSecondary)

	StyleHelpKey = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	StyleHelpDesc = lipgloss.NewStyle().
			Foreground(ColorDim)

	// Transcript
	StyleUser    = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
	StyleAnalyst = lipgloss.NewStyle().Foreground(ColorSnow).Bold(true)

	StyleSelected = lipgloss.NewStyle().
			Background(ColorHighlightBg).
			Foreground(ColorAccent).
			Bold(true)

	StyleButton = lipgloss.NewStyle().
			Foreground(ColorAccent)

	StyleCode = lipgloss.NewStyle().Foreground(ColorWarning)

	StyleBadge = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	StyleToast = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Background(ColorError).
			Bold(true).
			Padding(0, 1)
)
