package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/chauveaul/jukebox-terminal/transcript"
)

// Styles
var (
	// Colors
	primaryColor  = lipgloss.Color("#1DB954")
	textColor     = lipgloss.Color("#FFFFFF")
	mutedColor    = lipgloss.Color("#B3B3B3")
	accentColor   = lipgloss.Color("#1ED760")
	errorColor    = lipgloss.Color("#FF5F56")
	infoColor     = lipgloss.Color("#4A9EFF")
	liveColor     = lipgloss.Color("#E22134")
	focusedBorder = lipgloss.Color("#1DB954")

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	mutedStyle = lipgloss.NewStyle().Foreground(mutedColor)

	liveStyle = lipgloss.NewStyle().
			Foreground(liveColor).
			Bold(true)

	connectedStyle = lipgloss.NewStyle().Foreground(accentColor)

	transcriptBoxStyle = lipgloss.NewStyle().
				Foreground(textColor).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder()).
				BorderForeground(focusedBorder)

	promptStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	plainStyle   = lipgloss.NewStyle().Foreground(textColor)
	errorStyle   = lipgloss.NewStyle().Foreground(errorColor)
	successStyle = lipgloss.NewStyle().Foreground(accentColor)
	infoStyle    = lipgloss.NewStyle().Foreground(infoColor)
)

func severityStyle(s transcript.Severity) lipgloss.Style {
	switch s {
	case transcript.Error:
		return errorStyle
	case transcript.Success:
		return successStyle
	case transcript.Info:
		return infoStyle
	default:
		return plainStyle
	}
}
