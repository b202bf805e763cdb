package main

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual styling for the gitgate dashboard.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Muted     lipgloss.Color
}

// DefaultTheme returns the default theme for gitgate-dash.
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("12"),  // Blue
		Secondary: lipgloss.Color("14"),  // Cyan
		Success:   lipgloss.Color("10"),  // Green
		Warning:   lipgloss.Color("11"),  // Yellow
		Error:     lipgloss.Color("9"),   // Red
		Muted:     lipgloss.Color("240"), // Gray
	}
}

// Styles holds the pre-built lipgloss styles shared across panels.
type Styles struct {
	Title    lipgloss.Style
	Col      lipgloss.Style
	Muted    lipgloss.Style
	Good     lipgloss.Style
	Bad      lipgloss.Style
	Warn     lipgloss.Style
	HelpLine lipgloss.Style
}

// DefaultStyles derives the shared styles from a theme.
func DefaultStyles(theme Theme) Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Padding(1, 0, 0, 0),
		Col:      lipgloss.NewStyle().MaxHeight(1),
		Muted:    lipgloss.NewStyle().Foreground(theme.Muted),
		Good:     lipgloss.NewStyle().Foreground(theme.Success),
		Bad:      lipgloss.NewStyle().Foreground(theme.Error),
		Warn:     lipgloss.NewStyle().Foreground(theme.Warning),
		HelpLine: lipgloss.NewStyle().Foreground(theme.Muted).Padding(1, 0, 0, 0),
	}
}
