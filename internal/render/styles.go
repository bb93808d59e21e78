// Package render formats plans and reports for the terminal.
package render

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme colors (Catppuccin Mocha inspired).
var (
	ColorPrimary = lipgloss.AdaptiveColor{Light: "#1e66f5", Dark: "#89b4fa"} // Blue
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#40a02b", Dark: "#a6e3a1"} // Green
	ColorWarning = lipgloss.AdaptiveColor{Light: "#df8e1d", Dark: "#f9e2af"} // Yellow
	ColorError   = lipgloss.AdaptiveColor{Light: "#d20f39", Dark: "#f38ba8"} // Red
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#6c6f85", Dark: "#6c7086"} // Overlay0
	ColorText    = lipgloss.AdaptiveColor{Light: "#4c4f69", Dark: "#cdd6f4"} // Text
)

// Styles are the lipgloss styles used by the renderers.
type Styles struct {
	Title   lipgloss.Style
	Package lipgloss.Style
	Muted   lipgloss.Style

	Changed   lipgloss.Style
	Unchanged lipgloss.Style
	Warning   lipgloss.Style
	Failed    lipgloss.Style
	Skipped   lipgloss.Style

	Output lipgloss.Style
}

// DefaultStyles returns the default styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary),

		Package: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorText),

		Muted: lipgloss.NewStyle().
			Foreground(ColorMuted),

		Changed: lipgloss.NewStyle().
			Foreground(ColorSuccess),

		Unchanged: lipgloss.NewStyle().
			Foreground(ColorMuted),

		Warning: lipgloss.NewStyle().
			Foreground(ColorWarning),

		Failed: lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError),

		Skipped: lipgloss.NewStyle().
			Foreground(ColorWarning).
			Italic(true),

		Output: lipgloss.NewStyle().
			Foreground(ColorMuted).
			PaddingLeft(6),
	}
}

// PlainStyles returns styles that render no escape sequences.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title:     plain,
		Package:   plain,
		Muted:     plain,
		Changed:   plain,
		Unchanged: plain,
		Warning:   plain,
		Failed:    plain,
		Skipped:   plain,
		Output:    plain.PaddingLeft(6),
	}
}
