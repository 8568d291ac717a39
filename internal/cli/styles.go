// Package cli provides the interactive terminal categorization used by
// one-shot conversion, with lipgloss-styled output.
package cli

import "github.com/charmbracelet/lipgloss"

var (
	// ItemStyle highlights the receipt item being categorized.
	ItemStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFE66D"))

	// SuggestionStyle marks the learned top suggestion.
	SuggestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	// ErrorStyle formats failure messages.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	// SubtleStyle formats hints and secondary text.
	SubtleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)
