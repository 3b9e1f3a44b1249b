package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary   = lipgloss.Color("39")  // Cyan
	ColorSecondary = lipgloss.Color("212") // Pink
	ColorSuccess   = lipgloss.Color("82")  // Green
	ColorWarning   = lipgloss.Color("214") // Orange
	ColorError     = lipgloss.Color("196") // Red
	ColorMuted     = lipgloss.Color("245") // Gray
	ColorHighlight = lipgloss.Color("226") // Yellow
)

// Styles for various UI elements
var (
	// Text styles
	Bold      = lipgloss.NewStyle().Bold(true)
	Dim       = lipgloss.NewStyle().Foreground(ColorMuted)
	Highlight = lipgloss.NewStyle().Foreground(ColorHighlight)
	Header    = lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true)

	// Status styles
	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Error   = lipgloss.NewStyle().Foreground(ColorError)

	// Collection and document styles
	CollectionName = lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true)
	DocumentID     = lipgloss.NewStyle().Foreground(ColorPrimary)
	Distance       = lipgloss.NewStyle().Foreground(ColorSuccess)
	DocumentText   = lipgloss.NewStyle().
			PaddingLeft(4)

	// Section styles
	StepTitle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true).
			MarginTop(1)
	Divider = lipgloss.NewStyle().
		Foreground(ColorMuted)
)

// HorizontalRule returns a styled horizontal divider.
func HorizontalRule(width int) string {
	return Divider.Render(strings.Repeat("─", width))
}

// FormatDistance formats a cosine distance for display. Lower is closer.
func FormatDistance(distance float64) string {
	return Distance.Render(fmt.Sprintf("(distance %.4f)", distance))
}

// Label renders a dimmed "key:" prefix followed by a value.
func Label(key string, value any) string {
	return fmt.Sprintf("%s %v", Dim.Render(key+":"), value)
}

// FormatCost formats a dollar amount with enough precision for per-token prices.
func FormatCost(dollars float64) string {
	return fmt.Sprintf("$%.8f", dollars)
}
