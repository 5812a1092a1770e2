package tui

import "github.com/charmbracelet/lipgloss"

// Theme colors
const (
	ColorAccent    = "86"  // titles, active tab
	ColorHighlight = "205" // card borders, badges
	ColorDanger    = "196" // errors
	ColorMuted     = "241" // hints, inactive items
	ColorText      = "252"
	ColorPrice     = "42"
)

var Styles = struct {
	Title     lipgloss.Style
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style
	Card      lipgloss.Style
	CardTitle lipgloss.Style
	Price     lipgloss.Style
	Badge     lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	Normal    lipgloss.Style
	Selected  lipgloss.Style
	Hint      lipgloss.Style
}{
	Title: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorAccent)),
	Tab: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorMuted)).
		Padding(0, 2),
	ActiveTab: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorAccent)).
		Underline(true).
		Padding(0, 2),
	Card: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorHighlight)).
		Padding(0, 1).
		Width(34),
	CardTitle: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorText)),
	Price: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorPrice)),
	Badge: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorHighlight)),
	Error: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorDanger)),
	Muted: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorMuted)),
	Normal: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorText)),
	Selected: lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(ColorAccent)),
	Hint: lipgloss.NewStyle().
		Foreground(lipgloss.Color(ColorMuted)).
		Italic(true),
}
