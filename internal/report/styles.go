package report

import "github.com/charmbracelet/lipgloss"

// Colors used in terminal output.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarn      = lipgloss.Color("214") // Orange
	colorDanger    = lipgloss.Color("196") // Red
)

// Title style for section headers.
var Title = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// Heading style for sub-section labels.
var Heading = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	MarginTop(1)

// Label style for field names.
var Label = lipgloss.NewStyle().
	Foreground(colorSecondary)

// Muted style for secondary detail such as IDs and timestamps.
var Muted = lipgloss.NewStyle().
	Foreground(colorMuted)

// KindBadge style for event kind badges.
var KindBadge = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// Body style for wrapped paragraphs.
var Body = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	PaddingLeft(2).
	Width(96)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorDanger).
	Bold(true)

var (
	stable   = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	watch    = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	unstable = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
)

// scoreStyle colors a 0..100 stability score.
func scoreStyle(v float64) lipgloss.Style {
	switch {
	case v >= 70:
		return stable
	case v >= 50:
		return watch
	default:
		return unstable
	}
}

// deltaStyle colors a score change; declines are bad news.
func deltaStyle(d float64) lipgloss.Style {
	switch {
	case d > 0.05:
		return stable
	case d < -0.05:
		return unstable
	default:
		return Muted
	}
}
