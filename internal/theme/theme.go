package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
	ColorUnread  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#FFFFFF"}
	ColorReadBg  = lipgloss.AdaptiveColor{Dark: "#343A40", Light: "#EDF2F7"}
	ColorOnLight = lipgloss.AdaptiveColor{Dark: "#CED4DA", Light: "#4A5568"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// StatusErrorStyle replaces the status bar hints with an error.
var StatusErrorStyle = StatusBarStyle.
	Bold(true).
	Foreground(ColorRed)

// DetailPanelStyle wraps the detail view content area.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// UnreadRowStyle is the white background used for unread messages.
var UnreadRowStyle = lipgloss.NewStyle().
	PaddingLeft(2).
	Bold(true).
	Foreground(lipgloss.Color("#1A202C")).
	Background(ColorUnread)

// ReadRowStyle is the light background used for read messages.
var ReadRowStyle = lipgloss.NewStyle().
	PaddingLeft(2).
	Foreground(ColorOnLight).
	Background(ColorReadBg)

// SelectedMarkerStyle draws the cursor in front of the focused row.
var SelectedMarkerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// ErrorStyle is used for inline error lines.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// MutedStyle is used for timestamps and placeholder text.
var MutedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// ControlStyle renders an unfocused detail control.
var ControlStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// FocusedControlStyle renders the focused detail control.
var FocusedControlStyle = ControlStyle.
	Bold(true).
	Foreground(ColorBlue).
	BorderForeground(ColorBlue)
