package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/theme"
)

// Layout splits the terminal into a one-line header, the active view and a
// one-line status bar.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the rows left for the active view. It is never
// negative.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// Header is what the top bar shows.
type Header struct {
	// Mailbox is the mailbox the user last entered.
	Mailbox model.Mailbox
	// Unread is the inbox unread count; zero hides it.
	Unread int
	// Sync describes the unread poller and is right-aligned.
	Sync string
}

// Title returns the left side of the header, e.g. "Mail · Inbox [2 unread]".
func (h Header) Title() string {
	title := "Mail"
	if h.Mailbox != "" {
		title += " · " + h.Mailbox.Title()
	}
	if h.Unread > 0 {
		title += fmt.Sprintf(" [%d unread]", h.Unread)
	}
	return title
}

// RenderHeader renders the top bar.
func (l Layout) RenderHeader(h Header) string {
	title := theme.HeaderStyle.Render(h.Title())
	if h.Sync == "" {
		return l.fill(theme.HeaderStyle, title)
	}

	sync := theme.HeaderStyle.Align(lipgloss.Right).Render(h.Sync)
	gap := max(l.Width-lipgloss.Width(title)-lipgloss.Width(sync), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.HeaderStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, title, filler, sync)
}

// Status is what the bottom bar shows. A non-empty Err replaces the hints.
type Status struct {
	Hints string
	Err   string
}

// RenderStatusBar renders the bottom bar. Errors use the error palette so
// a failed archive or rejected credentials stand out from key hints.
func (l Layout) RenderStatusBar(s Status) string {
	if s.Err != "" {
		return l.fill(theme.StatusErrorStyle, theme.StatusErrorStyle.Render(s.Err))
	}
	return l.fill(theme.StatusBarStyle, theme.StatusBarStyle.Render(s.Hints))
}

// fill pads rendered to the full width with style's background.
func (l Layout) fill(style lipgloss.Style, rendered string) string {
	gap := max(l.Width-lipgloss.Width(rendered), 0)
	if gap == 0 {
		return rendered
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame stacks the header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
