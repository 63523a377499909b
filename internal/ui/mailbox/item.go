package mailbox

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/nhle/mailclient/internal/render"
	"github.com/nhle/mailclient/internal/theme"
)

const (
	senderWidth    = 28
	timestampWidth = 22
	columnGap      = 2
)

// RowItem wraps a render.Row so it can be used in a bubbles/list.
type RowItem struct {
	Row render.Row
}

// FilterValue returns the string used for fuzzy filtering.
func (i RowItem) FilterValue() string {
	return i.Row.Sender + " " + i.Row.Message.Subject
}

// RowDelegate implements list.ItemDelegate for mailbox rows.
type RowDelegate struct{}

// Height returns the number of lines each item takes.
func (d RowDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d RowDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d RowDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single row: sender, preview and timestamp in aligned
// columns on the row's read/unread background.
func (d RowDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ri, ok := item.(RowItem)
	if !ok {
		return
	}

	line := formatColumns(ri.Row, m.Width()-4)

	style := theme.UnreadRowStyle
	if ri.Row.Background == render.BackgroundLight {
		style = theme.ReadRowStyle
	}

	marker := "  "
	if index == m.Index() {
		marker = theme.SelectedMarkerStyle.Render("▌ ")
	}

	fmt.Fprint(w, lipgloss.JoinHorizontal(lipgloss.Top, marker, style.Render(line)))
}

// formatColumns lays out a row in width terminal cells. Display width, not
// byte or rune count, decides the padding so wide characters stay aligned.
func formatColumns(row render.Row, width int) string {
	gap := runewidth.FillRight("", columnGap)

	sender := runewidth.FillRight(
		runewidth.Truncate(row.Sender, senderWidth, render.Ellipsis), senderWidth,
	)
	timestamp := runewidth.FillLeft(
		runewidth.Truncate(row.Timestamp, timestampWidth, render.Ellipsis), timestampWidth,
	)

	previewWidth := width - senderWidth - timestampWidth - 2*columnGap
	if previewWidth < 0 {
		previewWidth = 0
	}
	preview := runewidth.FillRight(
		runewidth.Truncate(row.Preview, previewWidth, render.Ellipsis), previewWidth,
	)

	return sender + gap + preview + gap + timestamp
}
