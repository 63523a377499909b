// Package render turns messages into view models. Everything here is a pure
// function of its input; styling happens in the ui packages.
package render

import "github.com/nhle/mailclient/internal/model"

// PreviewLength is the number of body characters shown in a list row.
const PreviewLength = 20

// Ellipsis marks a truncated preview.
const Ellipsis = "…"

// Background is the visual cue distinguishing read from unread rows.
type Background int

const (
	// BackgroundWhite marks an unread message.
	BackgroundWhite Background = iota
	// BackgroundLight marks a message that has been read.
	BackgroundLight
)

func (b Background) String() string {
	if b == BackgroundLight {
		return "light"
	}
	return "white"
}

// Row is one rendered mailbox entry. Message is the full record the row was
// built from, so opening it needs no lookup.
type Row struct {
	Sender     string
	Preview    string
	Timestamp  string
	Background Background
	Message    model.Message
}

// Target is the action attached to the row.
func (r Row) Target() model.Target {
	msg := r.Message
	return model.Target{
		Action:    model.ActionOpen,
		MessageID: msg.ID,
		Message:   &msg,
	}
}

// MailboxList renders msgs in the order given. An empty input renders
// nothing.
func MailboxList(msgs []model.Message) []Row {
	if len(msgs) == 0 {
		return nil
	}

	rows := make([]Row, 0, len(msgs))
	for _, msg := range msgs {
		rows = append(rows, MailboxRow(msg))
	}
	return rows
}

// MailboxRow renders a single message.
func MailboxRow(msg model.Message) Row {
	bg := BackgroundWhite
	if msg.Read {
		bg = BackgroundLight
	}

	return Row{
		Sender:     msg.Sender,
		Preview:    Preview(msg.Body),
		Timestamp:  msg.Timestamp,
		Background: bg,
		Message:    msg,
	}
}

// Preview returns the first PreviewLength characters of body, followed by
// Ellipsis when anything was cut.
func Preview(body string) string {
	runes := []rune(body)
	if len(runes) <= PreviewLength {
		return body
	}
	return string(runes[:PreviewLength]) + Ellipsis
}

// MailboxHeader is the title shown while a mailbox loads and above its list.
func MailboxHeader(mb model.Mailbox) string {
	return mb.Title()
}
