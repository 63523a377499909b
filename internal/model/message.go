package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Mailbox names a collection of messages on the remote store.
type Mailbox string

const (
	MailboxInbox   Mailbox = "inbox"
	MailboxSent    Mailbox = "sent"
	MailboxArchive Mailbox = "archive"
)

// Mailboxes lists every mailbox in navigation order.
var Mailboxes = []Mailbox{MailboxInbox, MailboxSent, MailboxArchive}

// Valid reports whether mb is one of the known mailboxes.
func (mb Mailbox) Valid() bool {
	switch mb {
	case MailboxInbox, MailboxSent, MailboxArchive:
		return true
	}
	return false
}

// Title returns the capitalised mailbox name used for view headers.
func (mb Mailbox) Title() string {
	if mb == "" {
		return ""
	}
	s := string(mb)
	return strings.ToUpper(s[:1]) + s[1:]
}

// ParseMailbox converts a user-supplied name into a Mailbox.
func ParseMailbox(s string) (Mailbox, error) {
	mb := Mailbox(strings.ToLower(strings.TrimSpace(s)))
	if !mb.Valid() {
		return "", fmt.Errorf("unknown mailbox %q", s)
	}
	return mb, nil
}

// MessageID is the opaque identifier the remote store assigns to a message.
// The REST backend encodes it as a JSON number, other backends as a string.
type MessageID string

// UnmarshalJSON accepts both JSON numbers and strings.
func (id *MessageID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = MessageID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("message id: %w", err)
	}
	*id = MessageID(n.String())
	return nil
}

// String returns the identifier as used in request paths.
func (id MessageID) String() string { return string(id) }

// TimestampLayout is the display format backends use for Message.Timestamp.
const TimestampLayout = "Jan 02 2006, 03:04 PM"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp is the inverse of FormatTimestamp. The client never
// compares timestamps; this only serves exports that need a Date header.
func ParseTimestamp(s string) (time.Time, bool) {
	t, err := time.ParseInLocation(TimestampLayout, strings.TrimSpace(s), time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Message is a transient copy of a message held by the remote store.
type Message struct {
	ID         MessageID `json:"id"`
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`

	// Timestamp is already formatted for display by the backend.
	Timestamp string `json:"timestamp"`

	Read     bool `json:"read"`
	Archived bool `json:"archived"`
}

// Patch is a partial update. Nil fields are left untouched remotely.
type Patch struct {
	Read     *bool `json:"read,omitempty"`
	Archived *bool `json:"archived,omitempty"`
}

// MarkRead returns a patch that only sets the read flag.
func MarkRead() Patch {
	read := true
	return Patch{Read: &read}
}

// SetArchived returns a patch that only sets the archived flag.
func SetArchived(archived bool) Patch {
	return Patch{Archived: &archived}
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Read == nil && p.Archived == nil
}

// Apply returns a copy of msg with the patch applied.
func (p Patch) Apply(msg Message) Message {
	if p.Read != nil {
		msg.Read = *p.Read
	}
	if p.Archived != nil {
		msg.Archived = *p.Archived
	}
	return msg
}

// ComposeFields are the values of the compose form. Recipients is a single
// comma or space delimited string; the backend splits it.
type ComposeFields struct {
	Recipients string `json:"recipients"`
	Subject    string `json:"subject"`
	Body       string `json:"body"`
}

// RecipientList splits Recipients on commas and whitespace.
func (f ComposeFields) RecipientList() []string {
	return strings.FieldsFunc(f.Recipients, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n'
	})
}

// CreateResult is the backend's answer to a create request: either a
// success acknowledgment or an error payload that must be shown to the user.
type CreateResult struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK reports whether the backend accepted the message.
func (r CreateResult) OK() bool {
	return r.Error == ""
}
