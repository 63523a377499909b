package model

// Action is the tag carried by every activatable element. The set is closed.
type Action string

const (
	ActionOpen      Action = "open"
	ActionArchive   Action = "archive"
	ActionUnarchive Action = "unarchive"
	ActionReply     Action = "reply"
)

// Target is the structured attribute attached to an activatable element.
// Message is only set on list rows, which carry their full record.
type Target struct {
	Action    Action
	MessageID MessageID
	Message   *Message
}
