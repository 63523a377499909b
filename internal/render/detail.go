package render

import (
	"strings"

	"github.com/nhle/mailclient/internal/model"
)

// Control is an activatable button in the detail view.
type Control struct {
	Label     string
	Action    model.Action
	MessageID model.MessageID
}

// Target is the action attached to the control.
func (c Control) Target() model.Target {
	return model.Target{Action: c.Action, MessageID: c.MessageID}
}

// DetailView is the rendered form of a single message.
type DetailView struct {
	Sender     string
	Recipients string
	Subject    string
	Timestamp  string
	Body       string
	Controls   []Control
}

// Detail renders msg as seen from mailbox mb. Inbox and archive offer
// exactly one of Archive or Unarchive; sent offers neither. Reply is always
// present.
func Detail(msg model.Message, mb model.Mailbox) DetailView {
	view := DetailView{
		Sender:     msg.Sender,
		Recipients: strings.Join(msg.Recipients, ", "),
		Subject:    msg.Subject,
		Timestamp:  msg.Timestamp,
		Body:       msg.Body,
	}

	if mb == model.MailboxInbox || mb == model.MailboxArchive {
		if msg.Archived {
			view.Controls = append(view.Controls, Control{
				Label: "Unarchive", Action: model.ActionUnarchive, MessageID: msg.ID,
			})
		} else {
			view.Controls = append(view.Controls, Control{
				Label: "Archive", Action: model.ActionArchive, MessageID: msg.ID,
			})
		}
	}

	view.Controls = append(view.Controls, Control{
		Label: "Reply", Action: model.ActionReply, MessageID: msg.ID,
	})

	return view
}

// Has reports whether the view offers a control for action.
func (v DetailView) Has(action model.Action) bool {
	for _, c := range v.Controls {
		if c.Action == action {
			return true
		}
	}
	return false
}
