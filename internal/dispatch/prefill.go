package dispatch

import (
	"fmt"
	"strings"

	"github.com/nhle/mailclient/internal/model"
)

// replyPrefix is added to reply subjects once.
const replyPrefix = "Re: "

// ReplyPrefill derives the compose fields for a reply to msg: the sender
// becomes the recipient, the subject gains a single "Re: " and the body
// starts with a quoted header line followed by room for the reply.
func ReplyPrefill(msg model.Message) model.ComposeFields {
	subject := msg.Subject
	if !strings.HasPrefix(strings.ToLower(subject), strings.ToLower(replyPrefix)) {
		subject = replyPrefix + subject
	}

	body := fmt.Sprintf("On %s %s wrote: %s\n\n\n", msg.Timestamp, msg.Sender, msg.Subject)

	return model.ComposeFields{
		Recipients: msg.Sender,
		Subject:    subject,
		Body:       body,
	}
}
