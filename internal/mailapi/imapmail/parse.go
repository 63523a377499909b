package imapmail

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailclient/internal/model"
)

// formatID builds the opaque message id "<mailbox>:<uid>".
func formatID(mb model.Mailbox, uid uint32) model.MessageID {
	return model.MessageID(string(mb) + ":" + strconv.FormatUint(uint64(uid), 10))
}

// parseID is the inverse of formatID.
func parseID(id model.MessageID) (model.Mailbox, uint32, error) {
	name, rawUID, ok := strings.Cut(id.String(), ":")
	if !ok {
		return "", 0, fmt.Errorf("invalid message id %q", id)
	}

	mb, err := model.ParseMailbox(name)
	if err != nil {
		return "", 0, fmt.Errorf("invalid message id %q: %w", id, err)
	}

	uid, err := strconv.ParseUint(rawUID, 10, 32)
	if err != nil || uid == 0 {
		return "", 0, fmt.Errorf("invalid message UID in id %q", id)
	}

	return mb, uint32(uid), nil
}

// toMessage converts a parsed IMAP message found in mb into the shared
// model. The archive flag is implied by the folder.
func toMessage(mb model.Mailbox, p ParsedMessage) model.Message {
	read := false
	for _, flag := range p.Envelope.Flags {
		if flag == `\Seen` {
			read = true
			break
		}
	}

	body := p.TextBody
	if body == "" && p.HTMLBody != "" {
		body = stripHTML(p.HTMLBody)
	}

	recipients := p.Envelope.To
	if recipients == nil {
		recipients = []string{}
	}

	return model.Message{
		ID:         formatID(mb, p.Envelope.UID),
		Sender:     p.Envelope.From,
		Recipients: recipients,
		Subject:    p.Envelope.Subject,
		Body:       strings.TrimRight(strings.ReplaceAll(body, "\r\n", "\n"), "\n"),
		Timestamp:  model.FormatTimestamp(p.Envelope.Date.Local()),
		Read:       read,
		Archived:   mb == model.MailboxArchive,
	}
}

// parseMIMEBody parses a raw RFC 5322 message using go-message and
// extracts the text/plain and text/html bodies.
func parseMIMEBody(raw []byte) (textBody string, htmlBody string) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// If parsing fails, treat the whole thing as plain text.
		return string(raw), ""
	}
	defer mr.Close()

	for {
		part, err := mr.NextPart()
		if err != nil {
			break
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		contentType, _, _ := h.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain") && textBody == "":
			textBody = string(body)
		case strings.HasPrefix(contentType, "text/html") && htmlBody == "":
			htmlBody = string(body)
		}
	}

	return textBody, htmlBody
}

// htmlTagPattern matches HTML tags for stripping.
var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes HTML tags and decodes common entities, providing a
// basic plain-text rendering.
func stripHTML(html string) string {
	if html == "" {
		return ""
	}

	result := html
	for _, tag := range []string{
		"<br>", "<br/>", "<br />", "</p>", "</div>", "</li>",
	} {
		result = strings.ReplaceAll(result, tag, "\n")
	}

	result = htmlTagPattern.ReplaceAllString(result, "")

	replacer := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	result = replacer.Replace(result)

	for strings.Contains(result, "\n\n\n") {
		result = strings.ReplaceAll(result, "\n\n\n", "\n\n")
	}

	return strings.TrimSpace(result)
}
