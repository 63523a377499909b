// Package export writes messages out as RFC 5322 (.eml) files.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailclient/internal/model"
)

// Header builds the RFC 5322 header for msg. The Date header comes from the
// display timestamp when it parses, otherwise from now.
func Header(msg model.Message, now time.Time) (mail.Header, error) {
	var h mail.Header

	date, ok := model.ParseTimestamp(msg.Timestamp)
	if !ok {
		date = now
	}
	h.SetDate(date)

	if msg.Sender != "" {
		h.SetAddressList("From", []*mail.Address{parseAddress(msg.Sender)})
	}

	to := make([]*mail.Address, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		to = append(to, parseAddress(r))
	}
	if len(to) > 0 {
		h.SetAddressList("To", to)
	}

	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	if err := h.GenerateMessageID(); err != nil {
		return mail.Header{}, fmt.Errorf("generating Message-ID: %w", err)
	}

	return h, nil
}

// WriteEML encodes msg as a single-part text/plain message.
func WriteEML(w io.Writer, msg model.Message) error {
	h, err := Header(msg, time.Now())
	if err != nil {
		return err
	}

	mw, err := mail.CreateSingleInlineWriter(w, h)
	if err != nil {
		return fmt.Errorf("creating message writer: %w", err)
	}

	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	body = strings.ReplaceAll(body, "\n", "\r\n")
	if _, err := io.WriteString(mw, body); err != nil {
		_ = mw.Close()
		return fmt.Errorf("writing message body: %w", err)
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing message writer: %w", err)
	}

	return nil
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Filename returns a filesystem-safe name for msg, e.g. "42-hello-world.eml".
func Filename(msg model.Message) string {
	id := unsafeFilenameChars.ReplaceAllString(msg.ID.String(), "_")

	subject := strings.ToLower(strings.TrimSpace(msg.Subject))
	subject = unsafeFilenameChars.ReplaceAllString(subject, "-")
	subject = strings.Trim(subject, "-")
	if len(subject) > 40 {
		subject = strings.TrimRight(subject[:40], "-")
	}

	if subject == "" {
		return id + ".eml"
	}
	return id + "-" + subject + ".eml"
}

// SaveToDir writes msg to dir and returns the file's path.
func SaveToDir(dir string, msg model.Message) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating export directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, Filename(msg))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}

	if err := WriteEML(f, msg); err != nil {
		_ = f.Close()
		return "", err
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	return path, nil
}

func parseAddress(s string) *mail.Address {
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return &mail.Address{Address: strings.TrimSpace(s)}
	}
	return addr
}
