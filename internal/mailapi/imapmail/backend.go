// Package imapmail implements mailapi.Client on top of an IMAP mailbox and
// an SMTP submission server.
package imapmail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/gologme/log"

	"github.com/nhle/mailclient/internal/export"
	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
)

// folderStore is the subset of IMAPClient the backend depends on.
type folderStore interface {
	FetchFolder(ctx context.Context, folder string) ([]ParsedMessage, error)
	FetchMessage(ctx context.Context, folder string, uid uint32) (*ParsedMessage, error)
	SetFlags(ctx context.Context, folder string, uid uint32, flags []imap.Flag, add bool) error
	Move(ctx context.Context, folder string, uid uint32, dest string) error
	Append(ctx context.Context, folder string, raw []byte, flags []imap.Flag, date time.Time) error
}

type sendFunc func(ctx context.Context, cfg SMTPConfig, from string, to []string, raw []byte) error

// Config holds everything needed to build a Backend.
type Config struct {
	IMAPHost string
	IMAPPort string
	SMTPHost string
	SMTPPort string
	Username string
	Password string
	TLS      bool

	// Folders maps each mailbox to its IMAP folder name.
	Folders map[model.Mailbox]string

	Logger *log.Logger
}

// Backend implements mailapi.Client for IMAP/SMTP accounts. Message ids
// have the form "<mailbox>:<uid>".
type Backend struct {
	store    folderStore
	send     sendFunc
	smtp     SMTPConfig
	folders  map[model.Mailbox]string
	username string
	now      func() time.Time
	log      *log.Logger

	mu sync.Mutex
	// moved remembers where archive moves put a message, keyed by the id
	// it had before the move. A move assigns a new UID, so the message is
	// found again by its Message-ID header.
	moved map[model.MessageID]relocation
}

type relocation struct {
	mailbox   model.Mailbox
	messageID string
}

var _ mailapi.Client = (*Backend)(nil)

// New creates a backend for the account described by cfg.
func New(cfg Config) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Backend{
		store: NewIMAPClient(
			cfg.IMAPHost, cfg.IMAPPort, cfg.Username, cfg.Password, cfg.TLS,
		),
		send: sendMail,
		smtp: SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
			Password: cfg.Password,
			TLS:      cfg.TLS,
		},
		folders:  cfg.Folders,
		username: cfg.Username,
		now:      time.Now,
		log:      logger,
	}
}

func (b *Backend) folder(mb model.Mailbox) (string, error) {
	folder, ok := b.folders[mb]
	if !ok || folder == "" {
		return "", fmt.Errorf("no IMAP folder configured for mailbox %q", mb)
	}
	return folder, nil
}

// ListMailbox returns the messages in mb's folder, newest first.
func (b *Backend) ListMailbox(
	ctx context.Context, mb model.Mailbox,
) ([]model.Message, error) {
	op := "list " + string(mb)

	folder, err := b.folder(mb)
	if err != nil {
		return nil, err
	}

	parsed, err := b.store.FetchFolder(ctx, folder)
	if err != nil {
		return nil, wrap(op, err)
	}

	msgs := make([]model.Message, 0, len(parsed))
	for _, p := range parsed {
		msgs = append(msgs, toMessage(mb, p))
	}

	return msgs, nil
}

// GetMessage fetches one message without changing its flags.
func (b *Backend) GetMessage(
	ctx context.Context, id model.MessageID,
) (model.Message, error) {
	op := "get message " + id.String()

	loc, err := b.locate(ctx, op, id)
	if err != nil {
		return model.Message{}, err
	}

	parsed, err := b.store.FetchMessage(ctx, loc.folder, loc.uid)
	if err != nil {
		return model.Message{}, wrap(op, err)
	}

	return toMessage(loc.mailbox, *parsed), nil
}

// location is where a message currently lives.
type location struct {
	mailbox   model.Mailbox
	folder    string
	uid       uint32
	relocated bool
}

// locate resolves id to the message's current folder and UID, following
// earlier archive moves made through this backend.
func (b *Backend) locate(
	ctx context.Context, op string, id model.MessageID,
) (location, error) {
	mb, uid, err := parseID(id)
	if err != nil {
		return location{}, &mailapi.NetworkError{Op: op, Malformed: true, Err: err}
	}

	b.mu.Lock()
	rel, ok := b.moved[id]
	b.mu.Unlock()

	if !ok {
		folder, err := b.folder(mb)
		if err != nil {
			return location{}, err
		}
		return location{mailbox: mb, folder: folder, uid: uid}, nil
	}

	folder, err := b.folder(rel.mailbox)
	if err != nil {
		return location{}, err
	}

	parsed, err := b.store.FetchFolder(ctx, folder)
	if err != nil {
		return location{}, wrap(op, err)
	}
	for _, p := range parsed {
		if p.Envelope.MessageID == rel.messageID {
			return location{
				mailbox:   rel.mailbox,
				folder:    folder,
				uid:       p.Envelope.UID,
				relocated: true,
			}, nil
		}
	}

	return location{}, &mailapi.NetworkError{
		Op:  op,
		Err: fmt.Errorf("message %s is no longer in %s", rel.messageID, folder),
	}
}

// UpdateMessage maps read to the \Seen flag and archived to a move between
// the inbox and archive folders. The read change is applied first because
// a move changes the message's UID.
func (b *Backend) UpdateMessage(
	ctx context.Context, id model.MessageID, patch model.Patch,
) error {
	op := "update message " + id.String()

	loc, err := b.locate(ctx, op, id)
	if err != nil {
		return err
	}

	if patch.Read != nil {
		if err := b.store.SetFlags(ctx, loc.folder, loc.uid, []imap.Flag{imap.FlagSeen}, *patch.Read); err != nil {
			return wrap(op, err)
		}
	}

	if patch.Archived == nil {
		return nil
	}

	if loc.mailbox == model.MailboxSent {
		return fmt.Errorf("%s: sent messages cannot be archived", op)
	}

	dest := model.MailboxInbox
	if *patch.Archived {
		dest = model.MailboxArchive
	}

	if dest == loc.mailbox && loc.relocated {
		return nil
	}

	// The UID may be gone if another client moved the message.
	current, err := b.store.FetchMessage(ctx, loc.folder, loc.uid)
	if err != nil {
		return wrap(op, err)
	}
	if dest == loc.mailbox {
		return nil
	}

	destFolder, err := b.folder(dest)
	if err != nil {
		return err
	}

	if err := b.store.Move(ctx, loc.folder, loc.uid, destFolder); err != nil {
		return wrap(op, err)
	}

	b.remember(id, dest, current.Envelope.MessageID)
	b.log.Debugf("moved %s from %s to %s", id, loc.folder, destFolder)
	return nil
}

// remember records that the message known as id now lives in mb.
func (b *Backend) remember(id model.MessageID, mb model.Mailbox, messageID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if messageID == "" {
		b.log.Warnf("message %s has no Message-ID; later updates by this id will fail", id)
		delete(b.moved, id)
		return
	}
	if b.moved == nil {
		b.moved = make(map[model.MessageID]relocation)
	}
	b.moved[id] = relocation{mailbox: mb, messageID: messageID}
}

// CreateMessage sends the message over SMTP and files a copy in the sent
// folder. A permanent recipient rejection is reported in the result.
func (b *Backend) CreateMessage(
	ctx context.Context, fields model.ComposeFields,
) (model.CreateResult, error) {
	op := "create message"

	recipients := fields.RecipientList()
	if len(recipients) == 0 {
		return model.CreateResult{}, mailapi.ErrNoRecipients
	}

	now := b.now()
	msg := model.Message{
		Sender:     b.username,
		Recipients: recipients,
		Subject:    fields.Subject,
		Body:       fields.Body,
		Timestamp:  model.FormatTimestamp(now),
	}

	var buf bytes.Buffer
	if err := export.WriteEML(&buf, msg); err != nil {
		return model.CreateResult{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := b.send(ctx, b.smtp, b.username, recipients, buf.Bytes()); err != nil {
		var rcptErr *RecipientError
		if errors.As(err, &rcptErr) {
			b.log.Infof("%s rejected: %v", op, rcptErr)
			return model.CreateResult{
				Error: fmt.Sprintf("User with email %s does not exist.", rcptErr.Recipient),
			}, nil
		}
		return model.CreateResult{}, wrap(op, err)
	}

	sentFolder, err := b.folder(model.MailboxSent)
	if err == nil {
		err = b.store.Append(ctx, sentFolder, buf.Bytes(), []imap.Flag{imap.FlagSeen}, now)
	}
	if err != nil {
		// The message is already delivered; only the local copy is missing.
		b.log.Warnf("%s: saving copy to sent folder: %v", op, err)
	}

	return model.CreateResult{Message: "Email sent successfully."}, nil
}

// wrap classifies backend failures. Authentication errors pass through.
func wrap(op string, err error) error {
	if mailapi.IsAuthError(err) {
		return err
	}
	return &mailapi.NetworkError{Op: op, Err: err}
}
