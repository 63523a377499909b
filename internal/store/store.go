package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nhle/mailclient/internal/model"
)

// ErrNotFound is returned when a message does not exist or belongs to
// another user.
var ErrNotFound = errors.New("email not found")

// ErrNoRecipients is returned when a new message has no recipients.
var ErrNoRecipients = errors.New("at least one recipient required")

// UnknownRecipientError is returned when a recipient has no account.
type UnknownRecipientError struct {
	Email string
}

func (e *UnknownRecipientError) Error() string {
	return fmt.Sprintf("User with email %s does not exist.", e.Email)
}

// NewMessage is a message about to be delivered.
type NewMessage struct {
	Sender     string
	Recipients []string
	Subject    string
	Body       string
	SentAt     time.Time
}

// Store defines the persistence interface of the mail server. Every
// message belongs to one user; sending delivers a copy to the sender and
// to each recipient.
type Store interface {
	// === Users ===

	CreateUser(ctx context.Context, email string) error
	UserExists(ctx context.Context, email string) (bool, error)

	// === Messages ===

	ListMailbox(ctx context.Context, user string, mb model.Mailbox) ([]model.Message, error)
	GetMessage(ctx context.Context, user string, id int64) (model.Message, error)
	UpdateMessage(ctx context.Context, user string, id int64, patch model.Patch) error
	CreateMessage(ctx context.Context, msg NewMessage) error

	// === Lifecycle ===

	Close() error
}
