// Package mailapi is the thin asynchronous boundary between the client and
// the remote mail store. Implementations hold no view state.
package mailapi

import (
	"context"
	"errors"
	"fmt"

	"github.com/nhle/mailclient/internal/model"
)

// Client is the set of remote operations the view controller depends on.
// Every method fails when the transport fails or the response is not a
// success; nothing is swallowed.
type Client interface {
	// ListMailbox returns every message in mb in backend order. Callers
	// must not re-sort the result.
	ListMailbox(ctx context.Context, mb model.Mailbox) ([]model.Message, error)

	// GetMessage returns a single message.
	GetMessage(ctx context.Context, id model.MessageID) (model.Message, error)

	// UpdateMessage applies a partial update; only non-nil patch fields
	// change remotely.
	UpdateMessage(ctx context.Context, id model.MessageID, patch model.Patch) error

	// CreateMessage sends a new message. A rejected message (for example an
	// unknown recipient) is reported through CreateResult.Error with a nil
	// error; the error return is reserved for network failures.
	CreateMessage(ctx context.Context, fields model.ComposeFields) (model.CreateResult, error)
}

// NetworkError covers transport failures, non-success statuses and
// responses whose JSON does not have the expected shape.
type NetworkError struct {
	Op         string
	StatusCode int
	Malformed  bool
	Err        error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Malformed:
		return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err (or any error in its chain) is a
// NetworkError.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// ErrNoRecipients is returned before any network call when a compose
// submission has no recipients.
var ErrNoRecipients = errors.New("at least one recipient is required")

// AuthError indicates that the backend refused the configured credentials.
// The REST client returns it on 401 and 403 responses.
type AuthError struct {
	Backend string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Backend, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
