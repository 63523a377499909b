package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
)

var errNotFound = errors.New("Email not found.")

// FakeUser is the account the fake client acts as.
const FakeUser = "me@example.com"

// Update records one UpdateMessage call.
type Update struct {
	ID    model.MessageID
	Patch model.Patch
}

type storedMessage struct {
	msg  model.Message
	sent bool
}

// FakeMailClient is an in-memory mailapi.Client that records every call.
// Inbox and archive are views over received messages split by the archived
// flag, as on the real backend. Safe for concurrent use.
type FakeMailClient struct {
	mu       sync.Mutex
	messages []storedMessage
	nextID   int

	listCalls []model.Mailbox
	getCalls  []model.MessageID
	updates   []Update
	creates   []model.ComposeFields

	listErr    error
	getErr     error
	updateErr  error
	createErr  error
	rejectWith string
}

var _ mailapi.Client = (*FakeMailClient)(nil)

// NewFakeMailClient returns an empty fake.
func NewFakeMailClient() *FakeMailClient {
	return &FakeMailClient{nextID: 1000}
}

// Put stores msg in mb. Putting into archive marks it archived.
func (f *FakeMailClient) Put(mb model.Mailbox, msg model.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch mb {
	case model.MailboxArchive:
		msg.Archived = true
	case model.MailboxInbox:
		msg.Archived = false
	}
	f.messages = append(f.messages, storedMessage{msg: msg, sent: mb == model.MailboxSent})
}

// Message returns the stored copy of id.
func (f *FakeMailClient) Message(id model.MessageID) (model.Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, s := range f.messages {
		if s.msg.ID == id {
			return s.msg, true
		}
	}
	return model.Message{}, false
}

// FailList makes ListMailbox return err.
func (f *FakeMailClient) FailList(err error) { f.set(func() { f.listErr = err }) }

// FailGet makes GetMessage return err.
func (f *FakeMailClient) FailGet(err error) { f.set(func() { f.getErr = err }) }

// FailUpdate makes UpdateMessage return err.
func (f *FakeMailClient) FailUpdate(err error) { f.set(func() { f.updateErr = err }) }

// FailCreate makes CreateMessage return err.
func (f *FakeMailClient) FailCreate(err error) { f.set(func() { f.createErr = err }) }

// RejectCreate makes CreateMessage answer with a validation error.
func (f *FakeMailClient) RejectCreate(text string) { f.set(func() { f.rejectWith = text }) }

func (f *FakeMailClient) set(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

// ListCalls returns the mailboxes listed so far.
func (f *FakeMailClient) ListCalls() []model.Mailbox {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Mailbox(nil), f.listCalls...)
}

// GetCalls returns the ids fetched so far.
func (f *FakeMailClient) GetCalls() []model.MessageID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.MessageID(nil), f.getCalls...)
}

// Updates returns the updates issued so far.
func (f *FakeMailClient) Updates() []Update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Update(nil), f.updates...)
}

// Creates returns the compose submissions received so far.
func (f *FakeMailClient) Creates() []model.ComposeFields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ComposeFields(nil), f.creates...)
}

// CallCount is the total number of calls of any kind.
func (f *FakeMailClient) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listCalls) + len(f.getCalls) + len(f.updates) + len(f.creates)
}

func (f *FakeMailClient) ListMailbox(_ context.Context, mb model.Mailbox) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listCalls = append(f.listCalls, mb)
	if f.listErr != nil {
		return nil, f.listErr
	}

	var out []model.Message
	for _, s := range f.messages {
		switch {
		case mb == model.MailboxSent && s.sent,
			mb == model.MailboxInbox && !s.sent && !s.msg.Archived,
			mb == model.MailboxArchive && !s.sent && s.msg.Archived:
			out = append(out, s.msg)
		}
	}
	return out, nil
}

func (f *FakeMailClient) GetMessage(_ context.Context, id model.MessageID) (model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.getCalls = append(f.getCalls, id)
	if f.getErr != nil {
		return model.Message{}, f.getErr
	}

	for _, s := range f.messages {
		if s.msg.ID == id {
			return s.msg, nil
		}
	}
	return model.Message{}, &mailapi.NetworkError{
		Op: "get message " + id.String(), StatusCode: 404, Err: errNotFound,
	}
}

func (f *FakeMailClient) UpdateMessage(_ context.Context, id model.MessageID, patch model.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.updates = append(f.updates, Update{ID: id, Patch: patch})
	if f.updateErr != nil {
		return f.updateErr
	}

	for i, s := range f.messages {
		if s.msg.ID == id {
			f.messages[i].msg = patch.Apply(s.msg)
			return nil
		}
	}
	return &mailapi.NetworkError{
		Op: "update message " + id.String(), StatusCode: 404, Err: errNotFound,
	}
}

func (f *FakeMailClient) CreateMessage(_ context.Context, fields model.ComposeFields) (model.CreateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates = append(f.creates, fields)
	if f.createErr != nil {
		return model.CreateResult{}, f.createErr
	}
	if f.rejectWith != "" {
		return model.CreateResult{Error: f.rejectWith}, nil
	}

	f.nextID++
	f.messages = append(f.messages, storedMessage{
		sent: true,
		msg: model.Message{
			ID:         model.MessageID(fmt.Sprint(f.nextID)),
			Sender:     FakeUser,
			Recipients: fields.RecipientList(),
			Subject:    fields.Subject,
			Body:       fields.Body,
			Read:       true,
		},
	})
	return model.CreateResult{Message: "Email sent successfully."}, nil
}
