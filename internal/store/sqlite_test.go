package store_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/store"
	"github.com/nhle/mailclient/tests/testutil"
)

const (
	me    = "me@example.com"
	alice = "alice@example.com"
	bob   = "bob@example.com"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return testutil.NewTestStore(t, me, alice, bob)
}

func idOf(t *testing.T, m model.Message) int64 {
	t.Helper()
	id, err := strconv.ParseInt(string(m.ID), 10, 64)
	require.NoError(t, err)
	return id
}

func TestCreateUserIsIdempotent(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, " ME@example.com "))

	ok, err := s.UserExists(ctx, me)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.UserExists(ctx, "nobody@example.com")
	require.NoError(t, err)
	require.False(t, ok)

	require.Error(t, s.CreateUser(ctx, "  "))
}

func TestCreateMessageDeliversCopies(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMessage(ctx, store.NewMessage{
		Sender:     alice,
		Recipients: []string{me, bob},
		Subject:    "Hi",
		Body:       "Hello there",
	}))

	for _, u := range []string{me, bob} {
		inbox, err := s.ListMailbox(ctx, u, model.MailboxInbox)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		require.Equal(t, alice, inbox[0].Sender)
		require.Equal(t, []string{me, bob}, inbox[0].Recipients)
		require.False(t, inbox[0].Read)
		require.NotEmpty(t, inbox[0].Timestamp)
	}

	sent, err := s.ListMailbox(ctx, alice, model.MailboxSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.True(t, sent[0].Read)

	// Each user owns a distinct copy.
	mine, err := s.ListMailbox(ctx, me, model.MailboxInbox)
	require.NoError(t, err)
	require.NotEqual(t, sent[0].ID, mine[0].ID)
}

func TestCreateMessageValidatesRecipients(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	err := s.CreateMessage(ctx, store.NewMessage{Sender: me, Recipients: []string{" ", ""}})
	require.ErrorIs(t, err, store.ErrNoRecipients)

	err = s.CreateMessage(ctx, store.NewMessage{
		Sender:     me,
		Recipients: []string{alice, "ghost@example.com"},
	})
	var unknown *store.UnknownRecipientError
	require.ErrorAs(t, err, &unknown)
	require.Equal(t, "ghost@example.com", unknown.Email)
	require.Equal(t, "User with email ghost@example.com does not exist.", err.Error())

	// Nothing was delivered to the valid recipient.
	inbox, err := s.ListMailbox(ctx, alice, model.MailboxInbox)
	require.NoError(t, err)
	require.Empty(t, inbox)
}

func TestSendToSelfDeliversOneCopy(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMessage(ctx, store.NewMessage{
		Sender:     me,
		Recipients: []string{me},
		Subject:    "Note to self",
	}))

	inbox, err := s.ListMailbox(ctx, me, model.MailboxInbox)
	require.NoError(t, err)
	require.Len(t, inbox, 1)

	sent, err := s.ListMailbox(ctx, me, model.MailboxSent)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	require.Equal(t, inbox[0].ID, sent[0].ID)
}

func TestListMailboxNewestFirst(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	for i, subject := range []string{"first", "second", "third"} {
		require.NoError(t, s.CreateMessage(ctx, store.NewMessage{
			Sender:     alice,
			Recipients: []string{me},
			Subject:    subject,
			SentAt:     base.Add(time.Duration(i) * time.Hour),
		}))
	}

	inbox, err := s.ListMailbox(ctx, me, model.MailboxInbox)
	require.NoError(t, err)
	require.Len(t, inbox, 3)
	require.Equal(t, "third", inbox[0].Subject)
	require.Equal(t, "second", inbox[1].Subject)
	require.Equal(t, "first", inbox[2].Subject)

	_, err = s.ListMailbox(ctx, me, model.Mailbox("spam"))
	require.Error(t, err)
}

func TestArchiveMovesBetweenMailboxes(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMessage(ctx, store.NewMessage{
		Sender:     alice,
		Recipients: []string{me},
		Subject:    "Hi",
	}))

	inbox, err := s.ListMailbox(ctx, me, model.MailboxInbox)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	id := idOf(t, inbox[0])

	archived := true
	require.NoError(t, s.UpdateMessage(ctx, me, id, model.Patch{Archived: &archived}))

	inbox, err = s.ListMailbox(ctx, me, model.MailboxInbox)
	require.NoError(t, err)
	require.Empty(t, inbox)

	archive, err := s.ListMailbox(ctx, me, model.MailboxArchive)
	require.NoError(t, err)
	require.Len(t, archive, 1)
	require.True(t, archive[0].Archived)

	archived = false
	require.NoError(t, s.UpdateMessage(ctx, me, id, model.Patch{Archived: &archived}))

	msg, err := s.GetMessage(ctx, me, id)
	require.NoError(t, err)
	require.False(t, msg.Archived)
}

func TestUpdateMessageMarksRead(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMessage(ctx, store.NewMessage{
		Sender:     alice,
		Recipients: []string{me},
	}))
	inbox, err := s.ListMailbox(ctx, me, model.MailboxInbox)
	require.NoError(t, err)
	id := idOf(t, inbox[0])

	require.NoError(t, s.UpdateMessage(ctx, me, id, model.MarkRead()))
	msg, err := s.GetMessage(ctx, me, id)
	require.NoError(t, err)
	require.True(t, msg.Read)
	require.False(t, msg.Archived)

	// An empty patch only checks existence.
	require.NoError(t, s.UpdateMessage(ctx, me, id, model.Patch{}))
}

func TestMessagesAreScopedToOwner(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateMessage(ctx, store.NewMessage{
		Sender:     alice,
		Recipients: []string{me},
	}))
	inbox, err := s.ListMailbox(ctx, me, model.MailboxInbox)
	require.NoError(t, err)
	id := idOf(t, inbox[0])

	_, err = s.GetMessage(ctx, bob, id)
	require.ErrorIs(t, err, store.ErrNotFound)

	require.ErrorIs(t, s.UpdateMessage(ctx, bob, id, model.MarkRead()), store.ErrNotFound)
	require.ErrorIs(t, s.UpdateMessage(ctx, me, 9999, model.Patch{}), store.ErrNotFound)
}

func TestSeedFillsEveryMailbox(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Seed(ctx, s, me))

	for _, mb := range model.Mailboxes {
		msgs, err := s.ListMailbox(ctx, me, mb)
		require.NoError(t, err)
		require.NotEmpty(t, msgs, mb)
	}
}
