package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/nhle/mailclient/internal/model"
)

// DemoUsers are the accounts Seed creates besides the owner.
var DemoUsers = []string{"alice@example.com", "bob@example.com"}

// Seed creates owner and the demo users and delivers a short conversation,
// so a fresh dev server has something in every mailbox.
func Seed(ctx context.Context, s Store, owner string) error {
	for _, u := range append([]string{owner}, DemoUsers...) {
		if err := s.CreateUser(ctx, u); err != nil {
			return err
		}
	}

	now := time.Now()
	msgs := []NewMessage{
		{
			Sender:     DemoUsers[0],
			Recipients: []string{owner},
			Subject:    "Welcome",
			Body:       "Your mailbox is ready. Press ? for help.",
			SentAt:     now.Add(-3 * time.Hour),
		},
		{
			Sender:     DemoUsers[1],
			Recipients: []string{owner, DemoUsers[0]},
			Subject:    "Lunch on Friday?",
			Body:       "The usual place at noon.",
			SentAt:     now.Add(-2 * time.Hour),
		},
		{
			Sender:     owner,
			Recipients: []string{DemoUsers[1]},
			Subject:    "Re: Lunch on Friday?",
			Body:       "Count me in.",
			SentAt:     now.Add(-time.Hour),
		},
	}

	for _, m := range msgs {
		if err := s.CreateMessage(ctx, m); err != nil {
			return fmt.Errorf("seeding %q: %w", m.Subject, err)
		}
	}

	// Archive the welcome note so the archive mailbox is not empty.
	inbox, err := s.ListMailbox(ctx, owner, model.MailboxInbox)
	if err != nil {
		return err
	}
	for _, m := range inbox {
		if m.Subject != "Welcome" {
			continue
		}
		id, err := strconv.ParseInt(string(m.ID), 10, 64)
		if err != nil {
			return fmt.Errorf("parsing id %q: %w", m.ID, err)
		}
		archived := true
		if err := s.UpdateMessage(ctx, owner, id, model.Patch{Archived: &archived}); err != nil {
			return err
		}
	}

	return nil
}
