package render

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/nhle/mailclient/internal/model"
)

func TestMailboxListScenarioRow(t *testing.T) {
	rows := MailboxList([]model.Message{{
		ID:        "1",
		Sender:    "a@x.com",
		Read:      false,
		Archived:  false,
		Body:      "hello world this is a test",
		Timestamp: "Jan 1",
	}})

	require.Len(t, rows, 1)
	require.Equal(t, "a@x.com", rows[0].Sender)
	require.Equal(t, "hello world this is "+Ellipsis, rows[0].Preview)
	require.Equal(t, "Jan 1", rows[0].Timestamp)
	require.Equal(t, BackgroundWhite, rows[0].Background)
	require.Equal(t, model.MessageID("1"), rows[0].Message.ID)
}

func TestMailboxListReadRowIsLight(t *testing.T) {
	rows := MailboxList([]model.Message{{ID: "2", Read: true, Body: "short"}})
	require.Equal(t, BackgroundLight, rows[0].Background)
	require.Equal(t, "short", rows[0].Preview)
}

func TestMailboxListEmpty(t *testing.T) {
	require.Nil(t, MailboxList(nil))
	require.Nil(t, MailboxList([]model.Message{}))
}

func TestMailboxListKeepsOrder(t *testing.T) {
	rows := MailboxList([]model.Message{{ID: "3"}, {ID: "1"}, {ID: "2"}})
	require.Equal(t, model.MessageID("3"), rows[0].Message.ID)
	require.Equal(t, model.MessageID("1"), rows[1].Message.ID)
	require.Equal(t, model.MessageID("2"), rows[2].Message.ID)
}

func TestRowTargetCarriesRecord(t *testing.T) {
	row := MailboxRow(model.Message{ID: "9", Subject: "hi"})
	target := row.Target()

	require.Equal(t, model.ActionOpen, target.Action)
	require.Equal(t, model.MessageID("9"), target.MessageID)
	require.NotNil(t, target.Message)
	require.Equal(t, "hi", target.Message.Subject)
}

func TestPreviewCountsRunes(t *testing.T) {
	body := "héllo wörld ünïcödé text"
	got := Preview(body)
	require.Equal(t, PreviewLength+1, utf8.RuneCountInString(got))
	require.Equal(t, "héllo wörld ünïcödé "+Ellipsis, got)
}

func TestDetailInboxUnarchived(t *testing.T) {
	view := Detail(model.Message{
		ID:         "1",
		Sender:     "a@x.com",
		Recipients: []string{"me@x.com", "you@x.com"},
		Subject:    "hi",
	}, model.MailboxInbox)

	require.Equal(t, "me@x.com, you@x.com", view.Recipients)
	require.True(t, view.Has(model.ActionArchive))
	require.False(t, view.Has(model.ActionUnarchive))
	require.True(t, view.Has(model.ActionReply))
	require.Equal(t, "Archive", view.Controls[0].Label)
	require.Equal(t, model.MessageID("1"), view.Controls[0].Target().MessageID)
}

func TestDetailArchiveShowsUnarchive(t *testing.T) {
	view := Detail(model.Message{ID: "1", Archived: true}, model.MailboxArchive)
	require.True(t, view.Has(model.ActionUnarchive))
	require.False(t, view.Has(model.ActionArchive))
}

func TestDetailSentHasOnlyReply(t *testing.T) {
	view := Detail(model.Message{ID: "1", Archived: true}, model.MailboxSent)
	require.Len(t, view.Controls, 1)
	require.Equal(t, model.ActionReply, view.Controls[0].Action)
}

func genMessage() *rapid.Generator[model.Message] {
	return rapid.Custom(func(t *rapid.T) model.Message {
		return model.Message{
			ID:         model.MessageID(rapid.StringMatching(`[0-9]{1,4}`).Draw(t, "id")),
			Sender:     rapid.String().Draw(t, "sender"),
			Recipients: rapid.SliceOf(rapid.String()).Draw(t, "recipients"),
			Subject:    rapid.String().Draw(t, "subject"),
			Body:       rapid.String().Draw(t, "body"),
			Read:       rapid.Bool().Draw(t, "read"),
			Archived:   rapid.Bool().Draw(t, "archived"),
		}
	})
}

func TestDetailControlsProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		msg := genMessage().Draw(t, "msg")
		mb := rapid.SampledFrom(model.Mailboxes).Draw(t, "mailbox")

		view := Detail(msg, mb)

		archive := view.Has(model.ActionArchive)
		unarchive := view.Has(model.ActionUnarchive)

		if archive && unarchive {
			t.Fatalf("both archive and unarchive offered")
		}
		if mb == model.MailboxSent && (archive || unarchive) {
			t.Fatalf("archive control offered in sent")
		}
		if mb != model.MailboxSent && archive == unarchive {
			t.Fatalf("expected exactly one archive control in %s", mb)
		}
		if mb != model.MailboxSent && unarchive != msg.Archived {
			t.Fatalf("unarchive=%v but archived=%v", unarchive, msg.Archived)
		}
		if !view.Has(model.ActionReply) {
			t.Fatalf("reply missing")
		}
		for _, c := range view.Controls {
			if c.MessageID != msg.ID {
				t.Fatalf("control %s targets %q, want %q", c.Label, c.MessageID, msg.ID)
			}
		}
	})
}

func TestPreviewProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		body := rapid.String().Draw(t, "body")
		got := Preview(body)

		n := utf8.RuneCountInString(body)
		if n <= PreviewLength {
			if got != body {
				t.Fatalf("short body changed: %q -> %q", body, got)
			}
			return
		}
		if utf8.RuneCountInString(got) != PreviewLength+1 {
			t.Fatalf("preview %q has wrong length", got)
		}
	})
}
