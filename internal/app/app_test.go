package app

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailclient/internal/dispatch"
	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/render"
	appsync "github.com/nhle/mailclient/internal/sync"
	"github.com/nhle/mailclient/internal/ui/command"
	"github.com/nhle/mailclient/internal/ui/compose"
	"github.com/nhle/mailclient/internal/ui/detail"
	"github.com/nhle/mailclient/tests/testutil"
)

// cmdTimeout bounds commands that block, such as cursor blinks.
const cmdTimeout = 200 * time.Millisecond

// run executes cmd and any batched commands, returning the messages they
// produce. Commands that do not finish within cmdTimeout are abandoned.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}

	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	select {
	case msg := <-ch:
		if batch, ok := msg.(tea.BatchMsg); ok {
			var out []tea.Msg
			for _, c := range batch {
				out = append(out, run(c)...)
			}
			return out
		}
		if msg == nil {
			return nil
		}
		return []tea.Msg{msg}
	case <-time.After(cmdTimeout):
		return nil
	}
}

// controllerMsg reports whether msg belongs to the controller flow. Other
// messages (spinner ticks, cursor blinks) are dropped by the tests.
func controllerMsg(msg tea.Msg) bool {
	switch msg.(type) {
	case mailboxLoadedMsg, detailLoadedMsg, composeResultMsg, archiveResultMsg,
		dispatch.ClickMsg, dispatch.ComposeRequestMsg, dispatch.ReplyFailedMsg,
		compose.SubmitMsg, compose.CancelMsg,
		detail.BackMsg, detail.RetryMsg:
		return true
	}
	return false
}

// send delivers msg to m and settles the commands it returns.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()

	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return settle(t, nm, cmd)
}

// do settles cmd against *m. Taking a pointer keeps the mutation made while
// building cmd visible to settle.
func do(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	*m = settle(t, *m, cmd)
}

// settle runs cmd and feeds controller messages back until none are left.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()

	for _, msg := range run(cmd) {
		if controllerMsg(msg) {
			m = send(t, m, msg)
		}
	}
	return m
}

func newTestModel(t *testing.T, client *testutil.FakeMailClient) Model {
	t.Helper()

	m := New(client, Options{ExportDir: t.TempDir()})
	return settle(t, m, m.Init())
}

func scenarioMessage() model.Message {
	return model.Message{
		ID:         "1",
		Sender:     "a@x.com",
		Recipients: []string{testutil.FakeUser},
		Subject:    "Test",
		Body:       "hello world this is a test",
		Timestamp:  "Jan 1",
	}
}

func TestInitShowsInbox(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())

	m := newTestModel(t, client)

	require.Equal(t, ViewInbox, m.State().Active())
	require.Equal(t, model.MailboxInbox, m.State().Mailbox())
	require.Equal(t, []model.Mailbox{model.MailboxInbox}, client.ListCalls())

	rows := m.mailboxView.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, "a@x.com", rows[0].Sender)
	require.Equal(t, "hello world this is "+render.Ellipsis, rows[0].Preview)
	require.Equal(t, render.BackgroundWhite, rows[0].Background)
	require.Equal(t, 1, m.unreadCount)
}

func TestShowMailboxRendersLoadingHeaderSynchronously(t *testing.T) {
	m := newTestModel(t, testutil.NewFakeMailClient())

	_ = m.ShowMailbox(model.MailboxArchive)

	require.Equal(t, ViewArchive, m.State().Active())
	require.True(t, m.mailboxView.Loading())
	require.Equal(t, model.MailboxArchive, m.mailboxView.Mailbox())
}

func TestOpenRowShowsDetailAndMarksRead(t *testing.T) {
	client := testutil.NewFakeMailClient()
	msg := scenarioMessage()
	client.Put(model.MailboxInbox, msg)

	m := newTestModel(t, client)
	row := m.mailboxView.Rows()[0]

	m = send(t, m, dispatch.ClickMsg{Target: row.Target()})

	require.Equal(t, ViewDetail, m.State().Active())
	require.Equal(t, []model.MessageID{"1"}, client.GetCalls())
	require.Equal(t, []testutil.Update{{ID: "1", Patch: model.MarkRead()}}, client.Updates())

	selected := m.State().Selected()
	require.True(t, selected.IsSome())
	require.Equal(t, model.MessageID("1"), selected.UnwrapOr(model.Message{}).ID)

	view := render.DetailView{Controls: m.detailView.Controls()}
	require.True(t, view.Has(model.ActionArchive))
	require.False(t, view.Has(model.ActionUnarchive))
	require.True(t, view.Has(model.ActionReply))
}

func TestShowDetailMarksReadOncePerCall(t *testing.T) {
	client := testutil.NewFakeMailClient()
	msg := scenarioMessage()
	msg.Read = true
	client.Put(model.MailboxInbox, msg)

	m := newTestModel(t, client)
	do(t, &m, m.ShowDetail("1"))
	do(t, &m, m.ShowDetail("1"))

	updates := client.Updates()
	require.Len(t, updates, 2)
	for _, u := range updates {
		require.Equal(t, model.MessageID("1"), u.ID)
		require.Equal(t, model.MarkRead(), u.Patch)
	}
}

func TestShowDetailRendersWhenMarkReadFails(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())
	client.FailUpdate(errors.New("read flag rejected"))

	m := newTestModel(t, client)
	do(t, &m, m.ShowDetail("1"))

	require.Equal(t, ViewDetail, m.State().Active())
	require.NoError(t, m.detailView.Err())
	require.False(t, m.detailView.Loading())
	require.True(t, m.State().Selected().IsSome())
}

func TestShowDetailFailureOffersRetry(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())
	client.FailGet(&mailapi.NetworkError{Op: "get message 1", StatusCode: 500, Err: errors.New("boom")})

	m := newTestModel(t, client)
	do(t, &m, m.ShowDetail("1"))

	require.Equal(t, ViewDetail, m.State().Active())
	require.Error(t, m.detailView.Err())
	require.True(t, m.State().Selected().IsNone())

	client.FailGet(nil)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	require.NoError(t, m.detailView.Err())
	require.True(t, m.State().Selected().IsSome())
	require.Len(t, client.GetCalls(), 2)
}

func TestListFailureShowsErrorAndRetries(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())
	client.FailList(&mailapi.NetworkError{Op: "list inbox", Err: errors.New("connection refused")})

	m := newTestModel(t, client)
	require.Error(t, m.mailboxView.Err())

	client.FailList(nil)
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	require.NoError(t, m.mailboxView.Err())
	require.Len(t, m.mailboxView.Rows(), 1)
}

func TestStaleListingIsDiscarded(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())
	client.Put(model.MailboxSent, model.Message{ID: "2", Sender: testutil.FakeUser, Body: "sent body"})

	m := newTestModel(t, client)

	inboxCmd := m.ShowMailbox(model.MailboxInbox)
	sentCmd := m.ShowMailbox(model.MailboxSent)

	// The sent listing lands first, then the older inbox listing.
	m = settle(t, m, sentCmd)
	m = settle(t, m, inboxCmd)

	require.Equal(t, ViewSent, m.State().Active())
	rows := m.mailboxView.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, model.MessageID("2"), rows[0].Message.ID)
}

func TestStaleDetailIsDiscarded(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())

	m := newTestModel(t, client)

	detailCmd := m.ShowDetail("1")
	inboxCmd := m.ShowMailbox(model.MailboxInbox)
	m = settle(t, m, inboxCmd)
	m = settle(t, m, detailCmd)

	require.Equal(t, ViewInbox, m.State().Active())
	require.True(t, m.State().Selected().IsNone())
	require.Nil(t, m.detailView.Controls())
}

func TestArchiveFromDetailShowsInbox(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())

	m := newTestModel(t, client)
	do(t, &m, m.ShowDetail("1"))

	var archive render.Control
	for _, c := range m.detailView.Controls() {
		if c.Action == model.ActionArchive {
			archive = c
		}
	}
	require.Equal(t, model.ActionArchive, archive.Action)

	m = send(t, m, dispatch.ClickMsg{Target: archive.Target()})

	require.Equal(t, ViewInbox, m.State().Active())
	updates := client.Updates()
	require.Equal(t, testutil.Update{ID: "1", Patch: model.SetArchived(true)}, updates[len(updates)-1])
	require.Empty(t, m.mailboxView.Rows())

	stored, ok := client.Message("1")
	require.True(t, ok)
	require.True(t, stored.Archived)
}

func TestUnarchiveFromArchiveShowsInbox(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxArchive, scenarioMessage())

	m := newTestModel(t, client)
	do(t, &m, m.ShowMailbox(model.MailboxArchive))
	do(t, &m, m.ShowDetail("1"))

	view := render.DetailView{Controls: m.detailView.Controls()}
	require.True(t, view.Has(model.ActionUnarchive))
	require.False(t, view.Has(model.ActionArchive))

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'u'}})

	require.Equal(t, ViewInbox, m.State().Active())
	require.Len(t, m.mailboxView.Rows(), 1)
}

func TestSentDetailHasNoArchiveControls(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxSent, model.Message{ID: "5", Sender: testutil.FakeUser, Recipients: []string{"b@x.com"}})

	m := newTestModel(t, client)
	do(t, &m, m.ShowMailbox(model.MailboxSent))
	do(t, &m, m.ShowDetail("5"))

	// The mailbox context survives the detail visit.
	require.Equal(t, model.MailboxSent, m.State().Mailbox())

	view := render.DetailView{Controls: m.detailView.Controls()}
	require.False(t, view.Has(model.ActionArchive))
	require.False(t, view.Has(model.ActionUnarchive))
	require.True(t, view.Has(model.ActionReply))
}

func TestArchiveThenUnarchiveRestoresFlag(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())

	m := newTestModel(t, client)
	do(t, &m, m.ArchiveAction("1", true))
	do(t, &m, m.ArchiveAction("1", false))

	stored, ok := client.Message("1")
	require.True(t, ok)
	require.False(t, stored.Archived)
	require.Equal(t, ViewInbox, m.State().Active())
}

func TestArchiveFailureStaysOnView(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())

	m := newTestModel(t, client)
	do(t, &m, m.ShowDetail("1"))

	client.FailUpdate(errors.New("update refused"))
	do(t, &m, m.ArchiveAction("1", true))

	require.Equal(t, ViewDetail, m.State().Active())
	require.Contains(t, m.statusErr, "Could not archive")
}

func TestSubmitComposeWithoutRecipientsMakesNoCall(t *testing.T) {
	client := testutil.NewFakeMailClient()
	m := newTestModel(t, client)
	before := client.CallCount()

	_ = m.ShowCompose(nil)
	do(t, &m, m.SubmitCompose(model.ComposeFields{Recipients: " , ", Subject: "Hi"}))

	require.Equal(t, before, client.CallCount())
	require.Equal(t, ViewCompose, m.State().Active())
	require.Equal(t, mailapi.ErrNoRecipients.Error(), m.composeView.Err())
}

func TestSubmitComposeRejectionStaysInCompose(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.RejectCreate("User with email nobody@x.com does not exist.")

	m := newTestModel(t, client)
	_ = m.ShowCompose(nil)
	do(t, &m, m.SubmitCompose(model.ComposeFields{Recipients: "nobody@x.com", Subject: "Hi"}))

	require.Equal(t, ViewCompose, m.State().Active())
	require.Equal(t, "User with email nobody@x.com does not exist.", m.composeView.Err())
	require.Len(t, client.Creates(), 1)
}

func TestSubmitComposeNetworkFailureStaysInCompose(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.FailCreate(&mailapi.NetworkError{Op: "create message", StatusCode: 502, Err: errors.New("bad gateway")})

	m := newTestModel(t, client)
	_ = m.ShowCompose(nil)
	do(t, &m, m.SubmitCompose(model.ComposeFields{Recipients: "b@x.com"}))

	require.Equal(t, ViewCompose, m.State().Active())
	require.Contains(t, m.composeView.Err(), "Could not send")
}

func TestSubmitComposeSuccessShowsSent(t *testing.T) {
	client := testutil.NewFakeMailClient()

	m := newTestModel(t, client)
	_ = m.ShowCompose(nil)
	m = send(t, m, compose.SubmitMsg{Fields: model.ComposeFields{
		Recipients: "b@x.com, c@x.com",
		Subject:    "Lunch",
		Body:       "Noon?",
	}})

	require.Equal(t, ViewSent, m.State().Active())
	require.Equal(t, model.MailboxSent, m.State().Mailbox())

	rows := m.mailboxView.Rows()
	require.Len(t, rows, 1)
	require.Equal(t, []string{"b@x.com", "c@x.com"}, rows[0].Message.Recipients)
}

func TestReplyOpensPrefilledCompose(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())

	m := newTestModel(t, client)
	do(t, &m, m.ShowDetail("1"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})

	require.Equal(t, ViewCompose, m.State().Active())
	fields := m.composeView.Fields()
	require.Equal(t, "a@x.com", fields.Recipients)
	require.Equal(t, "Re: Test", fields.Subject)
	require.Contains(t, fields.Body, "On Jan 1 a@x.com wrote: Test")
}

func TestStaleReplyIsDiscarded(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())

	m := newTestModel(t, client)
	do(t, &m, m.ShowDetail("1"))

	stale := dispatch.ComposeRequestMsg{
		Generation: m.Generation(),
		Prefill:    dispatch.ReplyPrefill(scenarioMessage()),
	}
	do(t, &m, m.ShowMailbox(model.MailboxSent))
	m = send(t, m, stale)

	require.Equal(t, ViewSent, m.State().Active())
}

func TestCancelComposeReturnsToMailbox(t *testing.T) {
	client := testutil.NewFakeMailClient()

	m := newTestModel(t, client)
	do(t, &m, m.ShowMailbox(model.MailboxArchive))
	_ = m.ShowCompose(nil)
	m = send(t, m, compose.CancelMsg{})

	require.Equal(t, ViewArchive, m.State().Active())
}

func TestBackFromDetailReturnsToMailbox(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxSent, model.Message{ID: "5", Sender: testutil.FakeUser})

	m := newTestModel(t, client)
	do(t, &m, m.ShowMailbox(model.MailboxSent))
	do(t, &m, m.ShowDetail("5"))
	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	require.Equal(t, ViewSent, m.State().Active())
	require.True(t, m.State().Selected().IsNone())
}

func TestNavigationKeys(t *testing.T) {
	m := newTestModel(t, testutil.NewFakeMailClient())

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	require.Equal(t, ViewSent, m.State().Active())

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'A'}})
	require.Equal(t, ViewArchive, m.State().Active())

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'i'}})
	require.Equal(t, ViewInbox, m.State().Active())

	m = send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	require.Equal(t, OverlayHelp, m.Overlay())
	require.Equal(t, ViewInbox, m.State().Active())

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, OverlayNone, m.Overlay())
}

func TestCommandPaletteSwitchesView(t *testing.T) {
	m := newTestModel(t, testutil.NewFakeMailClient())

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{':'}})
	m = next.(Model)
	require.Equal(t, OverlayCommand, m.Overlay())

	m = send(t, m, command.CommandMsg("archive"))
	require.Equal(t, OverlayNone, m.Overlay())
	require.Equal(t, ViewArchive, m.State().Active())
}

func TestPollerAuthFailureShowsInStatusBar(t *testing.T) {
	m := newTestModel(t, testutil.NewFakeMailClient())

	next, _ := m.Update(appsync.UnreadMsg{Error: errors.New("connection refused")})
	m = next.(Model)
	require.Empty(t, m.status().Err)

	next, _ = m.Update(appsync.UnreadMsg{Error: errors.New("401 Unauthorized"), Auth: true})
	m = next.(Model)
	require.Equal(t, authFailedMessage, m.status().Err)
	require.Contains(t, m.status().Hints, "q quit")

	next, _ = m.Update(appsync.UnreadMsg{Count: 3})
	m = next.(Model)
	require.Empty(t, m.status().Err)
	require.Equal(t, 3, m.unreadCount)
}

func TestArchiveFailureReplacesHints(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, scenarioMessage())

	m := newTestModel(t, client)
	do(t, &m, m.ShowDetail("1"))

	client.FailUpdate(errors.New("update refused"))
	do(t, &m, m.ArchiveAction("1", true))

	s := m.status()
	require.Contains(t, s.Err, "Could not archive message")
	require.Contains(t, s.Hints, "a archive")
}

func TestSendResultAfterDiscardIsDropped(t *testing.T) {
	client := testutil.NewFakeMailClient()

	m := newTestModel(t, client)
	_ = m.ShowCompose(nil)
	gen := m.Generation()

	m = send(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, ViewInbox, m.State().Active())

	m = send(t, m, composeResultMsg{
		generation: gen,
		result:     model.CreateResult{Message: "Email sent successfully."},
	})
	require.Equal(t, ViewInbox, m.State().Active())
	require.Equal(t, model.MailboxInbox, m.State().Mailbox())
}
