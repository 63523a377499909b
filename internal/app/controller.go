package app

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lightningnetwork/lnd/fn/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/render"
	appsync "github.com/nhle/mailclient/internal/sync"
)

// mailboxLoadedMsg carries the result of listing a mailbox.
type mailboxLoadedMsg struct {
	generation uint64
	mailbox    model.Mailbox
	messages   []model.Message
	err        error
}

// detailLoadedMsg carries the joined result of fetching a message and
// marking it read.
type detailLoadedMsg struct {
	generation uint64
	id         model.MessageID
	message    model.Message
	err        error
	markErr    error
}

// composeResultMsg carries the backend's answer to a compose submission.
type composeResultMsg struct {
	generation uint64
	result     model.CreateResult
	err        error
}

// archiveResultMsg carries the result of an archive or unarchive update.
type archiveResultMsg struct {
	generation uint64
	id         model.MessageID
	archived   bool
	err        error
}

// transition activates v, closing any overlay and clearing the status
// line. It returns the new generation.
func (m *Model) transition(v View) uint64 {
	m.overlay = OverlayNone
	m.statusErr = ""
	return m.state.enter(v)
}

// Generation returns the current transition counter.
func (m *Model) Generation() uint64 {
	return m.state.generation
}

// ShowMailbox shows the loading header for mb at once and lists it in the
// background.
func (m *Model) ShowMailbox(mb model.Mailbox) tea.Cmd {
	gen := m.transition(viewFor(mb))
	m.state.mailbox = mb

	loading := m.mailboxView.StartLoading(mb)

	client := m.client
	return tea.Batch(loading, func() tea.Msg {
		msgs, err := client.ListMailbox(context.Background(), mb)
		return mailboxLoadedMsg{
			generation: gen,
			mailbox:    mb,
			messages:   msgs,
			err:        err,
		}
	})
}

// ShowCompose opens the compose view, empty or filled from prefill.
func (m *Model) ShowCompose(prefill *model.ComposeFields) tea.Cmd {
	m.transition(ViewCompose)
	return m.composeView.Start(prefill)
}

// ShowDetail opens the detail view for id. The message fetch and the
// mark-read update run concurrently and the view renders only after both
// have settled.
func (m *Model) ShowDetail(id model.MessageID) tea.Cmd {
	gen := m.transition(ViewDetail)

	loading := m.detailView.StartLoading(id)

	client := m.client
	return tea.Batch(loading, func() tea.Msg {
		msg, markErr, err := fetchDetail(context.Background(), client, id)
		return detailLoadedMsg{
			generation: gen,
			id:         id,
			message:    msg,
			err:        err,
			markErr:    markErr,
		}
	})
}

// fetchDetail waits for both calls. The mark-read failure is returned
// before the fetch error and never cancels the fetch.
func fetchDetail(
	ctx context.Context,
	client mailapi.Client,
	id model.MessageID,
) (model.Message, error, error) {
	var (
		g       errgroup.Group
		msg     model.Message
		markErr error
	)

	g.Go(func() error {
		var err error
		msg, err = client.GetMessage(ctx, id)
		return err
	})
	g.Go(func() error {
		markErr = client.UpdateMessage(ctx, id, model.MarkRead())
		return nil
	})

	err := g.Wait()
	return msg, markErr, err
}

// SubmitCompose sends fields. Missing recipients are rejected locally
// without a network call.
func (m *Model) SubmitCompose(fields model.ComposeFields) tea.Cmd {
	if len(fields.RecipientList()) == 0 {
		return m.composeView.SetError(mailapi.ErrNoRecipients.Error())
	}

	gen := m.state.generation
	client := m.client
	return func() tea.Msg {
		res, err := client.CreateMessage(context.Background(), fields)
		return composeResultMsg{generation: gen, result: res, err: err}
	}
}

// ArchiveAction sets the archived flag of id and, on success, shows the
// inbox.
func (m *Model) ArchiveAction(id model.MessageID, archived bool) tea.Cmd {
	gen := m.state.generation
	client := m.client
	return func() tea.Msg {
		err := client.UpdateMessage(
			context.Background(), id, model.SetArchived(archived),
		)
		return archiveResultMsg{
			generation: gen,
			id:         id,
			archived:   archived,
			err:        err,
		}
	}
}

func (m *Model) handleMailboxLoaded(msg mailboxLoadedMsg) tea.Cmd {
	if !m.state.current(msg.generation) {
		m.log.Debugf("dropping stale %s listing (generation %d, now %d)",
			msg.mailbox, msg.generation, m.state.generation)
		return nil
	}

	if msg.err != nil {
		m.log.Errorf("listing %s: %v", msg.mailbox, msg.err)
		m.noteAuthError(msg.err)
		m.mailboxView.SetError(msg.err)
		return nil
	}

	if msg.mailbox == model.MailboxInbox {
		m.unreadCount = appsync.CountUnread(msg.messages)
	}
	return m.mailboxView.SetRows(render.MailboxList(msg.messages))
}

func (m *Model) handleDetailLoaded(msg detailLoadedMsg) tea.Cmd {
	if !m.state.current(msg.generation) {
		m.log.Debugf("dropping stale detail for %s (generation %d, now %d)",
			msg.id, msg.generation, m.state.generation)
		return nil
	}

	if msg.markErr != nil {
		m.log.Warnf("marking %s read: %v", msg.id, msg.markErr)
	}

	if msg.err != nil {
		m.log.Errorf("fetching %s: %v", msg.id, msg.err)
		m.noteAuthError(msg.err)
		m.detailView.SetError(msg.err)
		return nil
	}

	m.state.selected = fn.Some(msg.message)
	m.detailView.SetView(render.Detail(msg.message, m.state.mailbox), msg.message)

	if msg.markErr == nil && !msg.message.Read && m.poller != nil {
		m.poller.Refresh()
	}
	return nil
}

func (m *Model) handleComposeResult(msg composeResultMsg) tea.Cmd {
	if !m.state.current(msg.generation) {
		m.log.Debugf("compose result arrived after leaving compose (generation %d, now %d)",
			msg.generation, m.state.generation)
		return nil
	}

	if msg.err != nil {
		m.log.Errorf("sending message: %v", msg.err)
		m.noteAuthError(msg.err)
		return m.composeView.SetError(fmt.Sprintf("Could not send: %v", msg.err))
	}

	if !msg.result.OK() {
		m.log.Infof("message rejected: %s", msg.result.Error)
		return m.composeView.SetError(msg.result.Error)
	}

	return m.ShowMailbox(model.MailboxSent)
}

func (m *Model) handleArchiveResult(msg archiveResultMsg) tea.Cmd {
	if !m.state.current(msg.generation) {
		m.log.Debugf("dropping stale archive result for %s (generation %d, now %d)",
			msg.id, msg.generation, m.state.generation)
		return nil
	}

	if msg.err != nil {
		m.log.Errorf("archiving %s: %v", msg.id, msg.err)
		m.noteAuthError(msg.err)
		verb := "archive"
		if !msg.archived {
			verb = "unarchive"
		}
		m.statusErr = fmt.Sprintf("Could not %s message: %v", verb, msg.err)
		return nil
	}

	return m.ShowMailbox(model.MailboxInbox)
}

const authFailedMessage = "Authentication failed. Run 'mailclient token set' to update credentials."

// noteAuthError records a credentials problem for the status bar.
func (m *Model) noteAuthError(err error) {
	if mailapi.IsAuthError(err) {
		m.authErrorMessage = authFailedMessage
	}
}
