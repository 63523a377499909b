package app

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/gologme/log"

	"github.com/nhle/mailclient/internal/dispatch"
	"github.com/nhle/mailclient/internal/keys"
	"github.com/nhle/mailclient/internal/logging"
	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/render"
	appsync "github.com/nhle/mailclient/internal/sync"
	"github.com/nhle/mailclient/internal/ui"
	"github.com/nhle/mailclient/internal/ui/command"
	"github.com/nhle/mailclient/internal/ui/compose"
	"github.com/nhle/mailclient/internal/ui/detail"
	helpview "github.com/nhle/mailclient/internal/ui/help"
	"github.com/nhle/mailclient/internal/ui/mailbox"
)

// Options configures the root model.
type Options struct {
	// Poller reports the unread inbox count. Nil disables the counter.
	Poller *appsync.Poller

	// Logger receives controller logs. Nil discards them.
	Logger *log.Logger

	// ExportDir is where the detail view saves .eml files.
	ExportDir string
}

// Model is the root Bubble Tea model. It is the view controller: it owns
// ViewState, drives the mail client and decides what the user sees.
type Model struct {
	state            ViewState
	overlay          Overlay
	client           mailapi.Client
	log              *log.Logger
	keys             *keys.KeyMap
	layout           ui.Layout
	mailboxView      mailbox.Model
	detailView       detail.Model
	composeView      compose.Model
	helpView         helpview.Model
	commandView      command.Model
	poller           *appsync.Poller
	initCmd          tea.Cmd
	ready            bool
	unreadCount      int
	statusErr        string
	authErrorMessage string
}

// New creates the root model showing the inbox.
func New(client mailapi.Client, opts Options) Model {
	k := keys.DefaultKeyMap()

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	m := Model{
		state:       newViewState(),
		client:      client,
		log:         logger,
		keys:        k,
		mailboxView: mailbox.New(k, 80, 24),
		detailView:  detail.New(k, opts.ExportDir, 80, 24),
		composeView: compose.New(80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		poller:      opts.Poller,
	}
	m.initCmd = m.ShowMailbox(model.MailboxInbox)

	return m
}

// State returns a copy of the view state.
func (m Model) State() ViewState {
	return m.state
}

// Overlay returns the panel drawn over the active view, if any.
func (m Model) Overlay() Overlay {
	return m.overlay
}

// Init loads the inbox and starts the unread poller.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.initCmd}
	if m.poller != nil {
		cmds = append(cmds, m.poller.Start())
	}
	return tea.Batch(cmds...)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.mailboxView.SetSize(contentWidth, contentHeight)
		m.detailView.SetSize(contentWidth, contentHeight)
		m.composeView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case spinner.TickMsg:
		// Each spinner ignores ticks carrying another spinner's id.
		var c1, c2 tea.Cmd
		m.mailboxView, c1 = m.mailboxView.Update(msg)
		m.detailView, c2 = m.detailView.Update(msg)
		return m, tea.Batch(c1, c2)

	case mailboxLoadedMsg:
		cmd := m.handleMailboxLoaded(msg)
		return m, cmd

	case detailLoadedMsg:
		cmd := m.handleDetailLoaded(msg)
		return m, cmd

	case composeResultMsg:
		cmd := m.handleComposeResult(msg)
		return m, cmd

	case archiveResultMsg:
		cmd := m.handleArchiveResult(msg)
		return m, cmd

	case dispatch.ClickMsg:
		cmd := dispatch.Dispatch(&m, m.client, msg.Target)
		return m, cmd

	case dispatch.ComposeRequestMsg:
		if !m.state.current(msg.Generation) {
			m.log.Debugf("dropping stale reply prefill (generation %d, now %d)",
				msg.Generation, m.state.generation)
			return m, nil
		}
		prefill := msg.Prefill
		cmd := m.ShowCompose(&prefill)
		return m, cmd

	case dispatch.ReplyFailedMsg:
		if !m.state.current(msg.Generation) {
			return m, nil
		}
		m.log.Errorf("fetching %s for reply: %v", msg.MessageID, msg.Err)
		m.noteAuthError(msg.Err)
		m.statusErr = fmt.Sprintf("Could not load message for reply: %v", msg.Err)
		return m, nil

	case mailbox.RefreshMsg:
		if m.poller != nil {
			m.poller.Refresh()
		}
		cmd := m.ShowMailbox(m.state.mailbox)
		return m, cmd

	case detail.BackMsg:
		cmd := m.ShowMailbox(m.state.mailbox)
		return m, cmd

	case detail.RetryMsg:
		cmd := m.ShowDetail(msg.MessageID)
		return m, cmd

	case detail.ExportedMsg:
		if msg.Err != nil {
			m.log.Errorf("exporting message: %v", msg.Err)
		} else {
			m.log.Infof("exported message to %s", msg.Path)
		}
		var cmd tea.Cmd
		m.detailView, cmd = m.detailView.Update(msg)
		return m, cmd

	case compose.SubmitMsg:
		cmd := m.SubmitCompose(msg.Fields)
		return m, cmd

	case compose.CancelMsg:
		cmd := m.ShowMailbox(m.state.mailbox)
		return m, cmd

	case command.CommandMsg:
		m.overlay = OverlayNone
		cmd := m.executeCommand(string(msg))
		return m, cmd

	case appsync.UnreadMsg:
		switch {
		case msg.Error == nil:
			m.unreadCount = msg.Count
			m.authErrorMessage = ""
		case msg.Auth:
			m.authErrorMessage = authFailedMessage
		}
		if m.poller == nil {
			return m, nil
		}
		return m, m.poller.WaitForNextResult()

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey handles keys that work across views. Keys typed into the
// compose form or the command palette are left to them.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m.quit(), true
	}

	switch m.overlay {
	case OverlayCommand:
		if key.Matches(msg, m.keys.Back) {
			m.overlay = OverlayNone
			return nil, true
		}
		return nil, false

	case OverlayHelp:
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) {
			m.overlay = OverlayNone
		}
		return nil, true
	}

	if m.state.active == ViewCompose {
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.state.active.IsMailbox() {
			return m.quit(), true
		}

	case key.Matches(msg, m.keys.Help):
		m.overlay = OverlayHelp
		return nil, true

	case key.Matches(msg, m.keys.Command):
		m.overlay = OverlayCommand
		return m.commandView.Focus(), true

	case key.Matches(msg, m.keys.Inbox):
		return m.ShowMailbox(model.MailboxInbox), true

	case key.Matches(msg, m.keys.Sent):
		return m.ShowMailbox(model.MailboxSent), true

	case key.Matches(msg, m.keys.Archive):
		return m.ShowMailbox(model.MailboxArchive), true

	case key.Matches(msg, m.keys.Compose):
		return m.ShowCompose(nil), true
	}

	return nil, false
}

func (m *Model) quit() tea.Cmd {
	if m.poller != nil {
		m.poller.Stop()
	}
	return tea.Quit
}

// updateActiveView dispatches the message to the visible view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.overlay {
	case OverlayHelp:
		m.helpView, cmd = m.helpView.Update(msg)
		return m, cmd
	case OverlayCommand:
		m.commandView, cmd = m.commandView.Update(msg)
		return m, cmd
	}

	switch m.state.active {
	case ViewInbox, ViewSent, ViewArchive:
		m.mailboxView, cmd = m.mailboxView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewCompose:
		m.composeView, cmd = m.composeView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(ui.Header{
		Mailbox: m.state.mailbox,
		Unread:  m.unreadCount,
		Sync:    m.syncStatus(),
	})
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.status())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns exactly one view container, or the overlay drawn
// in its place.
func (m Model) renderContent() string {
	switch m.overlay {
	case OverlayHelp:
		return m.helpView.View()
	case OverlayCommand:
		return m.commandView.View()
	}

	switch m.state.active {
	case ViewInbox, ViewSent, ViewArchive:
		return m.mailboxView.View()
	case ViewDetail:
		return m.detailView.View()
	case ViewCompose:
		return m.composeView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the unread poller.
func (m Model) syncStatus() string {
	if m.poller == nil || !m.poller.Enabled() {
		return ""
	}

	st := m.poller.Status()
	switch st.State {
	case appsync.SyncRunning:
		return "checking..."
	case appsync.SyncError:
		return "⚠ unreachable"
	default:
		if st.LastSync.IsZero() {
			return "idle"
		}
		return "checked " + st.LastSync.Format("15:04")
	}
}

// status returns the status bar contents. A credentials problem is shown
// on mailbox views; other errors until the next navigation.
func (m Model) status() ui.Status {
	s := ui.Status{Hints: m.keyHints()}
	switch {
	case m.authErrorMessage != "" && m.state.active.IsMailbox():
		s.Err = m.authErrorMessage
	case m.statusErr != "":
		s.Err = m.statusErr
	}
	return s
}

// keyHints returns keyboard shortcut hints for the visible view.
func (m Model) keyHints() string {
	switch m.overlay {
	case OverlayHelp:
		return "? close help | esc back"
	case OverlayCommand:
		return "enter execute | esc back"
	}

	switch m.state.active {
	case ViewDetail:
		return m.detailHints()
	case ViewCompose:
		return "tab next field | enter submit | esc cancel"
	default:
		return "enter open | i inbox | s sent | A archive | c compose | r refresh | ? help | q quit"
	}
}

func (m Model) detailHints() string {
	hints := "esc back | tab focus | enter activate"
	v := render.DetailView{Controls: m.detailView.Controls()}
	if v.Has(model.ActionArchive) {
		hints += " | a archive"
	}
	if v.Has(model.ActionUnarchive) {
		hints += " | u unarchive"
	}
	if v.Has(model.ActionReply) {
		hints += " | r reply | e export"
	}
	return hints
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "inbox":
		return m.ShowMailbox(model.MailboxInbox)
	case "sent":
		return m.ShowMailbox(model.MailboxSent)
	case "archive":
		return m.ShowMailbox(model.MailboxArchive)
	case "compose", "new":
		return m.ShowCompose(nil)
	case "refresh", "sync":
		if m.poller != nil {
			m.poller.Refresh()
		}
		if m.state.active.IsMailbox() {
			return m.ShowMailbox(m.state.mailbox)
		}
		return nil
	case "quit", "q":
		return m.quit()
	default:
		m.statusErr = fmt.Sprintf("Unknown command: %s", cmd)
		return nil
	}
}
