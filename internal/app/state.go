package app

import (
	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/nhle/mailclient/internal/model"
)

// View is one of the mutually exclusive main views. Exactly one is active
// at any time.
type View int

const (
	ViewInbox View = iota
	ViewSent
	ViewArchive
	ViewCompose
	ViewDetail
)

// Views lists every main view.
var Views = []View{ViewInbox, ViewSent, ViewArchive, ViewCompose, ViewDetail}

func (v View) String() string {
	switch v {
	case ViewInbox:
		return "inbox"
	case ViewSent:
		return "sent"
	case ViewArchive:
		return "archive"
	case ViewCompose:
		return "compose"
	case ViewDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// IsMailbox reports whether v shows a mailbox list.
func (v View) IsMailbox() bool {
	return v == ViewInbox || v == ViewSent || v == ViewArchive
}

// viewFor maps a mailbox to the list view that shows it.
func viewFor(mb model.Mailbox) View {
	switch mb {
	case model.MailboxSent:
		return ViewSent
	case model.MailboxArchive:
		return ViewArchive
	default:
		return ViewInbox
	}
}

// Overlay is a panel drawn in place of the active view without changing it.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayHelp
	OverlayCommand
)

// ViewState is owned by the root model; nothing else writes it.
type ViewState struct {
	active   View
	mailbox  model.Mailbox
	selected fn.Option[model.Message]

	// generation increases on every transition. Async results carry the
	// generation they were issued under and are dropped when it no longer
	// matches.
	generation uint64
}

func newViewState() ViewState {
	return ViewState{
		active:   ViewInbox,
		mailbox:  model.MailboxInbox,
		selected: fn.None[model.Message](),
	}
}

// Active returns the visible view.
func (s ViewState) Active() View {
	return s.active
}

// Mailbox returns the last mailbox shown as a list. It survives detail and
// compose visits so the detail view can pick its archive control.
func (s ViewState) Mailbox() model.Mailbox {
	return s.mailbox
}

// Selected returns the message shown in the detail view, if any.
func (s ViewState) Selected() fn.Option[model.Message] {
	return s.selected
}

// Generation returns the current transition counter.
func (s ViewState) Generation() uint64 {
	return s.generation
}

// current reports whether a result issued under gen may still be rendered.
func (s ViewState) current(gen uint64) bool {
	return s.generation == gen
}

// enter makes v the active view and returns the new generation.
func (s *ViewState) enter(v View) uint64 {
	s.active = v
	s.selected = fn.None[model.Message]()
	s.generation++
	return s.generation
}
