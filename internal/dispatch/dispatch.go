// Package dispatch routes activated elements to view controller operations.
// Views never interpret a Target themselves; they emit a ClickMsg and the
// root model hands it to Dispatch.
package dispatch

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
)

// ClickMsg is emitted by a view when the user activates an element.
type ClickMsg struct {
	Target model.Target
}

// Click returns a command emitting a ClickMsg for target.
func Click(target model.Target) tea.Cmd {
	return func() tea.Msg { return ClickMsg{Target: target} }
}

// ComposeRequestMsg asks the controller to open the compose view with a
// prefill. Generation is the controller generation the request was issued
// under; the controller drops the request if it has moved on.
type ComposeRequestMsg struct {
	Generation uint64
	Prefill    model.ComposeFields
}

// ReplyFailedMsg reports that the message being replied to could not be
// fetched.
type ReplyFailedMsg struct {
	Generation uint64
	MessageID  model.MessageID
	Err        error
}

// Controller is the part of the view controller the dispatcher drives.
type Controller interface {
	ShowDetail(id model.MessageID) tea.Cmd
	ArchiveAction(id model.MessageID, archived bool) tea.Cmd
	Generation() uint64
}

type handler func(ctrl Controller, client mailapi.Client, target model.Target) tea.Cmd

// actions is the closed table of supported actions.
var actions = map[model.Action]handler{
	model.ActionOpen:      openMessage,
	model.ActionArchive:   archive(true),
	model.ActionUnarchive: archive(false),
	model.ActionReply:     reply,
}

// Dispatch looks up target's action and runs its handler. Unknown actions
// and targets without a message id are no-ops.
func Dispatch(ctrl Controller, client mailapi.Client, target model.Target) tea.Cmd {
	h, ok := actions[target.Action]
	if !ok {
		return nil
	}
	if targetID(target) == "" {
		return nil
	}
	return h(ctrl, client, target)
}

// targetID prefers the record attached to a list row over the bare id.
func targetID(target model.Target) model.MessageID {
	if target.Message != nil && target.Message.ID != "" {
		return target.Message.ID
	}
	return target.MessageID
}

func openMessage(ctrl Controller, _ mailapi.Client, target model.Target) tea.Cmd {
	return ctrl.ShowDetail(targetID(target))
}

func archive(archived bool) handler {
	return func(ctrl Controller, _ mailapi.Client, target model.Target) tea.Cmd {
		return ctrl.ArchiveAction(targetID(target), archived)
	}
}

// reply fetches the full message, then asks for the compose view.
func reply(ctrl Controller, client mailapi.Client, target model.Target) tea.Cmd {
	id := targetID(target)
	gen := ctrl.Generation()

	return func() tea.Msg {
		msg, err := client.GetMessage(context.Background(), id)
		if err != nil {
			return ReplyFailedMsg{Generation: gen, MessageID: id, Err: err}
		}
		return ComposeRequestMsg{Generation: gen, Prefill: ReplyPrefill(msg)}
	}
}
