package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailclient/internal/dispatch"
	"github.com/nhle/mailclient/internal/export"
	"github.com/nhle/mailclient/internal/keys"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/render"
	"github.com/nhle/mailclient/internal/theme"
)

// BackMsg signals the parent to navigate back to the current mailbox.
type BackMsg struct{}

// RetryMsg asks the parent to load the message again after a failure.
type RetryMsg struct {
	MessageID model.MessageID
}

// ExportedMsg reports the result of writing the message to an .eml file.
type ExportedMsg struct {
	Path string
	Err  error
}

// Model is the message detail view component.
type Model struct {
	view      *render.DetailView
	message   model.Message
	messageID model.MessageID
	focus     int
	viewport  viewport.Model
	spinner   spinner.Model
	keys      *keys.KeyMap
	exportDir string
	notice    string
	width     int
	height    int
	loading   bool
	err       error
}

// New creates a new detail view model. Exports are written to exportDir.
func New(k *keys.KeyMap, exportDir string, width, height int) Model {
	vp := viewport.New(width, height-4)
	vp.Style = lipgloss.NewStyle()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		viewport:  vp,
		spinner:   sp,
		keys:      k,
		exportDir: exportDir,
		width:     width,
		height:    height,
	}
}

// StartLoading clears the previous message and shows a spinner for id.
func (m *Model) StartLoading(id model.MessageID) tea.Cmd {
	m.view = nil
	m.message = model.Message{}
	m.messageID = id
	m.focus = 0
	m.notice = ""
	m.err = nil
	m.loading = true
	return m.spinner.Tick
}

// SetView shows a rendered message. msg is kept for exporting.
func (m *Model) SetView(view render.DetailView, msg model.Message) {
	m.view = &view
	m.message = msg
	m.messageID = msg.ID
	m.loading = false
	m.err = nil
	m.focus = 0
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetError shows err inline with a retry hint.
func (m *Model) SetError(err error) {
	m.loading = false
	m.err = err
}

// Loading reports whether a load is in flight.
func (m Model) Loading() bool {
	return m.loading
}

// Err returns the error of the last load, if any.
func (m Model) Err() error {
	return m.err
}

// Controls returns the controls of the message shown, or nil.
func (m Model) Controls() []render.Control {
	if m.view == nil {
		return nil
	}
	return m.view.Controls
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case ExportedMsg:
		if msg.Err != nil {
			m.notice = theme.ErrorStyle.Render("Export failed: " + msg.Err.Error())
		} else {
			m.notice = theme.MutedStyle.Render("Saved to " + msg.Path)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg { return BackMsg{} }
		}

		if m.err != nil {
			if key.Matches(msg, m.keys.Refresh) {
				id := m.messageID
				return m, func() tea.Msg { return RetryMsg{MessageID: id} }
			}
			return m, nil
		}

		if m.view == nil {
			return m, nil
		}

		switch {
		case key.Matches(msg, m.keys.NextControl):
			m.focus = (m.focus + 1) % len(m.view.Controls)
			return m, nil

		case key.Matches(msg, m.keys.PrevControl):
			m.focus = (m.focus - 1 + len(m.view.Controls)) % len(m.view.Controls)
			return m, nil

		case key.Matches(msg, m.keys.Select):
			return m, dispatch.Click(m.view.Controls[m.focus].Target())

		case key.Matches(msg, m.keys.ArchiveMsg):
			return m, m.activate(model.ActionArchive)

		case key.Matches(msg, m.keys.Unarchive):
			return m, m.activate(model.ActionUnarchive)

		case key.Matches(msg, m.keys.Reply):
			return m, m.activate(model.ActionReply)

		case key.Matches(msg, m.keys.Export):
			return m, m.exportMessage()
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// activate clicks the control for action when the message offers it.
func (m Model) activate(action model.Action) tea.Cmd {
	for _, c := range m.view.Controls {
		if c.Action == action {
			return dispatch.Click(c.Target())
		}
	}
	return nil
}

func (m Model) exportMessage() tea.Cmd {
	msg := m.message
	dir := m.exportDir
	return func() tea.Msg {
		path, err := export.SaveToDir(dir, msg)
		return ExportedMsg{Path: path, Err: err}
	}
}

// View renders the detail view.
func (m Model) View() string {
	centered := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return centered.Render(m.spinner.View() + " Loading message...")
	}

	if m.err != nil {
		return centered.Render(
			theme.ErrorStyle.Render(fmt.Sprintf("Could not load message: %v", m.err)) +
				"\n\n" + theme.HelpStyle.Render("r retry | esc back"),
		)
	}

	if m.view == nil {
		return centered.Render("No message selected")
	}

	parts := []string{m.viewport.View(), m.renderControls()}
	if m.notice != "" {
		parts = append(parts, m.notice)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderControls draws the control bar with the focused control highlighted.
func (m Model) renderControls() string {
	buttons := make([]string, 0, len(m.view.Controls))
	for i, c := range m.view.Controls {
		style := theme.ControlStyle
		if i == m.focus {
			style = theme.FocusedControlStyle
		}
		buttons = append(buttons, style.Render(c.Label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, buttons...)
}

// renderContent builds the header block and body for the viewport.
func (m Model) renderContent() string {
	if m.view == nil {
		return ""
	}

	v := m.view
	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)

	field := func(label, value string) string {
		return fmt.Sprintf("%s %s", metaStyle.Render(fmt.Sprintf("%-10s", label+":")), valStyle.Render(value))
	}

	subject := v.Subject
	if subject == "" {
		subject = "(no subject)"
	}

	sections := []string{
		field("From", v.Sender),
		field("To", v.Recipients),
		field("Subject", subject),
		field("Timestamp", v.Timestamp),
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 0)))
	sections = append(sections, "", separator, "")

	body := v.Body
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No content")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-4, 20)).Render(body))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 4
	if m.view != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
