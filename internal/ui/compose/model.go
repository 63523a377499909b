package compose

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/theme"
)

// SubmitMsg is dispatched when the user submits the form.
type SubmitMsg struct {
	Fields model.ComposeFields
}

// CancelMsg is dispatched when the user abandons the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	recipients string
	subject    string
	body       string
}

// Model is the Bubble Tea model for the compose form.
type Model struct {
	form       *huh.Form
	fb         *formBindings
	reply      bool
	submitting bool
	err        string
	width      int
	height     int
}

// New creates a new compose form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start clears the form, or fills it from prefill when one is given.
func (m *Model) Start(prefill *model.ComposeFields) tea.Cmd {
	m.fb.recipients = ""
	m.fb.subject = ""
	m.fb.body = ""
	m.reply = prefill != nil
	if prefill != nil {
		m.fb.recipients = prefill.Recipients
		m.fb.subject = prefill.Subject
		m.fb.body = prefill.Body
	}
	m.err = ""
	m.submitting = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Fields returns the current form values.
func (m Model) Fields() model.ComposeFields {
	return model.ComposeFields{
		Recipients: m.fb.recipients,
		Subject:    m.fb.subject,
		Body:       m.fb.body,
	}
}

// SetError shows text inline and reopens the form with the values the user
// already entered.
func (m *Model) SetError(text string) tea.Cmd {
	m.err = text
	m.submitting = false
	m.form = m.buildForm()
	return m.form.Init()
}

// Err returns the inline error, if any.
func (m Model) Err() string {
	return m.err
}

// Submitting reports whether a submission is in flight.
func (m Model) Submitting() bool {
	return m.submitting
}

// Update handles messages for the compose form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	// esc also discards a submission that is still in flight.
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		return m, func() tea.Msg { return CancelMsg{} }
	}
	if m.submitting {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.submitting = true
		fields := m.Fields()
		return m, func() tea.Msg { return SubmitMsg{Fields: fields} }
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the compose form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Email"
	if m.reply {
		titleText = "Reply"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render(titleText) + "\n"
	if m.err != "" {
		content += theme.ErrorStyle.Render(m.err) + "\n\n"
	}
	if m.submitting {
		content += theme.MutedStyle.Render("Sending... (esc to discard)")
	} else {
		content += m.form.View()
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("To").
				Placeholder("alice@example.com, bob@example.com").
				Value(&m.fb.recipients),
			huh.NewInput().
				Title("Subject").
				Value(&m.fb.subject),
			huh.NewText().
				Title("Body").
				Lines(10).
				Value(&m.fb.body),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight()).WithShowHelp(true)
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 6
	if h < 10 {
		h = 10
	}
	return h
}
