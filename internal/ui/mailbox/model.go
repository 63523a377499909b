package mailbox

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailclient/internal/dispatch"
	"github.com/nhle/mailclient/internal/keys"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/render"
	"github.com/nhle/mailclient/internal/theme"
)

// RefreshMsg asks the parent to reload the current mailbox.
type RefreshMsg struct{}

// Model is the mailbox list view component.
type Model struct {
	list    list.Model
	spinner spinner.Model
	keys    *keys.KeyMap
	mailbox model.Mailbox
	loading bool
	err     error
	width   int
	height  int
}

// New creates a new mailbox list model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, RowDelegate{}, width, height-2)
	l.SetShowTitle(false)
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.SetStatusBarItemName("message", "messages")

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorBlue)

	return Model{
		list:    l,
		spinner: sp,
		keys:    k,
		width:   width,
		height:  height,
	}
}

// StartLoading shows the loading header for mb and drops the old rows.
func (m *Model) StartLoading(mb model.Mailbox) tea.Cmd {
	m.mailbox = mb
	m.loading = true
	m.err = nil
	m.list.ResetSelected()
	return tea.Batch(m.list.SetItems(nil), m.spinner.Tick)
}

// SetRows replaces the rendered rows.
func (m *Model) SetRows(rows []render.Row) tea.Cmd {
	m.loading = false
	m.err = nil

	items := make([]list.Item, len(rows))
	for i, row := range rows {
		items[i] = RowItem{Row: row}
	}
	return m.list.SetItems(items)
}

// SetError shows err inline in place of the rows.
func (m *Model) SetError(err error) {
	m.loading = false
	m.err = err
}

// Mailbox returns the mailbox the view is showing.
func (m Model) Mailbox() model.Mailbox {
	return m.mailbox
}

// Loading reports whether a load is in flight.
func (m Model) Loading() bool {
	return m.loading
}

// Err returns the error of the last load, if any.
func (m Model) Err() error {
	return m.err
}

// Rows returns the rows currently shown.
func (m Model) Rows() []render.Row {
	items := m.list.Items()
	rows := make([]render.Row, 0, len(items))
	for _, it := range items {
		if ri, ok := it.(RowItem); ok {
			rows = append(rows, ri.Row)
		}
	}
	return rows
}

// Update handles messages for the mailbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Select):
			if m.loading || m.err != nil {
				return m, nil
			}
			item, ok := m.list.SelectedItem().(RowItem)
			if !ok {
				return m, nil
			}
			return m, dispatch.Click(item.Row.Target())

		case key.Matches(msg, m.keys.Refresh):
			return m, func() tea.Msg { return RefreshMsg{} }
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the mailbox header followed by the rows, the loading
// indicator or the inline error.
func (m Model) View() string {
	header := theme.HeaderStyle.Render(render.MailboxHeader(m.mailbox))

	var body string
	switch {
	case m.loading:
		body = m.centered(m.spinner.View() + " Loading " + string(m.mailbox) + "...")
	case m.err != nil:
		body = m.centered(
			theme.ErrorStyle.Render(fmt.Sprintf("Could not load %s: %v", m.mailbox, m.err)) +
				"\n\n" + theme.HelpStyle.Render("r retry"),
		)
	case len(m.list.Items()) == 0:
		body = m.centered("")
	default:
		body = m.list.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body)
}

func (m Model) centered(s string) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height - 2).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(s)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
