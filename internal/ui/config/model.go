package config

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/mailclient/internal/credential"
	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/theme"
)

// validateTimeout bounds the connection test.
const validateTimeout = 30 * time.Second

// ConfigMode represents the current state of the setup view.
type ConfigMode int

const (
	ModeSelectBackend  ConfigMode = iota // Choose rest or imap
	ModeFormREST                         // REST API form
	ModeFormIMAP                         // IMAP/SMTP form
	ModeValidating                       // Testing connection
	ModeValidateResult                   // Show validation result
)

// DoneMsg signals the setup view should close. Saved is true when the
// configuration was written.
type DoneMsg struct {
	Saved bool
}

// ValidateResultMsg carries the result of a connection test.
type ValidateResultMsg struct {
	Unread int
	Err    error
}

// Options wires the setup view to the outside world.
type Options struct {
	// Path is where the configuration is saved.
	Path string

	// Config is the starting configuration; the view edits a copy.
	Config *model.AppConfig

	// Open builds a client for a candidate configuration.
	Open func(*model.AppConfig) (mailapi.Client, error)

	// SetSecret stores a credential. Defaults to the system keyring.
	SetSecret func(key, value string) error

	// Save writes the configuration. Defaults to model.SaveConfig.
	Save func(path string, cfg *model.AppConfig) error
}

// formValues are the fields huh binds to. They live on the heap so the
// bindings survive copies of Model.
type formValues struct {
	backend string

	baseURL       string
	token         string
	allowInsecure bool

	imapHost string
	imapPort string
	smtpHost string
	smtpPort string
	username string
	password string
	tls      bool
}

// Model is the Bubble Tea model for the backend setup wizard.
type Model struct {
	mode ConfigMode
	opts Options
	cfg  model.AppConfig
	fv   *formValues

	backendForm *huh.Form
	restForm    *huh.Form
	imapForm    *huh.Form

	validError error
	unread     int
	spinner    spinner.Model

	width, height int
}

// New creates a setup view seeded from opts.Config.
func New(opts Options, width, height int) Model {
	if opts.SetSecret == nil {
		opts.SetSecret = credential.Set
	}
	if opts.Save == nil {
		opts.Save = model.SaveConfig
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	cfg := *opts.Config
	m := Model{
		mode:    ModeSelectBackend,
		opts:    opts,
		cfg:     cfg,
		spinner: sp,
		width:   width,
		height:  height,
		fv: &formValues{
			backend:       string(cfg.Backend),
			baseURL:       cfg.API.BaseURL,
			allowInsecure: cfg.API.AllowInsecure,
			imapHost:      cfg.IMAP.IMAPHost,
			imapPort:      cfg.IMAP.IMAPPort,
			smtpHost:      cfg.IMAP.SMTPHost,
			smtpPort:      cfg.IMAP.SMTPPort,
			username:      cfg.IMAP.Username,
			tls:           cfg.IMAP.TLS,
		},
	}
	m.backendForm = m.buildBackendForm()
	return m
}

// Init starts the backend selection form.
func (m Model) Init() tea.Cmd {
	return m.backendForm.Init()
}

// Mode returns the current mode.
func (m Model) Mode() ConfigMode {
	return m.mode
}

// Config returns the configuration being edited.
func (m Model) Config() model.AppConfig {
	return m.cfg
}

// Update handles messages and dispatches based on current mode.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ValidateResultMsg:
		m.validError = msg.Err
		m.unread = msg.Unread
		m.mode = ModeValidateResult
		return m, nil

	case spinner.TickMsg:
		if m.mode == ModeValidating {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, done(false)
		}
		switch m.mode {
		case ModeValidating:
			if msg.String() == "esc" {
				return m.backToForm()
			}
			return m, nil
		case ModeValidateResult:
			return m.handleValidateResultKeys(msg)
		}
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleValidateResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		if m.validError == nil {
			return m, done(true)
		}
		return m.backToForm()
	case "r":
		if m.validError != nil {
			return m.startValidation()
		}
	}
	return m, nil
}

func (m Model) updateActiveForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	var form **huh.Form
	switch m.mode {
	case ModeSelectBackend:
		form = &m.backendForm
	case ModeFormREST:
		form = &m.restForm
	case ModeFormIMAP:
		form = &m.imapForm
	default:
		return m, nil
	}
	if *form == nil {
		return m, nil
	}

	mdl, cmd := (*form).Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		*form = f
	}

	switch (*form).State {
	case huh.StateAborted:
		if m.mode == ModeSelectBackend {
			return m, done(false)
		}
		m.mode = ModeSelectBackend
		m.backendForm = m.buildBackendForm()
		return m, m.backendForm.Init()

	case huh.StateCompleted:
		if m.mode == ModeSelectBackend {
			return m.handleBackendSelected()
		}
		return m.startValidation()
	}

	return m, cmd
}

func (m Model) handleBackendSelected() (tea.Model, tea.Cmd) {
	if model.Backend(m.fv.backend) == model.BackendIMAP {
		m.mode = ModeFormIMAP
		m.imapForm = m.buildIMAPForm()
		return m, m.imapForm.Init()
	}
	m.mode = ModeFormREST
	m.restForm = m.buildRESTForm()
	return m, m.restForm.Init()
}

// backToForm reopens the backend form with the values entered so far.
func (m Model) backToForm() (tea.Model, tea.Cmd) {
	m.validError = nil
	return m.handleBackendSelected()
}

// --- Forms ---

func (m Model) buildBackendForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Mail Backend").
				Description("Where your mail lives").
				Options(
					huh.NewOption("Mail API - JSON over HTTP(S)", string(model.BackendREST)),
					huh.NewOption("IMAP/SMTP - any standard mail account", string(model.BackendIMAP)),
				).
				Value(&m.fv.backend),
		),
	).WithWidth(m.formWidth())
}

func (m Model) buildRESTForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Base URL").
				Description("Mail API URL (e.g., https://mail.example.com)").
				Placeholder("https://mail.example.com").
				Value(&m.fv.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("API Token").
				Description("Leave empty if the API needs no token").
				EchoMode(huh.EchoModePassword).
				Value(&m.fv.token),
			huh.NewConfirm().
				Title("Allow plain HTTP?").
				Description("Only for trusted networks such as localhost").
				Value(&m.fv.allowInsecure),
		),
	).WithWidth(m.formWidth())
}

func (m Model) buildIMAPForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("IMAP Host").
				Placeholder("imap.example.com").
				Value(&m.fv.imapHost).
				Validate(validateRequired("IMAP Host")),
			huh.NewInput().
				Title("IMAP Port").
				Placeholder("993").
				Value(&m.fv.imapPort).
				Validate(validatePort),
			huh.NewInput().
				Title("SMTP Host").
				Placeholder("smtp.example.com").
				Value(&m.fv.smtpHost).
				Validate(validateRequired("SMTP Host")),
			huh.NewInput().
				Title("SMTP Port").
				Placeholder("587").
				Value(&m.fv.smtpPort).
				Validate(validatePort),
			huh.NewInput().
				Title("Username").
				Placeholder("user@example.com").
				Value(&m.fv.username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				Description("Account password or app password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fv.password).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("Use TLS?").
				Value(&m.fv.tls),
		),
	).WithWidth(m.formWidth())
}

// --- Validation ---

// applyForm copies the form values into cfg and returns the secret to store.
func (m *Model) applyForm() (key, secret string) {
	fv := m.fv
	m.cfg.Backend = model.Backend(fv.backend)

	if m.cfg.Backend == model.BackendIMAP {
		m.cfg.IMAP.IMAPHost = strings.TrimSpace(fv.imapHost)
		m.cfg.IMAP.IMAPPort = strings.TrimSpace(fv.imapPort)
		m.cfg.IMAP.SMTPHost = strings.TrimSpace(fv.smtpHost)
		m.cfg.IMAP.SMTPPort = strings.TrimSpace(fv.smtpPort)
		m.cfg.IMAP.Username = strings.TrimSpace(fv.username)
		m.cfg.IMAP.TLS = fv.tls
		return credential.IMAPPasswordKey, fv.password
	}

	m.cfg.API.BaseURL = strings.TrimSpace(fv.baseURL)
	m.cfg.API.AllowInsecure = fv.allowInsecure
	return credential.APITokenKey, fv.token
}

func (m Model) startValidation() (tea.Model, tea.Cmd) {
	key, secret := m.applyForm()
	m.mode = ModeValidating
	m.validError = nil
	return m, tea.Batch(m.spinner.Tick, m.validateAndSave(key, secret))
}

// validateAndSave stores the secret, checks the backend answers an inbox
// listing and writes the configuration.
func (m Model) validateAndSave(key, secret string) tea.Cmd {
	opts := m.opts
	cfg := m.cfg
	return func() tea.Msg {
		if err := cfg.Validate(); err != nil {
			return ValidateResultMsg{Err: err}
		}

		// An empty token keeps whatever is stored.
		if secret != "" {
			if err := opts.SetSecret(key, secret); err != nil {
				return ValidateResultMsg{Err: fmt.Errorf("saving credential: %w", err)}
			}
		}

		client, err := opts.Open(&cfg)
		if err != nil {
			return ValidateResultMsg{Err: err}
		}

		ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
		defer cancel()

		msgs, err := client.ListMailbox(ctx, model.MailboxInbox)
		if err != nil {
			return ValidateResultMsg{Err: err}
		}

		if err := opts.Save(opts.Path, &cfg); err != nil {
			return ValidateResultMsg{Err: fmt.Errorf("connection OK but save failed: %w", err)}
		}

		unread := 0
		for _, msg := range msgs {
			if !msg.Read {
				unread++
			}
		}
		return ValidateResultMsg{Unread: unread}
	}
}

func done(saved bool) tea.Cmd {
	return func() tea.Msg { return DoneMsg{Saved: saved} }
}

// --- Views ---

// View renders the setup view.
func (m Model) View() string {
	switch m.mode {
	case ModeValidating:
		return m.viewValidating()
	case ModeValidateResult:
		return m.viewValidateResult()
	case ModeFormREST:
		return m.viewForm("Mail API", m.restForm)
	case ModeFormIMAP:
		return m.viewForm("IMAP/SMTP Account", m.imapForm)
	default:
		return m.viewForm("Setup", m.backendForm)
	}
}

func (m Model) viewForm(title string, form *huh.Form) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorBlue).
		MarginBottom(1)

	body := ""
	if form != nil {
		body = form.View()
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(titleStyle.Render(title) + "\n" + body)
}

func (m Model) viewValidating() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	content := fmt.Sprintf(
		"%s Testing connection...\n\nPress esc to cancel.",
		m.spinner.View(),
	)

	return style.Render(content)
}

func (m Model) viewValidateResult() string {
	style := lipgloss.NewStyle().
		Padding(1, 2).
		Width(m.width).
		Height(m.height)

	var content string
	if m.validError != nil {
		errStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorRed)
		content = errStyle.Render("Connection failed") + "\n\n" +
			m.validError.Error() + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("r retry | enter/esc back")
	} else {
		okStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.ColorGreen)
		content = okStyle.Render("Connection successful") + "\n\n" +
			fmt.Sprintf("%d unread in inbox. Saved to %s", m.unread, m.opts.Path) + "\n\n" +
			lipgloss.NewStyle().Foreground(theme.ColorGray).
				Render("enter done")
	}

	return style.Render(content)
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

// --- Field validators ---

func validateRequired(fieldName string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validatePort(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("port is required")
	}
	for _, c := range strings.TrimSpace(s) {
		if c < '0' || c > '9' {
			return fmt.Errorf("port must be a number")
		}
	}
	return nil
}
