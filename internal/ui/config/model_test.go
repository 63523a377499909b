package config

import (
	"errors"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailclient/internal/credential"
	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/tests/testutil"
)

type recorder struct {
	secrets map[string]string
	saved   *model.AppConfig
	opened  *model.AppConfig
}

func newSetup(t *testing.T, client mailapi.Client, openErr error) (Model, *recorder) {
	t.Helper()

	cfg, err := model.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	rec := &recorder{secrets: map[string]string{}}
	m := New(Options{
		Path:   "/tmp/mailclient.yaml",
		Config: cfg,
		Open: func(c *model.AppConfig) (mailapi.Client, error) {
			rec.opened = c
			return client, openErr
		},
		SetSecret: func(key, value string) error {
			rec.secrets[key] = value
			return nil
		},
		Save: func(path string, c *model.AppConfig) error {
			rec.saved = c
			return nil
		},
	}, 80, 24)
	return m, rec
}

func TestValidateAndSaveREST(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.Put(model.MailboxInbox, model.Message{ID: "1"})
	client.Put(model.MailboxInbox, model.Message{ID: "2", Read: true})

	m, rec := newSetup(t, client, nil)
	m.fv.backend = string(model.BackendREST)
	m.fv.baseURL = " http://127.0.0.1:8000 "
	m.fv.token = "secret"
	m.fv.allowInsecure = true

	key, secret := m.applyForm()
	msg := m.validateAndSave(key, secret)()

	res, ok := msg.(ValidateResultMsg)
	require.True(t, ok)
	require.NoError(t, res.Err)
	require.Equal(t, 1, res.Unread)

	require.Equal(t, "secret", rec.secrets[credential.APITokenKey])
	require.NotNil(t, rec.saved)
	require.Equal(t, "http://127.0.0.1:8000", rec.saved.API.BaseURL)
	require.True(t, rec.saved.API.AllowInsecure)
	require.Equal(t, []model.Mailbox{model.MailboxInbox}, client.ListCalls())
}

func TestValidateAndSaveIMAPRequiresHosts(t *testing.T) {
	m, rec := newSetup(t, testutil.NewFakeMailClient(), nil)
	m.fv.backend = string(model.BackendIMAP)
	m.fv.password = "pw"

	key, secret := m.applyForm()
	require.Equal(t, credential.IMAPPasswordKey, key)

	res := m.validateAndSave(key, secret)().(ValidateResultMsg)
	require.Error(t, res.Err)
	require.Nil(t, rec.saved)
	require.Empty(t, rec.secrets)
}

func TestValidateFailureDoesNotSave(t *testing.T) {
	client := testutil.NewFakeMailClient()
	client.FailList(&mailapi.NetworkError{Op: "list inbox", Err: errors.New("refused")})

	m, rec := newSetup(t, client, nil)
	m.fv.baseURL = "https://mail.example.com"

	key, secret := m.applyForm()
	res := m.validateAndSave(key, secret)().(ValidateResultMsg)
	require.True(t, mailapi.IsNetworkError(res.Err))
	require.Nil(t, rec.saved)

	// An empty token leaves the keyring alone.
	require.Empty(t, rec.secrets)
}

func TestValidateResultKeys(t *testing.T) {
	m, _ := newSetup(t, testutil.NewFakeMailClient(), nil)

	next, _ := m.Update(ValidateResultMsg{Err: errors.New("boom")})
	m = next.(Model)
	require.Equal(t, ModeValidateResult, m.Mode())
	require.Contains(t, m.View(), "Connection failed")

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	require.Equal(t, ModeFormREST, m.Mode())

	next, _ = m.Update(ValidateResultMsg{Unread: 3})
	m = next.(Model)
	require.Contains(t, m.View(), "3 unread")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.Equal(t, DoneMsg{Saved: true}, cmd())
}

func TestFieldValidators(t *testing.T) {
	require.Error(t, validateURL(""))
	require.Error(t, validateURL("mail.example.com"))
	require.NoError(t, validateURL("https://mail.example.com"))

	require.Error(t, validatePort("99a"))
	require.NoError(t, validatePort("993"))

	require.Error(t, validateRequired("Host")(" "))
}
