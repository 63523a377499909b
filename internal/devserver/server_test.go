package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/model"
	"github.com/nhle/mailclient/internal/store"
	"github.com/nhle/mailclient/tests/testutil"
)

const (
	user  = "me@example.com"
	token = "secret"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.SQLiteStore) {
	t.Helper()

	st := testutil.NewTestStore(t, "alice@example.com")

	s, err := New(context.Background(), st, Config{User: user, Token: token})
	require.NoError(t, err)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, st
}

func request(t *testing.T, srv *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func errorText(t *testing.T, body []byte) string {
	t.Helper()
	var res model.CreateResult
	require.NoError(t, json.Unmarshal(body, &res))
	return res.Error
}

func TestNewRequiresUser(t *testing.T) {
	_, err := New(context.Background(), testutil.NewTestStore(t), Config{})
	require.Error(t, err)
}

func TestRejectsMissingToken(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := srv.Client().Get(srv.URL + "/emails/inbox")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvalidMailbox(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := request(t, srv, http.MethodGet, "/emails/spam", "")
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "Invalid mailbox.", errorText(t, body))
}

func TestUnknownEmail(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := request(t, srv, http.MethodGet, "/emails/42", "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, "Email not found.", errorText(t, body))

	status, _ = request(t, srv, http.MethodPut, "/emails/42", `{"read": true}`)
	require.Equal(t, http.StatusNotFound, status)
}

func TestCreateValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := request(t, srv, http.MethodPost, "/emails", `{"recipients": "", "subject": "x"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "At least one recipient required.", errorText(t, body))

	status, body = request(t, srv, http.MethodPost, "/emails", `{"recipients": "ghost@example.com"}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "User with email ghost@example.com does not exist.", errorText(t, body))

	status, _ = request(t, srv, http.MethodPost, "/emails", `not json`)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestSendListAndUpdate(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := request(t, srv, http.MethodPost, "/emails",
		`{"recipients": "alice@example.com", "subject": "Hi", "body": "Hello"}`)
	require.Equal(t, http.StatusCreated, status)

	var res model.CreateResult
	require.NoError(t, json.Unmarshal(body, &res))
	require.Equal(t, "Email sent successfully.", res.Message)

	status, body = request(t, srv, http.MethodGet, "/emails/sent", "")
	require.Equal(t, http.StatusOK, status)

	var sent []wireMessage
	require.NoError(t, json.Unmarshal(body, &sent))
	require.Len(t, sent, 1)
	require.Equal(t, user, sent[0].Sender)
	require.Equal(t, []string{"alice@example.com"}, sent[0].Recipients)
	require.True(t, sent[0].Read)

	// The sender's copy is not in their inbox.
	status, body = request(t, srv, http.MethodGet, "/emails/inbox", "")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, `[]`, string(body))

	status, _ = request(t, srv, http.MethodPut, "/emails/"+strconv.FormatInt(sent[0].ID, 10), `{"archived": true}`)
	require.Equal(t, http.StatusNoContent, status)
}

// TestRESTClientRoundTrip drives the server through the real REST client.
func TestRESTClientRoundTrip(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, st.CreateMessage(ctx, store.NewMessage{
		Sender:     "alice@example.com",
		Recipients: []string{user},
		Subject:    "Welcome",
		Body:       "Hello",
	}))

	client, err := mailapi.NewRESTClient(mailapi.RESTConfig{
		BaseURL:       srv.URL,
		Token:         token,
		AllowInsecure: true,
	})
	require.NoError(t, err)

	inbox, err := client.ListMailbox(ctx, model.MailboxInbox)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	require.False(t, inbox[0].Read)
	id := inbox[0].ID

	require.NoError(t, client.UpdateMessage(ctx, id, model.MarkRead()))

	msg, err := client.GetMessage(ctx, id)
	require.NoError(t, err)
	require.True(t, msg.Read)
	require.Equal(t, "Welcome", msg.Subject)

	archived := true
	require.NoError(t, client.UpdateMessage(ctx, id, model.Patch{Archived: &archived}))

	archive, err := client.ListMailbox(ctx, model.MailboxArchive)
	require.NoError(t, err)
	require.Len(t, archive, 1)
	require.Equal(t, id, archive[0].ID)

	result, err := client.CreateMessage(ctx, model.ComposeFields{Recipients: "nobody@example.com"})
	require.NoError(t, err)
	require.Equal(t, "User with email nobody@example.com does not exist.", result.Error)

	result, err = client.CreateMessage(ctx, model.ComposeFields{
		Recipients: "alice@example.com",
		Subject:    "Re: Welcome",
	})
	require.NoError(t, err)
	require.True(t, result.OK())

	_, err = client.GetMessage(ctx, "9999")
	require.True(t, mailapi.IsNetworkError(err))
}

func TestRESTClientBadTokenIsAuthError(t *testing.T) {
	srv, _ := newTestServer(t)

	client, err := mailapi.NewRESTClient(mailapi.RESTConfig{
		BaseURL:       srv.URL,
		Token:         "wrong",
		AllowInsecure: true,
	})
	require.NoError(t, err)

	_, err = client.ListMailbox(context.Background(), model.MailboxInbox)
	require.True(t, mailapi.IsAuthError(err))
}
