package export

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailclient/internal/model"
)

func sampleMessage() model.Message {
	return model.Message{
		ID:         "42",
		Sender:     "bob@example.com",
		Recipients: []string{"me@example.com", "Ann <ann@example.com>"},
		Subject:    "Lunch on Friday?",
		Body:       "Are you free?\nLet me know.",
		Timestamp:  "Jan 02 2024, 03:04 PM",
	}
}

func TestWriteEMLRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteEML(&buf, sampleMessage()))

	mr, err := mail.CreateReader(&buf)
	require.NoError(t, err)
	defer mr.Close()

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	require.Equal(t, "Lunch on Friday?", subject)

	from, err := mr.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	require.Equal(t, "bob@example.com", from[0].Address)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 2)
	require.Equal(t, "ann@example.com", to[1].Address)
	require.Equal(t, "Ann", to[1].Name)

	date, err := mr.Header.Date()
	require.NoError(t, err)
	require.Equal(t, 2024, date.Year())
	require.Equal(t, 15, date.Hour())

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	require.Equal(t, "Are you free?\r\nLet me know.", string(body))
}

func TestFilename(t *testing.T) {
	require.Equal(t, "42-lunch-on-friday.eml", Filename(sampleMessage()))
	require.Equal(t, "inbox_7.eml", Filename(model.Message{ID: "inbox:7"}))
}

func TestSaveToDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")

	path, err := SaveToDir(dir, sampleMessage())
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "42-lunch-on-friday.eml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "Subject: Lunch on Friday?")
}
