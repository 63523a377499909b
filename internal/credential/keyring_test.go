package credential

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/require"
)

func useRing(t *testing.T, ring keyring.Keyring, err error) {
	t.Helper()

	prev := open
	open = func() (keyring.Keyring, error) { return ring, err }
	t.Cleanup(func() { open = prev })
}

func TestGetMissingIsNotFound(t *testing.T) {
	useRing(t, keyring.NewArrayKeyring(nil), nil)

	_, err := Get(APITokenKey)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorContains(t, err, "API token")
}

func TestSetGetDelete(t *testing.T) {
	useRing(t, keyring.NewArrayKeyring(nil), nil)

	require.NoError(t, Set(IMAPPasswordKey, "pw"))
	v, err := Get(IMAPPasswordKey)
	require.NoError(t, err)
	require.Equal(t, "pw", v)

	require.NoError(t, Delete(IMAPPasswordKey))
	_, err = Get(IMAPPasswordKey)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, Delete(IMAPPasswordKey), ErrNotFound)
}

func TestSetRejectsEmptySecret(t *testing.T) {
	useRing(t, keyring.NewArrayKeyring(nil), nil)

	require.Error(t, Set(APITokenKey, ""))
	_, err := Get(APITokenKey)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUnavailableKeyringIsNotNotFound(t *testing.T) {
	useRing(t, nil, errors.New("opening keyring: no backend"))

	_, err := Get(APITokenKey)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestLabel(t *testing.T) {
	require.Equal(t, "API token", Label(APITokenKey))
	require.Equal(t, "IMAP password", Label(IMAPPasswordKey))
	require.Equal(t, "other", Label("other"))
}
