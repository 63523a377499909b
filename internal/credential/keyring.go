// Package credential keeps the mail API token and the IMAP/SMTP password
// in the system keyring.
package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailclient"

// Keys under which secrets are stored.
const (
	// APITokenKey holds the bearer token for the REST mail API.
	APITokenKey = "api-token"

	// IMAPPasswordKey holds the IMAP and SMTP password.
	IMAPPasswordKey = "imap-password"
)

// ErrNotFound reports that no secret is stored under a key. Other errors
// from Get, Set and Delete mean the keyring itself is unusable.
var ErrNotFound = errors.New("credential not found")

// open is replaced in tests with an in-memory keyring.
var open = openKeyring

// Label returns the name shown to the user for key.
func Label(key string) string {
	switch key {
	case APITokenKey:
		return "API token"
	case IMAPPasswordKey:
		return "IMAP password"
	default:
		return key
	}
}

func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailclient/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailclient-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get returns the secret stored under key. It wraps ErrNotFound when the
// keyring holds nothing for key.
func Get(key string) (string, error) {
	ring, err := open()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	switch {
	case errors.Is(err, keyring.ErrKeyNotFound):
		return "", fmt.Errorf("%s: %w", Label(key), ErrNotFound)
	case err != nil:
		return "", fmt.Errorf("reading %s from keyring: %w", Label(key), err)
	case len(item.Data) == 0:
		return "", fmt.Errorf("%s: %w", Label(key), ErrNotFound)
	}

	return string(item.Data), nil
}

// Set stores value under key, replacing any previous secret.
func Set(key, value string) error {
	if value == "" {
		return fmt.Errorf("%s must not be empty", Label(key))
	}

	ring, err := open()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       "mailclient " + Label(key),
		Description: "mailclient credential",
	})
	if err != nil {
		return fmt.Errorf("storing %s in keyring: %w", Label(key), err)
	}

	return nil
}

// Delete removes the secret stored under key. It wraps ErrNotFound when
// there was nothing to remove.
func Delete(key string) error {
	ring, err := open()
	if err != nil {
		return err
	}

	if _, err := ring.Get(key); errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", Label(key), ErrNotFound)
	}

	if err := ring.Remove(key); err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", Label(key), ErrNotFound)
		}
		return fmt.Errorf("removing %s from keyring: %w", Label(key), err)
	}

	return nil
}
