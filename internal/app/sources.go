package app

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gologme/log"

	"github.com/nhle/mailclient/internal/credential"
	"github.com/nhle/mailclient/internal/mailapi"
	"github.com/nhle/mailclient/internal/mailapi/imapmail"
	"github.com/nhle/mailclient/internal/model"
)

// TokenEnv overrides the API token stored in the keyring.
const TokenEnv = "MAILCLIENT_TOKEN"

// OpenBackend builds the mail client selected by cfg. Secrets come from the
// environment or the system keyring.
func OpenBackend(cfg *model.AppConfig, logger *log.Logger) (mailapi.Client, error) {
	switch cfg.Backend {
	case model.BackendREST:
		return mailapi.NewRESTClient(mailapi.RESTConfig{
			BaseURL:       cfg.API.BaseURL,
			Token:         loadSecret(TokenEnv, credential.APITokenKey, logger),
			AllowInsecure: cfg.API.AllowInsecure,
			Timeout:       time.Duration(cfg.API.TimeoutSec) * time.Second,
			Logger:        logger,
		})

	case model.BackendIMAP:
		password := loadSecret("", credential.IMAPPasswordKey, logger)
		if password == "" {
			return nil, fmt.Errorf(
				"no IMAP password stored; run 'mailclient token set --imap'",
			)
		}

		folders := make(map[model.Mailbox]string, len(cfg.IMAP.Folders))
		for name, folder := range cfg.IMAP.Folders {
			mb, err := model.ParseMailbox(name)
			if err != nil {
				return nil, fmt.Errorf("imap.folders: %w", err)
			}
			folders[mb] = folder
		}

		return imapmail.New(imapmail.Config{
			IMAPHost: cfg.IMAP.IMAPHost,
			IMAPPort: cfg.IMAP.IMAPPort,
			SMTPHost: cfg.IMAP.SMTPHost,
			SMTPPort: cfg.IMAP.SMTPPort,
			Username: cfg.IMAP.Username,
			Password: password,
			TLS:      cfg.IMAP.TLS,
			Folders:  folders,
			Logger:   logger,
		}), nil

	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// loadSecret reads env first, then the keyring. A missing secret is not an
// error: the REST API may not require a token.
func loadSecret(env, key string, logger *log.Logger) string {
	if env != "" {
		if v := os.Getenv(env); v != "" {
			return v
		}
	}

	v, err := credential.Get(key)
	switch {
	case errors.Is(err, credential.ErrNotFound):
		logger.Debugf("no %s stored", credential.Label(key))
		return ""
	case err != nil:
		logger.Warnf("keyring unavailable, continuing without %s: %v", credential.Label(key), err)
		return ""
	}
	return v
}
