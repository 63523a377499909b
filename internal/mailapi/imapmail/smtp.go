package imapmail

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

const smtpDialTimeout = 30 * time.Second

// RecipientError is a permanent (5xx) rejection of one recipient.
type RecipientError struct {
	Recipient string
	Err       *smtp.SMTPError
}

func (e *RecipientError) Error() string {
	return fmt.Sprintf("recipient %s rejected: %s", e.Recipient, e.Err.Message)
}

func (e *RecipientError) Unwrap() error { return e.Err }

// sendMail delivers raw to every recipient through the configured SMTP
// server. Implicit TLS is used when cfg.TLS is set, STARTTLS otherwise.
func sendMail(
	ctx context.Context,
	cfg SMTPConfig,
	from string,
	to []string,
	raw []byte,
) error {
	addr := cfg.Host + ":" + cfg.Port

	conn, err := dialSMTP(ctx, cfg, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if err := client.Hello("localhost"); err != nil {
		return fmt.Errorf("SMTP HELLO: %w", err)
	}

	if !cfg.TLS {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: cfg.Host}); err != nil {
				return fmt.Errorf("SMTP STARTTLS: %w", err)
			}
		}
	}

	if cfg.Password != "" {
		auth := sasl.NewPlainClient("", cfg.Username, cfg.Password)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP auth: %w", err)
		}
	}

	if err := client.Mail(from, nil); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			var smtpErr *smtp.SMTPError
			if errors.As(err, &smtpErr) && smtpErr.Code >= 500 {
				return &RecipientError{Recipient: rcpt, Err: smtpErr}
			}
			return fmt.Errorf("SMTP RCPT TO %s: %w", rcpt, err)
		}
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(raw); err != nil {
		_ = writer.Close()
		return fmt.Errorf("writing message: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing message: %w", err)
	}

	return client.Quit()
}

func dialSMTP(ctx context.Context, cfg SMTPConfig, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: smtpDialTimeout}

	if cfg.TLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: cfg.Host},
		}
		conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, fmt.Errorf("TLS dial to %s: %w", addr, err)
		}
		return conn, nil
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial to %s: %w", addr, err)
	}
	return conn, nil
}
