package imapmail

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/nhle/mailclient/internal/mailapi"
)

// IMAPClient wraps go-imap v2. Every operation opens its own connection, so
// concurrent calls never share a selected folder.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool,
) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout on the returned client.
func (c *IMAPClient) Connect(
	ctx context.Context,
) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	addr := c.host + ":" + c.port

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(c.username, c.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &mailapi.AuthError{
			Backend: "imap",
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// withFolder connects, selects folder and runs fn.
func (c *IMAPClient) withFolder(
	ctx context.Context,
	folder string,
	fn func(client *imapclient.Client) error,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", folder, err)
	}

	return fn(client)
}

// fetchOptions asks for the envelope, flags and the full raw message. Peek
// keeps listing and reading from setting \Seen as a side effect.
func fetchOptions() (*imap.FetchOptions, *imap.FetchItemBodySection) {
	section := &imap.FetchItemBodySection{Peek: true}
	return &imap.FetchOptions{
		Envelope:    true,
		Flags:       true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{section},
	}, section
}

// FetchFolder returns every message in folder, newest first.
func (c *IMAPClient) FetchFolder(
	ctx context.Context, folder string,
) ([]ParsedMessage, error) {
	var out []ParsedMessage

	err := c.withFolder(ctx, folder, func(client *imapclient.Client) error {
		searchData, err := client.UIDSearch(&imap.SearchCriteria{}, nil).Wait()
		if err != nil {
			return fmt.Errorf("searching %s: %w", folder, err)
		}

		uids := searchData.AllUIDs()
		if len(uids) == 0 {
			return nil
		}

		opts, section := fetchOptions()
		fetchCmd := client.Fetch(imap.UIDSetNum(uids...), opts)
		defer fetchCmd.Close()

		for {
			msg := fetchCmd.Next()
			if msg == nil {
				break
			}

			buf, err := msg.Collect()
			if err != nil {
				continue
			}
			out = append(out, parseBuffer(buf, section))
		}

		if err := fetchCmd.Close(); err != nil {
			return fmt.Errorf("fetching %s: %w", folder, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(out, func(a, b ParsedMessage) int {
		switch {
		case a.Envelope.UID > b.Envelope.UID:
			return -1
		case a.Envelope.UID < b.Envelope.UID:
			return 1
		}
		return 0
	})

	return out, nil
}

// FetchMessage returns a single message by UID.
func (c *IMAPClient) FetchMessage(
	ctx context.Context, folder string, uid uint32,
) (*ParsedMessage, error) {
	var parsed *ParsedMessage

	err := c.withFolder(ctx, folder, func(client *imapclient.Client) error {
		opts, section := fetchOptions()
		fetchCmd := client.Fetch(imap.UIDSetNum(imap.UID(uid)), opts)
		defer fetchCmd.Close()

		msg := fetchCmd.Next()
		if msg == nil {
			return fmt.Errorf("message UID %d not found in %s", uid, folder)
		}

		buf, err := msg.Collect()
		if err != nil {
			return fmt.Errorf("collecting message data: %w", err)
		}

		p := parseBuffer(buf, section)
		parsed = &p

		if err := fetchCmd.Close(); err != nil {
			return fmt.Errorf("closing fetch: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return parsed, nil
}

// SetFlags adds or removes flags on a message.
func (c *IMAPClient) SetFlags(
	ctx context.Context,
	folder string,
	uid uint32,
	flags []imap.Flag,
	add bool,
) error {
	return c.withFolder(ctx, folder, func(client *imapclient.Client) error {
		op := imap.StoreFlagsAdd
		if !add {
			op = imap.StoreFlagsDel
		}

		storeCmd := client.Store(imap.UIDSetNum(imap.UID(uid)), &imap.StoreFlags{
			Op:     op,
			Silent: true,
			Flags:  flags,
		}, nil)

		if err := storeCmd.Close(); err != nil {
			return fmt.Errorf("storing flags on UID %d: %w", uid, err)
		}
		return nil
	})
}

// Move moves a message from folder to dest.
func (c *IMAPClient) Move(
	ctx context.Context, folder string, uid uint32, dest string,
) error {
	return c.withFolder(ctx, folder, func(client *imapclient.Client) error {
		if _, err := client.Move(imap.UIDSetNum(imap.UID(uid)), dest).Wait(); err != nil {
			return fmt.Errorf("moving UID %d from %s to %s: %w", uid, folder, dest, err)
		}
		return nil
	})
}

// Append stores raw as a new message in folder with the given flags.
func (c *IMAPClient) Append(
	ctx context.Context,
	folder string,
	raw []byte,
	flags []imap.Flag,
	date time.Time,
) error {
	client, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	appendCmd := client.Append(folder, int64(len(raw)), &imap.AppendOptions{
		Flags: flags,
		Time:  date,
	})
	if _, err := appendCmd.Write(raw); err != nil {
		_ = appendCmd.Close()
		return fmt.Errorf("writing message to %s: %w", folder, err)
	}
	if err := appendCmd.Close(); err != nil {
		return fmt.Errorf("closing append to %s: %w", folder, err)
	}
	if _, err := appendCmd.Wait(); err != nil {
		return fmt.Errorf("appending to %s: %w", folder, err)
	}

	return nil
}

// parseBuffer extracts the envelope, flags and body from a fetch buffer.
func parseBuffer(
	buf *imapclient.FetchMessageBuffer,
	section *imap.FetchItemBodySection,
) ParsedMessage {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = buf.Envelope.MessageID
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			env.From = buf.Envelope.From[0].Addr()
		}

		for _, to := range buf.Envelope.To {
			env.To = append(env.To, to.Addr())
		}
		for _, cc := range buf.Envelope.Cc {
			env.To = append(env.To, cc.Addr())
		}
	}

	for _, flag := range buf.Flags {
		env.Flags = append(env.Flags, string(flag))
	}

	parsed := ParsedMessage{Envelope: env}

	if raw := buf.FindBodySection(section); raw != nil {
		textBody, htmlBody := parseMIMEBody(raw)
		parsed.TextBody = textBody
		parsed.HTMLBody = htmlBody
	}

	return parsed
}
