package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailclient/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// CreateUser registers email. Registering an existing user is a no-op.
func (s *SQLiteStore) CreateUser(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO users (email, created_at) VALUES (?, ?)",
		email, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("creating user %s: %w", email, err)
	}
	return nil
}

// UserExists reports whether email has an account.
func (s *SQLiteStore) UserExists(ctx context.Context, email string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		"SELECT COUNT(*) FROM users WHERE email = ?", normalizeEmail(email),
	)
	if err != nil {
		return false, fmt.Errorf("looking up user %s: %w", email, err)
	}
	return n > 0, nil
}

// emailRow is the database shape of one delivered copy.
type emailRow struct {
	ID       int64     `db:"id"`
	Owner    string    `db:"owner"`
	Sender   string    `db:"sender"`
	Subject  string    `db:"subject"`
	Body     string    `db:"body"`
	SentAt   time.Time `db:"sent_at"`
	Read     bool      `db:"read"`
	Archived bool      `db:"archived"`
}

type recipientRow struct {
	EmailID int64  `db:"email_id"`
	Address string `db:"address"`
}

// ListMailbox returns user's messages in mb, newest first.
func (s *SQLiteStore) ListMailbox(
	ctx context.Context,
	user string,
	mb model.Mailbox,
) ([]model.Message, error) {
	user = normalizeEmail(user)

	const received = `EXISTS (
		SELECT 1 FROM email_recipients r
		WHERE r.email_id = e.id AND r.address = ?
	)`

	var (
		condition string
		args      []interface{}
	)
	switch mb {
	case model.MailboxInbox:
		condition = "e.owner = ? AND e.archived = 0 AND " + received
		args = []interface{}{user, user}
	case model.MailboxSent:
		condition = "e.owner = ? AND e.sender = ?"
		args = []interface{}{user, user}
	case model.MailboxArchive:
		condition = "e.owner = ? AND e.archived = 1 AND " + received
		args = []interface{}{user, user}
	default:
		return nil, fmt.Errorf("invalid mailbox %q", mb)
	}

	query := "SELECT e.* FROM emails e WHERE " + condition +
		" ORDER BY e.sent_at DESC, e.id DESC"

	var rows []emailRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("listing %s for %s: %w", mb, user, err)
	}

	return s.toMessages(ctx, rows)
}

// GetMessage returns one of user's messages.
func (s *SQLiteStore) GetMessage(
	ctx context.Context,
	user string,
	id int64,
) (model.Message, error) {
	var row emailRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM emails WHERE id = ? AND owner = ?",
		id, normalizeEmail(user),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Message{}, ErrNotFound
	}
	if err != nil {
		return model.Message{}, fmt.Errorf("getting email %d: %w", id, err)
	}

	msgs, err := s.toMessages(ctx, []emailRow{row})
	if err != nil {
		return model.Message{}, err
	}
	return msgs[0], nil
}

// UpdateMessage applies patch to one of user's messages.
func (s *SQLiteStore) UpdateMessage(
	ctx context.Context,
	user string,
	id int64,
	patch model.Patch,
) error {
	var sets []string
	var args []interface{}

	if patch.Read != nil {
		sets = append(sets, "read = ?")
		args = append(args, *patch.Read)
	}
	if patch.Archived != nil {
		sets = append(sets, "archived = ?")
		args = append(args, *patch.Archived)
	}

	if len(sets) == 0 {
		_, err := s.GetMessage(ctx, user, id)
		return err
	}

	query := "UPDATE emails SET " + strings.Join(sets, ", ") +
		" WHERE id = ? AND owner = ?"
	args = append(args, id, normalizeEmail(user))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating email %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update of email %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateMessage delivers msg: the sender and every recipient get their own
// copy. The sender's copy starts read. Every recipient must have an account.
func (s *SQLiteStore) CreateMessage(ctx context.Context, msg NewMessage) error {
	sender := normalizeEmail(msg.Sender)

	recipients := make([]string, 0, len(msg.Recipients))
	for _, r := range msg.Recipients {
		if r = normalizeEmail(r); r != "" {
			recipients = append(recipients, r)
		}
	}
	if len(recipients) == 0 {
		return ErrNoRecipients
	}

	for _, r := range recipients {
		ok, err := s.UserExists(ctx, r)
		if err != nil {
			return err
		}
		if !ok {
			return &UnknownRecipientError{Email: r}
		}
	}

	sentAt := msg.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	owners := []string{sender}
	seen := map[string]bool{sender: true}
	for _, r := range recipients {
		if !seen[r] {
			seen[r] = true
			owners = append(owners, r)
		}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, owner := range owners {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO emails (owner, sender, subject, body, sent_at, read, archived)
			VALUES (?, ?, ?, ?, ?, ?, 0)`,
			owner, sender, msg.Subject, msg.Body, sentAt.UTC(), owner == sender,
		)
		if err != nil {
			return fmt.Errorf("delivering to %s: %w", owner, err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading id for %s: %w", owner, err)
		}

		for i, r := range recipients {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO email_recipients (email_id, position, address) VALUES (?, ?, ?)",
				id, i, r,
			)
			if err != nil {
				return fmt.Errorf("adding recipient %s: %w", r, err)
			}
		}
	}

	return tx.Commit()
}

// toMessages loads the recipients of rows and converts them, keeping order.
func (s *SQLiteStore) toMessages(
	ctx context.Context,
	rows []emailRow,
) ([]model.Message, error) {
	msgs := make([]model.Message, 0, len(rows))
	if len(rows) == 0 {
		return msgs, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}

	query, args, err := sqlx.In(
		"SELECT email_id, address FROM email_recipients WHERE email_id IN (?) ORDER BY email_id, position",
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("building recipient query: %w", err)
	}

	var recips []recipientRow
	if err := s.db.SelectContext(ctx, &recips, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("loading recipients: %w", err)
	}

	byEmail := make(map[int64][]string, len(rows))
	for _, r := range recips {
		byEmail[r.EmailID] = append(byEmail[r.EmailID], r.Address)
	}

	for _, r := range rows {
		to := byEmail[r.ID]
		if to == nil {
			to = []string{}
		}
		msgs = append(msgs, model.Message{
			ID:         model.MessageID(strconv.FormatInt(r.ID, 10)),
			Sender:     r.Sender,
			Recipients: to,
			Subject:    r.Subject,
			Body:       r.Body,
			Timestamp:  model.FormatTimestamp(r.SentAt.Local()),
			Read:       r.Read,
			Archived:   r.Archived,
		})
	}

	return msgs, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
