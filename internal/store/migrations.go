package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	email      TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS emails (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	owner     TEXT NOT NULL REFERENCES users(email) ON DELETE CASCADE,
	sender    TEXT NOT NULL,
	subject   TEXT NOT NULL DEFAULT '',
	body      TEXT NOT NULL DEFAULT '',
	sent_at   DATETIME NOT NULL,
	read      INTEGER NOT NULL DEFAULT 0 CHECK(read IN (0, 1)),
	archived  INTEGER NOT NULL DEFAULT 0 CHECK(archived IN (0, 1))
);

CREATE TABLE IF NOT EXISTS email_recipients (
	email_id INTEGER NOT NULL REFERENCES emails(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	address  TEXT NOT NULL,
	PRIMARY KEY (email_id, position)
);

CREATE INDEX IF NOT EXISTS idx_emails_owner ON emails(owner);
CREATE INDEX IF NOT EXISTS idx_email_recipients_address ON email_recipients(address);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_emails_owner_sent_at
	ON emails(owner, sent_at);

CREATE INDEX IF NOT EXISTS idx_emails_owner_archived
	ON emails(owner, archived);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
