// Package store persists journal snapshots in a SQLite file.
package store

const schemaSQL = `
CREATE TABLE IF NOT EXISTS accounts (
	name      TEXT PRIMARY KEY,
	short_len INTEGER NOT NULL DEFAULT 0,
	tags      TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS txns (
	id   INTEGER PRIMARY KEY,
	date TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS postings (
	txn_id    INTEGER NOT NULL REFERENCES txns(id) ON DELETE CASCADE,
	seq       INTEGER NOT NULL,
	account   TEXT NOT NULL REFERENCES accounts(name),
	amount    TEXT NOT NULL,
	comment   TEXT NOT NULL DEFAULT '',
	stmt_date TEXT NOT NULL DEFAULT '',
	stmt_desc TEXT NOT NULL DEFAULT '',
	tags      TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (txn_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_postings_account ON postings(account);

CREATE TABLE IF NOT EXISTS bassertions (
	date    TEXT NOT NULL,
	account TEXT NOT NULL REFERENCES accounts(name),
	balance TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	tags    TEXT NOT NULL DEFAULT '{}',
	PRIMARY KEY (date, account)
);
`
