package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/sync/errgroup"

	"github.com/brightsidebudget/bsb/internal/journal"
	"github.com/brightsidebudget/bsb/internal/model"
	"github.com/brightsidebudget/bsb/internal/qname"
)

// DB is a SQLite file holding one journal.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(db *DB) {
		db.logger = l
	}
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	db := &DB{conn: conn, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(db)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Save replaces the stored journal with snap.
func (db *DB) Save(ctx context.Context, snap *journal.Snapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, table := range []string{"postings", "txns", "bassertions", "accounts"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("store: clear %s: %w", table, err)
		}
	}

	acctStmt, err := tx.PrepareContext(ctx, `INSERT INTO accounts (name, short_len, tags) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare account insert: %w", err)
	}
	defer acctStmt.Close()
	for _, a := range snap.Accounts {
		if _, err := acctStmt.ExecContext(ctx, a.Name.String(), a.ShortLen, tagsJSON(a.Tags)); err != nil {
			return fmt.Errorf("store: insert account %s: %w", a.Name, err)
		}
	}

	txnStmt, err := tx.PrepareContext(ctx, `INSERT INTO txns (id, date) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare txn insert: %w", err)
	}
	defer txnStmt.Close()
	postingStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO postings (txn_id, seq, account, amount, comment, stmt_date, stmt_desc, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare posting insert: %w", err)
	}
	defer postingStmt.Close()
	for _, t := range snap.Txns {
		if _, err := txnStmt.ExecContext(ctx, t.ID, model.FormatDate(t.Date)); err != nil {
			return fmt.Errorf("store: insert txn %d: %w", t.ID, err)
		}
		for i, p := range t.Postings {
			_, err := postingStmt.ExecContext(ctx, t.ID, i, p.Account.String(), p.Amount.String(),
				p.Comment, formatOptDate(p.StmtDate), p.Reference, tagsJSON(p.Tags))
			if err != nil {
				return fmt.Errorf("store: insert posting %d of txn %d: %w", i+1, t.ID, err)
			}
		}
	}

	baStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bassertions (date, account, balance, comment, tags) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("store: prepare balance assertion insert: %w", err)
	}
	defer baStmt.Close()
	for _, b := range snap.BAssertions {
		_, err := baStmt.ExecContext(ctx, model.FormatDate(b.Date), b.Account.String(), b.Balance.String(),
			b.Comment, tagsJSON(b.Tags))
		if err != nil {
			return fmt.Errorf("store: insert balance assertion %s %s: %w", model.FormatDate(b.Date), b.Account, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	db.logger.Info("journal stored",
		slog.Int("accounts", len(snap.Accounts)),
		slog.Int("txns", len(snap.Txns)),
		slog.Int("bassertions", len(snap.BAssertions)))
	return nil
}

// Load rebuilds the stored journal. The three tables are read concurrently.
func (db *DB) Load(ctx context.Context, opts ...journal.Option) (*journal.Journal, error) {
	var (
		accts    []model.Account
		postings []model.PostingRecord
		bs       []model.BAssertion
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		accts, err = db.loadAccounts(gCtx)
		return err
	})
	g.Go(func() (err error) {
		postings, err = db.loadPostings(gCtx)
		return err
	})
	g.Go(func() (err error) {
		bs, err = db.loadBAssertions(gCtx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return journal.Load(accts, postings, bs, opts...)
}

func (db *DB) loadAccounts(ctx context.Context) ([]model.Account, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT name, short_len, tags FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("store: query accounts: %w", err)
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		var (
			a          model.Account
			name, tags string
		)
		if err := rows.Scan(&name, &a.ShortLen, &tags); err != nil {
			return nil, fmt.Errorf("store: scan account: %w", err)
		}
		if a.Name, err = qname.Parse(name); err != nil {
			return nil, fmt.Errorf("store: account %q: %w", name, err)
		}
		if a.Tags, err = parseTags(tags); err != nil {
			return nil, fmt.Errorf("store: account %s: %w", name, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (db *DB) loadPostings(ctx context.Context) ([]model.PostingRecord, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT p.txn_id, t.date, p.account, p.amount, p.comment, p.stmt_date, p.stmt_desc, p.tags
		FROM postings p JOIN txns t ON t.id = p.txn_id
		ORDER BY p.txn_id, p.seq`)
	if err != nil {
		return nil, fmt.Errorf("store: query postings: %w", err)
	}
	defer rows.Close()

	var out []model.PostingRecord
	for rows.Next() {
		var (
			r                             model.PostingRecord
			date, account, stmtDate, tags string
		)
		if err := rows.Scan(&r.Txn, &date, &account, &r.Posting.Amount, &r.Posting.Comment,
			&stmtDate, &r.Posting.Reference, &tags); err != nil {
			return nil, fmt.Errorf("store: scan posting: %w", err)
		}
		if r.Posting.Date, err = model.ParseDate(date); err != nil {
			return nil, fmt.Errorf("store: txn %d: %w", r.Txn, err)
		}
		if r.Posting.StmtDate, err = parseOptDate(stmtDate); err != nil {
			return nil, fmt.Errorf("store: txn %d: %w", r.Txn, err)
		}
		if r.Posting.Account, err = qname.Parse(account); err != nil {
			return nil, fmt.Errorf("store: txn %d: %w", r.Txn, err)
		}
		if r.Posting.Tags, err = parseTags(tags); err != nil {
			return nil, fmt.Errorf("store: txn %d: %w", r.Txn, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (db *DB) loadBAssertions(ctx context.Context) ([]model.BAssertion, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT date, account, balance, comment, tags FROM bassertions ORDER BY date, account`)
	if err != nil {
		return nil, fmt.Errorf("store: query balance assertions: %w", err)
	}
	defer rows.Close()

	var out []model.BAssertion
	for rows.Next() {
		var (
			b                   model.BAssertion
			date, account, tags string
		)
		if err := rows.Scan(&date, &account, &b.Balance, &b.Comment, &tags); err != nil {
			return nil, fmt.Errorf("store: scan balance assertion: %w", err)
		}
		if b.Date, err = model.ParseDate(date); err != nil {
			return nil, fmt.Errorf("store: balance assertion: %w", err)
		}
		if b.Account, err = qname.Parse(account); err != nil {
			return nil, fmt.Errorf("store: balance assertion: %w", err)
		}
		if b.Tags, err = parseTags(tags); err != nil {
			return nil, fmt.Errorf("store: balance assertion: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func tagsJSON(t model.Tags) string {
	if len(t) == 0 {
		return "{}"
	}
	// map[string]string always marshals
	b, _ := json.Marshal(t)
	return string(b)
}

func parseTags(s string) (model.Tags, error) {
	var t model.Tags
	if err := json.Unmarshal([]byte(s), &t); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	if len(t) == 0 {
		return nil, nil
	}
	return t, nil
}

func formatOptDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return model.FormatDate(t)
}

func parseOptDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return model.ParseDate(s)
}
