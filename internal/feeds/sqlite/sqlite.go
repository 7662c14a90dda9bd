/*
Package sqlite provides a SQLite-backed feeds.Store.

TABLES:
  contacts, invoices, payments, credit_notes: one row per upstream record,
    with a seq column preserving source row order.
  meta: key/value pairs; "last_refresh" holds the freshness mark.

ATOMICITY:
  Replace runs in a single SQL transaction. Every feed table is cleared and
  refilled, then the mark is upserted. A failure anywhere rolls back, so the
  previous snapshot and mark stay intact.

USAGE:
  store, err := sqlite.New("./data/statementd.db")
  if err != nil {
      return err
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/statementd/statementd/internal/feeds"
	"github.com/statementd/statementd/internal/model"
)

const markKey = "last_refresh"

// Store implements feeds.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (or creates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS contacts (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL,
		name TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invoices (
		seq INTEGER PRIMARY KEY,
		id TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		issue_date TEXT NOT NULL,
		total TEXT NOT NULL,
		description TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_contact ON invoices(contact_id);

	CREATE TABLE IF NOT EXISTS payments (
		seq INTEGER PRIMARY KEY,
		reference TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payments_contact ON payments(contact_id);

	CREATE TABLE IF NOT EXISTS credit_notes (
		seq INTEGER PRIMARY KEY,
		reference TEXT NOT NULL,
		contact_id TEXT NOT NULL,
		issue_date TEXT NOT NULL,
		total_amount TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_credit_notes_contact ON credit_notes(contact_id);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Replace swaps in a new snapshot and mark atomically.
func (s *Store) Replace(ctx context.Context, f *model.Feeds, refreshedOn model.Date) error {
	if !refreshedOn.IsKnown() {
		return errors.New("refresh date is unknown")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		feed model.Feed
		fn   func(execer) error
	}{
		{model.FeedContacts, func(db execer) error { return s.replaceContacts(ctx, db, f.Contacts) }},
		{model.FeedInvoices, func(db execer) error { return s.replaceInvoices(ctx, db, f.Invoices) }},
		{model.FeedPayments, func(db execer) error { return s.replacePayments(ctx, db, f.Payments) }},
		{model.FeedCreditNotes, func(db execer) error { return s.replaceCreditNotes(ctx, db, f.CreditNotes) }},
	}
	for _, step := range steps {
		if err := step.fn(tx); err != nil {
			return &feeds.PersistError{Feed: step.feed, Err: err}
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		markKey, refreshedOn.String())
	if err != nil {
		return fmt.Errorf("failed to write freshness mark: %w", err)
	}

	return tx.Commit()
}

func (s *Store) replaceContacts(ctx context.Context, db execer, rows []model.Contact) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM contacts`); err != nil {
		return err
	}
	for i, c := range rows {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO contacts (seq, id, name) VALUES (?, ?, ?)`,
			i, c.ID, c.Name); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) replaceInvoices(ctx context.Context, db execer, rows []model.Invoice) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM invoices`); err != nil {
		return err
	}
	for i, inv := range rows {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO invoices (seq, id, contact_id, issue_date, total, description) VALUES (?, ?, ?, ?, ?, ?)`,
			i, inv.ID, inv.ContactID, inv.IssueDate, inv.Total, inv.Description); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) replacePayments(ctx context.Context, db execer, rows []model.Payment) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM payments`); err != nil {
		return err
	}
	for i, p := range rows {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO payments (seq, reference, contact_id, date, amount, description) VALUES (?, ?, ?, ?, ?, ?)`,
			i, p.Reference, p.ContactID, p.Date, p.Amount, p.Description); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

func (s *Store) replaceCreditNotes(ctx context.Context, db execer, rows []model.CreditNote) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM credit_notes`); err != nil {
		return err
	}
	for i, cn := range rows {
		if _, err := db.ExecContext(ctx,
			`INSERT INTO credit_notes (seq, reference, contact_id, issue_date, total_amount) VALUES (?, ?, ?, ?, ?)`,
			i, cn.Reference, cn.ContactID, cn.IssueDate, cn.TotalAmount); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return nil
}

// Load reads the full snapshot in source row order.
func (s *Store) Load(ctx context.Context) (*model.Feeds, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var f model.Feeds

	err = queryEach(ctx, tx, `SELECT id, name FROM contacts ORDER BY seq`, func(rows *sql.Rows) error {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return err
		}
		f.Contacts = append(f.Contacts, c)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load contacts: %w", err)
	}

	err = queryEach(ctx, tx, `SELECT id, contact_id, issue_date, total, description FROM invoices ORDER BY seq`, func(rows *sql.Rows) error {
		var inv model.Invoice
		if err := rows.Scan(&inv.ID, &inv.ContactID, &inv.IssueDate, &inv.Total, &inv.Description); err != nil {
			return err
		}
		f.Invoices = append(f.Invoices, inv)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load invoices: %w", err)
	}

	err = queryEach(ctx, tx, `SELECT reference, contact_id, date, amount, description FROM payments ORDER BY seq`, func(rows *sql.Rows) error {
		var p model.Payment
		if err := rows.Scan(&p.Reference, &p.ContactID, &p.Date, &p.Amount, &p.Description); err != nil {
			return err
		}
		f.Payments = append(f.Payments, p)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}

	err = queryEach(ctx, tx, `SELECT reference, contact_id, issue_date, total_amount FROM credit_notes ORDER BY seq`, func(rows *sql.Rows) error {
		var cn model.CreditNote
		if err := rows.Scan(&cn.Reference, &cn.ContactID, &cn.IssueDate, &cn.TotalAmount); err != nil {
			return err
		}
		f.CreditNotes = append(f.CreditNotes, cn)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load credit notes: %w", err)
	}

	return &f, nil
}

func queryEach(ctx context.Context, tx *sql.Tx, query string, scan func(*sql.Rows) error) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LastRefresh returns the freshness mark or the unknown date.
func (s *Store) LastRefresh(ctx context.Context) (model.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, markKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return model.UnknownDate(), nil
	}
	if err != nil {
		return model.UnknownDate(), fmt.Errorf("failed to read freshness mark: %w", err)
	}

	t, err := time.Parse(model.DateLayout, value)
	if err != nil {
		return model.UnknownDate(), nil
	}
	return model.DateOf(t), nil
}

var _ feeds.Store = (*Store)(nil)
