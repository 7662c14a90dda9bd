package feeds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/statementd/statementd/internal/model"
)

const (
	snapshotDir = "feeds"
	oldDir      = "feeds.old"
	markFile    = "last_update.txt"
)

// CSVStore keeps the snapshot as one CSV file per feed under
// <root>/feeds/ and the freshness mark in <root>/last_update.txt.
type CSVStore struct {
	root string
	mu   sync.RWMutex
}

// NewCSVStore creates the root directory if needed.
func NewCSVStore(root string) (*CSVStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	return &CSVStore{root: root}, nil
}

// Root returns the data directory.
func (s *CSVStore) Root() string { return s.root }

// Load reads the current snapshot. If a crash interrupted the directory swap
// in Replace, the retired snapshot is read instead.
func (s *CSVStore) Load(_ context.Context) (*model.Feeds, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dir := filepath.Join(s.root, snapshotDir)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		if _, err := os.Stat(filepath.Join(s.root, oldDir)); err == nil {
			dir = filepath.Join(s.root, oldDir)
		}
	}
	var (
		f   model.Feeds
		err error
	)
	if f.Contacts, err = readFile(dir, model.FeedContacts, ReadContacts); err != nil {
		return nil, err
	}
	if f.Invoices, err = readFile(dir, model.FeedInvoices, ReadInvoices); err != nil {
		return nil, err
	}
	if f.Payments, err = readFile(dir, model.FeedPayments, ReadPayments); err != nil {
		return nil, err
	}
	if f.CreditNotes, err = readFile(dir, model.FeedCreditNotes, ReadCreditNotes); err != nil {
		return nil, err
	}
	return &f, nil
}

func readFile[T any](dir string, feed model.Feed, read func(io.Reader) ([]T, error)) ([]T, error) {
	path := filepath.Join(dir, fileFor(feed))
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rows, nil
}

// Replace writes the snapshot into a staging directory, swaps it in by
// rename, and only then writes the freshness mark.
func (s *CSVStore) Replace(_ context.Context, feeds *model.Feeds, refreshedOn model.Date) error {
	if !refreshedOn.IsKnown() {
		return errors.New("refresh date is unknown")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staging, err := os.MkdirTemp(s.root, "feeds.staging-*")
	if err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	writes := []struct {
		feed  model.Feed
		write func(io.Writer) error
	}{
		{model.FeedContacts, func(w io.Writer) error { return WriteContacts(w, feeds.Contacts) }},
		{model.FeedInvoices, func(w io.Writer) error { return WriteInvoices(w, feeds.Invoices) }},
		{model.FeedPayments, func(w io.Writer) error { return WritePayments(w, feeds.Payments) }},
		{model.FeedCreditNotes, func(w io.Writer) error { return WriteCreditNotes(w, feeds.CreditNotes) }},
	}
	for _, wr := range writes {
		if err := writeFile(filepath.Join(staging, fileFor(wr.feed)), wr.write); err != nil {
			return &PersistError{Feed: wr.feed, Err: err}
		}
	}

	current := filepath.Join(s.root, snapshotDir)
	old := filepath.Join(s.root, oldDir)
	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("clearing previous snapshot: %w", err)
	}
	if err := os.Rename(current, old); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("retiring snapshot: %w", err)
	}
	if err := os.Rename(staging, current); err != nil {
		// Put the retired snapshot back so readers keep a complete view.
		_ = os.Rename(old, current)
		return fmt.Errorf("installing snapshot: %w", err)
	}
	_ = os.RemoveAll(old)

	mark := []byte(refreshedOn.String())
	if err := writeFile(filepath.Join(s.root, markFile), func(w io.Writer) error {
		_, err := w.Write(mark)
		return err
	}); err != nil {
		return fmt.Errorf("writing freshness mark: %w", err)
	}
	return nil
}

// writeFile writes path through a temp file and rename.
func writeFile(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LastRefresh reads the freshness mark. A missing or unreadable mark is
// reported as the unknown date, which always counts as stale.
func (s *CSVStore) LastRefresh(_ context.Context) (model.Date, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.root, markFile))
	if errors.Is(err, fs.ErrNotExist) {
		return model.UnknownDate(), nil
	}
	if err != nil {
		return model.UnknownDate(), fmt.Errorf("reading freshness mark: %w", err)
	}
	t, err := time.Parse(model.DateLayout, strings.TrimSpace(string(data)))
	if err != nil {
		return model.UnknownDate(), nil
	}
	return model.DateOf(t), nil
}

// Close is a no-op for the file store.
func (s *CSVStore) Close() error { return nil }

var _ Store = (*CSVStore)(nil)
