// Package refreshlog keeps an append-only CSV history of feed refreshes.
package refreshlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/statementd/statementd/internal/freshness"
	"github.com/statementd/statementd/internal/model"
)

// Outcome of a refresh attempt.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// FileName is the log file inside the data directory.
const FileName = "refresh-log.csv"

// Header is the CSV header for refresh-log.csv.
const Header = "timestamp,run_id,outcome,feed,contacts,invoices,credit_notes,payments,error"

const (
	numFields      = 9
	colTimestamp   = 0
	colRunID       = 1
	colOutcome     = 2
	colFeed        = 3
	colContacts    = 4
	colInvoices    = 5
	colCreditNotes = 6
	colPayments    = 7
	colError       = 8
)

// Entry is one refresh attempt.
type Entry struct {
	Timestamp time.Time
	RunID     string
	Outcome   string
	Feed      model.Feed // failing feed; empty on success
	Counts    map[model.Feed]int
	Error     string
}

var countCols = []struct {
	feed model.Feed
	col  int
}{
	{model.FeedContacts, colContacts},
	{model.FeedInvoices, colInvoices},
	{model.FeedCreditNotes, colCreditNotes},
	{model.FeedPayments, colPayments},
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colOutcome] = e.Outcome
	row[colFeed] = string(e.Feed)
	for _, c := range countCols {
		if n, ok := e.Counts[c.feed]; ok {
			row[c.col] = strconv.Itoa(n)
		}
	}
	row[colError] = e.Error
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	e := Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		Outcome:   record[colOutcome],
		Feed:      model.Feed(record[colFeed]),
		Error:     record[colError],
	}
	for _, c := range countCols {
		if record[c.col] == "" {
			continue
		}
		n, err := strconv.Atoi(record[c.col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing %s count %q: %w", c.feed, record[c.col], err)
		}
		if e.Counts == nil {
			e.Counts = make(map[model.Feed]int, len(countCols))
		}
		e.Counts[c.feed] = n
	}
	return e, nil
}

// Log appends entries to <dir>/refresh-log.csv.
type Log struct {
	path string
	mu   sync.Mutex
}

// New returns a log rooted at dir.
func New(dir string) *Log {
	return &Log{path: filepath.Join(dir, FileName)}
}

// Path is the log file location.
func (l *Log) Path() string { return l.path }

// Append writes entries, creating the file and header if needed.
func (l *Log) Append(entries ...Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(l.path); errors.Is(err, os.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening refresh log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries. A missing file yields no entries.
func (l *Log) Read() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening refresh log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

// Last returns the most recent entry, or false when the log is empty.
func (l *Log) Last() (Entry, bool, error) {
	entries, err := l.Read()
	if err != nil || len(entries) == 0 {
		return Entry{}, false, err
	}
	return entries[len(entries)-1], true, nil
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading refresh log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Observer returns a freshness.Observer that records every refresh attempt.
// Write failures are logged and never fail the refresh itself.
func (l *Log) Observer(now func() time.Time, logger *zap.Logger) freshness.Observer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(res freshness.Result, err error) {
		e := Entry{
			Timestamp: now().UTC(),
			RunID:     ulid.Make().String(),
			Outcome:   OutcomeOK,
			Counts:    res.Counts,
		}
		if err != nil {
			e.Outcome = OutcomeFailed
			e.Error = err.Error()
			var refreshErr *freshness.RefreshError
			if errors.As(err, &refreshErr) {
				e.Feed = refreshErr.Feed
			}
		}
		if werr := l.Append(e); werr != nil {
			logger.Warn("writing refresh log", zap.String("path", l.path), zap.Error(werr))
		}
	}
}
