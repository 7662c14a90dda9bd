// Package freshness decides whether the upstream feeds must be refreshed
// before a statement is built, and performs that refresh.
package freshness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/statementd/statementd/internal/feeds"
	"github.com/statementd/statementd/internal/model"
)

// Fetcher pulls the four raw feeds from the accounting service.
type Fetcher interface {
	Contacts(ctx context.Context) ([]model.Contact, error)
	Invoices(ctx context.Context) ([]model.Invoice, error)
	CreditNotes(ctx context.Context) ([]model.CreditNote, error)
	Payments(ctx context.Context) ([]model.Payment, error)
}

// RefreshError reports the feed that made a refresh fail.
type RefreshError struct {
	Feed model.Feed
	Err  error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refreshing %s: %v", e.Feed, e.Err)
}

func (e *RefreshError) Unwrap() error { return e.Err }

// Result summarizes a completed refresh.
type Result struct {
	RefreshedOn model.Date
	Counts      map[model.Feed]int

	// Skipped is true when the call found the mark already current.
	Skipped bool
}

// Observer is notified after every refresh attempt that reached the fetcher.
type Observer func(res Result, err error)

// Gate owns the freshness mark. At most one refresh runs at a time: callers
// of the same kind share the result of the one in flight, and an EnsureFresh
// queued behind a forced Refresh re-checks the mark and reuses its outcome.
type Gate struct {
	store    feeds.Store
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
	group    singleflight.Group
	mu       sync.Mutex // held for the whole fetch and persist
	observer Observer
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithObserver registers a callback run after each refresh attempt.
func WithObserver(o Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// NewGate creates a Gate over store. "Today" is evaluated in loc.
func NewGate(store feeds.Store, loc *time.Location, opts ...Option) *Gate {
	if loc == nil {
		loc = time.UTC
	}
	g := &Gate{
		store:  store,
		loc:    loc,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Today returns the current calendar date in the gate's time zone.
func (g *Gate) Today() model.Date {
	return model.DateOf(g.now().In(g.loc))
}

// LastRefresh returns the persisted mark.
func (g *Gate) LastRefresh(ctx context.Context) (model.Date, error) {
	return g.store.LastRefresh(ctx)
}

// IsFresh reports whether the feeds were refreshed today.
func (g *Gate) IsFresh(ctx context.Context) (bool, error) {
	last, err := g.store.LastRefresh(ctx)
	if err != nil {
		return false, err
	}
	return last.IsKnown() && last.Equal(g.Today()), nil
}

// EnsureFresh refreshes only if the mark is not today's date.
func (g *Gate) EnsureFresh(ctx context.Context, fetcher Fetcher) (Result, error) {
	return g.run(ctx, fetcher, false)
}

// Refresh fetches all feeds and replaces the snapshot unconditionally. On any
// failure the previous snapshot and mark are left untouched.
func (g *Gate) Refresh(ctx context.Context, fetcher Fetcher) (Result, error) {
	return g.run(ctx, fetcher, true)
}

func (g *Gate) run(ctx context.Context, fetcher Fetcher, force bool) (Result, error) {
	key := "ensure"
	if force {
		key = "force"
	}
	v, err, _ := g.group.Do(key, func() (any, error) {
		g.mu.Lock()
		defer g.mu.Unlock()

		if !force {
			fresh, err := g.IsFresh(ctx)
			if err != nil {
				return Result{}, fmt.Errorf("checking freshness: %w", err)
			}
			if fresh {
				return Result{RefreshedOn: g.Today(), Skipped: true}, nil
			}
		}
		res, err := g.refresh(ctx, fetcher)
		if g.observer != nil {
			g.observer(res, err)
		}
		return res, err
	})
	res, _ := v.(Result)
	return res, err
}

func (g *Gate) refresh(ctx context.Context, fetcher Fetcher) (Result, error) {
	today := g.Today()
	g.logger.Info("refreshing feeds", zap.Stringer("date", today))

	var f model.Feeds
	fetches := []struct {
		feed model.Feed
		fn   func() error
	}{
		{model.FeedContacts, func() (err error) {
			f.Contacts, err = fetcher.Contacts(ctx)
			return err
		}},
		{model.FeedInvoices, func() (err error) {
			f.Invoices, err = fetcher.Invoices(ctx)
			return err
		}},
		{model.FeedCreditNotes, func() (err error) {
			f.CreditNotes, err = fetcher.CreditNotes(ctx)
			return err
		}},
		{model.FeedPayments, func() (err error) {
			f.Payments, err = fetcher.Payments(ctx)
			return err
		}},
	}
	for _, fe := range fetches {
		if err := fe.fn(); err != nil {
			g.logger.Error("feed fetch failed", zap.String("feed", string(fe.feed)), zap.Error(err))
			return Result{}, &RefreshError{Feed: fe.feed, Err: err}
		}
		g.logger.Debug("feed fetched", zap.String("feed", string(fe.feed)), zap.Int("rows", f.Count(fe.feed)))
	}

	if err := g.store.Replace(ctx, &f, today); err != nil {
		feed, ok := feeds.FailedFeed(err)
		if !ok {
			feed = "freshness_mark"
		}
		g.logger.Error("persisting feeds failed", zap.String("feed", string(feed)), zap.Error(err))
		return Result{}, &RefreshError{Feed: feed, Err: err}
	}

	res := Result{RefreshedOn: today, Counts: make(map[model.Feed]int, len(model.AllFeeds))}
	for _, feed := range model.AllFeeds {
		res.Counts[feed] = f.Count(feed)
	}
	g.logger.Info("feeds refreshed",
		zap.Stringer("date", today),
		zap.Int("contacts", res.Counts[model.FeedContacts]),
		zap.Int("invoices", res.Counts[model.FeedInvoices]),
		zap.Int("payments", res.Counts[model.FeedPayments]),
		zap.Int("credit_notes", res.Counts[model.FeedCreditNotes]),
	)
	return res, nil
}
