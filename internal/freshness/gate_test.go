package freshness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statementd/statementd/internal/feeds"
	"github.com/statementd/statementd/internal/model"
)

type fakeFetcher struct {
	calls    atomic.Int32
	failOn   model.Feed
	release  chan struct{}
	invoices []model.Invoice
}

func (f *fakeFetcher) Contacts(ctx context.Context) ([]model.Contact, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	if f.failOn == model.FeedContacts {
		return nil, errors.New("boom")
	}
	return []model.Contact{{ID: "7", Name: "Acme"}}, nil
}

func (f *fakeFetcher) Invoices(ctx context.Context) ([]model.Invoice, error) {
	if f.failOn == model.FeedInvoices {
		return nil, errors.New("503 service unavailable")
	}
	return f.invoices, nil
}

func (f *fakeFetcher) CreditNotes(ctx context.Context) ([]model.CreditNote, error) {
	if f.failOn == model.FeedCreditNotes {
		return nil, errors.New("boom")
	}
	return nil, nil
}

func (f *fakeFetcher) Payments(ctx context.Context) ([]model.Payment, error) {
	if f.failOn == model.FeedPayments {
		return nil, errors.New("boom")
	}
	return []model.Payment{{Reference: "P-1", ContactID: "7", Amount: "1"}}, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func newGate(t *testing.T, c *clock) (*Gate, *feeds.CSVStore) {
	t.Helper()
	store, err := feeds.NewCSVStore(t.TempDir())
	require.NoError(t, err)
	return NewGate(store, time.UTC, WithClock(c.Now)), store
}

func TestGate_FreshAfterRefreshStaleNextDay(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)}
	gate, _ := newGate(t, c)

	fresh, err := gate.IsFresh(ctx)
	require.NoError(t, err)
	assert.False(t, fresh, "never refreshed")

	res, err := gate.Refresh(ctx, &fakeFetcher{})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", res.RefreshedOn.String())
	assert.Equal(t, 1, res.Counts[model.FeedContacts])
	assert.Equal(t, 1, res.Counts[model.FeedPayments])

	fresh, err = gate.IsFresh(ctx)
	require.NoError(t, err)
	assert.True(t, fresh)

	c.Set(time.Date(2024, time.January, 5, 23, 59, 0, 0, time.UTC))
	fresh, err = gate.IsFresh(ctx)
	require.NoError(t, err)
	assert.True(t, fresh, "still the same calendar day")

	c.Set(time.Date(2024, time.January, 6, 0, 1, 0, 0, time.UTC))
	fresh, err = gate.IsFresh(ctx)
	require.NoError(t, err)
	assert.False(t, fresh, "next calendar day")
}

func TestGate_TodayUsesOperatingTimeZone(t *testing.T) {
	store, err := feeds.NewCSVStore(t.TempDir())
	require.NoError(t, err)
	riyadh := time.FixedZone("AST", 3*60*60)
	now := func() time.Time { return time.Date(2024, time.January, 5, 22, 30, 0, 0, time.UTC) }

	gate := NewGate(store, riyadh, WithClock(now))
	assert.Equal(t, "2024-01-06", gate.Today().String())
}

func TestGate_FailedFetchPreservesPreviousState(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)}
	gate, store := newGate(t, c)

	good := &fakeFetcher{invoices: []model.Invoice{{ID: "1", ContactID: "7", Total: "10"}}}
	_, err := gate.Refresh(ctx, good)
	require.NoError(t, err)

	c.Set(time.Date(2024, time.January, 6, 9, 0, 0, 0, time.UTC))
	_, err = gate.Refresh(ctx, &fakeFetcher{failOn: model.FeedInvoices})
	require.Error(t, err)

	var re *RefreshError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, model.FeedInvoices, re.Feed)
	assert.Contains(t, err.Error(), "503")

	last, err := store.LastRefresh(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", last.String())

	snapshot, err := store.Load(ctx)
	require.NoError(t, err)
	require.Len(t, snapshot.Invoices, 1)
	assert.Equal(t, "1", snapshot.Invoices[0].ID)

	fresh, err := gate.IsFresh(ctx)
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestGate_EnsureFreshSkipsWhenFresh(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)}
	gate, _ := newGate(t, c)
	fetcher := &fakeFetcher{}

	res, err := gate.EnsureFresh(ctx, fetcher)
	require.NoError(t, err)
	assert.False(t, res.Skipped)

	res, err = gate.EnsureFresh(ctx, fetcher)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestGate_ConcurrentCallersShareOneRefresh(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)}
	gate, _ := newGate(t, c)
	fetcher := &fakeFetcher{release: make(chan struct{})}

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gate.EnsureFresh(ctx, fetcher)
			errs <- err
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

type trackingFetcher struct {
	fakeFetcher
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (f *trackingFetcher) Contacts(ctx context.Context) ([]model.Contact, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	return f.fakeFetcher.Contacts(ctx)
}

func TestGate_EnsureFreshWaitsForForcedRefresh(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)}
	gate, _ := newGate(t, c)
	fetcher := &trackingFetcher{fakeFetcher: fakeFetcher{release: make(chan struct{})}}

	forced := make(chan error, 1)
	go func() {
		_, err := gate.Refresh(ctx, fetcher)
		forced <- err
	}()
	require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	ensured := make(chan Result, 1)
	go func() {
		res, err := gate.EnsureFresh(ctx, fetcher)
		assert.NoError(t, err)
		ensured <- res
	}()

	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)

	require.NoError(t, <-forced)
	res := <-ensured
	assert.True(t, res.Skipped)
	assert.Equal(t, int32(1), fetcher.maxInFlight.Load())
	assert.Equal(t, int32(1), fetcher.calls.Load())
}

func TestGate_ForcedRefreshesNeverOverlapEnsure(t *testing.T) {
	ctx := context.Background()
	c := &clock{t: time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)}
	gate, _ := newGate(t, c)
	fetcher := &trackingFetcher{fakeFetcher: fakeFetcher{release: make(chan struct{})}}

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(force bool) {
			defer wg.Done()
			var err error
			if force {
				_, err = gate.Refresh(ctx, fetcher)
			} else {
				_, err = gate.EnsureFresh(ctx, fetcher)
			}
			assert.NoError(t, err)
		}(i%2 == 0)
	}

	time.Sleep(50 * time.Millisecond)
	close(fetcher.release)
	wg.Wait()

	assert.Equal(t, int32(1), fetcher.maxInFlight.Load())
}

type failingStore struct {
	feeds.Store
	err error
}

func (s *failingStore) Replace(context.Context, *model.Feeds, model.Date) error { return s.err }

func (s *failingStore) LastRefresh(context.Context) (model.Date, error) {
	return model.UnknownDate(), nil
}

func TestGate_PersistFailureNamesFeed(t *testing.T) {
	store := &failingStore{err: &feeds.PersistError{Feed: model.FeedPayments, Err: errors.New("disk full")}}
	gate := NewGate(store, time.UTC)

	_, err := gate.Refresh(context.Background(), &fakeFetcher{})
	var re *RefreshError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, model.FeedPayments, re.Feed)
	assert.Contains(t, err.Error(), "disk full")
}

func TestGate_ObserverSeesOutcome(t *testing.T) {
	store, err := feeds.NewCSVStore(t.TempDir())
	require.NoError(t, err)

	var seen []error
	gate := NewGate(store, time.UTC, WithObserver(func(_ Result, err error) { seen = append(seen, err) }))

	_, _ = gate.Refresh(context.Background(), &fakeFetcher{failOn: model.FeedCreditNotes})
	_, _ = gate.Refresh(context.Background(), &fakeFetcher{})

	require.Len(t, seen, 2)
	assert.Error(t, seen[0])
	assert.NoError(t, seen[1])
}
