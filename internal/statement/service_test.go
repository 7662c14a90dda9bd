package statement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/statementd/statementd/internal/customers"
	"github.com/statementd/statementd/internal/feeds"
	"github.com/statementd/statementd/internal/freshness"
	"github.com/statementd/statementd/internal/model"
)

type stubFetcher struct {
	feeds  model.Feeds
	fail   model.Feed
	called int
}

func (f *stubFetcher) err(feed model.Feed) error {
	if f.fail == feed {
		return errors.New("upstream unavailable")
	}
	return nil
}

func (f *stubFetcher) Contacts(context.Context) ([]model.Contact, error) {
	f.called++
	return f.feeds.Contacts, f.err(model.FeedContacts)
}

func (f *stubFetcher) Invoices(context.Context) ([]model.Invoice, error) {
	return f.feeds.Invoices, f.err(model.FeedInvoices)
}

func (f *stubFetcher) CreditNotes(context.Context) ([]model.CreditNote, error) {
	return f.feeds.CreditNotes, f.err(model.FeedCreditNotes)
}

func (f *stubFetcher) Payments(context.Context) ([]model.Payment, error) {
	return f.feeds.Payments, f.err(model.FeedPayments)
}

func scenarioFeeds() model.Feeds {
	return model.Feeds{
		Contacts: []model.Contact{{ID: "7", Name: "Acme"}, {ID: "8", Name: "Quiet"}},
		Invoices: []model.Invoice{
			{ID: "1", ContactID: "7", IssueDate: "2024-01-05", Total: "100"},
			{ID: "2", ContactID: "9", IssueDate: "2024-01-06", Total: "999"},
		},
		Payments: []model.Payment{
			{Reference: "P-1", ContactID: "7", Date: "2024-01-10", Amount: "30"},
		},
		CreditNotes: []model.CreditNote{
			{Reference: "CN-1", ContactID: "7", IssueDate: "2024-01-12", TotalAmount: "20"},
		},
	}
}

var today = time.Date(2024, time.June, 30, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T, fetcher freshness.Fetcher) (*Service, feeds.Store) {
	t.Helper()
	store, err := feeds.NewCSVStore(t.TempDir())
	require.NoError(t, err)
	gate := freshness.NewGate(store, time.UTC, freshness.WithClock(func() time.Time { return today }))
	r, err := NewHTMLRenderer()
	require.NoError(t, err)
	return NewService(store, gate, fetcher, r, zap.NewNop()), store
}

func defaultPeriod() model.Period {
	return model.Period{From: model.NewDate(2023, time.January, 1), To: model.DateOf(today)}
}

func TestBuildStatement(t *testing.T) {
	svc, _ := newService(t, &stubFetcher{feeds: scenarioFeeds()})

	doc, err := svc.BuildStatement(context.Background(), 7, defaultPeriod())
	require.NoError(t, err)

	assert.Equal(t, "Acme", doc.CustomerName)
	require.Len(t, doc.Rows, 3)
	assert.Equal(t, []string{"Invoice", "Payment", "Credit note"},
		[]string{doc.Rows[0].Type, doc.Rows[1].Type, doc.Rows[2].Type})
	assert.Equal(t, []string{"100.00", "70.00", "50.00"},
		[]string{doc.Rows[0].Balance, doc.Rows[1].Balance, doc.Rows[2].Balance})
	assert.Equal(t, "50.00", doc.ClosingBalance)
	assert.Equal(t, "01-01-2023", doc.From)
	assert.Equal(t, "30-06-2024", doc.To)

	fresh, err := svc.IsFresh(context.Background())
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestBuildStatement_CustomerWithoutActivity(t *testing.T) {
	svc, _ := newService(t, &stubFetcher{feeds: scenarioFeeds()})

	doc, err := svc.BuildStatement(context.Background(), 8, defaultPeriod())
	require.NoError(t, err)
	assert.Empty(t, doc.Rows)
	assert.Equal(t, "0.00", doc.ClosingBalance)
}

func TestBuildStatement_UnknownDateFirst(t *testing.T) {
	f := scenarioFeeds()
	f.Payments = append(f.Payments, model.Payment{Reference: "P-2", ContactID: "7", Date: "", Amount: "5"})
	svc, _ := newService(t, &stubFetcher{feeds: f})

	doc, err := svc.BuildStatement(context.Background(), 7, defaultPeriod())
	require.NoError(t, err)
	require.Len(t, doc.Rows, 4)
	assert.Equal(t, "", doc.Rows[0].Date)
	assert.Equal(t, "P-2", doc.Rows[0].Reference)
	assert.Equal(t, "-5.00", doc.Rows[0].Balance)
	assert.Equal(t, "45.00", doc.ClosingBalance)
}

func TestBuildStatement_SkipsMalformed(t *testing.T) {
	f := scenarioFeeds()
	f.Invoices = append(f.Invoices, model.Invoice{ID: "3", ContactID: "7", IssueDate: "2024-02-01", Total: "abc"})
	svc, _ := newService(t, &stubFetcher{feeds: f})

	doc, err := svc.BuildStatement(context.Background(), 7, defaultPeriod())
	require.NoError(t, err)
	assert.Len(t, doc.Rows, 3)
	assert.Equal(t, 1, doc.SkippedRecords)
	assert.Equal(t, "50.00", doc.ClosingBalance)
}

func TestBuildStatement_UnknownCustomer(t *testing.T) {
	svc, _ := newService(t, &stubFetcher{feeds: scenarioFeeds()})

	_, err := svc.BuildStatement(context.Background(), 404, defaultPeriod())
	assert.ErrorIs(t, err, customers.ErrNotFound)
}

func TestBuildStatement_InvalidPeriod(t *testing.T) {
	fetcher := &stubFetcher{feeds: scenarioFeeds()}
	svc, _ := newService(t, fetcher)

	_, err := svc.BuildStatement(context.Background(), 7, model.Period{
		From: model.NewDate(2024, time.June, 1),
		To:   model.NewDate(2024, time.January, 1),
	})
	assert.ErrorIs(t, err, ErrInvalidPeriod)
	assert.Zero(t, fetcher.called)
}

func TestBuildStatement_RefreshFailure(t *testing.T) {
	svc, _ := newService(t, &stubFetcher{feeds: scenarioFeeds(), fail: model.FeedInvoices})

	_, _, err := svc.RenderStatement(context.Background(), 7, defaultPeriod())
	var refreshErr *freshness.RefreshError
	require.ErrorAs(t, err, &refreshErr)
	assert.Equal(t, model.FeedInvoices, refreshErr.Feed)

	fresh, err := svc.IsFresh(context.Background())
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestBuildStatement_FreshSnapshotSkipsFetch(t *testing.T) {
	fetcher := &stubFetcher{feeds: scenarioFeeds()}
	svc, _ := newService(t, fetcher)

	_, err := svc.BuildStatement(context.Background(), 7, defaultPeriod())
	require.NoError(t, err)
	_, err = svc.BuildStatement(context.Background(), 8, defaultPeriod())
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.called)
}

func TestBuildStatement_Offline(t *testing.T) {
	svc, store := newService(t, nil)
	f := scenarioFeeds()
	require.NoError(t, store.Replace(context.Background(), &f, model.NewDate(2024, time.June, 1)))

	doc, err := svc.BuildStatement(context.Background(), 7, defaultPeriod())
	require.NoError(t, err)
	assert.Equal(t, "50.00", doc.ClosingBalance)

	_, err = svc.Refresh(context.Background())
	assert.Error(t, err)
}

func TestRenderStatement(t *testing.T) {
	svc, _ := newService(t, &stubFetcher{feeds: scenarioFeeds()})

	out, doc, err := svc.RenderStatement(context.Background(), 7, defaultPeriod())
	require.NoError(t, err)
	assert.Equal(t, "50.00", doc.ClosingBalance)
	assert.Contains(t, string(out), "Acme")
	assert.Contains(t, string(out), "CN-1")
}

func TestCustomers(t *testing.T) {
	svc, store := newService(t, nil)
	f := scenarioFeeds()
	require.NoError(t, store.Replace(context.Background(), &f, model.DateOf(today)))

	list, err := svc.Customers(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestBuildStatement_UnparsableInvoiceDateRendersBlankFirst(t *testing.T) {
	f := scenarioFeeds()
	f.Invoices = append(f.Invoices, model.Invoice{ID: "5", ContactID: "7", IssueDate: "not a date", Total: "10"})
	svc, _ := newService(t, &stubFetcher{feeds: f})

	out, doc, err := svc.RenderStatement(context.Background(), 7, defaultPeriod())
	require.NoError(t, err)
	require.Len(t, doc.Rows, 4)
	assert.Equal(t, Row{
		Date: "", Type: "Invoice", Description: "Invoice - INV-5",
		Reference: "INV-5", Debit: "10.00", Credit: "", Balance: "10.00",
	}, doc.Rows[0])
	assert.Equal(t, "60.00", doc.ClosingBalance)
	assert.Contains(t, string(out), "INV-5")
}

func TestBuildStatement_SkippedRecordsOnlyCountsOwnRows(t *testing.T) {
	f := scenarioFeeds()
	f.Invoices = append(f.Invoices, model.Invoice{ID: "9", ContactID: "9", IssueDate: "2024-02-01", Total: "abc"})
	svc, _ := newService(t, &stubFetcher{feeds: f})

	doc, err := svc.BuildStatement(context.Background(), 7, defaultPeriod())
	require.NoError(t, err)
	assert.Len(t, doc.Rows, 3)
	assert.Zero(t, doc.SkippedRecords)

	f.Payments = append(f.Payments, model.Payment{Reference: "P-9", ContactID: "7", Date: "2024-02-02", Amount: "n/a"})
	svc, _ = newService(t, &stubFetcher{feeds: f})

	doc, err = svc.BuildStatement(context.Background(), 7, defaultPeriod())
	require.NoError(t, err)
	assert.Equal(t, 1, doc.SkippedRecords)
}
