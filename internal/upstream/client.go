// Package upstream fetches the raw contact, invoice, credit note and payment
// feeds from the Qoyod accounting API.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/statementd/statementd/internal/model"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://www.qoyod.com/api/2.0"

// Endpoint paths and the JSON key holding each collection.
const (
	contactsPath    = "customers"
	invoicesPath    = "invoices"
	creditNotesPath = "credit_notes"
	paymentsPath    = "invoice_payments"

	contactsKey    = "customers"
	invoicesKey    = "invoices"
	creditNotesKey = "credit_notes"
	paymentsKey    = "receipts"
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Client is an HTTP client for the four feeds. It implements
// freshness.Fetcher.
type Client struct {
	baseURL    string
	apiKey     string
	fromDate   model.Date
	today      func() model.Date
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToday sets the source of the invoice window's upper bound.
func WithToday(today func() model.Date) Option {
	return func(c *Client) { c.today = today }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns a client for baseURL authenticating with apiKey. Invoices are
// requested from fromDate through today.
func New(baseURL, apiKey string, fromDate model.Date, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		fromDate:   fromDate,
		today:      func() model.Date { return model.DateOf(time.Now()) },
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Contacts fetches the customer directory.
func (c *Client) Contacts(ctx context.Context) ([]model.Contact, error) {
	var rows []contactJSON
	if err := c.get(ctx, contactsPath, nil, contactsKey, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Contact, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Contact{ID: string(r.ID), Name: string(r.Name)})
	}
	return out, nil
}

// Invoices fetches invoices issued between the configured start date and today.
func (c *Client) Invoices(ctx context.Context) ([]model.Invoice, error) {
	q := url.Values{}
	q.Set("from_date", c.fromDate.String())
	q.Set("to_date", c.today().String())

	var rows []invoiceJSON
	if err := c.get(ctx, invoicesPath, q, invoicesKey, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Invoice, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Invoice{
			ID:          string(r.ID),
			ContactID:   string(r.ContactID),
			IssueDate:   string(r.IssueDate),
			Total:       string(r.Total),
			Description: string(r.Description),
		})
	}
	return out, nil
}

// CreditNotes fetches all credit notes.
func (c *Client) CreditNotes(ctx context.Context) ([]model.CreditNote, error) {
	var rows []creditNoteJSON
	if err := c.get(ctx, creditNotesPath, nil, creditNotesKey, &rows); err != nil {
		return nil, err
	}
	out := make([]model.CreditNote, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.CreditNote{
			Reference:   string(r.Reference),
			ContactID:   string(r.ContactID),
			IssueDate:   string(r.IssueDate),
			TotalAmount: string(r.TotalAmount),
		})
	}
	return out, nil
}

// Payments fetches all invoice payments (receipts).
func (c *Client) Payments(ctx context.Context) ([]model.Payment, error) {
	var rows []paymentJSON
	if err := c.get(ctx, paymentsPath, nil, paymentsKey, &rows); err != nil {
		return nil, err
	}
	out := make([]model.Payment, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.Payment{
			Reference:   string(r.Reference),
			ContactID:   string(r.ContactID),
			Date:        string(r.Date),
			Amount:      string(r.Amount),
			Description: string(r.Description),
		})
	}
	return out, nil
}

// get fetches path and decodes the collection under key into dst. A missing
// key leaves dst empty.
func (c *Client) get(ctx context.Context, path string, query url.Values, key string, dst any) error {
	endpoint := c.baseURL + "/" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Endpoint: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var envelope map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	c.logger.Debug("upstream response",
		zap.String("endpoint", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	raw, ok := envelope[key]
	if !ok || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decoding %s.%s: %w", path, key, err)
	}
	return nil
}
