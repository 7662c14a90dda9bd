// Package normalize maps raw feed rows onto the common ledger entry shape.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"github.com/statementd/statementd/internal/model"
)

// ErrMalformed is the sentinel matched by every MalformedRecordError.
var ErrMalformed = errors.New("malformed record")

// MalformedRecordError describes a source row that could not be normalized.
type MalformedRecordError struct {
	Kind      model.Kind
	Row       int // 1-based position in the source feed
	Reference string
	ContactID string
	Field     string
	Err       error
}

func (e *MalformedRecordError) Error() string {
	ref := e.Reference
	if ref == "" {
		ref = "<none>"
	}
	return fmt.Sprintf("malformed %s row %d [%s]: field %s: %v", e.Kind, e.Row, ref, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() []error { return []error{ErrMalformed, e.Err} }

// BelongsTo reports whether the row's contact id names customerID. Rows whose
// contact id is itself unreadable belong to no one.
func (e *MalformedRecordError) BelongsTo(customerID int64) bool {
	id, err := parseID(e.ContactID)
	return err == nil && id == customerID
}

var (
	errMissing  = errors.New("missing required value")
	errNegative = errors.New("negative amount")
)

// InvoiceRef returns the statement reference for an invoice id.
func InvoiceRef(id string) string { return "INV-" + id }

// Invoice normalizes one invoice row.
func Invoice(row int, inv model.Invoice) (model.LedgerEntry, error) {
	id := strings.TrimSpace(inv.ID)
	if id == "" {
		return model.LedgerEntry{}, &MalformedRecordError{Kind: model.KindInvoice, Row: row, ContactID: inv.ContactID, Field: "id", Err: errMissing}
	}
	ref := InvoiceRef(id)
	malformed := func(field string, err error) error {
		return &MalformedRecordError{Kind: model.KindInvoice, Row: row, Reference: ref, ContactID: inv.ContactID, Field: field, Err: err}
	}

	customerID, err := parseID(inv.ContactID)
	if err != nil {
		return model.LedgerEntry{}, malformed("contact_id", err)
	}
	total, err := parseAmount(inv.Total)
	if err != nil {
		return model.LedgerEntry{}, malformed("total", err)
	}

	return model.LedgerEntry{
		CustomerID:  customerID,
		Date:        model.ParseDate(inv.IssueDate),
		Kind:        model.KindInvoice,
		Description: describe(inv.Description, "Invoice - "+ref),
		Reference:   ref,
		Debit:       total,
		Credit:      decimal.Zero,
	}, nil
}

// Payment normalizes one payment row.
func Payment(row int, p model.Payment) (model.LedgerEntry, error) {
	ref := strings.TrimSpace(p.Reference)
	malformed := func(field string, err error) error {
		return &MalformedRecordError{Kind: model.KindPayment, Row: row, Reference: ref, ContactID: p.ContactID, Field: field, Err: err}
	}
	if ref == "" {
		return model.LedgerEntry{}, malformed("reference", errMissing)
	}

	customerID, err := parseID(p.ContactID)
	if err != nil {
		return model.LedgerEntry{}, malformed("contact_id", err)
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return model.LedgerEntry{}, malformed("amount", err)
	}

	return model.LedgerEntry{
		CustomerID:  customerID,
		Date:        model.ParseDate(p.Date),
		Kind:        model.KindPayment,
		Description: describe(p.Description, "Payment - "+ref),
		Reference:   ref,
		Debit:       decimal.Zero,
		Credit:      amount,
	}, nil
}

// CreditNote normalizes one credit note row.
func CreditNote(row int, cn model.CreditNote) (model.LedgerEntry, error) {
	ref := strings.TrimSpace(cn.Reference)
	malformed := func(field string, err error) error {
		return &MalformedRecordError{Kind: model.KindCreditNote, Row: row, Reference: ref, ContactID: cn.ContactID, Field: field, Err: err}
	}
	if ref == "" {
		return model.LedgerEntry{}, malformed("reference", errMissing)
	}

	customerID, err := parseID(cn.ContactID)
	if err != nil {
		return model.LedgerEntry{}, malformed("contact_id", err)
	}
	total, err := parseAmount(cn.TotalAmount)
	if err != nil {
		return model.LedgerEntry{}, malformed("total_amount", err)
	}

	return model.LedgerEntry{
		CustomerID:  customerID,
		Date:        model.ParseDate(cn.IssueDate),
		Kind:        model.KindCreditNote,
		Description: "Credit note - " + ref,
		Reference:   ref,
		Debit:       decimal.Zero,
		Credit:      total,
	}, nil
}

// Feeds normalizes every transaction row of f. Malformed rows are skipped
// and returned so callers can report the ones they care about; each is
// logged at debug level only.
func Feeds(f *model.Feeds, logger *zap.Logger) (model.Entries, []*MalformedRecordError) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		out     model.Entries
		skipped []*MalformedRecordError
	)
	keep := func(dst *[]model.LedgerEntry, entry model.LedgerEntry, err error) {
		if err == nil {
			*dst = append(*dst, entry)
			return
		}
		var mre *MalformedRecordError
		if !errors.As(err, &mre) {
			mre = &MalformedRecordError{Err: err}
		}
		logger.Debug("skipping malformed record",
			zap.Stringer("kind", mre.Kind),
			zap.Int("row", mre.Row),
			zap.String("reference", mre.Reference),
			zap.String("field", mre.Field),
			zap.Error(mre.Err),
		)
		skipped = append(skipped, mre)
	}

	for i, inv := range f.Invoices {
		entry, err := Invoice(i+1, inv)
		keep(&out.Invoices, entry, err)
	}
	for i, p := range f.Payments {
		entry, err := Payment(i+1, p)
		keep(&out.Payments, entry, err)
	}
	for i, cn := range f.CreditNotes {
		entry, err := CreditNote(i+1, cn)
		keep(&out.CreditNotes, entry, err)
	}
	return out, skipped
}

// describe picks the source description, composed to NFC so text exported
// in decomposed form compares and renders the same as typed text.
func describe(source, fallback string) string {
	if s := strings.TrimSpace(source); s != "" && !strings.EqualFold(s, "nan") {
		return norm.NFC.String(s)
	}
	return fallback
}

func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errMissing
	}
	// Spreadsheet exports render integer ids as "7.0".
	s = strings.TrimSuffix(s, ".0")
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing id %q: %w", s, err)
	}
	return id, nil
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return decimal.Zero, errMissing
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s", errNegative, s)
	}
	return d, nil
}
