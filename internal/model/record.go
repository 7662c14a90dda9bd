package model

// Feed names one of the four upstream collections.
type Feed string

const (
	FeedContacts    Feed = "contacts"
	FeedInvoices    Feed = "invoices"
	FeedPayments    Feed = "payments"
	FeedCreditNotes Feed = "credit_notes"
)

// AllFeeds lists the feeds in refresh order.
var AllFeeds = []Feed{FeedContacts, FeedInvoices, FeedCreditNotes, FeedPayments}

// Contact is a row of the contacts feed.
type Contact struct {
	ID   string
	Name string
}

// Invoice is a row of the invoices feed. Numeric fields are kept as source
// text and validated during normalization.
type Invoice struct {
	ID          string // required
	ContactID   string // required
	IssueDate   string
	Total       string // required
	Description string // optional
}

// Payment is a row of the invoice payments feed.
type Payment struct {
	Reference   string // required
	ContactID   string // required
	Date        string
	Amount      string // required
	Description string // optional
}

// CreditNote is a row of the credit notes feed.
type CreditNote struct {
	Reference   string // required
	ContactID   string // required
	IssueDate   string
	TotalAmount string // required
}

// Feeds holds one snapshot of all four upstream collections.
type Feeds struct {
	Contacts    []Contact
	Invoices    []Invoice
	Payments    []Payment
	CreditNotes []CreditNote
}

// Count returns the number of rows in feed f.
func (f *Feeds) Count(feed Feed) int {
	switch feed {
	case FeedContacts:
		return len(f.Contacts)
	case FeedInvoices:
		return len(f.Invoices)
	case FeedPayments:
		return len(f.Payments)
	case FeedCreditNotes:
		return len(f.CreditNotes)
	}
	return 0
}
