package model

import "github.com/shopspring/decimal"

// Kind classifies a ledger entry by its source feed.
type Kind int

// The declaration order is the same-day tie-break order.
const (
	KindInvoice Kind = iota
	KindPayment
	KindCreditNote
)

func (k Kind) String() string {
	switch k {
	case KindInvoice:
		return "invoice"
	case KindPayment:
		return "payment"
	case KindCreditNote:
		return "credit_note"
	}
	return "unknown"
}

// Label is the display name used on statements.
func (k Kind) Label() string {
	switch k {
	case KindInvoice:
		return "Invoice"
	case KindPayment:
		return "Payment"
	case KindCreditNote:
		return "Credit note"
	}
	return ""
}

// LedgerEntry is one normalized debit-or-credit movement on a customer account.
type LedgerEntry struct {
	CustomerID  int64
	Date        Date
	Kind        Kind
	Description string
	Reference   string
	Debit       decimal.Decimal // zero if credit side
	Credit      decimal.Decimal // zero if debit side
}

// Net returns Debit - Credit.
func (e LedgerEntry) Net() decimal.Decimal {
	return e.Debit.Sub(e.Credit)
}

// Entries holds normalized entries grouped by source, each in source row order.
type Entries struct {
	Invoices    []LedgerEntry
	Payments    []LedgerEntry
	CreditNotes []LedgerEntry
}

// Len returns the total number of entries.
func (e Entries) Len() int {
	return len(e.Invoices) + len(e.Payments) + len(e.CreditNotes)
}

// Customer identifies the statement holder.
type Customer struct {
	ID   int64
	Name string
}
