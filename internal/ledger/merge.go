// Package ledger merges normalized entries for one customer into a
// chronological ledger with a running balance.
package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/statementd/statementd/internal/model"
)

// Row is a ledger entry paired with the balance after applying it.
type Row struct {
	model.LedgerEntry
	Balance decimal.Decimal
}

// Ledger is the merged, balanced result for one customer.
type Ledger struct {
	CustomerID     int64
	Rows           []Row
	TotalDebit     decimal.Decimal
	TotalCredit    decimal.Decimal
	ClosingBalance decimal.Decimal
}

// Merge selects the entries belonging to customerID, orders them
// chronologically and folds a running balance. Same-day entries keep source
// order: invoices, then payments, then credit notes, each in row order.
// Unknown dates sort first. The input is not modified.
func Merge(customerID int64, entries model.Entries) Ledger {
	selected := make([]model.LedgerEntry, 0, entries.Len())
	for _, src := range [][]model.LedgerEntry{entries.Invoices, entries.Payments, entries.CreditNotes} {
		for _, e := range src {
			if e.CustomerID == customerID {
				selected = append(selected, e)
			}
		}
	}

	Sort(selected)

	l := Fold(selected)
	l.CustomerID = customerID
	return l
}

// Sort orders entries ascending by date in place. The sort is stable, so
// callers control the tie-break through the input order.
func Sort(entries []model.LedgerEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Date.Before(entries[j].Date)
	})
}

// Fold computes running balances over already-ordered entries.
func Fold(entries []model.LedgerEntry) Ledger {
	l := Ledger{
		Rows:           make([]Row, 0, len(entries)),
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
		ClosingBalance: decimal.Zero,
	}
	balance := decimal.Zero
	for _, e := range entries {
		balance = balance.Add(e.Debit).Sub(e.Credit)
		l.TotalDebit = l.TotalDebit.Add(e.Debit)
		l.TotalCredit = l.TotalCredit.Add(e.Credit)
		l.Rows = append(l.Rows, Row{LedgerEntry: e, Balance: balance})
	}
	l.ClosingBalance = balance
	return l
}
