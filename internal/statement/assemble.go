// Package statement turns a merged ledger into a render-ready account
// statement and exposes the statement-building service.
package statement

import (
	"github.com/statementd/statementd/internal/ledger"
	"github.com/statementd/statementd/internal/model"
)

// Row is one display line of a statement.
type Row struct {
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
	Balance     string `json:"balance"`
}

// Document is the fully populated statement handed to a Renderer.
type Document struct {
	CustomerID     int64  `json:"customer_id"`
	CustomerName   string `json:"customer_name"`
	From           string `json:"from"`
	To             string `json:"to"`
	Rows           []Row  `json:"rows"`
	TotalDebit     string `json:"total_debit"`
	TotalCredit    string `json:"total_credit"`
	ClosingBalance string `json:"closing_balance"`
	SkippedRecords int    `json:"skipped_records"`
}

// Assemble binds a merged ledger to its customer and period.
func Assemble(customer model.Customer, period model.Period, l ledger.Ledger) *Document {
	doc := &Document{
		CustomerID:     customer.ID,
		CustomerName:   customer.Name,
		From:           FormatDate(period.From),
		To:             FormatDate(period.To),
		Rows:           make([]Row, 0, len(l.Rows)),
		TotalDebit:     FormatMoney(l.TotalDebit),
		TotalCredit:    FormatMoney(l.TotalCredit),
		ClosingBalance: FormatMoney(l.ClosingBalance),
	}
	for _, r := range l.Rows {
		doc.Rows = append(doc.Rows, Row{
			Date:        FormatDate(r.Date),
			Type:        r.Kind.Label(),
			Description: r.Description,
			Reference:   r.Reference,
			Debit:       FormatCell(r.Debit),
			Credit:      FormatCell(r.Credit),
			Balance:     FormatMoney(r.Balance),
		})
	}
	return doc
}
