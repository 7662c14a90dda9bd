package feeds

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/statementd/statementd/internal/model"
)

// CSV headers, one per feed file.
const (
	ContactsHeader    = "id,name"
	InvoicesHeader    = "id,contact_id,issue_date,total,description"
	PaymentsHeader    = "reference,contact_id,date,amount,description"
	CreditNotesHeader = "reference,contact_id,issue_date,total_amount"
)

// File names inside a snapshot directory.
const (
	contactsFile    = "contacts.csv"
	invoicesFile    = "invoices.csv"
	paymentsFile    = "payments.csv"
	creditNotesFile = "credit_notes.csv"
)

func fileFor(feed model.Feed) string {
	switch feed {
	case model.FeedContacts:
		return contactsFile
	case model.FeedInvoices:
		return invoicesFile
	case model.FeedPayments:
		return paymentsFile
	case model.FeedCreditNotes:
		return creditNotesFile
	}
	return string(feed) + ".csv"
}

// readRows reads a feed CSV, checks its header and returns the data rows.
func readRows(r io.Reader, header string) ([][]string, error) {
	want := strings.Split(header, ",")
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(want)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	for i, col := range want {
		if records[0][i] != col {
			return nil, fmt.Errorf("unexpected header column %d: got %q, want %q", i+1, records[0][i], col)
		}
	}
	return records[1:], nil
}

// writeRows writes a header followed by rows.
func writeRows(w io.Writer, header string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(strings.Split(header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadContacts reads a contacts.csv stream.
func ReadContacts(r io.Reader) ([]model.Contact, error) {
	rows, err := readRows(r, ContactsHeader)
	if err != nil {
		return nil, err
	}
	out := make([]model.Contact, 0, len(rows))
	for _, rec := range rows {
		out = append(out, model.Contact{ID: rec[0], Name: rec[1]})
	}
	return out, nil
}

// WriteContacts writes contacts.csv.
func WriteContacts(w io.Writer, contacts []model.Contact) error {
	rows := make([][]string, len(contacts))
	for i, c := range contacts {
		rows[i] = []string{c.ID, c.Name}
	}
	return writeRows(w, ContactsHeader, rows)
}

// ReadInvoices reads an invoices.csv stream.
func ReadInvoices(r io.Reader) ([]model.Invoice, error) {
	rows, err := readRows(r, InvoicesHeader)
	if err != nil {
		return nil, err
	}
	out := make([]model.Invoice, 0, len(rows))
	for _, rec := range rows {
		out = append(out, model.Invoice{
			ID:          rec[0],
			ContactID:   rec[1],
			IssueDate:   rec[2],
			Total:       rec[3],
			Description: rec[4],
		})
	}
	return out, nil
}

// WriteInvoices writes invoices.csv.
func WriteInvoices(w io.Writer, invoices []model.Invoice) error {
	rows := make([][]string, len(invoices))
	for i, inv := range invoices {
		rows[i] = []string{inv.ID, inv.ContactID, inv.IssueDate, inv.Total, inv.Description}
	}
	return writeRows(w, InvoicesHeader, rows)
}

// ReadPayments reads a payments.csv stream.
func ReadPayments(r io.Reader) ([]model.Payment, error) {
	rows, err := readRows(r, PaymentsHeader)
	if err != nil {
		return nil, err
	}
	out := make([]model.Payment, 0, len(rows))
	for _, rec := range rows {
		out = append(out, model.Payment{
			Reference:   rec[0],
			ContactID:   rec[1],
			Date:        rec[2],
			Amount:      rec[3],
			Description: rec[4],
		})
	}
	return out, nil
}

// WritePayments writes payments.csv.
func WritePayments(w io.Writer, payments []model.Payment) error {
	rows := make([][]string, len(payments))
	for i, p := range payments {
		rows[i] = []string{p.Reference, p.ContactID, p.Date, p.Amount, p.Description}
	}
	return writeRows(w, PaymentsHeader, rows)
}

// ReadCreditNotes reads a credit_notes.csv stream.
func ReadCreditNotes(r io.Reader) ([]model.CreditNote, error) {
	rows, err := readRows(r, CreditNotesHeader)
	if err != nil {
		return nil, err
	}
	out := make([]model.CreditNote, 0, len(rows))
	for _, rec := range rows {
		out = append(out, model.CreditNote{
			Reference:   rec[0],
			ContactID:   rec[1],
			IssueDate:   rec[2],
			TotalAmount: rec[3],
		})
	}
	return out, nil
}

// WriteCreditNotes writes credit_notes.csv.
func WriteCreditNotes(w io.Writer, notes []model.CreditNote) error {
	rows := make([][]string, len(notes))
	for i, cn := range notes {
		rows[i] = []string{cn.Reference, cn.ContactID, cn.IssueDate, cn.TotalAmount}
	}
	return writeRows(w, CreditNotesHeader, rows)
}
