package upstream

import (
	"bytes"
	"encoding/json"
)

// text accepts a JSON string, number, boolean or null and keeps it as
// text. Numbers keep their literal form so amounts are not rounded through
// float64; null becomes the empty string.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0, bytes.Equal(b, []byte("null")):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	default:
		*t = text(b)
	}
	return nil
}

type contactJSON struct {
	ID   text `json:"id"`
	Name text `json:"name"`
}

type invoiceJSON struct {
	ID          text `json:"id"`
	ContactID   text `json:"contact_id"`
	IssueDate   text `json:"issue_date"`
	Total       text `json:"total"`
	Description text `json:"description"`
}

type paymentJSON struct {
	Reference   text `json:"reference"`
	ContactID   text `json:"contact_id"`
	Date        text `json:"date"`
	Amount      text `json:"amount"`
	Description text `json:"description"`
}

type creditNoteJSON struct {
	Reference   text `json:"reference"`
	ContactID   text `json:"contact_id"`
	IssueDate   text `json:"issue_date"`
	TotalAmount text `json:"total_amount"`
}
