package statement

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/statementd/statementd/internal/ledger"
	"github.com/statementd/statementd/internal/model"
)

func TestPDFRenderer(t *testing.T) {
	period := model.Period{From: model.NewDate(2023, time.January, 1), To: model.NewDate(2024, time.June, 30)}
	doc := Assemble(model.Customer{ID: 7, Name: "Acme"}, period, sampleLedger())

	out, err := NewPDFRenderer("").Render(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out), "%%EOF")
}

func TestPDFRenderer_Paginates(t *testing.T) {
	entries := make([]model.LedgerEntry, 0, 120)
	for i := 0; i < 120; i++ {
		entries = append(entries, model.LedgerEntry{
			CustomerID:  7,
			Date:        model.NewDate(2024, time.January, 1+i%28),
			Kind:        model.KindInvoice,
			Description: fmt.Sprintf("A rather long invoice description that will not fit its column %d", i),
			Reference:   fmt.Sprintf("INV-%d", i),
			Debit:       decimal.NewFromInt(int64(i + 1)),
		})
	}
	doc := Assemble(model.Customer{ID: 7, Name: "Acme"}, model.Period{}, ledger.Fold(entries))

	out, err := NewPDFRenderer("").Render(context.Background(), doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.GreaterOrEqual(t, bytes.Count(out, []byte("/Type /Page\n")), 2)
}

func TestPDFRenderer_Empty(t *testing.T) {
	out, err := NewPDFRenderer("").Render(context.Background(), Assemble(model.Customer{ID: 8}, model.Period{}, ledger.Fold(nil)))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

func TestPDFRenderer_Errors(t *testing.T) {
	var renderErr *RenderError

	_, err := NewPDFRenderer(filepath.Join(t.TempDir(), "missing.ttf")).Render(context.Background(), &Document{})
	require.ErrorAs(t, err, &renderErr)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewPDFRenderer("").Render(ctx, &Document{})
	require.ErrorAs(t, err, &renderErr)
	assert.True(t, errors.Is(err, context.Canceled))
}
