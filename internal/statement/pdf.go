package statement

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
)

// A4 portrait with 10mm margins; column widths add up to the 190mm body.
const (
	pdfMargin = 10.0
	pdfRowH   = 6.0
	pdfFont   = "statement"
)

var pdfColumns = []struct {
	title string
	width float64
	align string
}{
	{"Date", 22, "L"},
	{"Type", 22, "L"},
	{"Description", 58, "L"},
	{"Reference", 28, "L"},
	{"Debit", 20, "R"},
	{"Credit", 20, "R"},
	{"Balance", 20, "R"},
}

// PDFRenderer renders statements as A4 PDF documents.
type PDFRenderer struct {
	fontPath string
}

// NewPDFRenderer returns a PDF renderer. fontPath optionally names a
// TrueType font used for all text. Without one the built-in Helvetica is
// used, which only covers Windows-1252 text.
func NewPDFRenderer(fontPath string) *PDFRenderer {
	return &PDFRenderer{fontPath: fontPath}
}

// Render lays the document out as a paginated table with the column header
// repeated on every page.
func (r *PDFRenderer) Render(ctx context.Context, doc *Document) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &RenderError{Err: err}
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	pdf.AliasNbPages("")

	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if r.fontPath != "" {
		pdf.AddUTF8Font(pdfFont, "", r.fontPath)
		pdf.AddUTF8Font(pdfFont, "B", r.fontPath)
		family = pdfFont
		tr = func(s string) string { return s }
	}
	pdf.SetTitle(tr("Account statement - "+doc.CustomerName), r.fontPath != "")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfMargin)
		pdf.SetFont(family, "", 8)
		pdf.CellFormat(0, 4, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	cell := func(text string, width float64, align string, fill bool) {
		pdf.CellFormat(width, pdfRowH, tr(fit(pdf, text, width)), "1", 0, align, fill, 0, "")
	}
	header := func() {
		pdf.SetFont(family, "B", 9)
		pdf.SetFillColor(240, 240, 240)
		for _, col := range pdfColumns {
			cell(col.title, col.width, "C", true)
		}
		pdf.Ln(-1)
		pdf.SetFont(family, "", 9)
	}

	pdf.AddPage()
	pdf.SetFont(family, "B", 14)
	pdf.CellFormat(0, 8, tr("Account statement"), "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 11)
	pdf.CellFormat(0, 6, tr(doc.CustomerName), "", 1, "L", false, 0, "")
	pdf.SetFont(family, "", 9)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("From %s to %s", doc.From, doc.To)), "", 1, "L", false, 0, "")
	pdf.Ln(2)
	header()

	_, pageH := pdf.GetPageSize()
	ensureRoom := func() {
		if pdf.GetY()+pdfRowH > pageH-pdfMargin-4 {
			pdf.AddPage()
			header()
		}
	}

	if len(doc.Rows) == 0 {
		ensureRoom()
		cell("No transactions", 0, "L", false)
		pdf.Ln(-1)
	}
	for _, row := range doc.Rows {
		if err := ctx.Err(); err != nil {
			return nil, &RenderError{Err: err}
		}
		ensureRoom()
		values := []string{row.Date, row.Type, row.Description, row.Reference, row.Debit, row.Credit, row.Balance}
		for i, col := range pdfColumns {
			cell(values[i], col.width, col.align, false)
		}
		pdf.Ln(-1)
	}

	ensureRoom()
	pdf.SetFont(family, "B", 9)
	labelW := 0.0
	for _, col := range pdfColumns[:4] {
		labelW += col.width
	}
	cell("Total", labelW, "L", false)
	cell(doc.TotalDebit, pdfColumns[4].width, "R", false)
	cell(doc.TotalCredit, pdfColumns[5].width, "R", false)
	cell(doc.ClosingBalance, pdfColumns[6].width, "R", false)
	pdf.Ln(pdfRowH + 2)
	pdf.CellFormat(0, 6, tr("Closing balance: "+doc.ClosingBalance), "", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{Err: err}
	}
	return buf.Bytes(), nil
}

// fit shortens text with "..." until it fits a cell of width w.
func fit(pdf *fpdf.Fpdf, text string, w float64) string {
	if w <= 0 || pdf.GetStringWidth(text) <= w-2 {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > w-2 {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
