package statement

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/statementd/statementd/internal/model"
)

// DisplayDateLayout is the date format printed on statements.
const DisplayDateLayout = "02-01-2006"

// FormatDate renders a date as dd-mm-yyyy; the unknown date renders blank.
func FormatDate(d model.Date) string {
	return d.Format(DisplayDateLayout)
}

// FormatMoney renders an amount with thousands separators and two decimals,
// e.g. 1234567.5 -> "1,234,567.50". Any magnitude is supported.
func FormatMoney(d decimal.Decimal) string {
	fixed := d.Round(2)
	abs := fixed.Abs()
	whole := abs.Truncate(0)
	cents := abs.Sub(whole).StringFixed(2) // "0.xx"

	s := groupThousands(whole.String()) + cents[1:]
	if fixed.IsNegative() {
		return "-" + s
	}
	return s
}

// groupThousands inserts a comma every three digits from the right.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3)
	head := len(digits) % 3
	if head == 0 {
		head = 3
	}
	b.WriteString(digits[:head])
	for i := head; i < len(digits); i += 3 {
		b.WriteByte(',')
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatCell renders a debit or credit cell; zero is left blank.
func FormatCell(d decimal.Decimal) string {
	if d.Round(2).IsZero() {
		return ""
	}
	return FormatMoney(d)
}
