package statement

import (
	"strconv"
	"strings"
	"unicode"
)

// FileName returns a file name for the rendered document, based on the
// customer's name with path-unsafe characters replaced.
func FileName(doc *Document, ext string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r), unicode.IsControl(r):
			return '_'
		default:
			return r
		}
	}, doc.CustomerName)
	name = strings.Trim(name, " .")
	if name == "" {
		name = "customer-" + strconv.FormatInt(doc.CustomerID, 10)
	}
	return name + ext
}
