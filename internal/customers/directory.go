package customers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/statementd/statementd/internal/model"
)

// ErrNotFound is matched by every NotFoundError.
var ErrNotFound = errors.New("customer not found")

// NotFoundError reports an unknown customer id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("customer %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Directory provides in-memory lookup over the contacts feed.
type Directory struct {
	customers []model.Customer
	byID      map[int64]model.Customer
}

// NewDirectory builds a Directory from raw contacts. Contacts whose id is not
// an integer are returned in invalid and left out of the directory. When an
// id repeats, the first contact wins.
func NewDirectory(contacts []model.Contact) (d *Directory, invalid []model.Contact) {
	d = &Directory{byID: make(map[int64]model.Customer, len(contacts))}
	for _, c := range contacts {
		id, err := strconv.ParseInt(strings.TrimSuffix(strings.TrimSpace(c.ID), ".0"), 10, 64)
		if err != nil {
			invalid = append(invalid, c)
			continue
		}
		if _, ok := d.byID[id]; ok {
			continue
		}
		cust := model.Customer{ID: id, Name: norm.NFC.String(strings.TrimSpace(c.Name))}
		d.customers = append(d.customers, cust)
		d.byID[id] = cust
	}
	return d, invalid
}

// All returns all customers in feed order.
func (d *Directory) All() []model.Customer {
	return d.customers
}

// Get returns a customer by id, or a NotFoundError.
func (d *Directory) Get(id int64) (model.Customer, error) {
	c, ok := d.byID[id]
	if !ok {
		return model.Customer{}, &NotFoundError{ID: id}
	}
	return c, nil
}

// Exists reports whether a customer id exists.
func (d *Directory) Exists(id int64) bool {
	_, ok := d.byID[id]
	return ok
}
