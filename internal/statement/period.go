package statement

import (
	"fmt"
	"time"

	"github.com/statementd/statementd/internal/model"
)

// ResolvePeriod parses optional YYYY-MM-DD bounds, substituting the defaults
// for blank ones. All failures wrap ErrInvalidPeriod.
func ResolvePeriod(from, to string, defaultFrom, defaultTo model.Date) (model.Period, error) {
	p := model.Period{From: defaultFrom, To: defaultTo}
	if from != "" {
		t, err := time.Parse(model.DateLayout, from)
		if err != nil {
			return model.Period{}, fmt.Errorf("%w: from must be YYYY-MM-DD, got %q", ErrInvalidPeriod, from)
		}
		p.From = model.DateOf(t)
	}
	if to != "" {
		t, err := time.Parse(model.DateLayout, to)
		if err != nil {
			return model.Period{}, fmt.Errorf("%w: to must be YYYY-MM-DD, got %q", ErrInvalidPeriod, to)
		}
		p.To = model.DateOf(t)
	}
	if !p.Valid() {
		return model.Period{}, fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return p, nil
}
