// Package feeds persists snapshots of the upstream feeds together with the
// date they were last refreshed.
package feeds

import (
	"context"
	"errors"
	"fmt"

	"github.com/statementd/statementd/internal/model"
)

// Store is the durable home of the feed snapshot and the freshness mark.
// Readers always observe a complete snapshot; Replace swaps it wholesale.
type Store interface {
	// Load returns the current snapshot. An empty snapshot is returned if
	// nothing has been stored yet.
	Load(ctx context.Context) (*model.Feeds, error)

	// Replace persists all feeds and then sets the freshness mark to
	// refreshedOn. The mark is never written if any feed fails to persist.
	Replace(ctx context.Context, feeds *model.Feeds, refreshedOn model.Date) error

	// LastRefresh returns the persisted freshness mark, or the unknown date
	// if no refresh has completed yet.
	LastRefresh(ctx context.Context) (model.Date, error)

	Close() error
}

// PersistError reports the feed whose write failed during Replace.
type PersistError struct {
	Feed model.Feed
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persisting %s: %v", e.Feed, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// FailedFeed extracts the feed named by a PersistError in err's chain.
func FailedFeed(err error) (model.Feed, bool) {
	var pe *PersistError
	if errors.As(err, &pe) {
		return pe.Feed, true
	}
	return "", false
}
