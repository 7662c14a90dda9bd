package statement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/statementd/statementd/internal/customers"
	"github.com/statementd/statementd/internal/feeds"
	"github.com/statementd/statementd/internal/freshness"
	"github.com/statementd/statementd/internal/ledger"
	"github.com/statementd/statementd/internal/model"
	"github.com/statementd/statementd/internal/normalize"
)

// ErrInvalidPeriod is returned when a period has an unknown bound or ends
// before it starts.
var ErrInvalidPeriod = errors.New("invalid statement period")

// Service builds customer statements on top of the local feed snapshot,
// refreshing it from upstream first when it is stale.
type Service struct {
	store    feeds.Store
	gate     *freshness.Gate
	fetcher  freshness.Fetcher
	renderer Renderer
	logger   *zap.Logger
}

// NewService wires a statement service. A nil fetcher disables refreshing:
// statements are then built from whatever snapshot is on disk.
func NewService(store feeds.Store, gate *freshness.Gate, fetcher freshness.Fetcher, renderer Renderer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		gate:     gate,
		fetcher:  fetcher,
		renderer: renderer,
		logger:   logger,
	}
}

// Today is the current calendar date in the service's time zone.
func (s *Service) Today() model.Date { return s.gate.Today() }

// LastRefresh returns the date of the last successful refresh.
func (s *Service) LastRefresh(ctx context.Context) (model.Date, error) {
	return s.gate.LastRefresh(ctx)
}

// IsFresh reports whether the snapshot was refreshed today.
func (s *Service) IsFresh(ctx context.Context) (bool, error) {
	return s.gate.IsFresh(ctx)
}

// Refresh unconditionally pulls all four feeds.
func (s *Service) Refresh(ctx context.Context) (freshness.Result, error) {
	if s.fetcher == nil {
		return freshness.Result{}, errors.New("refresh: no upstream configured")
	}
	return s.gate.Refresh(ctx, s.fetcher)
}

// EnsureFresh refreshes only when the snapshot is stale.
func (s *Service) EnsureFresh(ctx context.Context) (freshness.Result, error) {
	if s.fetcher == nil {
		fresh, err := s.gate.IsFresh(ctx)
		if err != nil {
			return freshness.Result{}, err
		}
		if !fresh {
			s.logger.Warn("building from stale snapshot, no upstream configured")
		}
		return freshness.Result{Skipped: true}, nil
	}
	return s.gate.EnsureFresh(ctx, s.fetcher)
}

// Customers lists the customers of the current snapshot.
func (s *Service) Customers(ctx context.Context) ([]model.Customer, error) {
	f, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading feeds: %w", err)
	}
	dir, _ := customers.NewDirectory(f.Contacts)
	return dir.All(), nil
}

// BuildStatement produces the statement document for one customer. A refresh
// failure is returned as *freshness.RefreshError and nothing is built.
func (s *Service) BuildStatement(ctx context.Context, customerID int64, period model.Period) (*Document, error) {
	if !period.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPeriod, period)
	}
	if _, err := s.EnsureFresh(ctx); err != nil {
		return nil, err
	}

	f, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading feeds: %w", err)
	}

	dir, invalid := customers.NewDirectory(f.Contacts)
	for _, c := range invalid {
		s.logger.Warn("skipping contact with non-numeric id",
			zap.String("id", c.ID), zap.String("name", c.Name))
	}
	customer, err := dir.Get(customerID)
	if err != nil {
		return nil, err
	}

	entries, skipped := normalize.Feeds(f, s.logger)
	l := ledger.Merge(customerID, entries)

	doc := Assemble(customer, period, l)
	for _, mre := range skipped {
		if !mre.BelongsTo(customerID) {
			continue
		}
		doc.SkippedRecords++
		s.logger.Warn("skipping malformed record",
			zap.Int64("customer_id", customerID),
			zap.Stringer("kind", mre.Kind),
			zap.Int("row", mre.Row),
			zap.String("reference", mre.Reference),
			zap.String("field", mre.Field),
			zap.Error(mre.Err))
	}
	if len(skipped) > doc.SkippedRecords {
		s.logger.Debug("snapshot has malformed records for other customers",
			zap.Int("total", len(skipped)))
	}

	s.logger.Info("statement built",
		zap.Int64("customer_id", customerID),
		zap.String("period", period.String()),
		zap.Int("rows", len(doc.Rows)),
		zap.String("closing_balance", doc.ClosingBalance))
	return doc, nil
}

// RenderStatement builds the statement and renders it with the default
// renderer.
func (s *Service) RenderStatement(ctx context.Context, customerID int64, period model.Period) ([]byte, *Document, error) {
	return s.Render(ctx, s.renderer, customerID, period)
}

// Render builds the statement and renders it with r. The document is
// returned alongside a render failure.
func (s *Service) Render(ctx context.Context, r Renderer, customerID int64, period model.Period) ([]byte, *Document, error) {
	doc, err := s.BuildStatement(ctx, customerID, period)
	if err != nil {
		return nil, nil, err
	}
	out, err := r.Render(ctx, doc)
	if err != nil {
		return nil, doc, err
	}
	return out, doc, nil
}
