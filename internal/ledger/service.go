package ledger

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidFeed marks feed entries rejected before they reach storage.
var ErrInvalidFeed = errors.New("ledger: invalid feed entry")

// RepositoryPort defines data access methods for the ledger feed.
type RepositoryPort interface {
	UpsertFeed(ctx context.Context, entries []FeedEntry) (int, error)
	GetRecord(ctx context.Context, id int64) (*Record, error)
	ListOpen(ctx context.Context) ([]Record, error)
}

// Service handles ledger feed business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// SyncFeed validates and upserts the open receivables pushed by the ERP.
func (s *Service) SyncFeed(ctx context.Context, entries []FeedEntry) (int, error) {
	for _, e := range entries {
		if e.ID <= 0 {
			return 0, fmt.Errorf("%w: a positive id is required", ErrInvalidFeed)
		}
		if !e.Kind.Valid() {
			return 0, fmt.Errorf("%w: entry %d has unknown kind %q", ErrInvalidFeed, e.ID, e.Kind)
		}
		if e.ClientName == "" {
			return 0, fmt.Errorf("%w: entry %d requires a client name", ErrInvalidFeed, e.ID)
		}
		if !e.Amount.IsPositive() {
			return 0, fmt.Errorf("%w: entry %d requires a positive amount", ErrInvalidFeed, e.ID)
		}
		if e.RecordDate.IsZero() {
			return 0, fmt.Errorf("%w: entry %d requires a record date", ErrInvalidFeed, e.ID)
		}
	}
	return s.repo.UpsertFeed(ctx, entries)
}

// GetRecord returns one ledger record.
func (s *Service) GetRecord(ctx context.Context, id int64) (*Record, error) {
	return s.repo.GetRecord(ctx, id)
}

// ListOpen returns all currently unclaimed receivables.
func (s *Service) ListOpen(ctx context.Context) ([]Record, error) {
	return s.repo.ListOpen(ctx)
}
