package bank

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// Statement exports disagree on date formats; these are the ones accepted at
// the import boundary.
var dateFormats = []string{"2006-01-02", "02/01/2006"}

// RepositoryPort defines data access methods for the transaction store.
type RepositoryPort interface {
	InsertTransaction(ctx context.Context, input NewTransactionInput) (*Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]Transaction, error)
	CountByStatus(ctx context.Context, status Status) (int, error)
	SumAmountByStatus(ctx context.Context, status Status) (decimal.Decimal, error)
}

// Service handles statement imports and store projections.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	cache  *Cache
}

// NewService builds a Service instance. cache may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, cache *Cache) *Service {
	return &Service{logger: logger, repo: repo, cache: cache}
}

// Import validates, deduplicates and stores raw statement rows. Malformed
// rows are rejected and counted, never fatal to the batch; exact dedup-key
// matches are skipped so re-importing an overlapping export is idempotent.
func (s *Service) Import(ctx context.Context, rows []RawRow) (ImportSummary, error) {
	summary := ImportSummary{BatchID: uuid.NewString()}

	for i, row := range rows {
		line := i + 1
		input, reason := validateRow(row)
		if reason != "" {
			summary.Rejected++
			summary.Rejections = append(summary.Rejections, RowRejection{Line: line, Reason: reason})
			continue
		}
		input.ImportBatchID = summary.BatchID

		_, err := s.repo.InsertTransaction(ctx, input)
		if errors.Is(err, ErrDuplicate) {
			summary.SkippedDuplicates++
			continue
		}
		if err != nil {
			return summary, err
		}
		summary.Imported++
	}

	if summary.Imported > 0 {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("stats cache invalidation failed",
				slog.String("batch_id", summary.BatchID), slog.Any("error", err))
		}
	}
	return summary, nil
}

// GetTransaction returns one transaction.
func (s *Service) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// List returns transactions matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 100
	}
	return s.repo.List(ctx, filter)
}

// Stats derives counts and sums over the transaction store, served from the
// versioned cache when one is configured.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	key, err := s.cache.BuildKey(ctx, "bank", "stats")
	if err != nil {
		return s.loadStats(ctx)
	}
	var stats Stats
	if err := s.cache.FetchJSON(ctx, key, &stats, func(ctx context.Context) (interface{}, error) {
		return s.loadStats(ctx)
	}); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (s *Service) loadStats(ctx context.Context) (Stats, error) {
	var stats Stats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		total, err := s.repo.CountByStatus(gctx, "")
		stats.Total = total
		return err
	})
	g.Go(func() error {
		count, err := s.repo.CountByStatus(gctx, StatusReconciled)
		stats.ReconciledCount = count
		return err
	})
	g.Go(func() error {
		count, err := s.repo.CountByStatus(gctx, StatusUnmatched)
		stats.PendingCount = count
		return err
	})
	g.Go(func() error {
		count, err := s.repo.CountByStatus(gctx, StatusIgnored)
		stats.IgnoredCount = count
		return err
	})
	g.Go(func() error {
		sum, err := s.repo.SumAmountByStatus(gctx, StatusUnmatched)
		stats.PendingAmount = sum
		return err
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// InvalidateStats bumps the cache version after external writes to the store.
func (s *Service) InvalidateStats(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func validateRow(row RawRow) (NewTransactionInput, string) {
	var input NewTransactionInput

	if strings.TrimSpace(row.Label) == "" {
		return input, "missing label"
	}
	input.Label = strings.TrimSpace(row.Label)

	date, ok := parseDate(row.Date)
	if !ok {
		return input, "missing or invalid transaction date"
	}
	input.TransactionDate = date

	if row.ValueDate != "" {
		if valueDate, ok := parseDate(row.ValueDate); ok {
			input.ValueDate = &valueDate
		}
	}

	amount, err := parseAmount(row.Amount)
	if err != nil {
		return input, "unparseable amount"
	}
	input.Amount = amount

	switch Direction(row.Direction) {
	case DirectionCredit, DirectionDebit:
		input.Direction = Direction(row.Direction)
	case "":
		if amount.IsNegative() {
			input.Direction = DirectionDebit
		} else {
			input.Direction = DirectionCredit
		}
	default:
		return input, "unknown direction"
	}

	input.BankReference = strings.TrimSpace(row.BankReference)
	return input, ""
}

func parseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseAmount(value string) (decimal.Decimal, error) {
	value = strings.ReplaceAll(strings.TrimSpace(value), " ", "")
	// French exports use the comma as decimal separator.
	if strings.Contains(value, ",") && !strings.Contains(value, ".") {
		value = strings.Replace(value, ",", ".", 1)
	}
	return decimal.NewFromString(value)
}
