package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlasbeton/atlasbeton/internal/bank"
	"github.com/atlasbeton/atlasbeton/internal/ledger"
)

// RepositoryPort defines the storage operations of the workflow.
type RepositoryPort interface {
	GetTransaction(ctx context.Context, id int64) (*bank.Transaction, error)
	Candidates(ctx context.Context, f ledger.CandidateFilter) ([]ledger.Record, error)
	CommitMatch(ctx context.Context, p CommitParams) (*Record, error)
	MarkIgnored(ctx context.Context, transactionID int64, reason string) error
	ListUnmatched(ctx context.Context) ([]bank.Transaction, error)
}

// StatsInvalidator flushes cached store statistics after state changes.
type StatsInvalidator interface {
	InvalidateStats(ctx context.Context) error
}

// Service coordinates candidate generation, scoring and commit.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
	scorer *Scorer
	stats  StatsInvalidator
}

// NewService builds a Service instance. stats may be nil.
func NewService(logger *slog.Logger, repo RepositoryPort, scorer *Scorer, stats StatsInvalidator) *Service {
	if scorer == nil {
		scorer = NewScorer(ScorerConfig{})
	}
	return &Service{logger: logger, repo: repo, scorer: scorer, stats: stats}
}

// Suggest retrieves plausible ledger records for one transaction and returns
// them scored and ranked. The transaction must still be unmatched.
func (s *Service) Suggest(ctx context.Context, transactionID int64) ([]MatchSuggestion, error) {
	txn, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != bank.StatusUnmatched {
		return nil, ErrAlreadyResolved
	}
	return s.suggestFor(ctx, *txn)
}

func (s *Service) suggestFor(ctx context.Context, txn bank.Transaction) ([]MatchSuggestion, error) {
	candidates, err := s.repo.Candidates(ctx, s.candidateFilter(txn))
	if err != nil {
		return nil, fmt.Errorf("recon: candidates for transaction %d: %w", txn.ID, err)
	}
	return s.scorer.Rank(txn, candidates), nil
}

// candidateFilter bounds the ledger scan to the amount tolerance band and
// the date window around the transaction.
func (s *Service) candidateFilter(txn bank.Transaction) ledger.CandidateFilter {
	amount := txn.Amount.Abs()
	tolerance := decimal.NewFromFloat(s.scorer.AmountTolerance())
	band := amount.Mul(tolerance)
	window := time.Duration(s.scorer.DateWindowDays()) * 24 * time.Hour
	return ledger.CandidateFilter{
		MinAmount: amount.Sub(band),
		MaxAmount: amount.Add(band),
		FromDate:  txn.TransactionDate.Add(-window),
		ToDate:    txn.TransactionDate.Add(window),
	}
}

// ConfirmInput carries one confirmation request.
type ConfirmInput struct {
	TransactionID int64
	LedgerID      int64
	// Score is the suggestion score the operator acted on; zero for a fully
	// manual override with no prior suggestion.
	Score  float64
	Method Method
	Actor  *string
}

// Confirm commits a transaction-to-ledger link. The claim is atomic at the
// storage boundary; state conflicts are returned to the caller, never
// swallowed. The commit carries its audit trail entry in the same storage
// transaction, so every successful confirm is on the trail exactly once.
func (s *Service) Confirm(ctx context.Context, input ConfirmInput) (*Record, error) {
	if !input.Method.Valid() {
		return nil, fmt.Errorf("recon: unknown method %q", input.Method)
	}
	if input.Score < 0 || input.Score > 1 {
		return nil, fmt.Errorf("recon: score %v outside [0,1]", input.Score)
	}

	rec, err := s.repo.CommitMatch(ctx, CommitParams{
		TransactionID: input.TransactionID,
		LedgerID:      input.LedgerID,
		Score:         input.Score,
		Method:        input.Method,
		Actor:         input.Actor,
	})
	if err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	return rec, nil
}

// Ignore marks an unmatched transaction as ignored, keeping the reason.
func (s *Service) Ignore(ctx context.Context, transactionID int64, reason string) error {
	if err := s.repo.MarkIgnored(ctx, transactionID, reason); err != nil {
		return err
	}
	s.invalidateStats(ctx)
	return nil
}

// AutoReconcile runs one greedy batch over all unmatched transactions in
// ascending (transaction_date, id) order. For each transaction the best
// candidate at or above the threshold is committed; when a record was
// claimed by an earlier transaction in the same batch, the next-best
// candidate above threshold is tried. Single-transaction failures never
// abort the batch, and already-resolved transactions are skipped by
// precondition, so a partially completed run is safe to repeat.
func (s *Service) AutoReconcile(ctx context.Context, threshold float64) (AutoResult, error) {
	if threshold < 0 || threshold > 1 {
		return AutoResult{}, fmt.Errorf("recon: threshold %v outside [0,1]", threshold)
	}

	pending, err := s.repo.ListUnmatched(ctx)
	if err != nil {
		return AutoResult{}, err
	}

	result := AutoResult{}
	for _, txn := range pending {
		result.Examined++

		suggestions, err := s.suggestFor(ctx, txn)
		if err != nil {
			s.logger.Warn("auto-reconcile scoring failed",
				slog.Int64("transaction_id", txn.ID), slog.Any("error", err))
			continue
		}

		for _, suggestion := range suggestions {
			if suggestion.Score < threshold {
				break
			}
			_, err := s.Confirm(ctx, ConfirmInput{
				TransactionID: txn.ID,
				LedgerID:      suggestion.LedgerID,
				Score:         suggestion.Score,
				Method:        MethodAuto,
			})
			if err == nil {
				result.Reconciled++
				break
			}
			if errors.Is(err, ErrLedgerAlreadyClaimed) {
				// Claimed earlier in this batch or by a racing manual
				// confirm; fall through to the next-best candidate.
				continue
			}
			s.logger.Warn("auto-reconcile commit failed",
				slog.Int64("transaction_id", txn.ID),
				slog.Int64("ledger_id", suggestion.LedgerID),
				slog.Any("error", err))
			break
		}
	}

	s.logger.Info("auto-reconcile batch finished",
		slog.Int("examined", result.Examined),
		slog.Int("reconciled", result.Reconciled),
		slog.Float64("threshold", threshold))
	return result, nil
}

func (s *Service) invalidateStats(ctx context.Context) {
	if s.stats == nil {
		return
	}
	if err := s.stats.InvalidateStats(ctx); err != nil {
		s.logger.Warn("stats cache invalidation failed", slog.Any("error", err))
	}
}
