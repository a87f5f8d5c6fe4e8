package recon

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlasbeton/atlasbeton/internal/audit"
	"github.com/atlasbeton/atlasbeton/internal/bank"
	"github.com/atlasbeton/atlasbeton/internal/ledger"
	"github.com/atlasbeton/atlasbeton/internal/platform/db"
)

// Repository provides the storage operations of the reconciliation workflow.
// It spans the bank and ledger tables because a commit must mutate both
// under one transaction.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CommitMatch links a transaction to a ledger record. The transaction guard
// runs first, so confirming an already-reconciled transaction reports its own
// state rather than the claim its earlier confirm left behind. The claim is a
// single conditional UPDATE ("claim iff currently unclaimed"), never a
// read-then-write pair, so concurrent confirm attempts on the same record
// cannot both succeed. The reconciliation record and its audit trail entry
// commit in the same transaction as both status flips.
func (r *Repository) CommitMatch(ctx context.Context, p CommitParams) (*Record, error) {
	rec := Record{
		ID:            uuid.NewString(),
		TransactionID: p.TransactionID,
		LedgerID:      p.LedgerID,
		Score:         p.Score,
		Method:        p.Method,
		CommittedBy:   p.Actor,
	}

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		updated, err := tx.Exec(ctx,
			`UPDATE bank_transactions
			 SET status = 'reconciled', linked_ledger_id = $1, confidence_score = $2, updated_at = NOW()
			 WHERE id = $3 AND status = 'unmatched'`,
			p.LedgerID, p.Score, p.TransactionID)
		if err != nil {
			return fmt.Errorf("recon: mark transaction reconciled: %w", err)
		}
		if updated.RowsAffected() == 0 {
			var status string
			err := tx.QueryRow(ctx, `SELECT status FROM bank_transactions WHERE id = $1`, p.TransactionID).Scan(&status)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrTransactionNotFound
			}
			if err != nil {
				return err
			}
			if status == string(bank.StatusReconciled) {
				return ErrAlreadyReconciled
			}
			return ErrAlreadyResolved
		}

		claimed, err := tx.Exec(ctx,
			`UPDATE ledger_records SET claimed_by = $1, updated_at = NOW()
			 WHERE id = $2 AND claimed_by IS NULL`,
			p.TransactionID, p.LedgerID)
		if err != nil {
			return fmt.Errorf("recon: claim ledger record: %w", err)
		}
		if claimed.RowsAffected() == 0 {
			var holder pgtype.Int8
			err := tx.QueryRow(ctx, `SELECT claimed_by FROM ledger_records WHERE id = $1`, p.LedgerID).Scan(&holder)
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrLedgerNotFound
			}
			if err != nil {
				return err
			}
			return ErrLedgerAlreadyClaimed
		}

		var actor pgtype.Text
		if p.Actor != nil {
			actor = pgtype.Text{String: *p.Actor, Valid: true}
		}
		err = tx.QueryRow(ctx,
			`INSERT INTO reconciliation_records (id, transaction_id, ledger_id, score, method, committed_by, committed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 RETURNING committed_at`,
			rec.ID, rec.TransactionID, rec.LedgerID, rec.Score, string(rec.Method), actor,
		).Scan(&rec.CommittedAt)
		if err != nil {
			return fmt.Errorf("recon: insert reconciliation record: %w", err)
		}

		if err := audit.NewLogger(tx).RecordReconciliation(ctx, audit.Reconciliation{
			RecordID:      rec.ID,
			TransactionID: rec.TransactionID,
			LedgerID:      rec.LedgerID,
			Score:         rec.Score,
			Method:        string(rec.Method),
			Actor:         p.Actor,
			At:            rec.CommittedAt,
		}); err != nil {
			return fmt.Errorf("recon: append audit trail: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkIgnored transitions an unmatched transaction to the terminal ignored
// state, storing the operator's reason.
func (r *Repository) MarkIgnored(ctx context.Context, transactionID int64, reason string) error {
	updated, err := r.pool.Exec(ctx,
		`UPDATE bank_transactions
		 SET status = 'ignored', notes = $1, updated_at = NOW()
		 WHERE id = $2 AND status = 'unmatched'`,
		reason, transactionID)
	if err != nil {
		return fmt.Errorf("recon: mark transaction ignored: %w", err)
	}
	if updated.RowsAffected() == 0 {
		var status string
		err := r.pool.QueryRow(ctx, `SELECT status FROM bank_transactions WHERE id = $1`, transactionID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTransactionNotFound
		}
		if err != nil {
			return err
		}
		return ErrAlreadyResolved
	}
	return nil
}

// ListUnmatched returns all unmatched transactions in the stable batch order
// that makes auto-reconcile deterministic: ascending transaction date, then id.
func (r *Repository) ListUnmatched(ctx context.Context) ([]bank.Transaction, error) {
	return bank.NewRepository(r.pool).ListUnmatchedOrdered(ctx)
}

// GetTransaction fetches one transaction for suggestion computation.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (*bank.Transaction, error) {
	txn, err := bank.NewRepository(r.pool).GetTransaction(ctx, id)
	if errors.Is(err, bank.ErrNotFound) {
		return nil, ErrTransactionNotFound
	}
	return txn, err
}

// Candidates retrieves plausible ledger records for one transaction.
func (r *Repository) Candidates(ctx context.Context, f ledger.CandidateFilter) ([]ledger.Record, error) {
	return ledger.NewRepository(r.pool).FindCandidates(ctx, f)
}
