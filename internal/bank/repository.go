package bank

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates the transaction does not exist.
	ErrNotFound = errors.New("bank: transaction not found")
	// ErrDuplicate indicates the dedup key already exists in the store.
	ErrDuplicate = errors.New("bank: duplicate transaction")
)

// Repository provides PostgreSQL backed persistence for bank transactions.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const transactionColumns = `id, transaction_date, value_date, label, bank_reference, amount, direction,
	status, confidence_score, linked_ledger_id, notes, import_batch_id, created_at, updated_at`

// InsertTransaction appends one accepted statement row with status unmatched.
// The uq_bank_txn_dedup index enforces the dedup key, making repeated imports
// of overlapping statement exports idempotent.
func (r *Repository) InsertTransaction(ctx context.Context, input NewTransactionInput) (*Transaction, error) {
	query := `
		INSERT INTO bank_transactions (
			transaction_date, value_date, label, bank_reference, amount, direction,
			status, notes, import_batch_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 'unmatched', '', $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`

	var valueDate pgtype.Date
	if input.ValueDate != nil {
		valueDate = pgtype.Date{Time: *input.ValueDate, Valid: true}
	}

	var txn Transaction
	err := r.pool.QueryRow(ctx, query,
		input.TransactionDate,
		valueDate,
		input.Label,
		input.BankReference,
		input.Amount.String(),
		string(input.Direction),
		input.ImportBatchID,
	).Scan(&txn.ID, &txn.CreatedAt, &txn.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_bank_txn_dedup" {
			return nil, ErrDuplicate
		}
		return nil, fmt.Errorf("bank: insert transaction: %w", err)
	}

	txn.TransactionDate = input.TransactionDate
	txn.ValueDate = input.ValueDate
	txn.Label = input.Label
	txn.BankReference = input.BankReference
	txn.Amount = input.Amount
	txn.Direction = input.Direction
	txn.Status = StatusUnmatched
	txn.ImportBatchID = input.ImportBatchID

	return &txn, nil
}

// GetTransaction retrieves a transaction by id.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transactions WHERE id = $1`

	txn, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// List returns transactions matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transactions WHERE 1=1`

	args := []any{}
	argNum := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, string(filter.Status))
		argNum++
	}
	if filter.SearchText != "" {
		query += fmt.Sprintf(" AND (label ILIKE $%d OR bank_reference ILIKE $%d)", argNum, argNum)
		args = append(args, "%"+filter.SearchText+"%")
		argNum++
	}

	query += " ORDER BY transaction_date DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// ListUnmatchedOrdered returns every unmatched transaction in ascending
// (transaction_date, id) order, the stable order batch processing relies on.
func (r *Repository) ListUnmatchedOrdered(ctx context.Context) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM bank_transactions
		WHERE status = 'unmatched' ORDER BY transaction_date, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// CountByStatus counts transactions, optionally narrowed to one status.
func (r *Repository) CountByStatus(ctx context.Context, status Status) (int, error) {
	var count int
	var err error
	if status == "" {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bank_transactions`).Scan(&count)
	} else {
		err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM bank_transactions WHERE status = $1`, string(status)).Scan(&count)
	}
	return count, err
}

// SumAmountByStatus totals transaction amounts for one status.
func (r *Repository) SumAmountByStatus(ctx context.Context, status Status) (decimal.Decimal, error) {
	var sum pgtype.Numeric
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM bank_transactions WHERE status = $1`,
		string(status),
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, err
	}
	return numericToDecimal(sum), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*Transaction, error) {
	var txn Transaction
	var valueDate pgtype.Date
	var amount pgtype.Numeric
	var direction, status string
	var confidence pgtype.Float8
	var linkedLedgerID pgtype.Int8

	if err := row.Scan(
		&txn.ID, &txn.TransactionDate, &valueDate, &txn.Label, &txn.BankReference,
		&amount, &direction, &status, &confidence, &linkedLedgerID,
		&txn.Notes, &txn.ImportBatchID, &txn.CreatedAt, &txn.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if valueDate.Valid {
		txn.ValueDate = &valueDate.Time
	}
	txn.Amount = numericToDecimal(amount)
	txn.Direction = Direction(direction)
	txn.Status = Status(status)
	if confidence.Valid {
		txn.ConfidenceScore = &confidence.Float64
	}
	if linkedLedgerID.Valid {
		txn.LinkedLedgerID = &linkedLedgerID.Int64
	}
	return &txn, nil
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
