package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates the ledger record does not exist.
var ErrNotFound = errors.New("ledger: not found")

// Repository provides PostgreSQL backed persistence for ledger records.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordColumns = `id, kind, client_name, reference_code, record_date, amount, claimed_by, created_at, updated_at`

// UpsertFeed inserts or refreshes open receivables from the ERP feed.
// claimed_by is deliberately excluded from the update set.
func (r *Repository) UpsertFeed(ctx context.Context, entries []FeedEntry) (int, error) {
	query := `
		INSERT INTO ledger_records (id, kind, client_name, reference_code, record_date, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			client_name = EXCLUDED.client_name,
			reference_code = EXCLUDED.reference_code,
			record_date = EXCLUDED.record_date,
			amount = EXCLUDED.amount,
			updated_at = NOW()`

	count := 0
	for _, e := range entries {
		if _, err := r.pool.Exec(ctx, query,
			e.ID,
			string(e.Kind),
			e.ClientName,
			e.ReferenceCode,
			e.RecordDate,
			e.Amount.String(),
		); err != nil {
			return count, fmt.Errorf("ledger: upsert feed record %d: %w", e.ID, err)
		}
		count++
	}
	return count, nil
}

// GetRecord retrieves a ledger record by id.
func (r *Repository) GetRecord(ctx context.Context, id int64) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ledger_records WHERE id = $1`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListOpen returns all currently unclaimed receivables.
func (r *Repository) ListOpen(ctx context.Context) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM ledger_records WHERE claimed_by IS NULL ORDER BY record_date, id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// FindCandidates returns unclaimed records within the amount band and date
// window, in a stable (record_date, id) order.
func (r *Repository) FindCandidates(ctx context.Context, f CandidateFilter) ([]Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM ledger_records
		WHERE claimed_by IS NULL
		  AND amount BETWEEN $1 AND $2
		  AND record_date BETWEEN $3 AND $4
		ORDER BY record_date, id`

	rows, err := r.pool.Query(ctx, query, f.MinAmount.String(), f.MaxAmount.String(), f.FromDate, f.ToDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var kind string
	var amount pgtype.Numeric
	var claimedBy pgtype.Int8

	if err := row.Scan(
		&rec.ID, &kind, &rec.ClientName, &rec.ReferenceCode, &rec.RecordDate,
		&amount, &claimedBy, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rec.Kind = Kind(kind)
	rec.Amount = numericToDecimal(amount)
	if claimedBy.Valid {
		rec.ClaimedBy = &claimedBy.Int64
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]Record, error) {
	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
