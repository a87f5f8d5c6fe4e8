package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads the audit trail back out of PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type timelineParams struct {
	From   pgtype.Timestamptz
	To     pgtype.Timestamptz
	Actor  pgtype.Text
	Action pgtype.Text
	Entity pgtype.Text
	Offset int32
	Limit  int32
}

// TimelineWindow returns entries newest first, filtered and paged.
func (r *Repository) TimelineWindow(ctx context.Context, p timelineParams) ([]Entry, error) {
	query := `SELECT id, actor, action, entity, entity_id, meta, occurred_at
        FROM audit_logs
        WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
          AND ($2::timestamptz IS NULL OR occurred_at <= $2)
          AND ($3::text IS NULL OR actor = $3)
          AND ($4::text IS NULL OR action = $4)
          AND ($5::text IS NULL OR entity = $5)
        ORDER BY occurred_at DESC, id DESC
        OFFSET $6 LIMIT $7`

	rows, err := r.pool.Query(ctx, query, p.From, p.To, p.Actor, p.Action, p.Entity, p.Offset, p.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Actor, &e.Action, &e.Entity, &e.EntityID, &e.Meta, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
