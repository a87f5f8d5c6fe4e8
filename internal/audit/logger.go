package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Log is one entry being written into audit_logs.
type Log struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// Reconciliation describes one committed match for the trail.
type Reconciliation struct {
	RecordID      string
	TransactionID int64
	LedgerID      int64
	Score         float64
	Method        string
	Actor         *string
	At            time.Time
}

// Execer is satisfied by both pgxpool.Pool and pgx.Tx, so callers that must
// append a trail entry atomically with their own writes can hand in their
// open transaction.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Logger writes entries into audit_logs.
type Logger struct {
	db Execer
}

// NewLogger returns a new Logger.
func NewLogger(db Execer) *Logger {
	return &Logger{db: db}
}

// Record persists one log entry.
func (l *Logger) Record(ctx context.Context, log Log) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at any
	if !log.At.IsZero() {
		at = log.At
	}
	_, err = l.db.Exec(ctx,
		`INSERT INTO audit_logs (actor, action, entity, entity_id, meta, occurred_at)
         VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))`,
		log.Actor, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}

// RecordReconciliation appends one committed reconciliation to the trail.
func (l *Logger) RecordReconciliation(ctx context.Context, rec Reconciliation) error {
	actor := "system"
	if rec.Actor != nil && *rec.Actor != "" {
		actor = *rec.Actor
	}
	return l.Record(ctx, Log{
		Actor:    actor,
		Action:   ActionReconcile,
		Entity:   "bank_transaction",
		EntityID: strconv.FormatInt(rec.TransactionID, 10),
		Meta: map[string]any{
			"record_id": rec.RecordID,
			"ledger_id": rec.LedgerID,
			"score":     rec.Score,
			"method":    rec.Method,
		},
		At: rec.At,
	})
}
