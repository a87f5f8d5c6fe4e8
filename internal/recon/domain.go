package recon

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlasbeton/atlasbeton/internal/ledger"
)

// Method records how a reconciliation was committed.
type Method string

const (
	MethodManual Method = "manual"
	MethodAuto   Method = "auto"
)

// Valid reports whether the method is known.
func (m Method) Valid() bool {
	return m == MethodManual || m == MethodAuto
}

// State conflict and lookup errors surfaced to callers. All are recoverable
// by re-fetching state or retrying with a different candidate.
var (
	ErrAlreadyReconciled    = errors.New("recon: transaction already reconciled")
	ErrAlreadyResolved      = errors.New("recon: transaction already resolved")
	ErrLedgerAlreadyClaimed = errors.New("recon: ledger record already claimed")
	ErrTransactionNotFound  = errors.New("recon: transaction not found")
	ErrLedgerNotFound       = errors.New("recon: ledger record not found")
)

// Reason tags name the signals that contributed to a score, so an operator
// can see why a suggestion ranked highly.
const (
	ReasonAmountExact    = "amount:exact"
	ReasonAmountClose    = "amount:close"
	ReasonDateExact      = "date:exact"
	ReasonDateClose      = "date:close"
	ReasonReferenceMatch = "reference:match"
	ReasonClientMatch    = "client:match"
)

// MatchSuggestion is a scored candidate pairing, produced by the scoring
// engine and consumed immediately. Never persisted.
type MatchSuggestion struct {
	LedgerID   int64           `json:"ledger_id"`
	Kind       ledger.Kind     `json:"kind"`
	ClientName string          `json:"client_name"`
	Amount     decimal.Decimal `json:"amount"`
	Date       time.Time       `json:"date"`
	Score      float64         `json:"score"`
	Reasons    []string        `json:"reasons"`
}

// Record is the audit-relevant fact created when a link is committed.
type Record struct {
	ID            string    `json:"id"`
	TransactionID int64     `json:"transaction_id"`
	LedgerID      int64     `json:"ledger_id"`
	Score         float64   `json:"score"`
	Method        Method    `json:"method"`
	CommittedAt   time.Time `json:"committed_at"`
	CommittedBy   *string   `json:"committed_by,omitempty"`
}

// CommitParams carries one confirm attempt into the storage boundary.
type CommitParams struct {
	TransactionID int64
	LedgerID      int64
	Score         float64
	Method        Method
	Actor         *string
}

// AutoResult reports one auto-reconcile batch run.
type AutoResult struct {
	Examined   int `json:"examined"`
	Reconciled int `json:"reconciled"`
}
