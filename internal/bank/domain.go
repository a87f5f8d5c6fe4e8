package bank

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status enumerates bank transaction reconciliation states. Reconciled and
// ignored are terminal.
type Status string

const (
	StatusUnmatched  Status = "unmatched"
	StatusReconciled Status = "reconciled"
	StatusIgnored    Status = "ignored"
)

// Direction marks whether money entered or left the account.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// Transaction is one imported bank-statement line.
type Transaction struct {
	ID              int64
	TransactionDate time.Time
	ValueDate       *time.Time
	Label           string
	BankReference   string
	Amount          decimal.Decimal
	Direction       Direction
	Status          Status
	ConfidenceScore *float64
	LinkedLedgerID  *int64
	Notes           string
	ImportBatchID   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// RawRow is one statement line as received at the import boundary, before
// validation. All fields are raw strings.
type RawRow struct {
	Date          string `json:"date" validate:"required"`
	ValueDate     string `json:"value_date,omitempty" validate:"omitempty"`
	Label         string `json:"label" validate:"required"`
	Amount        string `json:"amount" validate:"required"`
	BankReference string `json:"bank_reference,omitempty"`
	Direction     string `json:"direction,omitempty" validate:"omitempty,oneof=credit debit"`
}

// RowRejection explains why one import row was refused.
type RowRejection struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// ImportSummary reports the outcome of one statement import.
type ImportSummary struct {
	BatchID           string         `json:"batch_id"`
	Imported          int            `json:"imported"`
	SkippedDuplicates int            `json:"skipped_duplicates"`
	Rejected          int            `json:"rejected"`
	Rejections        []RowRejection `json:"rejections,omitempty"`
}

// ListFilter narrows transaction listings.
type ListFilter struct {
	Status     Status
	SearchText string
	Limit      int
	Offset     int
}

// Stats summarises the transaction store for reporting collaborators.
type Stats struct {
	Total           int             `json:"total"`
	ReconciledCount int             `json:"reconciled_count"`
	PendingCount    int             `json:"pending_count"`
	IgnoredCount    int             `json:"ignored_count"`
	PendingAmount   decimal.Decimal `json:"pending_amount"`
}

// NewTransactionInput is one validated row ready for the transaction store.
type NewTransactionInput struct {
	TransactionDate time.Time
	ValueDate       *time.Time
	Label           string
	BankReference   string
	Amount          decimal.Decimal
	Direction       Direction
	ImportBatchID   string
}
