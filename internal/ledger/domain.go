package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind discriminates the receivable variants eligible for settlement.
type Kind string

const (
	KindInvoice  Kind = "INVOICE"
	KindDelivery Kind = "DELIVERY"
)

// Valid reports whether the kind is a known variant.
func (k Kind) Valid() bool {
	return k == KindInvoice || k == KindDelivery
}

// Record is an outstanding invoice or delivery note, owned by the ERP feed.
// The reconciliation core only ever mutates ClaimedBy, and only through the
// confirm workflow.
type Record struct {
	ID            int64
	Kind          Kind
	ClientName    string
	ReferenceCode string
	RecordDate    time.Time
	Amount        decimal.Decimal
	ClaimedBy     *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Claimed reports whether the record is already settled by a transaction.
func (r Record) Claimed() bool {
	return r.ClaimedBy != nil
}

// FeedEntry is one open receivable pushed by the ERP collaborator.
type FeedEntry struct {
	ID            int64
	Kind          Kind
	ClientName    string
	ReferenceCode string
	RecordDate    time.Time
	Amount        decimal.Decimal
}

// CandidateFilter bounds the records retrieved for scoring. Records outside
// the amount band or the date window are never returned.
type CandidateFilter struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	FromDate  time.Time
	ToDate    time.Time
}
