package recon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasbeton/atlasbeton/internal/bank"
	"github.com/atlasbeton/atlasbeton/internal/ledger"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func txnOn(date time.Time, amount, label string) bank.Transaction {
	return bank.Transaction{
		ID:              1,
		TransactionDate: date,
		Label:           label,
		Amount:          decimal.RequireFromString(amount),
		Direction:       bank.DirectionCredit,
		Status:          bank.StatusUnmatched,
	}
}

func invoiceOn(id int64, date time.Time, amount, client, ref string) ledger.Record {
	return ledger.Record{
		ID:            id,
		Kind:          ledger.KindInvoice,
		ClientName:    client,
		ReferenceCode: ref,
		RecordDate:    date,
		Amount:        decimal.RequireFromString(amount),
	}
}

func TestScoreExactAmountNearDateKnownClient(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	txn := txnOn(day(2024, 3, 15), "15000.00", "VIR CIMENTS DU MAROC FAC 2024-112")
	inv := invoiceOn(7, day(2024, 3, 12), "15000.00", "Ciments du Maroc", "FAC-2024-112")

	score, reasons := scorer.Score(txn, inv)
	require.GreaterOrEqual(t, score, 0.9)
	require.LessOrEqual(t, score, 1.0)
	assert.Contains(t, reasons, ReasonAmountExact)
	assert.Contains(t, reasons, ReasonDateClose)
	assert.Contains(t, reasons, ReasonClientMatch)
	assert.Contains(t, reasons, ReasonReferenceMatch)
}

func TestScoreCapsAtOne(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	txn := txnOn(day(2024, 3, 15), "15000.00", "VIR CIMENTS DU MAROC FAC 2024-112")
	inv := invoiceOn(7, day(2024, 3, 15), "15000.00", "Ciments du Maroc", "FAC-2024-112")

	score, reasons := scorer.Score(txn, inv)
	require.Equal(t, 1.0, score)
	assert.Contains(t, reasons, ReasonDateExact)
}

func TestScoreAmountOutsideToleranceGetsNoAmountSignal(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	txn := txnOn(day(2024, 3, 15), "10000.00", "VIR ATLAS TRANSPORT")
	inv := invoiceOn(7, day(2024, 3, 15), "11000.00", "Atlas Transport", "")

	score, reasons := scorer.Score(txn, inv)
	assert.NotContains(t, reasons, ReasonAmountExact)
	assert.NotContains(t, reasons, ReasonAmountClose)
	// date + client only
	assert.InDelta(t, 0.45, score, 1e-9)
}

func TestScoreAmountWithinTolerance(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	// 1% below the invoice, half the tolerance band left.
	txn := txnOn(day(2024, 3, 15), "9900.00", "PAIEMENT DIVERS")
	inv := invoiceOn(7, day(2024, 3, 15), "10000.00", "Client Inconnu", "")

	score, reasons := scorer.Score(txn, inv)
	assert.Contains(t, reasons, ReasonAmountClose)
	// amount 0.5*(1-0.01/0.02) + date 0.25
	assert.InDelta(t, 0.50, score, 1e-9)
}

func TestScoreDateOutsideWindowGetsNoDateSignal(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	txn := txnOn(day(2024, 6, 1), "5000.00", "VIR SOMACA")
	inv := invoiceOn(7, day(2024, 3, 1), "5000.00", "Somaca", "")

	score, reasons := scorer.Score(txn, inv)
	assert.NotContains(t, reasons, ReasonDateExact)
	assert.NotContains(t, reasons, ReasonDateClose)
	// amount + client only
	assert.InDelta(t, 0.70, score, 1e-9)
}

func TestScoreDateDecayIsLinear(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	txn := txnOn(day(2024, 3, 15), "5000.00", "REGLEMENT")
	near := invoiceOn(1, day(2024, 3, 14), "5000.00", "Autre", "")
	far := invoiceOn(2, day(2024, 2, 1), "5000.00", "Autre", "")

	nearScore, _ := scorer.Score(txn, near)
	farScore, _ := scorer.Score(txn, far)
	assert.Greater(t, nearScore, farScore)
	// 1 day away: 0.5 + 0.25*(44/45)
	assert.InDelta(t, 0.5+0.25*44.0/45.0, nearScore, 1e-9)
}

func TestScoreDebitUsesAbsoluteAmount(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	txn := bank.Transaction{
		ID:              1,
		TransactionDate: day(2024, 3, 15),
		Label:           "PAIEMENT LAFARGE",
		Amount:          decimal.RequireFromString("-8000.00"),
		Direction:       bank.DirectionDebit,
		Status:          bank.StatusUnmatched,
	}
	inv := invoiceOn(7, day(2024, 3, 15), "8000.00", "Lafarge", "")

	_, reasons := scorer.Score(txn, inv)
	assert.Contains(t, reasons, ReasonAmountExact)
}

func TestScoreIsDeterministic(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	txn := txnOn(day(2024, 3, 15), "15000.00", "VIR CIMENTS DU MAROC FAC 2024-112")
	inv := invoiceOn(7, day(2024, 3, 12), "15000.00", "Ciments du Maroc", "FAC-2024-112")

	s1, r1 := scorer.Score(txn, inv)
	s2, r2 := scorer.Score(txn, inv)
	require.Equal(t, s1, s2)
	require.Equal(t, r1, r2)
}

func TestRankOrdersByScoreThenDateThenID(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	txn := txnOn(day(2024, 3, 15), "5000.00", "REGLEMENT DIVERS")
	candidates := []ledger.Record{
		invoiceOn(30, day(2024, 3, 10), "5000.00", "Alpha", ""),
		invoiceOn(20, day(2024, 3, 14), "5000.00", "Beta", ""),
		invoiceOn(10, day(2024, 3, 16), "5000.00", "Gamma", ""),
	}

	ranked := scorer.Rank(txn, candidates)
	require.Len(t, ranked, 3)
	// 20 and 10 are both one day away with equal scores; lower id wins.
	assert.Equal(t, int64(10), ranked[0].LedgerID)
	assert.Equal(t, int64(20), ranked[1].LedgerID)
	assert.Equal(t, int64(30), ranked[2].LedgerID)
}

func TestRankDropsZeroScores(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	txn := txnOn(day(2024, 3, 15), "5000.00", "XYZ")
	candidates := []ledger.Record{
		invoiceOn(1, day(2023, 1, 1), "9999.00", "Nobody", ""),
	}

	ranked := scorer.Rank(txn, candidates)
	assert.Empty(t, ranked)
}

func TestScoresStayWithinBounds(t *testing.T) {
	scorer := NewScorer(ScorerConfig{})

	txn := txnOn(day(2024, 3, 15), "5000.00", "VIR ALPHA BETA GAMMA FAC 99")
	candidates := []ledger.Record{
		invoiceOn(1, day(2024, 3, 15), "5000.00", "Alpha Beta Gamma", "FAC-99"),
		invoiceOn(2, day(2024, 3, 20), "5050.00", "Alpha", ""),
		invoiceOn(3, day(2024, 4, 1), "4990.00", "Delta", ""),
	}
	for _, suggestion := range scorer.Rank(txn, candidates) {
		assert.GreaterOrEqual(t, suggestion.Score, 0.0)
		assert.LessOrEqual(t, suggestion.Score, 1.0)
	}
}

func TestWeightsSumToOne(t *testing.T) {
	assert.InDelta(t, 1.0, DefaultWeights.Sum(), 1e-9)
}
