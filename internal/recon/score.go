package recon

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlasbeton/atlasbeton/internal/bank"
	"github.com/atlasbeton/atlasbeton/internal/ledger"
)

// Weights assigns the relative importance of each matching signal. They must
// sum to 1.0 so composite scores stay within [0,1].
type Weights struct {
	Amount    float64
	Date      float64
	Client    float64
	Reference float64
}

// DefaultWeights reflect field calibration: amount identity dominates, then
// date proximity and the counterparty name. Reference codes rarely survive
// bank label truncation, hence the low weight.
var DefaultWeights = Weights{
	Amount:    0.50,
	Date:      0.25,
	Client:    0.20,
	Reference: 0.05,
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.Amount + w.Date + w.Client + w.Reference
}

// ScorerConfig tunes the scoring engine.
type ScorerConfig struct {
	Weights Weights
	// AmountTolerance is the relative band admitting partial or rounded
	// payments, e.g. 0.02 for ±2%.
	AmountTolerance float64
	// DateWindowDays bounds how far apart a transaction and a receivable
	// may sit and still be considered.
	DateWindowDays int
}

// Scorer computes confidence scores for (transaction, ledger record) pairs.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer builds a scorer, falling back to defaults for zero values.
func NewScorer(cfg ScorerConfig) *Scorer {
	if cfg.Weights == (Weights{}) {
		cfg.Weights = DefaultWeights
	}
	if cfg.AmountTolerance <= 0 {
		cfg.AmountTolerance = 0.02
	}
	if cfg.DateWindowDays <= 0 {
		cfg.DateWindowDays = 45
	}
	return &Scorer{cfg: cfg}
}

// AmountTolerance exposes the configured relative amount band.
func (s *Scorer) AmountTolerance() float64 {
	return s.cfg.AmountTolerance
}

// DateWindowDays exposes the configured date window.
func (s *Scorer) DateWindowDays() int {
	return s.cfg.DateWindowDays
}

// Score computes the composite confidence score and its reason tags for one
// pair. The result is deterministic and always within [0,1]; it reaches 1
// only for an exact amount on the exact date with every identity signal full.
func (s *Scorer) Score(txn bank.Transaction, rec ledger.Record) (float64, []string) {
	var score float64
	var reasons []string

	amountScore, amountReason := s.scoreAmount(txn.Amount.Abs(), rec.Amount)
	score += amountScore
	if amountReason != "" {
		reasons = append(reasons, amountReason)
	}

	dateScore, dateReason := s.scoreDate(txn.TransactionDate, rec.RecordDate)
	score += dateScore
	if dateReason != "" {
		reasons = append(reasons, dateReason)
	}

	if s.referenceMatches(txn, rec) {
		score += s.cfg.Weights.Reference
		reasons = append(reasons, ReasonReferenceMatch)
	}

	overlap := tokenOverlap(significantTokens(rec.ClientName), significantTokens(txn.Label))
	if overlap > 0 {
		score += s.cfg.Weights.Client * overlap
		reasons = append(reasons, ReasonClientMatch)
	}

	if score > 1 {
		score = 1
	}
	return score, reasons
}

// Rank scores every candidate and returns the nonzero ones sorted by score
// descending, ties broken by nearer date, then by smaller ledger id.
func (s *Scorer) Rank(txn bank.Transaction, candidates []ledger.Record) []MatchSuggestion {
	suggestions := make([]MatchSuggestion, 0, len(candidates))
	for _, rec := range candidates {
		score, reasons := s.Score(txn, rec)
		if score <= 0 {
			continue
		}
		suggestions = append(suggestions, MatchSuggestion{
			LedgerID:   rec.ID,
			Kind:       rec.Kind,
			ClientName: rec.ClientName,
			Amount:     rec.Amount,
			Date:       rec.RecordDate,
			Score:      score,
			Reasons:    reasons,
		})
	}

	txnDate := dateOnly(txn.TransactionDate)
	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		di := absDays(txnDate, dateOnly(suggestions[i].Date))
		dj := absDays(txnDate, dateOnly(suggestions[j].Date))
		if di != dj {
			return di < dj
		}
		return suggestions[i].LedgerID < suggestions[j].LedgerID
	})
	return suggestions
}

func (s *Scorer) scoreAmount(txnAmount, recAmount decimal.Decimal) (float64, string) {
	if txnAmount.Round(2).Equal(recAmount.Round(2)) {
		return s.cfg.Weights.Amount, ReasonAmountExact
	}
	if !recAmount.IsPositive() {
		return 0, ""
	}
	diff, _ := txnAmount.Sub(recAmount).Abs().Div(recAmount).Float64()
	if diff >= s.cfg.AmountTolerance {
		return 0, ""
	}
	return s.cfg.Weights.Amount * (1 - diff/s.cfg.AmountTolerance), ReasonAmountClose
}

func (s *Scorer) scoreDate(txnDate, recDate time.Time) (float64, string) {
	days := absDays(dateOnly(txnDate), dateOnly(recDate))
	if days == 0 {
		return s.cfg.Weights.Date, ReasonDateExact
	}
	window := s.cfg.DateWindowDays
	if days >= window {
		return 0, ""
	}
	return s.cfg.Weights.Date * (1 - float64(days)/float64(window)), ReasonDateClose
}

func (s *Scorer) referenceMatches(txn bank.Transaction, rec ledger.Record) bool {
	ref := normalizeText(rec.ReferenceCode)
	if len(ref) < 3 {
		return false
	}
	if strings.Contains(normalizeText(txn.Label), ref) {
		return true
	}
	return txn.BankReference != "" && strings.Contains(normalizeText(txn.BankReference), ref)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func absDays(a, b time.Time) int {
	days := int(a.Sub(b).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}
