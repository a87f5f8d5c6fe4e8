package recon

import (
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Bank labels carry operation prefixes and legal-form suffixes that say
// nothing about the counterparty.
var noiseTokens = func() map[string]struct{} {
	words := []string{
		"VIR", "VIRT", "VIREMENT", "VRT", "PAIEMENT", "PAYMENT",
		"CHQ", "CHEQUE", "REM", "REMISE", "STE", "SARL", "SA",
		"FACTURE", "FAC", "REF",
	}
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}()

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeText upper-cases, strips diacritics and collapses punctuation to
// spaces so that "Ciments du Maroc" and "VIR CIMENTS DU MAROC" compare on
// equal footing.
func normalizeText(s string) string {
	stripped, _, err := transform.String(stripAccents, s)
	if err != nil {
		stripped = s
	}
	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// significantTokens splits normalized text into the tokens worth matching,
// dropping bank noise words and short fragments.
func significantTokens(s string) []string {
	var tokens []string
	for _, tok := range strings.Fields(normalizeText(s)) {
		if len(tok) < 3 {
			continue
		}
		if _, noisy := noiseTokens[tok]; noisy {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// tokensEqual reports whether two normalized tokens refer to the same word.
// Longer tokens tolerate one edit to absorb statement typos.
func tokensEqual(a, b string) bool {
	if a == b {
		return true
	}
	if len(a) < 5 || len(b) < 5 {
		return false
	}
	return levenshtein.DistanceForStrings([]rune(a), []rune(b), levenshtein.DefaultOptions) <= 1
}

// tokenOverlap returns the share of want-tokens found in have-tokens.
func tokenOverlap(want, have []string) float64 {
	if len(want) == 0 {
		return 0
	}
	matched := 0
	for _, w := range want {
		for _, h := range have {
			if tokensEqual(w, h) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(want))
}
