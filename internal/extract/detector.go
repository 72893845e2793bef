package extract

import "strings"

// ContextDetector decides whether a piece of text talks about money at all.
// It holds four disjoint keyword sets; a message is financial when any
// keyword from any set appears (case-insensitive substring match).
type ContextDetector struct {
	creditIndicators  []string
	debitIndicators   []string
	amountIndicators  []string
	accountIndicators []string
}

// NewContextDetector returns a detector with the default keyword sets.
func NewContextDetector() *ContextDetector {
	return &ContextDetector{
		creditIndicators:  []string{"credited", "received", "deposited", "transferred in", "added"},
		debitIndicators:   []string{"debited", "withdrawn", "transferred out", "paid", "deducted"},
		amountIndicators:  []string{"rs.", "rs ", "inr", "₹", "rupees", "amount", "amt"},
		accountIndicators: []string{"a/c", "account", "acct", "ending", "card"},
	}
}

// IsFinancial reports whether at least one keyword from any set matches.
// Empty or whitespace-only text is never financial.
func (d *ContextDetector) IsFinancial(text string) bool {
	return d.matchedCategories(text) > 0
}

// Score returns the fraction of keyword categories matched, in [0,1].
func (d *ContextDetector) Score(text string) float64 {
	matched := d.matchedCategories(text)
	score := float64(matched) / 4.0
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func (d *ContextDetector) matchedCategories(text string) int {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return 0
	}

	matched := 0
	for _, set := range [][]string{d.creditIndicators, d.debitIndicators, d.amountIndicators, d.accountIndicators} {
		for _, kw := range set {
			if strings.Contains(lower, kw) {
				matched++
				break
			}
		}
	}
	return matched
}
