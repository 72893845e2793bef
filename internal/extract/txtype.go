package extract

import (
	"strings"

	"github.com/smsledger/sms-ledger/internal/domain"
)

// Keyword sets for direction classification. Matching is case-insensitive
// substring matching over the whole message.
var (
	debitKeywords  = []string{"debited", "withdrawn", "transferred out", "paid", "deducted"}
	creditKeywords = []string{"credited", "received", "deposited", "transferred in", "added"}
)

// Classify determines whether text describes a debit, a credit, or neither.
//
// When keywords from both sets match, the tie-break is deterministic: the
// type with more total keyword occurrences wins; if the counts are equal,
// the type whose earliest keyword occurrence appears first in the text wins.
func Classify(text string) domain.TransactionType {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return domain.TransactionTypeUnknown
	}

	debitCount, debitFirst := countOccurrences(lower, debitKeywords)
	creditCount, creditFirst := countOccurrences(lower, creditKeywords)

	switch {
	case debitCount == 0 && creditCount == 0:
		return domain.TransactionTypeUnknown
	case creditCount == 0:
		return domain.TransactionTypeDebit
	case debitCount == 0:
		return domain.TransactionTypeCredit
	case debitCount > creditCount:
		return domain.TransactionTypeDebit
	case creditCount > debitCount:
		return domain.TransactionTypeCredit
	case creditFirst < debitFirst:
		return domain.TransactionTypeCredit
	default:
		return domain.TransactionTypeDebit
	}
}

// ConfidenceFor returns the fraction of the given type's keyword set that
// matched the text, or 0 for TransactionTypeUnknown.
func ConfidenceFor(text string, txType domain.TransactionType) float64 {
	var set []string
	switch txType {
	case domain.TransactionTypeDebit:
		set = debitKeywords
	case domain.TransactionTypeCredit:
		set = creditKeywords
	default:
		return 0
	}

	lower := strings.ToLower(text)
	matched := 0
	for _, kw := range set {
		if strings.Contains(lower, kw) {
			matched++
		}
	}
	return float64(matched) / float64(len(set))
}

// countOccurrences returns the total number of keyword occurrences and the
// byte offset of the earliest one, over an already-lowercased text.
func countOccurrences(lower string, keywords []string) (count int, first int) {
	first = len(lower) + 1
	for _, kw := range keywords {
		idx := strings.Index(lower, kw)
		if idx < 0 {
			continue
		}
		if idx < first {
			first = idx
		}
		count += strings.Count(lower, kw)
	}
	return count, first
}
