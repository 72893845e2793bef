package extract

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount extraction runs three tiers in strict priority order; the first
// tier that produces at least one candidate wins and lower tiers are not
// attempted:
//
//  1. currency-qualified numerics (₹, Rs., Rs, INR, "rupees" prefix/suffix)
//  2. spelled-out amounts ("Five Thousand Five Hundred")
//  3. bare numerics filtered to a plausible transaction range
var (
	currencyPrefixPattern = regexp.MustCompile(`(?i)(?:₹|\b(?:rs\.?|inr|rupees))\s*([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	currencySuffixPattern = regexp.MustCompile(`(?i)([0-9][0-9,]*(?:\.[0-9]{1,2})?)\s*(?:₹|rs\b\.?|inr\b|rupees\b)`)
	bareNumberPattern     = regexp.MustCompile(`[0-9][0-9,]*(?:\.[0-9]{1,2})?`)
	wordTokenPattern      = regexp.MustCompile(`[A-Za-z]+`)
)

// actionKeywords anchor primary-amount selection: among multiple candidates,
// the one textually nearest (within 100 characters) to an action keyword wins.
var actionKeywords = []string{
	"debited", "credited", "paid", "received", "withdrawn", "deposited", "transferred",
}

const (
	minPlausibleAmount   = 1
	maxPlausibleAmount   = 100_000_000
	keywordProximityByte = 100
)

// numberWords maps spelled-out tokens to their numeric value. Values >= 100
// act as multipliers in the accumulate-then-multiply grammar.
var numberWords = map[string]int64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4,
	"five": 5, "six": 6, "seven": 7, "eight": 8, "nine": 9,
	"ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13, "fourteen": 14,
	"fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18, "nineteen": 19,
	"twenty": 20, "thirty": 30, "forty": 40, "fifty": 50,
	"sixty": 60, "seventy": 70, "eighty": 80, "ninety": 90,
	"hundred": 100, "thousand": 1000, "lakh": 100_000, "lac": 100_000,
	"crore": 10_000_000, "million": 1_000_000, "billion": 1_000_000_000,
}

type amountCandidate struct {
	value decimal.Decimal
	pos   int // byte offset in the source text
}

// ExtractPrimaryAmount finds the primary monetary amount in text.
// The second return value is false when no tier produced a match.
func ExtractPrimaryAmount(text string) (decimal.Decimal, bool) {
	candidates := currencyQualifiedAmounts(text)
	if len(candidates) == 0 {
		candidates = spelledOutAmounts(text)
	}
	if len(candidates) == 0 {
		candidates = bareAmounts(text)
	}
	if len(candidates) == 0 {
		return decimal.Zero, false
	}
	return selectPrimary(text, candidates).value, true
}

func currencyQualifiedAmounts(text string) []amountCandidate {
	var out []amountCandidate
	seen := make(map[int]bool)

	for _, p := range []*regexp.Regexp{currencyPrefixPattern, currencySuffixPattern} {
		for _, m := range p.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2], m[3]
			if seen[start] {
				continue
			}
			v, err := parseNumeric(text[start:end])
			if err != nil {
				continue
			}
			seen[start] = true
			out = append(out, amountCandidate{value: v, pos: start})
		}
	}

	// Prefix and suffix matches can interleave; keep reading order.
	sortCandidates(out)
	return out
}

func spelledOutAmounts(text string) []amountCandidate {
	type token struct {
		word string
		pos  int
	}

	var run []token
	var out []amountCandidate

	flush := func() {
		if len(run) == 0 {
			return
		}
		words := make([]string, len(run))
		for i, t := range run {
			words[i] = t.word
		}
		if v, ok := wordsToValue(words); ok && v >= minPlausibleAmount && v <= maxPlausibleAmount {
			out = append(out, amountCandidate{value: decimal.NewFromInt(v), pos: run[0].pos})
		}
		run = nil
	}

	for _, m := range wordTokenPattern.FindAllStringIndex(text, -1) {
		word := strings.ToLower(text[m[0]:m[1]])
		if _, ok := numberWords[word]; ok {
			run = append(run, token{word: word, pos: m[0]})
			continue
		}
		flush()
	}
	flush()

	return out
}

// wordsToValue evaluates a run of number words with the accumulate-then-
// multiply grammar: small numbers accumulate additively, a multiplier of 100
// multiplies the accumulated value, and multipliers >= 1000 flush the running
// total into the grand total so scale groups chain additively
// ("five thousand five hundred" = 5*1000 + 5*100).
func wordsToValue(words []string) (int64, bool) {
	if len(words) == 0 {
		return 0, false
	}

	var grand, current int64
	for _, w := range words {
		n, ok := numberWords[w]
		if !ok {
			return 0, false
		}
		switch {
		case n >= 1000:
			if current == 0 {
				current = 1
			}
			grand += current * n
			current = 0
		case n == 100:
			if current == 0 {
				current = 1
			}
			current *= n
		default:
			current += n
		}
	}
	return grand + current, true
}

func bareAmounts(text string) []amountCandidate {
	var out []amountCandidate
	for _, m := range bareNumberPattern.FindAllStringIndex(text, -1) {
		v, err := parseNumeric(text[m[0]:m[1]])
		if err != nil {
			continue
		}
		if v.LessThan(decimal.NewFromInt(minPlausibleAmount)) ||
			v.GreaterThan(decimal.NewFromInt(maxPlausibleAmount)) {
			continue
		}
		out = append(out, amountCandidate{value: v, pos: m[0]})
	}
	return out
}

// selectPrimary applies keyword proximity: candidates within 100 bytes of a
// transaction-action keyword are preferred, nearest first; without any
// keyword in range the first candidate in reading order wins.
func selectPrimary(text string, candidates []amountCandidate) amountCandidate {
	if len(candidates) == 1 {
		return candidates[0]
	}

	lower := strings.ToLower(text)
	var keywordPositions []int
	for _, kw := range actionKeywords {
		from := 0
		for {
			idx := strings.Index(lower[from:], kw)
			if idx < 0 {
				break
			}
			keywordPositions = append(keywordPositions, from+idx)
			from += idx + len(kw)
		}
	}

	best := candidates[0]
	bestDist := -1
	for _, c := range candidates {
		for _, kp := range keywordPositions {
			dist := c.pos - kp
			if dist < 0 {
				dist = -dist
			}
			if dist > keywordProximityByte {
				continue
			}
			if bestDist < 0 || dist < bestDist {
				bestDist = dist
				best = c
			}
		}
	}
	if bestDist >= 0 {
		return best
	}
	return candidates[0]
}

func parseNumeric(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
}

func sortCandidates(cs []amountCandidate) {
	for i := 1; i < len(cs); i++ {
		for j := i; j > 0 && cs[j].pos < cs[j-1].pos; j-- {
			cs[j], cs[j-1] = cs[j-1], cs[j]
		}
	}
}
