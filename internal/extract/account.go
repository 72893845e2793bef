package extract

import (
	"regexp"
	"strings"
)

// Account extraction runs four pattern tiers in priority order; the first
// tier with at least one surviving candidate wins:
//
//  1. context-anchored: "a/c", "account", "acct", "ending" (+ optional
//     "no."/"number") followed by the identifier
//  2. masked tokens: >= 2 mask characters followed by 2-6 digits
//  3. "ending <4 digits>"
//  4. bare 8-18 digit runs, unless they look like a card number
var (
	anchoredAccountPattern = regexp.MustCompile(`(?i)\b(?:a/c|acct|account|ending)\b\.?\s*(?:(?:no|number)\.?\s*)?[:#.\-]?\s*([0-9A-Za-z*]{3,20})`)
	maskedAccountPattern   = regexp.MustCompile(`[xX*]{2,}[\- ]?[0-9]{2,6}`)
	endingDigitsPattern    = regexp.MustCompile(`(?i)\bending\s+([0-9]{4})\b`)
	bareDigitsPattern      = regexp.MustCompile(`\b[0-9]{8,18}\b`)
	groupedCardPattern     = regexp.MustCompile(`\b[0-9]{4}[ \-][0-9]{4}[ \-][0-9]{4}[ \-][0-9]{4}\b`)
)

// primaryAccountKeywords anchor primary selection among multiple candidates.
var primaryAccountKeywords = []string{
	"credited to", "debited from", "from account", "to account",
	"a/c", "account", "ac no", "account no", "account number", "acct",
}

const cardContextWindow = 30

type accountCandidate struct {
	normalized string
	pos        int
}

// ExtractPrimaryAccount returns the most likely account reference, or
// ("", false) when none is found.
//
// Selection prefers the candidate nearest a primary keyword, with
// occurrences after the keyword winning over occurrences before it at equal
// distance; absent keyword proximity a masked candidate beats an unmasked
// one, and the first discovered candidate wins otherwise.
func ExtractPrimaryAccount(text string) (string, bool) {
	candidates := accountCandidates(text)
	if len(candidates) == 0 {
		return "", false
	}
	if len(candidates) == 1 {
		return candidates[0].normalized, true
	}

	if best, ok := nearestToKeyword(text, candidates); ok {
		return best.normalized, true
	}
	for _, c := range candidates {
		if strings.Contains(c.normalized, "x") {
			return c.normalized, true
		}
	}
	return candidates[0].normalized, true
}

// ExtractAllAccounts returns every surviving candidate from the winning
// tier, in discovery order, deduplicated.
func ExtractAllAccounts(text string) []string {
	candidates := accountCandidates(text)
	var out []string
	seen := make(map[string]bool)
	for _, c := range candidates {
		if seen[c.normalized] {
			continue
		}
		seen[c.normalized] = true
		out = append(out, c.normalized)
	}
	return out
}

func accountCandidates(text string) []accountCandidate {
	for _, tier := range []func(string) []accountCandidate{
		anchoredCandidates,
		maskedCandidates,
		endingCandidates,
		bareDigitCandidates,
	} {
		if cs := tier(text); len(cs) > 0 {
			return cs
		}
	}
	return nil
}

func anchoredCandidates(text string) []accountCandidate {
	var out []accountCandidate
	for _, m := range anchoredAccountPattern.FindAllStringSubmatchIndex(text, -1) {
		if c, ok := newCandidate(text[m[2]:m[3]], m[2]); ok {
			out = append(out, c)
		}
	}
	return out
}

func maskedCandidates(text string) []accountCandidate {
	var out []accountCandidate
	for _, m := range maskedAccountPattern.FindAllStringIndex(text, -1) {
		if c, ok := newCandidate(text[m[0]:m[1]], m[0]); ok {
			out = append(out, c)
		}
	}
	return out
}

func endingCandidates(text string) []accountCandidate {
	var out []accountCandidate
	for _, m := range endingDigitsPattern.FindAllStringSubmatchIndex(text, -1) {
		if c, ok := newCandidate(text[m[2]:m[3]], m[2]); ok {
			out = append(out, c)
		}
	}
	return out
}

func bareDigitCandidates(text string) []accountCandidate {
	lower := strings.ToLower(text)
	var out []accountCandidate
	for _, m := range bareDigitsPattern.FindAllStringIndex(text, -1) {
		if looksLikeCardNumber(lower, m[0], m[1]) {
			continue
		}
		if c, ok := newCandidate(text[m[0]:m[1]], m[0]); ok {
			out = append(out, c)
		}
	}
	return out
}

// looksLikeCardNumber excludes runs that sit inside a 4x4-grouped card shape
// or within ~30 characters of the word "card".
func looksLikeCardNumber(lower string, start, end int) bool {
	for _, g := range groupedCardPattern.FindAllStringIndex(lower, -1) {
		if start >= g[0] && end <= g[1] {
			return true
		}
	}

	from := start - cardContextWindow
	if from < 0 {
		from = 0
	}
	to := end + cardContextWindow
	if to > len(lower) {
		to = len(lower)
	}
	return strings.Contains(lower[from:to], "card")
}

func newCandidate(raw string, pos int) (accountCandidate, bool) {
	n := normalizeAccountRef(raw)
	if n == "" {
		return accountCandidate{}, false
	}
	return accountCandidate{normalized: n, pos: pos}, true
}

// normalizeAccountRef canonicalizes mask characters to lowercase 'x' and
// strips internal whitespace and hyphens, preserving the digit/mask
// sequence. Results shorter than 4 characters, consisting of a single
// repeated digit, or carrying no digit at all (plain words caught by the
// anchored pattern) are rejected as implausible.
func normalizeAccountRef(raw string) string {
	var b strings.Builder
	digits := 0
	for _, r := range raw {
		switch {
		case r == ' ' || r == '-':
			// separator, dropped
		case r == 'x' || r == 'X' || r == '*':
			b.WriteByte('x')
		case r >= '0' && r <= '9':
			digits++
			b.WriteRune(r)
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}

	n := b.String()
	if len(n) < 4 || digits == 0 {
		return ""
	}
	if isRepeatedDigit(n) {
		return ""
	}
	return n
}

func isRepeatedDigit(s string) bool {
	first := s[0]
	if first < '0' || first > '9' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] != first {
			return false
		}
	}
	return true
}

// nearestToKeyword picks the candidate closest to any primary keyword
// occurrence. At equal distance a candidate after the keyword beats one
// before it.
func nearestToKeyword(text string, candidates []accountCandidate) (accountCandidate, bool) {
	lower := strings.ToLower(text)

	type kwOcc struct{ start, end int }
	var occurrences []kwOcc
	for _, kw := range primaryAccountKeywords {
		from := 0
		for {
			idx := strings.Index(lower[from:], kw)
			if idx < 0 {
				break
			}
			occurrences = append(occurrences, kwOcc{start: from + idx, end: from + idx + len(kw)})
			from += idx + len(kw)
		}
	}
	if len(occurrences) == 0 {
		return accountCandidate{}, false
	}

	best := -1
	bestDist := 0
	bestAfter := false
	for i, c := range candidates {
		for _, occ := range occurrences {
			var dist int
			after := c.pos >= occ.end
			if after {
				dist = c.pos - occ.end
			} else {
				dist = occ.start - c.pos
			}
			better := best < 0 ||
				dist < bestDist ||
				(dist == bestDist && after && !bestAfter)
			if better {
				best, bestDist, bestAfter = i, dist, after
			}
		}
	}
	return candidates[best], true
}
