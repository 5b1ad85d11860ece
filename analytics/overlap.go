package analytics

import "strings"

// minTokenLen drops short, low-signal tokens (articles, short connectors)
// from overlap comparisons.
const minTokenLen = 4

// overlap computes the word-set overlap coefficient between two content
// strings: whitespace tokenize, drop tokens of length <= 3, dedupe into
// sets, and divide the intersection by the larger set (not the union —
// this is an overlap coefficient, not Jaccard). If both token sets are
// empty, overlap is 1 iff the trimmed input strings are identical, else 0
// — empty token sets carry no signal on their own, so the tie-break falls
// back to literal string equality. If exactly one is empty, overlap is 0.
// Never returns NaN.
func overlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		if strings.TrimSpace(a) == strings.TrimSpace(b) {
			return 1.0
		}
		return 0.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}
	maxLen := len(setA)
	if len(setB) > maxLen {
		maxLen = len(setB)
	}
	return float64(intersection) / float64(maxLen)
}

// tokenSet lowercases and whitespace-tokenizes s, dropping tokens of
// length <= minTokenLen-1 (i.e. keeping only len > 3).
func tokenSet(s string) map[string]bool {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) <= 3 {
			continue
		}
		set[f] = true
	}
	return set
}
