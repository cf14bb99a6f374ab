// Package textmatch scores text similarity using character trigrams.
//
// The implementation mirrors Postgres pg_trgm: each word is padded with two
// leading and one trailing space before trigram extraction, and the score is
// the Jaccard ratio of the two trigram sets. Matching done in memory by the
// reconciler therefore agrees with the similarity() index queries the search
// API runs in SQL.
package textmatch

import "strings"

// Similarity returns a score in [0,1]; 1 means identical trigram sets.
// Empty input yields 0 against anything, including another empty string:
// an empty key is unmatchable by contract.
func Similarity(a, b string) float64 {
	ta := trigrams(a)
	tb := trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	return float64(shared) / float64(union)
}

func trigrams(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(s)) {
		runes := []rune("  " + word + " ")
		for i := 0; i+3 <= len(runes); i++ {
			set[string(runes[i:i+3])] = struct{}{}
		}
	}
	return set
}
