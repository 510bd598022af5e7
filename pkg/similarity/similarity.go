// Package similarity scores how alike two contact names are.
package similarity

import "strings"

const (
	// ClusterThreshold is the minimum name similarity for the duplicate
	// detector to pull two entities into the same group.
	ClusterThreshold = 0.6

	// LookupThreshold is the minimum name similarity for the single-contact
	// duplicate lookup. The lookup casts a wider net than the detector on
	// purpose; the two cutoffs are tuned independently.
	LookupThreshold = 0.4

	// LookupMinNameLen is the shortest trimmed name the lookup will fuzzy
	// match on. Shorter names match far too much.
	LookupMinNameLen = 2
)

// Name returns the similarity of two names in [0, 1]. Names are compared
// case-insensitively after trimming. Identical names score 1.0; anything else
// scores the Jaccard index of the two word sets.
func Name(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	if a == "" || b == "" {
		return 0.0
	}
	if a == b {
		return 1.0
	}

	wordsA := wordSet(a)
	wordsB := wordSet(b)

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}

	union := len(wordsA) + len(wordsB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool, 4)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}
