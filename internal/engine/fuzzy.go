package engine

import (
	"strings"

	"github.com/xrash/smetrics"
)

// tokenDiscount is applied to per-token similarity so an exact token match
// ("delta" against "Delta Industries") ranks below an exact full-name match.
const tokenDiscount = 0.95

// stringSimilarity returns Jaro-Winkler similarity between two strings,
// case-insensitive, in [0,1]. Jaro-Winkler handles the transposition typos
// common in quickly typed entity names ("Dleta" for "Delta") that plain edit
// distance over-penalizes.
func stringSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return smetrics.JaroWinkler(a, b, 0.7, 4)
}

// mentionSimilarity scores how well a surface mention matches a canonical
// entity name. It takes the best of full-name similarity and discounted
// per-token similarity, so short mentions of multi-word names ("delta" for
// "Delta Industries") still clear the fuzzy threshold.
func mentionSimilarity(mention, name string) float64 {
	best := stringSimilarity(mention, name)
	for _, token := range strings.Fields(name) {
		if s := stringSimilarity(mention, token) * tokenDiscount; s > best {
			best = s
		}
	}
	return best
}
