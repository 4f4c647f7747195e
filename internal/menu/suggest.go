package menu

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// suggestThreshold is the minimum Jaro-Winkler similarity for a suggestion.
const suggestThreshold = 0.85

// Suggest returns the main item whose name is most similar to name, compared
// case-insensitively with Jaro-Winkler on the whole name and on word pairs.
// ok is false when nothing clears the similarity threshold.
func (c *Catalog) Suggest(name string) (string, bool) {
	in := strings.ToLower(strings.TrimSpace(name))
	if in == "" {
		return "", false
	}
	inTokens := strings.Fields(in)

	best, bestScore := "", 0.0
	for _, e := range c.items {
		cand := strings.ToLower(e.Name)
		score := similarity(in, cand, inTokens, strings.Fields(cand))
		if score > bestScore {
			best, bestScore = e.Name, score
		}
	}
	if bestScore < suggestThreshold {
		return "", false
	}
	return best, true
}

// similarity is the best of the full-string score and, when both sides have
// the same number of words, the mean per-word score. Multi-word names such as
// "Раф лаванда" therefore match word by word while single words compare whole.
func similarity(a, b string, aTokens, bTokens []string) float64 {
	score := matchr.JaroWinkler(a, b, false)
	if len(aTokens) > 1 && len(aTokens) == len(bTokens) {
		var sum float64
		for i := range aTokens {
			sum += matchr.JaroWinkler(aTokens[i], bTokens[i], false)
		}
		if mean := sum / float64(len(aTokens)); mean > score {
			score = mean
		}
	}
	return score
}
