package consensus

import (
	"strings"

	"github.com/zen-systems/quorumgate/pkg/provider"
)

// Jaccard returns the word-overlap similarity between two texts in [0,1].
// The metric is symmetric: Jaccard(a,b) == Jaccard(b,a).
func Jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for word := range setA {
		if _, ok := setB[word]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection

	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'`")
		if word == "" {
			continue
		}
		set[word] = struct{}{}
	}
	return set
}

// meanPairwiseSimilarity averages Jaccard similarity over all response pairs.
// Fewer than two responses means there is nothing to disagree with: 1.0.
func meanPairwiseSimilarity(responses []*provider.Response) float64 {
	if len(responses) < 2 {
		return 1.0
	}

	var total float64
	pairs := 0
	for i := 0; i < len(responses); i++ {
		for j := i + 1; j < len(responses); j++ {
			total += Jaccard(responses[i].Content, responses[j].Content)
			pairs++
		}
	}
	return total / float64(pairs)
}

// meanSimilarityTo averages the similarity between one response and every
// other response in the set. With no others it returns 1.0.
func meanSimilarityTo(target *provider.Response, responses []*provider.Response) float64 {
	var total float64
	count := 0
	for _, resp := range responses {
		if resp == target {
			continue
		}
		total += Jaccard(target.Content, resp.Content)
		count++
	}
	if count == 0 {
		return 1.0
	}
	return total / float64(count)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
