package grading

import (
	"fmt"
	"strings"
)

// SimilarityScorer compares a free-text answer with the expected answer and
// returns a ratio in [0,1]. The tolerance is passed through so stricter
// comparators can adapt to it; the word-set strategies ignore it.
type SimilarityScorer interface {
	Similarity(studentText, expectedText string, tolerance float64) float64
}

// SimilarityFunc adapts a plain function to SimilarityScorer.
type SimilarityFunc func(studentText, expectedText string, tolerance float64) float64

func (f SimilarityFunc) Similarity(studentText, expectedText string, tolerance float64) float64 {
	return f(studentText, expectedText, tolerance)
}

const (
	StrategyJaccard     = "jaccard"
	StrategyLevenshtein = "levenshtein"
)

// NewSimilarityScorer resolves a strategy by name. An empty name selects Jaccard.
func NewSimilarityScorer(name string) (SimilarityScorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StrategyJaccard:
		return JaccardSimilarity{}, nil
	case StrategyLevenshtein:
		return LevenshteinSimilarity{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity strategy %q", name)
	}
}

// JaccardSimilarity is |A∩B| / |A∪B| over lowercase whitespace-delimited word sets.
type JaccardSimilarity struct{}

func (JaccardSimilarity) Similarity(studentText, expectedText string, _ float64) float64 {
	a := wordSet(studentText)
	b := wordSet(expectedText)

	union := len(a)
	intersection := 0
	for w := range b {
		if _, ok := a[w]; ok {
			intersection++
		} else {
			union++
		}
	}

	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// LevenshteinSimilarity is 1 - distance/maxLen over the normalized texts.
type LevenshteinSimilarity struct{}

func (LevenshteinSimilarity) Similarity(studentText, expectedText string, _ float64) float64 {
	s1 := []rune(strings.ToLower(strings.Join(strings.Fields(studentText), " ")))
	s2 := []rune(strings.ToLower(strings.Join(strings.Fields(expectedText), " ")))

	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}
	if maxLen == 0 {
		return 0
	}

	distance := levenshteinDistance(s1, s2)
	return 1.0 - float64(distance)/float64(maxLen)
}

func levenshteinDistance(s1, s2 []rune) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	return prev[len(s2)]
}
