package guardrail

import (
	"github.com/sourcedesk/sourcedesk/internal/corpus"
)

// Weights tunes the confidence formula. The defaults (0.5/0.3/0.2) and the
// quality length band are hand-tuned rather than derived, so they are carried
// in configuration instead of hardcoded.
type Weights struct {
	Similarity float64
	Citation   float64
	Quality    float64

	QualityMinChars int
	QualityMaxChars int
}

// AvgSimilarity is the mean similarity across all retrieved candidates, not
// just the cited ones.
func AvgSimilarity(candidates []corpus.Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candidates {
		sum += c.Similarity
	}
	return sum / float64(len(candidates))
}

// Coverage is the share of retrieved sources the response actually cited,
// capped at 1.
func Coverage(distinctCited, totalRetrieved int) float64 {
	if totalRetrieved == 0 {
		return 0
	}
	cov := float64(distinctCited) / float64(totalRetrieved)
	if cov > 1 {
		return 1
	}
	return cov
}

// QualityFactor is a coarse length proxy: responses inside the configured
// band score 1.0, degenerate too-short or too-long responses score 0.7.
func (w Weights) QualityFactor(responseLen int) float64 {
	if responseLen > w.QualityMinChars && responseLen < w.QualityMaxChars {
		return 1.0
	}
	return 0.7
}

// Score combines the three signals into a confidence value in [0,1].
func (w Weights) Score(avgSimilarity, coverage, quality float64) float64 {
	return w.Similarity*avgSimilarity + w.Citation*coverage + w.Quality*quality
}
