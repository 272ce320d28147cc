package core

// Confidence thresholds. These boundaries are contract values: a top
// similarity strictly above 0.7 is high, strictly above 0.5 is medium,
// everything else is low. Scores exactly at a boundary fall to the band
// below it.
const (
	highConfidenceThreshold   = 0.7
	mediumConfidenceThreshold = 0.5
)

// ClassifyConfidence maps the best similarity score of a result set to a
// discrete confidence label. Callers with zero matches should not invoke
// this; the orchestrator reports low confidence for the no-match case.
func ClassifyConfidence(topSimilarity float64) ConfidenceLevel {
	switch {
	case topSimilarity > highConfidenceThreshold:
		return ConfidenceHigh
	case topSimilarity > mediumConfidenceThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
