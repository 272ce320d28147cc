package core

import "testing"

func TestClassifyConfidence(t *testing.T) {
	tests := []struct {
		score    float64
		expected ConfidenceLevel
	}{
		{0.71, ConfidenceHigh},
		{0.70, ConfidenceMedium}, // boundary: exactly 0.7 is not high
		{0.51, ConfidenceMedium},
		{0.50, ConfidenceLow}, // boundary: exactly 0.5 is not medium
		{0.0, ConfidenceLow},
		{1.0, ConfidenceHigh},
		{-0.3, ConfidenceLow},
	}

	for _, tt := range tests {
		if got := ClassifyConfidence(tt.score); got != tt.expected {
			t.Errorf("ClassifyConfidence(%v) = %s, want %s", tt.score, got, tt.expected)
		}
	}
}
