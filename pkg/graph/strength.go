package graph

import (
	"math"
	"strings"
)

const (
	affectsConfidence    = 0.9
	relatedToConfidence  = 0.8
	structuralStrength   = 1.0
	structuralConfidence = 1.0

	defaultImpactStrength    = 0.5
	defaultSentimentStrength = 0.5
)

// ImpactStrength maps a regulation impact level to an Affects edge strength.
func ImpactStrength(level string) float64 {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "high":
		return 1.0
	case "medium":
		return 0.7
	case "low":
		return 0.4
	}
	return defaultImpactStrength
}

// SentimentStrength maps a sentiment score in [-1, 1] to a RelatedTo edge
// strength: its magnitude, or 0.5 when the event has no score.
func SentimentStrength(score *float64) float64 {
	if score == nil || math.IsNaN(*score) {
		return defaultSentimentStrength
	}
	return clampUnit(math.Abs(*score))
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
