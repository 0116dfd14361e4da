package services

import (
	"log"
	"math"

	"docqa/internal/models"
)

// Empirical ceiling for cosine similarity of relevant results
const goodSimilarityCeiling = 0.9

// ConfidenceScorer computes answer confidence from retrieval and citation quality
type ConfidenceScorer struct {
	logger *log.Logger
}

// NewConfidenceScorer creates a new confidence scorer
func NewConfidenceScorer(logger *log.Logger) *ConfidenceScorer {
	return &ConfidenceScorer{
		logger: logger,
	}
}

// Compute returns a confidence score in [0.0, 0.99].
// Invalid citations force 0.0. Otherwise four weighted terms are summed:
// retrieval relevance (0-0.4), citation coverage (0-0.3), distinct-page
// bonus (0-0.2), and document handling (0-0.1), minus a flat 0.15 penalty
// when a regeneration attempt was required. Never returns 1.0.
func (s *ConfidenceScorer) Compute(inputs *models.ConfidenceInputs) float64 {
	if !inputs.CitationValid {
		s.logger.Printf("Invalid citations - confidence 0")
		return 0.0
	}

	relevanceScore := 0.0
	if len(inputs.RetrievalScores) > 0 {
		sum := 0.0
		for _, score := range inputs.RetrievalScores {
			sum += math.Max(0.0, math.Min(1.0, score))
		}
		avgRelevance := sum / float64(len(inputs.RetrievalScores))
		relevanceScore = math.Min(avgRelevance, goodSimilarityCeiling) / goodSimilarityCeiling * 0.4
	}

	coverageScore := 0.0
	if inputs.NumChunksRetrieved > 0 {
		citationRatio := float64(inputs.NumChunksCited) / float64(inputs.NumChunksRetrieved)
		coverageScore = math.Min(citationRatio, 1.0) * 0.3
	}

	sourceScore := 0.0
	switch {
	case inputs.NumPagesCited >= 3:
		sourceScore = 0.2
	case inputs.NumPagesCited >= 2:
		sourceScore = 0.15
	case inputs.NumPagesCited >= 1:
		sourceScore = 0.1
	}

	docScore := 0.0
	if inputs.NumDocuments > 1 && inputs.NumChunksCited >= inputs.NumDocuments {
		docScore = 0.1
	} else if inputs.NumDocuments == 1 {
		docScore = 0.05
	}

	penalty := 0.0
	if inputs.RequiredRegeneration {
		penalty += 0.15
	}

	rawScore := relevanceScore + coverageScore + sourceScore + docScore - penalty
	finalScore := math.Max(0.0, math.Min(0.99, rawScore))

	s.logger.Printf(
		"Confidence: %.2f (relevance=%.2f, coverage=%.2f, sources=%.2f, docs=%.2f, penalty=%.2f)",
		finalScore, relevanceScore, coverageScore, sourceScore, docScore, penalty,
	)

	return math.Round(finalScore*100) / 100
}
