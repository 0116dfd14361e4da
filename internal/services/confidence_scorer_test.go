package services

import (
	"log"
	"os"
	"testing"

	"docqa/internal/models"

	"github.com/stretchr/testify/assert"
)

// ============================================================================
// Test Setup
// ============================================================================

func setupTestScorer(t *testing.T) *ConfidenceScorer {
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	return NewConfidenceScorer(logger)
}

func baseInputs() *models.ConfidenceInputs {
	return &models.ConfidenceInputs{
		RetrievalScores:      []float64{0.8, 0.7, 0.75},
		NumChunksRetrieved:   10,
		NumChunksCited:       5,
		NumPagesCited:        3,
		NumDocuments:         1,
		CitationValid:        true,
		RequiredRegeneration: false,
	}
}

// ============================================================================
// Tests
// ============================================================================

func TestCompute_InvalidCitationsForceZero(t *testing.T) {
	scorer := setupTestScorer(t)

	inputs := baseInputs()
	inputs.CitationValid = false

	assert.Equal(t, 0.0, scorer.Compute(inputs))
}

func TestCompute_RegenerationPenaltyIsExact(t *testing.T) {
	scorer := setupTestScorer(t)

	clean := baseInputs()
	retried := baseInputs()
	retried.RequiredRegeneration = true

	cleanScore := scorer.Compute(clean)
	retriedScore := scorer.Compute(retried)

	assert.InDelta(t, 0.15, cleanScore-retriedScore, 0.001)
}

func TestCompute_MonotonicInRelevance(t *testing.T) {
	scorer := setupTestScorer(t)

	low := baseInputs()
	low.RetrievalScores = []float64{0.3, 0.3, 0.3}

	high := baseInputs()
	high.RetrievalScores = []float64{0.85, 0.85, 0.85}

	assert.Greater(t, scorer.Compute(high), scorer.Compute(low))
}

func TestCompute_MonotonicInCoverage(t *testing.T) {
	scorer := setupTestScorer(t)

	sparse := baseInputs()
	sparse.NumChunksCited = 2

	dense := baseInputs()
	dense.NumChunksCited = 8

	assert.Greater(t, scorer.Compute(dense), scorer.Compute(sparse))
}

func TestCompute_ZeroCitedLowConfidence(t *testing.T) {
	scorer := setupTestScorer(t)

	inputs := &models.ConfidenceInputs{
		RetrievalScores:      []float64{0.1, 0.1},
		NumChunksRetrieved:   10,
		NumChunksCited:       0,
		NumPagesCited:        0,
		NumDocuments:         1,
		CitationValid:        true,
		RequiredRegeneration: false,
	}

	assert.Less(t, scorer.Compute(inputs), 0.15)
}

func TestCompute_SourceCountSteps(t *testing.T) {
	scorer := setupTestScorer(t)

	tests := []struct {
		pagesCited int
		expected   float64
	}{
		{0, 0.0},
		{1, 0.1},
		{2, 0.15},
		{3, 0.2},
		{7, 0.2},
	}

	for _, tt := range tests {
		inputs := &models.ConfidenceInputs{
			NumChunksRetrieved: 10,
			NumPagesCited:      tt.pagesCited,
			NumDocuments:       0,
			CitationValid:      true,
		}
		assert.InDelta(t, tt.expected, scorer.Compute(inputs), 0.001)
	}
}

func TestCompute_MultiDocumentBonus(t *testing.T) {
	scorer := setupTestScorer(t)

	multi := baseInputs()
	multi.NumDocuments = 2
	multi.NumChunksCited = 3

	multiSparse := baseInputs()
	multiSparse.NumDocuments = 2
	multiSparse.NumChunksCited = 1

	// Cited chunks covering at least as many chunks as documents earns the
	// full bonus; fewer earns none.
	assert.InDelta(t, 0.1+0.3*0.2, scorer.Compute(multi)-scorer.Compute(multiSparse), 0.011)
}

func TestCompute_NeverExceedsCap(t *testing.T) {
	scorer := setupTestScorer(t)

	inputs := &models.ConfidenceInputs{
		RetrievalScores:    []float64{1.5, 2.0, 0.99},
		NumChunksRetrieved: 3,
		NumChunksCited:     3,
		NumPagesCited:      5,
		NumDocuments:       1,
		CitationValid:      true,
	}

	score := scorer.Compute(inputs)
	assert.LessOrEqual(t, score, 0.99)
	assert.GreaterOrEqual(t, score, 0.0)
}

func TestCompute_ScoresClampedBeforeAveraging(t *testing.T) {
	scorer := setupTestScorer(t)

	wild := baseInputs()
	wild.RetrievalScores = []float64{5.0, -3.0}

	tame := baseInputs()
	tame.RetrievalScores = []float64{1.0, 0.0}

	assert.Equal(t, scorer.Compute(tame), scorer.Compute(wild))
}
