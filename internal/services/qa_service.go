package services

import (
	"context"
	"fmt"
	"log"
	"sort"

	"docqa/internal/models"
)

// MaxGenerationRetries bounds regeneration attempts after the first
const MaxGenerationRetries = 2

const (
	singleDocRefusal = "I cannot find this information in the provided document."
	multiDocRefusal  = "I cannot find relevant information in the provided documents."
)

// attemptState drives the per-request generation loop
type attemptState int

const (
	stateAttempt attemptState = iota
	stateValidate
	stateAccept
	stateRetry
	stateFail
)

// attemptContext is the immutable input and output of one generation attempt.
// A retry builds a fresh context with hint-augmented messages instead of
// mutating the previous one.
type attemptContext struct {
	number     int
	messages   []models.ChatMessage
	answer     string
	validation *models.ValidationResult
	genErr     error
}

// withHint derives the next attempt's context, appending a validation hint to
// the last user message
func (a *attemptContext) withHint(hint string) *attemptContext {
	messages := make([]models.ChatMessage, len(a.messages))
	copy(messages, a.messages)

	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			messages[i].Content += hint
			break
		}
	}

	return &attemptContext{
		number:   a.number + 1,
		messages: messages,
	}
}

// QAService orchestrates retrieval-grounded answer generation with citation
// validation and bounded retries
type QAService struct {
	generationClient GenerationClient
	validator        *CitationValidator
	scorer           *ConfidenceScorer
	gate             *GenerationGate
	logger           *log.Logger
}

// NewQAService creates a new QA service
func NewQAService(
	generationClient GenerationClient,
	validator *CitationValidator,
	scorer *ConfidenceScorer,
	gate *GenerationGate,
	logger *log.Logger,
) *QAService {
	return &QAService{
		generationClient: generationClient,
		validator:        validator,
		scorer:           scorer,
		gate:             gate,
		logger:           logger,
	}
}

// runAttempts executes the generation state machine:
// ATTEMPT -> VALIDATE -> {ACCEPT | RETRY -> ATTEMPT} -> FAIL after retries.
// Returns the accepted attempt, whether any regeneration was required, and
// the last error when all attempts fail.
func (s *QAService) runAttempts(ctx context.Context, messages []models.ChatMessage, chunks []*models.ChunkContext, validPages []int) (*attemptContext, bool, error) {
	attempt := &attemptContext{number: 1, messages: messages}
	requiredRegeneration := false
	var lastErr error
	maxAttempts := MaxGenerationRetries + 1

	state := stateAttempt
	for {
		switch state {
		case stateAttempt:
			s.logger.Printf("Generation attempt %d/%d", attempt.number, maxAttempts)

			answer, err := s.generationClient.Generate(ctx, attempt.messages, GenerationTemperature, GenerationMaxTokens)
			if err != nil {
				attempt.genErr = err
				lastErr = err
				s.logger.Printf("Generation failed on attempt %d/%d: %v", attempt.number, maxAttempts, err)
				state = stateRetry
				continue
			}
			attempt.answer = answer
			state = stateValidate

		case stateValidate:
			attempt.validation = s.validator.ValidateAndFix(attempt.answer, chunks)
			if attempt.validation.Valid {
				state = stateAccept
				continue
			}

			s.logger.Printf("Validation failed: %s", attempt.validation.Error)
			lastErr = fmt.Errorf("%s", attempt.validation.Error)
			requiredRegeneration = true
			state = stateRetry

		case stateRetry:
			if attempt.number >= maxAttempts {
				state = stateFail
				continue
			}

			if attempt.validation != nil && !attempt.validation.Valid {
				hint := fmt.Sprintf("\n\nPREVIOUS ATTEMPT HAD ERRORS: %s\nRemember: ONLY cite pages from this list: %v", attempt.validation.Error, validPages)
				attempt = attempt.withHint(hint)
			} else {
				// generation error, same prompt again
				attempt = &attemptContext{number: attempt.number + 1, messages: attempt.messages}
			}
			state = stateAttempt

		case stateAccept:
			return attempt, requiredRegeneration, nil

		case stateFail:
			s.logger.Printf("All retries exhausted. Last error: %v", lastErr)
			return nil, requiredRegeneration, lastErr
		}
	}
}

// AnswerQuestion generates a validated answer for a single-document question.
// Accepted answers have their sources narrowed to chunks intersecting the
// cited pages, with each source's reported range narrowed to the cited subset.
func (s *QAService) AnswerQuestion(ctx context.Context, question string, chunks []*models.ChunkContext) (*models.QAResult, error) {
	if len(chunks) == 0 {
		s.logger.Printf("No chunks provided for QA")
		return &models.QAResult{
			Answer:     singleDocRefusal,
			Sources:    []models.ChunkContext{},
			CitedPages: []int{},
			Success:    true,
		}, nil
	}

	release, err := s.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	messages, validPages := BuildMessages(chunks, question)
	s.logger.Printf("Valid pages for citation: %v", validPages)

	accepted, _, lastErr := s.runAttempts(ctx, messages, chunks, validPages)
	if accepted == nil {
		return &models.QAResult{
			Answer:     "",
			Sources:    []models.ChunkContext{},
			CitedPages: []int{},
			Success:    false,
			Error:      fmt.Sprintf("Failed to generate valid answer: %v", lastErr),
		}, nil
	}

	validation := accepted.validation
	s.logger.Printf("Answer validated. Cited pages: %v", validation.CitedPages)

	return &models.QAResult{
		Answer:     validation.Answer,
		Sources:    narrowSources(chunks, validation.CitedPages),
		CitedPages: validation.CitedPages,
		Success:    true,
	}, nil
}

// AnswerMultiDoc generates a validated, confidence-scored answer across one or
// more documents
func (s *QAService) AnswerMultiDoc(ctx context.Context, question string, retrieval *MultiDocRetrievalResult) (*models.MultiDocQAResult, error) {
	if retrieval.TotalChunks() == 0 {
		return &models.MultiDocQAResult{
			Answer:     multiDocRefusal,
			Sources:    []models.ChunkContext{},
			CitedPages: []int{},
			Confidence: 0.0,
			Success:    true,
		}, nil
	}

	release, err := s.gate.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	contextBlock, allChunks, validPageSet := BuildMultiDocContext(retrieval.ChunksByDoc, retrieval.DocNames, retrieval.DocOrder)

	validPages := make([]int, 0, len(validPageSet))
	for p := range validPageSet {
		validPages = append(validPages, p)
	}
	sort.Ints(validPages)

	messages := BuildMultiDocMessages(question, contextBlock, retrieval.DocNames, retrieval.DocOrder, validPageSet)

	accepted, requiredRegeneration, lastErr := s.runAttempts(ctx, messages, allChunks, validPages)
	if accepted == nil {
		return &models.MultiDocQAResult{
			Answer:               "",
			Sources:              []models.ChunkContext{},
			CitedPages:           []int{},
			Confidence:           0.0,
			Success:              false,
			Error:                fmt.Sprintf("Failed to generate valid answer after retries: %v", lastErr),
			RequiredRegeneration: true,
		}, nil
	}

	validation := accepted.validation

	// Chunks whose page range intersects the cited pages
	citedSet := make(map[int]bool)
	for _, p := range validation.CitedPages {
		citedSet[p] = true
	}
	citedChunks := []models.ChunkContext{}
	for _, chunk := range allChunks {
		for p := chunk.PageStart; p <= chunk.PageEnd; p++ {
			if citedSet[p] {
				citedChunks = append(citedChunks, *chunk)
				break
			}
		}
	}

	confidence := s.scorer.Compute(&models.ConfidenceInputs{
		RetrievalScores:      retrieval.AllScores(),
		NumChunksRetrieved:   retrieval.TotalChunks(),
		NumChunksCited:       len(citedChunks),
		NumPagesCited:        len(validation.CitedPages),
		NumDocuments:         len(retrieval.DocNames),
		CitationValid:        true,
		RequiredRegeneration: requiredRegeneration,
	})

	return &models.MultiDocQAResult{
		Answer:               validation.Answer,
		Sources:              citedChunks,
		CitedPages:           validation.CitedPages,
		Confidence:           confidence,
		Success:              true,
		RequiredRegeneration: requiredRegeneration,
	}, nil
}

// narrowSources filters chunks to those intersecting the cited pages and
// narrows each reported page range to the cited subset, preserving content
func narrowSources(chunks []*models.ChunkContext, citedPages []int) []models.ChunkContext {
	sources := []models.ChunkContext{}
	if len(citedPages) == 0 {
		return sources
	}

	citedSet := make(map[int]bool)
	for _, p := range citedPages {
		citedSet[p] = true
	}

	for _, chunk := range chunks {
		citedInChunk := []int{}
		for p := chunk.PageStart; p <= chunk.PageEnd; p++ {
			if citedSet[p] {
				citedInChunk = append(citedInChunk, p)
			}
		}
		if len(citedInChunk) == 0 {
			continue
		}

		sources = append(sources, models.ChunkContext{
			ChunkID:      chunk.ChunkID,
			DocumentID:   chunk.DocumentID,
			Content:      chunk.Content,
			PageStart:    citedInChunk[0],
			PageEnd:      citedInChunk[len(citedInChunk)-1],
			DocumentName: chunk.DocumentName,
			IsSynthetic:  chunk.IsSynthetic,
		})
	}
	return sources
}
