package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"

	"docqa/internal/models"
	"docqa/internal/repositories"
)

const (
	RetrievalTopKPerDoc = 10
	FigureDefaultScore  = 0.7
)

// QueryIntent classifies what kind of content a question targets
type QueryIntent int

const (
	IntentText QueryIntent = iota
	IntentVisual
)

func (i QueryIntent) String() string {
	switch i {
	case IntentVisual:
		return "visual"
	default:
		return "text"
	}
}

var (
	intentExclusionPattern = regexp.MustCompile(`\b(figure out|figure it|figures out)\b`)
	intentPhrasePatterns   = []*regexp.Regexp{
		regexp.MustCompile(`\bshow image`),
		regexp.MustCompile(`\bshow figure`),
		regexp.MustCompile(`\bshow picture`),
		regexp.MustCompile(`\bshow visual`),
		regexp.MustCompile(`\bwhat does it depict\b`),
		regexp.MustCompile(`\bvisualize this\b`),
		regexp.MustCompile(`\bdoes this image\b`),
	}
	intentKeywordPattern = regexp.MustCompile(`\b(image|images|picture|pictures|figure|figures|photo|photos|diagram|chart|visual|visuals)\b`)
)

// ClassifyQueryIntent decides whether a question targets visual artifacts.
// Exclusion phrases like "figure out" are checked first to avoid false
// positives from keyword matching.
func ClassifyQueryIntent(question string) QueryIntent {
	q := strings.ToLower(question)

	if intentExclusionPattern.MatchString(q) {
		return IntentText
	}
	for _, p := range intentPhrasePatterns {
		if p.MatchString(q) {
			return IntentVisual
		}
	}
	if intentKeywordPattern.MatchString(q) {
		return IntentVisual
	}
	return IntentText
}

// MultiDocRetrievalResult holds per-document retrieval output.
// DocOrder preserves the caller's document ordering for deterministic
// context assembly.
type MultiDocRetrievalResult struct {
	ChunksByDoc map[string][]*models.ChunkContext
	ScoresByDoc map[string][]float64
	DocNames    map[string]string
	DocOrder    []string
}

// TotalChunks counts chunks across all documents
func (r *MultiDocRetrievalResult) TotalChunks() int {
	total := 0
	for _, chunks := range r.ChunksByDoc {
		total += len(chunks)
	}
	return total
}

// AllScores flattens retrieval scores in document order
func (r *MultiDocRetrievalResult) AllScores() []float64 {
	scores := []float64{}
	for _, docID := range r.DocOrder {
		scores = append(scores, r.ScoresByDoc[docID]...)
	}
	return scores
}

// RetrieverService performs semantic retrieval across documents
type RetrieverService struct {
	vectorRepo      repositories.VectorRepository
	docRepo         repositories.DocumentRepository
	embeddingClient EmbeddingClient
	logger          *log.Logger
}

// NewRetrieverService creates a new retriever service
func NewRetrieverService(
	vectorRepo repositories.VectorRepository,
	docRepo repositories.DocumentRepository,
	embeddingClient EmbeddingClient,
	logger *log.Logger,
) *RetrieverService {
	return &RetrieverService{
		vectorRepo:      vectorRepo,
		docRepo:         docRepo,
		embeddingClient: embeddingClient,
		logger:          logger,
	}
}

// Retrieve returns the topK most relevant chunks for a question within a
// single document
func (s *RetrieverService) Retrieve(ctx context.Context, question, documentID string, topK int) ([]*models.RetrievedChunk, error) {
	queryEmbedding, err := s.embeddingClient.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	results, err := s.vectorRepo.Search(ctx, queryEmbedding, []string{documentID}, topK)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	retrieved := make([]*models.RetrievedChunk, 0, len(results))
	for _, r := range results {
		retrieved = append(retrieved, &models.RetrievedChunk{
			ChunkID:  r.ChunkID,
			Score:    float64(r.Score),
			Metadata: r.Metadata,
			Context: models.ChunkContext{
				ChunkID:    r.ChunkID,
				DocumentID: r.DocumentID,
				Content:    r.Content,
				PageStart:  r.PageStart,
				PageEnd:    r.PageEnd,
			},
		})
	}
	return retrieved, nil
}

// RetrieveFromDocuments retrieves relevant chunks from multiple documents in
// parallel. A failed document contributes an empty result set instead of
// failing the whole request. Visual questions additionally pull stored figure
// records as synthetic chunks scored by cosine similarity against the query.
func (s *RetrieverService) RetrieveFromDocuments(ctx context.Context, question string, documentIDs []string) (*MultiDocRetrievalResult, error) {
	docNames := make(map[string]string)
	for _, docID := range documentIDs {
		doc, err := s.docRepo.GetDocument(ctx, docID)
		if err != nil {
			docNames[docID] = "Unknown"
			continue
		}
		docNames[docID] = doc.Filename
	}

	intent := ClassifyQueryIntent(question)

	// A failed query embedding degrades the same way a failed document
	// does: every document contributes an empty result set and the QA
	// layer produces the refusal answer.
	queryEmbedding, err := s.embeddingClient.EmbedQuery(ctx, question)
	if err != nil {
		s.logger.Printf("Query embedding failed, returning empty retrieval: %v", err)
		return &MultiDocRetrievalResult{
			ChunksByDoc: make(map[string][]*models.ChunkContext),
			ScoresByDoc: make(map[string][]float64),
			DocNames:    docNames,
			DocOrder:    documentIDs,
		}, nil
	}

	// Parallel per-document retrieval with failure isolation
	type docResult struct {
		docID   string
		results []*repositories.SearchResult
		err     error
	}

	resultCh := make(chan docResult, len(documentIDs))
	var wg sync.WaitGroup

	for _, docID := range documentIDs {
		wg.Add(1)
		go func(docID string) {
			defer wg.Done()
			results, err := s.vectorRepo.Search(ctx, queryEmbedding, []string{docID}, RetrievalTopKPerDoc)
			resultCh <- docResult{docID: docID, results: results, err: err}
		}(docID)
	}
	wg.Wait()
	close(resultCh)

	resultsMap := make(map[string][]*repositories.SearchResult)
	for res := range resultCh {
		if res.err != nil {
			s.logger.Printf("Retrieval failed for document %s: %v", res.docID, res.err)
			continue
		}
		resultsMap[res.docID] = res.results
	}

	retrieval := &MultiDocRetrievalResult{
		ChunksByDoc: make(map[string][]*models.ChunkContext),
		ScoresByDoc: make(map[string][]float64),
		DocNames:    docNames,
		DocOrder:    documentIDs,
	}

	for _, docID := range documentIDs {
		results, ok := resultsMap[docID]
		if !ok {
			continue
		}
		retrieval.ChunksByDoc[docID] = []*models.ChunkContext{}
		retrieval.ScoresByDoc[docID] = []float64{}

		for _, r := range results {
			retrieval.ChunksByDoc[docID] = append(retrieval.ChunksByDoc[docID], &models.ChunkContext{
				ChunkID:      r.ChunkID,
				DocumentID:   docID,
				Content:      r.Content,
				PageStart:    r.PageStart,
				PageEnd:      r.PageEnd,
				DocumentName: docNames[docID],
			})
			retrieval.ScoresByDoc[docID] = append(retrieval.ScoresByDoc[docID], float64(r.Score))
		}
	}

	if intent == IntentVisual {
		if err := s.augmentWithFigures(ctx, question, documentIDs, queryEmbedding, retrieval); err != nil {
			s.logger.Printf("Figure augmentation failed: %v", err)
		}
	}

	logParts := ""
	for _, docID := range documentIDs {
		logParts += fmt.Sprintf(" %s:%d", docNames[docID], len(retrieval.ChunksByDoc[docID]))
	}
	s.logger.Printf("Retrieved chunks from %d documents:%s", len(documentIDs), logParts)

	return retrieval, nil
}

// augmentWithFigures converts stored figure records into synthetic chunks and
// scores them by cosine similarity against the query embedding. Embedding
// failure for a figure substitutes a fixed default score rather than dropping
// the candidate.
func (s *RetrieverService) augmentWithFigures(ctx context.Context, question string, documentIDs []string, queryEmbedding []float32, retrieval *MultiDocRetrievalResult) error {
	figures, err := s.docRepo.GetFiguresForDocuments(ctx, documentIDs)
	if err != nil {
		return err
	}
	if len(figures) == 0 {
		s.logger.Printf("No extracted figures found - run figure extraction first")
		return nil
	}

	for _, fig := range figures {
		docID := fig.DocumentID
		if _, ok := retrieval.ChunksByDoc[docID]; !ok {
			retrieval.ChunksByDoc[docID] = []*models.ChunkContext{}
			retrieval.ScoresByDoc[docID] = []float64{}
		}

		content := fmt.Sprintf("[Figure on Page %d] Type: %s. %s", fig.PageNumber, fig.FigureType, fig.Description)
		chunk := &models.ChunkContext{
			ChunkID:      uuid.New().String(),
			DocumentID:   docID,
			Content:      content,
			PageStart:    fig.PageNumber,
			PageEnd:      fig.PageNumber,
			DocumentName: retrieval.DocNames[docID],
			IsSynthetic:  true,
		}

		retrieval.ChunksByDoc[docID] = append(retrieval.ChunksByDoc[docID], chunk)
		retrieval.ScoresByDoc[docID] = append(retrieval.ScoresByDoc[docID], s.scoreFigure(ctx, queryEmbedding, content))
	}

	return nil
}

func (s *RetrieverService) scoreFigure(ctx context.Context, queryEmbedding []float32, content string) float64 {
	figEmbedding, err := s.embeddingClient.EmbedDocument(ctx, content)
	if err != nil {
		return FigureDefaultScore
	}

	similarity, ok := cosineSimilarity(queryEmbedding, figEmbedding)
	if !ok {
		return FigureDefaultScore
	}
	return math.Max(0.0, math.Min(1.0, similarity))
}

// cosineSimilarity returns the cosine of the angle between two vectors.
// The second return is false when either vector has zero norm or the
// dimensions disagree.
func cosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}
