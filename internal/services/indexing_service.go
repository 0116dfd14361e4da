package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"docqa/internal/repositories"
)

// IndexingService chunks, embeds, and stores a document for retrieval
type IndexingService struct {
	chunker    *ChunkerService
	embedder   *EmbedderService
	docRepo    repositories.DocumentRepository
	vectorRepo repositories.VectorRepository
	logger     *log.Logger
}

// NewIndexingService creates a new indexing service
func NewIndexingService(
	chunker *ChunkerService,
	embedder *EmbedderService,
	docRepo repositories.DocumentRepository,
	vectorRepo repositories.VectorRepository,
	logger *log.Logger,
) *IndexingService {
	return &IndexingService{
		chunker:    chunker,
		embedder:   embedder,
		docRepo:    docRepo,
		vectorRepo: vectorRepo,
		logger:     logger,
	}
}

// IndexDocument runs the full indexing pipeline for a stored document:
// chunk its pages, embed the chunks, replace any existing vectors, and mark
// the document indexed. Existing vectors are only deleted after embedding
// succeeds, so a failed run leaves the previous index intact.
func (s *IndexingService) IndexDocument(ctx context.Context, documentID string) (int, error) {
	pages, err := s.docRepo.GetPages(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to load pages: %w", err)
	}
	if len(pages) == 0 {
		return 0, fmt.Errorf("document %s has no extracted pages", documentID)
	}

	chunks := s.chunker.ChunkDocument(pages)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("document %s produced no chunks", documentID)
	}

	chunkIDs := make([]string, len(chunks))
	for i := range chunks {
		chunkIDs[i] = uuid.New().String()
	}

	results := s.embedder.EmbedChunks(ctx, chunkIDs, chunks)

	points := make([]*repositories.ChunkPoint, 0, len(chunks))
	failed := 0
	for i, result := range results {
		if !result.Success {
			failed++
			s.logger.Printf("Embedding failed for chunk %d of document %s: %s", chunks[i].ChunkIndex, documentID, result.Error)
			continue
		}
		points = append(points, &repositories.ChunkPoint{
			ID:         result.ChunkID,
			DocumentID: documentID,
			Content:    chunks[i].Content,
			Embedding:  result.Embedding,
			ChunkIndex: chunks[i].ChunkIndex,
			PageStart:  chunks[i].PageStart,
			PageEnd:    chunks[i].PageEnd,
			TokenCount: chunks[i].TokenCount,
		})
	}

	if len(points) == 0 {
		return 0, fmt.Errorf("all %d chunk embeddings failed for document %s", len(chunks), documentID)
	}

	// Replace previous vectors before upserting the new set
	if _, err := s.vectorRepo.DeleteDocument(ctx, documentID); err != nil {
		return 0, fmt.Errorf("failed to clear previous vectors: %w", err)
	}

	if err := s.vectorRepo.UpsertChunks(ctx, points); err != nil {
		return 0, fmt.Errorf("failed to store vectors: %w", err)
	}

	if err := s.docRepo.SetIndexed(ctx, documentID, true); err != nil {
		return 0, fmt.Errorf("failed to mark document indexed: %w", err)
	}

	s.logger.Printf("Indexed document %s: %d chunks stored, %d embedding failures", documentID, len(points), failed)
	return len(points), nil
}
