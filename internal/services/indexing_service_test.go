package services

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docqa/internal/models"
	"docqa/internal/repositories"
)

func setupTestIndexing(t *testing.T) (*IndexingService, *MockDocumentRepository, *MockVectorRepository, *MockEmbeddingClient) {
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)
	docRepo := new(MockDocumentRepository)
	vectorRepo := new(MockVectorRepository)
	embeddingClient := new(MockEmbeddingClient)

	service := NewIndexingService(
		NewChunkerService(logger),
		NewEmbedderService(embeddingClient, logger),
		docRepo,
		vectorRepo,
		logger,
	)
	return service, docRepo, vectorRepo, embeddingClient
}

func indexingPages() []*models.PageText {
	return []*models.PageText{
		makePage(1, repeatSentence("The first page describes the ingestion pipeline in detail. ", 120)),
		makePage(2, repeatSentence("The second page covers retrieval and citation checking. ", 120)),
	}
}

func TestIndexDocument_Success(t *testing.T) {
	service, docRepo, vectorRepo, embeddingClient := setupTestIndexing(t)
	ctx := context.Background()

	docRepo.On("GetPages", mock.Anything, "doc-1").Return(indexingPages(), nil)
	embeddingClient.On("EmbedDocument", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	vectorRepo.On("DeleteDocument", mock.Anything, "doc-1").Return(0, nil)
	vectorRepo.On("UpsertChunks", mock.Anything, mock.MatchedBy(func(points []*repositories.ChunkPoint) bool {
		if len(points) == 0 {
			return false
		}
		for _, p := range points {
			if p.DocumentID != "doc-1" || p.ID == "" || len(p.Embedding) != EmbeddingDimension {
				return false
			}
		}
		return true
	})).Return(nil)
	docRepo.On("SetIndexed", mock.Anything, "doc-1", true).Return(nil)

	count, err := service.IndexDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Greater(t, count, 0)

	docRepo.AssertExpectations(t)
	vectorRepo.AssertExpectations(t)
}

func TestIndexDocument_NoPages(t *testing.T) {
	service, docRepo, vectorRepo, _ := setupTestIndexing(t)

	docRepo.On("GetPages", mock.Anything, "doc-1").Return([]*models.PageText{}, nil)

	_, err := service.IndexDocument(context.Background(), "doc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no extracted pages")
	vectorRepo.AssertNotCalled(t, "UpsertChunks", mock.Anything, mock.Anything)
}

func TestIndexDocument_AllEmbeddingsFail(t *testing.T) {
	service, docRepo, vectorRepo, embeddingClient := setupTestIndexing(t)

	docRepo.On("GetPages", mock.Anything, "doc-1").Return(indexingPages(), nil)
	embeddingClient.On("EmbedDocument", mock.Anything, mock.Anything).Return(nil, errors.New("provider down"))

	_, err := service.IndexDocument(context.Background(), "doc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embeddings failed")

	// Previous vectors must remain untouched when embedding fails outright
	vectorRepo.AssertNotCalled(t, "DeleteDocument", mock.Anything, mock.Anything)
	vectorRepo.AssertNotCalled(t, "UpsertChunks", mock.Anything, mock.Anything)
}

func TestIndexDocument_PartialEmbeddingFailureStillIndexes(t *testing.T) {
	service, docRepo, vectorRepo, embeddingClient := setupTestIndexing(t)
	ctx := context.Background()

	docRepo.On("GetPages", mock.Anything, "doc-1").Return(indexingPages(), nil)

	// First chunk fails, remaining chunks succeed
	embeddingClient.On("EmbedDocument", mock.Anything, mock.Anything).Return(nil, errors.New("transient")).Once()
	embeddingClient.On("EmbedDocument", mock.Anything, mock.Anything).Return(testEmbedding(), nil)

	var upserted int
	vectorRepo.On("DeleteDocument", mock.Anything, "doc-1").Return(2, nil)
	vectorRepo.On("UpsertChunks", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		upserted = len(args.Get(1).([]*repositories.ChunkPoint))
	}).Return(nil)
	docRepo.On("SetIndexed", mock.Anything, "doc-1", true).Return(nil)

	count, err := service.IndexDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, upserted, count)
	assert.Greater(t, count, 0)
}

func TestIndexDocument_UpsertFailure(t *testing.T) {
	service, docRepo, vectorRepo, embeddingClient := setupTestIndexing(t)

	docRepo.On("GetPages", mock.Anything, "doc-1").Return(indexingPages(), nil)
	embeddingClient.On("EmbedDocument", mock.Anything, mock.Anything).Return(testEmbedding(), nil)
	vectorRepo.On("DeleteDocument", mock.Anything, "doc-1").Return(0, nil)
	vectorRepo.On("UpsertChunks", mock.Anything, mock.Anything).Return(errors.New("chroma unavailable"))

	_, err := service.IndexDocument(context.Background(), "doc-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store vectors")
	docRepo.AssertNotCalled(t, "SetIndexed", mock.Anything, mock.Anything, mock.Anything)
}
