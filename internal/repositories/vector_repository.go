package repositories

import (
	"context"
)

// VectorRepository abstracts the vector index. The similarity metric is
// cosine by contract; scores returned by Search are 1 - cosine distance.
type VectorRepository interface {
	// EnsureCollection creates the chunk collection if it does not exist
	EnsureCollection(ctx context.Context) error

	// UpsertChunks inserts or replaces chunk vectors by ID
	UpsertChunks(ctx context.Context, points []*ChunkPoint) error

	// DeleteDocument removes all vectors belonging to a document and
	// returns the number removed
	DeleteDocument(ctx context.Context, documentID string) (int, error)

	// Search returns ranked nearest neighbors for the query embedding,
	// optionally restricted to a set of documents. Order is engine rank
	// order.
	Search(ctx context.Context, queryEmbedding []float32, documentIDs []string, topK int) ([]*SearchResult, error)

	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error
}

// ChunkPoint is a chunk vector with its payload, ready for the index
type ChunkPoint struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding"`
	ChunkIndex int       `json:"chunk_index"`
	PageStart  int       `json:"page_start"`
	PageEnd    int       `json:"page_end"`
	TokenCount int       `json:"token_count"`
}

// SearchResult is a single ranked hit from the vector index
type SearchResult struct {
	ChunkID    string                 `json:"chunk_id"`
	DocumentID string                 `json:"document_id"`
	Content    string                 `json:"content"`
	Score      float32                `json:"score"` // similarity, higher is better
	Distance   float32                `json:"distance"`
	ChunkIndex int                    `json:"chunk_index"`
	PageStart  int                    `json:"page_start"`
	PageEnd    int                    `json:"page_end"`
	Metadata   map[string]interface{} `json:"metadata"`
}

// VectorRepositoryError represents errors from the vector repository
type VectorRepositoryError struct {
	Operation string
	Err       error
	Message   string
}

func (e *VectorRepositoryError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Operation + ": " + e.Err.Error()
	}
	return e.Operation + ": unknown error"
}

func (e *VectorRepositoryError) Unwrap() error {
	return e.Err
}

// NewVectorRepositoryError creates a new vector repository error
func NewVectorRepositoryError(operation string, err error, message string) *VectorRepositoryError {
	return &VectorRepositoryError{
		Operation: operation,
		Err:       err,
		Message:   message,
	}
}
