package repositories

import (
	"context"
	"fmt"

	"docqa/internal/db"
)

// ChunkCollection is the single collection holding all document chunks
const ChunkCollection = "document_chunks"

// ChromaVectorRepository implements VectorRepository using ChromaDB
type ChromaVectorRepository struct {
	client *db.ChromaDBClient
}

// NewChromaVectorRepository creates a new ChromaDB-backed vector repository
func NewChromaVectorRepository(client *db.ChromaDBClient) VectorRepository {
	return &ChromaVectorRepository{
		client: client,
	}
}

// EnsureCollection creates the chunk collection if it does not exist
func (r *ChromaVectorRepository) EnsureCollection(ctx context.Context) error {
	if _, err := r.client.GetCollection(ctx, ChunkCollection); err == nil {
		return nil
	}

	if _, err := r.client.CreateCollection(ctx, ChunkCollection); err != nil {
		return NewVectorRepositoryError("ensure_collection", err, "")
	}
	return nil
}

// UpsertChunks inserts or replaces chunk vectors by ID
func (r *ChromaVectorRepository) UpsertChunks(ctx context.Context, points []*ChunkPoint) error {
	if len(points) == 0 {
		return nil
	}

	if err := r.EnsureCollection(ctx); err != nil {
		return err
	}

	ids := make([]string, len(points))
	documents := make([]string, len(points))
	embeddings := make([][]float32, len(points))
	metadatas := make([]map[string]interface{}, len(points))

	for i, p := range points {
		ids[i] = p.ID
		documents[i] = p.Content
		embeddings[i] = p.Embedding
		metadatas[i] = map[string]interface{}{
			"document_id": p.DocumentID,
			"chunk_index": p.ChunkIndex,
			"page_start":  p.PageStart,
			"page_end":    p.PageEnd,
			"token_count": p.TokenCount,
		}
	}

	err := r.client.UpsertVectors(ctx, ChunkCollection, ids, documents, embeddings, metadatas)
	if err != nil {
		return NewVectorRepositoryError("upsert_chunks", err, fmt.Sprintf("failed to upsert %d chunks", len(points)))
	}

	return nil
}

// DeleteDocument removes all vectors belonging to a document
func (r *ChromaVectorRepository) DeleteDocument(ctx context.Context, documentID string) (int, error) {
	if err := r.EnsureCollection(ctx); err != nil {
		return 0, err
	}

	where := map[string]interface{}{
		"document_id": documentID,
	}

	deleted, err := r.client.DeleteByFilter(ctx, ChunkCollection, where)
	if err != nil {
		return 0, NewVectorRepositoryError("delete_document", err, "failed to delete document vectors: "+documentID)
	}

	return deleted, nil
}

// Search returns ranked nearest neighbors for the query embedding
func (r *ChromaVectorRepository) Search(ctx context.Context, queryEmbedding []float32, documentIDs []string, topK int) ([]*SearchResult, error) {
	if err := r.EnsureCollection(ctx); err != nil {
		return nil, err
	}

	var where map[string]interface{}
	if len(documentIDs) == 1 {
		where = map[string]interface{}{
			"document_id": documentIDs[0],
		}
	} else if len(documentIDs) > 1 {
		ids := make([]interface{}, len(documentIDs))
		for i, id := range documentIDs {
			ids[i] = id
		}
		where = map[string]interface{}{
			"document_id": map[string]interface{}{"$in": ids},
		}
	}

	results, err := r.client.Query(ctx, ChunkCollection, queryEmbedding, topK, where)
	if err != nil {
		return nil, NewVectorRepositoryError("search", err, "query failed")
	}

	searchResults := make([]*SearchResult, 0)
	if len(results.IDs) > 0 {
		for i := 0; i < len(results.IDs[0]); i++ {
			metadata := make(map[string]interface{})
			if len(results.Metadatas) > 0 && len(results.Metadatas[0]) > i {
				metadata = results.Metadatas[0][i]
			}

			var content string
			if len(results.Documents) > 0 && len(results.Documents[0]) > i {
				content = results.Documents[0][i]
			}

			var distance float32
			if len(results.Distances) > 0 && len(results.Distances[0]) > i {
				distance = results.Distances[0][i]
			}

			searchResults = append(searchResults, &SearchResult{
				ChunkID:    results.IDs[0][i],
				DocumentID: metadataString(metadata, "document_id"),
				Content:    content,
				Score:      1.0 - distance, // cosine distance -> similarity
				Distance:   distance,
				ChunkIndex: metadataInt(metadata, "chunk_index"),
				PageStart:  metadataInt(metadata, "page_start"),
				PageEnd:    metadataInt(metadata, "page_end"),
				Metadata:   metadata,
			})
		}
	}

	return searchResults, nil
}

// Ping checks if ChromaDB is alive
func (r *ChromaVectorRepository) Ping(ctx context.Context) error {
	if err := r.client.Heartbeat(ctx); err != nil {
		return NewVectorRepositoryError("ping", err, "ChromaDB heartbeat failed")
	}
	return nil
}

// Close closes the ChromaDB client
func (r *ChromaVectorRepository) Close() error {
	r.client.Close()
	return nil
}

// metadataString extracts a string field from Chroma metadata
func metadataString(metadata map[string]interface{}, key string) string {
	if v, ok := metadata[key].(string); ok {
		return v
	}
	return ""
}

// metadataInt extracts an int field; Chroma returns JSON numbers as float64
func metadataInt(metadata map[string]interface{}, key string) int {
	switch v := metadata[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
