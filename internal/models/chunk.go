package models

// Chunk is a bounded, page-tagged span of document text produced by the
// chunker. Chunks are never mutated after creation; re-chunking a document
// supersedes its whole chunk set.
type Chunk struct {
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
	PageStart  int    `json:"page_start"`
	PageEnd    int    `json:"page_end"`
	TokenCount int    `json:"token_count"`
}

// ChunkContext is a chunk enriched with durable identifiers, used as the
// unit passed through retrieval, prompting, and citation checking.
type ChunkContext struct {
	ChunkID      string `json:"chunk_id"`
	DocumentID   string `json:"document_id"`
	Content      string `json:"content"`
	PageStart    int    `json:"page_start"`
	PageEnd      int    `json:"page_end"`
	DocumentName string `json:"document_name,omitempty"`
	// IsSynthetic is true for chunks synthesized from figure records
	// rather than chunked page text.
	IsSynthetic bool `json:"is_synthetic,omitempty"`
}

// Pages returns every page number spanned by the chunk context.
func (c *ChunkContext) Pages() []int {
	pages := make([]int, 0, c.PageEnd-c.PageStart+1)
	for p := c.PageStart; p <= c.PageEnd; p++ {
		pages = append(pages, p)
	}
	return pages
}

// RetrievedChunk is one ranked retrieval hit. Order within a document is
// engine rank order; scores are cosine similarity, nominally in [0,1].
type RetrievedChunk struct {
	ChunkID  string                 `json:"chunk_id"`
	Score    float64                `json:"score"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	Context  ChunkContext           `json:"context"`
}
