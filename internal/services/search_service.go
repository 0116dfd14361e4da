package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"docqa/internal/repositories"
)

// SearchService answers standalone semantic search queries over indexed
// chunks, without running the generation pipeline
type SearchService struct {
	vectorRepo      repositories.VectorRepository
	docRepo         repositories.DocumentRepository
	embeddingClient EmbeddingClient
	logger          *log.Logger
	cache           *searchCache
}

// NewSearchService creates a new search service
func NewSearchService(
	vectorRepo repositories.VectorRepository,
	docRepo repositories.DocumentRepository,
	embeddingClient EmbeddingClient,
	logger *log.Logger,
) *SearchService {
	return &SearchService{
		vectorRepo:      vectorRepo,
		docRepo:         docRepo,
		embeddingClient: embeddingClient,
		logger:          logger,
		cache:           newSearchCache(5 * time.Minute),
	}
}

// SearchRequest represents a semantic search request
type SearchRequest struct {
	Query       string   `json:"query"`
	DocumentIDs []string `json:"document_ids,omitempty"`
	TopK        int      `json:"top_k"`
	MinScore    *float32 `json:"min_score,omitempty"`
	UseCache    bool     `json:"use_cache"`
}

// SearchHit is a single search result enriched with document context
type SearchHit struct {
	ChunkID      string  `json:"chunk_id"`
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name,omitempty"`
	Content      string  `json:"content"`
	Score        float32 `json:"score"`
	PageStart    int     `json:"page_start"`
	PageEnd      int     `json:"page_end"`
}

// SearchResponse represents the response from a search operation
type SearchResponse struct {
	Results      []*SearchHit `json:"results"`
	Query        string       `json:"query"`
	TotalResults int          `json:"total_results"`
	SearchTimeMs float64      `json:"search_time_ms"`
	FromCache    bool         `json:"from_cache"`
}

// Search embeds the query and returns ranked chunk hits, optionally
// restricted to a set of documents
func (s *SearchService) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateSearchRequest(req); err != nil {
		s.logger.Printf("Invalid search request: %v", err)
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if req.UseCache {
		if cached := s.cache.Get(req); cached != nil {
			s.logger.Printf("Cache hit for query: %s", req.Query)
			cached.FromCache = true
			cached.SearchTimeMs = time.Since(startTime).Seconds() * 1000
			return cached, nil
		}
	}

	embedding, err := s.embeddingClient.EmbedQuery(ctx, req.Query)
	if err != nil {
		s.logger.Printf("Failed to embed query: %v", err)
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.vectorRepo.Search(ctx, embedding, req.DocumentIDs, req.TopK)
	if err != nil {
		s.logger.Printf("Vector search failed: %v", err)
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]*SearchHit, 0, len(hits))
	for _, hit := range hits {
		if req.MinScore != nil && hit.Score < *req.MinScore {
			continue
		}
		results = append(results, &SearchHit{
			ChunkID:    hit.ChunkID,
			DocumentID: hit.DocumentID,
			Content:    hit.Content,
			Score:      hit.Score,
			PageStart:  hit.PageStart,
			PageEnd:    hit.PageEnd,
		})
	}

	s.attachDocumentNames(ctx, results)

	totalTime := time.Since(startTime).Seconds() * 1000
	s.logger.Printf("Search completed: %d results in %.2fms", len(results), totalTime)

	response := &SearchResponse{
		Results:      results,
		Query:        req.Query,
		TotalResults: len(results),
		SearchTimeMs: totalTime,
	}

	if req.UseCache {
		s.cache.Set(req, response)
	}

	return response, nil
}

// attachDocumentNames resolves document filenames for the hit set. Lookup
// failures leave the name empty rather than failing the search.
func (s *SearchService) attachDocumentNames(ctx context.Context, hits []*SearchHit) {
	names := make(map[string]string)
	for _, hit := range hits {
		name, seen := names[hit.DocumentID]
		if !seen {
			doc, err := s.docRepo.GetDocument(ctx, hit.DocumentID)
			if err != nil {
				s.logger.Printf("Failed to resolve document name for %s: %v", hit.DocumentID, err)
				names[hit.DocumentID] = ""
				continue
			}
			name = doc.Filename
			names[hit.DocumentID] = name
		}
		hit.DocumentName = name
	}
}

// ClearCache clears the search cache
func (s *SearchService) ClearCache() {
	s.cache.Clear()
	s.logger.Printf("Search cache cleared")
}

// GetCacheStats returns cache statistics
func (s *SearchService) GetCacheStats() map[string]interface{} {
	return s.cache.Stats()
}

// validateSearchRequest validates search request parameters
func (s *SearchService) validateSearchRequest(req *SearchRequest) error {
	if req.Query == "" {
		return fmt.Errorf("query is required")
	}

	if req.TopK <= 0 {
		req.TopK = RetrievalTopKPerDoc
	}

	if req.TopK > 100 {
		return fmt.Errorf("topK cannot exceed 100")
	}

	if req.MinScore != nil && (*req.MinScore < 0 || *req.MinScore > 1) {
		return fmt.Errorf("minScore must be between 0 and 1")
	}

	return nil
}

// ============================================================================
// Search Cache Implementation
// ============================================================================

type searchCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	hits    int64
	misses  int64
}

type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

func newSearchCache(ttl time.Duration) *searchCache {
	cache := &searchCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
	}

	go cache.cleanupLoop()

	return cache
}

func (c *searchCache) cacheKey(req *SearchRequest) string {
	ids := make([]string, len(req.DocumentIDs))
	copy(ids, req.DocumentIDs)
	sort.Strings(ids)
	return fmt.Sprintf("%s:%d:%s", req.Query, req.TopK, strings.Join(ids, ","))
}

func (c *searchCache) Get(req *SearchRequest) *SearchResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.cacheKey(req)
	entry, exists := c.entries[key]

	if !exists || time.Now().After(entry.expiresAt) {
		c.misses++
		return nil
	}

	c.hits++
	// Hand out a copy so callers can stamp FromCache and timing without
	// racing other hits on the same entry
	resp := *entry.response
	return &resp
}

func (c *searchCache) Set(req *SearchRequest, resp *SearchResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := c.cacheKey(req)
	c.entries[key] = &cacheEntry{
		response:  resp,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *searchCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*cacheEntry)
	c.hits = 0
	c.misses = 0
}

func (c *searchCache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hitRate := float64(0)
	total := c.hits + c.misses
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}

	return map[string]interface{}{
		"hits":     c.hits,
		"misses":   c.misses,
		"size":     len(c.entries),
		"hit_rate": hitRate,
	}
}

func (c *searchCache) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		c.cleanup()
	}
}

func (c *searchCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}
