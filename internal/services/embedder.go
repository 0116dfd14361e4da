package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sync"
	"time"

	"docqa/internal/models"
)

const (
	DefaultEmbeddingModel = "text-embedding-004"
	EmbeddingDimension    = 768
	EmbeddingConcurrency  = 5
)

// Task types for the embedding API
const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

// EmbeddingClient generates vector embeddings for text
type EmbeddingClient interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	HealthCheck(ctx context.Context) error
}

// geminiEmbedRequest represents the request format for the Gemini embedding API
type geminiEmbedRequest struct {
	Model   string `json:"model"`
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
	TaskType string `json:"taskType,omitempty"`
}

// geminiEmbedResponse represents the response from the Gemini embedding API
type geminiEmbedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// GeminiEmbeddingClient calls the Gemini embedContent API
type GeminiEmbeddingClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewGeminiEmbeddingClient creates a new Gemini embedding client
func NewGeminiEmbeddingClient(baseURL, apiKey, model string) *GeminiEmbeddingClient {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &GeminiEmbeddingClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *GeminiEmbeddingClient) embed(ctx context.Context, text, taskType string) ([]float32, error) {
	reqBody := geminiEmbedRequest{
		Model:    "models/" + c.model,
		TaskType: taskType,
	}
	reqBody.Content.Parts = []struct {
		Text string `json:"text"`
	}{{Text: text}}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:embedContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send embedding request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding API returned status %d: %s", resp.StatusCode, string(body))
	}

	var embedResp geminiEmbedResponse
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return embedResp.Embedding.Values, nil
}

// EmbedDocument generates an embedding for document text
func (c *GeminiEmbeddingClient) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, taskTypeDocument)
}

// EmbedQuery generates an embedding for a search query
func (c *GeminiEmbeddingClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, taskTypeQuery)
}

// HealthCheck verifies the embedding API is reachable
func (c *GeminiEmbeddingClient) HealthCheck(ctx context.Context) error {
	if _, err := c.embed(ctx, "ping", taskTypeQuery); err != nil {
		return fmt.Errorf("embedding API not reachable: %w", err)
	}
	return nil
}

// isZeroVector reports whether an embedding is effectively all zeros
func isZeroVector(embedding []float32) bool {
	const tolerance = 1e-9
	for _, v := range embedding {
		if math.Abs(float64(v)) >= tolerance {
			return false
		}
	}
	return true
}

// EmbeddingResult holds the outcome of embedding a single chunk
type EmbeddingResult struct {
	ChunkID   string
	Embedding []float32
	Success   bool
	Error     string
}

// EmbedderService generates chunk embeddings with bounded concurrency
type EmbedderService struct {
	client EmbeddingClient
	logger *log.Logger
}

// NewEmbedderService creates a new embedder service
func NewEmbedderService(client EmbeddingClient, logger *log.Logger) *EmbedderService {
	return &EmbedderService{
		client: client,
		logger: logger,
	}
}

// EmbedChunks generates embeddings for chunks concurrently.
// Results preserve input order. A chunk fails if embedding errors,
// returns the wrong dimension, or yields a zero vector.
func (s *EmbedderService) EmbedChunks(ctx context.Context, chunkIDs []string, chunks []*models.Chunk) []EmbeddingResult {
	if len(chunks) == 0 {
		return []EmbeddingResult{}
	}

	s.logger.Printf("Generating embeddings for %d chunks", len(chunks))

	results := make([]EmbeddingResult, len(chunks))
	semaphore := make(chan struct{}, EmbeddingConcurrency)
	var wg sync.WaitGroup

	for i := range chunks {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[i] = s.embedOne(ctx, chunkIDs[i], chunks[i].Content)
		}(i)
	}
	wg.Wait()

	successCount := 0
	for _, r := range results {
		if r.Success {
			successCount++
		}
	}
	s.logger.Printf("Generated %d/%d embeddings", successCount, len(chunks))

	return results
}

func (s *EmbedderService) embedOne(ctx context.Context, chunkID, content string) EmbeddingResult {
	embedding, err := s.client.EmbedDocument(ctx, content)
	if err != nil {
		return EmbeddingResult{
			ChunkID: chunkID,
			Success: false,
			Error:   fmt.Sprintf("embedding generation failed: %v", err),
		}
	}
	if len(embedding) != EmbeddingDimension {
		return EmbeddingResult{
			ChunkID: chunkID,
			Success: false,
			Error:   fmt.Sprintf("invalid dimension: %d", len(embedding)),
		}
	}
	if isZeroVector(embedding) {
		return EmbeddingResult{
			ChunkID: chunkID,
			Success: false,
			Error:   "zero-vector embedding",
		}
	}
	return EmbeddingResult{
		ChunkID:   chunkID,
		Embedding: embedding,
		Success:   true,
	}
}
