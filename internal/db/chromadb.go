package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ChromaDBClient wraps HTTP calls to the ChromaDB v2 API.
// The official Go client library has v1/v2 compatibility issues, so the
// vector index is reached over plain HTTP.
type ChromaDBClient struct {
	baseURL    string
	rootURL    string
	httpClient *http.Client
}

// ChromaDBConfig holds configuration for the ChromaDB connection
type ChromaDBConfig struct {
	Host     string
	Port     int
	Tenant   string // default: "default_tenant"
	Database string // default: "default_database"
	Timeout  time.Duration
}

// Collection represents a ChromaDB collection
type Collection struct {
	ID       string                 `json:"id"`
	Name     string                 `json:"name"`
	Metadata map[string]interface{} `json:"metadata"`
}

// QueryResponse is the response from a similarity query. The outer slices
// are per query embedding; we always send exactly one.
type QueryResponse struct {
	IDs       [][]string                 `json:"ids"`
	Documents [][]string                 `json:"documents"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Distances [][]float32                `json:"distances"`
}

// GetResponse is the response from a metadata-filtered get
type GetResponse struct {
	IDs       []string                 `json:"ids"`
	Documents []string                 `json:"documents"`
	Metadatas []map[string]interface{} `json:"metadatas"`
}

// NewChromaDBClient creates a new ChromaDB client with v2 API support
func NewChromaDBClient(config ChromaDBConfig) *ChromaDBClient {
	if config.Tenant == "" {
		config.Tenant = "default_tenant"
	}
	if config.Database == "" {
		config.Database = "default_database"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	rootURL := fmt.Sprintf("http://%s:%d", config.Host, config.Port)
	baseURL := fmt.Sprintf("%s/api/v2/tenants/%s/databases/%s",
		rootURL, config.Tenant, config.Database)

	return &ChromaDBClient{
		baseURL: baseURL,
		rootURL: rootURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Heartbeat checks if ChromaDB is alive
func (c *ChromaDBClient) Heartbeat(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.rootURL+"/api/v2/heartbeat", nil)
	if err != nil {
		return fmt.Errorf("failed to create heartbeat request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat failed with status: %d", resp.StatusCode)
	}

	return nil
}

// GetCollection retrieves a collection by name
func (c *ChromaDBClient) GetCollection(ctx context.Context, name string) (*Collection, error) {
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, name)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("collection not found: %s", name)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("get collection failed (status %d): %s", resp.StatusCode, string(body))
	}

	var collection Collection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &collection, nil
}

// CreateCollection creates a new collection. Cosine distance is a hard
// contract of the retrieval pipeline, so it is always set here.
func (c *ChromaDBClient) CreateCollection(ctx context.Context, name string) (*Collection, error) {
	payload := map[string]interface{}{
		"name": name,
		"metadata": map[string]interface{}{
			"hnsw:space": "cosine",
		},
	}

	var collection Collection
	if err := c.post(ctx, fmt.Sprintf("%s/collections", c.baseURL), payload, &collection); err != nil {
		return nil, fmt.Errorf("create collection %s: %w", name, err)
	}

	return &collection, nil
}

// UpsertVectors inserts or replaces vectors by ID in a collection
func (c *ChromaDBClient) UpsertVectors(ctx context.Context, collectionName string, ids []string, documents []string, embeddings [][]float32, metadatas []map[string]interface{}) error {
	collection, err := c.GetCollection(ctx, collectionName)
	if err != nil {
		return fmt.Errorf("failed to get collection: %w", err)
	}

	payload := map[string]interface{}{
		"ids":        ids,
		"documents":  documents,
		"embeddings": embeddings,
	}
	if metadatas != nil {
		payload["metadatas"] = metadatas
	}

	url := fmt.Sprintf("%s/collections/%s/upsert", c.baseURL, collection.ID)
	if err := c.post(ctx, url, payload, nil); err != nil {
		return fmt.Errorf("upsert %d vectors: %w", len(ids), err)
	}

	return nil
}

// Query searches for nearest neighbors of the query embedding, optionally
// restricted by a metadata filter
func (c *ChromaDBClient) Query(ctx context.Context, collectionName string, queryEmbedding []float32, topK int, where map[string]interface{}) (*QueryResponse, error) {
	collection, err := c.GetCollection(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}

	payload := map[string]interface{}{
		"query_embeddings": [][]float32{queryEmbedding},
		"n_results":        topK,
		"include":          []string{"documents", "metadatas", "distances"},
	}
	if where != nil {
		payload["where"] = where
	}

	var queryResp QueryResponse
	url := fmt.Sprintf("%s/collections/%s/query", c.baseURL, collection.ID)
	if err := c.post(ctx, url, payload, &queryResp); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	return &queryResp, nil
}

// DeleteByFilter deletes all vectors matching a metadata filter. Returns
// the number of vectors deleted.
func (c *ChromaDBClient) DeleteByFilter(ctx context.Context, collectionName string, where map[string]interface{}) (int, error) {
	collection, err := c.GetCollection(ctx, collectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}

	// Fetch matching IDs first so the count can be reported
	getResp, err := c.getByFilter(ctx, collection.ID, where)
	if err != nil {
		return 0, err
	}
	if len(getResp.IDs) == 0 {
		return 0, nil
	}

	payload := map[string]interface{}{
		"ids": getResp.IDs,
	}
	url := fmt.Sprintf("%s/collections/%s/delete", c.baseURL, collection.ID)
	if err := c.post(ctx, url, payload, nil); err != nil {
		return 0, fmt.Errorf("delete %d vectors: %w", len(getResp.IDs), err)
	}

	return len(getResp.IDs), nil
}

// CountCollection returns the number of vectors in a collection
func (c *ChromaDBClient) CountCollection(ctx context.Context, collectionName string) (int, error) {
	collection, err := c.GetCollection(ctx, collectionName)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/count", c.baseURL, collection.ID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("count failed (status %d): %s", resp.StatusCode, string(body))
	}

	var count int
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	return count, nil
}

// Close closes idle HTTP connections
func (c *ChromaDBClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *ChromaDBClient) getByFilter(ctx context.Context, collectionID string, where map[string]interface{}) (*GetResponse, error) {
	payload := map[string]interface{}{
		"include": []string{"metadatas"},
		"limit":   100000,
	}
	if len(where) > 0 {
		payload["where"] = where
	}

	var getResp GetResponse
	url := fmt.Sprintf("%s/collections/%s/get", c.baseURL, collectionID)
	if err := c.post(ctx, url, payload, &getResp); err != nil {
		return nil, fmt.Errorf("get by filter: %w", err)
	}

	return &getResp, nil
}

// post sends a JSON POST and decodes the response into out (when non-nil)
func (c *ChromaDBClient) post(ctx context.Context, url string, payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
