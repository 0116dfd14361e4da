package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"docqa/internal/repositories"
)

// HomeHandler godoc
// @Summary Home page
// @Description Returns a welcome message for the API server
// @Tags general
// @Produce text/plain
// @Success 200 {string} string "Document QA Server"
// @Router / [get]
func HomeHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	fmt.Fprintln(w, "Document QA Server")
}

// HealthResponse reports overall server health and per-dependency status
type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies"`
}

// HealthHandler checks connectivity to the backing stores
type HealthHandler struct {
	docRepo    repositories.DocumentRepository
	vectorRepo repositories.VectorRepository
	jobRepo    repositories.JobRepository
	logger     *log.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(
	docRepo repositories.DocumentRepository,
	vectorRepo repositories.VectorRepository,
	jobRepo repositories.JobRepository,
	logger *log.Logger,
) *HealthHandler {
	return &HealthHandler{
		docRepo:    docRepo,
		vectorRepo: vectorRepo,
		jobRepo:    jobRepo,
		logger:     logger,
	}
}

// Health handles health check requests
// @Summary Health check
// @Description Check server health and connectivity to Redis and ChromaDB
// @Tags general
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	deps := map[string]string{
		"documents": "ok",
		"vectors":   "ok",
		"jobs":      "ok",
	}
	healthy := true

	if err := h.docRepo.Ping(ctx); err != nil {
		deps["documents"] = err.Error()
		healthy = false
	}
	if err := h.vectorRepo.Ping(ctx); err != nil {
		deps["vectors"] = err.Error()
		healthy = false
	}
	if err := h.jobRepo.Ping(ctx); err != nil {
		deps["jobs"] = err.Error()
		healthy = false
	}

	status := http.StatusOK
	resp := HealthResponse{Status: "healthy", Dependencies: deps}
	if !healthy {
		status = http.StatusServiceUnavailable
		resp.Status = "degraded"
		h.logger.Printf("Health check degraded: %v", deps)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}
