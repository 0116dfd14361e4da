package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"docqa/internal/services"
)

// SearchHandler handles HTTP requests for semantic search
type SearchHandler struct {
	searchService *services.SearchService
	logger        *log.Logger
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(searchService *services.SearchService, logger *log.Logger) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		logger:        logger,
	}
}

// Search handles semantic search requests
// @Summary Semantic search
// @Description Search indexed document chunks by semantic similarity
// @Tags search
// @Accept json
// @Produce json
// @Param request body services.SearchRequest true "Search query"
// @Success 200 {object} services.SearchResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/search [post]
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req services.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	if req.Query == "" {
		h.sendError(w, http.StatusBadRequest, "Query is required")
		return
	}

	h.logger.Printf("Search request: %q (top_k=%d, docs=%d)", req.Query, req.TopK, len(req.DocumentIDs))

	resp, err := h.searchService.Search(r.Context(), &req)
	if err != nil {
		h.logger.Printf("Search failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Search failed: %v", err))
		return
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// GetCacheStats handles requests for search cache statistics
// @Summary Search cache stats
// @Description Get hit/miss statistics for the search result cache
// @Tags search
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/search/cache/stats [get]
func (h *SearchHandler) GetCacheStats(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, h.searchService.GetCacheStats())
}

// ClearCache handles requests to clear the search cache
// @Summary Clear search cache
// @Description Drop all cached search results
// @Tags search
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/search/cache [delete]
func (h *SearchHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.searchService.ClearCache()
	h.sendJSON(w, http.StatusOK, SuccessResponse{
		Success: true,
		Message: "Search cache cleared",
	})
}

func (h *SearchHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *SearchHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}
