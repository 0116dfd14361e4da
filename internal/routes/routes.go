package routes

import (
	"net/http"

	"docqa/internal/handlers"

	"github.com/gorilla/mux"
)

// Handlers collects the handlers the router wires up
type Handlers struct {
	Health *handlers.HealthHandler
	Doc    *handlers.DocumentHandler
	Search *handlers.SearchHandler
	QA     *handlers.QAHandler
}

// RegisterRoutes sets up all application routes
func RegisterRoutes(router *mux.Router, h *Handlers) {
	// Health endpoints
	router.HandleFunc("/health", h.Health.Health).Methods(http.MethodGet)
	router.HandleFunc("/", handlers.HomeHandler).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()

	// Document registration and indexing
	api.HandleFunc("/documents", h.Doc.RegisterDocument).Methods(http.MethodPost)
	api.HandleFunc("/documents", h.Doc.ListDocuments).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}", h.Doc.GetDocument).Methods(http.MethodGet)
	api.HandleFunc("/documents/{id}/index", h.Doc.ReindexDocument).Methods(http.MethodPost)
	api.HandleFunc("/jobs/{id}", h.Doc.GetIndexJob).Methods(http.MethodGet)

	// Question answering
	api.HandleFunc("/documents/{id}/ask", h.QA.AskDocument).Methods(http.MethodPost)
	api.HandleFunc("/ask", h.QA.AskMultiDoc).Methods(http.MethodPost)

	// Semantic search
	api.HandleFunc("/search", h.Search.Search).Methods(http.MethodPost)
	api.HandleFunc("/search/cache/stats", h.Search.GetCacheStats).Methods(http.MethodGet)
	api.HandleFunc("/search/cache", h.Search.ClearCache).Methods(http.MethodDelete)
}
