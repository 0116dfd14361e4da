package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"docqa/internal/models"
	"docqa/internal/repositories"
	"docqa/internal/services"

	"github.com/gorilla/mux"
)

// DocumentHandler handles HTTP requests for document operations
type DocumentHandler struct {
	docService *services.DocumentService
	logger     *log.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(docService *services.DocumentService, logger *log.Logger) *DocumentHandler {
	return &DocumentHandler{
		docService: docService,
		logger:     logger,
	}
}

// RegisterDocument handles document registration requests
// @Summary Register a document
// @Description Register a document with its extracted page text and figures, and enqueue it for indexing
// @Tags documents
// @Accept json
// @Produce json
// @Param request body services.RegisterDocumentRequest true "Document to register"
// @Success 200 {object} services.RegisterDocumentResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/documents [post]
func (h *DocumentHandler) RegisterDocument(w http.ResponseWriter, r *http.Request) {
	h.logger.Printf("Register document request from %s", r.RemoteAddr)

	var req services.RegisterDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Printf("Failed to decode request: %v", err)
		h.sendError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	resp, err := h.docService.RegisterDocument(r.Context(), &req)
	if err != nil {
		var validationErr *models.ValidationError
		if errors.As(err, &validationErr) {
			h.sendError(w, http.StatusBadRequest, validationErr.Error())
			return
		}
		h.logger.Printf("Failed to register document: %v", err)
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to register document: %v", err))
		return
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// ListDocuments handles requests to list all registered documents
// @Summary List documents
// @Description List all registered documents
// @Tags documents
// @Produce json
// @Success 200 {object} DocumentListResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/documents [get]
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.docService.ListDocuments(r.Context())
	if err != nil {
		h.logger.Printf("Failed to list documents: %v", err)
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list documents: %v", err))
		return
	}

	h.sendJSON(w, http.StatusOK, DocumentListResponse{
		Documents: docs,
		Count:     len(docs),
	})
}

// GetDocument handles requests to get a specific document
// @Summary Get document
// @Description Get document metadata by ID
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} models.Document
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/documents/{id} [get]
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["id"]

	doc, err := h.docService.GetDocument(r.Context(), documentID)
	if err != nil {
		h.logger.Printf("Failed to get document %s: %v", documentID, err)
		if errors.Is(err, repositories.ErrDocumentNotFound) {
			h.sendError(w, http.StatusNotFound, "Document not found")
		} else {
			h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to get document: %v", err))
		}
		return
	}

	h.sendJSON(w, http.StatusOK, doc)
}

// ReindexDocument handles requests to enqueue a fresh indexing job
// @Summary Re-index document
// @Description Enqueue a new background indexing job for an already registered document
// @Tags documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} IndexJobResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/documents/{id}/index [post]
func (h *DocumentHandler) ReindexDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["id"]

	h.logger.Printf("Re-index request for document %s", documentID)

	jobID, err := h.docService.EnqueueIndexJob(r.Context(), documentID)
	if err != nil {
		h.logger.Printf("Failed to enqueue index job for %s: %v", documentID, err)
		if errors.Is(err, repositories.ErrDocumentNotFound) {
			h.sendError(w, http.StatusNotFound, "Document not found")
		} else {
			h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to enqueue index job: %v", err))
		}
		return
	}

	h.sendJSON(w, http.StatusOK, IndexJobResponse{
		DocumentID: documentID,
		JobID:      jobID,
		Status:     repositories.JobStatusPending,
	})
}

// GetIndexJob handles requests to check indexing job status
// @Summary Get index job
// @Description Get the status of a background indexing job
// @Tags documents
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} repositories.IndexJob
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/jobs/{id} [get]
func (h *DocumentHandler) GetIndexJob(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	jobID := vars["id"]

	job, err := h.docService.GetIndexJob(r.Context(), jobID)
	if err != nil {
		h.logger.Printf("Failed to get index job %s: %v", jobID, err)
		h.sendError(w, http.StatusNotFound, "Index job not found")
		return
	}

	h.sendJSON(w, http.StatusOK, job)
}

func (h *DocumentHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *DocumentHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}

// Response types

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type DocumentListResponse struct {
	Documents []*models.Document `json:"documents"`
	Count     int                `json:"count"`
}

type IndexJobResponse struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
}
