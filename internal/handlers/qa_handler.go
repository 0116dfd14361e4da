package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"docqa/internal/models"
	"docqa/internal/repositories"
	"docqa/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// DefaultSingleDocTopK is the chunk count retrieved for a single-document
// question when the request does not specify top_k.
const DefaultSingleDocTopK = 8

// QAHandler handles HTTP requests for question answering
type QAHandler struct {
	docService *services.DocumentService
	retriever  *services.RetrieverService
	qaService  *services.QAService
	resolver   *services.ConversationResolver
	convRepo   repositories.ConversationRepository
	logger     *log.Logger
}

// NewQAHandler creates a new QA handler
func NewQAHandler(
	docService *services.DocumentService,
	retriever *services.RetrieverService,
	qaService *services.QAService,
	resolver *services.ConversationResolver,
	convRepo repositories.ConversationRepository,
	logger *log.Logger,
) *QAHandler {
	return &QAHandler{
		docService: docService,
		retriever:  retriever,
		qaService:  qaService,
		resolver:   resolver,
		convRepo:   convRepo,
		logger:     logger,
	}
}

// AskDocument handles single-document question requests
// @Summary Ask a question about one document
// @Description Answer a question using only the chunks of the given document
// @Tags qa
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param request body models.QuestionRequest true "Question"
// @Success 200 {object} models.QAResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/documents/{id}/ask [post]
func (h *QAHandler) AskDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	documentID := vars["id"]

	var req models.QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !h.validateDocuments(w, r, []string{documentID}) {
		return
	}

	topK := req.TopK
	if topK == 0 {
		topK = DefaultSingleDocTopK
	}

	h.logger.Printf("QA request for document %s: %q (top_k=%d)", documentID, req.Question, topK)

	retrieved, err := h.retriever.Retrieve(r.Context(), req.Question, documentID, topK)
	if err != nil {
		h.logger.Printf("Retrieval failed for document %s: %v", documentID, err)
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Retrieval failed: %v", err))
		return
	}

	chunks := make([]*models.ChunkContext, 0, len(retrieved))
	for _, rc := range retrieved {
		ctx := rc.Context
		chunks = append(chunks, &ctx)
	}

	result, err := h.qaService.AnswerQuestion(r.Context(), req.Question, chunks)
	if err != nil {
		h.handleQAError(w, err)
		return
	}
	if !result.Success {
		h.sendError(w, http.StatusInternalServerError, result.Error)
		return
	}

	h.sendJSON(w, http.StatusOK, result)
}

// AskMultiDoc handles multi-document conversational question requests
// @Summary Ask a question across documents
// @Description Answer a question over one or more documents, resolving follow-up phrasing against the conversation history
// @Tags qa
// @Accept json
// @Produce json
// @Param request body models.QuestionRequest true "Question with document IDs and optional conversation ID"
// @Success 200 {object} models.AnswerResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/ask [post]
func (h *QAHandler) AskMultiDoc(w http.ResponseWriter, r *http.Request) {
	var req models.QuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.DocumentIDs) == 0 {
		h.sendError(w, http.StatusBadRequest, "At least one document ID is required")
		return
	}

	if !h.validateDocuments(w, r, req.DocumentIDs) {
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	history, err := h.convRepo.GetMessages(r.Context(), conversationID)
	if err != nil {
		h.logger.Printf("Failed to load conversation %s, continuing without history: %v", conversationID, err)
		history = nil
	}

	convCtx := h.resolver.ResolveFollowup(req.Question, history)
	question := convCtx.RewrittenQuestion
	if convCtx.NeedsRewrite {
		h.logger.Printf("Resolved follow-up question to %q", question)
	}

	persisted := h.appendMessage(r.Context(), conversationID, &models.Message{
		Role:        "user",
		Content:     req.Question,
		DocumentIDs: req.DocumentIDs,
		CreatedAt:   time.Now().UTC(),
	})

	retrieval, err := h.retriever.RetrieveFromDocuments(r.Context(), question, req.DocumentIDs)
	if err != nil {
		h.logger.Printf("Multi-document retrieval failed: %v", err)
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Retrieval failed: %v", err))
		return
	}

	result, err := h.qaService.AnswerMultiDoc(r.Context(), question, retrieval)
	if err != nil {
		h.handleQAError(w, err)
		return
	}
	if !result.Success {
		h.sendError(w, http.StatusInternalServerError, result.Error)
		return
	}

	if persisted {
		persisted = h.appendMessage(r.Context(), conversationID, &models.Message{
			Role:        "assistant",
			Content:     result.Answer,
			CitedPages:  result.CitedPages,
			DocumentIDs: req.DocumentIDs,
			CreatedAt:   time.Now().UTC(),
		})
	}

	resp := models.AnswerResponse{
		Answer:                result.Answer,
		Confidence:            result.Confidence,
		Sources:               buildSourceInfo(result.Sources),
		CitedPages:            result.CitedPages,
		ConversationID:        conversationID,
		ConversationPersisted: persisted,
	}
	if convCtx.NeedsRewrite {
		resp.ResolvedQuestion = question
	}

	h.sendJSON(w, http.StatusOK, resp)
}

// validateDocuments checks that every requested document exists and is
// indexed, writing the error response itself when one is not.
func (h *QAHandler) validateDocuments(w http.ResponseWriter, r *http.Request, documentIDs []string) bool {
	_, err := h.docService.ValidateDocumentsReady(r.Context(), documentIDs)
	if err == nil {
		return true
	}

	if errors.Is(err, repositories.ErrDocumentNotFound) {
		h.sendError(w, http.StatusNotFound, err.Error())
		return false
	}
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		h.sendError(w, http.StatusBadRequest, validationErr.Error())
		return false
	}
	h.logger.Printf("Document validation failed: %v", err)
	h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to validate documents: %v", err))
	return false
}

// appendMessage persists one conversation message. Persistence failures are
// logged and reported through the return value rather than failing the request.
func (h *QAHandler) appendMessage(ctx context.Context, conversationID string, msg *models.Message) bool {
	if err := h.convRepo.AppendMessage(ctx, conversationID, msg); err != nil {
		h.logger.Printf("Failed to persist %s message for conversation %s: %v", msg.Role, conversationID, err)
		return false
	}
	return true
}

func (h *QAHandler) handleQAError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrQueueFull) {
		w.Header().Set("Retry-After", "15")
		h.sendError(w, http.StatusServiceUnavailable, "Server is busy, please retry shortly")
		return
	}
	h.logger.Printf("QA failed: %v", err)
	h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to answer question: %v", err))
}

func buildSourceInfo(sources []models.ChunkContext) []models.SourceInfo {
	out := make([]models.SourceInfo, 0, len(sources))
	for _, s := range sources {
		out = append(out, models.SourceInfo{
			ChunkID:      s.ChunkID,
			DocumentID:   s.DocumentID,
			DocumentName: s.DocumentName,
			PageStart:    s.PageStart,
			PageEnd:      s.PageEnd,
		})
	}
	return out
}

func (h *QAHandler) sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Printf("Failed to encode JSON: %v", err)
	}
}

func (h *QAHandler) sendError(w http.ResponseWriter, status int, message string) {
	h.sendJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Status:  status,
	})
}
