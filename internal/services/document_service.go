package services

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"docqa/internal/models"
	"docqa/internal/repositories"
)

// IndexJobMaxRetries bounds re-queues of a failed indexing job
const IndexJobMaxRetries = 3

// DocumentService manages document registration and the indexing queue.
// Page text and figure records arrive pre-extracted; this service persists
// them and hands the document to the background index worker.
type DocumentService struct {
	docRepo repositories.DocumentRepository
	jobRepo repositories.JobRepository
	logger  *log.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(
	docRepo repositories.DocumentRepository,
	jobRepo repositories.JobRepository,
	logger *log.Logger,
) *DocumentService {
	return &DocumentService{
		docRepo: docRepo,
		jobRepo: jobRepo,
		logger:  logger,
	}
}

// RegisterDocumentRequest carries a document with its extracted pages and
// optional figure records
type RegisterDocumentRequest struct {
	Filename string                 `json:"filename"`
	Title    string                 `json:"title,omitempty"`
	Pages    []*models.PageText     `json:"pages"`
	Figures  []*models.FigureRecord `json:"figures,omitempty"`
}

// Validate checks the registration request
func (r *RegisterDocumentRequest) Validate() error {
	if r.Filename == "" {
		return &models.ValidationError{Field: "filename", Message: "filename is required"}
	}
	if len(r.Pages) == 0 {
		return &models.ValidationError{Field: "pages", Message: "at least one page is required"}
	}
	for _, page := range r.Pages {
		if page.PageNumber < 1 {
			return &models.ValidationError{Field: "pages", Message: "page numbers start at 1"}
		}
	}
	return nil
}

// RegisterDocumentResponse reports the stored document and its queued
// indexing job
type RegisterDocumentResponse struct {
	DocumentID string `json:"document_id"`
	JobID      string `json:"job_id"`
	Filename   string `json:"filename"`
	PageCount  int    `json:"page_count"`
	Status     string `json:"status"`
}

// RegisterDocument stores the document record, its pages, and its figures,
// then enqueues an indexing job for the background worker
func (s *DocumentService) RegisterDocument(ctx context.Context, req *RegisterDocumentRequest) (*RegisterDocumentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	doc := models.NewDocument(req.Filename, req.Title, len(req.Pages))
	documentID := doc.ID.String()

	if err := s.docRepo.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	if err := s.docRepo.StorePages(ctx, documentID, req.Pages); err != nil {
		return nil, fmt.Errorf("failed to store pages: %w", err)
	}

	if len(req.Figures) > 0 {
		for _, figure := range req.Figures {
			figure.ID = uuid.New().String()
			figure.DocumentID = documentID
		}
		if err := s.docRepo.StoreFigures(ctx, documentID, req.Figures); err != nil {
			return nil, fmt.Errorf("failed to store figures: %w", err)
		}
	}

	jobID, err := s.EnqueueIndexJob(ctx, documentID)
	if err != nil {
		return nil, err
	}

	s.logger.Printf("Registered document %s (%s): %d pages, %d figures, index job %s",
		documentID, req.Filename, len(req.Pages), len(req.Figures), jobID)

	return &RegisterDocumentResponse{
		DocumentID: documentID,
		JobID:      jobID,
		Filename:   req.Filename,
		PageCount:  len(req.Pages),
		Status:     repositories.JobStatusPending,
	}, nil
}

// EnqueueIndexJob queues an indexing job for an already registered document.
// Used on registration and for explicit re-index requests.
func (s *DocumentService) EnqueueIndexJob(ctx context.Context, documentID string) (string, error) {
	if _, err := s.docRepo.GetDocument(ctx, documentID); err != nil {
		return "", fmt.Errorf("failed to load document: %w", err)
	}

	job := &repositories.IndexJob{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		MaxRetries: IndexJobMaxRetries,
	}
	if err := s.jobRepo.Enqueue(ctx, job); err != nil {
		return "", fmt.Errorf("failed to enqueue index job: %w", err)
	}

	return job.ID, nil
}

// GetDocument retrieves a document record
func (s *DocumentService) GetDocument(ctx context.Context, documentID string) (*models.Document, error) {
	return s.docRepo.GetDocument(ctx, documentID)
}

// ListDocuments lists all document records
func (s *DocumentService) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	return s.docRepo.ListDocuments(ctx)
}

// GetIndexJob retrieves an indexing job record
func (s *DocumentService) GetIndexJob(ctx context.Context, jobID string) (*repositories.IndexJob, error) {
	return s.jobRepo.Get(ctx, jobID)
}

// ValidateDocumentsReady checks that every requested document exists and has
// been indexed. Returns the documents keyed by ID on success.
func (s *DocumentService) ValidateDocumentsReady(ctx context.Context, documentIDs []string) (map[string]*models.Document, error) {
	if len(documentIDs) == 0 {
		return nil, &models.ValidationError{Field: "document_ids", Message: "at least one document ID is required"}
	}

	docs, err := s.docRepo.GetDocuments(ctx, documentIDs)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Document, len(docs))
	for _, doc := range docs {
		byID[doc.ID.String()] = doc
	}

	for _, id := range documentIDs {
		doc, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", repositories.ErrDocumentNotFound, id)
		}
		if !doc.Indexed {
			return nil, &models.ValidationError{Field: "document_ids", Message: fmt.Sprintf("document %s is not indexed yet", id)}
		}
	}

	return byID, nil
}
