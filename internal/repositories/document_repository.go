package repositories

import (
	"context"
	"fmt"

	"docqa/internal/models"
)

// DocumentRepository persists document metadata, extracted page text, and figures
type DocumentRepository interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, documentID string) (*models.Document, error)
	GetDocuments(ctx context.Context, documentIDs []string) ([]*models.Document, error)
	ListDocuments(ctx context.Context) ([]*models.Document, error)
	SetIndexed(ctx context.Context, documentID string, indexed bool) error

	StorePages(ctx context.Context, documentID string, pages []*models.PageText) error
	GetPages(ctx context.Context, documentID string) ([]*models.PageText, error)

	StoreFigures(ctx context.Context, documentID string, figures []*models.FigureRecord) error
	GetFigures(ctx context.Context, documentID string) ([]*models.FigureRecord, error)
	GetFiguresForDocuments(ctx context.Context, documentIDs []string) ([]*models.FigureRecord, error)

	Ping(ctx context.Context) error
	Close() error
}

// DocumentRepositoryError wraps document storage failures with operation context
type DocumentRepositoryError struct {
	Operation  string
	DocumentID string
	Err        error
}

func (e *DocumentRepositoryError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("document repository %s failed for %s: %v", e.Operation, e.DocumentID, e.Err)
	}
	return fmt.Sprintf("document repository %s failed: %v", e.Operation, e.Err)
}

func (e *DocumentRepositoryError) Unwrap() error {
	return e.Err
}

// NewDocumentRepositoryError creates a new document repository error
func NewDocumentRepositoryError(operation, documentID string, err error) *DocumentRepositoryError {
	return &DocumentRepositoryError{
		Operation:  operation,
		DocumentID: documentID,
		Err:        err,
	}
}

// ErrDocumentNotFound is returned when a document ID has no stored record
var ErrDocumentNotFound = fmt.Errorf("document not found")
