package models

import (
	"time"

	"github.com/google/uuid"
)

// Document represents an ingested document whose pages have been extracted
type Document struct {
	ID        uuid.UUID              `json:"id"`
	Filename  string                 `json:"filename"`
	Title     string                 `json:"title,omitempty"`
	PageCount int                    `json:"page_count"`
	Indexed   bool                   `json:"indexed"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// NewDocument creates a document record with a fresh ID
func NewDocument(filename, title string, pageCount int) *Document {
	return &Document{
		ID:        uuid.New(),
		Filename:  filename,
		Title:     title,
		PageCount: pageCount,
		CreatedAt: time.Now().UTC(),
	}
}

// Validate checks if the document is valid
func (d *Document) Validate() error {
	if d.ID == uuid.Nil {
		return &ValidationError{Field: "id", Message: "document ID is required"}
	}
	if d.Filename == "" {
		return &ValidationError{Field: "filename", Message: "filename is required"}
	}
	if d.PageCount < 0 {
		return &ValidationError{Field: "page_count", Message: "page count cannot be negative"}
	}
	return nil
}

// PageText is the extracted text of a single page. Produced by the
// extraction collaborator; immutable input to chunking.
type PageText struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
}

// FigureRecord is a structured figure/chart/table record produced by the
// extraction collaborator. Used to synthesize chunks for visual questions.
type FigureRecord struct {
	ID          string                 `json:"id"`
	DocumentID  string                 `json:"document_id"`
	PageNumber  int                    `json:"page_number"`
	FigureType  string                 `json:"figure_type"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// ValidationError represents a field-level validation failure
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
