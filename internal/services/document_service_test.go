package services

import (
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"docqa/internal/models"
	"docqa/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// ============================================================================
// Mocks
// ============================================================================

type MockJobRepository struct {
	mock.Mock
}

func (m *MockJobRepository) Enqueue(ctx context.Context, job *repositories.IndexJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobRepository) Dequeue(ctx context.Context) (*repositories.IndexJob, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.IndexJob), args.Error(1)
}

func (m *MockJobRepository) UpdateStatus(ctx context.Context, jobID, status, errMsg string) error {
	args := m.Called(ctx, jobID, status, errMsg)
	return args.Error(0)
}

func (m *MockJobRepository) Get(ctx context.Context, jobID string) (*repositories.IndexJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repositories.IndexJob), args.Error(1)
}

func (m *MockJobRepository) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// ============================================================================
// Test Setup
// ============================================================================

func setupTestDocumentService(t *testing.T) (*DocumentService, *MockDocumentRepository, *MockJobRepository) {
	mockDocs := new(MockDocumentRepository)
	mockJobs := new(MockJobRepository)
	logger := log.New(os.Stdout, "[TEST] ", log.LstdFlags)

	service := NewDocumentService(mockDocs, mockJobs, logger)
	return service, mockDocs, mockJobs
}

func registerRequest() *RegisterDocumentRequest {
	return &RegisterDocumentRequest{
		Filename: "report.pdf",
		Title:    "Annual Report",
		Pages: []*models.PageText{
			{PageNumber: 1, Text: "Revenue grew during the year."},
			{PageNumber: 2, Text: "Costs were flat."},
		},
	}
}

// ============================================================================
// Registration Tests
// ============================================================================

func TestRegisterDocument_Success(t *testing.T) {
	service, mockDocs, mockJobs := setupTestDocumentService(t)
	req := registerRequest()

	mockDocs.On("CreateDocument", mock.Anything, mock.MatchedBy(func(doc *models.Document) bool {
		return doc.Filename == "report.pdf" && doc.PageCount == 2
	})).Return(nil)
	mockDocs.On("StorePages", mock.Anything, mock.Anything, req.Pages).Return(nil)
	mockDocs.On("GetDocument", mock.Anything, mock.Anything).Return(makeTestDocument("report.pdf"), nil)
	mockJobs.On("Enqueue", mock.Anything, mock.MatchedBy(func(job *repositories.IndexJob) bool {
		return job.DocumentID != "" && job.MaxRetries == IndexJobMaxRetries
	})).Return(nil)

	resp, err := service.RegisterDocument(context.Background(), req)

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.DocumentID)
	assert.NotEmpty(t, resp.JobID)
	assert.Equal(t, "report.pdf", resp.Filename)
	assert.Equal(t, 2, resp.PageCount)
	assert.Equal(t, repositories.JobStatusPending, resp.Status)
	mockDocs.AssertExpectations(t)
	mockJobs.AssertExpectations(t)
	mockDocs.AssertNotCalled(t, "StoreFigures", mock.Anything, mock.Anything, mock.Anything)
}

func TestRegisterDocument_WithFigures(t *testing.T) {
	service, mockDocs, mockJobs := setupTestDocumentService(t)
	req := registerRequest()
	req.Figures = []*models.FigureRecord{
		{PageNumber: 2, FigureType: "bar_chart", Description: "Revenue by segment"},
	}

	mockDocs.On("CreateDocument", mock.Anything, mock.Anything).Return(nil)
	mockDocs.On("StorePages", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	mockDocs.On("StoreFigures", mock.Anything, mock.Anything, mock.MatchedBy(func(figures []*models.FigureRecord) bool {
		return len(figures) == 1 && figures[0].ID != "" && figures[0].DocumentID != ""
	})).Return(nil)
	mockDocs.On("GetDocument", mock.Anything, mock.Anything).Return(makeTestDocument("report.pdf"), nil)
	mockJobs.On("Enqueue", mock.Anything, mock.Anything).Return(nil)

	resp, err := service.RegisterDocument(context.Background(), req)

	assert.NoError(t, err)
	assert.NotEmpty(t, resp.JobID)
	mockDocs.AssertExpectations(t)
}

func TestRegisterDocument_Validation(t *testing.T) {
	service, _, _ := setupTestDocumentService(t)

	tests := []struct {
		name string
		req  *RegisterDocumentRequest
	}{
		{
			name: "missing filename",
			req: &RegisterDocumentRequest{
				Pages: []*models.PageText{{PageNumber: 1, Text: "text"}},
			},
		},
		{
			name: "no pages",
			req:  &RegisterDocumentRequest{Filename: "report.pdf"},
		},
		{
			name: "zero page number",
			req: &RegisterDocumentRequest{
				Filename: "report.pdf",
				Pages:    []*models.PageText{{PageNumber: 0, Text: "text"}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.RegisterDocument(context.Background(), tt.req)
			assert.Error(t, err)

			var validationErr *models.ValidationError
			assert.True(t, errors.As(err, &validationErr))
		})
	}
}

func TestRegisterDocument_StorageFailure(t *testing.T) {
	service, mockDocs, mockJobs := setupTestDocumentService(t)

	mockDocs.On("CreateDocument", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	_, err := service.RegisterDocument(context.Background(), registerRequest())

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	mockJobs.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

// ============================================================================
// Index Job Tests
// ============================================================================

func TestEnqueueIndexJob_UnknownDocument(t *testing.T) {
	service, mockDocs, mockJobs := setupTestDocumentService(t)

	mockDocs.On("GetDocument", mock.Anything, "missing-doc").Return(nil, repositories.ErrDocumentNotFound)

	_, err := service.EnqueueIndexJob(context.Background(), "missing-doc")

	assert.Error(t, err)
	assert.ErrorIs(t, err, repositories.ErrDocumentNotFound)
	mockJobs.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

// ============================================================================
// Readiness Validation Tests
// ============================================================================

func TestValidateDocumentsReady_AllIndexed(t *testing.T) {
	service, mockDocs, _ := setupTestDocumentService(t)

	docA := makeTestDocument("a.pdf")
	docA.Indexed = true
	docB := makeTestDocument("b.pdf")
	docB.Indexed = true
	ids := []string{docA.ID.String(), docB.ID.String()}

	mockDocs.On("GetDocuments", mock.Anything, ids).Return([]*models.Document{docA, docB}, nil)

	byID, err := service.ValidateDocumentsReady(context.Background(), ids)

	assert.NoError(t, err)
	assert.Len(t, byID, 2)
	assert.Equal(t, docA, byID[docA.ID.String()])
}

func TestValidateDocumentsReady_NotIndexed(t *testing.T) {
	service, mockDocs, _ := setupTestDocumentService(t)

	doc := makeTestDocument("a.pdf")
	ids := []string{doc.ID.String()}

	mockDocs.On("GetDocuments", mock.Anything, ids).Return([]*models.Document{doc}, nil)

	_, err := service.ValidateDocumentsReady(context.Background(), ids)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not indexed")
}

func TestValidateDocumentsReady_MissingDocument(t *testing.T) {
	service, mockDocs, _ := setupTestDocumentService(t)

	mockDocs.On("GetDocuments", mock.Anything, []string{"missing"}).Return(nil, repositories.ErrDocumentNotFound)

	_, err := service.ValidateDocumentsReady(context.Background(), []string{"missing"})

	assert.ErrorIs(t, err, repositories.ErrDocumentNotFound)
}

func TestValidateDocumentsReady_EmptyInput(t *testing.T) {
	service, mockDocs, _ := setupTestDocumentService(t)

	_, err := service.ValidateDocumentsReady(context.Background(), nil)

	assert.Error(t, err)
	mockDocs.AssertNotCalled(t, "GetDocuments", mock.Anything, mock.Anything)
}
