package repositories

import (
	"context"
	"fmt"
	"time"
)

// Job status constants
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// IndexJob is a queued request to index a document's chunks into the vector store
type IndexJob struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	MaxRetries int       `json:"max_retries"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CanRetry reports whether the job has retry budget left
func (j *IndexJob) CanRetry() bool {
	return j.RetryCount < j.MaxRetries
}

// JobRepository manages the indexing job queue
type JobRepository interface {
	Enqueue(ctx context.Context, job *IndexJob) error
	Dequeue(ctx context.Context) (*IndexJob, error)
	UpdateStatus(ctx context.Context, jobID, status, errMsg string) error
	Get(ctx context.Context, jobID string) (*IndexJob, error)
	Ping(ctx context.Context) error
}

// ErrNoJobs is returned by Dequeue when the queue is empty
var ErrNoJobs = fmt.Errorf("no jobs available")

// JobRepositoryError wraps job queue failures
type JobRepositoryError struct {
	Operation string
	JobID     string
	Err       error
}

func (e *JobRepositoryError) Error() string {
	if e.JobID != "" {
		return fmt.Sprintf("job repository %s failed for %s: %v", e.Operation, e.JobID, e.Err)
	}
	return fmt.Sprintf("job repository %s failed: %v", e.Operation, e.Err)
}

func (e *JobRepositoryError) Unwrap() error {
	return e.Err
}

// NewJobRepositoryError creates a new job repository error
func NewJobRepositoryError(operation, jobID string, err error) *JobRepositoryError {
	return &JobRepositoryError{
		Operation: operation,
		JobID:     jobID,
		Err:       err,
	}
}
