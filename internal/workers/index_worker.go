package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"docqa/internal/repositories"
)

// DocumentIndexer runs the chunk-embed-store pipeline for one document
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, documentID string) (int, error)
}

// IndexWorker drains the indexing queue and runs the indexing pipeline for
// each dequeued document
type IndexWorker struct {
	*BaseWorker
	jobRepo repositories.JobRepository
	indexer DocumentIndexer
	logger  *log.Logger
}

// NewIndexWorker creates a new index worker
func NewIndexWorker(config WorkerConfig, jobRepo repositories.JobRepository, indexer DocumentIndexer, logger *log.Logger) *IndexWorker {
	return &IndexWorker{
		BaseWorker: NewBaseWorker(config),
		jobRepo:    jobRepo,
		indexer:    indexer,
		logger:     logger,
	}
}

// Start begins processing indexing jobs
func (w *IndexWorker) Start(ctx context.Context) error {
	if w.IsRunning() {
		return NewWorkerError(w.Name(), "start", nil, "worker already running")
	}

	w.setRunning(true)
	w.logger.Printf("Starting index worker: %s", w.Name())

	for i := 0; i < w.config.Concurrency; i++ {
		go w.processJobs(ctx, i)
	}

	return nil
}

// Stop gracefully shuts down the worker
func (w *IndexWorker) Stop(ctx context.Context) error {
	if !w.IsRunning() {
		return nil
	}

	w.logger.Printf("Stopping index worker: %s", w.Name())
	w.setRunning(false)
	return nil
}

// processJobs polls the queue until the context is cancelled or the worker
// is stopped
func (w *IndexWorker) processJobs(ctx context.Context, workerID int) {
	workerName := fmt.Sprintf("%s-goroutine-%d", w.Name(), workerID)
	w.logger.Printf("Worker goroutine started: %s", workerName)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Printf("Worker goroutine stopping: %s", workerName)
			return

		case <-ticker.C:
			if !w.IsRunning() {
				return
			}

			job, err := w.jobRepo.Dequeue(ctx)
			if errors.Is(err, repositories.ErrNoJobs) {
				continue
			}
			if err != nil {
				w.logger.Printf("Failed to dequeue job: %v", err)
				continue
			}

			w.processJob(ctx, job)
		}
	}
}

// processJob runs the indexing pipeline for a single job
func (w *IndexWorker) processJob(ctx context.Context, job *repositories.IndexJob) {
	startTime := time.Now()
	w.logger.Printf("Processing index job %s for document %s (attempt %d/%d)", job.ID, job.DocumentID, job.RetryCount+1, job.MaxRetries+1)

	if err := w.jobRepo.UpdateStatus(ctx, job.ID, repositories.JobStatusProcessing, ""); err != nil {
		w.logger.Printf("Failed to mark job %s processing: %v", job.ID, err)
	}

	var chunkCount int
	var err error
	if w.config.EnableRecovery {
		chunkCount, err = w.indexWithRecovery(ctx, job.DocumentID)
	} else {
		chunkCount, err = w.indexer.IndexDocument(ctx, job.DocumentID)
	}

	if err != nil {
		w.handleJobFailure(ctx, job, err, startTime)
		return
	}

	w.recordJob(startTime, true)
	if err := w.jobRepo.UpdateStatus(ctx, job.ID, repositories.JobStatusCompleted, ""); err != nil {
		w.logger.Printf("Failed to mark job %s completed: %v", job.ID, err)
	}
	w.logger.Printf("Index job %s completed: %d chunks stored (duration: %v)", job.ID, chunkCount, time.Since(startTime))
}

// indexWithRecovery wraps indexing with panic recovery
func (w *IndexWorker) indexWithRecovery(ctx context.Context, documentID string) (chunkCount int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &WorkerPanicError{Panic: r}
			w.logger.Printf("Panic while indexing document %s: %v", documentID, r)
		}
	}()
	return w.indexer.IndexDocument(ctx, documentID)
}

// handleJobFailure re-queues a failed job while it has retry budget left,
// otherwise marks it permanently failed
func (w *IndexWorker) handleJobFailure(ctx context.Context, job *repositories.IndexJob, jobErr error, startTime time.Time) {
	w.recordJob(startTime, false)

	if job.CanRetry() {
		w.logger.Printf("Index job %s failed, will retry (%d/%d): %v", job.ID, job.RetryCount+1, job.MaxRetries, jobErr)

		time.Sleep(w.config.RetryDelay)
		// pending with an error message increments the retry count and
		// pushes the job back onto the queue
		if err := w.jobRepo.UpdateStatus(ctx, job.ID, repositories.JobStatusPending, jobErr.Error()); err != nil {
			w.logger.Printf("Failed to re-queue job %s: %v", job.ID, err)
		}
		return
	}

	w.logger.Printf("Index job %s failed permanently after %d retries: %v", job.ID, job.MaxRetries, jobErr)
	if err := w.jobRepo.UpdateStatus(ctx, job.ID, repositories.JobStatusFailed, jobErr.Error()); err != nil {
		w.logger.Printf("Failed to mark job %s failed: %v", job.ID, err)
	}
}
