package repositories

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"docqa/internal/db"
)

// Redis key layout:
//   index:queue     -> list of job IDs awaiting processing
//   index:job:{id}  -> JSON job record
const (
	jobQueueKey  = "index:queue"
	jobKeyPrefix = "index:job:"
)

// RedisJobRepository implements JobRepository backed by a Redis list queue
type RedisJobRepository struct {
	client *db.RedisClient
	logger *log.Logger
}

// NewRedisJobRepository creates a new Redis-backed job repository
func NewRedisJobRepository(client *db.RedisClient, logger *log.Logger) JobRepository {
	return &RedisJobRepository{
		client: client,
		logger: logger,
	}
}

func jobKey(jobID string) string {
	return jobKeyPrefix + jobID
}

// Enqueue stores the job record and pushes its ID onto the queue
func (r *RedisJobRepository) Enqueue(ctx context.Context, job *IndexJob) error {
	job.Status = JobStatusPending
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt

	data, err := json.Marshal(job)
	if err != nil {
		return NewJobRepositoryError("enqueue", job.ID, err)
	}

	rdb := r.client.GetClient()
	pipe := rdb.TxPipeline()
	pipe.Set(ctx, jobKey(job.ID), data, 0)
	pipe.RPush(ctx, jobQueueKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return NewJobRepositoryError("enqueue", job.ID, err)
	}

	r.logger.Printf("Enqueued index job %s for document %s", job.ID, job.DocumentID)
	return nil
}

// Dequeue pops the next job ID and returns its record, or ErrNoJobs when empty
func (r *RedisJobRepository) Dequeue(ctx context.Context) (*IndexJob, error) {
	jobID, err := r.client.GetClient().LPop(ctx, jobQueueKey).Result()
	if err == redis.Nil {
		return nil, ErrNoJobs
	}
	if err != nil {
		return nil, NewJobRepositoryError("dequeue", "", err)
	}

	job, err := r.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// UpdateStatus updates a job's status and error message
func (r *RedisJobRepository) UpdateStatus(ctx context.Context, jobID, status, errMsg string) error {
	job, err := r.Get(ctx, jobID)
	if err != nil {
		return err
	}

	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	if status == JobStatusPending && errMsg != "" {
		job.RetryCount++
	}

	data, err := json.Marshal(job)
	if err != nil {
		return NewJobRepositoryError("update_status", jobID, err)
	}

	rdb := r.client.GetClient()
	if err := rdb.Set(ctx, jobKey(jobID), data, 0).Err(); err != nil {
		return NewJobRepositoryError("update_status", jobID, err)
	}

	// re-queue retried jobs
	if status == JobStatusPending && errMsg != "" {
		if err := rdb.RPush(ctx, jobQueueKey, jobID).Err(); err != nil {
			return NewJobRepositoryError("update_status", jobID, err)
		}
	}
	return nil
}

// Get retrieves a job record by ID
func (r *RedisJobRepository) Get(ctx context.Context, jobID string) (*IndexJob, error) {
	data, err := r.client.GetClient().Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, NewJobRepositoryError("get", jobID, redis.Nil)
	}
	if err != nil {
		return nil, NewJobRepositoryError("get", jobID, err)
	}

	var job IndexJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, NewJobRepositoryError("get", jobID, err)
	}
	return &job, nil
}

// Ping checks Redis connectivity
func (r *RedisJobRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
