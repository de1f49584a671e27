// Package queue carries location queries between the gateway and workers.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/luxfi/geofence/detect"
)

// Common errors.
var (
	ErrQueueEmpty  = errors.New("queue is empty")
	ErrJobNotFound = errors.New("job not found")
	ErrClosed      = errors.New("queue closed")
)

// JobStatus represents the state of a job.
type JobStatus uint8

const (
	StatusPending JobStatus = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

var statusNames = [...]string{"pending", "processing", "completed", "failed"}

func (s JobStatus) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("JobStatus(%d)", uint8(s))
}

// Job is one membership query and, once processed, its report.
type Job struct {
	ID        string         `json:"id"`
	Lat       float64        `json:"latitude"`
	Lon       float64        `json:"longitude"`
	Status    JobStatus      `json:"status"`
	Report    *detect.Report `json:"report,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewJob creates a pending job with a random ID
func NewJob(lat, lon float64) *Job {
	return &Job{ID: uuid.NewString(), Lat: lat, Lon: lon}
}

// Queue defines the interface for job queue operations.
type Queue interface {
	// Push adds a job to the queue.
	Push(ctx context.Context, job *Job) error
	// Pop blocks until a job is available and removes it from the queue.
	Pop(ctx context.Context) (*Job, error)
	// Update stores the job state.
	Update(ctx context.Context, job *Job) error
	// Get retrieves a job by ID.
	Get(ctx context.Context, id string) (*Job, error)
	// Close closes the queue connection.
	Close() error
}

// JobTTL is how long a job record outlives its last update
const JobTTL = 24 * time.Hour

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisQueue is a reliable Redis list queue. Pop moves an ID from the
// pending list to a processing list; a terminal Update removes it again, so
// IDs left in processing belong to workers that died mid-job.
type RedisQueue struct {
	client     *redis.Client
	pending    string
	processing string
	prefix     string
}

// NewRedisQueue connects to Redis and checks the connection.
func NewRedisQueue(cfg RedisConfig, name string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	base := "geofence:" + name
	return &RedisQueue{
		client:     client,
		pending:    base + ":pending",
		processing: base + ":processing",
		prefix:     "geofence:job:",
	}, nil
}

func (q *RedisQueue) key(id string) string {
	return q.prefix + id
}

func (q *RedisQueue) Push(ctx context.Context, job *Job) error {
	job.Status = StatusPending
	job.CreatedAt = time.Now().UTC()
	job.UpdatedAt = job.CreatedAt

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.key(job.ID), data, JobTTL)
		pipe.LPush(ctx, q.pending, job.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context) (*Job, error) {
	for {
		id, err := q.client.BLMove(ctx, q.pending, q.processing, "RIGHT", "LEFT", 0).Result()
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, err
		case errors.Is(err, redis.ErrClosed):
			return nil, ErrClosed
		case errors.Is(err, redis.Nil):
			return nil, ErrQueueEmpty
		case err != nil:
			return nil, fmt.Errorf("dequeue: %w", err)
		}

		job, err := q.Get(ctx, id)
		if errors.Is(err, ErrJobNotFound) {
			// record expired while queued
			q.client.LRem(ctx, q.processing, 1, id)
			continue
		}
		return job, err
	}
}

func (q *RedisQueue) Update(ctx context.Context, job *Job) error {
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	done := job.Status == StatusCompleted || job.Status == StatusFailed
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, q.key(job.ID), data, JobTTL)
		if done {
			pipe.LRem(ctx, q.processing, 1, job.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	return nil
}

func (q *RedisQueue) Get(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, q.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	job := new(Job)
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return job, nil
}

// Stalled returns the IDs popped but never finished
func (q *RedisQueue) Stalled(ctx context.Context) ([]string, error) {
	return q.client.LRange(ctx, q.processing, 0, -1).Result()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
