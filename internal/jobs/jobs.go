// Package jobs defines the asynchronous statement-parsing job and the
// queue abstractions the worker consumes it through.
package jobs

import (
	"context"
	"time"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// ParseStatementJob asks the worker to fetch a staged upload from GCS,
// run it through the ingestion pipeline and record the outcome.
type ParseStatementJob struct {
	JobID string `json:"job_id"`

	UserID     int64  `json:"user_id"`
	DocumentID string `json:"document_id"`
	GCSURI     string `json:"gcs_uri"`
	Filename   string `json:"filename"`
	MIMEType   string `json:"mime_type"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// Publisher enqueues jobs. Implementations may be in-memory or a real
// broker; single-instance deployments use the inmemory queue.
type Publisher interface {
	PublishParseStatement(ctx context.Context, job *ParseStatementJob) error
	Close() error
}

// Handler processes one job. A returned error requeues the job until
// MaxRetries is exhausted.
type Handler func(ctx context.Context, job *ParseStatementJob) error

// Consumer drains the queue with a Handler.
type Consumer interface {
	Start(ctx context.Context, handler Handler) error

	// Stop waits for in-flight jobs to finish, bounded by ctx.
	Stop(ctx context.Context) error
}

// JobStore tracks job state so upload status can be reported back to
// the user.
type JobStore interface {
	SaveJob(ctx context.Context, job *ParseStatementJob) error
	GetJob(ctx context.Context, jobID string) (*ParseStatementJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ParseStatementJob, error)
}

// JobFilter narrows ListJobs results.
type JobFilter struct {
	UserID     int64
	DocumentID string
	Status     JobStatus
	Limit      int
	Offset     int
}
