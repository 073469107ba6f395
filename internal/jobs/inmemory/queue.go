// Package inmemory is a channel-backed queue and job store for
// single-instance deployments and tests.
package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkuznetsov/finbot/internal/jobs"
)

const defaultMaxRetries = 3

// Queue distributes jobs over a buffered channel. Safe for concurrent
// use. State lives in memory only; a restart drops queued jobs.
type Queue struct {
	jobChan   chan *jobs.ParseStatementJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	closed    bool
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)

// NewQueue creates a queue. bufferSize bounds how many jobs can wait
// before publishing blocks; workers bounds handler concurrency.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		jobChan:   make(chan *jobs.ParseStatementJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
	}
}

func (q *Queue) PublishParseStatement(ctx context.Context, job *jobs.ParseStatementJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	if job.MaxRetries == 0 {
		job.MaxRetries = defaultMaxRetries
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("save job: %w", err)
		}
	}

	select {
	case q.jobChan <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, handler jobs.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *jobs.ParseStatementJob, handler jobs.Handler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	q.saveJob(ctx, job)

	err := handler(ctx, job)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		q.saveJob(ctx, job)
		return
	}

	job.Error = err.Error()
	if job.RetryCount >= job.MaxRetries {
		job.Status = jobs.JobStatusFailed
		q.saveJob(ctx, job)
		return
	}

	job.RetryCount++
	job.Status = jobs.JobStatusRetrying
	q.saveJob(ctx, job)

	// Linear backoff, re-enqueued off the worker goroutine.
	backoff := time.Duration(job.RetryCount) * time.Second
	time.AfterFunc(backoff, func() {
		job.Status = jobs.JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		_ = q.PublishParseStatement(ctx, job)
	})
}

func (q *Queue) saveJob(ctx context.Context, job *jobs.ParseStatementJob) {
	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}
}

// Stop closes the queue and waits for in-flight jobs, bounded by ctx.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) Close() error {
	return q.Stop(context.Background())
}
