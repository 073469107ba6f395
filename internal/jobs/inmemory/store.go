package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/mkuznetsov/finbot/internal/jobs"
)

// Store keeps job state in a map. Jobs are copied on save and load so
// callers can't mutate shared state.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*jobs.ParseStatementJob
}

var _ jobs.JobStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{jobs: make(map[string]*jobs.ParseStatementJob)}
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.ParseStatementJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	jobCopy := *job
	s.jobs[job.JobID] = &jobCopy
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.ParseStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	jobCopy := *job
	return &jobCopy, nil
}

func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.ParseStatementJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.ParseStatementJob
	for _, job := range s.jobs {
		if filter.UserID != 0 && job.UserID != filter.UserID {
			continue
		}
		if filter.DocumentID != "" && job.DocumentID != filter.DocumentID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []*jobs.ParseStatementJob{}, nil
		}
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}
