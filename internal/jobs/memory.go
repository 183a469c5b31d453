package jobs

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue keeps jobs in process memory. Jobs are lost on restart.
type MemoryQueue struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[string]*Job), now: time.Now}
}

// Submit implements Queue.
func (q *MemoryQueue) Submit(ctx context.Context, job *Job) (*Job, error) {
	queued, err := prepare(job, q.now())
	if err != nil {
		return nil, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	stored := *queued
	q.jobs[queued.ID] = &stored
	return queued, nil
}

// Get implements Queue.
func (q *MemoryQueue) Get(ctx context.Context, id string) (*Job, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	job, ok := q.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}
