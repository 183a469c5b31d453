// Package jobs is the submit/poll surface of the raster processing queue.
// Jobs are recorded and handed to external workers; nothing here runs them.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Operation is a processing operation.
type Operation string

// Supported operations.
const (
	OperationNDVI            Operation = "ndvi"
	OperationChangeDetection Operation = "change_detection"
	OperationCOGConvert      Operation = "cog_convert"
)

// Operations lists every supported operation.
var Operations = []Operation{OperationNDVI, OperationChangeDetection, OperationCOGConvert}

// Status is a job lifecycle state.
type Status string

// Job states. Workers move jobs past StatusQueued.
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrInvalidJob  = errors.New("invalid job")
)

// Job is one processing request.
type Job struct {
	ID        string         `json:"job_id"`
	Status    Status         `json:"status"`
	Operation Operation      `json:"operation"`
	SceneID   string         `json:"scene_id"`
	BBox      []float64      `json:"bbox,omitempty"`
	Params    map[string]any `json:"params,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Queue records jobs for external workers.
type Queue interface {
	// Submit validates job, assigns its id and timestamps, and enqueues it.
	Submit(ctx context.Context, job *Job) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)
}

// Validate checks the caller-supplied fields of a job.
func Validate(job *Job) error {
	if job == nil {
		return fmt.Errorf("%w: job is required", ErrInvalidJob)
	}
	if job.Operation == "" {
		return fmt.Errorf("%w: operation is required (ndvi, change_detection, cog_convert)", ErrInvalidJob)
	}
	if !slices.Contains(Operations, job.Operation) {
		return fmt.Errorf("%w: invalid operation %q, must be one of: ndvi, change_detection, cog_convert", ErrInvalidJob, job.Operation)
	}
	if job.SceneID == "" {
		return fmt.Errorf("%w: scene_id is required", ErrInvalidJob)
	}
	if len(job.BBox) != 0 && len(job.BBox) != 4 {
		return fmt.Errorf("%w: bbox must have 4 coordinates, got %d", ErrInvalidJob, len(job.BBox))
	}
	return nil
}

// prepare returns a queued copy of job with a fresh id.
func prepare(job *Job, now time.Time) (*Job, error) {
	if err := Validate(job); err != nil {
		return nil, err
	}
	queued := *job
	queued.ID = "job_" + uuid.NewString()
	queued.Status = StatusQueued
	queued.CreatedAt = now.UTC()
	queued.UpdatedAt = queued.CreatedAt
	queued.Result = nil
	queued.Error = ""
	return &queued, nil
}
