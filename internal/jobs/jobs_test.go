package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		job     *Job
		wantErr bool
	}{
		{"valid", &Job{Operation: OperationNDVI, SceneID: "landsat-c2-l2:LC09_X"}, false},
		{"valid with bbox", &Job{Operation: OperationCOGConvert, SceneID: "a:b", BBox: []float64{0, 0, 1, 1}}, false},
		{"nil", nil, true},
		{"missing operation", &Job{SceneID: "a:b"}, true},
		{"unknown operation", &Job{Operation: "sharpen", SceneID: "a:b"}, true},
		{"missing scene", &Job{Operation: OperationNDVI}, true},
		{"short bbox", &Job{Operation: OperationNDVI, SceneID: "a:b", BBox: []float64{0, 0}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.job)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidJob) {
					t.Errorf("Expected ErrInvalidJob, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestMemoryQueue_SubmitAndGet(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	job, err := q.Submit(ctx, &Job{
		Operation: OperationChangeDetection,
		SceneID:   "sentinel-2-l2a:S2A_X",
		Params:    map[string]any{"baseline": "sentinel-2-l2a:S2A_Y"},
		Status:    StatusCompleted,
	})
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if !strings.HasPrefix(job.ID, "job_") {
		t.Errorf("Expected job_ prefixed id, got %s", job.ID)
	}
	if job.Status != StatusQueued {
		t.Errorf("Expected queued status, got %s", job.Status)
	}
	if job.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}

	got, err := q.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.SceneID != job.SceneID || got.Operation != job.Operation {
		t.Errorf("Expected %+v, got %+v", job, got)
	}

	other, _ := q.Submit(ctx, &Job{Operation: OperationNDVI, SceneID: "a:b"})
	if other.ID == job.ID {
		t.Error("Expected unique job ids")
	}
}

func TestMemoryQueue_NotFound(t *testing.T) {
	q := NewMemoryQueue()
	if _, err := q.Get(context.Background(), "job_missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Expected ErrJobNotFound, got %v", err)
	}
}
