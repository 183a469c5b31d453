package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps durable tier failures. Callers of Tiered never see it.
var ErrUnavailable = errors.New("cache unavailable")

// Entry is one durable cache row.
type Entry struct {
	Key       string    `json:"cache_key"`
	Request   []byte    `json:"request_json"`
	Response  []byte    `json:"response_json"`
	ExpiresAt time.Time `json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the entry is no longer valid at now.
func (e *Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Store is a durable, shared cache tier.
type Store interface {
	// Get returns nil without error when the key is absent or expired.
	Get(ctx context.Context, key string) (*Entry, error)
	// Set upserts the entry.
	Set(ctx context.Context, entry *Entry) error
	Close() error
}

// Sweeper is implemented by stores that need expired rows deleted
// explicitly.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}
