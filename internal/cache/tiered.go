package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/robert-malhotra/stac-federator/internal/metrics"
)

// Source reports which tier answered a lookup. The values are sent to
// clients in the X-Cache header.
type Source string

// Lookup sources.
const (
	SourceMemory  Source = "HIT-L1"
	SourceDurable Source = "HIT-L2"
	SourceMiss    Source = "MISS"
)

// Tiered reads through the memory tier to the durable tier. Durable tier
// failures are logged and treated as misses.
type Tiered struct {
	memory  *MemoryTier
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewTiered creates a tiered cache. store may be nil for memory-only.
func NewTiered(memory *MemoryTier, store Store, logger *slog.Logger) *Tiered {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tiered{memory: memory, store: store, logger: logger, now: time.Now}
}

// WithMetrics records durable tier failures on m.
func (t *Tiered) WithMetrics(m *metrics.Metrics) *Tiered {
	t.metrics = m
	return t
}

// Get looks key up in each tier in order. A durable hit is copied into the
// memory tier.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, Source) {
	if t.memory != nil {
		if body, ok := t.memory.Get(key); ok {
			return body, SourceMemory
		}
	}
	if t.store == nil {
		return nil, SourceMiss
	}

	entry, err := t.store.Get(ctx, key)
	if err != nil {
		t.metrics.CacheError("get")
		t.logger.WarnContext(ctx, "durable cache read failed", slog.String("error", err.Error()))
		return nil, SourceMiss
	}
	if entry == nil {
		return nil, SourceMiss
	}

	if t.memory != nil {
		t.memory.Set(key, entry.Response, entry.ExpiresAt)
	}
	return entry.Response, SourceDurable
}

// Set writes the response to every tier for ttl.
func (t *Tiered) Set(ctx context.Context, key string, request, response []byte, ttl time.Duration) {
	now := t.now()
	expiresAt := now.Add(ttl)

	if t.memory != nil {
		t.memory.Set(key, response, expiresAt)
	}
	if t.store == nil {
		return
	}

	err := t.store.Set(ctx, &Entry{
		Key:       key,
		Request:   request,
		Response:  response,
		ExpiresAt: expiresAt,
		UpdatedAt: now,
	})
	if err != nil {
		t.metrics.CacheError("set")
		t.logger.WarnContext(ctx, "durable cache write failed", slog.String("error", err.Error()))
	}
}

// Store returns the durable tier, or nil.
func (t *Tiered) Store() Store {
	return t.store
}
