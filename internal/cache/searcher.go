package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/robert-malhotra/stac-federator/internal/metrics"
	"github.com/robert-malhotra/stac-federator/internal/stac"
)

// Default lifetimes for cached search responses.
const (
	DefaultTTL        = 24 * time.Hour
	DefaultPartialTTL = 5 * time.Minute
)

// Searcher runs an uncached federated search.
type Searcher interface {
	Search(ctx context.Context, params *stac.SearchParams) (*stac.ItemCollection, error)
}

// SearcherOptions configure a CachedSearcher.
type SearcherOptions struct {
	TTL time.Duration
	// PartialTTL applies to responses carrying warnings; zero disables
	// caching them.
	PartialTTL    time.Duration
	BBoxPrecision int
}

// CachedSearcher serves encoded search responses from the cache, running
// the wrapped searcher on a miss. Concurrent misses for the same key share
// one search.
type CachedSearcher struct {
	next    Searcher
	tiers   *Tiered
	opts    SearcherOptions
	group   singleflight.Group
	metrics *metrics.Metrics
}

// NewCachedSearcher wraps next with tiers.
func NewCachedSearcher(next Searcher, tiers *Tiered, opts SearcherOptions) *CachedSearcher {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	return &CachedSearcher{next: next, tiers: tiers, opts: opts}
}

// WithMetrics records lookups on m.
func (c *CachedSearcher) WithMetrics(m *metrics.Metrics) *CachedSearcher {
	c.metrics = m
	return c
}

// Search returns the JSON-encoded ItemCollection for params and the tier
// it came from. The shared search runs detached from any one caller and is
// bounded by the wrapped searcher's own deadlines.
func (c *CachedSearcher) Search(ctx context.Context, params *stac.SearchParams) ([]byte, Source, error) {
	if params != nil {
		params = params.Clone()
		params.ClampLimit(stac.MaxLimit)
	}
	if err := stac.ValidateSearchParams(params); err != nil {
		return nil, SourceMiss, err
	}

	key := Key(params, c.opts.BBoxPrecision)
	if body, source := c.tiers.Get(ctx, key); source != SourceMiss {
		c.metrics.CacheLookup(string(source))
		return body, source, nil
	}
	c.metrics.CacheLookup(string(SourceMiss))

	ch := c.group.DoChan(key, func() (any, error) {
		return c.search(context.WithoutCancel(ctx), key, params)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, SourceMiss, res.Err
		}
		return res.Val.([]byte), SourceMiss, nil
	case <-ctx.Done():
		return nil, SourceMiss, ctx.Err()
	}
}

func (c *CachedSearcher) search(ctx context.Context, key string, params *stac.SearchParams) ([]byte, error) {
	result, err := c.next.Search(ctx, params)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode search response: %w", err)
	}

	ttl := c.opts.TTL
	if len(result.Warnings) > 0 {
		ttl = c.opts.PartialTTL
	}
	if ttl > 0 {
		c.tiers.Set(ctx, key, Request(params, c.opts.BBoxPrecision), body, ttl)
	}
	return body, nil
}
