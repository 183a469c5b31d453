// Package search fans a federated query out to every eligible provider and
// merges the answers into one ranked, truncated result set.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/stac-federator/internal/metrics"
	"github.com/robert-malhotra/stac-federator/internal/provider"
	"github.com/robert-malhotra/stac-federator/internal/stac"
)

// NoProvidersWarning is returned when the collection filter excludes every
// registered provider.
const NoProvidersWarning = "No providers match the requested collections"

// DefaultProviderTimeout bounds one provider call.
const DefaultProviderTimeout = 15 * time.Second

// Options configure an Orchestrator.
type Options struct {
	// Deadline bounds the whole fan-out; zero means no overall deadline.
	Deadline        time.Duration
	ProviderTimeout time.Duration
	Deduplicate     bool
	Throttle        ThrottleConfig
}

// Orchestrator runs federated searches against a Registry.
type Orchestrator struct {
	registry  *provider.Registry
	opts      Options
	throttles map[string]*Throttle
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an orchestrator with one throttle per registered provider.
func New(registry *provider.Registry, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.ProviderTimeout <= 0 {
		opts.ProviderTimeout = DefaultProviderTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	throttles := make(map[string]*Throttle)
	for _, a := range registry.All() {
		throttles[a.Descriptor().ID] = NewThrottle(opts.Throttle)
	}

	return &Orchestrator{
		registry:  registry,
		opts:      opts,
		throttles: throttles,
		logger:    logger,
	}
}

// WithMetrics records provider calls on m.
func (o *Orchestrator) WithMetrics(m *metrics.Metrics) *Orchestrator {
	o.metrics = m
	for id, t := range o.throttles {
		m.SetProviderConcurrency(id, t.Limit())
	}
	return o
}

// Search clamps the limit to [1, MaxLimit], validates params, queries every
// eligible provider concurrently and merges the results. Only validation errors are returned; provider failures
// become warnings on the result.
func (o *Orchestrator) Search(ctx context.Context, params *stac.SearchParams) (*stac.ItemCollection, error) {
	if params != nil {
		params = params.Clone()
		params.ClampLimit(stac.MaxLimit)
	}
	if err := stac.ValidateSearchParams(params); err != nil {
		return nil, err
	}

	adapters := o.registry.ForCollections(params.Collections)
	if len(adapters) == 0 {
		return stac.NewItemCollection(nil, 0, params.Limit, []string{NoProvidersWarning}), nil
	}

	if o.opts.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.Deadline)
		defer cancel()
	}

	// Each task owns one slot; no task returns an error so Wait joins all.
	results := make([]*provider.Result, len(adapters))
	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			results[i] = o.call(ctx, a, params.Clone())
			return nil
		})
	}
	_ = g.Wait()

	var items []*stac.Item
	var warnings []string
	for _, r := range results {
		items = append(items, r.Items...)
		warnings = append(warnings, r.Warnings...)
	}

	items = FilterCloudCover(items, params.CloudCoverLt)
	if o.opts.Deduplicate {
		items = Deduplicate(items, o.registry.Authority)
	}
	stac.SortByDatetime(items, stac.SortDesc)

	matched := len(items)
	if len(items) > params.Limit {
		items = items[:params.Limit]
	}

	o.logger.DebugContext(ctx, "federated search complete",
		slog.Int("providers", len(adapters)),
		slog.Int("matched", matched),
		slog.Int("returned", len(items)),
		slog.Int("warnings", len(warnings)),
	)

	return stac.NewItemCollection(items, matched, params.Limit, warnings), nil
}

// call runs one adapter under its throttle and timeout. It always returns a
// non-nil result.
func (o *Orchestrator) call(ctx context.Context, a provider.Adapter, params *stac.SearchParams) (result *provider.Result) {
	d := a.Descriptor()

	ctx, cancel := context.WithTimeout(ctx, o.opts.ProviderTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("provider panicked", slog.String("provider", d.ID), slog.Any("panic", r))
			result = provider.FailedResult(d, fmt.Errorf("internal adapter error: %v", r))
		}
		if result.Failed() {
			o.logger.WarnContext(ctx, "provider search failed",
				slog.String("provider", d.ID),
				slog.String("error", result.Err.Error()),
			)
		}
		o.metrics.ObserveProvider(d.ID, time.Since(start), result.Err, errors.Is(result.Err, provider.ErrUpstreamTimeout))
	}()

	throttle := o.throttles[d.ID]
	if throttle == nil {
		throttle = NewThrottle(o.opts.Throttle)
	}
	release, err := throttle.Acquire(ctx)
	if err != nil {
		return provider.FailedResult(d, err)
	}

	// Released even when the adapter panics.
	callStart := time.Now()
	defer func() {
		release(time.Since(callStart))
		o.metrics.SetProviderConcurrency(d.ID, throttle.Limit())
	}()

	result = a.Search(ctx, params)

	if result == nil {
		return provider.FailedResult(d, errors.New("adapter returned no result"))
	}
	return result
}

// FilterCloudCover keeps items with unknown cloud cover and items whose
// cloud cover is strictly below lt.
func FilterCloudCover(items []*stac.Item, lt *float64) []*stac.Item {
	if lt == nil {
		return items
	}
	kept := make([]*stac.Item, 0, len(items))
	for _, item := range items {
		cc := item.Properties.CloudCover
		if cc == nil || *cc < *lt {
			kept = append(kept, item)
		}
	}
	return kept
}
