package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/robert-malhotra/stac-federator/internal/metrics"
)

// SweepLoop periodically deletes expired rows from a durable store.
type SweepLoop struct {
	store    Sweeper
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewSweepLoop creates a sweep loop. It does nothing until Run is called.
func NewSweepLoop(store Sweeper, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *SweepLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepLoop{store: store, interval: interval, metrics: m, logger: logger}
}

// Run sweeps every interval until ctx is done.
func (s *SweepLoop) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs one sweep and returns the number of rows removed.
func (s *SweepLoop) SweepOnce(ctx context.Context) int64 {
	n, err := s.store.Sweep(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "cache sweep failed", slog.String("error", err.Error()))
		return 0
	}
	s.metrics.Swept(n)
	if n > 0 {
		s.logger.InfoContext(ctx, "swept expired cache rows", slog.Int64("rows", n))
	}
	return n
}
