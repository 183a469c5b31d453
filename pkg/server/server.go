// Package server wires the federator from a Config so it can run as a
// binary or be mounted inside another application.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/robert-malhotra/stac-federator/internal/api"
	"github.com/robert-malhotra/stac-federator/internal/assets"
	"github.com/robert-malhotra/stac-federator/internal/cache"
	"github.com/robert-malhotra/stac-federator/internal/config"
	"github.com/robert-malhotra/stac-federator/internal/jobs"
	"github.com/robert-malhotra/stac-federator/internal/metrics"
	"github.com/robert-malhotra/stac-federator/internal/provider"
	"github.com/robert-malhotra/stac-federator/internal/search"
	"github.com/robert-malhotra/stac-federator/internal/stacapi"
)

// Options configures an embedded federator.
type Options struct {
	// Config is the full configuration (required). See config.Load.
	Config *config.Config

	// Logger is the slog logger to use.
	// Default: slog.Default()
	Logger *slog.Logger

	// Registry receives the Prometheus collectors.
	// Default: a new registry with Go and process collectors.
	Registry *prometheus.Registry
}

// Server is a federator that can be embedded in another application.
type Server struct {
	router chi.Router
	store  cache.Store
	redis  *redis.Client
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *slog.Logger
}

// New builds every component from opts.Config. Background work (the cache
// sweeper) runs until Close.
func New(ctx context.Context, opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	cfg := opts.Config
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	m := metrics.New(reg)

	collections, err := config.LoadCollectionsOrDefault(cfg.CollectionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load collections: %w", err)
	}
	logger.Info("loaded collections", "count", collections.Count())

	registry, err := BuildRegistry(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	orchestrator := search.New(registry, search.Options{
		Deadline:        cfg.Search.Deadline,
		ProviderTimeout: cfg.Search.ProviderTimeout,
		Deduplicate:     cfg.Search.Deduplicate,
		Throttle: search.ThrottleConfig{
			Concurrency:       cfg.Provider.Concurrency,
			RequestsPerSecond: cfg.Provider.RequestsPerSecond,
			Burst:             cfg.Provider.Burst,
			SlowThreshold:     cfg.Provider.SlowThreshold,
		},
	}, logger).WithMetrics(m)

	s := &Server{logger: logger}

	memory, err := cache.NewMemoryTier(cfg.Cache.MemoryCapacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	store, err := OpenCacheStore(ctx, cfg, logger)
	if err != nil {
		// The durable tier is an optimization; run memory-only without it.
		logger.Warn("durable cache unavailable, using memory tier only",
			"backend", cfg.Cache.Backend,
			"error", err,
		)
		store = nil
	}
	s.store = store

	tiers := cache.NewTiered(memory, s.store, logger).WithMetrics(m)
	searcher := cache.NewCachedSearcher(orchestrator, tiers, cache.SearcherOptions{
		TTL:           cfg.Cache.TTL,
		PartialTTL:    cfg.Cache.PartialTTL,
		BBoxPrecision: cfg.Cache.BBoxPrecision,
	}).WithMetrics(m)

	resolver := assets.NewResolver(registry, logger).WithMetrics(m)
	if cfg.Assets.ProbeCOG {
		resolver = resolver.WithProber(&http.Client{Timeout: cfg.Assets.ProbeTimeout})
	}

	handlers := api.NewHandlers(cfg, registry, searcher, resolver, collections, logger).
		WithMetrics(m, reg)

	queue, err := s.openJobQueue(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	if queue != nil {
		handlers = handlers.WithJobQueue(queue)
	}

	s.router = api.NewRouter(handlers, logger)

	if sweeper, ok := s.store.(cache.Sweeper); ok && cfg.Cache.SweepInterval > 0 {
		bg, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		loop := cache.NewSweepLoop(sweeper, cfg.Cache.SweepInterval, m, logger)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			loop.Run(bg)
		}()
		logger.Info("cache sweeper started", "interval", cfg.Cache.SweepInterval)
	}

	return s, nil
}

// BuildRegistry creates the enabled provider adapters.
func BuildRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*provider.Registry, error) {
	var adapters []provider.Adapter

	if cfg.Sentinel.Enabled {
		client := stacapi.NewClient(cfg.Sentinel.BaseURL, cfg.Search.ProviderTimeout).WithLogger(logger)
		adapters = append(adapters, provider.NewSentinel(client, logger))
		logger.Info("registered provider", "provider", provider.SentinelID, "base_url", cfg.Sentinel.BaseURL)
	}

	if cfg.Landsat.Enabled {
		client := stacapi.NewClient(cfg.Landsat.BaseURL, cfg.Search.ProviderTimeout).WithLogger(logger)
		landsat := provider.NewLandsat(client, logger)
		if cfg.Landsat.S3Presign {
			awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Landsat.S3Region))
			if err != nil {
				return nil, fmt.Errorf("failed to load AWS config: %w", err)
			}
			landsat = landsat.WithPresigner(provider.NewS3Presigner(awsCfg, cfg.Landsat.PresignExpiry, cfg.Landsat.RequesterPays))
		}
		adapters = append(adapters, landsat)
		logger.Info("registered provider", "provider", provider.LandsatID, "base_url", cfg.Landsat.BaseURL, "s3_presign", cfg.Landsat.S3Presign)
	}

	if cfg.Planetary.Enabled {
		client := stacapi.NewClient(cfg.Planetary.BaseURL, cfg.Search.ProviderTimeout).WithLogger(logger)
		signer := provider.NewSASSigner(client, cfg.Planetary.SASURL)
		adapters = append(adapters, provider.NewPlanetary(client, signer, logger))
		logger.Info("registered provider", "provider", provider.PlanetaryID, "base_url", cfg.Planetary.BaseURL)
	}

	registry, err := provider.NewRegistry(adapters...)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider registry: %w", err)
	}
	return registry, nil
}

// OpenCacheStore opens the configured durable cache tier, or returns nil
// for the "none" backend.
func OpenCacheStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (cache.Store, error) {
	var (
		store cache.Store
		err   error
	)
	switch cfg.Cache.Backend {
	case config.CacheBackendPostgres:
		store, err = openSQL(ctx, cache.DialectPostgres, cfg.Cache.DSN, logger)
	case config.CacheBackendSQLite:
		store, err = openSQL(ctx, cache.DialectSQLite, cfg.Cache.DSN, logger)
	case config.CacheBackendRedis:
		var r *cache.RedisStore
		if r, err = cache.OpenRedis(ctx, cfg.Cache.DSN); err == nil {
			store = r
		}
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

func openSQL(ctx context.Context, dialect cache.Dialect, dsn string, logger *slog.Logger) (cache.Store, error) {
	s, err := cache.OpenSQL(ctx, dialect, dsn, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) openJobQueue(ctx context.Context, cfg *config.Config) (jobs.Queue, error) {
	switch cfg.Jobs.Backend {
	case config.JobsBackendMemory:
		return jobs.NewMemoryQueue(), nil
	case config.JobsBackendRedis:
		redisOpts, err := redis.ParseURL(cfg.Jobs.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid jobs Redis URL: %w", err)
		}
		client := redis.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to jobs Redis: %w", err)
		}
		s.redis = client
		return jobs.NewRedisQueue(client), nil
	default:
		return nil, nil
	}
}

// Router returns the chi.Router for mounting in another application.
func (s *Server) Router() chi.Router {
	return s.router
}

// Close stops the sweeper and releases the cache and queue connections.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	var errs []error
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	return errors.Join(errs...)
}
