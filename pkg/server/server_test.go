package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/robert-malhotra/stac-federator/internal/config"
	"github.com/robert-malhotra/stac-federator/internal/provider"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sentinelUpstream serves one Sentinel-2 scene from /search and counts calls.
func sentinelUpstream(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	feature := map[string]any{
		"type":       "Feature",
		"id":         "S2B_MSIL2A_20250110T185000_T10SEG",
		"collection": "sentinel-2-l2a",
		"geometry": map[string]any{
			"type":        "Polygon",
			"coordinates": [][][]float64{{{-122.4, 37.6}, {-122.1, 37.6}, {-122.1, 37.9}, {-122.4, 37.9}, {-122.4, 37.6}}},
		},
		"properties": map[string]any{"datetime": "2025-01-10T18:50:00Z", "eo:cloud_cover": 3.0},
		"assets": map[string]any{
			"B04": map[string]any{"href": "https://zipper.dataspace.copernicus.eu/B04.jp2", "type": "image/jp2"},
		},
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			http.NotFound(w, r)
			return
		}
		calls.Add(1)
		w.Header().Set("Content-Type", "application/geo+json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"type":     "FeatureCollection",
			"features": []any{feature},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func loadTestConfig(t *testing.T, upstream, dsn string) *config.Config {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("STAC_BASE_URL", "http://localhost:8080")
	t.Setenv("SENTINEL_BASE_URL", upstream)
	t.Setenv("LANDSAT_ENABLED", "false")
	t.Setenv("PC_ENABLED", "false")
	t.Setenv("CACHE_BACKEND", "sqlite")
	t.Setenv("CACHE_DSN", dsn)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}
	return cfg
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

const searchTarget = "/search?bbox=-122.5,37.5,-122.0,38.0&datetime=2025-01-01/2025-02-01"

func TestNew_ServesSearchFromDurableCacheAcrossRestarts(t *testing.T) {
	var calls atomic.Int32
	upstream := sentinelUpstream(t, &calls)
	cfg := loadTestConfig(t, upstream.URL, filepath.Join(t.TempDir(), "cache.db"))

	first, err := New(context.Background(), Options{Config: cfg, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if w := get(t, first, "/health"); w.Code != http.StatusOK {
		t.Fatalf("Expected health 200, got %d", w.Code)
	}

	w := get(t, first, searchTarget)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected search 200, got %d: %s", w.Code, w.Body.String())
	}
	if xc := w.Header().Get("X-Cache"); xc != "MISS" {
		t.Errorf("Expected first search to miss, got %q", xc)
	}

	var result struct {
		Features []struct {
			ID string `json:"id"`
		} `json:"features"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode search response: %v", err)
	}
	if len(result.Features) != 1 {
		t.Fatalf("Expected 1 feature, got %d", len(result.Features))
	}
	wantID := provider.SceneID(provider.SentinelID, "S2B_MSIL2A_20250110T185000_T10SEG")
	if result.Features[0].ID != wantID {
		t.Errorf("Expected id %s, got %s", wantID, result.Features[0].ID)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	second, err := New(context.Background(), Options{Config: cfg, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() after restart error: %v", err)
	}
	defer second.Close()

	w = get(t, second, searchTarget)
	if xc := w.Header().Get("X-Cache"); xc != "HIT-L2" {
		t.Errorf("Expected durable hit after restart, got %q", xc)
	}
	w = get(t, second, searchTarget)
	if xc := w.Header().Get("X-Cache"); xc != "HIT-L1" {
		t.Errorf("Expected memory hit after durable hit, got %q", xc)
	}

	if n := calls.Load(); n != 1 {
		t.Errorf("Expected 1 upstream call, got %d", n)
	}
}

func TestNew_MetricsEndpoint(t *testing.T) {
	var calls atomic.Int32
	upstream := sentinelUpstream(t, &calls)
	cfg := loadTestConfig(t, upstream.URL, filepath.Join(t.TempDir(), "cache.db"))

	s, err := New(context.Background(), Options{Config: cfg, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()

	get(t, s, "/health")
	w := get(t, s, cfg.Metrics.Path)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected metrics 200, got %d", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "go_goroutines") {
		t.Error("Expected default registry to include Go collector metrics")
	}
}

func TestNew_DegradesWhenDurableCacheUnavailable(t *testing.T) {
	var calls atomic.Int32
	upstream := sentinelUpstream(t, &calls)
	// A directory cannot be opened as a SQLite database.
	cfg := loadTestConfig(t, upstream.URL, t.TempDir())

	s, err := New(context.Background(), Options{Config: cfg, Logger: discardLogger()})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer s.Close()

	if w := get(t, s, searchTarget); w.Code != http.StatusOK {
		t.Errorf("Expected search to succeed without durable tier, got %d", w.Code)
	}
	if w := get(t, s, searchTarget); w.Header().Get("X-Cache") != "HIT-L1" {
		t.Errorf("Expected memory tier to still cache, got %q", w.Header().Get("X-Cache"))
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil {
		t.Fatal("Expected error without config")
	}
}

func TestBuildRegistry(t *testing.T) {
	cfg := loadTestConfig(t, "http://upstream.invalid", filepath.Join(t.TempDir(), "cache.db"))
	cfg.Planetary.Enabled = true

	registry, err := BuildRegistry(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("BuildRegistry() error: %v", err)
	}
	if _, ok := registry.Get(provider.SentinelID); !ok {
		t.Error("Expected Sentinel adapter")
	}
	if _, ok := registry.Get(provider.PlanetaryID); !ok {
		t.Error("Expected Planetary Computer adapter")
	}
	if _, ok := registry.Get(provider.LandsatID); ok {
		t.Error("Expected Landsat adapter to be disabled")
	}
}

func TestOpenCacheStore_None(t *testing.T) {
	cfg := loadTestConfig(t, "http://upstream.invalid", filepath.Join(t.TempDir(), "cache.db"))
	cfg.Cache.Backend = config.CacheBackendNone

	store, err := OpenCacheStore(context.Background(), cfg, discardLogger())
	if err != nil {
		t.Fatalf("OpenCacheStore() error: %v", err)
	}
	if store != nil {
		t.Errorf("Expected nil store for none backend, got %T", store)
	}
}
