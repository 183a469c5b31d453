package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robert-malhotra/stac-federator/internal/cache"
	"github.com/robert-malhotra/stac-federator/internal/stac"
)

func setupCLIEnv(t *testing.T) {
	t.Helper()
	t.Chdir(t.TempDir()) // keep godotenv away from any checked-in .env
	t.Setenv("STAC_BASE_URL", "http://localhost:8080")
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func seedSQLiteCache(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := cache.OpenSQL(ctx, cache.DialectSQLite, dsn, nil)
	if err != nil {
		t.Fatalf("OpenSQL() error: %v", err)
	}
	defer store.Close()

	now := time.Now()
	for _, e := range []*cache.Entry{
		{
			Key:       "fresh",
			Request:   []byte(`{"limit":10}`),
			Response:  []byte(`{"type":"FeatureCollection","features":[{"id":"a"}],"warnings":["Landsat: timeout"]}`),
			ExpiresAt: now.Add(time.Hour),
		},
		{Key: "stale", Request: []byte(`{}`), Response: []byte(`{}`), ExpiresAt: now.Add(-time.Hour)},
	} {
		if err := store.Set(ctx, e); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
	}

	t.Setenv("CACHE_BACKEND", "sqlite")
	t.Setenv("CACHE_DSN", dsn)
	return dsn
}

func TestRootShowsHelpWithoutConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STAC_BASE_URL", "")

	out, _, err := runCLI(t)
	if err != nil {
		t.Fatalf("root command: %v", err)
	}
	requireContains(t, out, "cache")
	requireContains(t, out, "providers")
}

func TestMissingConfigFails(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STAC_BASE_URL", "")

	if _, _, err := runCLI(t, "providers"); err == nil {
		t.Fatal("Expected error without STAC_BASE_URL")
	}
}

func TestProvidersCommand(t *testing.T) {
	setupCLIEnv(t)

	out, _, err := runCLI(t, "providers")
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	for _, want := range []string{"sentinel-2-l2a", "landsat-c2-l2", "planetary-computer", "Authoritative For"} {
		requireContains(t, out, want)
	}
}

func TestProvidersCommandRespectsEnabledFlags(t *testing.T) {
	setupCLIEnv(t)
	t.Setenv("LANDSAT_ENABLED", "false")
	t.Setenv("PC_ENABLED", "false")

	out, _, err := runCLI(t, "providers")
	if err != nil {
		t.Fatalf("providers: %v", err)
	}
	requireContains(t, out, "sentinel-2-l2a")
	if strings.Contains(out, "planetary-computer") {
		t.Errorf("Expected disabled provider to be omitted, got %q", out)
	}
}

func TestCollectionsCommand(t *testing.T) {
	setupCLIEnv(t)

	out, _, err := runCLI(t, "collections")
	if err != nil {
		t.Fatalf("collections: %v", err)
	}
	requireContains(t, out, "landsat-c2-l2-sr")
	requireContains(t, out, "sentinel-2-l2a")
}

func TestCacheKeyMatchesServerKey(t *testing.T) {
	setupCLIEnv(t)

	out, _, err := runCLI(t, "cache", "key",
		"--bbox", "-122.5,37.5,-122,38",
		"--datetime", "2025-01-01/2025-02-01",
		"--collections", "landsat-c2-l2,sentinel-2-l2a",
	)
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}

	want := cache.Key(&stac.SearchParams{
		BBox:        []float64{-122.5, 37.5, -122, 38},
		Datetime:    "2025-01-01/2025-02-01",
		Collections: []string{"sentinel-2-l2a", "landsat-c2-l2"},
		Limit:       stac.DefaultLimit,
	}, cache.DefaultBBoxPrecision)
	requireContains(t, out, "Key:     "+want)
}

func TestCacheKeyRejectsInvalidRequest(t *testing.T) {
	setupCLIEnv(t)

	_, _, err := runCLI(t, "cache", "key", "--bbox", "10,0,5,1", "--datetime", "2025-01-01")
	if err == nil {
		t.Fatal("Expected error for west > east")
	}
	requireContains(t, err.Error(), "invalid bbox")
}

func TestCacheSweepAndGet(t *testing.T) {
	setupCLIEnv(t)
	seedSQLiteCache(t)

	out, _, err := runCLI(t, "cache", "sweep")
	if err != nil {
		t.Fatalf("cache sweep: %v", err)
	}
	requireContains(t, out, "Deleted 1 expired entries")

	out, _, err = runCLI(t, "cache", "get", "fresh")
	if err != nil {
		t.Fatalf("cache get: %v", err)
	}
	requireContains(t, out, "Features: 1")
	requireContains(t, out, "Warning:  Landsat: timeout")
	if strings.Contains(out, "FeatureCollection") {
		t.Errorf("Expected body to be hidden without --response, got %q", out)
	}

	out, _, err = runCLI(t, "cache", "get", "--response", "fresh")
	if err != nil {
		t.Fatalf("cache get --response: %v", err)
	}
	requireContains(t, out, `"type": "FeatureCollection"`)

	out, _, err = runCLI(t, "cache", "get", "stale")
	if err != nil {
		t.Fatalf("cache get stale: %v", err)
	}
	requireContains(t, out, "No live entry for stale")
}

func TestCacheCommandsNeedDurableBackend(t *testing.T) {
	setupCLIEnv(t)
	t.Setenv("CACHE_BACKEND", "none")

	_, _, err := runCLI(t, "cache", "sweep")
	if err == nil {
		t.Fatal("Expected error with no durable backend")
	}
	requireContains(t, err.Error(), "CACHE_BACKEND=none")
}

func TestRenderTable(t *testing.T) {
	out := renderTable(
		[]string{"ID", "Count"},
		[][]string{{"a", "1"}, {"bb"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	requireContains(t, out, "ID")
	requireContains(t, out, "bb")
	if lines := strings.Count(out, "\n"); lines < 5 {
		t.Errorf("Expected bordered table, got %q", out)
	}

	if got := renderTable(nil, nil, nil); got != "" {
		t.Errorf("Expected empty output without headers, got %q", got)
	}
}
