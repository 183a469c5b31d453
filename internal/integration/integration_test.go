// Package integration provides live integration tests against the upstream
// STAC APIs.
// Run with: go test -v ./internal/integration -tags=integration
//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/robert-malhotra/stac-federator/internal/config"
	"github.com/robert-malhotra/stac-federator/internal/provider"
	"github.com/robert-malhotra/stac-federator/internal/stac"
	"github.com/robert-malhotra/stac-federator/internal/stacapi"
	"github.com/robert-malhotra/stac-federator/pkg/server"
)

// San Francisco Bay, cloudy winter month.
const (
	testBBox     = "-122.6,37.3,-121.8,38.1"
	testDatetime = "2024-01-01/2024-01-31"
)

// setupTestServer creates a test server with the full federator stack and
// a SQLite durable cache.
func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	t.Chdir(t.TempDir())
	t.Setenv("STAC_BASE_URL", "http://test.local")
	t.Setenv("CACHE_BACKEND", "sqlite")
	t.Setenv("CACHE_DSN", filepath.Join(t.TempDir(), "cache.db"))
	t.Setenv("SEARCH_PROVIDER_TIMEOUT", "60s")
	t.Setenv("SEARCH_DEADLINE", "90s")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := server.New(context.Background(), server.Options{Config: cfg, Logger: logger})
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

type searchResponse struct {
	Features []*stac.Item `json:"features"`
	Context  stac.Context `json:"context"`
	Warnings []string     `json:"warnings"`
}

func doSearch(t *testing.T, ts *httptest.Server, query url.Values) (*searchResponse, string) {
	t.Helper()

	resp, err := http.Get(ts.URL + "/search?" + query.Encode())
	if err != nil {
		t.Fatalf("search request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status 200, got %d: %s", resp.StatusCode, body)
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return &result, resp.Header.Get("X-Cache")
}

// =============================================================================
// Upstream Client Direct Tests
// =============================================================================

func TestUpstreamClientSearch(t *testing.T) {
	cases := []struct {
		name       string
		baseURL    string
		collection string
	}{
		{"copernicus", "https://stac.dataspace.copernicus.eu/v1", "sentinel-2-l2a"},
		{"usgs", "https://landsatlook.usgs.gov/stac-server", "landsat-c2l2-sr"},
		{"planetary computer", "https://planetarycomputer.microsoft.com/api/stac/v1", "landsat-c2-l2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := stacapi.NewClient(tc.baseURL, 60*time.Second)
			resp, err := client.Search(context.Background(), &stacapi.SearchRequest{
				Collections: []string{tc.collection},
				BBox:        []float64{-122.6, 37.3, -121.8, 38.1},
				Datetime:    "2024-01-01T00:00:00Z/2024-01-31T23:59:59Z",
				Limit:       5,
			})
			if err != nil {
				t.Fatalf("search failed: %v", err)
			}
			if len(resp.Features) == 0 {
				t.Error("expected at least one result")
			}
			t.Logf("Received %d features", len(resp.Features))
		})
	}
}

// =============================================================================
// Federated Search Tests
// =============================================================================

func TestFederatedSearch(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("results are canonical and sorted newest first", func(t *testing.T) {
		result, _ := doSearch(t, ts, url.Values{
			"bbox":     {testBBox},
			"datetime": {testDatetime},
			"limit":    {"50"},
		})

		if len(result.Warnings) > 0 {
			t.Logf("Warnings: %v", result.Warnings)
		}
		if len(result.Features) == 0 {
			t.Fatal("expected at least one result")
		}

		for i, item := range result.Features {
			providerID, originalID, ok := provider.SplitSceneID(item.ID)
			if !ok || providerID != item.Properties.Provider || originalID != item.Properties.OriginalID {
				t.Errorf("feature %d: id %q does not match provider fields", i, item.ID)
			}
			if i > 0 && item.Properties.Datetime.After(result.Features[i-1].Properties.Datetime) {
				t.Errorf("feature %d is newer than feature %d", i, i-1)
			}
		}
		t.Logf("Federated search returned %d of %d", result.Context.Returned, result.Context.Matched)
	})

	t.Run("cloud cover filter is applied", func(t *testing.T) {
		result, _ := doSearch(t, ts, url.Values{
			"bbox":           {testBBox},
			"datetime":       {testDatetime},
			"cloud_cover_lt": {"20"},
		})

		for _, item := range result.Features {
			if cc := item.Properties.CloudCover; cc == nil || *cc >= 20 {
				t.Errorf("expected cloud cover < 20 on %s, got %v", item.ID, cc)
			}
		}
	})

	t.Run("collection filter routes to one provider", func(t *testing.T) {
		result, _ := doSearch(t, ts, url.Values{
			"bbox":        {testBBox},
			"datetime":    {testDatetime},
			"collections": {"landsat-c2-l2-sr"},
		})

		for _, item := range result.Features {
			if item.Properties.Provider != provider.PlanetaryID {
				t.Errorf("expected only %s results, got %s", provider.PlanetaryID, item.ID)
			}
		}
	})

	t.Run("repeat search is served from cache", func(t *testing.T) {
		query := url.Values{"bbox": {testBBox}, "datetime": {"2024-01-10/2024-01-20"}}
		first, _ := doSearch(t, ts, query)
		second, source := doSearch(t, ts, query)

		if len(first.Warnings) == 0 && source != "HIT-L1" {
			t.Errorf("expected HIT-L1 on repeat, got %q", source)
		}
		if len(first.Features) != len(second.Features) {
			t.Errorf("expected identical results, got %d and %d", len(first.Features), len(second.Features))
		}
	})
}

// =============================================================================
// Scene and Asset Tests
// =============================================================================

func TestSceneAndAssets(t *testing.T) {
	ts := setupTestServer(t)

	result, _ := doSearch(t, ts, url.Values{
		"bbox":        {testBBox},
		"datetime":    {testDatetime},
		"collections": {"landsat-c2-l2"},
		"limit":       {"1"},
	})
	if len(result.Features) == 0 {
		t.Skip("no Landsat scenes returned")
	}
	sceneID := result.Features[0].ID

	resp, err := http.Get(ts.URL + "/scenes/" + url.PathEscape(sceneID))
	if err != nil {
		t.Fatalf("scene request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected scene status 200, got %d", resp.StatusCode)
	}

	var item stac.Item
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		t.Fatalf("failed to decode scene: %v", err)
	}
	if item.ID != sceneID {
		t.Errorf("expected scene %s, got %s", sceneID, item.ID)
	}

	assetsResp, err := http.Get(ts.URL + "/assets?" + url.Values{
		"scene_id": {sceneID},
		"bands":    {"red,nir"},
	}.Encode())
	if err != nil {
		t.Fatalf("assets request failed: %v", err)
	}
	defer assetsResp.Body.Close()

	body, _ := io.ReadAll(assetsResp.Body)
	if assetsResp.StatusCode != http.StatusOK {
		t.Fatalf("expected assets status 200, got %d: %s", assetsResp.StatusCode, body)
	}
	if !strings.Contains(string(body), `"red"`) {
		t.Errorf("expected red band in asset resolution, got %s", body)
	}
}
