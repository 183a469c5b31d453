package assets

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/robert-malhotra/stac-federator/internal/provider"
	"github.com/robert-malhotra/stac-federator/internal/stac"
)

const geotiff = "image/tiff; application=geotiff"

// mockAdapter serves one scene and signs non-direct assets.
type mockAdapter struct {
	item       *stac.Item
	signErr    map[string]error
	resolveCnt atomic.Int32
	sceneCnt   atomic.Int32
}

func (m *mockAdapter) Descriptor() provider.Descriptor {
	return provider.Descriptor{ID: "mock", Name: "Mock", Collections: []string{"c"}}
}

func (m *mockAdapter) Search(ctx context.Context, params *stac.SearchParams) *provider.Result {
	return &provider.Result{}
}

func (m *mockAdapter) GetScene(ctx context.Context, originalID string) (*stac.Item, error) {
	m.sceneCnt.Add(1)
	if originalID != m.item.Properties.OriginalID {
		return nil, provider.ErrNotFound
	}
	return m.item, nil
}

func (m *mockAdapter) ResolveAssetURL(ctx context.Context, originalID, band string) (string, error) {
	m.resolveCnt.Add(1)
	if err := m.signErr[band]; err != nil {
		return "", err
	}
	return m.item.Assets[band].Href + "?sig=1", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newResolver(t *testing.T, adapter *mockAdapter) *Resolver {
	t.Helper()
	registry, err := provider.NewRegistry(adapter)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return NewResolver(registry, testLogger())
}

func testItem() *stac.Item {
	return &stac.Item{
		ID:         "mock:scene1",
		Properties: stac.Properties{OriginalID: "scene1", Provider: "mock"},
		Assets: map[string]*stac.Asset{
			"red":   {Href: "https://cog.host/red.tif", Type: geotiff + "; profile=cloud-optimized", CloudOptimized: true},
			"nir":   {Href: "https://blob.core.windows.net/nir.tif", Type: geotiff, CloudOptimized: true, RequiresAuth: true},
			"swir":  {Href: "https://other/swir.tif", Type: geotiff},
			"green": {Href: "https://blob.core.windows.net/green.tif", Type: geotiff, RequiresAuth: true},
		},
	}
}

func TestResolve_PerBand(t *testing.T) {
	adapter := &mockAdapter{item: testItem(), signErr: map[string]error{
		"green": provider.ErrSigning,
	}}
	r := newResolver(t, adapter)

	res, err := r.Resolve(context.Background(), "mock:scene1", []string{"red", "nir", "green", "bogus", "swir"}, FormatCOG)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	red := res.Assets["red"]
	if red.Status != StatusReady || red.Href != "https://cog.host/red.tif" || !red.IsCOG {
		t.Errorf("Expected direct red href, got %+v", red)
	}

	nir := res.Assets["nir"]
	if nir.Status != StatusReady || nir.Href != "https://blob.core.windows.net/nir.tif?sig=1" {
		t.Errorf("Expected signed nir href, got %+v", nir)
	}
	if nir.RequiresAuth {
		t.Error("Expected signed href not to require auth")
	}

	if green := res.Assets["green"]; green.Status != StatusError || green.Error == "" {
		t.Errorf("Expected per-band signing error, got %+v", green)
	}
	if bogus := res.Assets["bogus"]; bogus.Status != StatusError {
		t.Errorf("Expected unknown band error, got %+v", bogus)
	}

	swir := res.Assets["swir"]
	if swir.Status != StatusReady || swir.IsCOG || !swir.RequiresConversion {
		t.Errorf("Expected swir to require conversion, got %+v", swir)
	}

	// red is direct; nir, green and swir go through the adapter.
	if adapter.resolveCnt.Load() != 3 {
		t.Errorf("Expected 3 adapter resolutions, got %d", adapter.resolveCnt.Load())
	}
}

func TestResolve_AllBandsByDefault(t *testing.T) {
	r := newResolver(t, &mockAdapter{item: testItem()})

	res, err := r.Resolve(context.Background(), "mock:scene1", nil, "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if len(res.Assets) != 4 {
		t.Errorf("Expected 4 bands, got %d", len(res.Assets))
	}
	if res.Assets["swir"].RequiresConversion {
		t.Error("Expected no conversion flag without a target format")
	}
}

// sceneAdapter resolves bands from an already fetched scene.
type sceneAdapter struct {
	*mockAdapter
	fromScene atomic.Int32
}

func (s *sceneAdapter) ResolveSceneAsset(ctx context.Context, item *stac.Item, band string) (string, error) {
	s.fromScene.Add(1)
	if err := s.signErr[band]; err != nil {
		return "", err
	}
	return item.Assets[band].Href + "?sig=2", nil
}

func TestResolve_FetchesSceneOnce(t *testing.T) {
	adapter := &sceneAdapter{mockAdapter: &mockAdapter{item: testItem(), signErr: map[string]error{
		"green": provider.ErrSigning,
	}}}
	registry, err := provider.NewRegistry(adapter)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	r := NewResolver(registry, testLogger())

	res, err := r.Resolve(context.Background(), "mock:scene1", nil, "")
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}

	if n := adapter.sceneCnt.Load(); n != 1 {
		t.Errorf("Expected 1 scene fetch for all bands, got %d", n)
	}
	if n := adapter.resolveCnt.Load(); n != 0 {
		t.Errorf("Expected no per-band scene lookups, got %d", n)
	}
	// nir, green and swir are not direct.
	if n := adapter.fromScene.Load(); n != 3 {
		t.Errorf("Expected 3 resolutions from the fetched scene, got %d", n)
	}
	if nir := res.Assets["nir"]; nir.Href != "https://blob.core.windows.net/nir.tif?sig=2" {
		t.Errorf("Expected nir signed from scene, got %+v", nir)
	}
	if green := res.Assets["green"]; green.Status != StatusError {
		t.Errorf("Expected per-band signing error, got %+v", green)
	}
}

func TestResolve_SceneErrors(t *testing.T) {
	r := newResolver(t, &mockAdapter{item: testItem()})

	tests := []struct {
		name    string
		sceneID string
		format  string
		want    error
	}{
		{"unknown provider", "other:scene1", "", provider.ErrUnknownProvider},
		{"missing scene", "mock:nope", "", provider.ErrNotFound},
		{"bad format", "mock:scene1", "png", ErrUnsupportedFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.sceneID, nil, tt.format)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestResolve_ProbeUpgradesCOG(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Range") == "" {
			t.Error("Expected ranged request")
		}
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(append([]byte{'I', 'I', 42, 0}, []byte("GDAL_STRUCTURAL_METADATA_SIZE=000140 bytes\nLAYOUT=COG\n")...))
	}))
	defer server.Close()

	item := testItem()
	item.Assets["swir"].Href = server.URL + "/swir.tif"
	adapter := &mockAdapter{item: item}
	r := newResolver(t, adapter).WithProber(server.Client())

	res, err := r.Resolve(context.Background(), "mock:scene1", []string{"swir"}, FormatCOG)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if swir := res.Assets["swir"]; !swir.IsCOG || swir.RequiresConversion {
		t.Errorf("Expected probe to classify swir as COG, got %+v", swir)
	}
}

func TestLooksLikeCOG(t *testing.T) {
	tests := []struct {
		name string
		head []byte
		want bool
	}{
		{"cog", append([]byte{'M', 'M', 0, 42}, []byte("LAYOUT=COG")...), true},
		{"bigtiff cog", append([]byte{'I', 'I', 43, 0}, []byte("LAYOUT=COG")...), true},
		{"plain tiff", []byte{'I', 'I', 42, 0, 8, 0, 0, 0}, false},
		{"not tiff", []byte("LAYOUT=COG"), false},
		{"short", []byte{'I'}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := looksLikeCOG(tt.head); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
