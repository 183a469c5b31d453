// Package assets resolves the download URLs of a scene's bands.
package assets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/stac-federator/internal/metrics"
	"github.com/robert-malhotra/stac-federator/internal/normalize"
	"github.com/robert-malhotra/stac-federator/internal/provider"
	"github.com/robert-malhotra/stac-federator/internal/stac"
)

// Band resolution statuses.
const (
	StatusReady = "ready"
	StatusError = "error"
)

// FormatCOG is the only output format the resolver understands.
const FormatCOG = "cog"

const resolveParallelism = 8

// ErrUnsupportedFormat is returned for any format other than FormatCOG.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Band is the resolution of one band.
type Band struct {
	Href               string `json:"href,omitempty"`
	Type               string `json:"type,omitempty"`
	IsCOG              bool   `json:"is_cog"`
	RequiresAuth       bool   `json:"requires_auth"`
	RequiresConversion bool   `json:"requires_conversion,omitempty"`
	Status             string `json:"status"`
	Error              string `json:"error,omitempty"`
}

// Resolution is the per-band result for one scene.
type Resolution struct {
	SceneID string           `json:"scene_id"`
	Assets  map[string]*Band `json:"assets"`
}

// Resolver resolves band URLs through the owning provider adapter.
type Resolver struct {
	registry *provider.Registry
	prober   *Prober
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(registry *provider.Registry, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{registry: registry, logger: logger}
}

// WithProber enables COG header inspection for GeoTIFFs that the
// host-based heuristic did not classify.
func (r *Resolver) WithProber(client *http.Client) *Resolver {
	r.prober = NewProber(client)
	return r
}

// WithMetrics records band resolutions on m.
func (r *Resolver) WithMetrics(m *metrics.Metrics) *Resolver {
	r.metrics = m
	return r
}

// Resolve resolves bands of sceneID, or every band when bands is empty.
// Scene-level failures (unknown provider, scene not found, upstream error)
// are returned as errors; band-level failures are reported per band.
func (r *Resolver) Resolve(ctx context.Context, sceneID string, bands []string, format string) (*Resolution, error) {
	if format != "" && format != FormatCOG {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	adapter, originalID, err := r.registry.ResolveScene(sceneID)
	if err != nil {
		return nil, err
	}
	item, err := adapter.GetScene(ctx, originalID)
	if err != nil {
		return nil, provider.Classify(err)
	}

	if len(bands) == 0 {
		for name := range item.Assets {
			bands = append(bands, name)
		}
		slices.Sort(bands)
	}

	results := make([]*Band, len(bands))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveParallelism)

	for i, name := range bands {
		g.Go(func() error {
			results[i] = r.resolveBand(gctx, adapter, item, originalID, name, format)
			return nil
		})
	}
	_ = g.Wait()

	resolution := &Resolution{SceneID: sceneID, Assets: make(map[string]*Band, len(bands))}
	for i, name := range bands {
		resolution.Assets[name] = results[i]
		r.metrics.AssetResolved(results[i].Status)
	}
	return resolution, nil
}

func (r *Resolver) resolveBand(ctx context.Context, adapter provider.Adapter, item *stac.Item, originalID, name, format string) *Band {
	asset, ok := item.Assets[name]
	if !ok || asset == nil {
		return &Band{Status: StatusError, Error: fmt.Sprintf("band %q not found on scene", name)}
	}

	band := &Band{
		Type:         asset.Type,
		IsCOG:        asset.CloudOptimized,
		RequiresAuth: asset.RequiresAuth,
	}

	if asset.DirectAccess() {
		band.Href = asset.Href
	} else {
		href, err := resolveHref(ctx, adapter, item, originalID, name)
		if err != nil {
			r.logger.WarnContext(ctx, "asset resolution failed",
				slog.String("scene_id", item.ID),
				slog.String("band", name),
				slog.String("error", err.Error()),
			)
			band.Status = StatusError
			band.Error = bandError(err)
			return band
		}
		band.Href = href
		// A signed URL no longer needs the caller's credentials.
		if href != asset.Href {
			band.RequiresAuth = false
		}
	}

	if !band.IsCOG && r.prober != nil && normalize.IsGeoTIFF(asset.Type) {
		band.IsCOG = r.prober.IsCOG(ctx, band.Href)
	}
	if format == FormatCOG && !band.IsCOG {
		band.RequiresConversion = true
	}

	band.Status = StatusReady
	return band
}

// resolveHref resolves from the fetched scene when the adapter supports it,
// so a multi-band request costs one upstream item GET.
func resolveHref(ctx context.Context, adapter provider.Adapter, item *stac.Item, originalID, name string) (string, error) {
	if sr, ok := adapter.(provider.SceneResolver); ok {
		return sr.ResolveSceneAsset(ctx, item, name)
	}
	return adapter.ResolveAssetURL(ctx, originalID, name)
}

func bandError(err error) string {
	switch {
	case errors.Is(err, provider.ErrAssetNotFound):
		return "asset not found"
	case errors.Is(err, provider.ErrSigning):
		return "failed to sign asset URL"
	case errors.Is(err, provider.ErrUpstreamTimeout):
		return "provider timed out"
	default:
		return "failed to resolve asset URL"
	}
}
