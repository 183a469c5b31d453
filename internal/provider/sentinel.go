package provider

import (
	"context"
	"log/slog"

	"github.com/robert-malhotra/stac-federator/internal/normalize"
	"github.com/robert-malhotra/stac-federator/internal/stac"
	"github.com/robert-malhotra/stac-federator/internal/stacapi"
)

// Copernicus Data Space Ecosystem STAC API.
const (
	SentinelID         = "sentinel-2-l2a"
	SentinelName       = "Sentinel-2 L2A (Copernicus)"
	SentinelBaseURL    = "https://stac.dataspace.copernicus.eu/v1"
	sentinelCollection = "sentinel-2-l2a"
	sentinelGSD        = 10
)

// Sentinel searches Sentinel-2 L2A on the Copernicus Data Space. The API is
// queried by bbox and datetime only; cloud cover is left to the post-filter.
// Every asset requires a CDSE login to download.
type Sentinel struct {
	client *stacapi.Client
	logger *slog.Logger
}

// NewSentinel creates the Copernicus adapter.
func NewSentinel(client *stacapi.Client, logger *slog.Logger) *Sentinel {
	return &Sentinel{client: client, logger: logger}
}

// Descriptor implements Adapter.
func (s *Sentinel) Descriptor() Descriptor {
	return Descriptor{
		ID:            SentinelID,
		Name:          SentinelName,
		Collections:   []string{sentinelCollection},
		Authoritative: []string{normalize.MissionSentinel2},
	}
}

// Search implements Adapter.
func (s *Sentinel) Search(ctx context.Context, params *stac.SearchParams) *Result {
	req, err := upstreamSearch(params, []string{sentinelCollection}, false)
	if err != nil {
		return FailedResult(s.Descriptor(), err)
	}

	raw, err := s.client.Search(ctx, req)
	if err != nil {
		s.logger.WarnContext(ctx, "sentinel search failed", slog.String("error", err.Error()))
		return FailedResult(s.Descriptor(), err)
	}

	items := make([]*stac.Item, 0, len(raw.Features))
	for _, f := range raw.Features {
		if f == nil {
			continue
		}
		items = append(items, s.normalize(f))
	}

	return &Result{Items: items, Matched: raw.Matched()}
}

// GetScene implements Adapter.
func (s *Sentinel) GetScene(ctx context.Context, originalID string) (*stac.Item, error) {
	raw, err := s.client.GetItem(ctx, sentinelCollection, originalID)
	if err != nil {
		return nil, Classify(err)
	}
	return s.normalize(raw), nil
}

// ResolveAssetURL implements Adapter. CDSE offers no URL signing, so the
// href is returned as-is and the asset keeps its requires-auth flag.
func (s *Sentinel) ResolveAssetURL(ctx context.Context, originalID, band string) (string, error) {
	item, err := s.GetScene(ctx, originalID)
	if err != nil {
		return "", err
	}
	return s.ResolveSceneAsset(ctx, item, band)
}

// ResolveSceneAsset implements SceneResolver.
func (s *Sentinel) ResolveSceneAsset(ctx context.Context, item *stac.Item, band string) (string, error) {
	asset, err := findAsset(item, item.Properties.OriginalID, band)
	if err != nil {
		return "", err
	}
	return asset.Href, nil
}

func (s *Sentinel) normalize(raw *stac.RawItem) *stac.Item {
	return normalize.Item(raw, normalize.Options{
		ProviderID:      SentinelID,
		ProviderName:    SentinelName,
		Collection:      sentinelCollection,
		Bands:           normalize.Sentinel2Bands,
		RequiresAuth:    true,
		DefaultGSD:      sentinelGSD,
		DefaultPlatform: "sentinel-2",
	})
}
