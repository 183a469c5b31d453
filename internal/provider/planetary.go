package provider

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/stac-federator/internal/normalize"
	"github.com/robert-malhotra/stac-federator/internal/stac"
	"github.com/robert-malhotra/stac-federator/internal/stacapi"
)

// Microsoft Planetary Computer STAC API.
const (
	PlanetaryID      = "planetary-computer"
	PlanetaryName    = "Microsoft Planetary Computer"
	PlanetaryBaseURL = "https://planetarycomputer.microsoft.com/api/stac/v1"

	pcSentinelCollection = "sentinel-2-l2a"
	pcLandsatCollection  = "landsat-c2-l2-sr"

	// azureBlobHost marks hrefs that need a SAS token to download.
	azureBlobHost = "blob.core.windows.net"

	thumbnailSigningLimit = 8
)

// preview assets are signed during search so result lists can render them.
var previewBands = []string{"thumbnail", "rendered_preview", "visual"}

// Planetary searches Sentinel-2 and Landsat on the Planetary Computer.
// Assets live in Azure blob storage and are signed with SAS tokens.
type Planetary struct {
	client *stacapi.Client
	signer Signer
	logger *slog.Logger
}

// NewPlanetary creates the Planetary Computer adapter.
func NewPlanetary(client *stacapi.Client, signer Signer, logger *slog.Logger) *Planetary {
	return &Planetary{client: client, signer: signer, logger: logger}
}

// Descriptor implements Adapter.
func (p *Planetary) Descriptor() Descriptor {
	return Descriptor{
		ID:          PlanetaryID,
		Name:        PlanetaryName,
		Collections: []string{pcSentinelCollection, pcLandsatCollection},
	}
}

// Search implements Adapter.
func (p *Planetary) Search(ctx context.Context, params *stac.SearchParams) *Result {
	collections := p.Descriptor().Collections
	if params.HasCollectionFilter() {
		collections = slices.DeleteFunc(slices.Clone(params.Collections), func(c string) bool {
			return !slices.Contains(p.Descriptor().Collections, c)
		})
	}
	if len(collections) == 0 {
		return &Result{Items: []*stac.Item{}}
	}

	req, err := upstreamSearch(params, collections, true)
	if err != nil {
		return FailedResult(p.Descriptor(), err)
	}

	raw, err := p.client.Search(ctx, req)
	if err != nil {
		p.logger.WarnContext(ctx, "planetary computer search failed", slog.String("error", err.Error()))
		return FailedResult(p.Descriptor(), err)
	}

	items := make([]*stac.Item, 0, len(raw.Features))
	for _, f := range raw.Features {
		if f == nil {
			continue
		}
		items = append(items, p.normalize(f))
	}

	p.signPreviews(ctx, items)

	return &Result{Items: items, Matched: raw.Matched()}
}

// signPreviews signs preview assets in place. A failed signature keeps the
// unsigned href.
func (p *Planetary) signPreviews(ctx context.Context, items []*stac.Item) {
	if p.signer == nil {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(thumbnailSigningLimit)

	for _, item := range items {
		for _, band := range previewBands {
			asset, ok := item.Assets[band]
			if !ok || !strings.Contains(asset.Href, azureBlobHost) {
				continue
			}
			g.Go(func() error {
				signed, err := p.signer.Sign(gctx, asset.Href)
				if err != nil {
					p.logger.DebugContext(gctx, "preview signing failed",
						slog.String("item_id", item.ID),
						slog.String("band", band),
						slog.String("error", err.Error()),
					)
					return nil
				}
				asset.Href = signed
				return nil
			})
		}
	}

	_ = g.Wait()
}

// GetScene implements Adapter. The upstream collection is inferred from the
// id: Sentinel-2 ids start with "S2".
func (p *Planetary) GetScene(ctx context.Context, originalID string) (*stac.Item, error) {
	collection := pcLandsatCollection
	if strings.HasPrefix(originalID, "S2") {
		collection = pcSentinelCollection
	}

	raw, err := p.client.GetItem(ctx, collection, originalID)
	if err != nil {
		return nil, Classify(err)
	}
	return p.normalize(raw), nil
}

// ResolveAssetURL implements Adapter.
func (p *Planetary) ResolveAssetURL(ctx context.Context, originalID, band string) (string, error) {
	item, err := p.GetScene(ctx, originalID)
	if err != nil {
		return "", err
	}
	return p.ResolveSceneAsset(ctx, item, band)
}

// ResolveSceneAsset implements SceneResolver. Azure blob hrefs are signed.
func (p *Planetary) ResolveSceneAsset(ctx context.Context, item *stac.Item, band string) (string, error) {
	asset, err := findAsset(item, item.Properties.OriginalID, band)
	if err != nil {
		return "", err
	}

	if p.signer == nil || !strings.Contains(asset.Href, azureBlobHost) {
		return asset.Href, nil
	}
	return p.signer.Sign(ctx, asset.Href)
}

func (p *Planetary) normalize(raw *stac.RawItem) *stac.Item {
	bands := normalize.LandsatBands
	if strings.Contains(raw.Collection, "sentinel") {
		bands = normalize.Sentinel2Bands
	}

	item := normalize.Item(raw, normalize.Options{
		ProviderID:   PlanetaryID,
		ProviderName: PlanetaryName,
		Bands:        bands,
	})

	// Blob assets are only readable with a SAS token, which ResolveAssetURL
	// obtains on the caller's behalf.
	for _, asset := range item.Assets {
		if strings.Contains(asset.Href, azureBlobHost) {
			asset.RequiresAuth = true
		}
	}
	return item
}
