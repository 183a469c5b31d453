package provider

import (
	"context"
	"log/slog"
	"strings"

	"github.com/robert-malhotra/stac-federator/internal/normalize"
	"github.com/robert-malhotra/stac-federator/internal/stac"
	"github.com/robert-malhotra/stac-federator/internal/stacapi"
)

// USGS LandsatLook STAC server.
const (
	LandsatID                 = "landsat-c2-l2"
	LandsatName               = "Landsat Collection 2 L2 (USGS)"
	LandsatBaseURL            = "https://landsatlook.usgs.gov/stac-server"
	landsatCollection         = "landsat-c2-l2"
	landsatUpstreamCollection = "landsat-c2l2-sr"
	landsatGSD                = 30
)

// Landsat searches Landsat Collection 2 Level-2 surface reflectance on the
// USGS LandsatLook STAC server, which supports cloud cover queries. Assets
// are COGs with anonymous https access; when a presigner is configured,
// requester-pays s3:// alternates are resolved to presigned URLs instead.
type Landsat struct {
	client    *stacapi.Client
	presigner Signer
	logger    *slog.Logger
}

// NewLandsat creates the USGS adapter.
func NewLandsat(client *stacapi.Client, logger *slog.Logger) *Landsat {
	return &Landsat{client: client, logger: logger}
}

// WithPresigner resolves assets through their s3:// alternate hrefs.
func (l *Landsat) WithPresigner(p Signer) *Landsat {
	l.presigner = p
	return l
}

// Descriptor implements Adapter.
func (l *Landsat) Descriptor() Descriptor {
	return Descriptor{
		ID:            LandsatID,
		Name:          LandsatName,
		Collections:   []string{landsatCollection},
		Authoritative: []string{normalize.MissionLandsat},
	}
}

// Search implements Adapter.
func (l *Landsat) Search(ctx context.Context, params *stac.SearchParams) *Result {
	req, err := upstreamSearch(params, []string{landsatUpstreamCollection}, true)
	if err != nil {
		return FailedResult(l.Descriptor(), err)
	}

	raw, err := l.client.Search(ctx, req)
	if err != nil {
		l.logger.WarnContext(ctx, "landsat search failed", slog.String("error", err.Error()))
		return FailedResult(l.Descriptor(), err)
	}

	items := make([]*stac.Item, 0, len(raw.Features))
	for _, f := range raw.Features {
		if f == nil {
			continue
		}
		items = append(items, l.normalize(f))
	}

	return &Result{Items: items, Matched: raw.Matched()}
}

// GetScene implements Adapter.
func (l *Landsat) GetScene(ctx context.Context, originalID string) (*stac.Item, error) {
	raw, err := l.client.GetItem(ctx, landsatUpstreamCollection, originalID)
	if err != nil {
		return nil, Classify(err)
	}
	return l.normalize(raw), nil
}

// ResolveAssetURL implements Adapter.
func (l *Landsat) ResolveAssetURL(ctx context.Context, originalID, band string) (string, error) {
	item, err := l.GetScene(ctx, originalID)
	if err != nil {
		return "", err
	}
	return l.ResolveSceneAsset(ctx, item, band)
}

// ResolveSceneAsset implements SceneResolver. With a presigner, an s3://
// alternate is preferred over the https href.
func (l *Landsat) ResolveSceneAsset(ctx context.Context, item *stac.Item, band string) (string, error) {
	asset, err := findAsset(item, item.Properties.OriginalID, band)
	if err != nil {
		return "", err
	}

	if l.presigner != nil {
		if alt, ok := asset.Alternate["s3"]; ok && strings.HasPrefix(alt.Href, "s3://") {
			return l.presigner.Sign(ctx, alt.Href)
		}
	}
	return asset.Href, nil
}

func (l *Landsat) normalize(raw *stac.RawItem) *stac.Item {
	return normalize.Item(raw, normalize.Options{
		ProviderID:      LandsatID,
		ProviderName:    LandsatName,
		Collection:      landsatCollection,
		Bands:           normalize.LandsatBands,
		DefaultGSD:      landsatGSD,
		DefaultPlatform: "landsat",
	})
}
