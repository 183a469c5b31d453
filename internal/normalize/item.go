package normalize

import (
	"strings"

	"github.com/robert-malhotra/stac-federator/internal/stac"
	"github.com/robert-malhotra/stac-federator/pkg/geojson"
)

// Options describe the provider an item is being normalized for.
type Options struct {
	ProviderID   string
	ProviderName string
	// Collection overrides the upstream collection id when set.
	Collection string
	Bands      BandMap
	// RequiresAuth marks every asset as needing credentials.
	RequiresAuth bool
	// DefaultGSD is used when the upstream reports no GSD. Zero means none,
	// in which case GSD stays unset.
	DefaultGSD float64
	// DefaultPlatform is used when the upstream reports no platform.
	DefaultPlatform string
}

// reserved properties are produced by the normalizer and never copied from
// the upstream as-is.
var reserved = map[string]bool{
	"datetime":       true,
	"eo:cloud_cover": true,
	"cloudCover":     true,
	"gsd":            true,
	"eo:gsd":         true,
	"platform":       true,
}

// Item converts an upstream item into canonical form. It never fails:
// missing optional fields are left unset.
func Item(raw *stac.RawItem, opts Options) *stac.Item {
	props := raw.Properties
	if props == nil {
		props = map[string]any{}
	}

	collection := opts.Collection
	if collection == "" {
		collection = raw.Collection
	}

	bbox := raw.BBox
	if len(bbox) < 4 {
		if computed, err := geojson.BBoxFromRaw(raw.Geometry); err == nil {
			bbox = computed
		}
	}

	item := &stac.Item{
		Type:       "Feature",
		Version:    raw.Version,
		Extensions: raw.Extensions,
		ID:         opts.ProviderID + ":" + raw.ID,
		Collection: collection,
		Geometry:   raw.Geometry,
		BBox:       bbox,
		Assets:     Assets(raw.Assets, opts.Bands, opts.RequiresAuth),
		Links:      viaLinks(raw.Links),
	}
	if item.Version == "" {
		item.Version = stac.Version
	}
	if len(item.Geometry) == 0 {
		item.Geometry = []byte("null")
	}

	p := stac.Properties{
		CloudCover:   CloudCover(props),
		GSD:          GSD(props),
		Platform:     String(props, "platform"),
		Provider:     opts.ProviderID,
		ProviderName: opts.ProviderName,
		OriginalID:   raw.ID,
	}
	if dt, ok := Datetime(props); ok {
		p.Datetime = dt
	}
	if p.GSD == nil && opts.DefaultGSD > 0 {
		gsd := opts.DefaultGSD
		p.GSD = &gsd
	}
	if p.Platform == "" {
		p.Platform = opts.DefaultPlatform
	}
	if p.Platform == "" {
		p.Platform = collection
	}

	for k, v := range props {
		if reserved[k] || strings.HasPrefix(k, "fed:") {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]any)
		}
		p.Extra[k] = v
	}
	item.Properties = p

	return item
}

// viaLinks keeps the upstream self link as a "via" link so a caller can
// reach the original record.
func viaLinks(links []*stac.Link) []*stac.Link {
	out := make([]*stac.Link, 0, 1)
	for _, l := range links {
		if l != nil && l.Rel == "self" && l.Href != "" {
			out = append(out, &stac.Link{
				Rel:  "via",
				Href: l.Href,
				Type: "application/geo+json",
			})
			break
		}
	}
	return out
}
