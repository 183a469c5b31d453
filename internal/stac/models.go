// Package stac defines the canonical scene model served by the federator,
// wrapping planetlabs/go-stac for links and collections and adding the
// federation-specific item, asset and search types.
package stac

import (
	"encoding/json"
	"fmt"
	"time"

	gostac "github.com/planetlabs/go-stac"
)

// Re-export core types from planetlabs/go-stac for convenience
type (
	Collection = gostac.Collection
	Link       = gostac.Link
	Provider   = gostac.Provider
	Extent     = gostac.Extent
)

// Version is the STAC version stamped on canonical items.
const Version = "1.0.0"

// Property keys owned by the federator.
const (
	PropProvider     = "fed:provider"
	PropProviderName = "fed:provider_name"
	PropOriginalID   = "fed:original_id"
	PropDuplicates   = "fed:duplicates"
)

// Item is one satellite scene in canonical form. ID is always
// "<providerId>:<originalId>" and Assets is keyed by canonical band name.
type Item struct {
	Type       string            `json:"type"`
	Version    string            `json:"stac_version"`
	Extensions []string          `json:"stac_extensions,omitempty"`
	ID         string            `json:"id"`
	Collection string            `json:"collection,omitempty"`
	Geometry   json.RawMessage   `json:"geometry"`
	BBox       []float64         `json:"bbox,omitempty"`
	Properties Properties        `json:"properties"`
	Assets     map[string]*Asset `json:"assets"`
	Links      []*gostac.Link    `json:"links"`
}

// Properties holds the normalized scene metadata. Optional numeric fields are
// pointers so that an unreported value is never confused with zero.
type Properties struct {
	Datetime     time.Time
	CloudCover   *float64
	Platform     string
	GSD          *float64
	Provider     string
	ProviderName string
	OriginalID   string
	// Duplicates lists canonical ids of items from other providers that
	// describe the same acquisition and were folded into this one.
	Duplicates []string
	// Extra carries upstream properties that have no canonical field.
	Extra map[string]any
}

// MarshalJSON flattens the canonical fields and Extra into one object.
func (p Properties) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(p.Extra)+8)
	for k, v := range p.Extra {
		out[k] = v
	}

	if p.Datetime.IsZero() {
		out["datetime"] = nil
	} else {
		out["datetime"] = p.Datetime.UTC().Format(time.RFC3339Nano)
	}
	if p.CloudCover != nil {
		out["eo:cloud_cover"] = *p.CloudCover
	}
	if p.Platform != "" {
		out["platform"] = p.Platform
	}
	if p.GSD != nil {
		out["gsd"] = *p.GSD
	}
	out[PropProvider] = p.Provider
	out[PropProviderName] = p.ProviderName
	out[PropOriginalID] = p.OriginalID
	if len(p.Duplicates) > 0 {
		out[PropDuplicates] = p.Duplicates
	}

	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (p *Properties) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*p = Properties{}

	if s, ok := raw["datetime"].(string); ok {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid datetime %q: %w", s, err)
		}
		p.Datetime = t
	}
	if v, ok := raw["eo:cloud_cover"].(float64); ok {
		p.CloudCover = &v
	}
	if v, ok := raw["gsd"].(float64); ok {
		p.GSD = &v
	}
	p.Platform, _ = raw["platform"].(string)
	p.Provider, _ = raw[PropProvider].(string)
	p.ProviderName, _ = raw[PropProviderName].(string)
	p.OriginalID, _ = raw[PropOriginalID].(string)
	if dups, ok := raw[PropDuplicates].([]any); ok {
		for _, d := range dups {
			if s, ok := d.(string); ok {
				p.Duplicates = append(p.Duplicates, s)
			}
		}
	}

	for _, k := range []string{"datetime", "eo:cloud_cover", "gsd", "platform", PropProvider, PropProviderName, PropOriginalID, PropDuplicates} {
		delete(raw, k)
	}
	if len(raw) > 0 {
		p.Extra = raw
	}

	return nil
}

// Asset is one downloadable file of a scene, keyed on the item by its
// canonical band name.
type Asset struct {
	Href           string                    `json:"href"`
	Type           string                    `json:"type,omitempty"`
	Title          string                    `json:"title,omitempty"`
	Roles          []string                  `json:"roles,omitempty"`
	Bands          []Band                    `json:"eo:bands,omitempty"`
	Alternate      map[string]AlternateAsset `json:"alternate,omitempty"`
	BandName       string                    `json:"fed:band_name"`
	SourceKey      string                    `json:"fed:source_key,omitempty"`
	CloudOptimized bool                      `json:"fed:is_cog"`
	RequiresAuth   bool                      `json:"fed:requires_auth"`
	AlternateHrefs []AlternateHref           `json:"fed:alternate_hrefs,omitempty"`
}

// DirectAccess reports whether the asset can be read as-is, without
// signing or conversion.
func (a *Asset) DirectAccess() bool {
	return a.CloudOptimized && !a.RequiresAuth
}

// Band describes one spectral band of an asset (eo extension).
type Band struct {
	Name             string   `json:"name,omitempty"`
	CommonName       string   `json:"common_name,omitempty"`
	CenterWavelength *float64 `json:"center_wavelength,omitempty"`
}

// AlternateAsset is an alternate access location declared by the upstream
// (STAC alternate-assets extension), e.g. an s3:// href.
type AlternateAsset struct {
	Href string `json:"href"`
}

// AlternateHref is a fallback access path for the same band, contributed by a
// duplicate item from another provider.
type AlternateHref struct {
	Provider string `json:"provider"`
	SceneID  string `json:"scene_id"`
	Href     string `json:"href"`
}

// ItemCollection is the federated search response body.
type ItemCollection struct {
	Type     string         `json:"type"` // "FeatureCollection"
	Features []*Item        `json:"features"`
	Context  Context        `json:"context"`
	Warnings []string       `json:"warnings"`
	Links    []*gostac.Link `json:"links,omitempty"`
}

// Context reports result counts (STAC Context extension).
type Context struct {
	Matched  int `json:"matched"`
	Returned int `json:"returned"`
	Limit    int `json:"limit"`
}

// NewItemCollection creates an ItemCollection with counts set from items.
func NewItemCollection(items []*Item, matched, limit int, warnings []string) *ItemCollection {
	if items == nil {
		items = []*Item{}
	}
	if warnings == nil {
		warnings = []string{}
	}
	return &ItemCollection{
		Type:     "FeatureCollection",
		Features: items,
		Context: Context{
			Matched:  matched,
			Returned: len(items),
			Limit:    limit,
		},
		Warnings: warnings,
	}
}

// AddLink adds a link to the ItemCollection.
func (ic *ItemCollection) AddLink(rel, href, mediaType string) {
	ic.Links = append(ic.Links, &gostac.Link{
		Rel:  rel,
		Href: href,
		Type: mediaType,
	})
}

// NewCollection creates a new STAC Collection with the given ID.
func NewCollection(id, title, description, version string) *gostac.Collection {
	return &gostac.Collection{
		Version:     version,
		Id:          id,
		Title:       title,
		Description: description,
		Links:       make([]*gostac.Link, 0),
		Summaries:   make(map[string]any),
	}
}

// CollectionsList represents a list of collections response.
type CollectionsList struct {
	Collections []*gostac.Collection `json:"collections"`
	Links       []*gostac.Link       `json:"links"`
}

// LandingPage represents the API landing page response.
type LandingPage struct {
	Type        string         `json:"type"` // "Catalog"
	Id          string         `json:"id"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description"`
	StacVersion string         `json:"stac_version"`
	ConformsTo  []string       `json:"conformsTo,omitempty"`
	Links       []*gostac.Link `json:"links"`
}

// AddLink adds a link to the landing page.
func (lp *LandingPage) AddLink(rel, href, mediaType string) {
	lp.Links = append(lp.Links, &gostac.Link{
		Rel:  rel,
		Href: href,
		Type: mediaType,
	})
}

// Standard STAC conformance URIs
const (
	ConformanceCore       = "https://api.stacspec.org/v1.0.0/core"
	ConformanceItemSearch = "https://api.stacspec.org/v1.0.0/item-search"
	ConformanceContext    = "https://api.stacspec.org/v1.0.0-rc.2/item-search#context"
	ConformanceCollection = "https://api.stacspec.org/v1.0.0/collections"
)

// DefaultConformance returns the conformance classes the federator implements.
func DefaultConformance() []string {
	return []string{
		ConformanceCore,
		ConformanceItemSearch,
		ConformanceContext,
		ConformanceCollection,
	}
}
