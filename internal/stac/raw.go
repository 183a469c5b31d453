package stac

import "encoding/json"

// RawItem is an item as returned by an upstream STAC API, before
// normalization. Properties are kept untyped because every provider
// uses a different subset of extensions.
type RawItem struct {
	Type       string               `json:"type"`
	Version    string               `json:"stac_version,omitempty"`
	Extensions []string             `json:"stac_extensions,omitempty"`
	ID         string               `json:"id"`
	Collection string               `json:"collection,omitempty"`
	Geometry   json.RawMessage      `json:"geometry"`
	BBox       []float64            `json:"bbox,omitempty"`
	Properties map[string]any       `json:"properties"`
	Assets     map[string]*RawAsset `json:"assets"`
	Links      []*Link              `json:"links,omitempty"`
}

// RawAsset is an upstream asset object.
type RawAsset struct {
	Href      string                    `json:"href"`
	Type      string                    `json:"type,omitempty"`
	Title     string                    `json:"title,omitempty"`
	Roles     []string                  `json:"roles,omitempty"`
	Bands     []Band                    `json:"eo:bands,omitempty"`
	Alternate map[string]AlternateAsset `json:"alternate,omitempty"`
}

// RawItemCollection is an upstream /search response page.
type RawItemCollection struct {
	Type          string     `json:"type"`
	Features      []*RawItem `json:"features"`
	NumberMatched *int       `json:"numberMatched,omitempty"`
	Context       *struct {
		Matched *int `json:"matched,omitempty"`
	} `json:"context,omitempty"`
}

// Matched returns the upstream total hit count if it reported one.
func (c *RawItemCollection) Matched() *int {
	if c.Context != nil && c.Context.Matched != nil {
		return c.Context.Matched
	}
	return c.NumberMatched
}
