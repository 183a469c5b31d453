// Package geojson provides the small amount of GeoJSON geometry handling the
// federator needs: parsing raw geometries, bounding boxes and bbox overlap.
package geojson

import (
	"encoding/json"
	"fmt"
	"math"
)

// Geometry represents a GeoJSON geometry object.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates,omitempty"`
	Geometries  []*Geometry     `json:"geometries,omitempty"`
}

// Parse decodes a raw GeoJSON geometry.
func Parse(raw json.RawMessage) (*Geometry, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("geometry is empty")
	}
	var g Geometry
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal geometry: %w", err)
	}
	return &g, nil
}

// BBox computes the bounding box of the geometry.
// Returns [west, south, east, north].
func (g *Geometry) BBox() ([]float64, error) {
	return ComputeBBox(g)
}

// ComputeBBox computes the bounding box of any geometry type, including
// GeometryCollection. Returns [west, south, east, north].
func ComputeBBox(g *Geometry) ([]float64, error) {
	if g == nil {
		return nil, fmt.Errorf("geometry is nil")
	}

	b := &bounds{
		minLon: math.Inf(1), minLat: math.Inf(1),
		maxLon: math.Inf(-1), maxLat: math.Inf(-1),
	}
	if err := b.addGeometry(g); err != nil {
		return nil, err
	}

	if math.IsInf(b.minLon, 0) || math.IsInf(b.minLat, 0) {
		return nil, fmt.Errorf("failed to compute bounding box: no valid coordinates found")
	}

	return []float64{b.minLon, b.minLat, b.maxLon, b.maxLat}, nil
}

// BBoxFromRaw parses a raw geometry and returns its bounding box.
func BBoxFromRaw(raw json.RawMessage) ([]float64, error) {
	g, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return ComputeBBox(g)
}

type bounds struct {
	minLon, minLat, maxLon, maxLat float64
}

func (b *bounds) addGeometry(g *Geometry) error {
	switch g.Type {
	case "Point", "MultiPoint", "LineString", "MultiLineString", "Polygon", "MultiPolygon":
		var coords any
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return fmt.Errorf("failed to unmarshal %s coordinates: %w", g.Type, err)
		}
		b.walk(coords)
		return nil
	case "GeometryCollection":
		for _, child := range g.Geometries {
			if child == nil {
				continue
			}
			if err := b.addGeometry(child); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported geometry type: %s", g.Type)
	}
}

// walk descends nested coordinate arrays down to positions.
func (b *bounds) walk(v any) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return
	}

	if lon, ok := arr[0].(float64); ok {
		if len(arr) < 2 {
			return
		}
		lat, ok := arr[1].(float64)
		if !ok {
			return
		}
		b.minLon = math.Min(b.minLon, lon)
		b.maxLon = math.Max(b.maxLon, lon)
		b.minLat = math.Min(b.minLat, lat)
		b.maxLat = math.Max(b.maxLat, lat)
		return
	}

	for _, child := range arr {
		b.walk(child)
	}
}

// NewPolygonFromBBox creates a polygon geometry from a bounding box.
// bbox should be [west, south, east, north].
func NewPolygonFromBBox(bbox []float64) (*Geometry, error) {
	if len(bbox) != 4 {
		return nil, fmt.Errorf("bbox must have 4 values [west, south, east, north], got %d", len(bbox))
	}

	west, south, east, north := bbox[0], bbox[1], bbox[2], bbox[3]

	coords := [][][]float64{
		{
			{west, south},
			{east, south},
			{east, north},
			{west, north},
			{west, south},
		},
	}

	coordsJSON, err := json.Marshal(coords)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal polygon coordinates: %w", err)
	}

	return &Geometry{
		Type:        "Polygon",
		Coordinates: coordsJSON,
	}, nil
}

// BBoxIntersects reports whether two [west, south, east, north] boxes share
// at least one point. Touching edges count as intersecting.
func BBoxIntersects(a, b []float64) bool {
	if len(a) != 4 || len(b) != 4 {
		return false
	}
	return a[0] <= b[2] && b[0] <= a[2] && a[1] <= b[3] && b[1] <= a[3]
}
