package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CollectionConfig describes a canonical collection served by the
// federator. Definitions come from JSON files in the collections directory,
// or from DefaultCollections when no directory is configured.
type CollectionConfig struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Keywords    []string       `json:"keywords,omitempty"`
	License     string         `json:"license"`
	Providers   []Provider     `json:"providers,omitempty"`
	Extent      Extent         `json:"extent"`
	Summaries   map[string]any `json:"summaries,omitempty"`
	Extensions  []string       `json:"stac_extensions,omitempty"`
}

// Provider represents a data provider in a STAC collection.
type Provider struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	URL         string   `json:"url,omitempty"`
}

// Extent defines the spatial and temporal extent of a collection.
type Extent struct {
	Spatial  SpatialExtent  `json:"spatial"`
	Temporal TemporalExtent `json:"temporal"`
}

// SpatialExtent defines the bounding boxes for a collection.
type SpatialExtent struct {
	BBox [][]float64 `json:"bbox"`
}

// TemporalExtent defines the time intervals for a collection.
type TemporalExtent struct {
	Interval [][]any `json:"interval"`
}

// CollectionRegistry holds all loaded collection configurations indexed by ID.
type CollectionRegistry struct {
	collections map[string]*CollectionConfig
}

// NewCollectionRegistry creates a new empty collection registry.
func NewCollectionRegistry() *CollectionRegistry {
	return &CollectionRegistry{
		collections: make(map[string]*CollectionConfig),
	}
}

var globalExtent = Extent{
	Spatial: SpatialExtent{BBox: [][]float64{{-180, -90, 180, 90}}},
}

// DefaultCollections returns the built-in collection definitions.
func DefaultCollections() *CollectionRegistry {
	sentinel := globalExtent
	sentinel.Temporal = TemporalExtent{Interval: [][]any{{"2015-06-27T10:25:31Z", nil}}}
	landsat := globalExtent
	landsat.Temporal = TemporalExtent{Interval: [][]any{{"1982-08-22T00:00:00Z", nil}}}

	registry := NewCollectionRegistry()
	for _, c := range []*CollectionConfig{
		{
			ID:          "sentinel-2-l2a",
			Title:       "Sentinel-2 Level-2A",
			Description: "Sentinel-2 MSI bottom-of-atmosphere surface reflectance, 10-60 m, from Copernicus Data Space and Microsoft Planetary Computer.",
			Keywords:    []string{"sentinel", "copernicus", "esa", "msi", "reflectance"},
			License:     "proprietary",
			Providers: []Provider{
				{Name: "ESA", Roles: []string{"producer", "licensor"}, URL: "https://sentinel.esa.int/web/sentinel/missions/sentinel-2"},
			},
			Extent:    sentinel,
			Summaries: map[string]any{"platform": []string{"sentinel-2a", "sentinel-2b", "sentinel-2c"}, "gsd": []int{10, 20, 60}},
		},
		{
			ID:          "landsat-c2-l2",
			Title:       "Landsat Collection 2 Level-2",
			Description: "Landsat 4-9 surface reflectance and surface temperature, 30 m, from the USGS LandsatLook STAC server.",
			Keywords:    []string{"landsat", "usgs", "nasa", "reflectance"},
			License:     "proprietary",
			Providers: []Provider{
				{Name: "USGS", Roles: []string{"producer", "licensor"}, URL: "https://www.usgs.gov/landsat-missions"},
			},
			Extent:    landsat,
			Summaries: map[string]any{"platform": []string{"landsat-4", "landsat-5", "landsat-7", "landsat-8", "landsat-9"}, "gsd": []int{30}},
		},
		{
			ID:          "landsat-c2-l2-sr",
			Title:       "Landsat Collection 2 Level-2 (Planetary Computer)",
			Description: "Landsat Collection 2 Level-2 surface reflectance as hosted on Microsoft Planetary Computer.",
			Keywords:    []string{"landsat", "usgs", "planetary-computer"},
			License:     "proprietary",
			Providers: []Provider{
				{Name: "USGS", Roles: []string{"producer", "licensor"}, URL: "https://www.usgs.gov/landsat-missions"},
				{Name: "Microsoft", Roles: []string{"host"}, URL: "https://planetarycomputer.microsoft.com"},
			},
			Extent:    landsat,
			Summaries: map[string]any{"gsd": []int{30}},
		},
	} {
		_ = registry.Add(c)
	}
	return registry
}

// LoadCollectionsOrDefault loads collections from dir, or returns the
// built-in definitions when dir is empty.
func LoadCollectionsOrDefault(dir string) (*CollectionRegistry, error) {
	if dir == "" {
		return DefaultCollections(), nil
	}
	return LoadCollections(dir)
}

// LoadCollections loads collection definitions from JSON files in the specified directory.
// It returns a CollectionRegistry containing all successfully loaded collections.
// Only files with a .json extension are processed.
func LoadCollections(collectionsDir string) (*CollectionRegistry, error) {
	registry := NewCollectionRegistry()

	// Check if directory exists
	info, err := os.Stat(collectionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to access collections directory %q: %w", collectionsDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("collections path %q is not a directory", collectionsDir)
	}

	entries, err := os.ReadDir(collectionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read collections directory %q: %w", collectionsDir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}

		filePath := filepath.Join(collectionsDir, entry.Name())
		collection, err := loadCollectionFile(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load collection from %q: %w", filePath, err)
		}

		if err := registry.Add(collection); err != nil {
			return nil, fmt.Errorf("failed to add collection from %q: %w", filePath, err)
		}
	}

	if registry.Count() == 0 {
		return nil, fmt.Errorf("no collection files found in %q", collectionsDir)
	}

	return registry, nil
}

// loadCollectionFile loads a single collection configuration from a JSON file.
func loadCollectionFile(filePath string) (*CollectionConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var collection CollectionConfig
	if err := json.Unmarshal(data, &collection); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	if err := validateCollection(&collection); err != nil {
		return nil, fmt.Errorf("invalid collection configuration: %w", err)
	}

	return &collection, nil
}

// validateCollection checks that a collection configuration is valid.
func validateCollection(c *CollectionConfig) error {
	if c.ID == "" {
		return fmt.Errorf("collection ID is required")
	}

	if strings.Contains(c.ID, ":") {
		return fmt.Errorf("collection ID %q cannot contain ':'", c.ID)
	}

	if c.Title == "" {
		return fmt.Errorf("collection title is required")
	}

	if c.Description == "" {
		return fmt.Errorf("collection description is required")
	}

	if c.License == "" {
		return fmt.Errorf("collection license is required")
	}

	// Validate spatial extent
	if len(c.Extent.Spatial.BBox) == 0 {
		return fmt.Errorf("collection must have at least one spatial bbox")
	}

	for i, bbox := range c.Extent.Spatial.BBox {
		if len(bbox) != 4 && len(bbox) != 6 {
			return fmt.Errorf("bbox[%d] must have 4 or 6 values, got %d", i, len(bbox))
		}
	}

	// Validate temporal extent
	if len(c.Extent.Temporal.Interval) == 0 {
		return fmt.Errorf("collection must have at least one temporal interval")
	}

	for i, interval := range c.Extent.Temporal.Interval {
		if len(interval) != 2 {
			return fmt.Errorf("temporal interval[%d] must have exactly 2 values, got %d", i, len(interval))
		}
	}

	return nil
}

// Add registers a collection in the registry.
// Returns an error if a collection with the same ID already exists.
func (r *CollectionRegistry) Add(collection *CollectionConfig) error {
	if collection == nil {
		return fmt.Errorf("cannot add nil collection")
	}

	if _, exists := r.collections[collection.ID]; exists {
		return fmt.Errorf("collection with ID %q already exists", collection.ID)
	}

	r.collections[collection.ID] = collection
	return nil
}

// Get retrieves a collection by ID.
// Returns nil if the collection does not exist.
func (r *CollectionRegistry) Get(id string) *CollectionConfig {
	return r.collections[id]
}

// Has checks if a collection with the given ID exists in the registry.
func (r *CollectionRegistry) Has(id string) bool {
	_, exists := r.collections[id]
	return exists
}

// All returns all collections sorted by ID.
func (r *CollectionRegistry) All() []*CollectionConfig {
	collections := make([]*CollectionConfig, 0, len(r.collections))
	for _, collection := range r.collections {
		collections = append(collections, collection)
	}
	sort.Slice(collections, func(i, j int) bool {
		return collections[i].ID < collections[j].ID
	})
	return collections
}

// IDs returns all collection IDs sorted.
func (r *CollectionRegistry) IDs() []string {
	ids := make([]string, 0, len(r.collections))
	for id := range r.collections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of collections in the registry.
func (r *CollectionRegistry) Count() int {
	return len(r.collections)
}
