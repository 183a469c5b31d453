// Package normalize maps upstream STAC items into the canonical scene model.
// Every function here is pure: no I/O and no shared state.
package normalize

// BandMap maps upstream asset keys to canonical band names.
type BandMap map[string]string

// Canonical returns the canonical name for an upstream asset key. Unmapped
// keys pass through unchanged so new upstream bands stay visible.
func (m BandMap) Canonical(key string) string {
	if name, ok := m[key]; ok {
		return name
	}
	return key
}

// Sentinel2Bands covers the Copernicus and Planetary Computer asset keys for
// Sentinel-2 L2A.
var Sentinel2Bands = BandMap{
	"B01": "coastal",
	"B02": "blue",
	"B03": "green",
	"B04": "red",
	"B05": "rededge1",
	"B06": "rededge2",
	"B07": "rededge3",
	"B08": "nir",
	"B8A": "nir08",
	"B09": "nir09",
	"B11": "swir16",
	"B12": "swir22",
	"SCL": "scl",

	"coastal-aerosol":  "coastal",
	"blue":             "blue",
	"green":            "green",
	"red":              "red",
	"rededge-1":        "rededge1",
	"rededge-2":        "rededge2",
	"rededge-3":        "rededge3",
	"nir":              "nir",
	"nir-narrow":       "nir08",
	"water-vapor":      "nir09",
	"swir16":           "swir16",
	"swir22":           "swir22",
	"scl":              "scl",
	"visual":           "visual",
	"thumbnail":        "thumbnail",
	"rendered_preview": "thumbnail",
}

// LandsatBands covers the USGS and Planetary Computer asset keys for
// Landsat Collection 2 Level-2.
var LandsatBands = BandMap{
	"coastal": "coastal",
	"blue":    "blue",
	"green":   "green",
	"red":     "red",
	"nir08":   "nir",
	"swir16":  "swir16",
	"swir22":  "swir22",
	"lwir11":  "lwir11",

	"SR_B1": "coastal",
	"SR_B2": "blue",
	"SR_B3": "green",
	"SR_B4": "red",
	"SR_B5": "nir",
	"SR_B6": "swir16",
	"SR_B7": "swir22",

	"thumbnail":        "thumbnail",
	"rendered_preview": "thumbnail",
}
