package normalize

import (
	"net/url"
	"sort"
	"strings"

	"github.com/robert-malhotra/stac-federator/internal/stac"
)

// cloudNativeHosts serve GeoTIFFs that are known to be cloud-optimized.
// Matching is by substring of the href, so bucket names work too.
var cloudNativeHosts = []string{
	"planetarycomputer.microsoft.com",
	"landsatlook.usgs.gov",
	"sentinel-cogs",
}

// IsCloudOptimized classifies an asset as a Cloud-Optimized GeoTIFF. The
// check is a heuristic: an explicit cloud-optimized profile in the media
// type wins, otherwise a GeoTIFF-family type on a known cloud-native host.
func IsCloudOptimized(mediaType, href string) bool {
	t := strings.ToLower(mediaType)
	if strings.Contains(t, "cloud-optimized") {
		return true
	}

	if strings.Contains(t, "geotiff") || strings.Contains(t, "image/tiff") {
		for _, host := range cloudNativeHosts {
			if strings.Contains(href, host) {
				return true
			}
		}
	}

	return false
}

// IsGeoTIFF reports whether a media type belongs to the TIFF family.
func IsGeoTIFF(mediaType string) bool {
	t := strings.ToLower(mediaType)
	return strings.Contains(t, "geotiff") || strings.Contains(t, "image/tiff")
}

// MediaType guesses a MIME type from the href extension. Query strings and
// fragments (as on signed URLs) are ignored.
func MediaType(href string) string {
	path := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		path = u.Path
	}
	path = strings.ToLower(path)

	switch {
	case strings.HasSuffix(path, ".tif"), strings.HasSuffix(path, ".tiff"):
		return "image/tiff; application=geotiff"
	case strings.HasSuffix(path, ".jp2"):
		return "image/jp2"
	case strings.HasSuffix(path, ".jpg"), strings.HasSuffix(path, ".jpeg"):
		return "image/jpeg"
	case strings.HasSuffix(path, ".png"):
		return "image/png"
	case strings.HasSuffix(path, ".json"):
		return "application/json"
	case strings.HasSuffix(path, ".xml"):
		return "application/xml"
	case strings.HasSuffix(path, ".zip"):
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

// Assets converts upstream assets into the canonical band-keyed map. When two
// upstream keys map to the same band, the key that already equals the
// canonical name wins, otherwise the lexically first key.
func Assets(raw map[string]*stac.RawAsset, bands BandMap, requiresAuth bool) map[string]*stac.Asset {
	keys := make([]string, 0, len(raw))
	for k, a := range raw {
		if a == nil || a.Href == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]*stac.Asset, len(keys))
	for _, key := range keys {
		src := raw[key]
		name := bands.Canonical(key)

		if existing, ok := out[name]; ok && (existing.SourceKey == name || key != name) {
			continue
		}

		mediaType := src.Type
		if mediaType == "" {
			mediaType = MediaType(src.Href)
		}

		out[name] = &stac.Asset{
			Href:           src.Href,
			Type:           mediaType,
			Title:          src.Title,
			Roles:          src.Roles,
			Bands:          src.Bands,
			Alternate:      src.Alternate,
			BandName:       name,
			SourceKey:      key,
			CloudOptimized: IsCloudOptimized(mediaType, src.Href),
			RequiresAuth:   requiresAuth,
		}
	}

	return out
}
