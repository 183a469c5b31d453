package normalize

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/robert-malhotra/stac-federator/internal/stac"
)

// Mission families used for cross-provider deduplication.
const (
	MissionSentinel2 = "sentinel-2"
	MissionLandsat   = "landsat"
)

var (
	// S2A_MSIL2A_20240101T185759_N0510_R113_T10SEG_20240101T224614
	esaTilePattern = regexp.MustCompile(`_T(\d{2}[A-Z]{3})_`)
	// S2A_10SEG_20240101_0_L2A
	cogTilePattern = regexp.MustCompile(`^S2[A-D]_(\d{2}[A-Z]{3})_`)
	// LC09_L2SP_044034_20240101_20240102_02_T1
	wrsPattern      = regexp.MustCompile(`^L[COTEM]\d{2}_L\w{3}_(\d{6})_`)
	landsatIDPrefix = regexp.MustCompile(`^L[COTEM]\d{2}_`)
)

// Identity returns the mission family and an acquisition key that is equal
// for two items describing the same physical scene, regardless of which
// provider returned them. ok is false when the item cannot be identified.
func Identity(item *stac.Item) (mission, key string, ok bool) {
	if item == nil || item.Properties.Datetime.IsZero() {
		return "", "", false
	}

	mission = Mission(item)
	var grid string
	switch mission {
	case MissionSentinel2:
		grid = sentinelTile(item)
	case MissionLandsat:
		grid = landsatPathRow(item)
	}
	if grid == "" {
		return "", "", false
	}

	ts := item.Properties.Datetime.UTC().Truncate(time.Second).Format("20060102T150405")
	return mission, mission + "/" + grid + "/" + ts, true
}

// Mission returns the mission family of an item, or "" if unknown.
func Mission(item *stac.Item) string {
	platform := strings.ToLower(item.Properties.Platform)
	original := item.Properties.OriginalID

	switch {
	case strings.Contains(platform, "sentinel-2"), strings.HasPrefix(original, "S2"):
		return MissionSentinel2
	case strings.Contains(platform, "landsat"), landsatIDPrefix.MatchString(original):
		return MissionLandsat
	default:
		return ""
	}
}

func sentinelTile(item *stac.Item) string {
	extra := item.Properties.Extra
	if tile := String(extra, "s2:mgrs_tile"); tile != "" {
		return strings.ToUpper(tile)
	}
	if code := String(extra, "grid:code"); strings.HasPrefix(code, "MGRS-") {
		return strings.ToUpper(strings.TrimPrefix(code, "MGRS-"))
	}
	if zone, ok := number(extra["mgrs:utm_zone"]); ok {
		band := String(extra, "mgrs:latitude_band")
		square := String(extra, "mgrs:grid_square")
		if band != "" && square != "" {
			return strings.ToUpper(fmt.Sprintf("%02d%s%s", int(zone), band, square))
		}
	}

	original := item.Properties.OriginalID
	if m := esaTilePattern.FindStringSubmatch(original); m != nil {
		return m[1]
	}
	if m := cogTilePattern.FindStringSubmatch(original); m != nil {
		return m[1]
	}
	return ""
}

func landsatPathRow(item *stac.Item) string {
	extra := item.Properties.Extra
	path, row := wrsPart(extra["landsat:wrs_path"]), wrsPart(extra["landsat:wrs_row"])
	if path != "" && row != "" {
		return path + row
	}

	if m := wrsPattern.FindStringSubmatch(item.Properties.OriginalID); m != nil {
		return m[1]
	}
	return ""
}

// wrsPart normalizes a WRS path or row to three digits; upstreams disagree
// on string versus number.
func wrsPart(v any) string {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return ""
		}
		v = s
	}
	n, ok := number(v)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%03d", int(n))
}
