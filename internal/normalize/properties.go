package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var (
	cloudCoverKeys = []string{"eo:cloud_cover", "cloudCover", "s2:cloud_probability"}
	gsdKeys        = []string{"gsd", "eo:gsd"}
	datetimeKeys   = []string{"datetime", "start_datetime"}
)

// CloudCover returns the first reported cloud cover percentage, or nil when
// the upstream did not report one. Values outside 0-100 are treated as
// unreported.
func CloudCover(props map[string]any) *float64 {
	for _, k := range cloudCoverKeys {
		if v, ok := number(props[k]); ok {
			if v < 0 || v > 100 {
				return nil
			}
			return &v
		}
	}
	return nil
}

// GSD returns the ground sample distance in meters, or nil if absent or
// not positive.
func GSD(props map[string]any) *float64 {
	for _, k := range gsdKeys {
		if v, ok := number(props[k]); ok {
			if v <= 0 {
				return nil
			}
			return &v
		}
	}
	return nil
}

// Datetime returns the acquisition instant in UTC. Timestamps without a
// zone are read as UTC.
func Datetime(props map[string]any) (time.Time, bool) {
	for _, k := range datetimeKeys {
		s, ok := props[k].(string)
		if !ok || strings.TrimSpace(s) == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC(), true
		}
		if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// String returns a string property, or "" when missing or not a string.
func String(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
