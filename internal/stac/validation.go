package stac

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// ValidateSearchParams validates a federated search request.
func ValidateSearchParams(p *SearchParams) error {
	if p == nil {
		return invalid("search parameters cannot be nil")
	}

	if len(p.BBox) == 0 {
		return invalid("bbox is required")
	}
	if err := ValidateBBox(p.BBox); err != nil {
		return invalid("invalid bbox: %v", err)
	}

	if p.Datetime == "" {
		return invalid("datetime is required")
	}
	if _, _, err := ParseDatetimeInterval(p.Datetime); err != nil {
		return invalid("invalid datetime: %v", err)
	}

	if p.CloudCoverLt != nil {
		cc := *p.CloudCoverLt
		if math.IsNaN(cc) || cc < 0 || cc > 100 {
			return invalid("cloud_cover_lt must be between 0 and 100, got %v", cc)
		}
	}

	if p.Limit < 1 || p.Limit > MaxLimit {
		return invalid("limit must be between 1 and %d, got %d", MaxLimit, p.Limit)
	}

	for i, coll := range p.Collections {
		if strings.TrimSpace(coll) == "" {
			return invalid("collection at index %d cannot be empty", i)
		}
	}

	return nil
}

// ValidateBBox validates a [west, south, east, north] bounding box.
// Degenerate boxes (west == east or south == north) are accepted.
func ValidateBBox(bbox []float64) error {
	if len(bbox) != 4 {
		return fmt.Errorf("bbox must have 4 coordinates, got %d", len(bbox))
	}

	for i, v := range bbox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("bbox coordinate at position %d is not finite", i)
		}
	}

	west, south, east, north := bbox[0], bbox[1], bbox[2], bbox[3]

	if west < -180 || west > 180 {
		return fmt.Errorf("west longitude must be between -180 and 180, got %f", west)
	}
	if east < -180 || east > 180 {
		return fmt.Errorf("east longitude must be between -180 and 180, got %f", east)
	}
	if south < -90 || south > 90 {
		return fmt.Errorf("south latitude must be between -90 and 90, got %f", south)
	}
	if north < -90 || north > 90 {
		return fmt.Errorf("north latitude must be between -90 and 90, got %f", north)
	}

	if west > east {
		return fmt.Errorf("west longitude (%f) must be less than or equal to east longitude (%f)", west, east)
	}
	if south > north {
		return fmt.Errorf("south latitude (%f) must be less than or equal to north latitude (%f)", south, north)
	}

	return nil
}

const dateOnly = "2006-01-02"

// parseInstant accepts RFC 3339 timestamps and plain dates. A plain date used
// as an interval end is extended to the last instant of that day.
func parseInstant(s string, end bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 timestamp or YYYY-MM-DD date, got %q", s)
	}
	if end {
		t = t.Add(24*time.Hour - time.Millisecond)
	}
	return t, nil
}

// ParseDatetimeInterval parses an instant or interval into its bounds.
// Supports formats:
// - "2023-01-01T00:00:00Z" (instant, start == end)
// - "2023-01-01/2023-12-31" (closed interval, plain dates allowed)
// - "2023-01-01T00:00:00Z/.." (start time only)
// - "../2023-12-31T23:59:59Z" (end time only)
func ParseDatetimeInterval(dt string) (start, end *time.Time, err error) {
	dt = strings.TrimSpace(dt)
	if dt == "" {
		return nil, nil, fmt.Errorf("datetime cannot be empty")
	}

	if !strings.Contains(dt, "/") {
		if dt == ".." {
			return nil, nil, fmt.Errorf("a single datetime cannot be open")
		}
		t, err := parseInstant(dt, false)
		if err != nil {
			return nil, nil, err
		}
		return &t, &t, nil
	}

	parts := strings.Split(dt, "/")
	if len(parts) != 2 {
		return nil, nil, fmt.Errorf("invalid datetime interval format, expected 'start/end', got: %s", dt)
	}

	startStr := strings.TrimSpace(parts[0])
	endStr := strings.TrimSpace(parts[1])

	if startStr != "" && startStr != ".." {
		t, err := parseInstant(startStr, false)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid start datetime: %w", err)
		}
		start = &t
	}

	if endStr != "" && endStr != ".." {
		t, err := parseInstant(endStr, true)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid end datetime: %w", err)
		}
		end = &t
	}

	if start == nil && end == nil {
		return nil, nil, fmt.Errorf("interval must have at least one bound")
	}

	if start != nil && end != nil && start.After(*end) {
		return nil, nil, fmt.Errorf("start datetime (%s) must be before or equal to end datetime (%s)", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	return start, end, nil
}

// UpstreamDatetime renders the datetime filter in the RFC 3339 interval form
// accepted by upstream STAC APIs, with open bounds as "..".
func (p *SearchParams) UpstreamDatetime() (string, error) {
	start, end, err := ParseDatetimeInterval(p.Datetime)
	if err != nil {
		return "", err
	}
	if !strings.Contains(p.Datetime, "/") {
		return start.Format(time.RFC3339Nano), nil
	}

	format := func(t *time.Time) string {
		if t == nil {
			return ".."
		}
		return t.Format(time.RFC3339Nano)
	}
	return format(start) + "/" + format(end), nil
}
