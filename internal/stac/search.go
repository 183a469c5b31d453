package stac

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Limits applied to the page size of a federated search.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ErrValidation is returned for malformed or missing search parameters.
var ErrValidation = errors.New("invalid search parameters")

// SearchParams is a federated search request.
type SearchParams struct {
	BBox         []float64 `json:"bbox"`
	Datetime     string    `json:"datetime"`
	Collections  []string  `json:"collections,omitempty"`
	CloudCoverLt *float64  `json:"cloud_cover_lt,omitempty"`
	Limit        int       `json:"limit"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ParseSearchParams parses a search request from GET query parameters and
// validates it. A missing limit takes defaultLimit; any limit is then
// clamped to [1, maxLimit].
func ParseSearchParams(query url.Values, defaultLimit, maxLimit int) (*SearchParams, error) {
	params := &SearchParams{Limit: defaultLimit}

	bboxStr := strings.TrimSpace(query.Get("bbox"))
	if bboxStr == "" {
		return nil, invalid("bbox is required")
	}
	bboxParts := strings.Split(bboxStr, ",")
	if len(bboxParts) != 4 {
		return nil, invalid("bbox must have exactly 4 coordinates, got %d", len(bboxParts))
	}
	params.BBox = make([]float64, 4)
	for i, part := range bboxParts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, invalid("invalid bbox coordinate at position %d: %v", i, err)
		}
		params.BBox[i] = val
	}

	params.Datetime = strings.TrimSpace(query.Get("datetime"))

	if collections := query.Get("collections"); collections != "" {
		for _, c := range strings.Split(collections, ",") {
			if c = strings.TrimSpace(c); c != "" {
				params.Collections = append(params.Collections, c)
			}
		}
	}

	if cc := strings.TrimSpace(query.Get("cloud_cover_lt")); cc != "" {
		v, err := strconv.ParseFloat(cc, 64)
		if err != nil {
			return nil, invalid("invalid cloud_cover_lt: %v", err)
		}
		params.CloudCoverLt = &v
	}

	if limitStr := strings.TrimSpace(query.Get("limit")); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, invalid("invalid limit parameter: %v", err)
		}
		params.Limit = limit
	}

	params.ClampLimit(maxLimit)

	if err := ValidateSearchParams(params); err != nil {
		return nil, err
	}

	return params, nil
}

// ClampLimit forces Limit into [1, max]. A max below 1 means MaxLimit.
func (p *SearchParams) ClampLimit(max int) {
	if max < 1 || max > MaxLimit {
		max = MaxLimit
	}
	if p.Limit < 1 {
		p.Limit = 1
	}
	if p.Limit > max {
		p.Limit = max
	}
}

// HasCollectionFilter reports whether the request restricts collections.
func (p *SearchParams) HasCollectionFilter() bool {
	return len(p.Collections) > 0
}

// Clone returns a deep copy of the parameters.
func (p *SearchParams) Clone() *SearchParams {
	c := *p
	c.BBox = append([]float64(nil), p.BBox...)
	c.Collections = append([]string(nil), p.Collections...)
	if p.CloudCoverLt != nil {
		v := *p.CloudCoverLt
		c.CloudCoverLt = &v
	}
	return &c
}

// ToQueryParams converts the parameters back to GET query parameters.
func (p *SearchParams) ToQueryParams() url.Values {
	params := url.Values{}

	if len(p.BBox) == 4 {
		bboxStrs := make([]string, len(p.BBox))
		for i, v := range p.BBox {
			bboxStrs[i] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		params.Set("bbox", strings.Join(bboxStrs, ","))
	}
	if p.Datetime != "" {
		params.Set("datetime", p.Datetime)
	}
	if len(p.Collections) > 0 {
		params.Set("collections", strings.Join(p.Collections, ","))
	}
	if p.CloudCoverLt != nil {
		params.Set("cloud_cover_lt", strconv.FormatFloat(*p.CloudCoverLt, 'f', -1, 64))
	}
	params.Set("limit", strconv.Itoa(p.Limit))

	return params
}
