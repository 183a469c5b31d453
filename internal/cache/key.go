// Package cache implements the two-tier search response cache: a bounded
// in-process tier in front of a durable tier shared by every instance.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"slices"

	"github.com/robert-malhotra/stac-federator/internal/stac"
)

// DefaultBBoxPrecision is the number of decimals bbox coordinates are
// rounded to before hashing.
const DefaultBBoxPrecision = 4

// Request returns the normalized request document that Key hashes. Unset
// fields are omitted, bbox coordinates are rounded to precision decimals and
// collections are sorted. encoding/json writes map keys in sorted order.
func Request(params *stac.SearchParams, precision int) []byte {
	if precision < 0 {
		precision = DefaultBBoxPrecision
	}

	normalized := map[string]any{
		"limit": params.Limit,
	}
	if len(params.BBox) > 0 {
		scale := math.Pow(10, float64(precision))
		bbox := make([]float64, len(params.BBox))
		for i, v := range params.BBox {
			r := math.Round(v*scale) / scale
			if r == 0 {
				r = 0 // drop the sign of -0
			}
			bbox[i] = r
		}
		normalized["bbox"] = bbox
	}
	if params.Datetime != "" {
		normalized["datetime"] = params.Datetime
	}
	if len(params.Collections) > 0 {
		collections := slices.Clone(params.Collections)
		slices.Sort(collections)
		normalized["collections"] = collections
	}
	if params.CloudCoverLt != nil {
		normalized["cloud_cover_lt"] = *params.CloudCoverLt
	}

	data, _ := json.Marshal(normalized)
	return data
}

// Key returns the hex SHA-256 of the normalized request.
func Key(params *stac.SearchParams, precision int) string {
	sum := sha256.Sum256(Request(params, precision))
	return hex.EncodeToString(sum[:])
}
