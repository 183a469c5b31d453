// Package provider defines the adapter contract for upstream imagery
// catalogs, the registry that routes scene ids to adapters, and the
// adapters themselves.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"

	"github.com/robert-malhotra/stac-federator/internal/stac"
	"github.com/robert-malhotra/stac-federator/internal/stacapi"
)

// Errors returned by adapters and the registry.
var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrNotFound        = errors.New("scene not found")
	ErrUpstream        = errors.New("upstream error")
	ErrUpstreamTimeout = errors.New("upstream timeout")
	ErrAssetNotFound   = errors.New("asset not found")
	ErrSigning         = errors.New("signing failed")
)

// Descriptor is the static identity of an adapter.
type Descriptor struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Collections []string `json:"collections"`
	// Authoritative lists mission families for which this provider's
	// metadata is preferred when several providers return the same scene.
	Authoritative []string `json:"authoritative_for,omitempty"`
}

// Serves reports whether the provider serves any of the given collections.
func (d Descriptor) Serves(collections []string) bool {
	for _, c := range collections {
		if slices.Contains(d.Collections, c) {
			return true
		}
	}
	return false
}

// Result is what one adapter contributes to a federated search.
type Result struct {
	Items    []*stac.Item
	Matched  *int
	Warnings []string
	// Err is the classified cause when the search failed. It is used for
	// metrics and throttling only and never reaches the caller.
	Err error
}

// Failed reports whether the adapter call failed.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Adapter wraps one upstream catalog.
type Adapter interface {
	Descriptor() Descriptor
	// Search never fails: any upstream failure yields an empty Result with
	// one warning naming the provider.
	Search(ctx context.Context, params *stac.SearchParams) *Result
	GetScene(ctx context.Context, originalID string) (*stac.Item, error)
	ResolveAssetURL(ctx context.Context, originalID, band string) (string, error)
}

// SceneResolver is implemented by adapters that can resolve a band of a
// scene already fetched with GetScene, without fetching it again.
type SceneResolver interface {
	ResolveSceneAsset(ctx context.Context, item *stac.Item, band string) (string, error)
}

// Signer turns an asset href into a URL the caller can fetch directly.
type Signer interface {
	Sign(ctx context.Context, href string) (string, error)
}

// SceneID builds the canonical "<provider>:<original>" id.
func SceneID(providerID, originalID string) string {
	return providerID + ":" + originalID
}

// SplitSceneID splits a canonical id on its first ':'.
func SplitSceneID(id string) (providerID, originalID string, ok bool) {
	providerID, originalID, ok = strings.Cut(id, ":")
	if !ok || providerID == "" {
		return "", "", false
	}
	return providerID, originalID, true
}

// Classify maps transport and upstream errors onto the provider taxonomy.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUpstream), errors.Is(err, ErrUpstreamTimeout),
		errors.Is(err, ErrAssetNotFound), errors.Is(err, ErrSigning), errors.Is(err, ErrUnknownProvider):
		return err
	case errors.Is(err, stacapi.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case isTimeout(err):
		return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Warning formats the user-facing warning for a failed provider call.
func Warning(name string, err error) string {
	switch {
	case isTimeout(err), errors.Is(err, ErrUpstreamTimeout):
		return name + ": request timed out"
	case errors.Is(err, context.Canceled):
		return name + ": request cancelled"
	default:
		return name + ": " + rootCause(err)
	}
}

// rootCause strips the taxonomy prefix so warnings read naturally.
func rootCause(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrUpstream, ErrUpstreamTimeout, ErrNotFound} {
		msg = strings.TrimPrefix(msg, sentinel.Error()+": ")
	}
	return msg
}

// FailedResult builds the empty result for a failed search.
func FailedResult(d Descriptor, err error) *Result {
	classified := Classify(err)
	return &Result{
		Items:    []*stac.Item{},
		Warnings: []string{Warning(d.Name, classified)},
		Err:      classified,
	}
}

// findAsset returns the asset for a canonical band on a scene.
func findAsset(item *stac.Item, originalID, band string) (*stac.Asset, error) {
	asset, ok := item.Assets[band]
	if !ok || asset == nil || asset.Href == "" {
		return nil, fmt.Errorf("%w: band %q on scene %q", ErrAssetNotFound, band, originalID)
	}
	return asset, nil
}

// upstreamSearch translates canonical params into an upstream search body.
func upstreamSearch(params *stac.SearchParams, collections []string, cloudQuery bool) (*stacapi.SearchRequest, error) {
	dt, err := params.UpstreamDatetime()
	if err != nil {
		return nil, err
	}

	req := &stacapi.SearchRequest{
		Collections: collections,
		BBox:        params.BBox,
		Datetime:    dt,
		Limit:       params.Limit,
	}
	if cloudQuery && params.CloudCoverLt != nil {
		req.Query = stacapi.CloudCoverQuery(*params.CloudCoverLt)
	}
	return req, nil
}
