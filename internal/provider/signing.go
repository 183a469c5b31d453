package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/robert-malhotra/stac-federator/internal/stacapi"
)

// PlanetarySignURL is the Planetary Computer SAS signing endpoint.
const PlanetarySignURL = "https://planetarycomputer.microsoft.com/api/sas/v1/sign"

const (
	// sasFallbackTTL applies when the signing response has no expiry.
	sasFallbackTTL = 45 * time.Minute
	// sasExpiryMargin avoids handing out a URL that expires in flight.
	sasExpiryMargin = 2 * time.Minute
)

type signedHref struct {
	href      string
	expiresAt time.Time
}

// SASSigner signs Azure blob hrefs through the Planetary Computer SAS API
// and caches each signed href until shortly before it expires.
type SASSigner struct {
	client   *stacapi.Client
	endpoint string
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]signedHref
}

// NewSASSigner creates a signer using the given endpoint, or
// PlanetarySignURL when empty.
func NewSASSigner(client *stacapi.Client, endpoint string) *SASSigner {
	if endpoint == "" {
		endpoint = PlanetarySignURL
	}
	return &SASSigner{
		client:   client,
		endpoint: endpoint,
		now:      time.Now,
		cache:    make(map[string]signedHref),
	}
}

// Sign implements Signer.
func (s *SASSigner) Sign(ctx context.Context, href string) (string, error) {
	now := s.now()

	s.mu.Lock()
	if cached, ok := s.cache[href]; ok && now.Before(cached.expiresAt) {
		s.mu.Unlock()
		return cached.href, nil
	}
	s.mu.Unlock()

	var resp struct {
		Href   string `json:"href"`
		Expiry string `json:"msft:expiry"`
	}
	signURL := s.endpoint + "?href=" + url.QueryEscape(href)
	if err := s.client.GetJSON(ctx, signURL, &resp); err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}
	if resp.Href == "" {
		return "", fmt.Errorf("%w: empty href in signing response", ErrSigning)
	}

	expiresAt := now.Add(sasFallbackTTL)
	if t, err := time.Parse(time.RFC3339, resp.Expiry); err == nil {
		expiresAt = t.Add(-sasExpiryMargin)
	}

	s.mu.Lock()
	s.evictExpired(now)
	s.cache[href] = signedHref{href: resp.Href, expiresAt: expiresAt}
	s.mu.Unlock()

	return resp.Href, nil
}

func (s *SASSigner) evictExpired(now time.Time) {
	for k, v := range s.cache {
		if !now.Before(v.expiresAt) {
			delete(s.cache, k)
		}
	}
}

// S3Presigner produces SigV4 presigned GET URLs for s3:// hrefs, optionally
// on requester-pays buckets such as usgs-landsat.
type S3Presigner struct {
	presign       *s3.PresignClient
	expires       time.Duration
	requesterPays bool
}

// NewS3Presigner creates a presigner from an AWS config.
func NewS3Presigner(cfg aws.Config, expires time.Duration, requesterPays bool) *S3Presigner {
	if expires <= 0 {
		expires = time.Hour
	}
	return &S3Presigner{
		presign:       s3.NewPresignClient(s3.NewFromConfig(cfg)),
		expires:       expires,
		requesterPays: requesterPays,
	}
}

// Sign implements Signer.
func (p *S3Presigner) Sign(ctx context.Context, href string) (string, error) {
	bucket, key, err := parseS3Href(href)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if p.requesterPays {
		input.RequestPayer = s3types.RequestPayerRequester
	}

	req, err := p.presign.PresignGetObject(ctx, input, s3.WithPresignExpires(p.expires))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return req.URL, nil
}

func parseS3Href(href string) (bucket, key string, err error) {
	u, err := url.Parse(href)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 href %q: %w", href, err)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("not an s3 href: %q", href)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("s3 href %q has no object key", href)
	}
	return u.Host, key, nil
}
