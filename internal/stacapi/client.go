// Package stacapi is a minimal client for upstream STAC APIs: item search,
// single-item fetch and plain JSON GETs with a bounded timeout.
package stacapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/robert-malhotra/stac-federator/internal/stac"
)

// DefaultTimeout bounds every upstream metadata call.
const DefaultTimeout = 15 * time.Second

const userAgent = "stac-federator/1.0"

// maxErrorBody caps how much of an error response is kept in StatusError.
const maxErrorBody = 512

// ErrNotFound is returned when the upstream answers 404.
var ErrNotFound = errors.New("not found")

// StatusError is returned for any non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrNotFound) match a 404 StatusError.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// SearchRequest is the POST /search body sent upstream.
type SearchRequest struct {
	Collections []string       `json:"collections,omitempty"`
	BBox        []float64      `json:"bbox,omitempty"`
	Datetime    string         `json:"datetime,omitempty"`
	Limit       int            `json:"limit,omitempty"`
	Query       map[string]any `json:"query,omitempty"`
}

// CloudCoverQuery builds the STAC query-extension clause for an exclusive
// cloud cover bound.
func CloudCoverQuery(lt float64) map[string]any {
	return map[string]any{
		"eo:cloud_cover": map[string]any{"lt": lt},
	}
}

// Client talks to one upstream STAC API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client for the STAC API rooted at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: slog.Default(),
	}
}

// WithLogger sets a custom logger for the client
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	c.logger = logger
	return c
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Search runs an item search.
func (c *Client) Search(ctx context.Context, req *SearchRequest) (*stac.RawItemCollection, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	searchURL := c.baseURL + "/search"
	c.logger.DebugContext(ctx, "executing upstream search",
		slog.String("url", searchURL),
		slog.String("body", string(body)),
	)

	var result stac.RawItemCollection
	if err := c.do(ctx, http.MethodPost, searchURL, bytes.NewReader(body), &result); err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "upstream search completed",
		slog.String("url", searchURL),
		slog.Int("feature_count", len(result.Features)),
	)

	return &result, nil
}

// GetItem fetches one item. A 404 is reported as ErrNotFound.
func (c *Client) GetItem(ctx context.Context, collection, id string) (*stac.RawItem, error) {
	itemURL := fmt.Sprintf("%s/collections/%s/items/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(id))

	var item stac.RawItem
	if err := c.do(ctx, http.MethodGet, itemURL, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// GetJSON issues a GET against an absolute URL and decodes the JSON body.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	return c.do(ctx, http.MethodGet, rawURL, nil, v)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.DebugContext(ctx, "upstream returned non-2xx status",
			slog.String("url", rawURL),
			slog.Int("status_code", resp.StatusCode),
		)
		return &StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(errBody)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Host, err)
	}

	return nil
}
