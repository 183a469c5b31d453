package stacapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_Search(t *testing.T) {
	var received SearchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/search" {
			t.Errorf("Expected POST /search, got %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Write([]byte(`{"type":"FeatureCollection","features":[{"type":"Feature","id":"a","properties":{}}],"context":{"matched":42}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL+"/", time.Second).WithLogger(testLogger())
	result, err := client.Search(context.Background(), &SearchRequest{
		Collections: []string{"c1"},
		BBox:        []float64{0, 0, 1, 1},
		Datetime:    "2024-01-01T00:00:00Z",
		Limit:       5,
		Query:       CloudCoverQuery(20),
	})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}

	if len(result.Features) != 1 || result.Features[0].ID != "a" {
		t.Errorf("Unexpected features: %+v", result.Features)
	}
	if m := result.Matched(); m == nil || *m != 42 {
		t.Errorf("Expected matched 42, got %v", m)
	}
	if received.Limit != 5 || received.Collections[0] != "c1" {
		t.Errorf("Unexpected request body: %+v", received)
	}
	cc, ok := received.Query["eo:cloud_cover"].(map[string]any)
	if !ok || cc["lt"] != 20.0 {
		t.Errorf("Expected cloud cover query, got %v", received.Query)
	}
}

func TestClient_GetItem_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/sentinel-2-l2a/items/missing" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		http.Error(w, `{"code":"NotFoundError"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second).WithLogger(testLogger())
	_, err := client.GetItem(context.Background(), "sentinel-2-l2a", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected StatusError 404, got %v", err)
	}
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("maintenance"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second).WithLogger(testLogger())
	_, err := client.Search(context.Background(), &SearchRequest{})
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("Expected 503 not to match ErrNotFound")
	}
	if err.Error() != "upstream returned status 503: maintenance" {
		t.Errorf("Unexpected error message %q", err.Error())
	}
}

func TestClient_ContextCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, 5*time.Second).WithLogger(testLogger())
	_, err := client.Search(ctx, &SearchRequest{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestClient_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second).WithLogger(testLogger())
	var v map[string]any
	if err := client.GetJSON(context.Background(), server.URL+"/anything", &v); err == nil {
		t.Error("Expected decode error, got nil")
	}
}
