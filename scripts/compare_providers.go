// Script to compare per-provider and federated search results over the
// San Francisco Bay for the last 30 days.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/robert-malhotra/stac-federator/internal/provider"
	"github.com/robert-malhotra/stac-federator/internal/search"
	"github.com/robert-malhotra/stac-federator/internal/stac"
	"github.com/robert-malhotra/stac-federator/internal/stacapi"
)

const sasURL = "https://planetarycomputer.microsoft.com/api/sas/v1/sign"

var bayBBox = []float64{-122.6, 37.3, -121.8, 38.1}

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	timeout := 30 * time.Second

	pc := stacapi.NewClient(provider.PlanetaryBaseURL, timeout)
	registry, err := provider.NewRegistry(
		provider.NewSentinel(stacapi.NewClient(provider.SentinelBaseURL, timeout), logger),
		provider.NewLandsat(stacapi.NewClient(provider.LandsatBaseURL, timeout), logger),
		provider.NewPlanetary(pc, provider.NewSASSigner(pc, sasURL), logger),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "registry: %v\n", err)
		os.Exit(1)
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -30)
	params := &stac.SearchParams{
		BBox:     bayBBox,
		Datetime: start.Format(time.RFC3339) + "/" + end.Format(time.RFC3339),
		Limit:    stac.MaxLimit,
	}

	fmt.Println("=== Provider Comparison: SF Bay (Last 30 Days) ===")
	fmt.Printf("Datetime: %s\n", params.Datetime)
	fmt.Printf("Bounding box: %v\n\n", bayBBox)

	total := 0
	for _, a := range registry.All() {
		d := a.Descriptor()
		began := time.Now()
		result := a.Search(ctx, params)
		matched := "?"
		if result.Matched != nil {
			matched = fmt.Sprintf("%d", *result.Matched)
		}
		fmt.Printf("%-20s returned %3d, matched %s (%s)\n", d.ID, len(result.Items), matched, time.Since(began).Round(time.Millisecond))
		for _, w := range result.Warnings {
			fmt.Printf("  ! %s\n", w)
		}
		total += len(result.Items)
	}

	orchestrator := search.New(registry, search.Options{
		Deadline:        time.Minute,
		ProviderTimeout: timeout,
		Deduplicate:     true,
	}, logger)
	federated, err := orchestrator.Search(ctx, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "federated search failed: %v\n", err)
		os.Exit(1)
	}

	folded := 0
	for _, item := range federated.Features {
		folded += len(item.Properties.Duplicates)
	}

	fmt.Println("\n=== Federated ===")
	fmt.Printf("Per-provider total: %d\n", total)
	fmt.Printf("Federated returned: %d (limit %d)\n", federated.Context.Returned, federated.Context.Limit)
	fmt.Printf("Duplicates folded:  %d\n", folded)
	for _, w := range federated.Warnings {
		fmt.Printf("  ! %s\n", w)
	}
}
