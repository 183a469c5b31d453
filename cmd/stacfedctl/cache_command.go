package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/stac-federator/internal/cache"
	"github.com/robert-malhotra/stac-federator/internal/config"
	"github.com/robert-malhotra/stac-federator/internal/stac"
	"github.com/robert-malhotra/stac-federator/pkg/server"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the durable search cache",
	}

	cacheCmd.AddCommand(newCacheKeyCommand(ctx))
	cacheCmd.AddCommand(newCacheGetCommand(ctx))
	cacheCmd.AddCommand(newCacheSweepCommand(ctx))

	return cacheCmd
}

func newCacheKeyCommand(ctx *commandContext) *cobra.Command {
	var bbox, datetime, collections, cloudCover, limit string

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the cache key for a search request",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			query := url.Values{}
			query.Set("bbox", bbox)
			query.Set("datetime", datetime)
			query.Set("collections", collections)
			query.Set("cloud_cover_lt", cloudCover)
			query.Set("limit", limit)

			params, err := stac.ParseSearchParams(query, cfg.Search.DefaultLimit, cfg.Search.MaxLimit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Key:     %s\n", cache.Key(params, cfg.Cache.BBoxPrecision))
			fmt.Fprintf(out, "Request: %s\n", cache.Request(params, cfg.Cache.BBoxPrecision))
			return nil
		},
	}

	cmd.Flags().StringVar(&bbox, "bbox", "", "Bounding box as west,south,east,north")
	cmd.Flags().StringVar(&datetime, "datetime", "", "RFC 3339 instant or interval")
	cmd.Flags().StringVar(&collections, "collections", "", "Comma separated collection ids")
	cmd.Flags().StringVar(&cloudCover, "cloud-cover-lt", "", "Upper cloud cover bound in percent")
	cmd.Flags().StringVar(&limit, "limit", "", "Page size")
	_ = cmd.MarkFlagRequired("bbox")
	_ = cmd.MarkFlagRequired("datetime")

	return cmd
}

func newCacheGetCommand(ctx *commandContext) *cobra.Command {
	var showResponse bool

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Show a durable cache entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, ctx, func(store cache.Store) error {
				entry, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if entry == nil {
					fmt.Fprintf(out, "No live entry for %s\n", args[0])
					return nil
				}
				printEntry(out, entry, showResponse)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showResponse, "response", false, "Also print the cached response body")

	return cmd
}

func newCacheSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired rows from the durable cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, ctx, func(store cache.Store) error {
				sweeper, ok := store.(cache.Sweeper)
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Backend expires entries itself; nothing to sweep")
					return nil
				}
				n, err := sweeper.Sweep(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d expired entries\n", n)
				return nil
			})
		},
	}
}

func withStore(cmd *cobra.Command, ctx *commandContext, fn func(cache.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if cfg.Cache.Backend == config.CacheBackendNone {
		return errors.New("no durable cache configured (CACHE_BACKEND=none)")
	}
	store, err := server.OpenCacheStore(cmd.Context(), cfg, ctx.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func printEntry(out io.Writer, entry *cache.Entry, showResponse bool) {
	const stampLayout = "2006-01-02 15:04:05 MST"

	fmt.Fprintf(out, "Key:      %s\n", entry.Key)
	fmt.Fprintf(out, "Updated:  %s\n", entry.UpdatedAt.Local().Format(stampLayout))
	fmt.Fprintf(out, "Expires:  %s (in %s)\n", entry.ExpiresAt.Local().Format(stampLayout),
		time.Until(entry.ExpiresAt).Round(time.Second))
	fmt.Fprintf(out, "Request:  %s\n", entry.Request)

	var summary struct {
		Features []json.RawMessage `json:"features"`
		Warnings []string          `json:"warnings"`
	}
	if err := json.Unmarshal(entry.Response, &summary); err == nil {
		fmt.Fprintf(out, "Features: %d\n", len(summary.Features))
		for _, w := range summary.Warnings {
			fmt.Fprintf(out, "Warning:  %s\n", w)
		}
	}

	if showResponse {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, entry.Response, "", "  "); err != nil {
			out.Write(entry.Response)
		} else {
			pretty.WriteTo(out)
		}
		fmt.Fprintln(out)
	}
}
