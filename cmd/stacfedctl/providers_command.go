package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/stac-federator/internal/config"
	"github.com/robert-malhotra/stac-federator/pkg/server"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the enabled upstream providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			registry, err := server.BuildRegistry(cmd.Context(), cfg, ctx.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}

			adapters := registry.All()
			if len(adapters) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No providers enabled")
				return nil
			}

			rows := make([][]string, 0, len(adapters))
			for _, a := range adapters {
				d := a.Descriptor()
				rows = append(rows, []string{
					d.ID,
					d.Name,
					strings.Join(d.Collections, ", "),
					valueOrDash(strings.Join(d.Authoritative, ", ")),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Collections", "Authoritative For"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newCollectionsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections advertised at /collections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			collections, err := config.LoadCollectionsOrDefault(cfg.CollectionsDir)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, collections.Count())
			for _, c := range collections.All() {
				rows = append(rows, []string{c.ID, c.Title, c.License, fmt.Sprintf("%d", len(c.Keywords))})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "License", "Keywords"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
