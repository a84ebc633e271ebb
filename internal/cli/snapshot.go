package cli

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lumipallolabs/facetmap/internal/config"
	"github.com/lumipallolabs/facetmap/internal/search"
)

func (c *CLI) snapshotCommand() *cobra.Command {
	var workers int

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Cache the root aggregation and every drill below it",
		Long: `Fetch the root aggregation and the drill-down of every root bucket,
saving each response as a snapshot. Later runs can compare against these
or replay them with --offline.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSnapshot(cmd.Context(), workers)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "j", 4, "concurrent drill queries")
	return cmd
}

func (c *CLI) runSnapshot(ctx context.Context, workers int) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Offline || cfg.Source == config.SourceCache {
		return fmt.Errorf("%w: snapshot needs a live source", config.ErrInvalid)
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	root, err := src.Querier.Query(ctx, search.RootRequest(opts.Facets))
	if err != nil {
		return fmt.Errorf("root query: %w", err)
	}
	facet, ok := root.Facet(opts.ViewBy)
	if !ok {
		return fmt.Errorf("root query: facet %q missing", opts.ViewBy)
	}
	if !opts.Drillable() {
		logger.Info("saved root", "buckets", len(facet.Buckets))
		return nil
	}

	var saved atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, b := range facet.Buckets {
		value := b.Value
		g.Go(func() error {
			req := search.DrillRequest(opts.Drill, opts.ViewBy, value)
			if _, err := src.Querier.Query(gctx, req); err != nil {
				return fmt.Errorf("drill %s: %w", value, err)
			}
			n := saved.Add(1)
			logger.Debug("saved drill", "bucket", value, "done", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("saved snapshots", "root_buckets", len(facet.Buckets), "drills", saved.Load(), "dir", src.Cache.Dir())
	return nil
}
