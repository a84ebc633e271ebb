package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lumipallolabs/facetmap/internal/core"
	"github.com/lumipallolabs/facetmap/internal/render"
)

type renderOpts struct {
	zoom   []string
	output string
	mode   string
}

func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Write the treemap as SVG",
		Long: `Load the root aggregation, optionally zoom through the named buckets,
and write the resulting frame as an SVG document.`,
		Example: `  facetmap render -o root.svg
  facetmap render --zoom staff -o staff.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.mode = "svg"
			return c.runRender(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.zoom, "zoom", nil, "bucket names to zoom through, in order")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (c *CLI) layoutCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Write the laid-out frame as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.mode = "json"
			return c.runRender(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.zoom, "zoom", nil, "bucket names to zoom through, in order")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func (c *CLI) runRender(ctx context.Context, opts renderOpts) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	coreOpts, err := cfg.Options()
	if err != nil {
		return err
	}
	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	ctrl, err := core.NewController(coreOpts, nil)
	if err != nil {
		return err
	}
	if err := ctrl.Run(ctx, src.Querier, opts.zoom...); err != nil {
		return err
	}

	w, err := output(opts.output)
	if err != nil {
		return err
	}
	defer w.Close()

	var bridge render.Bridge = render.NewSVG(w)
	if opts.mode == "json" {
		bridge = render.NewJSON(w, true)
	}
	frame := ctrl.Frame()
	if err := bridge.Render(frame); err != nil {
		return err
	}
	logger.Info("rendered", "items", len(frame.Items), "path", strings.Join(opts.zoom, "/"), "output", opts.output)
	return nil
}
