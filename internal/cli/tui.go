package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/lumipallolabs/facetmap/internal/config"
	"github.com/lumipallolabs/facetmap/internal/ui/tui"
	"github.com/lumipallolabs/facetmap/internal/watcher"
)

func (c *CLI) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Explore the treemap in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context())
		},
	}
}

func (c *CLI) runTUI(ctx context.Context) error {
	logger := loggerFromContext(ctx)
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	src, err := openSource(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var changes chan struct{}
	if cfg.Watch && cfg.Source == config.SourceLocal {
		changes = make(chan struct{}, 1)
		stop, err := watcher.OnChange(cfg.LocalRoot, 0, func(ev watcher.Event) {
			logger.Debug("change", "type", ev.Type, "path", ev.Path)
			if err := src.local.Rescan(ctx); err != nil {
				logger.Warn("rescan failed", "err", err)
				return
			}
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err != nil {
			logger.Warn("watch disabled", "root", cfg.LocalRoot, "err", err)
		} else {
			defer stop()
		}
	}

	app, err := tui.NewApp(ctx, tui.Options{
		Version:  Version,
		Source:   src.Label,
		Querier:  src.Querier,
		Core:     opts,
		Baseline: src.Baseline,
		Changes:  changes,
	})
	if err != nil {
		return err
	}

	p := tea.NewProgram(app,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err = p.Run()
	return err
}
