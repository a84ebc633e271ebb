// Package cli implements the facetmap command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lumipallolabs/facetmap/internal/config"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// Version is reported by --version and shown in the TUI header
var Version = "dev"

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	source     string
	root       string
	offline    bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      "15:04:05.00",
			Level:           level,
		}),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
// Without a subcommand the interactive view starts.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "facetmap",
		Short:        "facetmap draws search facets as a zoomable treemap",
		Long:         `facetmap aggregates an index by one field, draws the buckets as a treemap colored by their share of the largest, and drills into a bucket by a second field.`,
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTUI(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "", "config file (TOML or YAML)")
	flags.StringVar(&c.source, "source", "", "aggregation source: remote, local or cache")
	flags.StringVar(&c.root, "root", "", "directory to index for the local source")
	flags.BoolVar(&c.offline, "offline", false, "answer only from cached snapshots")

	root.AddCommand(c.tuiCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.layoutCommand())
	root.AddCommand(c.snapshotCommand())
	root.AddCommand(c.serveCommand())

	return root
}

// loadConfig reads the config file and applies command-line overrides
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.source != "" {
		cfg.Source = c.source
	}
	if c.root != "" {
		cfg.LocalRoot = c.root
		if c.source == "" {
			cfg.Source = config.SourceLocal
		}
	}
	if c.offline {
		cfg.Offline = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c.Logger.Debug("config loaded", "source", cfg.Source, "view_by", cfg.ViewBy, "drill", cfg.Drill.Field)
	return cfg, nil
}

// output opens path for writing; "" and "-" mean stdout
func output(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

type loggerKey struct{}

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
