// Package config loads facetmap settings from TOML or YAML files and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/lumipallolabs/facetmap/internal/core"
	"github.com/lumipallolabs/facetmap/internal/search"
	"github.com/lumipallolabs/facetmap/internal/tiling"
)

// Where aggregations come from
const (
	SourceRemote = "remote"
	SourceLocal  = "local"
	SourceCache  = "cache"
)

// DefaultIndex is the search index of the original deployment
const DefaultIndex = "635b610a-4ea9-4761-825a-30dcde98adc9"

// Environment overrides
const (
	EnvToken    = "FACETMAP_TOKEN"
	EnvEndpoint = "FACETMAP_ENDPOINT"
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid config")

// Facet is one terms aggregation
type Facet struct {
	Field string `toml:"field" yaml:"field"`
	Size  int    `toml:"size" yaml:"size"`
}

// Display is the canonical drawing area
type Display struct {
	Width  int `toml:"width" yaml:"width"`
	Height int `toml:"height" yaml:"height"`
	Header int `toml:"header" yaml:"header"`
}

// Config holds every setting
type Config struct {
	Source   string `toml:"source" yaml:"source"`
	Index    string `toml:"index" yaml:"index"`
	Endpoint string `toml:"endpoint" yaml:"endpoint"`
	Token    string `toml:"token" yaml:"token"`

	ViewBy string  `toml:"view_by" yaml:"view_by"`
	Drill  Facet   `toml:"drill" yaml:"drill"`
	Facets []Facet `toml:"facets" yaml:"facets"`

	Display    Display       `toml:"display" yaml:"display"`
	Tiling     string        `toml:"tiling" yaml:"tiling"`
	Transition time.Duration `toml:"transition" yaml:"transition"`

	LocalRoot string `toml:"local_root" yaml:"local_root"`
	CacheDir  string `toml:"cache_dir" yaml:"cache_dir"`
	Offline   bool   `toml:"offline" yaml:"offline"`
	Watch     bool   `toml:"watch" yaml:"watch"`
	Listen    string `toml:"listen" yaml:"listen"`
}

// Default returns the settings of the original deployment
func Default() *Config {
	opts := core.DefaultOptions()
	facets := make([]Facet, len(opts.Facets))
	for i, f := range opts.Facets {
		facets[i] = Facet{Field: f.Field, Size: f.Size}
	}
	return &Config{
		Source:     SourceRemote,
		Index:      DefaultIndex,
		Endpoint:   search.DefaultEndpoint,
		ViewBy:     opts.ViewBy,
		Drill:      Facet{Field: opts.Drill.Field, Size: opts.Drill.Size},
		Facets:     facets,
		Display:    Display{Width: opts.Width, Height: opts.Height, Header: opts.Header},
		Tiling:     "binary",
		Transition: opts.Transition,
		LocalRoot:  ".",
		CacheDir:   DefaultCacheDir(),
		Listen:     "127.0.0.1:8080",
	}
}

// DefaultCacheDir returns the default response cache directory
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".facetmap"
	}
	return filepath.Join(home, ".facetmap", "cache")
}

// DefaultPath returns the config file used when none is given
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "facetmap", "config.toml")
}

// Load reads path over the defaults, then applies the environment
// An empty path falls back to DefaultPath and is skipped when that file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.decode(path, data); err != nil {
				return nil, err
			}
		case explicit || !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)
	return cfg, cfg.Validate()
}

func (c *Config) decode(path string, data []byte) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported format %q", path, ext)
	}
	return nil
}

// ApplyEnv overrides the token and endpoint from the environment
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvToken); ok && strings.TrimSpace(v) != "" {
		c.Token = strings.TrimSpace(v)
	}
	if v, ok := lookup(EnvEndpoint); ok && v != "" {
		c.Endpoint = v
	}
}

// Validate checks the settings can drive a view
func (c *Config) Validate() error {
	switch c.Source {
	case SourceRemote, SourceLocal, SourceCache:
	default:
		return fmt.Errorf("%w: source %q must be remote, local or cache", ErrInvalid, c.Source)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("%w: display %dx%d: %w", ErrInvalid, c.Display.Width, c.Display.Height, tiling.ErrDegenerateRectangle)
	}
	if c.Display.Header < 0 {
		return fmt.Errorf("%w: negative header height %d", ErrInvalid, c.Display.Header)
	}
	if _, err := tiling.ByName(c.Tiling); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.ViewBy == "" {
		return fmt.Errorf("%w: view_by is required", ErrInvalid)
	}

	found := false
	for _, f := range c.Facets {
		if f.Field == "" {
			return fmt.Errorf("%w: facet without field", ErrInvalid)
		}
		if f.Size <= 0 {
			return fmt.Errorf("%w: facet %s: size must be > 0", ErrInvalid, f.Field)
		}
		found = found || f.Field == c.ViewBy
	}
	if !found {
		return fmt.Errorf("%w: view_by %q is not among the facets", ErrInvalid, c.ViewBy)
	}
	if c.Drill.Field != "" && c.Drill.Size <= 0 {
		return fmt.Errorf("%w: drill %s: size must be > 0", ErrInvalid, c.Drill.Field)
	}
	if c.Source == SourceRemote && c.Index == "" {
		return fmt.Errorf("%w: index is required for the remote source", ErrInvalid)
	}
	if c.Transition < 0 {
		return fmt.Errorf("%w: negative transition %v", ErrInvalid, c.Transition)
	}
	return nil
}

// Options converts the settings into controller options
func (c *Config) Options() (core.Options, error) {
	strategy, err := tiling.ByName(c.Tiling)
	if err != nil {
		return core.Options{}, err
	}
	facets := make([]search.FacetRequest, len(c.Facets))
	for i, f := range c.Facets {
		facets[i] = search.FacetRequest{Field: f.Field, Type: search.FacetTerms, Size: f.Size}
	}
	opts := core.Options{
		ViewBy:     c.ViewBy,
		Facets:     facets,
		Width:      c.Display.Width,
		Height:     c.Display.Height,
		Header:     c.Display.Header,
		Transition: c.Transition,
		Strategy:   strategy,
	}
	if c.Drill.Field != "" {
		opts.Drill = search.FacetRequest{Field: c.Drill.Field, Type: search.FacetTerms, Size: c.Drill.Size}
	}
	return opts, nil
}
