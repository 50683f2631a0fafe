// Package config provides configuration loading for golift.
package config

import (
	"os"

	"github.com/2x3systems/golift/golift"
	"github.com/2x3systems/golift/liblift"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the complete golift configuration
type Config struct {
	Engine  EngineConfig  `yaml:"engine"`
	Catalog CatalogConfig `yaml:"catalog"`
	Log     LogConfig     `yaml:"log"`
}

// EngineConfig configures colour passing
type EngineConfig struct {
	// UseAlpha groups factors that are exchangeable up to a positive scalar
	UseAlpha bool `yaml:"use_alpha"`
	// SearchDepth is the number of buckets DEFT prunes with (-1 = all buckets)
	SearchDepth int `yaml:"search_depth"`
	// Workers bounds per-factor preprocessing concurrency (0 = one per CPU)
	Workers int `yaml:"workers"`
}

// CatalogConfig configures the result catalog
type CatalogConfig struct {
	// Path is the catalog db directory (empty = no catalog)
	Path string `yaml:"path"`
	// ReadOnly opens the catalog for lookups only
	ReadOnly bool `yaml:"read_only"`
}

// LogConfig configures klog
type LogConfig struct {
	// Verbosity is the klog -v level
	Verbosity int `yaml:"verbosity"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			UseAlpha:    false,
			SearchDepth: golift.DefaultSearchDepth,
			Workers:     0,
		},
		Log: LogConfig{
			Verbosity: 0,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Engine.SearchDepth == 0 || c.Engine.SearchDepth < -1 {
		return errors.New("engine.search_depth must be positive or -1")
	}
	if c.Engine.Workers < 0 {
		return errors.New("engine.workers must not be negative")
	}
	if c.Catalog.ReadOnly && c.Catalog.Path == "" {
		return errors.Wrap(golift.ErrBadCatalogParam, "catalog.read_only requires catalog.path")
	}
	if c.Log.Verbosity < 0 {
		return errors.New("log.verbosity must not be negative")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file, starting from DefaultConfig()
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config file %q", path)
	}

	return config, nil
}

// ColourPassOpts returns the engine settings as liblift options
func (c *Config) ColourPassOpts() liblift.ColourPassOpts {
	return liblift.ColourPassOpts{
		UseAlpha:    c.Engine.UseAlpha,
		SearchDepth: c.Engine.SearchDepth,
		Workers:     c.Engine.Workers,
	}
}

// CatalogOpts returns the catalog settings, or false if no catalog is configured
func (c *Config) CatalogOpts() (golift.CatalogOpts, bool) {
	return golift.CatalogOpts{
		DbPathName: c.Catalog.Path,
		ReadOnly:   c.Catalog.ReadOnly,
	}, c.Catalog.Path != ""
}
