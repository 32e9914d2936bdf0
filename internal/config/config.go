// Package config loads and validates the quilldocs build configuration.
//
// Configuration comes from three layers: a YAML file, an optional .env file
// loaded via godotenv, and process environment variables (which always win).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration for a documentation build.
type Config struct {
	// Title is the site title carried into the serialized tree root.
	Title string `yaml:"title"`

	Reference ReferenceConfig `yaml:"reference"`
	Guides    GuidesConfig    `yaml:"guides"`
	Output    OutputConfig    `yaml:"output"`
	Render    RenderConfig    `yaml:"render"`
	Events    EventsConfig    `yaml:"events"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ReferenceConfig locates the structured symbol metadata.
type ReferenceConfig struct {
	// MetadataDir holds one YAML file per documented module.
	MetadataDir string `yaml:"metadata_dir"`
}

// GuidesConfig locates the prose documentation sources.
type GuidesConfig struct {
	// ContentDir is walked recursively for Markdown pages.
	ContentDir string `yaml:"content_dir"`
}

// OutputConfig controls where the serialized tree and artifacts go.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// RenderConfig tunes the example rendering phase.
type RenderConfig struct {
	// QuillBin is the quill compiler binary invoked for example blocks.
	QuillBin string `yaml:"quill_bin"`
	// Workers caps concurrent example renders. 0 means a default derived
	// from GOMAXPROCS at pipeline construction.
	Workers int `yaml:"workers"`
	// Timeout bounds a single compile+rasterize; a hang becomes a
	// render_failure diagnostic instead of stalling the run.
	Timeout time.Duration `yaml:"timeout"`
	// DefaultScale is the pixel scale used when an example block does not
	// declare its own.
	DefaultScale float64 `yaml:"default_scale"`
	// CachePath is the sqlite artifact cache file. Empty disables the
	// persistent layer; the in-memory layer is always active.
	CachePath string `yaml:"cache_path"`
}

// EventsConfig enables publishing diagnostics to NATS JetStream.
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// MetricsConfig optionally exposes Prometheus metrics while a build runs.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// ErrNoSources indicates the configuration names neither a metadata directory
// nor a content directory, so there is nothing to build.
var ErrNoSources = errors.New("configuration declares no metadata_dir and no content_dir")

// Load reads the configuration file, applies the environment overlay and
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvFiles loads the first available .env file without overriding
// variables already present in the process environment.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
			return
		}
	}
}

// applyEnvOverrides maps QUILLDOCS_* environment variables onto the config.
// Environment always wins over file values.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("QUILLDOCS_QUILL_BIN"); v != "" {
		c.Render.QuillBin = v
	}
	if v := os.Getenv("QUILLDOCS_CACHE_PATH"); v != "" {
		c.Render.CachePath = v
	}
	if v := os.Getenv("QUILLDOCS_NATS_URL"); v != "" {
		c.Events.NATSURL = v
		c.Events.Enabled = true
	}
	if v := os.Getenv("QUILLDOCS_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
	}
}

func (c *Config) applyDefaults() {
	if c.Title == "" {
		c.Title = "Quill Documentation"
	}
	if c.Render.QuillBin == "" {
		c.Render.QuillBin = "quill"
	}
	if c.Render.Timeout <= 0 {
		c.Render.Timeout = 30 * time.Second
	}
	if c.Render.DefaultScale <= 0 {
		c.Render.DefaultScale = 2
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "./site-data"
	}
	if c.Events.Subject == "" {
		c.Events.Subject = "quilldocs.diagnostics"
	}
}

// Validate checks invariants that would otherwise surface as confusing
// failures deep inside the pipeline.
func (c *Config) Validate() error {
	if c.Reference.MetadataDir == "" && c.Guides.ContentDir == "" {
		return ErrNoSources
	}
	if c.Render.Workers < 0 {
		return fmt.Errorf("render.workers must be >= 0, got %d", c.Render.Workers)
	}
	if c.Events.Enabled && c.Events.NATSURL == "" {
		return errors.New("events.enabled requires events.nats_url")
	}
	return nil
}
