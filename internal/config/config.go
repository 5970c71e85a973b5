// Package config loads the app shell's YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/appshell/internal/store"
)

// Defaults used when the file leaves a field empty.
const (
	DefaultCacheVersion = "v1"
	DefaultDatabase     = "appshell.db"
	DefaultLanguage     = "de"
	DefaultListen       = "127.0.0.1:8080"
	DefaultProbeTimeout = 3 * time.Second
)

// Config is the shell configuration.
type Config struct {
	// Server is the base URL of the remote API and of the network fallback
	// for cached resources.
	Server string `yaml:"server"`

	// CacheVersion names the resource cache generation to install and serve.
	CacheVersion string `yaml:"cache_version"`

	Database Database `yaml:"database"`

	// AssetsDir optionally overrides the bundled resources with a directory.
	AssetsDir string `yaml:"assets_dir,omitempty"`

	// Manifest optionally replaces the embedded CUE manifest.
	Manifest string `yaml:"manifest,omitempty"`

	// Language is used when a request carries no Accept-Language.
	Language string `yaml:"language"`

	Listen string `yaml:"listen"`

	Connectivity Connectivity `yaml:"connectivity"`
}

// Database selects the sqlite driver and file.
type Database struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// Connectivity configures the online check. An empty Probe derives the
// address from Server.
type Connectivity struct {
	Probe   string        `yaml:"probe,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		CacheVersion: DefaultCacheVersion,
		Database: Database{
			Driver: store.DriverCGO,
			Path:   DefaultDatabase,
		},
		Language: DefaultLanguage,
		Listen:   DefaultListen,
		Connectivity: Connectivity{
			Timeout: DefaultProbeTimeout,
		},
	}
}

// Load reads a YAML configuration file over the defaults. Relative paths
// in the file are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	cfg.Database.Path = resolvePath(base, cfg.Database.Path)
	cfg.AssetsDir = resolvePath(base, cfg.AssetsDir)
	cfg.Manifest = resolvePath(base, cfg.Manifest)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// Validate returns the first problem with the configuration.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server is required")
	}
	u, err := url.Parse(c.Server)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("server %q must be an absolute URL", c.Server)
	}
	if c.CacheVersion == "" {
		return fmt.Errorf("cache_version is required")
	}
	switch c.Database.Driver {
	case store.DriverCGO, store.DriverPure:
	default:
		return fmt.Errorf("database.driver %q must be %q or %q", c.Database.Driver, store.DriverCGO, store.DriverPure)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Connectivity.Timeout <= 0 {
		return fmt.Errorf("connectivity.timeout must be positive")
	}
	return nil
}
