// Package config handles loading and validating tdxmnsi.yaml.
//
// Grounded on the teacher's internal/config (same Load/ResolvePath shape,
// env var over file over defaults), generalized from the teacher's
// single-concern plugin config to the full set of knobs a batch run needs:
// regions, dissolve thresholds, concurrency, storage backend, and the
// Postgres/crosswalk/HTTP endpoints.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level tdxmnsi.yaml configuration.
type Config struct {
	Regions []RegionConfig `yaml:"regions"`

	Dissolve DissolveConfig `yaml:"dissolve"`

	Concurrency int `yaml:"concurrency"`

	Storage StorageConfig `yaml:"storage"`

	PostgresDSN  string `yaml:"postgres_dsn"`
	CrosswalkURL string `yaml:"crosswalk_url"`
	HTTPAddr     string `yaml:"http_addr"`

	Schedule string `yaml:"schedule"`
}

// RegionConfig names one TDX Hydro region to batch-process and the glob
// patterns its streamnet/basins input files must match exactly once.
type RegionConfig struct {
	Code             int64  `yaml:"code"`
	StreamnetPattern string `yaml:"streamnet_pattern"`
	BasinsPattern    string `yaml:"basins_pattern"`
}

// DissolveConfig carries the dissolve planner's grouping window.
type DissolveConfig struct {
	MaxElements int32 `yaml:"max_elements"`
	MinElements int32 `yaml:"min_elements"`
}

// StorageConfig selects and configures the output sink backend.
type StorageConfig struct {
	Backend   string `yaml:"backend"` // "local" or "s3"
	LocalDir  string `yaml:"local_dir"`
	S3Bucket  string `yaml:"s3_bucket"`
	S3Prefix  string `yaml:"s3_prefix"`
	Retention int    `yaml:"retention"` // snapshots kept per region
}

const (
	defaultCrosswalkURL = "https://geoglows-v2.s3-us-west-2.amazonaws.com/tdxhydro-processing/tdx_header_numbers.json"
	defaultHTTPAddr     = ":8080"
	defaultConcurrency  = 4
	defaultMaxElements  = 100
	defaultMinElements  = 10
	defaultRetention    = 3
)

// DefaultConfig returns the zero-region defaults: no batch work configured,
// but every ambient knob set to a usable value.
func DefaultConfig() *Config {
	return &Config{
		Dissolve:     DissolveConfig{MaxElements: defaultMaxElements, MinElements: defaultMinElements},
		Concurrency:  defaultConcurrency,
		Storage:      StorageConfig{Backend: "local", LocalDir: "./output", Retention: defaultRetention},
		CrosswalkURL: defaultCrosswalkURL,
		HTTPAddr:     defaultHTTPAddr,
	}
}

// Load parses a tdxmnsi.yaml file and validates it. If path is empty,
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.applyDefaults().validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ResolvePath finds the config file path.
// Priority: TDXMNSI_CONFIG env var > ./tdxmnsi.yaml > "" (defaults only).
func ResolvePath() string {
	if p := os.Getenv("TDXMNSI_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("tdxmnsi.yaml"); err == nil {
		return "tdxmnsi.yaml"
	}
	return ""
}

func (c *Config) applyDefaults() *Config {
	if c.Concurrency == 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.CrosswalkURL == "" {
		c.CrosswalkURL = defaultCrosswalkURL
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = defaultHTTPAddr
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "local"
	}
	if c.Storage.Retention == 0 {
		c.Storage.Retention = defaultRetention
	}
	return c
}

func (c *Config) validate() error {
	if c.Dissolve.MinElements < 2 {
		return fmt.Errorf("dissolve.min_elements must be >= 2, got %d", c.Dissolve.MinElements)
	}
	if c.Dissolve.MinElements > c.Dissolve.MaxElements {
		return fmt.Errorf("dissolve.min_elements (%d) exceeds dissolve.max_elements (%d)", c.Dissolve.MinElements, c.Dissolve.MaxElements)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1, got %d", c.Concurrency)
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("storage.s3_bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of: local, s3", c.Storage.Backend)
	}
	seen := make(map[int64]bool, len(c.Regions))
	for _, r := range c.Regions {
		if seen[r.Code] {
			return fmt.Errorf("region %d is configured more than once", r.Code)
		}
		seen[r.Code] = true
	}
	return nil
}
