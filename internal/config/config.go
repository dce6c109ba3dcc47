// Package config loads the optional YAML configuration file.
//
// The file is located by the --config flag or, failing that, the
// MOHYUNG_CONFIG environment variable. Without either, Default is used.
// Values in the file override defaults, and flags given explicitly on
// the command line override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/cbcruk/mohyung"
	"github.com/cbcruk/mohyung/internal/compress"
	"github.com/cbcruk/mohyung/internal/extract"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "MOHYUNG_CONFIG"

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the complete configuration.
type Config struct {
	// Source is the dependency tree to pack, and the tree status compares.
	// Default: ./node_modules
	Source string `yaml:"source"`

	// Archive is the snapshot file.
	// Default: ./node_modules.db
	Archive string `yaml:"archive"`

	// Workers bounds concurrency for every parallel stage.
	// Zero uses GOMAXPROCS.
	Workers int `yaml:"workers"`

	Compression CompressionConfig `yaml:"compression"`
	Lockfile    LockfileConfig    `yaml:"lockfile"`
	Extract     ExtractConfig     `yaml:"extract"`
	Status      StatusConfig      `yaml:"status"`
}

// CompressionConfig configures blob compression.
type CompressionConfig struct {
	// Level is 1 (fastest) to 9 (smallest).
	// Default: 6
	Level int `yaml:"level"`

	// Codec is zstd, gzip, or lz4.
	// Default: zstd
	Codec string `yaml:"codec"`
}

// LockfileConfig configures recording the project's lockfile fingerprint.
type LockfileConfig struct {
	// Include enables the lockfile fingerprint.
	// Default: false
	Include bool `yaml:"include"`

	// Names are tried in order in the directory containing the source tree.
	// Default: package-lock.json, pnpm-lock.yaml, yarn.lock
	Names []string `yaml:"names"`
}

// ExtractConfig configures unpack.
type ExtractConfig struct {
	// CacheThreshold is the decompressed size, in bytes, below which blob
	// content is cached for reuse.
	// Default: 102400
	CacheThreshold int `yaml:"cache_threshold"`

	// BatchBytes bounds the decompressed bytes held in memory at once.
	// Default: 67108864
	BatchBytes int `yaml:"batch_bytes"`

	// PreserveTimes restores recorded modification times.
	// Default: false
	PreserveTimes bool `yaml:"preserve_times"`
}

// StatusConfig configures status.
type StatusConfig struct {
	// Untracked also reports package files missing from the archive.
	// Default: false
	Untracked bool `yaml:"untracked"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Source:  "./node_modules",
		Archive: "./node_modules.db",
		Compression: CompressionConfig{
			Level: compress.DefaultLevel,
			Codec: compress.DefaultCodec.String(),
		},
		Lockfile: LockfileConfig{
			Names: slices.Clone(mohyung.DefaultLockfileNames),
		},
		Extract: ExtractConfig{
			CacheThreshold: extract.DefaultCacheThreshold,
			BatchBytes:     extract.DefaultBatchBytes,
		},
	}
}

// Load returns the configuration named by path, or by MOHYUNG_CONFIG when
// path is empty. With neither set it returns Default.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults.
// Environment variables in path fields are expanded.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Source = os.ExpandEnv(cfg.Source)
	cfg.Archive = os.ExpandEnv(cfg.Archive)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every field holds a usable value.
func (c *Config) Validate() error {
	var errs []error
	if c.Source == "" {
		errs = append(errs, errors.New("source must not be empty"))
	}
	if c.Archive == "" {
		errs = append(errs, errors.New("archive must not be empty"))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if err := compress.ValidateLevel(c.Compression.Level); err != nil {
		errs = append(errs, err)
	}
	if _, err := compress.ParseCodec(c.Compression.Codec); err != nil {
		errs = append(errs, err)
	}
	if c.Extract.CacheThreshold < 0 {
		errs = append(errs, fmt.Errorf("extract.cache_threshold must not be negative, got %d", c.Extract.CacheThreshold))
	}
	if c.Extract.BatchBytes <= 0 {
		errs = append(errs, fmt.Errorf("extract.batch_bytes must be positive, got %d", c.Extract.BatchBytes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
