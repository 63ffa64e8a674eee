// Package config loads the KageDB configuration file and supplies the
// defaults used by tests and tooling.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kagedb/kagedb/pkg/logger"
	"github.com/kagedb/kagedb/pkg/telemetry"
)

// StorageConfig tunes the storage engine.
type StorageConfig struct {
	// PageSize is the fixed page size in bytes.
	PageSize int `yaml:"page_size"`
	// PoolSize is the number of buffer pool frames.
	PoolSize int `yaml:"pool_size"`
	// ReplacerK is the k of the LRU-K replacement policy.
	ReplacerK int `yaml:"replacer_k"`
	// WriteBytesPerSec throttles scheduler writes; 0 means unthrottled.
	WriteBytesPerSec int `yaml:"write_bytes_per_sec"`
	// HeaderMaxDepth and DirectoryMaxDepth size the hash table's
	// routing levels; 0 means the largest depth that fits a page.
	HeaderMaxDepth    uint32 `yaml:"header_max_depth"`
	DirectoryMaxDepth uint32 `yaml:"directory_max_depth"`
	// BucketMaxSize caps entries per bucket; 0 means fill the page.
	BucketMaxSize uint32 `yaml:"bucket_max_size"`
}

// Config is the root configuration document.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Storage   StorageConfig    `yaml:"storage"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Logger: logger.Config{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Telemetry: telemetry.Config{
			Enabled:        false,
			ServiceName:    "kagedb",
			PrometheusPort: 9464,
		},
		Storage: StorageConfig{
			PageSize:  4096,
			PoolSize:  64,
			ReplacerK: 2,
		},
	}
}

// Load reads a yaml file over the defaults, so a partial file only
// overrides what it names.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects geometry the storage engine cannot run with.
func (c Config) Validate() error {
	s := c.Storage
	if s.PageSize < 512 {
		return fmt.Errorf("storage.page_size %d too small", s.PageSize)
	}
	if s.PoolSize < 1 {
		return fmt.Errorf("storage.pool_size %d must be positive", s.PoolSize)
	}
	if s.ReplacerK < 1 {
		return fmt.Errorf("storage.replacer_k %d must be positive", s.ReplacerK)
	}
	if s.WriteBytesPerSec < 0 {
		return fmt.Errorf("storage.write_bytes_per_sec %d must be non-negative", s.WriteBytesPerSec)
	}
	return nil
}
