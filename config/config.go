package config

import (
	"fmt"
	"time"
)

// Config represents a spotlens.yaml configuration file.
// All values are optional and act as defaults for spotlens scan flags.
// CLI flags always override config values.
type Config struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Scan        ScanConfig        `yaml:"scan"`
	Cache       CacheConfig       `yaml:"cache"`
	Adapter     AdapterConfig     `yaml:"adapter"`
	Archive     ArchiveConfig     `yaml:"archive"`
}

// RecognitionConfig holds recognition endpoint defaults.
type RecognitionConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	APIKey         string   `yaml:"api_key"`
	MaxRetries     *int     `yaml:"max_retries,omitempty"`
	BaseDelay      Duration `yaml:"base_delay,omitempty"`
	MaxDelay       Duration `yaml:"max_delay,omitempty"`
	AttemptTimeout Duration `yaml:"attempt_timeout,omitempty"`
}

// ScanConfig holds pipeline shape defaults.
type ScanConfig struct {
	GridSize      int `yaml:"grid_size"`
	MaxConcurrent int `yaml:"max_concurrent"`
	Quality       int `yaml:"quality"`
}

// CacheConfig holds tile-result cache defaults.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AdapterConfig holds scan-completed adapter defaults.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// ArchiveConfig holds S3 report archival defaults.
type ArchiveConfig struct {
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}
