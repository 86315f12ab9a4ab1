// Package config loads the nystagmus runtime configuration from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"os"
	"path/filepath"
)

// Defaults for fields omitted from the config file.
const (
	DefaultMissingValueSentinel = -32768
	DefaultWorkers              = 1
	DefaultDBPath               = "nystagmus.db"
	DefaultListen               = ":8080"
	DefaultMaxUploadBytes       = 512 * 1024 * 1024
)

const maxConfigBytes = 1 * 1024 * 1024

// Config is the root configuration. Every field is optional; the Get*
// methods supply defaults for fields left out of the JSON.
type Config struct {
	// Segmentation
	MissingValueSentinel *float64 `json:"missing_value_sentinel,omitempty"`
	SegmentWorkers       *int     `json:"segment_workers,omitempty"`

	// Calibration
	CalibrateWorkers *int `json:"calibrate_workers,omitempty"`

	// Storage and serving
	DBPath         *string `json:"db_path,omitempty"`
	Listen         *string `json:"listen,omitempty"`
	MaxUploadBytes *int64  `json:"max_upload_bytes,omitempty"`

	// Log streams beyond ops
	LogDiag  *bool `json:"log_diag,omitempty"`
	LogTrace *bool `json:"log_trace,omitempty"`
}

// Empty returns a Config with every field unset.
func Empty() *Config {
	return &Config{}
}

// Load reads a Config from a JSON file. The file must have a .json
// extension and be at most 1 MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigBytes)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Empty()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the fields that are set.
func (c *Config) Validate() error {
	if c.MissingValueSentinel != nil {
		if v := *c.MissingValueSentinel; math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("missing_value_sentinel must be finite, got %v", v)
		}
	}
	if c.SegmentWorkers != nil && *c.SegmentWorkers < 1 {
		return fmt.Errorf("segment_workers must be at least 1, got %d", *c.SegmentWorkers)
	}
	if c.CalibrateWorkers != nil && *c.CalibrateWorkers < 1 {
		return fmt.Errorf("calibrate_workers must be at least 1, got %d", *c.CalibrateWorkers)
	}
	if c.DBPath != nil && *c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.Listen != nil {
		if _, _, err := net.SplitHostPort(*c.Listen); err != nil {
			return fmt.Errorf("invalid listen address %q: %w", *c.Listen, err)
		}
	}
	if c.MaxUploadBytes != nil && *c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", *c.MaxUploadBytes)
	}
	return nil
}

// GetMissingValueSentinel returns the value the tracker writes for a missing
// sample.
func (c *Config) GetMissingValueSentinel() float64 {
	if c.MissingValueSentinel == nil {
		return DefaultMissingValueSentinel
	}
	return *c.MissingValueSentinel
}

// GetSegmentWorkers returns how many trials are built concurrently.
func (c *Config) GetSegmentWorkers() int {
	if c.SegmentWorkers == nil {
		return DefaultWorkers
	}
	return *c.SegmentWorkers
}

// GetCalibrateWorkers returns how many trials are calibrated concurrently.
func (c *Config) GetCalibrateWorkers() int {
	if c.CalibrateWorkers == nil {
		return DefaultWorkers
	}
	return *c.CalibrateWorkers
}

func (c *Config) GetDBPath() string {
	if c.DBPath == nil {
		return DefaultDBPath
	}
	return *c.DBPath
}

func (c *Config) GetListen() string {
	if c.Listen == nil {
		return DefaultListen
	}
	return *c.Listen
}

// GetMaxUploadBytes bounds the body of a recording upload.
func (c *Config) GetMaxUploadBytes() int64 {
	if c.MaxUploadBytes == nil {
		return DefaultMaxUploadBytes
	}
	return *c.MaxUploadBytes
}

func (c *Config) GetLogDiag() bool {
	return c.LogDiag != nil && *c.LogDiag
}

func (c *Config) GetLogTrace() bool {
	return c.LogTrace != nil && *c.LogTrace
}
