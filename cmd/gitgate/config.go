package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gitgate/pkg/protocol"

	"github.com/pelletier/go-toml/v2"
)

// Config is the on-disk configuration (~/.gitgate/config.toml). Zero
// values fall back to the protocol defaults.
type Config struct {
	// WorkspaceRoot is the repository the coordinator serves; empty
	// means the current directory.
	WorkspaceRoot string `toml:"workspace_root"`

	// LockTimeoutSecs bounds a single lock acquisition.
	LockTimeoutSecs int `toml:"lock_timeout_secs"`

	// QueueWaitTimeoutSecs bounds a submitter's wait for its result.
	QueueWaitTimeoutSecs int `toml:"queue_wait_timeout_secs"`

	// RetentionDays is the metrics/event retention window.
	RetentionDays int `toml:"retention_days"`

	// ConfidenceThreshold gates predictor output.
	ConfidenceThreshold float64 `toml:"confidence_threshold"`

	// Lookahead caps predictions returned per query.
	Lookahead int `toml:"lookahead"`
}

// LoadConfig reads the TOML config at path. A missing file yields the
// zero Config (all defaults); a malformed file is an error.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path is resolved by the application
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// LockTimeout returns the configured lock timeout or the default.
func (c *Config) LockTimeout() time.Duration {
	if c.LockTimeoutSecs > 0 {
		return time.Duration(c.LockTimeoutSecs) * time.Second
	}
	return protocol.DefaultLockTimeout
}

// QueueWaitTimeout returns the configured wait timeout or the default.
func (c *Config) QueueWaitTimeout() time.Duration {
	if c.QueueWaitTimeoutSecs > 0 {
		return time.Duration(c.QueueWaitTimeoutSecs) * time.Second
	}
	return protocol.DefaultQueueWaitTimeout
}

// Retention returns the configured retention window in days or the default.
func (c *Config) Retention() int {
	if c.RetentionDays > 0 {
		return c.RetentionDays
	}
	return protocol.DefaultRetentionDays
}
