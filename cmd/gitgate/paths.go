package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gitgate/pkg/protocol"
)

// Paths holds all resolved gitgate state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	Home       string // ~/.gitgate or GITGATE_HOME
	PIDPath    string // gitgate.pid or GITGATE_PID_PATH
	DBPath     string // state.db or GITGATE_DB_PATH
	LockDir    string // locks/ or GITGATE_LOCK_DIR
	ConfigPath string // config.toml (respects GITGATE_HOME)
}

// ResolvePaths returns all gitgate paths, respecting env var overrides.
// Environment variables:
//   - GITGATE_HOME: base directory for all gitgate state (default: ~/.gitgate)
//   - GITGATE_PID_PATH: queue worker PID file (default: $GITGATE_HOME/gitgate.pid)
//   - GITGATE_DB_PATH: state database (default: $GITGATE_HOME/state.db)
//   - GITGATE_LOCK_DIR: lock file directory (default: $GITGATE_HOME/locks)
//
// If GITGATE_HOME is set, it becomes the base for all default paths.
// Specific env vars override both the default and the GITGATE_HOME base.
func ResolvePaths() (*Paths, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		Home:       home,
		PIDPath:    resolvePathWithEnv("GITGATE_PID_PATH", home, "gitgate.pid"),
		DBPath:     resolvePathWithEnv("GITGATE_DB_PATH", home, "state.db"),
		LockDir:    resolvePathWithEnv("GITGATE_LOCK_DIR", home, protocol.LocksDir),
		ConfigPath: filepath.Join(home, "config.toml"),
	}, nil
}

// EnsureHome creates the state and lock directories if absent.
func (p *Paths) EnsureHome() error {
	for _, dir := range []string{p.Home, p.LockDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// resolveHome returns the gitgate home directory from GITGATE_HOME or ~/.gitgate.
func resolveHome() (string, error) {
	if v := os.Getenv("GITGATE_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.GitgateDir), nil
}

// resolvePathWithEnv returns the path from envKey if set, otherwise joins base + suffix.
func resolvePathWithEnv(envKey, base, suffix string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return filepath.Join(base, suffix)
}
