package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"attune/internal/fileutil"
)

// Config describes all runtime settings for attune.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Scan    Scan    `toml:"scan"`
	Logging Logging `toml:"logging"`
}

// Paths contains directory configuration for the settings and data stores.
type Paths struct {
	// SettingsDir holds sources.toml and the legacy directories.txt import.
	SettingsDir string `toml:"settings_dir"`
	// DataDir holds media.db, the instance lock, and log output.
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Scan contains scanner tuning knobs.
type Scan struct {
	// Workers caps how many roots are scanned in parallel; 0 means one
	// worker per root.
	Workers int `toml:"workers"`
	// FollowSymlinks enables descending into symlinked directories.
	// Cycles are broken by device:inode tracking either way.
	FollowSymlinks bool `toml:"follow_symlinks"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return fileutil.ExpandHome("~/.config/attune/config.toml")
}

// Load reads the config file at path, falling back to defaults when the
// file does not exist. Relative and ~-prefixed paths are expanded.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg.normalize()
			return &cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Paths.SettingsDir = fileutil.ExpandHome(c.Paths.SettingsDir)
	c.Paths.DataDir = fileutil.ExpandHome(c.Paths.DataDir)
	c.Paths.LogDir = fileutil.ExpandHome(c.Paths.LogDir)
	if c.Paths.LogDir == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Paths.SettingsDir == "" {
		return errors.New("config: settings_dir must not be empty")
	}
	if c.Paths.DataDir == "" {
		return errors.New("config: data_dir must not be empty")
	}
	switch c.Logging.Format {
	case "", "console", "json", "auto":
	default:
		return fmt.Errorf("config: unsupported log format %q", c.Logging.Format)
	}
	if c.Scan.Workers < 0 {
		return errors.New("config: scan workers must not be negative")
	}
	return nil
}

// EnsureDirectories creates the settings, data, and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.SettingsDir, c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure directory %s: %w", dir, err)
		}
	}
	return nil
}

// CachePath returns the location of the media cache database.
func (c *Config) CachePath() string {
	return filepath.Join(c.Paths.DataDir, "media.db")
}

// PolicyPath returns the location of the source policy file.
func (c *Config) PolicyPath() string {
	return filepath.Join(c.Paths.SettingsDir, "sources.toml")
}

// LegacyPolicyPath returns the location of the legacy one-path-per-line
// directory list.
func (c *Config) LegacyPolicyPath() string {
	return filepath.Join(c.Paths.SettingsDir, "directories.txt")
}

// LockPath returns the location of the single-writer instance lock.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "attune.lock")
}

// Write serializes the config to path as TOML.
func (c *Config) Write(path string) error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure config directory: %w", err)
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}
