package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/runnerr0/tabage/internal/registry"
)

// Default config file path.
const DefaultConfigPath = "~/.config/tabage/config.yaml"

// Config holds all tabage configuration.
type Config struct {
	Tracking TrackingConfig `yaml:"tracking"`
	Storage  StorageConfig  `yaml:"storage"`
	Daemon   DaemonConfig   `yaml:"daemon"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// TrackingConfig seeds the registry settings. Values saved through the API
// take precedence once stored.
type TrackingConfig struct {
	CaptureStrategy     string `yaml:"capture_strategy"`
	UnseenTabs          string `yaml:"unseen_tabs"`
	OldTabThresholdDays int    `yaml:"old_tab_threshold_days"`
	NotifyOldTabs       bool   `yaml:"notify_old_tabs"`
	BadgeDisplay        string `yaml:"badge_display"`
	TabGoal             int    `yaml:"tab_goal"`
}

type StorageConfig struct {
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
	Driver     string `yaml:"driver"`
	Registry   string `yaml:"registry"`
}

type DaemonConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxRequestSize int64    `yaml:"max_request_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file at path, merges it with defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate rejects unknown enum values and out-of-range numbers.
func (c *Config) Validate() error {
	if err := c.Tracking.Settings().Validate(); err != nil {
		return fmt.Errorf("tracking: %w", err)
	}

	switch c.Storage.Driver {
	case "sqlite3", "sqlite":
	default:
		return fmt.Errorf("storage.driver: unknown driver %q (want sqlite3 or sqlite)", c.Storage.Driver)
	}
	if strings.TrimSpace(c.Storage.Registry) == "" {
		return fmt.Errorf("storage.registry: must not be empty")
	}

	if c.Daemon.Port < 1 || c.Daemon.Port > 65535 {
		return fmt.Errorf("daemon.port: %d out of range", c.Daemon.Port)
	}
	if c.Daemon.MaxRequestSize <= 0 {
		return fmt.Errorf("daemon.max_request_size: must be positive")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unknown level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q (want text or json)", c.Logging.Format)
	}

	return nil
}

// Settings converts the tracking section into registry settings.
func (t TrackingConfig) Settings() registry.Settings {
	return registry.Settings{
		BadgeDisplay:        registry.BadgeDisplay(t.BadgeDisplay),
		CaptureStrategy:     registry.CaptureStrategy(t.CaptureStrategy),
		UnseenTabs:          registry.UnseenMode(t.UnseenTabs),
		OldTabThresholdDays: t.OldTabThresholdDays,
		NotifyOldTabs:       t.NotifyOldTabs,
		TabGoal:             t.TabGoal,
	}
}

// DBPath returns the database location with ~ expanded. ":memory:" is
// passed through untouched.
func (s StorageConfig) DBPath() (string, error) {
	if s.SQLiteFile == ":memory:" {
		return s.SQLiteFile, nil
	}
	dir, err := expandPath(s.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, s.SQLiteFile), nil
}

// Addr returns the daemon listen address.
func (d DaemonConfig) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// LogPath returns where logs are written, or "" for stderr. A relative
// file name is placed next to the database.
func (c *Config) LogPath() (string, error) {
	if c.Logging.File == "" {
		return "", nil
	}
	p, err := expandPath(c.Logging.File)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) {
		return p, nil
	}
	dir, err := expandPath(c.Storage.Path)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// expandPath replaces a leading ~ with the user's home directory.
func expandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := expandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
