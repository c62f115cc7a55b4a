package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config holds all restock configuration.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Store      StoreConfig      `toml:"store"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Notify     NotifyConfig     `toml:"notify"`
	Archive    ArchiveConfig    `toml:"archive"`
	Appearance AppearanceConfig `toml:"appearance"`
	TUI        TUIConfig        `toml:"tui"`
}

// EngineConfig holds the forecasting and planning constants.
type EngineConfig struct {
	EWMAWindow         int     `toml:"ewma_window"`
	EWMADecay          float64 `toml:"ewma_decay"`
	CriticalDays       float64 `toml:"critical_days"`
	LowDays            float64 `toml:"low_days"`
	DefaultReorderDays float64 `toml:"default_reorder_days"`
	HighPriorityDays   float64 `toml:"high_priority_days"`
	LookaheadDays      float64 `toml:"lookahead_days"`
	FuzzyThreshold     float64 `toml:"fuzzy_threshold"`
	DefaultLocation    string  `toml:"default_location"`
	DefaultCategory    string  `toml:"default_category"`
	ConflictRetries    int     `toml:"conflict_retries"`
	HistoryLimit       int     `toml:"history_limit"`
}

// StoreConfig selects the persistence backend.
// Driver is one of memory, sqlite, mysql or postgres.
type StoreConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn,omitempty"`
}

// DaemonConfig holds the background service settings.
type DaemonConfig struct {
	Addr         string `toml:"addr"`
	IntervalSec  int    `toml:"interval_sec"`
	EventsBuffer int    `toml:"events_buffer"`
}

// NotifyConfig holds SMTP settings for the critical-items digest.
type NotifyConfig struct {
	Enabled  bool     `toml:"enabled"`
	SMTPHost string   `toml:"smtp_host,omitempty"`
	SMTPPort int      `toml:"smtp_port,omitempty"`
	Username string   `toml:"username,omitempty"`
	Password string   `toml:"password,omitempty"`
	From     string   `toml:"from,omitempty"`
	To       []string `toml:"to,omitempty"`
}

// ArchiveConfig holds S3 settings for the receipt archive.
type ArchiveConfig struct {
	Enabled   bool   `toml:"enabled"`
	Bucket    string `toml:"bucket,omitempty"`
	Region    string `toml:"region,omitempty"`
	Prefix    string `toml:"prefix,omitempty"`
	Endpoint  string `toml:"endpoint,omitempty"`
	AccessKey string `toml:"access_key,omitempty"`
	SecretKey string `toml:"secret_key,omitempty"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// TUIConfig holds dashboard refresh settings.
type TUIConfig struct {
	AutoRefresh        bool `toml:"auto_refresh"`
	RefreshIntervalSec int  `toml:"refresh_interval_sec"`
}

// DefaultEngine returns the engine constants used when none are configured.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		EWMAWindow:         5,
		EWMADecay:          0.5,
		CriticalDays:       2,
		LowDays:            5,
		DefaultReorderDays: 5,
		HighPriorityDays:   3,
		LookaheadDays:      14,
		FuzzyThreshold:     0.3,
		DefaultLocation:    "Pantry",
		DefaultCategory:    "Uncategorized",
		ConflictRetries:    3,
		HistoryLimit:       50,
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Engine: DefaultEngine(),
		Store: StoreConfig{
			Driver: "sqlite",
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8787",
			IntervalSec:  60,
			EventsBuffer: 200,
		},
		Notify: NotifyConfig{
			SMTPPort: 587,
		},
		Archive: ArchiveConfig{
			Prefix: "receipts/",
		},
		Appearance: AppearanceConfig{
			Theme: "pantry",
		},
		TUI: TUIConfig{
			AutoRefresh:        true,
			RefreshIntervalSec: 30,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "restock")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "restock")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the XDG-compliant data directory holding the default database.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "restock")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "restock")
}

// DefaultDBPath returns the sqlite path used when no DSN is configured.
func DefaultDBPath() string {
	return filepath.Join(DataDir(), "restock.db")
}

// Load reads the config file, returning defaults if it doesn't exist.
// A .env file in the working directory and RESTOCK_* variables override file values.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("loading .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
	} else if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	applyEnv(&cfg)
	cfg.Engine = cfg.Engine.withDefaults()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RESTOCK_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("RESTOCK_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("RESTOCK_DAEMON_ADDR"); v != "" {
		cfg.Daemon.Addr = v
	}
	if v := os.Getenv("RESTOCK_SMTP_PASSWORD"); v != "" {
		cfg.Notify.Password = v
	}
	if v := os.Getenv("RESTOCK_S3_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("RESTOCK_S3_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
}

// withDefaults fills zero fields left by a partial [engine] section.
func (e EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngine()
	if e.EWMAWindow <= 0 {
		e.EWMAWindow = d.EWMAWindow
	}
	if e.EWMADecay <= 0 || e.EWMADecay > 1 {
		e.EWMADecay = d.EWMADecay
	}
	if e.CriticalDays <= 0 {
		e.CriticalDays = d.CriticalDays
	}
	if e.LowDays <= 0 {
		e.LowDays = d.LowDays
	}
	if e.DefaultReorderDays <= 0 {
		e.DefaultReorderDays = d.DefaultReorderDays
	}
	if e.HighPriorityDays <= 0 {
		e.HighPriorityDays = d.HighPriorityDays
	}
	if e.LookaheadDays <= 0 {
		e.LookaheadDays = d.LookaheadDays
	}
	if e.FuzzyThreshold <= 0 {
		e.FuzzyThreshold = d.FuzzyThreshold
	}
	if e.DefaultLocation == "" {
		e.DefaultLocation = d.DefaultLocation
	}
	if e.DefaultCategory == "" {
		e.DefaultCategory = d.DefaultCategory
	}
	if e.ConflictRetries < 0 {
		e.ConflictRetries = d.ConflictRetries
	}
	if e.HistoryLimit <= e.EWMAWindow {
		e.HistoryLimit = d.HistoryLimit
		if e.HistoryLimit <= e.EWMAWindow {
			e.HistoryLimit = e.EWMAWindow + 1
		}
	}
	return e
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// StoreDSN returns the configured DSN, defaulting sqlite to the data directory.
func StoreDSN(cfg Config) string {
	if cfg.Store.DSN != "" {
		return cfg.Store.DSN
	}
	if cfg.Store.Driver == "sqlite" || cfg.Store.Driver == "" {
		return DefaultDBPath()
	}
	return ""
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
