package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

// Config is the application configuration
type Config struct {
	Player   PlayerConfig   `mapstructure:"player"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Probe    ProbeConfig    `mapstructure:"probe"`
	Advanced AdvancedConfig `mapstructure:"advanced"`
}

// PlayerConfig configures the playback engine
type PlayerConfig struct {
	Volume         float64  `mapstructure:"volume"`           // initial volume, 0.0 to 1.0
	PollIntervalMS int      `mapstructure:"poll_interval_ms"` // position poll cadence while playing
	SeekStep       float64  `mapstructure:"seek_step"`        // default seek delta in seconds
	Fullscreen     bool     `mapstructure:"fullscreen"`
	LoadUserConfig bool     `mapstructure:"load_user_config"` // let mpv read the user's mpv.conf
	ExtraArgs      []string `mapstructure:"extra_args"`
}

// PollInterval returns the configured poll cadence as a duration
func (c *PlayerConfig) PollInterval() time.Duration {
	if c.PollIntervalMS <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// LoggingConfig configures logging
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // text or json
	File       string `mapstructure:"file"`
	Color      bool   `mapstructure:"color"`
	MaxSize    int    `mapstructure:"max_size"` // megabytes
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DatabaseConfig configures the sqlite database
type DatabaseConfig struct {
	Path           string `mapstructure:"path"`
	MaxConnections int    `mapstructure:"max_connections"`
	WALMode        bool   `mapstructure:"wal_mode"`
	AutoVacuum     bool   `mapstructure:"auto_vacuum"`
}

// SessionsConfig configures playback session tracking
type SessionsConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	SaveIntervalSecs int     `mapstructure:"save_interval_secs"` // how often progress is persisted
	MinFraction      float64 `mapstructure:"min_fraction"`       // below this, a session is not worth saving
	DoneFraction     float64 `mapstructure:"done_fraction"`      // at or above this, a session counts as finished
	RetentionDays    int     `mapstructure:"retention_days"`     // 0 keeps sessions forever
}

// ProbeConfig configures source URL probing
type ProbeConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	TimeoutSec int    `mapstructure:"timeout_sec"`
	Retries    int    `mapstructure:"retries"`
	UserAgent  string `mapstructure:"user_agent"`
}

// AdvancedConfig holds debug and developer settings
type AdvancedConfig struct {
	Debug     bool            `mapstructure:"debug"`
	Clipboard ClipboardConfig `mapstructure:"clipboard"`
}

// ClipboardConfig overrides clipboard tool detection
type ClipboardConfig struct {
	Command string `mapstructure:"command"` // custom copy command; text is piped to stdin
}

// Load reads configuration from the given file, or the default
// location when cfgFile is empty. The returned viper instance can be
// used for hot reload via WatchConfig.
func Load(cfgFile string) (*Config, *viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(GetConfigDir())
	}

	v.SetEnvPrefix("VIDBRIDGE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Player.Volume < 0 || c.Player.Volume > 1 {
		return fmt.Errorf("player.volume must be between 0.0 and 1.0, got %v", c.Player.Volume)
	}
	if c.Player.PollIntervalMS < 0 {
		return fmt.Errorf("player.poll_interval_ms must not be negative, got %d", c.Player.PollIntervalMS)
	}
	if c.Player.SeekStep < 0 {
		return fmt.Errorf("player.seek_step must not be negative, got %v", c.Player.SeekStep)
	}
	if c.Sessions.MinFraction < 0 || c.Sessions.MinFraction > 1 {
		return fmt.Errorf("sessions.min_fraction must be between 0.0 and 1.0, got %v", c.Sessions.MinFraction)
	}
	if c.Sessions.DoneFraction < 0 || c.Sessions.DoneFraction > 1 {
		return fmt.Errorf("sessions.done_fraction must be between 0.0 and 1.0, got %v", c.Sessions.DoneFraction)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Player
	v.SetDefault("player.volume", 1.0)
	v.SetDefault("player.poll_interval_ms", 100)
	v.SetDefault("player.seek_step", 10.0)
	v.SetDefault("player.fullscreen", false)
	v.SetDefault("player.load_user_config", false)
	v.SetDefault("player.extra_args", []string{})

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", filepath.Join(getStateDir(), "vidbridge", "vidbridge.log"))
	v.SetDefault("logging.color", true)
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 28)
	v.SetDefault("logging.compress", true)

	// Database
	v.SetDefault("database.path", filepath.Join(getDataDir(), "vidbridge", "vidbridge.db"))
	v.SetDefault("database.max_connections", 4)
	v.SetDefault("database.wal_mode", true)
	v.SetDefault("database.auto_vacuum", true)

	// Sessions
	v.SetDefault("sessions.enabled", true)
	v.SetDefault("sessions.save_interval_secs", 5)
	v.SetDefault("sessions.min_fraction", 0.01)
	v.SetDefault("sessions.done_fraction", 0.95)
	v.SetDefault("sessions.retention_days", 0)

	// Probe
	v.SetDefault("probe.enabled", true)
	v.SetDefault("probe.timeout_sec", 10)
	v.SetDefault("probe.retries", 2)
	v.SetDefault("probe.user_agent", "vidbridge/1.0")

	// Advanced
	v.SetDefault("advanced.debug", false)
	v.SetDefault("advanced.clipboard.command", "")
}

// InitializeDirs creates the config, data and state directories
func InitializeDirs() error {
	dirs := []string{
		GetConfigDir(),
		filepath.Join(getDataDir(), "vidbridge"),
		filepath.Join(getStateDir(), "vidbridge"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// GetConfigDir returns the directory config files are read from
func GetConfigDir() string {
	if dir := os.Getenv("VIDBRIDGE_CONFIG_DIR"); dir != "" {
		return dir
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "vidbridge")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "vidbridge")
}

// ConfigFilePath returns the default config file location
func ConfigFilePath() string {
	return filepath.Join(GetConfigDir(), "config.yaml")
}

// SaveDefaultConfig writes a commented default config file. It fails
// when the file already exists.
func SaveDefaultConfig() (string, error) {
	path := ConfigFilePath()
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}

func getDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return dir
		}
	}
	return filepath.Join(home, ".local", "share")
}

func getStateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return dir
		}
	}
	return filepath.Join(home, ".local", "state")
}

const defaultConfigYAML = `# vidbridge configuration

player:
  # Initial volume, 0.0 to 1.0
  volume: 1.0
  # Position poll cadence while playing, in milliseconds
  poll_interval_ms: 100
  # Default seek step for arrow keys, in seconds
  seek_step: 10.0
  fullscreen: false
  # Let mpv read the user's own mpv.conf
  load_user_config: false
  # Extra arguments passed through to mpv
  extra_args: []

logging:
  # debug, info, warn, error
  level: info
  # text or json
  format: text
  color: true
  max_size: 10
  max_backups: 3
  max_age: 28
  compress: true

database:
  max_connections: 4
  wal_mode: true
  auto_vacuum: true

sessions:
  enabled: true
  # How often playback progress is persisted, in seconds
  save_interval_secs: 5
  # Sessions shorter than this fraction of the video are discarded
  min_fraction: 0.01
  # At or above this fraction a session counts as finished
  done_fraction: 0.95
  # Sessions older than this are pruned; 0 keeps them forever
  retention_days: 0

probe:
  # Check source URLs before handing them to the player
  enabled: true
  timeout_sec: 10
  retries: 2
  user_agent: vidbridge/1.0

advanced:
  debug: false
  clipboard:
    # Custom copy command, e.g. "xclip -selection clipboard".
    # The text to copy is piped to its stdin. Empty uses platform
    # detection.
    command: ""
`
