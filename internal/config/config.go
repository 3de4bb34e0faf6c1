// Package config handles configuration loading, validation, and management for keyerd.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Version is the current configuration schema version.
const Version = 1

// Config holds the complete daemon configuration.
type Config struct {
	// Version is the configuration schema version.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Keyer selects the keying mode and speed.
	Keyer KeyerConfig `toml:"keyer" json:"keyer" yaml:"keyer"`

	// Paddles configures the input device.
	Paddles PaddlesConfig `toml:"paddles" json:"paddles" yaml:"paddles"`

	// Loop configures the engine's tick.
	Loop LoopConfig `toml:"loop" json:"loop" yaml:"loop"`

	// Output configures the transmitter sinks.
	Output OutputConfig `toml:"output" json:"output" yaml:"output"`

	// Journal configures the SQLite element journal.
	Journal JournalConfig `toml:"journal" json:"journal" yaml:"journal"`

	// Control configures the HTTP control API.
	Control ControlConfig `toml:"control" json:"control" yaml:"control"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// KeyerConfig holds the keyer selection.
type KeyerConfig struct {
	// Number is the registry selector, 0 for raw passthrough.
	Number int `toml:"number" json:"number" yaml:"number"`

	// WPM is the sending speed in words per minute.
	WPM int `toml:"wpm" json:"wpm" yaml:"wpm"`
}

// PaddlesConfig holds the evdev input configuration.
type PaddlesConfig struct {
	// Device is the evdev node, e.g. /dev/input/event3.
	// Empty disables live input.
	Device string `toml:"device" json:"device" yaml:"device"`

	DitCode      uint16 `toml:"dit_code" json:"dit_code" yaml:"dit_code"`
	DahCode      uint16 `toml:"dah_code" json:"dah_code" yaml:"dah_code"`
	StraightCode uint16 `toml:"straight_code" json:"straight_code" yaml:"straight_code"`

	// Swap exchanges dit and dah, for left-handed operators.
	Swap bool `toml:"swap" json:"swap" yaml:"swap"`

	// Grab takes the device exclusively.
	Grab bool `toml:"grab" json:"grab" yaml:"grab"`
}

// LoopConfig holds engine timing.
type LoopConfig struct {
	TickIntervalMs int `toml:"tick_interval_ms" json:"tick_interval_ms" yaml:"tick_interval_ms"`
}

// OutputConfig holds transmitter sink options.
type OutputConfig struct {
	// LogElements logs every relay edge at debug level.
	LogElements bool `toml:"log_elements" json:"log_elements" yaml:"log_elements"`

	// NotesPath receives MIDI note messages per relay. Empty disables.
	NotesPath string `toml:"notes_path" json:"notes_path" yaml:"notes_path"`

	DitNote int `toml:"dit_note" json:"dit_note" yaml:"dit_note"`
	DahNote int `toml:"dah_note" json:"dah_note" yaml:"dah_note"`
}

// JournalConfig holds element journal options.
type JournalConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Path    string `toml:"path" json:"path" yaml:"path"`
}

// ControlConfig holds the HTTP control API options.
type ControlConfig struct {
	Enabled bool   `toml:"enabled" json:"enabled" yaml:"enabled"`
	Addr    string `toml:"addr" json:"addr" yaml:"addr"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is "stdout", "stderr", "file" or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the log file used for "file" and "both".
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	MaxSizeMB  int  `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `toml:"max_backups" json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
	Compress   bool `toml:"compress" json:"compress" yaml:"compress"`
}

// Linux input event codes for the default paddle mapping:
// KEY_LEFTCTRL, KEY_RIGHTCTRL and KEY_SPACE.
const (
	DefaultDitCode      = 29
	DefaultDahCode      = 97
	DefaultStraightCode = 57
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()
	return &Config{
		Version: Version,
		Keyer: KeyerConfig{
			Number: 8,
			WPM:    20,
		},
		Paddles: PaddlesConfig{
			DitCode:      DefaultDitCode,
			DahCode:      DefaultDahCode,
			StraightCode: DefaultStraightCode,
		},
		Loop: LoopConfig{
			TickIntervalMs: 1,
		},
		Output: OutputConfig{
			DitNote: 1,
			DahNote: 2,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(dir, "journal.db"),
		},
		Control: ControlConfig{
			Enabled: true,
			Addr:    "127.0.0.1:7373",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "keyerd.log"),
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 14,
			Compress:   true,
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// DataDir returns the base keyerd data directory, honoring KEYERD_DATA_DIR.
func DataDir() string {
	if envDir := os.Getenv("KEYERD_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// Load reads configuration from path. A missing file yields the defaults.
// Environment overrides are applied; validation is left to the caller.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{}
	if c.Journal.Enabled {
		dirs = append(dirs, filepath.Dir(c.Journal.Path))
	}
	if c.Logging.Output == "file" || c.Logging.Output == "both" {
		dirs = append(dirs, filepath.Dir(c.Logging.FilePath))
	}

	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies KEYERD_* environment variables.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv("KEYERD_KEYER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KEYERD_KEYER: %w", err)
		}
		c.Keyer.Number = n
	}
	if v := os.Getenv("KEYERD_WPM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("KEYERD_WPM: %w", err)
		}
		c.Keyer.WPM = n
	}
	if v := os.Getenv("KEYERD_DEVICE"); v != "" {
		c.Paddles.Device = v
	}
	if v := os.Getenv("KEYERD_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("KEYERD_CONTROL_ADDR"); v != "" {
		c.Control.Addr = v
	}
	return nil
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// SaveConfig writes cfg to path as TOML, creating parent directories.
func SaveConfig(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# keyerd configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode TOML: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
