// Package config holds the tool settings: session timeouts, the default
// slot, transports, and logging. Settings live in a TOML file under the
// user config directory and every field has a working default.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"

	"lcxl3/device"
)

// SerialConfig points profile transfers at a DIN serial line instead of the
// OS MIDI ports. Empty Device leaves serial disabled.
type SerialConfig struct {
	Device string `toml:"device,omitempty"`
	Baud   int    `toml:"baud,omitempty"`
}

// Config is the main configuration structure.
type Config struct {
	// DefaultSlot is used by commands that take no explicit slot
	DefaultSlot int `toml:"default_slot"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `toml:"log_level"`

	// Trace dumps every frame on the wire to the log
	Trace bool `toml:"trace,omitempty"`

	// ModeDir is where mode files are kept
	ModeDir string `toml:"mode_dir,omitempty"`

	// Session timing, all in milliseconds. Zero means the built-in default.
	ConnectTimeoutMS int `toml:"connect_timeout_ms,omitempty"`
	SynAckTimeoutMS  int `toml:"synack_timeout_ms,omitempty"`
	PageTimeoutMS    int `toml:"page_timeout_ms,omitempty"`

	// WriteRetries is how many times a page is resent before giving up
	WriteRetries int `toml:"write_retries"`

	Serial SerialConfig `toml:"serial,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DefaultSlot:  1,
		LogLevel:     "info",
		WriteRetries: 2,
		Serial:       SerialConfig{Baud: 31250},
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "lcxl3"), nil
}

// ConfigPath returns the full path to config.toml.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config from its default location, or returns defaults if
// no file exists yet.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path. A missing file is not an
// error; it yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to its default location.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to an explicit path.
func (c *Config) SaveTo(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

func (c *Config) validate() error {
	if c.DefaultSlot < device.SlotMin || c.DefaultSlot > device.SlotMax {
		return fmt.Errorf("default_slot %d outside %d..%d", c.DefaultSlot, device.SlotMin, device.SlotMax)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level %q: %w", c.LogLevel, err)
	}
	if c.WriteRetries < 0 {
		return fmt.Errorf("write_retries %d is negative", c.WriteRetries)
	}
	for name, ms := range map[string]int{
		"connect_timeout_ms": c.ConnectTimeoutMS,
		"synack_timeout_ms":  c.SynAckTimeoutMS,
		"page_timeout_ms":    c.PageTimeoutMS,
	} {
		if ms < 0 {
			return fmt.Errorf("%s %d is negative", name, ms)
		}
	}
	return nil
}

// Level parses the configured log level.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// ModesDir returns the directory mode files are kept in, defaulting to
// modes/ under the config directory.
func (c *Config) ModesDir() (string, error) {
	if c.ModeDir != "" {
		return c.ModeDir, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "modes"), nil
}

// DeviceOptions translates the configured timing into session options.
func (c *Config) DeviceOptions(logger zerolog.Logger) []device.Option {
	opts := []device.Option{
		device.WithLogger(logger),
		device.WithWriteRetries(c.WriteRetries),
	}
	if c.ConnectTimeoutMS > 0 {
		opts = append(opts, device.WithConnectTimeout(time.Duration(c.ConnectTimeoutMS)*time.Millisecond))
	}
	if c.SynAckTimeoutMS > 0 {
		opts = append(opts, device.WithSynAckTimeout(time.Duration(c.SynAckTimeoutMS)*time.Millisecond))
	}
	if c.PageTimeoutMS > 0 {
		opts = append(opts, device.WithPageTimeout(time.Duration(c.PageTimeoutMS)*time.Millisecond))
	}
	return opts
}
