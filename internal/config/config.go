// Package config reads the optional archiver configuration file.
package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that decodes from TOML strings like "3s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// Config represents the archiver configuration.
type Config struct {
	HTTP    HTTPConfig    `toml:"http"`
	Engine  EngineConfig  `toml:"engine"`
	Archive ArchiveConfig `toml:"archive"`
	Logging LoggingConfig `toml:"logging"`
}

// HTTPConfig holds transport settings.
type HTTPConfig struct {
	BaseURL           string   `toml:"base_url"`
	Timeout           Duration `toml:"timeout"`
	GatewayRetryDelay Duration `toml:"gateway_retry_delay"`
}

// EngineConfig tunes enumeration and report hydration.
type EngineConfig struct {
	PageSize           int      `toml:"page_size"`
	EmptyPageThreshold int      `toml:"empty_page_threshold"`
	BatchSize          int      `toml:"batch_size"`
	MaxAttempts        int      `toml:"max_attempts"`
	ShortDelay         Duration `toml:"short_delay"`
	LongDelay          Duration `toml:"long_delay"`
	NetworkDelay       Duration `toml:"network_delay"`
}

// ArchiveConfig holds output settings.
type ArchiveConfig struct {
	OutputDir string `toml:"output_dir"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Default returns the configuration used when no file is given.
// Delays match Battlelog's observed throttling behavior.
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			BaseURL:           "https://battlelog.battlefield.com/bf4",
			Timeout:           Duration{30 * time.Second},
			GatewayRetryDelay: Duration{5 * time.Second},
		},
		Engine: EngineConfig{
			PageSize:           2048,
			EmptyPageThreshold: 5,
			BatchSize:          20,
			MaxAttempts:        6,
			ShortDelay:         Duration{3 * time.Second},
			LongDelay:          Duration{10 * time.Minute},
			NetworkDelay:       Duration{10 * time.Second},
		},
		Archive: ArchiveConfig{
			OutputDir: "bf4-battlelog-archive",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Read decodes a Config from the provided reader over the defaults, so a
// partial file only overrides the keys it names.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Load reads a Config from path; an empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}
