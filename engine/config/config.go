package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultLogLevel     = "info"
	defaultWorkerLimit  = 4
	defaultImageWorkers = 4
)

// Duration is a time.Duration read from a TOML string such as "30s" or "1m30s".
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the toolkit configuration.
type Config struct {
	Log      LogConfig      `toml:"log"`
	Loader   LoaderConfig   `toml:"loader"`
	Draco    DracoConfig    `toml:"draco"`
	Images   ImagesConfig   `toml:"images"`
	Exporter ExporterConfig `toml:"exporter"`
}

// LogConfig configures the shared logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error or fatal.
	Level string `toml:"level"`
}

// LoaderConfig configures model loading.
type LoaderConfig struct {
	// Path is prepended to relative model locations.
	Path string `toml:"path"`

	// ResourcePath overrides the base URL of buffers and images.
	ResourcePath string `toml:"resource_path"`

	// RequestHeaders are added to every HTTP fetch.
	RequestHeaders map[string]string `toml:"request_headers"`

	// Watch evicts cached models when their files change.
	Watch bool `toml:"watch"`

	// Timeout bounds each load. Zero means no timeout.
	Timeout Duration `toml:"timeout"`
}

// DracoConfig configures the Draco decode workers.
type DracoConfig struct {
	WorkerLimit int    `toml:"worker_limit"`
	DecoderPath string `toml:"decoder_path"`
}

// ImagesConfig configures image decoding.
type ImagesConfig struct {
	Workers int `toml:"workers"`
}

// ExporterConfig holds the default export options.
type ExporterConfig struct {
	Binary      bool `toml:"binary"`
	OnlyVisible bool `toml:"only_visible"`
	EmbedImages bool `toml:"embed_images"`
}

// Default returns the built-in configuration.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Log:      LogConfig{Level: defaultLogLevel},
		Draco:    DracoConfig{WorkerLimit: defaultWorkerLimit},
		Images:   ImagesConfig{Workers: defaultImageWorkers},
		Exporter: ExporterConfig{EmbedImages: true},
	}
}

// Load reads a TOML file and overlays it on the defaults. Keys missing from the file keep their
// default values.
//
// Parameters:
//   - path: the file to read, or "" for the defaults
//
// Returns:
//   - Config: the merged configuration
//   - error: error if the file cannot be read, decoded or validated
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes TOML data over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return cfg, fmt.Errorf("invalid config at line %d, column %d: %w", row, col, err)
		}
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Draco.WorkerLimit < 1 {
		return fmt.Errorf("draco.worker_limit must be at least 1, got %d", c.Draco.WorkerLimit)
	}
	if c.Images.Workers < 1 {
		return fmt.Errorf("images.workers must be at least 1, got %d", c.Images.Workers)
	}
	if c.Loader.Timeout < 0 {
		return fmt.Errorf("loader.timeout must not be negative, got %s", time.Duration(c.Loader.Timeout))
	}
	return nil
}
