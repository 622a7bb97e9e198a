// Package config loads the lumen runtime configuration from TOML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Log      Log      `toml:"log"`
	Window   Window   `toml:"window"`
	Cache    Cache    `toml:"cache"`
	Shadows  Shadows  `toml:"shadows"`
	Pipeline Pipeline `toml:"pipeline"`
}

type Log struct {
	Level  string `toml:"level"`
	Prefix string `toml:"prefix"`
}

type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Cache holds retention windows in frames.
type Cache struct {
	TextureRetention  uint64 `toml:"texture_retention"`
	PipelineRetention uint64 `toml:"pipeline_retention"`
	PassRetention     uint64 `toml:"pass_retention"`
}

type Shadows struct {
	MapSize int `toml:"map_size"`
}

type Pipeline struct {
	// Outputs lists extra main pass outputs: normal, emissive, velocity.
	Outputs []string `toml:"outputs,omitempty"`
	Debug   bool     `toml:"debug"`
	Reorder bool     `toml:"reorder"`
}

var (
	logLevels    = []string{"debug", "info", "warn", "error"}
	extraOutputs = []string{"normal", "emissive", "velocity"}
)

func Default() *Config {
	return &Config{
		Log:    Log{Level: "info", Prefix: "lumen"},
		Window: Window{Title: "lumen", Width: 1280, Height: 720},
		Cache: Cache{
			TextureRetention:  1,
			PipelineRetention: 120,
			PassRetention:     1,
		},
		Shadows: Shadows{MapSize: 2048},
	}
}

// Load reads path over the defaults. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s", ErrInvalid, strict.String())
		}
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Encode(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return enc.Encode(c)
}

func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(logLevels, c.Log.Level) {
		errs = append(errs, fmt.Errorf("%w: log.level %q, want one of %v", ErrInvalid, c.Log.Level, logLevels))
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		errs = append(errs, fmt.Errorf("%w: window size %dx%d", ErrInvalid, c.Window.Width, c.Window.Height))
	}
	if s := c.Shadows.MapSize; s < 16 || s&(s-1) != 0 {
		errs = append(errs, fmt.Errorf("%w: shadows.map_size %d is not a power of two >= 16", ErrInvalid, s))
	}
	if c.Cache.PipelineRetention == 0 {
		errs = append(errs, fmt.Errorf("%w: cache.pipeline_retention must be at least 1", ErrInvalid))
	}
	for _, o := range c.Pipeline.Outputs {
		if !slices.Contains(extraOutputs, o) {
			errs = append(errs, fmt.Errorf("%w: pipeline.outputs %q, want one of %v", ErrInvalid, o, extraOutputs))
		}
	}
	return errors.Join(errs...)
}
