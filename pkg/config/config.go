// Package config loads turbineguard settings from YAML.
package config

import (
	"fmt"
	"io"
	"maps"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/turbineguard/pkg/dataset"
	"github.com/hed1ad/turbineguard/pkg/detectors"
)

var validate = validator.New()

// Config is the file format. Missing keys keep their defaults.
type Config struct {
	Detectors detectors.Config `yaml:"detectors"`

	// Renames maps input header variants to canonical column names. Entries
	// in a file are added to the standard ones.
	Renames map[string]string `yaml:"renames"`

	Plots Plots `yaml:"plots"`
}

// Plots controls the diagnostic charts written next to the report.
type Plots struct {
	Enabled bool `yaml:"enabled"`
	Width   int  `yaml:"width" validate:"gte=200"`
	Height  int  `yaml:"height" validate:"gte=120"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Detectors: detectors.DefaultConfig(),
		Renames:   maps.Clone(dataset.StandardRenames),
		Plots: Plots{
			Enabled: true,
			Width:   1200,
			Height:  400,
		},
	}
}

// Load reads path over the defaults and validates the result. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the detector and plot settings.
func (c Config) Validate() error {
	if err := c.Detectors.Validate(); err != nil {
		return err
	}
	return validate.Struct(c.Plots)
}

// Write encodes c as YAML.
func Write(w io.Writer, c Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
