// Package config loads ls-drive settings from defaults, an optional YAML
// file, a .env file and LS_DRIVE_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/litescript/ls-drive/internal/geo"
	"github.com/litescript/ls-drive/internal/routing"
)

// Config is the root configuration.
type Config struct {
	Map      MapConfig      `yaml:"map"`
	Speed    SpeedConfig    `yaml:"speed"`
	Routing  RoutingConfig  `yaml:"routing"`
	Geocode  GeocodeConfig  `yaml:"geocode"`
	ETA      ETAConfig      `yaml:"eta"`
	Playback PlaybackConfig `yaml:"playback"`
	Notice   NoticeConfig   `yaml:"notice"`
	Log      LogConfig      `yaml:"log"`
}

// Load returns Default overlaid with the YAML file at path (skipped when
// path is empty) and environment overrides, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files. Missing files are
// skipped; variables already set in the environment win.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Center returns the initial map center.
func (m MapConfig) Center() geo.Coordinate {
	return geo.Coordinate{Lat: m.CenterLat, Lng: m.CenterLng}
}

// Providers builds the routing providers in failover order. opts are
// applied after the configured profile and user agent.
func (r RoutingConfig) Providers(opts ...routing.OSRMOption) []routing.Provider {
	base := []routing.OSRMOption{
		routing.WithProfile(r.Profile),
		routing.WithUserAgent(r.UserAgent),
	}
	return routing.ProvidersFor(r.Endpoints, append(base, opts...)...)
}
