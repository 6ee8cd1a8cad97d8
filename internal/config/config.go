// Package config loads runtime settings from defaults, an optional YAML file and
// FIELD_MCP_* environment variables, in that order of precedence.
package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. A double underscore separates
// nesting levels: FIELD_MCP_SMOOTHING__TILE_SIZE sets smoothing.tile_size.
const EnvPrefix = "FIELD_MCP_"

// HSV is a color on the 8-bit HSV scale.
type HSV struct {
	H int `koanf:"h"`
	S int `koanf:"s"`
	V int `koanf:"v"`
}

// Config holds every tunable of the server and the extraction pipeline.
type Config struct {
	LogLevel     string `koanf:"log_level"`
	ArtifactsDir string `koanf:"artifacts_dir"`

	Sampling struct {
		Radius int `koanf:"radius"`
		Marker struct {
			Enabled bool `koanf:"enabled"`
			Lower   HSV  `koanf:"lower"`
			Upper   HSV  `koanf:"upper"`
		} `koanf:"marker"`
	} `koanf:"sampling"`

	Segmentation struct {
		Hue        float64 `koanf:"hue"`
		Saturation float64 `koanf:"saturation"`
		Value      float64 `koanf:"value"`
	} `koanf:"segmentation"`

	Smoothing struct {
		TileSize  int     `koanf:"tile_size"`
		Threshold float64 `koanf:"threshold"`
	} `koanf:"smoothing"`

	Contour struct {
		EpsilonFactor float64 `koanf:"epsilon_factor"`
	} `koanf:"contour"`

	Circle struct {
		RadiusMeters float64 `koanf:"radius_meters"`
		Points       int     `koanf:"points"`
	} `koanf:"circle"`

	Map struct {
		TileWidth  int `koanf:"tile_width"`
		TileHeight int `koanf:"tile_height"`
	} `koanf:"map"`
}

// defaults mirrors the documented parameter defaults. The marker band matches the
// red circle drawn by map widgets around a selected point.
var defaults = map[string]interface{}{
	"log_level":               "info",
	"artifacts_dir":           "",
	"sampling.radius":         40,
	"sampling.marker.enabled": false,
	"sampling.marker.lower.h": 0,
	"sampling.marker.lower.s": 100,
	"sampling.marker.lower.v": 100,
	"sampling.marker.upper.h": 10,
	"sampling.marker.upper.s": 255,
	"sampling.marker.upper.v": 255,
	"segmentation.hue":        10.0,
	"segmentation.saturation": 50.0,
	"segmentation.value":      50.0,
	"smoothing.tile_size":     10,
	"smoothing.threshold":     0.6,
	"contour.epsilon_factor":  0.001,
	"circle.radius_meters":    50.0,
	"circle.points":           32,
	"map.tile_width":          640,
	"map.tile_height":         640,
}

// Default returns the built-in configuration, ignoring files and environment.
func Default() *Config {
	k := koanf.New(".")
	var cfg Config
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		panic(err)
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		panic(err)
	}
	return &cfg
}

// Load builds a Config from defaults, then path (if non-empty), then the
// environment, and validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps FIELD_MCP_SMOOTHING__TILE_SIZE to smoothing.tile_size.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Sampling.Radius < 0:
		return fmt.Errorf("sampling.radius must be >= 0, got %d", c.Sampling.Radius)
	case c.Segmentation.Hue < 0 || c.Segmentation.Saturation < 0 || c.Segmentation.Value < 0:
		return fmt.Errorf("segmentation tolerances must be >= 0")
	case c.Smoothing.TileSize <= 0:
		return fmt.Errorf("smoothing.tile_size must be > 0, got %d", c.Smoothing.TileSize)
	case c.Smoothing.Threshold < 0 || c.Smoothing.Threshold > 1:
		return fmt.Errorf("smoothing.threshold must be in [0,1], got %v", c.Smoothing.Threshold)
	case c.Contour.EpsilonFactor < 0:
		return fmt.Errorf("contour.epsilon_factor must be >= 0, got %v", c.Contour.EpsilonFactor)
	case c.Circle.RadiusMeters <= 0:
		return fmt.Errorf("circle.radius_meters must be > 0, got %v", c.Circle.RadiusMeters)
	case c.Circle.Points < 3:
		return fmt.Errorf("circle.points must be >= 3, got %d", c.Circle.Points)
	case c.Map.TileWidth <= 0 || c.Map.TileHeight <= 0:
		return fmt.Errorf("map tile size must be positive, got %dx%d", c.Map.TileWidth, c.Map.TileHeight)
	}
	return nil
}
