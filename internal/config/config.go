// Package config defines the application configuration.
package config

import (
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Storage   StorageConfig   `yaml:"storage"`
	Resources ResourcesConfig `yaml:"resources"`
	Game      GameConfig      `yaml:"game"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Resources.Validate(); err != nil {
		return err
	}
	if err := c.Game.Validate(); err != nil {
		return err
	}
	return c.Telemetry.Validate()
}

// AppConfig holds process-level settings.
type AppConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	LogFile  string     `yaml:"log_file"`
}

// Validate validates the application configuration.
func (c *AppConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.LogFile, validation.Required),
	)
}

// StorageConfig points at the key-value store folder.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ResourcesConfig points at the resources root and lists handler names.
type ResourcesConfig struct {
	Path   string `yaml:"path"`
	Scenes string `yaml:"scenes"`
	Saves  string `yaml:"saves"`
	Watch  bool   `yaml:"watch"`
}

// Validate validates the resources configuration.
func (c *ResourcesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Scenes, validation.Required),
		validation.Field(&c.Saves, validation.Required),
	)
}

// GameConfig holds the start position used when there is no save.
type GameConfig struct {
	StartMap   string `yaml:"start_map"`
	StartScene string `yaml:"start_scene"`
	StartX     int    `yaml:"start_x"`
	StartY     int    `yaml:"start_y"`
	MaxFPS     int    `yaml:"max_fps"`
}

// Validate validates the game configuration.
func (c *GameConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.StartMap, validation.Required),
		validation.Field(&c.StartScene, validation.Required),
		validation.Field(&c.StartX, validation.Min(0)),
		validation.Field(&c.StartY, validation.Min(0)),
		validation.Field(&c.MaxFPS, validation.Required, validation.Min(1), validation.Max(240)),
	)
}

// TelemetryConfig controls OTLP tracing. Endpoint may be empty, in which
// case the standard OTEL_* variables apply.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Validate validates the telemetry configuration.
func (c *TelemetryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, validation.When(c.Enabled && c.Endpoint != "", validation.Length(8, 0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: slog.LevelInfo,
			LogFile:  "tilerealm.log",
		},
		Storage: StorageConfig{
			Path: "assets/storage",
		},
		Resources: ResourcesConfig{
			Path:   "resources",
			Scenes: "scenes",
			Saves:  "saves",
			Watch:  true,
		},
		Game: GameConfig{
			StartMap:   "testa",
			StartScene: "scene1",
			StartX:     12,
			StartY:     6,
			MaxFPS:     60,
		},
	}
}
