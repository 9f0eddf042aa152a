// Package config loads relite.yaml, the settings shared by the CLI, the
// inspector hub and processes that attach a devtool bridge.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the file looked up when no --config flag is given.
const DefaultPath = "relite.yaml"

// Config represents the structure of relite.yaml.
type Config struct {
	Log     LogConfig     `yaml:"log" json:"log"`
	Hub     HubConfig     `yaml:"hub" json:"hub"`
	DevTool DevToolConfig `yaml:"devtool" json:"devtool"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// HubConfig configures the inspector hub.
type HubConfig struct {
	Addr       string   `yaml:"addr" json:"addr"`
	MaxHistory int      `yaml:"max_history" json:"max_history"`
	Origins    []string `yaml:"origins" json:"origins"`
}

// DevToolConfig configures a devtool bridge.
type DevToolConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	Transport      string   `yaml:"transport" json:"transport"`
	URL            string   `yaml:"url" json:"url"`
	Name           string   `yaml:"name" json:"name"`
	Mode           string   `yaml:"mode" json:"mode"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
	ConnectTimeout Duration `yaml:"connect_timeout" json:"connect_timeout"`
}

// RedisConfig configures the Redis pub/sub transport.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
	Prefix   string `yaml:"prefix" json:"prefix"`
}

// Duration is a time.Duration written as a Go duration string ("5s").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalJSON parses a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return d.parse(s)
}

// MarshalJSON writes the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Hub: HubConfig{Addr: ":8765", MaxHistory: 200},
		DevTool: DevToolConfig{
			Enabled:        true,
			Transport:      "websocket",
			URL:            "ws://localhost:8765/ws",
			Mode:           "two-way",
			MaxAge:         50,
			ConnectTimeout: Duration(5 * time.Second),
		},
		Redis: RedisConfig{Addr: "localhost:6379", Prefix: "relite:devtool:"},
	}
}

// Load reads a configuration file (YAML or JSON) over the defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	return cfg, cfg.Validate()
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	switch c.DevTool.Mode {
	case "", "one-way", "two-way":
	default:
		return fmt.Errorf("devtool.mode: unknown mode %q", c.DevTool.Mode)
	}
	switch c.DevTool.Transport {
	case "", "websocket", "redis", "memory":
	default:
		return fmt.Errorf("devtool.transport: unknown transport %q", c.DevTool.Transport)
	}
	if c.DevTool.MaxAge < 0 || c.Hub.MaxHistory < 0 {
		return fmt.Errorf("history sizes must not be negative")
	}
	return nil
}
