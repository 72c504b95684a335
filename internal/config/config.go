// Package config loads hub configuration from a YAML file with
// environment-variable overrides. Everything has a usable default so the
// server starts with no config file at all.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level hub configuration.
type Config struct {
	Listen       string `yaml:"listen"`
	DatabasePath string `yaml:"database_path"`
	NetworkPath  string `yaml:"network_path"`
	WatchNetwork bool   `yaml:"watch_network"`

	MQTT   MQTTConfig   `yaml:"mqtt"`
	Report ReportConfig `yaml:"report"`
	Log    LogConfig    `yaml:"log"`
}

// MQTTConfig configures the live survey-observation feed.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
}

// ReportConfig configures regional report generation.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir"`
	Theme     string `yaml:"theme"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file or overrides are
// present.
func Default() Config {
	return Config{
		Listen:       ":8080",
		DatabasePath: "data/rmohub.db",
		NetworkPath:  "data/network.geojson",
		MQTT: MQTTConfig{
			ClientID: "rmohub",
			Topic:    "rmo/survey/+/observation",
		},
		Report: ReportConfig{
			OutputDir: "reports",
			Theme:     "standard",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the config file at path (if it exists), applies environment
// overrides, and validates the result. An empty path skips the file and
// uses defaults plus overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Fall through to defaults; an explicit but missing path is
			// still worth surfacing.
			return cfg, fmt.Errorf("config file %s: %w", path, err)
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides file values with RMOHUB_* environment variables.
// Credentials in particular are expected to come from the environment
// rather than the config file.
func (c *Config) applyEnv() {
	setString(&c.Listen, "RMOHUB_LISTEN")
	setString(&c.DatabasePath, "RMOHUB_DB")
	setString(&c.NetworkPath, "RMOHUB_NETWORK")
	setString(&c.MQTT.Broker, "RMOHUB_MQTT_BROKER")
	setString(&c.MQTT.Username, "RMOHUB_MQTT_USERNAME")
	setString(&c.MQTT.Password, "RMOHUB_MQTT_PASSWORD")
	setString(&c.MQTT.Topic, "RMOHUB_MQTT_TOPIC")
	setString(&c.Log.Level, "RMOHUB_LOG_LEVEL")
	if v := os.Getenv("RMOHUB_MQTT_ENABLED"); v != "" {
		c.MQTT.Enabled = v == "1" || v == "true"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks for configurations that cannot work.
func (c Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database_path must not be empty")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.enabled is set but mqtt.broker is empty")
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}
