package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration of the example binaries. The library
// itself takes its parameters directly; this is host-application plumbing.
type Config struct {
	Device   DeviceConfig `yaml:"device"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
	LogLevel string       `yaml:"log_level"`
}

// DeviceConfig identifies the mesh node to pair with.
type DeviceConfig struct {
	MAC      string `yaml:"mac"`
	Name     string `yaml:"name"`
	Password string `yaml:"password"`
	Vendor   uint16 `yaml:"vendor"`
}

// MQTTConfig holds broker settings for the MQTT bridge.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "telinkgo")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Vendor: 0x0211,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			TopicPrefix: "telink",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Device.MAC == "" {
		return fmt.Errorf("device.mac must not be empty")
	}
	if c.Device.Name == "" {
		return fmt.Errorf("device.name must not be empty")
	}
	if len(c.Device.Name) > 16 {
		return fmt.Errorf("device.name must be at most 16 bytes, got %d", len(c.Device.Name))
	}
	if len(c.Device.Password) > 16 {
		return fmt.Errorf("device.password must be at most 16 bytes, got %d", len(c.Device.Password))
	}
	if c.MQTT.TopicPrefix == "" {
		return fmt.Errorf("mqtt.topic_prefix must not be empty")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn or error, got %q", c.LogLevel)
	}
	return nil
}
