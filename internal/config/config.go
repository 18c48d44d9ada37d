// Package config loads the YAML configuration file. A missing file is
// not an error; defaults apply and flags can override the path.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	HTTP struct {
		TimeoutSeconds int `yaml:"timeout_seconds"`
	} `yaml:"http"`

	Sync struct {
		Concurrency     int  `yaml:"concurrency"`
		MaxPastDays     int  `yaml:"max_past_days"`
		IntervalMinutes int  `yaml:"interval_minutes"`
		FullContent     bool `yaml:"full_content"`
		WifiOnly        bool `yaml:"wifi_only"`
		ChargingOnly    bool `yaml:"charging_only"`
	} `yaml:"sync"`
}

// Default returns a config with sensible defaults
func Default() *Config {
	cfg := &Config{}
	cfg.Database.Path = "./quill.db"
	cfg.HTTP.TimeoutSeconds = 30
	cfg.Sync.Concurrency = 8
	cfg.Sync.MaxPastDays = 30
	cfg.Sync.IntervalMinutes = 15
	return cfg
}

// Load reads the config at path, overlaying it on the defaults. A
// nonexistent path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// HTTPTimeout returns the configured client timeout.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}
