package main

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/theonuverse/pasmonux/monitor"
)

// Config is the top-level daemon configuration.
type Config struct {
	Addr     string         `yaml:"addr"`
	LogLevel string         `yaml:"log_level"`
	Monitor  monitor.Config `yaml:"monitor"`
	History  HistoryConfig  `yaml:"history"`
}

// HistoryConfig controls snapshot persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
	// Every records one sample per N published snapshots.
	Every int `yaml:"every"`
}

func (c *Config) defaults() {
	if c.Addr == "" {
		c.Addr = ":8099"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.History.DBPath == "" {
		c.History.DBPath = "db/history.db"
	}
	if c.History.Every <= 0 {
		c.History.Every = 20
	}
}

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.defaults()
	return &cfg, nil
}
