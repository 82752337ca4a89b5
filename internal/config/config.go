package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"` // answer cache TTL
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Judge struct {
		MaxDistance int `yaml:"maxDistance"` // fuzzy-match threshold
		Workers     int `yaml:"workers"`
		QueueSize   int `yaml:"queueSize"`
	} `yaml:"judge"`
}

// Load reads YAML config from path. A missing file is not an error: the
// zero Config selects the in-memory backend with default tuning, so the
// server can run with no config at all.
func Load(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// AnswerCacheTTL parses the configured redis TTL, falling back when it is
// empty or malformed.
func (c Config) AnswerCacheTTL(fallback time.Duration) time.Duration {
	if c.Redis.TTL == "" {
		return fallback
	}
	d, err := time.ParseDuration(c.Redis.TTL)
	if err != nil {
		return fallback
	}
	return d
}
