// Package config loads engine settings from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	yaml "gopkg.in/yaml.v3"
)

// Config carries the tunable engine settings. Zero values select the
// documented defaults at the point of use.
type Config struct {
	Addr string `yaml:"addr"`

	Engine struct {
		PoolSize      int `yaml:"pool_size"`
		CacheCapacity int `yaml:"cache_capacity"`
		DefaultShots  int `yaml:"default_shots"`
		DefaultLayers int `yaml:"default_layers"`
	} `yaml:"engine"`

	RateLimit struct {
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// Default returns the baseline configuration.
func Default() Config {
	var c Config
	c.Addr = ":8080"
	c.Engine.PoolSize = 4
	c.Engine.CacheCapacity = 100
	c.Engine.DefaultShots = 1024
	c.Engine.DefaultLayers = 2
	c.RateLimit.PerSecond = 50
	c.RateLimit.Burst = 100
	return c
}

// Load reads path when it exists, then applies env overrides. An empty
// path checks CONFIG_FILE and falls back to defaults.
func Load(path string) (Config, error) {
	c := Default()
	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return c, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&c)
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
	if v := os.Getenv("ADDR"); v != "" {
		c.Addr = v
	}
	if n, ok := envInt("POOL_SIZE"); ok {
		c.Engine.PoolSize = n
	}
	if n, ok := envInt("CACHE_CAPACITY"); ok {
		c.Engine.CacheCapacity = n
	}
	if n, ok := envInt("DEFAULT_SHOTS"); ok {
		c.Engine.DefaultShots = n
	}
	if n, ok := envInt("DEFAULT_LAYERS"); ok {
		c.Engine.DefaultLayers = n
	}
	if v := os.Getenv("RATE_LIMIT_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.RateLimit.PerSecond = f
		}
	}
	if n, ok := envInt("RATE_LIMIT_BURST"); ok {
		c.RateLimit.Burst = n
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
