// Package config loads engine defaults from a YAML file with environment
// overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Solver struct {
		TimeBudgetMs    int   `yaml:"timeBudgetMs"`
		Seed            int64 `yaml:"seed"`
		IterationLimit  int   `yaml:"iterationLimit"`
		BaseDropPenalty int64 `yaml:"baseDropPenalty"`
	} `yaml:"solver"`

	Validator struct {
		MaxRouteDistanceKm  float64 `yaml:"maxRouteDistanceKm"`
		MaxRouteTimeMinutes float64 `yaml:"maxRouteTimeMinutes"`
	} `yaml:"validator"`

	Matrix struct {
		Mode            string  `yaml:"mode"` // geometric or remote
		BaseURL         string  `yaml:"baseURL"`
		APIKeyEnv       string  `yaml:"apiKeyEnv"`
		RequestsPerSec  float64 `yaml:"requestsPerSec"`
		AvgSpeedKmh     float64 `yaml:"avgSpeedKmh"`
		RedisURL        string  `yaml:"redisURL"`
		CacheTTLMinutes int     `yaml:"cacheTTLMinutes"`
	} `yaml:"matrix"`

	Store struct {
		Driver string `yaml:"driver"` // memory or postgres
		DSN    string `yaml:"dsn"`
	} `yaml:"store"`
}

func Default() Config {
	var c Config
	c.Solver.TimeBudgetMs = 5000
	c.Solver.Seed = 1
	c.Validator.MaxRouteDistanceKm = 300
	c.Validator.MaxRouteTimeMinutes = 600
	c.Matrix.Mode = "geometric"
	c.Matrix.AvgSpeedKmh = 30
	c.Matrix.RequestsPerSec = 1
	c.Matrix.CacheTTLMinutes = 1440
	c.Store.Driver = "memory"
	return c
}

// Load reads path (optional) over the defaults, then applies env overrides.
func Load(path string) (Config, error) {
	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return c, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &c); err != nil {
			return c, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&c)
	return c, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Matrix.RedisURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.Driver = "postgres"
		c.Store.DSN = v
	}
	if v := os.Getenv("MATRIX_BASE_URL"); v != "" {
		c.Matrix.Mode = "remote"
		c.Matrix.BaseURL = v
	}
	if v := os.Getenv("SOLVER_TIME_BUDGET_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Solver.TimeBudgetMs = n
		}
	}
}
