package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/focusd/go/internal/focusday"
	"github.com/mcdev12/focusd/go/internal/ledger"
)

// Config is the engine's file-based configuration. Everything has a default
// so a missing file just means "run with product defaults"; connection
// settings come from the environment instead.
type Config struct {
	Engine struct {
		GoalMinutes       int    `yaml:"goal_minutes"`
		MaxSessionMinutes int    `yaml:"max_session_minutes"`
		Timezone          string `yaml:"timezone"`
	} `yaml:"engine"`
	Rules ledger.Rules `yaml:"rules"`
	NATS  struct {
		URL           string `yaml:"url"`
		SubjectPrefix string `yaml:"subject_prefix"`
	} `yaml:"nats"`
	Identity struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"identity"`
}

func defaultConfig() *Config {
	cfg := &Config{Rules: ledger.DefaultRules()}
	engine := focusday.DefaultConfig()
	cfg.Engine.GoalMinutes = engine.GoalMinutes
	cfg.Engine.MaxSessionMinutes = engine.MaxSessionMinutes
	cfg.Engine.Timezone = "UTC"
	cfg.NATS.URL = getEnv("NATS_URL", "nats://localhost:4222")
	cfg.NATS.SubjectPrefix = "focus.events"
	cfg.Identity.BaseURL = getEnv("IDENTITY_URL", "http://localhost:8081")
	return cfg
}

func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return config, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// engineConfig resolves the day-service tunables, including the canonical
// timezone for day boundaries.
func (c *Config) engineConfig() (focusday.Config, error) {
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return focusday.Config{}, fmt.Errorf("failed to load timezone %q: %w", c.Engine.Timezone, err)
	}
	return focusday.Config{
		GoalMinutes:       c.Engine.GoalMinutes,
		MaxSessionMinutes: c.Engine.MaxSessionMinutes,
		Timezone:          loc,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
