// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads daemon configuration from an optional YAML file with
// environment variable overrides. Environment always wins over file values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/flowline/flowline/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultAddr           = ":8080"
	DefaultRunTimeout     = 10 * time.Minute
	DefaultSandboxTimeout = 1 * time.Second
	DefaultWebhookRate    = 5.0
	DefaultWebhookBurst   = 10
)

// Config holds the daemon configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// DatabaseURL is the SQLite database path. Empty selects the
	// in-memory store.
	DatabaseURL string `yaml:"database_url"`

	// AnthropicAPIKey enables the live LLM provider. Empty falls back to
	// stored credentials, then to the deterministic mock.
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// RunTimeout bounds a single run end to end.
	RunTimeout time.Duration `yaml:"run_timeout"`

	// SandboxTimeout bounds a single expression evaluation.
	SandboxTimeout time.Duration `yaml:"sandbox_timeout"`

	// WebhookRate and WebhookBurst configure per-daemon webhook rate
	// limiting (requests per second, burst size).
	WebhookRate  float64 `yaml:"webhook_rate"`
	WebhookBurst int     `yaml:"webhook_burst"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Addr:           DefaultAddr,
		RunTimeout:     DefaultRunTimeout,
		SandboxTimeout: DefaultSandboxTimeout,
		WebhookRate:    DefaultWebhookRate,
		WebhookBurst:   DefaultWebhookBurst,
	}
}

// Load reads configuration from the given YAML file path (optional, may be
// empty) and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &errors.ConfigError{
				Reason: fmt.Sprintf("failed to read config file %s", path),
				Cause:  err,
			}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &errors.ConfigError{
				Reason: fmt.Sprintf("failed to parse config file %s", path),
				Cause:  err,
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	if addr := os.Getenv("FLOWLINE_ADDR"); addr != "" {
		c.Addr = addr
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.DatabaseURL = url
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.AnthropicAPIKey = key
	}
	if v := os.Getenv("FLOWLINE_RUN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.RunTimeout = d
		}
	}
	if v := os.Getenv("FLOWLINE_SANDBOX_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.SandboxTimeout = d
		}
	}
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return &errors.ConfigError{Key: "addr", Reason: "must not be empty"}
	}
	if c.RunTimeout <= 0 {
		return &errors.ConfigError{Key: "run_timeout", Reason: "must be positive"}
	}
	if c.SandboxTimeout <= 0 {
		return &errors.ConfigError{Key: "sandbox_timeout", Reason: "must be positive"}
	}
	return nil
}
