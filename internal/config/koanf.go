// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

package config

import (
	"fmt"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/barhound/config.yaml",
	"/etc/barhound/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "BARHOUND_CONFIG"

// envMappings maps environment variable names to koanf paths. Variables not
// listed here are ignored, so unrelated environment noise cannot leak into
// the configuration.
var envMappings = map[string]string{
	"HOST":             "server.host",
	"PORT":             "server.port",
	"READ_TIMEOUT":     "server.read_timeout",
	"WRITE_TIMEOUT":    "server.write_timeout",
	"SHUTDOWN_TIMEOUT": "server.shutdown_timeout",

	"DATABASE_PATH": "database.path",

	"LOG_LEVEL":  "logging.level",
	"LOG_FORMAT": "logging.format",
	"LOG_CALLER": "logging.caller",

	"USAGE_COLUMN":    "agent.usage_column",
	"SMOOTHING_LEVEL": "agent.smoothing_level",
	"TREND_THRESHOLD": "agent.trend_threshold",
	"AGENT_WORKERS":   "agent.workers",

	"DEFAULT_TARGET_WEEKS": "targets.default_weeks",

	"MIN_ORDER_QTY":    "constraints.min_order_qty",
	"MAX_TOTAL_SPEND":  "constraints.max_total_spend",
	"MAX_TOTAL_ITEMS":  "constraints.max_total_items",
	"STOCKOUT_WEEKS":   "constraints.stockout_weeks",
	"LOW_STOCK_FACTOR": "constraints.low_stock_factor",
	"OVERSTOCK_FACTOR": "constraints.overstock_factor",

	"RATE_LIMIT":  "api.rate_limit",
	"RATE_WINDOW": "api.rate_window",
}

// LoadWithKoanf loads configuration with layered sources: built-in defaults,
// an optional YAML config file, then environment variables (highest
// priority). The result is validated before being returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", configPath, err)
		}
	}

	envProvider := env.Provider("", ".", func(key string) string {
		return envMappings[key]
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns the first config file that exists, honoring the
// path override variable.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
		return ""
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
