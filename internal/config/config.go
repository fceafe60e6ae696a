// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

// Package config defines the service configuration and its layered loader:
// built-in defaults, an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/barhound/barhound/internal/inventory"
	"github.com/barhound/barhound/internal/policy"
)

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig            `koanf:"server"`
	Database    DatabaseConfig          `koanf:"database"`
	Logging     LoggingConfig           `koanf:"logging"`
	Agent       AgentConfig             `koanf:"agent"`
	Targets     policy.OrderTargets     `koanf:"targets"`
	Constraints policy.OrderConstraints `koanf:"constraints"`
	API         APIConfig               `koanf:"api"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds the SQLite store settings.
type DatabaseConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// AgentConfig holds recommendation pipeline parameters.
type AgentConfig struct {
	// UsageColumn selects the windowed average used as the usage rate.
	UsageColumn string `koanf:"usage_column"`

	// SmoothingLevel is the exponential smoothing alpha, in (0, 1).
	SmoothingLevel float64 `koanf:"smoothing_level"`

	// TrendThreshold is the relative deviation that calls a trend, in (0, 1).
	TrendThreshold float64 `koanf:"trend_threshold"`

	// Workers bounds per-item parallelism. Zero means runtime.NumCPU().
	Workers int `koanf:"workers"`
}

// APIConfig holds HTTP API middleware settings.
type APIConfig struct {
	CORSOrigins []string      `koanf:"cors_origins"`
	RateLimit   int           `koanf:"rate_limit"`
	RateWindow  time.Duration `koanf:"rate_window"`
}

// defaultConfig returns the built-in defaults, applied before the config file
// and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "/data/barhound.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Agent: AgentConfig{
			UsageColumn:    string(inventory.UsageAvg4Wk),
			SmoothingLevel: 0.3,
			TrendThreshold: 0.1,
			Workers:        0,
		},
		Targets: policy.OrderTargets{
			DefaultWeeks: 4.0,
			ByCategory: map[inventory.Category]float64{
				inventory.CategoryDraftBeer:      2.0,
				inventory.CategoryBottledBeer:    2.5,
				inventory.CategoryWhiskey:        4.0,
				inventory.CategoryVodka:          4.0,
				inventory.CategoryGin:            5.0,
				inventory.CategoryTequila:        4.0,
				inventory.CategoryRum:            5.0,
				inventory.CategoryScotch:         6.0,
				inventory.CategoryWell:           3.0,
				inventory.CategoryLiqueur:        6.0,
				inventory.CategoryCordials:       8.0,
				inventory.CategoryWine:           3.0,
				inventory.CategoryJuice:          2.0,
				inventory.CategoryBarConsumables: 3.0,
			},
		},
		Constraints: policy.DefaultConstraints(),
		API: APIConfig{
			CORSOrigins: []string{"*"},
			RateLimit:   100,
			RateWindow:  time.Minute,
		},
	}
}

// Validate rejects invalid configuration before the service starts.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if !inventory.UsageColumn(c.Agent.UsageColumn).Valid() {
		return fmt.Errorf("agent.usage_column must be one of avg_ytd, avg_10wk, avg_4wk, avg_2wk; got %q", c.Agent.UsageColumn)
	}
	if c.Agent.SmoothingLevel <= 0 || c.Agent.SmoothingLevel >= 1 {
		return fmt.Errorf("agent.smoothing_level must be in (0, 1), got %g", c.Agent.SmoothingLevel)
	}
	if c.Agent.TrendThreshold <= 0 || c.Agent.TrendThreshold >= 1 {
		return fmt.Errorf("agent.trend_threshold must be in (0, 1), got %g", c.Agent.TrendThreshold)
	}
	if c.Agent.Workers < 0 {
		return fmt.Errorf("agent.workers must not be negative, got %d", c.Agent.Workers)
	}

	if c.Targets.DefaultWeeks <= 0 {
		return fmt.Errorf("targets.default_weeks must be positive, got %g", c.Targets.DefaultWeeks)
	}
	for cat, weeks := range c.Targets.ByCategory {
		if !cat.Valid() {
			return fmt.Errorf("targets.by_category references unknown category %q", cat)
		}
		if weeks <= 0 {
			return fmt.Errorf("targets.by_category[%s] must be positive, got %g", cat, weeks)
		}
	}
	for id, weeks := range c.Targets.ByItem {
		if weeks <= 0 {
			return fmt.Errorf("targets.by_item[%s] must be positive, got %g", id, weeks)
		}
	}

	if c.Constraints.MinOrderQty < 0 {
		return fmt.Errorf("constraints.min_order_qty must not be negative, got %d", c.Constraints.MinOrderQty)
	}
	if c.Constraints.StockoutWeeks <= 0 {
		return fmt.Errorf("constraints.stockout_weeks must be positive, got %g", c.Constraints.StockoutWeeks)
	}
	if c.Constraints.LowStockFactor <= 0 {
		return fmt.Errorf("constraints.low_stock_factor must be positive, got %g", c.Constraints.LowStockFactor)
	}
	if c.Constraints.OverstockFactor <= 0 {
		return fmt.Errorf("constraints.overstock_factor must be positive, got %g", c.Constraints.OverstockFactor)
	}
	if c.Constraints.MaxTotalSpend < 0 {
		return fmt.Errorf("constraints.max_total_spend must not be negative, got %g", c.Constraints.MaxTotalSpend)
	}
	if c.Constraints.MaxTotalItems < 0 {
		return fmt.Errorf("constraints.max_total_items must not be negative, got %d", c.Constraints.MaxTotalItems)
	}

	if c.API.RateLimit <= 0 {
		return fmt.Errorf("api.rate_limit must be positive, got %d", c.API.RateLimit)
	}
	if c.API.RateWindow <= 0 {
		return fmt.Errorf("api.rate_window must be positive, got %s", c.API.RateWindow)
	}
	return nil
}
