// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

// Package agent orchestrates a recommendation run: dataset enrichment,
// parallel feature computation, policy evaluation, summary, and atomic
// persistence.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/barhound/barhound/internal/features"
	"github.com/barhound/barhound/internal/inventory"
	"github.com/barhound/barhound/internal/policy"
)

// ErrConfiguration marks pre-run parameter validation failures. No
// computation starts when parameters are invalid.
var ErrConfiguration = errors.New("configuration error")

// Params are the validated inputs for one run.
type Params struct {
	UsageColumn inventory.UsageColumn
	Features    features.Params
	Targets     policy.OrderTargets
	Constraints policy.OrderConstraints
}

// Validate rejects invalid parameters before any computation begins.
func (p Params) Validate() error {
	if !p.UsageColumn.Valid() {
		return fmt.Errorf("%w: unknown usage column %q", ErrConfiguration, p.UsageColumn)
	}
	if err := p.Features.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if p.Targets.DefaultWeeks <= 0 {
		return fmt.Errorf("%w: default_weeks must be positive, got %g", ErrConfiguration, p.Targets.DefaultWeeks)
	}
	for cat, weeks := range p.Targets.ByCategory {
		if !cat.Valid() {
			return fmt.Errorf("%w: unknown category %q in target map", ErrConfiguration, cat)
		}
		if weeks <= 0 {
			return fmt.Errorf("%w: target weeks for category %q must be positive, got %g", ErrConfiguration, cat, weeks)
		}
	}
	for id, weeks := range p.Targets.ByItem {
		if weeks <= 0 {
			return fmt.Errorf("%w: target weeks for item %q must be positive, got %g", ErrConfiguration, id, weeks)
		}
	}
	if p.Constraints.MinOrderQty < 0 {
		return fmt.Errorf("%w: min_order_qty must not be negative, got %d", ErrConfiguration, p.Constraints.MinOrderQty)
	}
	if p.Constraints.StockoutWeeks <= 0 {
		return fmt.Errorf("%w: stockout_weeks must be positive, got %g", ErrConfiguration, p.Constraints.StockoutWeeks)
	}
	if p.Constraints.LowStockFactor <= 0 {
		return fmt.Errorf("%w: low_stock_factor must be positive, got %g", ErrConfiguration, p.Constraints.LowStockFactor)
	}
	if p.Constraints.OverstockFactor <= 0 {
		return fmt.Errorf("%w: overstock_factor must be positive, got %g", ErrConfiguration, p.Constraints.OverstockFactor)
	}
	return nil
}

// GroupSummary counts ordered items and quantity within one vendor or
// category.
type GroupSummary struct {
	Items int `json:"items"`
	Qty   int `json:"qty"`
}

// Summary aggregates one run's recommendations.
type Summary struct {
	TotalItems   int `json:"total_items"`
	ItemsToOrder int `json:"items_to_order"`
	TotalQty     int `json:"total_qty"`

	// ByVendor and ByCategory break the order down for purchasing; only
	// items with a positive quantity are counted.
	ByVendor   map[string]GroupSummary             `json:"by_vendor,omitempty"`
	ByCategory map[inventory.Category]GroupSummary `json:"by_category,omitempty"`
}

// Run is one complete, atomically persisted execution of the pipeline.
type Run struct {
	RunID           string                  `json:"run_id"`
	CreatedAt       time.Time               `json:"created_at"`
	UsageColumn     inventory.UsageColumn   `json:"usage_column"`
	SmoothingLevel  float64                 `json:"smoothing_level"`
	TrendThreshold  float64                 `json:"trend_threshold"`
	Summary         Summary                 `json:"summary"`
	Recommendations []policy.Recommendation `json:"recommendations"`

	// ItemsNeedingRecount lists items whose recommendation carries a
	// data-issue code, in output order.
	ItemsNeedingRecount []string `json:"items_needing_recount"`
}

// UserAction is one operator decision on a recommendation, appended to the
// audit trail and never mutated.
type UserAction struct {
	ID             string    `json:"id"`
	RunID          string    `json:"run_id"`
	ItemID         string    `json:"item_id"`
	RecommendedQty int       `json:"recommended_qty"`
	ApprovedQty    int       `json:"approved_qty"`
	OverrideReason string    `json:"override_reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Store is the persistence surface the orchestrator needs. The store package
// provides the SQLite implementation.
type Store interface {
	// SaveRun persists the run and all its recommendations atomically.
	SaveRun(ctx context.Context, run *Run) error

	// Preferences returns the full per-item preference snapshot.
	Preferences(ctx context.Context) (map[string]policy.Preference, error)
}
