// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

// Package policy converts per-item feature signals plus configured targets,
// constraints, and operator preferences into ranked, explainable restock
// recommendations.
package policy

import (
	"time"

	"github.com/barhound/barhound/internal/inventory"
)

// ReasonCode is a short symbolic tag explaining a recommendation's quantity
// and confidence.
type ReasonCode string

const (
	// ReasonStockoutRisk marks items under one week of supply.
	ReasonStockoutRisk ReasonCode = "STOCKOUT_RISK"

	// ReasonLowStock marks items below half their target weeks of supply.
	ReasonLowStock ReasonCode = "LOW_STOCK"

	// ReasonOverstock marks items above twice their target weeks of supply.
	// Overstocked items are never ordered.
	ReasonOverstock ReasonCode = "OVERSTOCK"

	// ReasonVolatile marks items whose usage coefficient of variation
	// exceeds 1.0.
	ReasonVolatile ReasonCode = "VOLATILE"

	// ReasonDataIssueNegative marks items with at least one negative usage
	// observation.
	ReasonDataIssueNegative ReasonCode = "DATA_ISSUE_NEGATIVE"

	// ReasonDataIssueJump marks items whose latest usage exceeds five times
	// the series mean.
	ReasonDataIssueJump ReasonCode = "DATA_ISSUE_JUMP"

	// ReasonInsufficientData marks items with fewer than four observations.
	ReasonInsufficientData ReasonCode = "INSUFFICIENT_DATA"

	// ReasonTrendingUp and ReasonTrendingDown are informational trend tags.
	ReasonTrendingUp   ReasonCode = "TRENDING_UP"
	ReasonTrendingDown ReasonCode = "TRENDING_DOWN"

	// ReasonZeroUsage marks items with no usage in the last four weeks.
	// Zero-usage items are never ordered.
	ReasonZeroUsage ReasonCode = "ZERO_USAGE"

	// ReasonAccelerating and ReasonDecelerating compare the last four weeks
	// of usage to the four weeks before them.
	ReasonAccelerating ReasonCode = "ACCELERATING"
	ReasonDecelerating ReasonCode = "DECELERATING"

	// ReasonBelowMinQty marks computed quantities below the minimum order
	// quantity, which are zeroed rather than ordered.
	ReasonBelowMinQty ReasonCode = "BELOW_MIN_QTY"

	// ReasonRoutineRestock tags an unremarkable item with a positive order.
	ReasonRoutineRestock ReasonCode = "ROUTINE_RESTOCK"

	// ReasonNoOrderNeeded tags an unremarkable item with nothing to order.
	ReasonNoOrderNeeded ReasonCode = "NO_ORDER_NEEDED"
)

// Confidence is the coarse trust tier attached to a recommendation. It starts
// at high and is only ever downgraded by data-quality signals.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// rank orders confidence tiers for monotone downgrades.
func (c Confidence) rank() int {
	switch c {
	case ConfidenceHigh:
		return 2
	case ConfidenceMedium:
		return 1
	default:
		return 0
	}
}

// downgrade returns the lower of the two tiers.
func (c Confidence) downgrade(to Confidence) Confidence {
	if to.rank() < c.rank() {
		return to
	}
	return c
}

// OrderTargets holds the configured weeks-of-supply targets. Precedence when
// resolving an item's target: preference override, by-item, by-category,
// default.
type OrderTargets struct {
	DefaultWeeks float64                        `koanf:"default_weeks" json:"default_weeks"`
	ByCategory   map[inventory.Category]float64 `koanf:"by_category" json:"by_category"`
	ByItem       map[string]float64             `koanf:"by_item" json:"by_item"`
	NeverOrder   []string                       `koanf:"never_order" json:"never_order"`
}

// Resolve returns the target weeks for an item, applying the precedence
// chain. A non-nil preference override wins over everything.
func (t OrderTargets) Resolve(item inventory.Item, pref *Preference) float64 {
	if pref != nil && pref.TargetWeeksOverride != nil {
		return *pref.TargetWeeksOverride
	}
	if weeks, ok := t.ByItem[item.ID]; ok {
		return weeks
	}
	if weeks, ok := t.ByCategory[item.Category]; ok {
		return weeks
	}
	return t.DefaultWeeks
}

// Blocked reports whether the item appears on the never-order list.
func (t OrderTargets) Blocked(itemID string) bool {
	for _, id := range t.NeverOrder {
		if id == itemID {
			return true
		}
	}
	return false
}

// OrderConstraints tunes the policy thresholds.
//
// MaxTotalSpend, MaxTotalItems, and VendorMinimums are accepted and validated
// but not enforced: the algorithm decides each item independently and performs
// no cross-item allocation against them.
type OrderConstraints struct {
	// MaxTotalSpend caps order spend across the whole run. Zero disables it.
	// Accepted but unenforced.
	MaxTotalSpend float64 `koanf:"max_total_spend" json:"max_total_spend"`

	// MaxTotalItems caps the number of distinct items ordered. Zero disables
	// it. Accepted but unenforced.
	MaxTotalItems int `koanf:"max_total_items" json:"max_total_items"`

	// VendorMinimums maps vendor name to a minimum order amount. Accepted
	// but unenforced.
	VendorMinimums map[string]float64 `koanf:"vendor_minimums" json:"vendor_minimums"`

	// MinOrderQty zeroes computed quantities below it. Default 1.
	MinOrderQty int `koanf:"min_order_qty" json:"min_order_qty"`

	// StockoutWeeks is the weeks-on-hand floor below which an item is at
	// stockout risk. Default 1.0.
	StockoutWeeks float64 `koanf:"stockout_weeks" json:"stockout_weeks"`

	// LowStockFactor times target weeks is the low-stock threshold.
	// Default 0.5.
	LowStockFactor float64 `koanf:"low_stock_factor" json:"low_stock_factor"`

	// OverstockFactor times target weeks is the overstock threshold.
	// Default 2.0.
	OverstockFactor float64 `koanf:"overstock_factor" json:"overstock_factor"`
}

// DefaultConstraints returns the constraint thresholds the policy ships with.
func DefaultConstraints() OrderConstraints {
	return OrderConstraints{
		MinOrderQty:     1,
		StockoutWeeks:   1.0,
		LowStockFactor:  0.5,
		OverstockFactor: 2.0,
	}
}

// Preference is a per-item operator override persisted by the store and read
// by every subsequent run. Pointer fields distinguish "unset" from a zero
// value so that upserts can update fields independently.
type Preference struct {
	ItemID                string    `json:"item_id"`
	TargetWeeksOverride   *float64  `json:"target_weeks_override,omitempty"`
	NeverOrder            bool      `json:"never_order"`
	PreferredCaseRounding *bool     `json:"preferred_case_rounding,omitempty"`
	Notes                 string    `json:"notes,omitempty"`
	LastUpdated           time.Time `json:"last_updated"`
}

// Recommendation is one item's restock decision for a run. Produced fresh
// each run and immutable afterwards.
type Recommendation struct {
	ItemID         string             `json:"item_id"`
	Vendor         string             `json:"vendor"`
	Category       inventory.Category `json:"category"`
	OnHand         float64            `json:"on_hand"`
	AvgUsage       float64            `json:"avg_usage"`
	WeeksOnHand    float64            `json:"weeks_on_hand"`
	TargetWeeks    float64            `json:"target_weeks"`
	RecommendedQty int                `json:"recommended_qty"`
	ReasonCodes    []ReasonCode       `json:"reason_codes"`
	Confidence     Confidence         `json:"confidence"`
	Notes          string             `json:"notes"`
}

// HasCode reports whether the recommendation carries the given reason code.
func (r *Recommendation) HasCode(code ReasonCode) bool {
	for _, c := range r.ReasonCodes {
		if c == code {
			return true
		}
	}
	return false
}

// NeedsRecount reports whether the recommendation carries a data-issue code
// and its item should be physically recounted.
func (r *Recommendation) NeedsRecount() bool {
	return r.HasCode(ReasonDataIssueNegative) || r.HasCode(ReasonDataIssueJump)
}
