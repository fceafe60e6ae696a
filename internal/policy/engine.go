// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

package policy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/barhound/barhound/internal/features"
	"github.com/barhound/barhound/internal/inventory"
)

// AbundantSupplyWeeks is the weeks-on-hand sentinel used when average usage
// is zero or undefined: the item cannot run out at its current usage rate, so
// stockout and low-stock codes never fire against it.
const AbundantSupplyWeeks = 999.0

// volatileThreshold is the coefficient of variation above which usage is
// considered too noisy for a high-confidence recommendation.
const volatileThreshold = 1.0

// Acceleration thresholds on the recent trend ratio (last 4 weeks vs the 4
// before).
const (
	acceleratingRatio = 1.3
	deceleratingRatio = 0.7
)

// Recommend decides one item's restock quantity from its feature signals.
// ok is false when the item is on a never-order list and no recommendation is
// emitted.
//
// The decision is a pure function of its inputs: identical features, targets,
// constraints, and preference always yield an identical recommendation.
func Recommend(fs *features.FeatureSet, item inventory.Item, targets OrderTargets, constraints OrderConstraints, pref *Preference, col inventory.UsageColumn) (Recommendation, bool) {
	if targets.Blocked(item.ID) || (pref != nil && pref.NeverOrder) {
		return Recommendation{}, false
	}

	targetWeeks := targets.Resolve(item, pref)

	avgUsage := fs.Average(col)
	if !features.Defined(avgUsage) || avgUsage <= 0 {
		avgUsage = 0
	}

	weeksOnHand := AbundantSupplyWeeks
	if avgUsage > 0 {
		weeksOnHand = fs.OnHand / avgUsage
	}

	qty := orderQty(targetWeeks, avgUsage, fs.OnHand, item.CaseSize, pref)

	var codes []ReasonCode
	confidence := ConfidenceHigh

	// Stock-level codes only apply when a usage rate exists; with zero usage
	// the sentinel means "no depletion risk", not "overstocked".
	if avgUsage > 0 {
		switch {
		case weeksOnHand < constraints.StockoutWeeks:
			codes = append(codes, ReasonStockoutRisk)
		case weeksOnHand < constraints.LowStockFactor*targetWeeks:
			codes = append(codes, ReasonLowStock)
		}
		if weeksOnHand > constraints.OverstockFactor*targetWeeks {
			codes = append(codes, ReasonOverstock)
			qty = 0
		}
	}

	if fs.Volatility > volatileThreshold {
		codes = append(codes, ReasonVolatile)
		confidence = confidence.downgrade(ConfidenceMedium)
	}
	if fs.NegativeUsage {
		codes = append(codes, ReasonDataIssueNegative)
		confidence = confidence.downgrade(ConfidenceLow)
	}
	if fs.HugeJump {
		codes = append(codes, ReasonDataIssueJump)
		confidence = confidence.downgrade(ConfidenceMedium)
	}
	if fs.InsufficientData {
		codes = append(codes, ReasonInsufficientData)
		confidence = confidence.downgrade(ConfidenceLow)
	}
	if fs.ZeroUsage {
		codes = append(codes, ReasonZeroUsage)
		qty = 0
	}

	switch fs.Trend {
	case features.TrendUp:
		codes = append(codes, ReasonTrendingUp)
	case features.TrendDown:
		codes = append(codes, ReasonTrendingDown)
	}
	if fs.RecentTrendRatio > acceleratingRatio {
		codes = append(codes, ReasonAccelerating)
	} else if fs.RecentTrendRatio < deceleratingRatio {
		codes = append(codes, ReasonDecelerating)
	}

	if qty > 0 && qty < constraints.MinOrderQty {
		codes = append(codes, ReasonBelowMinQty)
		qty = 0
	}

	if len(codes) == 0 {
		if qty > 0 {
			codes = append(codes, ReasonRoutineRestock)
		} else {
			codes = append(codes, ReasonNoOrderNeeded)
		}
	}

	return Recommendation{
		ItemID:         item.ID,
		Vendor:         item.Vendor,
		Category:       item.Category,
		OnHand:         fs.OnHand,
		AvgUsage:       avgUsage,
		WeeksOnHand:    weeksOnHand,
		TargetWeeks:    targetWeeks,
		RecommendedQty: qty,
		ReasonCodes:    codes,
		Confidence:     confidence,
		Notes:          notes(codes, weeksOnHand, targetWeeks),
	}, true
}

// orderQty computes the raw quantity to bring the item up to its target weeks
// of supply, rounded up to whole units and then to case multiples when case
// rounding applies.
func orderQty(targetWeeks, avgUsage, onHand float64, caseSize int, pref *Preference) int {
	raw := targetWeeks*avgUsage - onHand
	if raw <= 0 {
		return 0
	}
	qty := int(math.Ceil(raw))

	useCases := caseSize > 0
	if pref != nil && pref.PreferredCaseRounding != nil {
		useCases = *pref.PreferredCaseRounding && caseSize > 0
	}
	if useCases && qty%caseSize != 0 {
		qty += caseSize - qty%caseSize
	}
	return qty
}

// priorityBucket maps a recommendation to its sort bucket: stockouts first,
// then low stock, then everything else.
func priorityBucket(r *Recommendation) int {
	if r.HasCode(ReasonStockoutRisk) {
		return 0
	}
	if r.HasCode(ReasonLowStock) {
		return 1
	}
	return 2
}

// Sort orders recommendations by priority bucket, then vendor, category, and
// item ID. The ordering is total, so identical inputs always produce the same
// sequence.
func Sort(recs []Recommendation) {
	sort.Slice(recs, func(i, j int) bool {
		a, b := &recs[i], &recs[j]
		if pa, pb := priorityBucket(a), priorityBucket(b); pa != pb {
			return pa < pb
		}
		if a.Vendor != b.Vendor {
			return a.Vendor < b.Vendor
		}
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		return a.ItemID < b.ItemID
	})
}

// noteText maps each reason code to its operator-facing explanation.
func noteText(code ReasonCode, weeksOnHand, targetWeeks float64) string {
	switch code {
	case ReasonStockoutRisk:
		return fmt.Sprintf("under %.1f weeks of supply on hand", weeksOnHand)
	case ReasonLowStock:
		return fmt.Sprintf("%.1f weeks on hand, below half the %.1f-week target", weeksOnHand, targetWeeks)
	case ReasonOverstock:
		return fmt.Sprintf("%.1f weeks on hand, more than double the %.1f-week target", weeksOnHand, targetWeeks)
	case ReasonVolatile:
		return "usage is highly variable week to week"
	case ReasonDataIssueNegative:
		return "negative usage recorded, verify the count"
	case ReasonDataIssueJump:
		return "latest usage far exceeds the historical average, verify the count"
	case ReasonInsufficientData:
		return "fewer than four weeks of history"
	case ReasonTrendingUp:
		return "usage trending up"
	case ReasonTrendingDown:
		return "usage trending down"
	case ReasonZeroUsage:
		return "no usage in the last four weeks"
	case ReasonAccelerating:
		return "usage accelerating over the last month"
	case ReasonDecelerating:
		return "usage slowing over the last month"
	case ReasonBelowMinQty:
		return "computed quantity below the minimum order size"
	case ReasonRoutineRestock:
		return "routine restock to target weeks"
	case ReasonNoOrderNeeded:
		return "stock is adequate"
	default:
		return string(code)
	}
}

// notes joins the per-code explanations into the recommendation's free-text
// notes field.
func notes(codes []ReasonCode, weeksOnHand, targetWeeks float64) string {
	parts := make([]string, len(codes))
	for i, code := range codes {
		parts[i] = noteText(code, weeksOnHand, targetWeeks)
	}
	return strings.Join(parts, "; ")
}
