// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

package policy

import (
	"testing"

	"github.com/barhound/barhound/internal/features"
	"github.com/barhound/barhound/internal/inventory"
)

// featureSet builds a clean FeatureSet with the given on-hand and 4-week
// average and everything else defined but unremarkable.
func featureSet(onHand, avg4wk float64) *features.FeatureSet {
	return &features.FeatureSet{
		ItemID:           "item",
		Observations:     10,
		OnHand:           onHand,
		Avg4Wk:           avg4wk,
		Volatility:       0.2,
		RecentTrendRatio: 1.0,
		Trend:            features.TrendFlat,
	}
}

func defaultTargets() OrderTargets {
	return OrderTargets{DefaultWeeks: 4}
}

func item(id string) inventory.Item {
	return inventory.Item{ID: id, Category: inventory.CategoryWhiskey, Vendor: "Breakthru"}
}

func TestRecommendStockoutRisk(t *testing.T) {
	// on_hand=2, avg=4 over a 4-week target: half a week of supply left.
	rec, ok := Recommend(featureSet(2, 4), item("a"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !ok {
		t.Fatal("expected a recommendation")
	}

	if !rec.HasCode(ReasonStockoutRisk) {
		t.Errorf("codes = %v, want STOCKOUT_RISK", rec.ReasonCodes)
	}
	if rec.RecommendedQty != 14 {
		t.Errorf("qty = %d, want 14 (4*4-2)", rec.RecommendedQty)
	}
	if rec.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want high", rec.Confidence)
	}
	if rec.WeeksOnHand != 0.5 {
		t.Errorf("weeks on hand = %v, want 0.5", rec.WeeksOnHand)
	}
}

func TestRecommendOverstockForcesZero(t *testing.T) {
	// on_hand=20, avg=2: ten weeks on hand against an 8-week ceiling.
	rec, ok := Recommend(featureSet(20, 2), item("b"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !ok {
		t.Fatal("expected a recommendation")
	}

	if !rec.HasCode(ReasonOverstock) {
		t.Errorf("codes = %v, want OVERSTOCK", rec.ReasonCodes)
	}
	if rec.RecommendedQty != 0 {
		t.Errorf("qty = %d, want 0 for overstocked item", rec.RecommendedQty)
	}
}

func TestRecommendZeroUsageSentinel(t *testing.T) {
	fs := featureSet(5, 0)
	rec, ok := Recommend(fs, item("c"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !ok {
		t.Fatal("expected a recommendation")
	}

	if rec.WeeksOnHand != AbundantSupplyWeeks {
		t.Errorf("weeks on hand = %v, want sentinel %v", rec.WeeksOnHand, AbundantSupplyWeeks)
	}
	for _, code := range []ReasonCode{ReasonStockoutRisk, ReasonLowStock, ReasonOverstock} {
		if rec.HasCode(code) {
			t.Errorf("unexpected stock-level code %s for zero usage", code)
		}
	}
	if rec.RecommendedQty != 0 {
		t.Errorf("qty = %d, want 0", rec.RecommendedQty)
	}
	if !rec.HasCode(ReasonNoOrderNeeded) {
		t.Errorf("codes = %v, want NO_ORDER_NEEDED", rec.ReasonCodes)
	}
}

func TestRecommendUndefinedAverageTreatedAsZero(t *testing.T) {
	fs := featureSet(5, 0)
	fs.Avg4Wk = features.Undefined()

	rec, ok := Recommend(fs, item("c"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !ok {
		t.Fatal("expected a recommendation")
	}
	if rec.AvgUsage != 0 {
		t.Errorf("avg usage = %v, want 0", rec.AvgUsage)
	}
	if rec.WeeksOnHand != AbundantSupplyWeeks {
		t.Errorf("weeks on hand = %v, want sentinel", rec.WeeksOnHand)
	}
}

func TestRecommendNegativeUsageForcesLowConfidence(t *testing.T) {
	fs := featureSet(10, 3)
	fs.NegativeUsage = true

	rec, ok := Recommend(fs, item("d"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !ok {
		t.Fatal("expected a recommendation")
	}

	if !rec.HasCode(ReasonDataIssueNegative) {
		t.Errorf("codes = %v, want DATA_ISSUE_NEGATIVE", rec.ReasonCodes)
	}
	if rec.Confidence != ConfidenceLow {
		t.Errorf("confidence = %s, want low", rec.Confidence)
	}
	if !rec.NeedsRecount() {
		t.Error("expected recount flag for data issue")
	}
	// Quantity is still computed; the data issue downgrades trust, not the
	// order itself.
	if rec.RecommendedQty != 2 {
		t.Errorf("qty = %d, want 2 (4*3-10)", rec.RecommendedQty)
	}
}

func TestRecommendNeverOrderSkips(t *testing.T) {
	t.Run("via preference", func(t *testing.T) {
		pref := &Preference{ItemID: "e", NeverOrder: true}
		if _, ok := Recommend(featureSet(2, 4), item("e"), defaultTargets(), DefaultConstraints(), pref, inventory.UsageAvg4Wk); ok {
			t.Error("expected skip for never-order preference")
		}
	})

	t.Run("via target list", func(t *testing.T) {
		targets := defaultTargets()
		targets.NeverOrder = []string{"e"}
		if _, ok := Recommend(featureSet(2, 4), item("e"), targets, DefaultConstraints(), nil, inventory.UsageAvg4Wk); ok {
			t.Error("expected skip for never-order target list")
		}
	})
}

func TestRecommendTargetPrecedence(t *testing.T) {
	targets := OrderTargets{
		DefaultWeeks: 2,
		ByCategory:   map[inventory.Category]float64{inventory.CategoryWhiskey: 3},
		ByItem:       map[string]float64{"x": 5},
	}
	override := 7.0

	tests := []struct {
		name string
		id   string
		pref *Preference
		want float64
	}{
		{"preference override wins", "x", &Preference{TargetWeeksOverride: &override}, 7},
		{"by-item beats category", "x", nil, 5},
		{"category beats default", "y", nil, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := item(tt.id)
			rec, ok := Recommend(featureSet(1, 2), it, targets, DefaultConstraints(), tt.pref, inventory.UsageAvg4Wk)
			if !ok {
				t.Fatal("expected a recommendation")
			}
			if rec.TargetWeeks != tt.want {
				t.Errorf("target weeks = %v, want %v", rec.TargetWeeks, tt.want)
			}
		})
	}

	t.Run("unknown category falls back to default", func(t *testing.T) {
		it := inventory.Item{ID: "z", Category: inventory.CategoryUnknown, Vendor: "v"}
		rec, ok := Recommend(featureSet(1, 2), it, targets, DefaultConstraints(), nil, inventory.UsageAvg4Wk)
		if !ok {
			t.Fatal("expected a recommendation")
		}
		if rec.TargetWeeks != 2 {
			t.Errorf("target weeks = %v, want default 2", rec.TargetWeeks)
		}
	})
}

func TestRecommendCaseRounding(t *testing.T) {
	it := item("keg")
	it.CaseSize = 12

	t.Run("rounds up to case multiple", func(t *testing.T) {
		// raw qty = 4*4-2 = 14, next case multiple is 24.
		rec, ok := Recommend(featureSet(2, 4), it, defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
		if !ok {
			t.Fatal("expected a recommendation")
		}
		if rec.RecommendedQty != 24 {
			t.Errorf("qty = %d, want 24", rec.RecommendedQty)
		}
	})

	t.Run("preference disables rounding", func(t *testing.T) {
		off := false
		pref := &Preference{ItemID: "keg", PreferredCaseRounding: &off}
		rec, ok := Recommend(featureSet(2, 4), it, defaultTargets(), DefaultConstraints(), pref, inventory.UsageAvg4Wk)
		if !ok {
			t.Fatal("expected a recommendation")
		}
		if rec.RecommendedQty != 14 {
			t.Errorf("qty = %d, want 14 without case rounding", rec.RecommendedQty)
		}
	})

	t.Run("exact multiple is unchanged", func(t *testing.T) {
		// raw qty = 4*4-4 = 12, already a case.
		rec, ok := Recommend(featureSet(4, 4), it, defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
		if !ok {
			t.Fatal("expected a recommendation")
		}
		if rec.RecommendedQty != 12 {
			t.Errorf("qty = %d, want 12", rec.RecommendedQty)
		}
	})
}

func TestRecommendBelowMinQty(t *testing.T) {
	constraints := DefaultConstraints()
	constraints.MinOrderQty = 6

	// raw qty = 4*1.2-2 = 2.8 -> 3, below the minimum of 6.
	rec, ok := Recommend(featureSet(2, 1.2), item("f"), defaultTargets(), constraints, nil, inventory.UsageAvg4Wk)
	if !ok {
		t.Fatal("expected a recommendation")
	}
	if rec.RecommendedQty != 0 {
		t.Errorf("qty = %d, want 0 below minimum", rec.RecommendedQty)
	}
	if !rec.HasCode(ReasonBelowMinQty) {
		t.Errorf("codes = %v, want BELOW_MIN_QTY", rec.ReasonCodes)
	}
}

func TestRecommendConfidenceMonotone(t *testing.T) {
	fs := featureSet(10, 3)
	fs.Volatility = 1.5 // medium
	fs.HugeJump = true  // medium
	fs.NegativeUsage = true
	fs.InsufficientData = true // low, twice over

	rec, ok := Recommend(fs, item("g"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !ok {
		t.Fatal("expected a recommendation")
	}
	if rec.Confidence != ConfidenceLow {
		t.Errorf("confidence = %s, want low (most severe downgrade wins)", rec.Confidence)
	}
}

func TestRecommendVolatileDowngradesToMedium(t *testing.T) {
	fs := featureSet(10, 3)
	fs.Volatility = 1.5

	rec, ok := Recommend(fs, item("h"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !ok {
		t.Fatal("expected a recommendation")
	}
	if !rec.HasCode(ReasonVolatile) {
		t.Errorf("codes = %v, want VOLATILE", rec.ReasonCodes)
	}
	if rec.Confidence != ConfidenceMedium {
		t.Errorf("confidence = %s, want medium", rec.Confidence)
	}
}

func TestRecommendUndefinedVolatilityIsNotVolatile(t *testing.T) {
	fs := featureSet(10, 3)
	fs.Volatility = features.Undefined()

	rec, ok := Recommend(fs, item("h"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !ok {
		t.Fatal("expected a recommendation")
	}
	if rec.HasCode(ReasonVolatile) {
		t.Error("undefined volatility must not flag VOLATILE")
	}
}

func TestRecommendTrendCodes(t *testing.T) {
	up := featureSet(10, 3)
	up.Trend = features.TrendUp
	up.RecentTrendRatio = 1.5

	rec, _ := Recommend(up, item("i"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !rec.HasCode(ReasonTrendingUp) || !rec.HasCode(ReasonAccelerating) {
		t.Errorf("codes = %v, want TRENDING_UP and ACCELERATING", rec.ReasonCodes)
	}
	if rec.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want high (trend codes are informational)", rec.Confidence)
	}

	down := featureSet(10, 3)
	down.Trend = features.TrendDown
	down.RecentTrendRatio = 0.5

	rec, _ = Recommend(down, item("i"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !rec.HasCode(ReasonTrendingDown) || !rec.HasCode(ReasonDecelerating) {
		t.Errorf("codes = %v, want TRENDING_DOWN and DECELERATING", rec.ReasonCodes)
	}
}

func TestRecommendZeroUsageCodeForcesZero(t *testing.T) {
	fs := featureSet(1, 2) // would otherwise order 7
	fs.ZeroUsage = true

	rec, ok := Recommend(fs, item("j"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
	if !ok {
		t.Fatal("expected a recommendation")
	}
	if !rec.HasCode(ReasonZeroUsage) {
		t.Errorf("codes = %v, want ZERO_USAGE", rec.ReasonCodes)
	}
	if rec.RecommendedQty != 0 {
		t.Errorf("qty = %d, want 0 for zero-usage item", rec.RecommendedQty)
	}
}

func TestRecommendNeverNegativeAndNeverEmpty(t *testing.T) {
	cases := []*features.FeatureSet{
		featureSet(100, 1),
		featureSet(0, 0),
		featureSet(5, 5),
	}
	for _, fs := range cases {
		rec, ok := Recommend(fs, item("k"), defaultTargets(), DefaultConstraints(), nil, inventory.UsageAvg4Wk)
		if !ok {
			t.Fatal("expected a recommendation")
		}
		if rec.RecommendedQty < 0 {
			t.Errorf("qty = %d, want >= 0", rec.RecommendedQty)
		}
		if len(rec.ReasonCodes) == 0 {
			t.Error("reason codes must never be empty")
		}
		if rec.Notes == "" {
			t.Error("notes must never be empty")
		}
	}
}

func TestSortOrdering(t *testing.T) {
	recs := []Recommendation{
		{ItemID: "d", Vendor: "B", Category: "Wine", ReasonCodes: []ReasonCode{ReasonRoutineRestock}},
		{ItemID: "c", Vendor: "B", Category: "Gin", ReasonCodes: []ReasonCode{ReasonLowStock}},
		{ItemID: "b", Vendor: "A", Category: "Gin", ReasonCodes: []ReasonCode{ReasonStockoutRisk}},
		{ItemID: "a", Vendor: "B", Category: "Gin", ReasonCodes: []ReasonCode{ReasonStockoutRisk}},
		{ItemID: "e", Vendor: "A", Category: "Wine", ReasonCodes: []ReasonCode{ReasonOverstock}},
	}

	Sort(recs)

	want := []string{"b", "a", "c", "e", "d"}
	for i, id := range want {
		if recs[i].ItemID != id {
			t.Errorf("position %d = %s, want %s (got order %v)", i, recs[i].ItemID, id, ids(recs))
		}
	}
}

func TestSortStableAcrossRuns(t *testing.T) {
	build := func() []Recommendation {
		return []Recommendation{
			{ItemID: "m", Vendor: "V", Category: "Gin", ReasonCodes: []ReasonCode{ReasonLowStock}},
			{ItemID: "n", Vendor: "V", Category: "Gin", ReasonCodes: []ReasonCode{ReasonLowStock}},
			{ItemID: "l", Vendor: "V", Category: "Gin", ReasonCodes: []ReasonCode{ReasonStockoutRisk}},
		}
	}

	a, b := build(), build()
	Sort(a)
	Sort(b)
	for i := range a {
		if a[i].ItemID != b[i].ItemID {
			t.Fatalf("sort not deterministic: %v vs %v", ids(a), ids(b))
		}
	}
}

func ids(recs []Recommendation) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ItemID
	}
	return out
}
