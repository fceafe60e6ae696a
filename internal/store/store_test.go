// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/barhound/barhound/internal/agent"
	"github.com/barhound/barhound/internal/inventory"
	"github.com/barhound/barhound/internal/policy"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRun(id string, created time.Time) *agent.Run {
	return &agent.Run{
		RunID:          id,
		CreatedAt:      created,
		UsageColumn:    inventory.UsageAvg4Wk,
		SmoothingLevel: 0.3,
		TrendThreshold: 0.1,
		Summary: agent.Summary{
			TotalItems:   2,
			ItemsToOrder: 1,
			TotalQty:     14,
			ByVendor:     map[string]agent.GroupSummary{"RNDC": {Items: 1, Qty: 14}},
		},
		Recommendations: []policy.Recommendation{
			{
				ItemID: "vodka", Vendor: "RNDC", Category: inventory.CategoryVodka,
				OnHand: 2, AvgUsage: 4, WeeksOnHand: 0.5, TargetWeeks: 4,
				RecommendedQty: 14,
				ReasonCodes:    []policy.ReasonCode{policy.ReasonStockoutRisk},
				Confidence:     policy.ConfidenceHigh,
				Notes:          "under 0.5 weeks of supply on hand",
			},
			{
				ItemID: "gin", Vendor: "RNDC", Category: inventory.CategoryGin,
				OnHand: 10, AvgUsage: 2, WeeksOnHand: 5, TargetWeeks: 4,
				RecommendedQty: 0,
				ReasonCodes:    []policy.ReasonCode{policy.ReasonDataIssueNegative, policy.ReasonNoOrderNeeded},
				Confidence:     policy.ConfidenceLow,
				Notes:          "negative usage recorded, verify the count",
			},
		},
		ItemsNeedingRecount: []string{"gin"},
	}
}

func TestSaveRunAndDetailRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	if err := s.SaveRun(ctx, sampleRun("run_abc123def456", created)); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	got, err := s.RunDetail(ctx, "run_abc123def456")
	if err != nil {
		t.Fatalf("RunDetail() error = %v", err)
	}

	if !got.CreatedAt.Equal(created) {
		t.Errorf("created at = %v, want %v", got.CreatedAt, created)
	}
	if got.UsageColumn != inventory.UsageAvg4Wk {
		t.Errorf("usage column = %s, want avg_4wk", got.UsageColumn)
	}
	if got.Summary.TotalQty != 14 {
		t.Errorf("summary total qty = %d, want 14", got.Summary.TotalQty)
	}
	if got.Summary.ByVendor["RNDC"].Qty != 14 {
		t.Errorf("vendor breakdown lost: %+v", got.Summary.ByVendor)
	}

	if len(got.Recommendations) != 2 {
		t.Fatalf("got %d recommendations, want 2", len(got.Recommendations))
	}
	// Persisted order is the run's output order.
	if got.Recommendations[0].ItemID != "vodka" {
		t.Errorf("first recommendation = %s, want vodka", got.Recommendations[0].ItemID)
	}
	if !got.Recommendations[1].HasCode(policy.ReasonDataIssueNegative) {
		t.Errorf("reason codes lost: %v", got.Recommendations[1].ReasonCodes)
	}
	if len(got.ItemsNeedingRecount) != 1 || got.ItemsNeedingRecount[0] != "gin" {
		t.Errorf("recount list = %v, want [gin]", got.ItemsNeedingRecount)
	}
}

func TestRunDetailNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.RunDetail(context.Background(), "run_missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error = %v, want ErrRunNotFound", err)
	}
}

func TestSaveRunIsAtomic(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

	if err := s.SaveRun(ctx, sampleRun("run_dup", created)); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	// Saving the same run ID again violates the primary key; nothing from
	// the second attempt may be visible.
	dup := sampleRun("run_dup", created.Add(time.Hour))
	dup.Recommendations = append(dup.Recommendations, policy.Recommendation{
		ItemID: "extra", Vendor: "V", Category: inventory.CategoryRum,
		ReasonCodes: []policy.ReasonCode{policy.ReasonNoOrderNeeded},
		Confidence:  policy.ConfidenceHigh, Notes: "stock is adequate",
	})
	if err := s.SaveRun(ctx, dup); err == nil {
		t.Fatal("expected error saving duplicate run id")
	}

	got, err := s.RunDetail(ctx, "run_dup")
	if err != nil {
		t.Fatalf("RunDetail() error = %v", err)
	}
	if len(got.Recommendations) != 2 {
		t.Errorf("got %d recommendations, want 2 (failed save leaked rows)", len(got.Recommendations))
	}
}

func TestRecentRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"run_old", "run_mid", "run_new"} {
		if err := s.SaveRun(ctx, sampleRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("SaveRun(%s) error = %v", id, err)
		}
	}

	runs, err := s.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].RunID != "run_new" || runs[1].RunID != "run_mid" {
		t.Errorf("order = [%s %s], want [run_new run_mid]", runs[0].RunID, runs[1].RunID)
	}
	if runs[0].TotalQty != 14 {
		t.Errorf("total qty = %d, want 14", runs[0].TotalQty)
	}
}

func TestSaveUserActionsAppendOnly(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveRun(ctx, sampleRun("run_act", time.Now().UTC())); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	first := []agent.UserAction{
		{ItemID: "vodka", RecommendedQty: 14, ApprovedQty: 12, OverrideReason: "budget"},
	}
	if err := s.SaveUserActions(ctx, "run_act", first); err != nil {
		t.Fatalf("SaveUserActions() error = %v", err)
	}
	second := []agent.UserAction{
		{ItemID: "gin", RecommendedQty: 0, ApprovedQty: 0},
	}
	if err := s.SaveUserActions(ctx, "run_act", second); err != nil {
		t.Fatalf("SaveUserActions() error = %v", err)
	}

	actions, err := s.Actions(ctx, "run_act")
	if err != nil {
		t.Fatalf("Actions() error = %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}
	if actions[0].ID == "" || actions[0].Timestamp.IsZero() {
		t.Error("missing generated id or timestamp")
	}
	if actions[0].ApprovedQty != 12 || actions[0].OverrideReason != "budget" {
		t.Errorf("unexpected first action: %+v", actions[0])
	}
}

func TestSaveUserActionsUnknownRun(t *testing.T) {
	s := openTestStore(t)

	err := s.SaveUserActions(context.Background(), "run_missing", []agent.UserAction{
		{ItemID: "vodka", RecommendedQty: 1, ApprovedQty: 1},
	})
	if err == nil {
		t.Fatal("expected foreign key error for unknown run")
	}
}

func TestUpsertPreferencePartialUpdate(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	weeks := 6.0
	if _, err := s.UpsertPreference(ctx, "vodka", PreferenceUpdate{TargetWeeksOverride: &weeks}); err != nil {
		t.Fatalf("UpsertPreference() error = %v", err)
	}

	// Update a different field; the override must survive.
	never := true
	if _, err := s.UpsertPreference(ctx, "vodka", PreferenceUpdate{NeverOrder: &never}); err != nil {
		t.Fatalf("UpsertPreference() error = %v", err)
	}

	pref, ok, err := s.Preference(ctx, "vodka")
	if err != nil {
		t.Fatalf("Preference() error = %v", err)
	}
	if !ok {
		t.Fatal("expected stored preference")
	}
	if pref.TargetWeeksOverride == nil || *pref.TargetWeeksOverride != 6 {
		t.Errorf("override = %v, want 6", pref.TargetWeeksOverride)
	}
	if !pref.NeverOrder {
		t.Error("never_order not set")
	}
	if pref.LastUpdated.IsZero() {
		t.Error("last_updated not bumped")
	}
}

func TestPreferencesSnapshot(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	notes := "prefers half cases"
	rounding := false
	if _, err := s.UpsertPreference(ctx, "gin", PreferenceUpdate{Notes: &notes, PreferredCaseRounding: &rounding}); err != nil {
		t.Fatalf("UpsertPreference() error = %v", err)
	}
	never := true
	if _, err := s.UpsertPreference(ctx, "rum", PreferenceUpdate{NeverOrder: &never}); err != nil {
		t.Fatalf("UpsertPreference() error = %v", err)
	}

	prefs, err := s.Preferences(ctx)
	if err != nil {
		t.Fatalf("Preferences() error = %v", err)
	}
	if len(prefs) != 2 {
		t.Fatalf("got %d preferences, want 2", len(prefs))
	}
	gin := prefs["gin"]
	if gin.Notes != notes {
		t.Errorf("notes = %q, want %q", gin.Notes, notes)
	}
	if gin.PreferredCaseRounding == nil || *gin.PreferredCaseRounding {
		t.Errorf("case rounding = %v, want false", gin.PreferredCaseRounding)
	}
	if gin.NeverOrder {
		t.Error("gin should not be never-order")
	}
	if !prefs["rum"].NeverOrder {
		t.Error("rum should be never-order")
	}
}

func TestConcurrentUpsertsDifferentItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	items := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	errs := make([]error, len(items))
	for i, id := range items {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			weeks := float64(i + 1)
			_, errs[i] = s.UpsertPreference(ctx, id, PreferenceUpdate{TargetWeeksOverride: &weeks})
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("upsert %s failed: %v", items[i], err)
		}
	}
	prefs, err := s.Preferences(ctx)
	if err != nil {
		t.Fatalf("Preferences() error = %v", err)
	}
	if len(prefs) != len(items) {
		t.Errorf("got %d preferences, want %d", len(prefs), len(items))
	}
}

func TestItemHistory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	if err := s.SaveRun(ctx, sampleRun("run_one", base)); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if err := s.SaveRun(ctx, sampleRun("run_two", base.Add(time.Hour))); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if err := s.SaveUserActions(ctx, "run_one", []agent.UserAction{
		{ItemID: "vodka", RecommendedQty: 14, ApprovedQty: 10},
	}); err != nil {
		t.Fatalf("SaveUserActions() error = %v", err)
	}

	history, err := s.ItemHistory(ctx, "vodka", 10)
	if err != nil {
		t.Fatalf("ItemHistory() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d entries, want 2", len(history))
	}
	if history[0].RunID != "run_two" {
		t.Errorf("first entry = %s, want newest run first", history[0].RunID)
	}
	if history[0].Action != nil {
		t.Error("run_two has no action")
	}
	if history[1].Action == nil || history[1].Action.ApprovedQty != 10 {
		t.Errorf("run_one action = %+v, want approved qty 10", history[1].Action)
	}
	if history[1].Recommendation.RecommendedQty != 14 {
		t.Errorf("recommendation qty = %d, want 14", history[1].Recommendation.RecommendedQty)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}
