// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/barhound/barhound/internal/features"
	"github.com/barhound/barhound/internal/inventory"
	"github.com/barhound/barhound/internal/logging"
	"github.com/barhound/barhound/internal/metrics"
	"github.com/barhound/barhound/internal/policy"
)

// Service runs the recommendation pipeline. It holds its dependencies
// explicitly; there is no package-level state, and a Service is safe for
// concurrent use because a run only reads its fields.
type Service struct {
	store    Store
	metadata inventory.MetadataSource
	metrics  *metrics.Metrics
	now      func() time.Time
	workers  int
	logger   zerolog.Logger
}

// Options configures a Service. Zero values get sensible defaults.
type Options struct {
	// Metadata fills vendor/category data missing from the dataset. May be
	// nil.
	Metadata inventory.MetadataSource

	// Metrics receives run counters and timings. May be nil.
	Metrics *metrics.Metrics

	// Workers bounds per-item parallelism. Defaults to runtime.NumCPU().
	Workers int

	// Now supplies run timestamps. Defaults to time.Now.
	Now func() time.Time
}

// New creates a Service on the given store.
func New(store Store, opts Options) *Service {
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:    store,
		metadata: opts.Metadata,
		metrics:  opts.Metrics,
		now:      opts.Now,
		workers:  opts.Workers,
		logger:   logging.With().Str("component", "agent").Logger(),
	}
}

// Run executes the full pipeline over a dataset snapshot and persists the
// result. Item-level computation failures exclude that item and continue;
// parameter validation and persistence failures abort the run with no
// visible side effects.
func (s *Service) Run(ctx context.Context, dataset *inventory.Dataset, p Params) (*Run, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	start := s.now()
	enriched := inventory.Enrich(dataset, s.metadata)

	prefs, err := s.store.Preferences(ctx)
	if err != nil {
		s.countFailure()
		return nil, fmt.Errorf("loading preferences: %w", err)
	}

	recs := s.evaluate(enriched, prefs, p)
	policy.Sort(recs)

	recount := make([]string, 0)
	for i := range recs {
		if recs[i].NeedsRecount() {
			recount = append(recount, recs[i].ItemID)
		}
	}

	first, last, _ := enriched.DateRange()
	run := &Run{
		RunID:               newRunID(start, len(enriched.Records), first, last),
		CreatedAt:           start.UTC(),
		UsageColumn:         p.UsageColumn,
		SmoothingLevel:      p.Features.SmoothingLevel,
		TrendThreshold:      p.Features.TrendThreshold,
		Summary:             summarize(recs),
		Recommendations:     recs,
		ItemsNeedingRecount: recount,
	}

	if err := s.store.SaveRun(ctx, run); err != nil {
		if s.metrics != nil {
			s.metrics.PersistFailures.Inc()
		}
		s.countFailure()
		return nil, fmt.Errorf("persisting run %s: %w", run.RunID, err)
	}

	elapsed := s.now().Sub(start)
	if s.metrics != nil {
		s.metrics.RunsTotal.Inc()
		s.metrics.RecountFlagged.Add(float64(len(recount)))
		s.metrics.RunDuration.Observe(elapsed.Seconds())
	}
	s.logger.Info().
		Str("run_id", run.RunID).
		Int("total_items", run.Summary.TotalItems).
		Int("items_to_order", run.Summary.ItemsToOrder).
		Int("recount_items", len(recount)).
		Dur("elapsed", elapsed).
		Msg("run complete")

	return run, nil
}

// evaluate computes features and policy decisions for every item in
// parallel. Each worker writes only its own slot, so no locking is needed;
// a panic while computing one item excludes that item and is logged.
func (s *Service) evaluate(d *inventory.Dataset, prefs map[string]policy.Preference, p Params) []policy.Recommendation {
	ids := d.ItemIDs()
	grouped := d.RecordsByItem()

	type slot struct {
		rec    policy.Recommendation
		ok     bool
		failed bool
	}
	slots := make([]slot, len(ids))

	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					slots[i] = slot{failed: true}
					s.logger.Error().
						Str("item_id", id).
						Interface("panic", r).
						Msg("item computation failed, excluded from run")
				}
			}()

			item, _ := d.Item(id)
			fs := features.Compute(id, grouped[id], p.Features)

			var pref *policy.Preference
			if pr, ok := prefs[id]; ok {
				pref = &pr
			}
			if rec, ok := policy.Recommend(&fs, item, p.Targets, p.Constraints, pref, p.UsageColumn); ok {
				slots[i] = slot{rec: rec, ok: true}
			}
		}(i, id)
	}
	wg.Wait()

	recs := make([]policy.Recommendation, 0, len(ids))
	for _, sl := range slots {
		if sl.failed {
			if s.metrics != nil {
				s.metrics.ItemsSkipped.Inc()
			}
			continue
		}
		if sl.ok {
			recs = append(recs, sl.rec)
		}
	}
	return recs
}

func (s *Service) countFailure() {
	if s.metrics != nil {
		s.metrics.RunFailures.Inc()
	}
}

// summarize aggregates totals and per-vendor/per-category order breakdowns.
func summarize(recs []policy.Recommendation) Summary {
	sum := Summary{
		TotalItems: len(recs),
		ByVendor:   make(map[string]GroupSummary),
		ByCategory: make(map[inventory.Category]GroupSummary),
	}
	for i := range recs {
		qty := recs[i].RecommendedQty
		if qty <= 0 {
			continue
		}
		sum.ItemsToOrder++
		sum.TotalQty += qty

		v := sum.ByVendor[recs[i].Vendor]
		v.Items++
		v.Qty += qty
		sum.ByVendor[recs[i].Vendor] = v

		c := sum.ByCategory[recs[i].Category]
		c.Items++
		c.Qty += qty
		sum.ByCategory[recs[i].Category] = c
	}
	return sum
}

// newRunID derives a short content-addressed run identifier. Collisions are
// operationally negligible and not handled specially.
func newRunID(ts time.Time, recordCount int, first, last time.Time) string {
	seed := fmt.Sprintf("%d|%d|%s|%s",
		ts.UnixNano(), recordCount,
		first.Format("2006-01-02"), last.Format("2006-01-02"))
	digest := sha256.Sum256([]byte(seed))
	return "run_" + hex.EncodeToString(digest[:])[:12]
}
