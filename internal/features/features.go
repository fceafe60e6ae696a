// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

// Package features turns a single item's ordered weekly usage/on-hand series
// into the statistical signals the policy engine decides on: multi-window
// averages, volatility, weeks-on-hand estimates, trend direction, and
// data-quality anomaly flags.
//
// Compute is a pure function of the record sequence and parameters; it never
// fails for degenerate input. Empty or too-short series yield a FeatureSet
// with undefined statistics and the InsufficientData flag set, and the caller
// decides how to treat it.
//
// Undefined statistics are represented as NaN (see Undefined and Defined).
// NaN comparisons are always false, so threshold checks such as
// fs.Volatility > 1.0 are naturally safe against undefined values.
package features

import (
	"fmt"
	"math"
	"sort"

	"github.com/barhound/barhound/internal/inventory"
)

// minObservations is the series length below which smoothing is not attempted
// and InsufficientData is flagged.
const minObservations = 4

// hugeJumpFactor flags the latest observation when it exceeds this multiple
// of the series mean.
const hugeJumpFactor = 5.0

// Undefined marks a statistic that has no meaningful value for the series
// (e.g. volatility of an all-zero series).
func Undefined() float64 { return math.NaN() }

// Defined reports whether a statistic holds a meaningful value.
func Defined(v float64) bool { return !math.IsNaN(v) }

// Trend is the direction of recent usage relative to its historical mean.
type Trend int

const (
	TrendFlat Trend = iota
	TrendUp
	TrendDown
)

// String returns a human-readable trend name.
func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	default:
		return "flat"
	}
}

// Params are the tunable feature-computation parameters.
type Params struct {
	// SmoothingLevel is the alpha parameter for single exponential smoothing,
	// in (0, 1).
	SmoothingLevel float64

	// TrendThreshold is the relative deviation from the series mean required
	// to call a trend, in (0, 1).
	TrendThreshold float64
}

// Validate rejects out-of-range parameters before any computation begins.
func (p Params) Validate() error {
	if p.SmoothingLevel <= 0 || p.SmoothingLevel >= 1 {
		return fmt.Errorf("smoothing_level must be in (0, 1), got %g", p.SmoothingLevel)
	}
	if p.TrendThreshold <= 0 || p.TrendThreshold >= 1 {
		return fmt.Errorf("trend_threshold must be in (0, 1), got %g", p.TrendThreshold)
	}
	return nil
}

// FeatureSet is the derived per-item signal bundle. It is recomputed each run
// and never mutated.
type FeatureSet struct {
	ItemID       string
	Observations int

	// OnHand and LastWeekUsage come from the most recent week with a
	// non-zero on-hand count when one exists, otherwise the latest record.
	OnHand        float64
	LastWeekUsage float64

	// Windowed usage averages over the trailing N observations.
	AvgYTD  float64
	Avg10Wk float64
	Avg4Wk  float64
	Avg2Wk  float64

	// Peak and trough averages.
	AvgHighest4       float64
	AvgLowest4NonZero float64
	AllTimeHigh       float64

	// Volatility is the coefficient of variation (stddev/mean) of usage.
	Volatility float64

	// Weeks-on-hand estimates, one per window.
	WeeksOnHandYTD      float64
	WeeksOnHand10Wk     float64
	WeeksOnHand4Wk      float64
	WeeksOnHand2Wk      float64
	WeeksOnHandHighest4 float64
	WeeksOnHandLowest4  float64

	Trend            Trend
	RecentTrendRatio float64

	// Anomaly flags.
	NegativeUsage    bool
	HugeJump         bool
	InsufficientData bool
	ZeroUsage        bool
}

// Average returns the windowed average selected by the usage column.
func (fs *FeatureSet) Average(col inventory.UsageColumn) float64 {
	switch col {
	case inventory.UsageAvgYTD:
		return fs.AvgYTD
	case inventory.UsageAvg10Wk:
		return fs.Avg10Wk
	case inventory.UsageAvg2Wk:
		return fs.Avg2Wk
	default:
		return fs.Avg4Wk
	}
}

// HasDataIssue reports whether any anomaly flag is set.
func (fs *FeatureSet) HasDataIssue() bool {
	return fs.NegativeUsage || fs.HugeJump || fs.InsufficientData
}

// Compute derives the FeatureSet for one item's ordered weekly records.
// Records must be sorted by week date ascending. Degenerate input (empty
// series, all zeros) is not an error; undefined statistics come back as NaN
// with InsufficientData flagged where history is too short.
func Compute(itemID string, records []inventory.WeeklyRecord, p Params) FeatureSet {
	fs := FeatureSet{
		ItemID:       itemID,
		Observations: len(records),
		Trend:        TrendFlat,

		AvgYTD:              Undefined(),
		Avg10Wk:             Undefined(),
		Avg4Wk:              Undefined(),
		Avg2Wk:              Undefined(),
		AvgHighest4:         Undefined(),
		AvgLowest4NonZero:   Undefined(),
		AllTimeHigh:         Undefined(),
		Volatility:          Undefined(),
		WeeksOnHandYTD:      Undefined(),
		WeeksOnHand10Wk:     Undefined(),
		WeeksOnHand4Wk:      Undefined(),
		WeeksOnHand2Wk:      Undefined(),
		WeeksOnHandHighest4: Undefined(),
		WeeksOnHandLowest4:  Undefined(),
		RecentTrendRatio:    Undefined(),
		LastWeekUsage:       Undefined(),
	}

	if len(records) == 0 {
		fs.InsufficientData = true
		return fs
	}

	usage := make([]float64, len(records))
	for i, rec := range records {
		usage[i] = rec.Usage
	}

	fs.InsufficientData = len(records) < minObservations

	// Prefer the most recent week with a complete count (non-zero on-hand);
	// partially entered weeks carry a zero on-hand that would understate
	// supply.
	latest := records[len(records)-1]
	fs.OnHand = latest.OnHand
	fs.LastWeekUsage = latest.Usage
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].OnHand > 0 {
			fs.OnHand = records[i].OnHand
			fs.LastWeekUsage = records[i].Usage
			break
		}
	}

	fs.AvgYTD = ytdAverage(records)
	fs.Avg10Wk = mean(tail(usage, 10))
	fs.Avg4Wk = mean(tail(usage, 4))
	fs.Avg2Wk = mean(tail(usage, 2))
	fs.AvgHighest4 = highestAverage(usage, 4)
	fs.AvgLowest4NonZero = lowestNonZeroAverage(usage, 4)
	fs.AllTimeHigh = maximum(usage)

	seriesMean := mean(usage)
	if Defined(seriesMean) && seriesMean > 0 {
		if sd := sampleStddev(usage); Defined(sd) {
			fs.Volatility = sd / seriesMean
		}
	}

	fs.WeeksOnHandYTD = safeDiv(fs.OnHand, fs.AvgYTD)
	fs.WeeksOnHand10Wk = safeDiv(fs.OnHand, fs.Avg10Wk)
	fs.WeeksOnHand4Wk = safeDiv(fs.OnHand, fs.Avg4Wk)
	fs.WeeksOnHand2Wk = safeDiv(fs.OnHand, fs.Avg2Wk)
	fs.WeeksOnHandHighest4 = safeDiv(fs.OnHand, fs.AvgHighest4)
	fs.WeeksOnHandLowest4 = safeDiv(fs.OnHand, fs.AvgLowest4NonZero)

	// Trend requires enough history for smoothing to mean anything; short
	// series stay flat by design rather than by caught failure.
	if len(usage) >= minObservations {
		smoothed := singleExponential(usage, p.SmoothingLevel)
		if Defined(seriesMean) && seriesMean > 0 {
			ratio := smoothed / seriesMean
			switch {
			case ratio > 1+p.TrendThreshold:
				fs.Trend = TrendUp
			case ratio < 1-p.TrendThreshold:
				fs.Trend = TrendDown
			}
		}
	}

	if len(usage) >= 8 {
		recent := mean(usage[len(usage)-4:])
		prior := mean(usage[len(usage)-8 : len(usage)-4])
		if Defined(prior) && prior > 0 {
			fs.RecentTrendRatio = recent / prior
		}
	}

	for _, u := range usage {
		if u < 0 {
			fs.NegativeUsage = true
			break
		}
	}

	if len(usage) >= 2 && Defined(seriesMean) && seriesMean > 0 {
		fs.HugeJump = usage[len(usage)-1]/seriesMean > hugeJumpFactor
	}

	if len(usage) >= minObservations {
		fs.ZeroUsage = sum(tail(usage, 4)) == 0
	}

	return fs
}

// ytdAverage is the mean usage over observations whose year matches the most
// recent year present in the series.
func ytdAverage(records []inventory.WeeklyRecord) float64 {
	maxYear := 0
	for _, rec := range records {
		if y := rec.WeekDate.Year(); y > maxYear {
			maxYear = y
		}
	}

	var total float64
	var n int
	for _, rec := range records {
		if rec.WeekDate.Year() == maxYear {
			total += rec.Usage
			n++
		}
	}
	if n == 0 {
		return Undefined()
	}
	return total / float64(n)
}

// highestAverage is the mean of the n largest values, or the mean of the
// whole series when shorter than n.
func highestAverage(series []float64, n int) float64 {
	if len(series) < n {
		return mean(series)
	}
	sorted := append([]float64(nil), series...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	return mean(sorted[:n])
}

// lowestNonZeroAverage is the mean of the n smallest strictly positive
// values; undefined when the series has no positive values.
func lowestNonZeroAverage(series []float64, n int) float64 {
	nonZero := make([]float64, 0, len(series))
	for _, v := range series {
		if v > 0 {
			nonZero = append(nonZero, v)
		}
	}
	if len(nonZero) == 0 {
		return Undefined()
	}
	if len(nonZero) < n {
		return mean(nonZero)
	}
	sort.Float64s(nonZero)
	return mean(nonZero[:n])
}

// tail returns the last n elements of the series (the whole series when
// shorter).
func tail(series []float64, n int) []float64 {
	if len(series) <= n {
		return series
	}
	return series[len(series)-n:]
}

// mean returns the arithmetic mean, undefined for an empty series.
func mean(series []float64) float64 {
	if len(series) == 0 {
		return Undefined()
	}
	return sum(series) / float64(len(series))
}

func sum(series []float64) float64 {
	var total float64
	for _, v := range series {
		total += v
	}
	return total
}

func maximum(series []float64) float64 {
	if len(series) == 0 {
		return Undefined()
	}
	m := series[0]
	for _, v := range series[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// sampleStddev returns the sample standard deviation (n-1 denominator),
// undefined for fewer than two observations.
func sampleStddev(series []float64) float64 {
	if len(series) < 2 {
		return Undefined()
	}
	m := mean(series)
	var ss float64
	for _, v := range series {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(series)-1))
}

// safeDiv divides n by d, undefined when d is undefined or non-positive.
// The policy engine maps undefined weeks-on-hand to its abundant-supply
// sentinel, never to zero.
func safeDiv(n, d float64) float64 {
	if !Defined(d) || d <= 0 {
		return Undefined()
	}
	return n / d
}
