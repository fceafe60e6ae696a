// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

// Package inventory defines the core domain types shared by the feature,
// policy, and agent packages: tracked items, weekly observations, and the
// dataset container handed to the agent by the ingestion layer.
//
// The package has no dependencies on other internal packages so that the
// computation packages can consume it without import cycles.
package inventory

import (
	"sort"
	"time"
)

// Category enumerates the tracked item categories. An unknown category is a
// configuration error, not a silent fallback; Config.Validate rejects target
// maps that reference categories outside this set.
type Category string

const (
	CategoryDraftBeer      Category = "Draft Beer"
	CategoryBottledBeer    Category = "Bottled Beer"
	CategoryWhiskey        Category = "Whiskey"
	CategoryVodka          Category = "Vodka"
	CategoryGin            Category = "Gin"
	CategoryTequila        Category = "Tequila"
	CategoryRum            Category = "Rum"
	CategoryScotch         Category = "Scotch"
	CategoryWell           Category = "Well"
	CategoryLiqueur        Category = "Liqueur"
	CategoryCordials       Category = "Cordials"
	CategoryWine           Category = "Wine"
	CategoryJuice          Category = "Juice"
	CategoryBarConsumables Category = "Bar Consumables"

	// CategoryUnknown marks items the metadata source could not classify.
	// Such items fall back to the default target weeks.
	CategoryUnknown Category = "Unknown"
)

// Categories returns all known categories in a stable order.
func Categories() []Category {
	return []Category{
		CategoryDraftBeer,
		CategoryBottledBeer,
		CategoryWhiskey,
		CategoryVodka,
		CategoryGin,
		CategoryTequila,
		CategoryRum,
		CategoryScotch,
		CategoryWell,
		CategoryLiqueur,
		CategoryCordials,
		CategoryWine,
		CategoryJuice,
		CategoryBarConsumables,
	}
}

// Valid reports whether the category is a known member of the enumeration.
// CategoryUnknown is valid; arbitrary strings are not.
func (c Category) Valid() bool {
	if c == CategoryUnknown {
		return true
	}
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// UsageColumn selects which windowed average the policy engine treats as the
// item's usage rate.
type UsageColumn string

const (
	UsageAvgYTD  UsageColumn = "avg_ytd"
	UsageAvg10Wk UsageColumn = "avg_10wk"
	UsageAvg4Wk  UsageColumn = "avg_4wk"
	UsageAvg2Wk  UsageColumn = "avg_2wk"
)

// Valid reports whether the usage column is a known member of the enumeration.
func (u UsageColumn) Valid() bool {
	switch u {
	case UsageAvgYTD, UsageAvg10Wk, UsageAvg4Wk, UsageAvg2Wk:
		return true
	default:
		return false
	}
}

// Item is immutable reference data for one tracked item. Items are created by
// the external ingestion layer and read-only to the core.
type Item struct {
	// ID is the unique, trimmed item identifier.
	ID string `json:"item_id"`

	// Category is the enumerated item category.
	Category Category `json:"category"`

	// Vendor is the supplying vendor name.
	Vendor string `json:"vendor"`

	// Location is an optional storage location hint.
	Location string `json:"location,omitempty"`

	// CaseSize is the case pack size for order rounding. Zero means the item
	// is ordered in single units.
	CaseSize int `json:"case_size,omitempty"`
}

// WeeklyRecord is one (item, week) observation. Negative usage is valid input
// and signals a data-quality anomaly, not a constraint violation.
type WeeklyRecord struct {
	ItemID   string    `json:"item_id"`
	WeekDate time.Time `json:"week_date"`
	OnHand   float64   `json:"on_hand"`
	Usage    float64   `json:"usage"`
}

// Dataset is the input contract from the external parser: item reference data
// plus the ordered weekly record sequence.
type Dataset struct {
	Items   map[string]Item
	Records []WeeklyRecord
}

// Item looks up an item by ID.
func (d *Dataset) Item(id string) (Item, bool) {
	item, ok := d.Items[id]
	return item, ok
}

// RecordsByItem groups the record sequence per item, each group sorted by
// week date ascending. The grouping is stable for records sharing a date.
func (d *Dataset) RecordsByItem() map[string][]WeeklyRecord {
	grouped := make(map[string][]WeeklyRecord)
	for _, rec := range d.Records {
		grouped[rec.ItemID] = append(grouped[rec.ItemID], rec)
	}
	for _, recs := range grouped {
		sort.SliceStable(recs, func(i, j int) bool {
			return recs[i].WeekDate.Before(recs[j].WeekDate)
		})
	}
	return grouped
}

// ItemIDs returns the dataset's item IDs in lexical order. Used to make
// per-run iteration deterministic.
func (d *Dataset) ItemIDs() []string {
	ids := make([]string, 0, len(d.Items))
	for id := range d.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DateRange returns the earliest and latest week dates present in the record
// sequence. ok is false when the dataset has no records.
func (d *Dataset) DateRange() (first, last time.Time, ok bool) {
	if len(d.Records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	first, last = d.Records[0].WeekDate, d.Records[0].WeekDate
	for _, rec := range d.Records[1:] {
		if rec.WeekDate.Before(first) {
			first = rec.WeekDate
		}
		if rec.WeekDate.After(last) {
			last = rec.WeekDate
		}
	}
	return first, last, true
}
