// Barhound - Bar Inventory Restock Intelligence
// Copyright 2026 Dan M. (barhound)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/barhound/barhound

package inventory

// Metadata is the vendor/category/location data attached to an item during
// dataset enrichment.
type Metadata struct {
	Category Category
	Vendor   string
	Location string
	CaseSize int
}

// MetadataSource resolves item metadata. Implementations live outside the
// core (mapping files, master catalogs); within a run the lookup is treated
// as a pure function.
type MetadataSource interface {
	Lookup(itemID string) (Metadata, bool)
}

// StaticMetadata is a MetadataSource backed by a fixed map. Used by tests and
// by callers that load their mapping table up front.
type StaticMetadata map[string]Metadata

// Lookup implements MetadataSource.
func (m StaticMetadata) Lookup(itemID string) (Metadata, bool) {
	meta, ok := m[itemID]
	return meta, ok
}

// Enrich returns a copy of the dataset with missing item metadata filled from
// the source. Fields already present on an item are never overwritten; items
// the source does not know keep their existing values, with an empty category
// normalized to CategoryUnknown. The input dataset is not mutated.
func Enrich(d *Dataset, src MetadataSource) *Dataset {
	enriched := &Dataset{
		Items:   make(map[string]Item, len(d.Items)),
		Records: d.Records,
	}

	for id, item := range d.Items {
		if src != nil {
			if meta, ok := src.Lookup(id); ok {
				if item.Category == "" {
					item.Category = meta.Category
				}
				if item.Vendor == "" {
					item.Vendor = meta.Vendor
				}
				if item.Location == "" {
					item.Location = meta.Location
				}
				if item.CaseSize == 0 {
					item.CaseSize = meta.CaseSize
				}
			}
		}
		if item.Category == "" {
			item.Category = CategoryUnknown
		}
		enriched.Items[id] = item
	}

	return enriched
}
