// Package catalog defines core domain types shared across subsystems.
package catalog

import "time"

// Category is one node of the category forest. A nil ParentID marks a root.
// Uniqueness is (name, parent), not global name: "Vitamins" may appear under
// several parents.
type Category struct {
	ID       int64
	Name     string
	ParentID *int64
}

// Medicine is the canonical product: one deduplicated entry representing a
// real-world item across all sources. NormalizedName is the unique matching
// key; rows are created on first sighting and updated, never replaced, on
// later sightings that resolve to the same id.
type Medicine struct {
	ID             int64
	Name           string
	NormalizedName string
	Description    string
	ImageURL       string
	CategoryID     *int64
}

// MedicineKey is the slice of a Medicine the reconciler indexes in memory.
type MedicineKey struct {
	ID             int64
	NormalizedName string
}

// Pharmacy identifies one price source. Address is the unique identifier.
type Pharmacy struct {
	ID      int64
	Name    string
	Address string
}

// PriceObservation is one (pharmacy, medicine) price row. The pair is
// unique; re-observations overwrite price and refresh LastUpdated.
type PriceObservation struct {
	PharmacyID  int64
	MedicineID  int64
	Price       float64
	LastUpdated time.Time
}

// Target is one leaf category to crawl: its absolute URL plus the ordered
// ancestor names attached to every item discovered under it.
type Target struct {
	URL         string
	Breadcrumbs []string
}

// Detail is the structured record extracted from one product page.
type Detail struct {
	Title       string
	Description string
	ImageURL    string
	Price       float64
}
