package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/pharma-price-crawler/internal/catalog"
)

// ErrNotFound is returned for lookups of ids that do not exist.
var ErrNotFound = errors.New("not found")

// SearchResult is one row of a similarity search.
type SearchResult struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	ImageURL      string  `json:"image_url"`
	MinPrice      float64 `json:"min_price"`
	PharmacyCount int     `json:"pharmacy_count"`
}

// PharmacyPrice is one pharmacy's current price for a medicine.
type PharmacyPrice struct {
	PharmacyName string    `json:"pharmacy_name"`
	Price        float64   `json:"price"`
	LastUpdated  time.Time `json:"last_updated"`
}

// SearchMedicines runs a trigram similarity search over normalized names,
// relying on the pg_trgm index the schema carries. Results order by
// similarity descending.
func (s *CatalogStore) SearchMedicines(ctx context.Context, key string, threshold float64, limit int) ([]SearchResult, error) {
	rows, err := s.pool.Query(ctx, `
SELECT m.id, m.name, COALESCE(m.image_url, ''), MIN(p.price), COUNT(p.pharmacy_id)
FROM medicines m
JOIN pharmacy_prices p ON m.id = p.medicine_id
WHERE similarity(m.normalized_name, $1) > $2
GROUP BY m.id
ORDER BY similarity(m.normalized_name, $1) DESC
LIMIT $3`,
		key, threshold, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search medicines: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Name, &r.ImageURL, &r.MinPrice, &r.PharmacyCount); err != nil {
			return nil, fmt.Errorf("scan search result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search results: %w", err)
	}
	return results, nil
}

// GetMedicine returns one canonical product by id.
func (s *CatalogStore) GetMedicine(ctx context.Context, id int64) (catalog.Medicine, error) {
	var m catalog.Medicine
	err := s.pool.QueryRow(ctx, `
SELECT id, name, normalized_name, COALESCE(description, ''), COALESCE(image_url, ''), category_id
FROM medicines WHERE id = $1`,
		id,
	).Scan(&m.ID, &m.Name, &m.NormalizedName, &m.Description, &m.ImageURL, &m.CategoryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Medicine{}, ErrNotFound
	}
	if err != nil {
		return catalog.Medicine{}, fmt.Errorf("get medicine %d: %w", id, err)
	}
	return m, nil
}

// MedicinePrices returns every pharmacy's price for one medicine, cheapest
// first.
func (s *CatalogStore) MedicinePrices(ctx context.Context, medicineID int64) ([]PharmacyPrice, error) {
	rows, err := s.pool.Query(ctx, `
SELECT ph.name, p.price, p.last_updated
FROM pharmacy_prices p
JOIN pharmacies ph ON p.pharmacy_id = ph.id
WHERE p.medicine_id = $1
ORDER BY p.price`,
		medicineID,
	)
	if err != nil {
		return nil, fmt.Errorf("medicine prices: %w", err)
	}
	defer rows.Close()

	var prices []PharmacyPrice
	for rows.Next() {
		var p PharmacyPrice
		if err := rows.Scan(&p.PharmacyName, &p.Price, &p.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan pharmacy price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pharmacy prices: %w", err)
	}
	return prices, nil
}

// ListCategories returns root categories when parentID is nil, otherwise
// the children of parentID, ordered by name.
func (s *CatalogStore) ListCategories(ctx context.Context, parentID *int64) ([]catalog.Category, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if parentID == nil {
		rows, err = s.pool.Query(ctx, `
SELECT id, name, parent_id FROM categories WHERE parent_id IS NULL ORDER BY name`)
	} else {
		rows, err = s.pool.Query(ctx, `
SELECT id, name, parent_id FROM categories WHERE parent_id = $1 ORDER BY name`, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []catalog.Category
	for rows.Next() {
		var c catalog.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate categories: %w", err)
	}
	return cats, nil
}
