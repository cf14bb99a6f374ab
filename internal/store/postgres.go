// Package store provides Postgres-backed persistence for the catalog.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/pharma-price-crawler/internal/catalog"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// CatalogStore reads and writes the catalog tables. All writes are upserts:
// categories and medicines are append/update-only, price rows are mutated in
// place per (pharmacy, medicine) pair.
type CatalogStore struct {
	pool pgxPool
}

// New connects a CatalogStore and verifies the connection. An unreachable
// database is a fatal setup failure; nothing else in a run can proceed.
func New(ctx context.Context, cfg Config) (*CatalogStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &CatalogStore{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*CatalogStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &CatalogStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *CatalogStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// GetOrCreateCategoryPath walks breadcrumbs from the root, creating any
// missing (name, parent) node, and returns the deepest category's id.
// Uniqueness is (name, parent), so the same name may recur under different
// parents without collapsing branches of the forest. Concurrent walkers may
// race on the same node; the insert yields to whoever won and re-selects.
func (s *CatalogStore) GetOrCreateCategoryPath(ctx context.Context, breadcrumbs []string) (int64, error) {
	var parentID *int64
	var categoryID int64

	for _, name := range breadcrumbs {
		id, err := s.categoryID(ctx, name, parentID)
		if errors.Is(err, pgx.ErrNoRows) {
			err = s.pool.QueryRow(ctx, `
INSERT INTO categories (name, parent_id) VALUES ($1, $2)
ON CONFLICT DO NOTHING RETURNING id`,
				name, parentID,
			).Scan(&id)
			if errors.Is(err, pgx.ErrNoRows) {
				// Lost the race; the row exists now.
				id, err = s.categoryID(ctx, name, parentID)
			}
		}
		if err != nil {
			return 0, fmt.Errorf("category %q: %w", name, err)
		}
		categoryID = id
		parentID = &id
	}
	return categoryID, nil
}

func (s *CatalogStore) categoryID(ctx context.Context, name string, parentID *int64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
SELECT id FROM categories
WHERE name = $1 AND (parent_id = $2 OR ($2::bigint IS NULL AND parent_id IS NULL))`,
		name, parentID,
	).Scan(&id)
	return id, err
}

// UpsertMedicine inserts or updates the canonical product keyed by its
// normalized name and returns its id. Later sightings update the row in
// place; the id and key never change.
func (s *CatalogStore) UpsertMedicine(ctx context.Context, m catalog.Medicine) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO medicines (name, normalized_name, description, image_url, category_id)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (normalized_name) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	image_url = EXCLUDED.image_url,
	category_id = EXCLUDED.category_id
RETURNING id`,
		m.Name, m.NormalizedName, m.Description, m.ImageURL, m.CategoryID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upsert medicine %q: %w", m.NormalizedName, err)
	}
	return id, nil
}

// MedicineKeys returns every canonical id and normalized key, ordered by id
// so reconciliation tie-breaks stay deterministic.
func (s *CatalogStore) MedicineKeys(ctx context.Context) ([]catalog.MedicineKey, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, normalized_name FROM medicines ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list medicine keys: %w", err)
	}
	defer rows.Close()

	var keys []catalog.MedicineKey
	for rows.Next() {
		var k catalog.MedicineKey
		if err := rows.Scan(&k.ID, &k.NormalizedName); err != nil {
			return nil, fmt.Errorf("scan medicine key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate medicine keys: %w", err)
	}
	return keys, nil
}

// EnsurePharmacy upserts a price source by its unique address and returns
// its id.
func (s *CatalogStore) EnsurePharmacy(ctx context.Context, name, address string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
INSERT INTO pharmacies (name, address) VALUES ($1, $2)
ON CONFLICT (address) DO UPDATE SET name = EXCLUDED.name
RETURNING id`,
		name, address,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("ensure pharmacy %q: %w", address, err)
	}
	return id, nil
}

// UpsertPrice records one price observation. The (pharmacy, medicine) pair
// is unique; a conflict overwrites the price and refreshes last_updated.
// Concurrent calls with different keys are independent; same-key calls are
// serialized by the database's conflict resolution, last writer wins.
func (s *CatalogStore) UpsertPrice(ctx context.Context, pharmacyID, medicineID int64, price float64) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO pharmacy_prices (pharmacy_id, medicine_id, price, last_updated)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (pharmacy_id, medicine_id) DO UPDATE SET
	price = EXCLUDED.price,
	last_updated = NOW()`,
		pharmacyID, medicineID, price,
	)
	if err != nil {
		return fmt.Errorf("upsert price (%d,%d): %w", pharmacyID, medicineID, err)
	}
	return nil
}
