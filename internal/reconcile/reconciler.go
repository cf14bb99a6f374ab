// Package reconcile matches extracted product records against the canonical
// catalog.
package reconcile

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/pharma-price-crawler/internal/catalog"
	"github.com/JakeFAU/pharma-price-crawler/internal/normalize"
	"github.com/JakeFAU/pharma-price-crawler/internal/textmatch"
)

// Role selects the matching policy. The two roles were designed with
// different recall/precision trade-offs and must never be interchanged
// within one run, so the role is a required constructor parameter rather
// than something inferred from the data.
type Role string

// Ingestion roles.
const (
	// RoleCatalogBuilder ingests the reference source: light normalization,
	// exact matching only, create-on-miss.
	RoleCatalogBuilder Role = "catalog-builder"
	// RoleAttachPrices ingests a secondary source: aggressive normalization,
	// fuzzy fallback, skip-on-miss. Never fabricates catalog entries.
	RoleAttachPrices Role = "price-attacher"
)

// Mode returns the normalization mode this role matches with.
func (r Role) Mode() normalize.Mode {
	if r == RoleAttachPrices {
		return normalize.ModeAggressive
	}
	return normalize.ModeLight
}

// Threshold returns the minimum fuzzy similarity this role accepts. The
// light-normalized threshold matches within one already-curated catalog;
// the aggressive threshold guards cross-vendor title matching.
func (r Role) Threshold() float64 {
	if r == RoleAttachPrices {
		return 0.4
	}
	return 0.2
}

// Outcome classifies one reconciliation.
type Outcome string

// Reconciliation outcomes.
const (
	OutcomeMatched   Outcome = "matched"
	OutcomeCreated   Outcome = "created"
	OutcomeUnmatched Outcome = "unmatched"
)

// Store is the slice of the persistence layer the reconciler needs.
type Store interface {
	MedicineKeys(ctx context.Context) ([]catalog.MedicineKey, error)
	UpsertMedicine(ctx context.Context, m catalog.Medicine) (int64, error)
}

// Result is the decision for one record.
type Result struct {
	Outcome    Outcome
	MedicineID int64
	Score      float64
}

// Reconciler applies the three-step policy: exact key match, fuzzy trigram
// match (price-attaching role only), then create or skip. The canonical key
// index is loaded once per run and extended as the builder role creates
// entries, so concurrent workers see their siblings' insertions.
type Reconciler struct {
	role   Role
	store  Store
	logger *zap.Logger

	mu    sync.Mutex
	byKey map[string]int64
	keys  []catalog.MedicineKey
}

// New constructs a Reconciler and loads the key index.
func New(ctx context.Context, role Role, store Store, logger *zap.Logger) (*Reconciler, error) {
	keys, err := store.MedicineKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("load medicine keys: %w", err)
	}

	byKey := make(map[string]int64, len(keys))
	for _, k := range keys {
		byKey[k.NormalizedName] = k.ID
	}

	return &Reconciler{
		role:   role,
		store:  store,
		logger: logger,
		byKey:  byKey,
		keys:   keys,
	}, nil
}

// Role exposes the configured ingestion role.
func (r *Reconciler) Role() Role { return r.role }

// Reconcile matches detail against the catalog. An empty normalized key is
// unmatchable by contract and yields OutcomeUnmatched in every role.
func (r *Reconciler) Reconcile(ctx context.Context, detail catalog.Detail, categoryID *int64) (Result, error) {
	key := normalize.Apply(r.role.Mode(), detail.Title)
	if key == "" {
		return Result{Outcome: OutcomeUnmatched}, nil
	}

	// Step 1: exact match always wins.
	r.mu.Lock()
	id, exact := r.byKey[key]
	r.mu.Unlock()
	if exact {
		if r.role == RoleCatalogBuilder {
			// Re-sightings update the canonical entry in place.
			if _, err := r.upsert(ctx, detail, key, categoryID); err != nil {
				return Result{}, err
			}
		}
		return Result{Outcome: OutcomeMatched, MedicineID: id, Score: 1}, nil
	}

	// Step 2: fuzzy match, price-attaching role only.
	if r.role == RoleAttachPrices {
		if id, score, ok := r.bestFuzzy(key); ok {
			return Result{Outcome: OutcomeMatched, MedicineID: id, Score: score}, nil
		}
		r.logger.Debug("No canonical match", zap.String("key", key), zap.String("title", detail.Title))
		return Result{Outcome: OutcomeUnmatched}, nil
	}

	// Step 3: catalog builder creates on miss.
	id, err := r.upsert(ctx, detail, key, categoryID)
	if err != nil {
		return Result{}, err
	}
	return Result{Outcome: OutcomeCreated, MedicineID: id, Score: 1}, nil
}

// bestFuzzy scans every canonical key and returns the best-scoring match at
// or above the role threshold. Ties break by score, then lowest id, keeping
// the decision deterministic across runs.
func (r *Reconciler) bestFuzzy(key string) (int64, float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		bestID    int64
		bestScore float64
		found     bool
	)
	for _, k := range r.keys {
		score := textmatch.Similarity(key, k.NormalizedName)
		if score <= r.role.Threshold() {
			continue
		}
		if !found || score > bestScore || (score == bestScore && k.ID < bestID) {
			bestID, bestScore, found = k.ID, score, true
		}
	}
	return bestID, bestScore, found
}

func (r *Reconciler) upsert(ctx context.Context, detail catalog.Detail, key string, categoryID *int64) (int64, error) {
	id, err := r.store.UpsertMedicine(ctx, catalog.Medicine{
		Name:           detail.Title,
		NormalizedName: key,
		Description:    detail.Description,
		ImageURL:       detail.ImageURL,
		CategoryID:     categoryID,
	})
	if err != nil {
		return 0, fmt.Errorf("upsert medicine: %w", err)
	}

	r.mu.Lock()
	if _, known := r.byKey[key]; !known {
		r.byKey[key] = id
		r.keys = append(r.keys, catalog.MedicineKey{ID: id, NormalizedName: key})
	}
	r.mu.Unlock()
	return id, nil
}
