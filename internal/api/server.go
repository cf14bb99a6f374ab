// Package api exposes the assembled catalog over HTTP: trigram-backed
// search, medicine detail with per-pharmacy prices, and category browsing.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/JakeFAU/pharma-price-crawler/internal/catalog"
	"github.com/JakeFAU/pharma-price-crawler/internal/normalize"
	"github.com/JakeFAU/pharma-price-crawler/internal/store"
)

// searchThreshold mirrors the catalog-building similarity floor so the API
// finds everything the ingest pipeline would have matched.
const searchThreshold = 0.2

const searchLimit = 50

// Catalog is the read surface the server needs.
type Catalog interface {
	SearchMedicines(ctx context.Context, key string, threshold float64, limit int) ([]store.SearchResult, error)
	GetMedicine(ctx context.Context, id int64) (catalog.Medicine, error)
	MedicinePrices(ctx context.Context, medicineID int64) ([]store.PharmacyPrice, error)
	ListCategories(ctx context.Context, parentID *int64) ([]catalog.Category, error)
}

// Server serves the read-only catalog API.
type Server struct {
	catalog Catalog
	logger  *zap.Logger
	router  chi.Router
}

// New builds a Server with its routes mounted.
func New(cat Catalog, logger *zap.Logger) *Server {
	s := &Server{catalog: cat, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/search", s.handleSearch)
	r.Get("/medicines/{id}", s.handleMedicine)
	r.Get("/categories", s.handleCategories)
	r.Get("/categories/{id}", s.handleCategories)

	s.router = r
	return s
}

// Handler returns the mounted router.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearch normalizes the query the same way ingestion normalizes
// catalog names, so user queries hit the same key space the matcher built.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	key := normalize.Light(q)
	if key == "" {
		s.respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	results, err := s.catalog.SearchMedicines(r.Context(), key, searchThreshold, searchLimit)
	if err != nil {
		s.logger.Error("Search failed", zap.String("query", q), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if results == nil {
		results = []store.SearchResult{}
	}
	s.respond(w, http.StatusOK, results)
}

type medicineResponse struct {
	ID          int64                 `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description,omitempty"`
	ImageURL    string                `json:"image_url,omitempty"`
	CategoryID  *int64                `json:"category_id,omitempty"`
	Prices      []store.PharmacyPrice `json:"prices"`
}

func (s *Server) handleMedicine(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid medicine id")
		return
	}

	m, err := s.catalog.GetMedicine(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, "medicine not found")
		return
	}
	if err != nil {
		s.logger.Error("Medicine lookup failed", zap.Int64("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}

	prices, err := s.catalog.MedicinePrices(r.Context(), id)
	if err != nil {
		s.logger.Error("Price lookup failed", zap.Int64("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if prices == nil {
		prices = []store.PharmacyPrice{}
	}

	s.respond(w, http.StatusOK, medicineResponse{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		ImageURL:    m.ImageURL,
		CategoryID:  m.CategoryID,
		Prices:      prices,
	})
}

type categoryResponse struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// handleCategories lists root categories, or the children of {id} when the
// path carries one.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	var parentID *int64
	if raw := chi.URLParam(r, "id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid category id")
			return
		}
		parentID = &id
	}

	categories, err := s.catalog.ListCategories(r.Context(), parentID)
	if err != nil {
		s.logger.Error("Category listing failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "listing failed")
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryResponse{ID: c.ID, Name: c.Name, ParentID: c.ParentID})
	}
	s.respond(w, http.StatusOK, out)
}

func (s *Server) respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Response encoding failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respond(w, status, map[string]string{"error": msg})
}
