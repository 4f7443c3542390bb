package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/med_store/internal/catalog"
	"github.com/fjod/med_store/internal/domain"
	"github.com/go-chi/chi/v5"
)

type CatalogReader interface {
	ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]*domain.Category, error)
}

type CatalogHandler struct {
	catalog CatalogReader
	timeout time.Duration
}

func NewCatalogHandler(catalog CatalogReader, timeout time.Duration) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		timeout: timeout,
	}
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	q := r.URL.Query()
	filter := catalog.ProductFilter{
		Condition:  domain.Condition(q.Get("condition")),
		CategoryID: q.Get("category"),
		Search:     strings.TrimSpace(q.Get("q")),
	}
	if filter.Condition != "" && !filter.Condition.Valid() {
		respondError(w, http.StatusBadRequest, "invalid_condition", "condition must be new, used or discount")
		return
	}

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProduct(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if categories == nil {
		categories = []*domain.Category{}
	}
	respondJSON(w, http.StatusOK, categories)
}
