package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/med_store/internal/cart"
	"github.com/fjod/med_store/internal/domain"
	"github.com/go-chi/chi/v5"
)

const maxQuantityMessage = "quantity must be between 1 and 99"

type CartProvider interface {
	Get(ctx context.Context, key string) (*cart.Store, error)
}

type ProductGetter interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type CartHandler struct {
	carts    CartProvider
	products ProductGetter
	timeout  time.Duration
}

func NewCartHandler(carts CartProvider, products ProductGetter, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:    carts,
		products: products,
		timeout:  timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartItemDTO struct {
	Product  domain.ProductSnapshot `json:"product"`
	Quantity int                    `json:"quantity"`
	Subtotal string                 `json:"subtotal"`
}

type CartResponse struct {
	CartID string        `json:"cart_id"`
	Items  []CartItemDTO `json:"items"`
	Count  int           `json:"count"`
	Total  string        `json:"total"`
	// Warning is set when the change was applied but could not be saved.
	Warning string `json:"warning,omitempty"`
}

func toCartResponse(s *cart.Store) CartResponse {
	entries := s.Entries()
	items := make([]CartItemDTO, 0, len(entries))
	for _, e := range entries {
		items = append(items, CartItemDTO{
			Product:  e.Product,
			Quantity: e.Quantity,
			Subtotal: e.Subtotal().StringFixed(2),
		})
	}
	return CartResponse{
		CartID: s.Key(),
		Items:  items,
		Count:  s.Count(),
		Total:  s.Total().StringFixed(2),
	}
}

func (h *CartHandler) store(ctx context.Context, w http.ResponseWriter, r *http.Request) (*cart.Store, bool) {
	cartID := getCartID(r.Context())
	if cartID == "" {
		respondError(w, http.StatusBadRequest, "missing_cart_id", "cart id is required")
		return nil, false
	}
	s, err := h.carts.Get(ctx, cartID)
	if err != nil {
		handleError(w, r, err)
		return nil, false
	}
	return s, true
}

// respondMutation writes the cart after a mutation. A failed snapshot write
// is reported as a warning, not as a failed request.
func respondMutation(w http.ResponseWriter, r *http.Request, s *cart.Store, status int, err error) {
	resp := toCartResponse(s)
	if err != nil {
		if !errors.Is(err, cart.ErrPersistenceWrite) {
			handleError(w, r, err)
			return
		}
		resp.Warning = "cart updated but could not be saved; it may not survive a reload"
	}
	respondJSON(w, status, resp)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.store(ctx, w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(s))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	quantity := cart.DefaultQuantity
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity <= 0 || quantity > cart.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", maxQuantityMessage)
		return
	}

	product, err := h.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	s, ok := h.store(ctx, w, r)
	if !ok {
		return
	}
	err = s.Add(ctx, product.Snapshot(), quantity)
	respondMutation(w, r, s, http.StatusCreated, err)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}
	if *req.Quantity > cart.MaxQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", maxQuantityMessage)
		return
	}

	s, ok := h.store(ctx, w, r)
	if !ok {
		return
	}
	// values below one are clamped by the store
	err := s.UpdateQuantity(ctx, productID, *req.Quantity)
	respondMutation(w, r, s, http.StatusOK, err)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	s, ok := h.store(ctx, w, r)
	if !ok {
		return
	}
	err := s.Remove(ctx, productID)
	respondMutation(w, r, s, http.StatusOK, err)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s, ok := h.store(ctx, w, r)
	if !ok {
		return
	}
	err := s.Clear(ctx)
	respondMutation(w, r, s, http.StatusOK, err)
}
