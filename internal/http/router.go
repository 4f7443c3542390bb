package http

import (
	"net/http"
	"time"

	"github.com/fjod/med_store/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Carts    CartProvider
	Catalog  CatalogAdmin
	Uploader ImageUploader
	Verifier auth.SessionVerifier

	// Metrics is optional; MetricsHandler is served at /metrics when set.
	Metrics        RequestObserver
	MetricsHandler http.Handler

	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cfg.Carts, cfg.Catalog, cfg.RequestTimeout)
	catalogHandler := NewCatalogHandler(cfg.Catalog, cfg.RequestTimeout)
	contactHandler := NewContactHandler(cfg.Catalog, cfg.RequestTimeout)
	adminHandler := NewAdminHandler(cfg.Catalog, cfg.Uploader, cfg.RequestTimeout, cfg.MaxRequestBodySize)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", catalogHandler.ListProducts)
		r.Get("/products/{id}", catalogHandler.GetProduct)
		r.Get("/categories", catalogHandler.ListCategories)

		r.With(limitBody(1<<20)).Post("/contact", contactHandler.Submit)

		r.Route("/cart", func(r chi.Router) {
			r.Use(CartIDMiddleware)
			r.Use(limitBody(1 << 20))
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireSession(cfg.Verifier))

			r.Get("/stats", adminHandler.Stats)

			r.Post("/products", adminHandler.CreateProduct)
			r.Put("/products/{id}", adminHandler.UpdateProduct)
			r.Delete("/products/{id}", adminHandler.DeleteProduct)
			r.Post("/products/{id}/images", adminHandler.UploadImages)

			r.Post("/categories", adminHandler.CreateCategory)
			r.Put("/categories/{id}", adminHandler.UpdateCategory)
			r.Delete("/categories/{id}", adminHandler.DeleteCategory)

			r.Get("/contacts", adminHandler.ListContacts)
			r.Post("/contacts/{id}/toggle", adminHandler.ToggleContact)
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}

func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
