package http

import (
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/fjod/med_store/internal/catalog"
	"github.com/fjod/med_store/internal/domain"
	"github.com/fjod/med_store/internal/upload"
	"github.com/go-chi/chi/v5"
)

type CatalogAdmin interface {
	CatalogReader
	ContactWriter
	CreateProduct(ctx context.Context, p *domain.Product) error
	UpdateProduct(ctx context.Context, p *domain.Product) error
	DeleteProduct(ctx context.Context, id string) error
	AddProductImages(ctx context.Context, productID string, images []domain.ProductImage) ([]domain.ProductImage, error)

	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	UpdateCategory(ctx context.Context, c *domain.Category) error
	DeleteCategory(ctx context.Context, id string) error

	ListContactRequests(ctx context.Context) ([]*domain.ContactRequest, error)
	ToggleContactHandled(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (domain.Stats, error)
}

type ImageUploader interface {
	UploadMany(ctx context.Context, files []upload.File) ([]string, error)
}

type AdminHandler struct {
	catalog        CatalogAdmin
	uploader       ImageUploader
	timeout        time.Duration
	maxUploadBytes int64
}

func NewAdminHandler(catalog CatalogAdmin, uploader ImageUploader, timeout time.Duration, maxUploadBytes int64) *AdminHandler {
	return &AdminHandler{
		catalog:        catalog,
		uploader:       uploader,
		timeout:        timeout,
		maxUploadBytes: maxUploadBytes,
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var p domain.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = ""
	if err := h.catalog.CreateProduct(ctx, &p); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, p)
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var p domain.Product
	if !decodeJSON(w, r, &p) {
		return
	}
	p.ID = chi.URLParam(r, "id")
	if err := h.catalog.UpdateProduct(ctx, &p); err != nil {
		handleError(w, r, err)
		return
	}

	updated, err := h.catalog.GetProduct(ctx, p.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.DeleteProduct(ctx, chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UploadImages accepts multipart "images" files, pushes them to the image
// host and attaches the resulting URLs to the product. With primary=true the
// first uploaded image becomes the product's primary image.
func (h *AdminHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "id")
	if _, err := h.catalog.GetProduct(ctx, productID); err != nil {
		handleError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["images"]
	if len(headers) == 0 {
		respondError(w, http.StatusBadRequest, "missing_images", "at least one image is required")
		return
	}

	files, closeAll, err := openParts(headers)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	defer closeAll()

	urls, err := h.uploader.UploadMany(ctx, files)
	if err != nil {
		handleError(w, r, err)
		return
	}

	primary := r.FormValue("primary") == "true"
	images := make([]domain.ProductImage, len(urls))
	for i, url := range urls {
		images[i] = domain.ProductImage{ImageURL: url, IsPrimary: primary && i == 0}
	}

	added, err := h.catalog.AddProductImages(ctx, productID, images)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, added)
}

func openParts(headers []*multipart.FileHeader) ([]upload.File, func(), error) {
	var opened []multipart.File
	closeAll := func() {
		for _, f := range opened {
			f.Close()
		}
	}

	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		opened = append(opened, f)
		files = append(files, upload.File{Name: fh.Filename, Reader: f})
	}
	return files, closeAll, nil
}

func (h *AdminHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var c domain.Category
	if !decodeJSON(w, r, &c) {
		return
	}
	c.ID = ""
	if err := h.catalog.CreateCategory(ctx, &c); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

func (h *AdminHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var c domain.Category
	if !decodeJSON(w, r, &c) {
		return
	}
	c.ID = chi.URLParam(r, "id")
	if err := h.catalog.UpdateCategory(ctx, &c); err != nil {
		handleError(w, r, err)
		return
	}

	updated, err := h.catalog.GetCategory(ctx, c.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (h *AdminHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.catalog.DeleteCategory(ctx, chi.URLParam(r, "id")); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	contacts, err := h.catalog.ListContactRequests(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []*domain.ContactRequest{}
	}
	respondJSON(w, http.StatusOK, contacts)
}

func (h *AdminHandler) ToggleContact(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	handled, err := h.catalog.ToggleContactHandled(ctx, id)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "is_handled": handled})
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	stats, err := h.catalog.Stats(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

var _ CatalogAdmin = (*catalog.Repository)(nil)
