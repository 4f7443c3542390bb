package http

import (
	"context"
	"errors"
	"sync"

	"github.com/fjod/med_store/internal/catalog"
	"github.com/fjod/med_store/internal/domain"
	"github.com/fjod/med_store/internal/storage"
	"github.com/fjod/med_store/internal/upload"
	"github.com/shopspring/decimal"
)

type CatalogMock struct {
	mu         sync.Mutex
	products   map[string]*domain.Product
	categories map[string]*domain.Category
	contacts   map[string]*domain.ContactRequest
	lastFilter catalog.ProductFilter
	err        error
}

func newCatalogMock() *CatalogMock {
	return &CatalogMock{
		products: map[string]*domain.Product{
			"p1": {ID: "p1", Name: "Pulse Oximeter", Price: decimal.RequireFromString("29.99"), CategoryName: "Monitoring", Condition: domain.ConditionNew,
				Images: []domain.ProductImage{{ImageURL: "https://cdn.example.com/ox.jpg", IsPrimary: true}}},
			"p2": {ID: "p2", Name: "Wheelchair", Price: decimal.RequireFromString("310.50"), Condition: domain.ConditionUsed},
		},
		categories: map[string]*domain.Category{},
		contacts:   map[string]*domain.ContactRequest{},
	}
}

func (c *CatalogMock) ListProducts(_ context.Context, filter catalog.ProductFilter) ([]*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFilter = filter
	if c.err != nil {
		return nil, c.err
	}
	var out []*domain.Product
	for _, p := range c.products {
		if filter.Condition == "" || p.Condition == filter.Condition {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *CatalogMock) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	p, ok := c.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (c *CatalogMock) ListCategories(context.Context) ([]*domain.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*domain.Category
	for _, cat := range c.categories {
		out = append(out, cat)
	}
	return out, c.err
}

func (c *CatalogMock) CreateProduct(_ context.Context, p *domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.Name == "" {
		return catalog.ErrInvalid
	}
	p.ID = "new-product"
	c.products[p.ID] = p
	return nil
}

func (c *CatalogMock) UpdateProduct(_ context.Context, p *domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[p.ID]; !ok {
		return catalog.ErrNotFound
	}
	c.products[p.ID] = p
	return nil
}

func (c *CatalogMock) DeleteProduct(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.products[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(c.products, id)
	return nil
}

func (c *CatalogMock) AddProductImages(_ context.Context, productID string, images []domain.ProductImage) ([]domain.ProductImage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.products[productID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	for i := range images {
		images[i].ProductID = productID
	}
	p.Images = append(p.Images, images...)
	return images, nil
}

func (c *CatalogMock) GetCategory(_ context.Context, id string) (*domain.Category, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cat, ok := c.categories[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return cat, nil
}

func (c *CatalogMock) CreateCategory(_ context.Context, cat *domain.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cat.ID = "cat-1"
	c.categories[cat.ID] = cat
	return nil
}

func (c *CatalogMock) UpdateCategory(_ context.Context, cat *domain.Category) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.categories[cat.ID]; !ok {
		return catalog.ErrNotFound
	}
	c.categories[cat.ID] = cat
	return nil
}

func (c *CatalogMock) DeleteCategory(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.categories[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(c.categories, id)
	return nil
}

func (c *CatalogMock) CreateContactRequest(_ context.Context, msg *domain.ContactRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.Email == "" {
		return catalog.ErrInvalid
	}
	msg.ID = "contact-1"
	c.contacts[msg.ID] = msg
	return nil
}

func (c *CatalogMock) ListContactRequests(context.Context) ([]*domain.ContactRequest, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*domain.ContactRequest
	for _, m := range c.contacts {
		out = append(out, m)
	}
	return out, nil
}

func (c *CatalogMock) ToggleContactHandled(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.contacts[id]
	if !ok {
		return false, catalog.ErrNotFound
	}
	m.IsHandled = !m.IsHandled
	return m.IsHandled, nil
}

func (c *CatalogMock) Stats(context.Context) (domain.Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Stats{Products: len(c.products), Categories: len(c.categories), Messages: len(c.contacts)}, nil
}

type UploaderMock struct {
	names []string
	err   error
}

func (u *UploaderMock) UploadMany(_ context.Context, files []upload.File) ([]string, error) {
	if u.err != nil {
		return nil, u.err
	}
	urls := make([]string, len(files))
	for i, f := range files {
		u.names = append(u.names, f.Name)
		urls[i] = "https://res.example.com/" + f.Name
	}
	return urls, nil
}

// failingStorage loads nothing and rejects every write.
type failingStorage struct{}

func (failingStorage) Get(context.Context, string) ([]byte, error) {
	return nil, storage.ErrNotFound
}

func (failingStorage) Set(context.Context, string, []byte) error {
	return errors.New("quota exceeded")
}

func (failingStorage) Delete(context.Context, string) error {
	return nil
}

type ObserverMock struct {
	mu     sync.Mutex
	routes map[string]int
}

func (o *ObserverMock) ObserveRequest(route string, code int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.routes == nil {
		o.routes = map[string]int{}
	}
	o.routes[route] = code
}

// unavailableStorage fails reads while down is set.
type unavailableStorage struct {
	storage.Storage
	mu   sync.Mutex
	down bool
}

func (u *unavailableStorage) setDown(down bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.down = down
}

func (u *unavailableStorage) Get(ctx context.Context, key string) ([]byte, error) {
	u.mu.Lock()
	down := u.down
	u.mu.Unlock()
	if down {
		return nil, errors.New("connection refused")
	}
	return u.Storage.Get(ctx, key)
}
