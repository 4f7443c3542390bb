package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/med_store/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	if testing.Short() {
		t.Skip("skipping Postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	repo, err := NewRepository(dsn)
	require.NoError(t, err)

	err = repo.RunMigrations()
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func newTestProduct(name string, price string, categoryID string) *domain.Product {
	return &domain.Product{
		Name:        name,
		Description: "Hospital grade " + name,
		Price:       decimal.RequireFromString(price),
		CategoryID:  categoryID,
		Condition:   domain.ConditionNew,
	}
}

func TestCreateAndGetProduct(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	cat := &domain.Category{Name: "Diagnostics", Icon: "stethoscope"}
	require.NoError(t, repo.CreateCategory(ctx, cat))

	original := decimal.RequireFromString("1500.00")
	p := newTestProduct("ECG Monitor", "1249.99", cat.ID)
	p.OriginalPrice = &original
	p.Images = []domain.ProductImage{
		{ImageURL: "https://cdn.example.com/side.jpg"},
		{ImageURL: "https://cdn.example.com/front.jpg", IsPrimary: true},
	}
	require.NoError(t, repo.CreateProduct(ctx, p))
	require.NotEmpty(t, p.ID)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "ECG Monitor", got.Name)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("1249.99")))
	require.NotNil(t, got.OriginalPrice)
	assert.True(t, got.OriginalPrice.Equal(original))
	assert.Equal(t, "Diagnostics", got.CategoryName)
	require.Len(t, got.Images, 2)
	assert.Equal(t, "https://cdn.example.com/front.jpg", got.PrimaryImage())

	snap := got.Snapshot()
	assert.Equal(t, p.ID, snap.ID)
	assert.Equal(t, "Diagnostics", snap.Category)
	assert.Equal(t, "https://cdn.example.com/front.jpg", snap.ImageURL)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	_, err := repo.GetProduct(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetProduct(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListProducts_Filters(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	imaging := &domain.Category{Name: "Imaging"}
	require.NoError(t, repo.CreateCategory(ctx, imaging))

	ultrasound := newTestProduct("Portable Ultrasound", "9000", imaging.ID)
	require.NoError(t, repo.CreateProduct(ctx, ultrasound))

	wheelchair := newTestProduct("Wheelchair", "300", "")
	wheelchair.Condition = domain.ConditionUsed
	wheelchair.Description = "Foldable, lightweight"
	require.NoError(t, repo.CreateProduct(ctx, wheelchair))

	all, err := repo.ListProducts(ctx, ProductFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, wheelchair.ID, all[0].ID, "newest first")

	used, err := repo.ListProducts(ctx, ProductFilter{Condition: domain.ConditionUsed})
	require.NoError(t, err)
	require.Len(t, used, 1)
	assert.Equal(t, wheelchair.ID, used[0].ID)

	inCategory, err := repo.ListProducts(ctx, ProductFilter{CategoryID: imaging.ID})
	require.NoError(t, err)
	require.Len(t, inCategory, 1)
	assert.Equal(t, ultrasound.ID, inCategory[0].ID)

	searched, err := repo.ListProducts(ctx, ProductFilter{Search: "FOLDABLE"})
	require.NoError(t, err)
	require.Len(t, searched, 1)
	assert.Equal(t, wheelchair.ID, searched[0].ID)

	_, err = repo.ListProducts(ctx, ProductFilter{CategoryID: "not-a-uuid"})
	assert.ErrorIs(t, err, ErrInvalid)

	for _, term := range []string{"%", "_", `\`} {
		wildcard, err := repo.ListProducts(ctx, ProductFilter{Search: term})
		require.NoError(t, err)
		assert.Empty(t, wildcard, "search %q must match literally", term)
	}

	gloves := newTestProduct("Gloves 100% nitrile", "12", "")
	require.NoError(t, repo.CreateProduct(ctx, gloves))
	percent, err := repo.ListProducts(ctx, ProductFilter{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, percent, 1)
	assert.Equal(t, gloves.ID, percent[0].ID)
}

func TestUpdateProduct(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := newTestProduct("Oximeter", "40", "")
	require.NoError(t, repo.CreateProduct(ctx, p))

	p.Price = decimal.RequireFromString("35.50")
	p.Condition = domain.ConditionDiscount
	require.NoError(t, repo.UpdateProduct(ctx, p))

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("35.50")))
	assert.Equal(t, domain.ConditionDiscount, got.Condition)

	missing := newTestProduct("Ghost", "1", "")
	missing.ID = uuid.NewString()
	assert.ErrorIs(t, repo.UpdateProduct(ctx, missing), ErrNotFound)
}

func TestCreateProduct_Invalid(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	noName := newTestProduct("", "1", "")
	assert.ErrorIs(t, repo.CreateProduct(ctx, noName), ErrInvalid)

	badCondition := newTestProduct("Mask", "1", "")
	badCondition.Condition = "refurbished"
	assert.ErrorIs(t, repo.CreateProduct(ctx, badCondition), ErrInvalid)

	unknownCategory := newTestProduct("Mask", "1", uuid.NewString())
	assert.ErrorIs(t, repo.CreateProduct(ctx, unknownCategory), ErrInvalid)
}

func TestDeleteProduct_RemovesImages(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := newTestProduct("Defibrillator", "2000", "")
	p.Images = []domain.ProductImage{{ImageURL: "https://cdn.example.com/d.jpg", IsPrimary: true}}
	require.NoError(t, repo.CreateProduct(ctx, p))

	require.NoError(t, repo.DeleteProduct(ctx, p.ID))

	_, err := repo.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, repo.DeleteProduct(ctx, p.ID), ErrNotFound)

	var images int
	require.NoError(t, repo.db.QueryRow(`SELECT COUNT(*) FROM product_images`).Scan(&images))
	assert.Equal(t, 0, images)
}

func TestAddProductImages(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	p := newTestProduct("Nebulizer", "80", "")
	require.NoError(t, repo.CreateProduct(ctx, p))

	added, err := repo.AddProductImages(ctx, p.ID, []domain.ProductImage{{ImageURL: "https://cdn.example.com/n.jpg"}})
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.NotEmpty(t, added[0].ID)

	got, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/n.jpg", got.PrimaryImage())

	_, err = repo.AddProductImages(ctx, uuid.NewString(), []domain.ProductImage{{ImageURL: "x"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCategories(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	for _, name := range []string{"Surgical", "Beds", "Monitoring"} {
		require.NoError(t, repo.CreateCategory(ctx, &domain.Category{Name: name}))
	}

	list, err := repo.ListCategories(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Beds", list[0].Name)

	beds := list[0]
	beds.Name = "Hospital Beds"
	require.NoError(t, repo.UpdateCategory(ctx, beds))

	got, err := repo.GetCategory(ctx, beds.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hospital Beds", got.Name)

	// deleting a category keeps its products
	p := newTestProduct("Bed", "700", beds.ID)
	require.NoError(t, repo.CreateProduct(ctx, p))
	require.NoError(t, repo.DeleteCategory(ctx, beds.ID))

	orphan, err := repo.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, orphan.CategoryID)

	assert.ErrorIs(t, repo.DeleteCategory(ctx, beds.ID), ErrNotFound)
	assert.ErrorIs(t, repo.CreateCategory(ctx, &domain.Category{Name: " "}), ErrInvalid)
}

func TestContactRequests(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	msg := &domain.ContactRequest{Name: "Abebe", Email: "abebe@example.com", Message: "Do you ship to Adama?"}
	require.NoError(t, repo.CreateContactRequest(ctx, msg))
	assert.False(t, msg.IsHandled)

	list, err := repo.ListContactRequests(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	handled, err := repo.ToggleContactHandled(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, handled)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Messages)
	assert.Equal(t, 0, stats.Unhandled)

	handled, err = repo.ToggleContactHandled(ctx, msg.ID)
	require.NoError(t, err)
	assert.False(t, handled)

	_, err = repo.ToggleContactHandled(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	bad := &domain.ContactRequest{Name: "x", Email: "no-at-sign", Message: "hi"}
	assert.ErrorIs(t, repo.CreateContactRequest(ctx, bad), ErrInvalid)
}
