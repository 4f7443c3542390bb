package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/med_store/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

//go:embed migrations/*.sql
var migrations embed.FS

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid catalog record")
)

type ProductFilter struct {
	Condition  domain.Condition
	CategoryID string
	Search     string
}

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("could not open migrations: %w", err)
	}

	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

const productColumns = `
	p.id, p.name, p.description, p.price, p.original_price,
	COALESCE(p.category_id::text, ''), COALESCE(c.name, ''), p.condition, p.created_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	p := &domain.Product{}
	var original decimal.NullDecimal
	var condition string
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&original,
		&p.CategoryID,
		&p.CategoryName,
		&condition,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if original.Valid {
		p.OriginalPrice = &original.Decimal
	}
	p.Condition = domain.Condition(condition)
	return p, nil
}

// ListProducts returns products newest first. Search matches name or
// description case-insensitively.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]*domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if filter.Condition != "" {
		args = append(args, string(filter.Condition))
		where = append(where, fmt.Sprintf("p.condition = $%d", len(args)))
	}
	if filter.CategoryID != "" {
		if _, err := uuid.Parse(filter.CategoryID); err != nil {
			return nil, fmt.Errorf("%w: malformed category id", ErrInvalid)
		}
		args = append(args, filter.CategoryID)
		where = append(where, fmt.Sprintf("p.category_id = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+escapeLike(s)+"%")
		where = append(where, fmt.Sprintf(`(p.name ILIKE $%d ESCAPE '\' OR p.description ILIKE $%d ESCAPE '\')`, len(args), len(args)))
	}

	query := `SELECT` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at DESC, p.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	if err := r.attachImages(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside a LIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (r *Repository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := `SELECT` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if err := r.attachImages(ctx, []*domain.Product{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repository) attachImages(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Product, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	query := `
		SELECT id, product_id, image_url, is_primary, created_at
		FROM product_images
		WHERE product_id = ANY($1::uuid[])
		ORDER BY is_primary DESC, created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img domain.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.ImageURL, &img.IsPrimary, &img.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan image: %w", err)
		}
		if p, ok := byID[img.ProductID]; ok {
			p.Images = append(p.Images, img)
		}
	}
	return rows.Err()
}

func validateProduct(p *domain.Product) error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case p.Price.IsNegative():
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	case p.OriginalPrice != nil && p.OriginalPrice.IsNegative():
		return fmt.Errorf("%w: original price must not be negative", ErrInvalid)
	case !p.Condition.Valid():
		return fmt.Errorf("%w: unknown condition %q", ErrInvalid, p.Condition)
	}
	if p.CategoryID != "" {
		if _, err := uuid.Parse(p.CategoryID); err != nil {
			return fmt.Errorf("%w: malformed category id", ErrInvalid)
		}
	}
	return nil
}

// foreignKeyViolation turns a reference to a missing category into ErrInvalid.
func foreignKeyViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return fmt.Errorf("%w: unknown category", ErrInvalid)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

// CreateProduct assigns an id and creation time and stores p with its images.
func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	p.ID = uuid.NewString()
	p.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO products (id, name, description, price, original_price, category_id, condition, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = tx.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price, nullableDecimal(p.OriginalPrice),
		nullable(p.CategoryID), string(p.Condition), p.CreatedAt)
	if err != nil {
		if fkErr := foreignKeyViolation(err); fkErr != nil {
			return fkErr
		}
		return fmt.Errorf("failed to insert product: %w", err)
	}

	if err := insertImages(ctx, tx, p.ID, p.Images); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit product: %w", err)
	}

	for i := range p.Images {
		p.Images[i].ProductID = p.ID
	}
	return nil
}

// UpdateProduct overwrites the product fields; images are managed separately.
func (r *Repository) UpdateProduct(ctx context.Context, p *domain.Product) error {
	if err := validateProduct(p); err != nil {
		return err
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		return ErrNotFound
	}

	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, original_price = $5, category_id = $6, condition = $7
		WHERE id = $1
	`
	res, err := r.db.ExecContext(ctx, query,
		p.ID, p.Name, p.Description, p.Price, nullableDecimal(p.OriginalPrice),
		nullable(p.CategoryID), string(p.Condition))
	if err != nil {
		if fkErr := foreignKeyViolation(err); fkErr != nil {
			return fkErr
		}
		return fmt.Errorf("failed to update product: %w", err)
	}
	return expectOneRow(res)
}

// DeleteProduct removes the product images first, then the product.
func (r *Repository) DeleteProduct(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM product_images WHERE product_id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete images: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if err := expectOneRow(res); err != nil {
		return err
	}
	return tx.Commit()
}

// AddProductImages appends images to an existing product.
func (r *Repository) AddProductImages(ctx context.Context, productID string, images []domain.ProductImage) ([]domain.ProductImage, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return nil, ErrNotFound
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	if err := insertImages(ctx, tx, productID, images); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit images: %w", err)
	}
	return images, nil
}

func insertImages(ctx context.Context, tx *sql.Tx, productID string, images []domain.ProductImage) error {
	now := time.Now().UTC()
	for i := range images {
		if strings.TrimSpace(images[i].ImageURL) == "" {
			return fmt.Errorf("%w: image url is required", ErrInvalid)
		}
		images[i].ID = uuid.NewString()
		images[i].ProductID = productID
		images[i].CreatedAt = now

		_, err := tx.ExecContext(ctx,
			`INSERT INTO product_images (id, product_id, image_url, is_primary, created_at) VALUES ($1, $2, $3, $4, $5)`,
			images[i].ID, productID, images[i].ImageURL, images[i].IsPrimary, now)
		if err != nil {
			return fmt.Errorf("failed to insert image: %w", err)
		}
	}
	return nil
}

func (r *Repository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, icon, created_at FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []*domain.Category
	for rows.Next() {
		c := &domain.Category{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

func (r *Repository) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	c := &domain.Category{}
	err := r.db.QueryRowContext(ctx, `SELECT id, name, icon, created_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Icon, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c *domain.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalid)
	}
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (id, name, icon, created_at) VALUES ($1, $2, $3, $4)`,
		c.ID, c.Name, c.Icon, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert category: %w", err)
	}
	return nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c *domain.Category) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("%w: category name is required", ErrInvalid)
	}
	if _, err := uuid.Parse(c.ID); err != nil {
		return ErrNotFound
	}

	res, err := r.db.ExecContext(ctx, `UPDATE categories SET name = $2, icon = $3 WHERE id = $1`, c.ID, c.Name, c.Icon)
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}
	return expectOneRow(res)
}

// DeleteCategory leaves the category's products uncategorised.
func (r *Repository) DeleteCategory(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return expectOneRow(res)
}

func (r *Repository) CreateContactRequest(ctx context.Context, c *domain.ContactRequest) error {
	switch {
	case strings.TrimSpace(c.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case !strings.Contains(c.Email, "@"):
		return fmt.Errorf("%w: a valid email is required", ErrInvalid)
	case strings.TrimSpace(c.Message) == "":
		return fmt.Errorf("%w: message is required", ErrInvalid)
	}
	c.ID = uuid.NewString()
	c.IsHandled = false
	c.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO contact_requests (id, name, email, phone, message, is_handled, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.Name, c.Email, c.Phone, c.Message, c.IsHandled, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact request: %w", err)
	}
	return nil
}

func (r *Repository) ListContactRequests(ctx context.Context) ([]*domain.ContactRequest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, phone, message, is_handled, created_at
		FROM contact_requests
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contact requests: %w", err)
	}
	defer rows.Close()

	var out []*domain.ContactRequest
	for rows.Next() {
		c := &domain.ContactRequest{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Message, &c.IsHandled, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact request: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return out, nil
}

// ToggleContactHandled flips is_handled and returns the new value.
func (r *Repository) ToggleContactHandled(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, ErrNotFound
	}

	var handled bool
	err := r.db.QueryRowContext(ctx,
		`UPDATE contact_requests SET is_handled = NOT is_handled WHERE id = $1 RETURNING is_handled`, id).
		Scan(&handled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to toggle contact request: %w", err)
	}
	return handled, nil
}

func (r *Repository) Stats(ctx context.Context) (domain.Stats, error) {
	var s domain.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM products),
			(SELECT COUNT(*) FROM categories),
			(SELECT COUNT(*) FROM contact_requests),
			(SELECT COUNT(*) FROM contact_requests WHERE NOT is_handled)`).
		Scan(&s.Products, &s.Categories, &s.Messages, &s.Unhandled)
	if err != nil {
		return s, fmt.Errorf("failed to query stats: %w", err)
	}
	return s, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
