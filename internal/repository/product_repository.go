package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"shopmart/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// bulkBatchSize caps how many rows go into one bulk INSERT/UPDATE statement
const bulkBatchSize = 100

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error)
	Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error)
	ArticleMap(ctx context.Context) (map[string]uuid.UUID, error)
	BulkCreate(ctx context.Context, products []*domain.Product) error
	BulkUpdateByArticle(ctx context.Context, products []*domain.Product) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (id, category_id, title, article, price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.CategoryID,
		product.Title,
		product.Article,
		product.Price,
		product.Quantity,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `
		SELECT id, category_id, title, article, price, quantity, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	product := &domain.Product{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.CategoryID,
		&product.Title,
		&product.Article,
		&product.Price,
		&product.Quantity,
		&product.CreatedAt,
		&product.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// List retrieves products with optional category filtering, pagination, and sorting
func (r *productRepository) List(ctx context.Context, categoryID *uuid.UUID, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"title":      true,
		"article":    true,
		"price":      true,
		"quantity":   true,
		"created_at": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at" // Default sort field
	}

	// Validate sort order
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc // Default sort order
	}

	// Build the WHERE clause
	whereClause := ""
	args := []interface{}{}
	argIndex := 1

	if categoryID != nil {
		whereClause = fmt.Sprintf("WHERE category_id = $%d", argIndex)
		args = append(args, *categoryID)
		argIndex++
	}

	// Count total products
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	// Calculate offset
	offset := (page - 1) * pageSize

	// Build the main query with sorting and pagination
	query := fmt.Sprintf(`
		SELECT id, category_id, title, article, price, quantity, created_at, updated_at
		FROM products
		%s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, sortBy, sortOrder, argIndex, argIndex+1)

	args = append(args, pageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// Search searches for products by title or article with pagination
func (r *productRepository) Search(ctx context.Context, query string, page, pageSize int) ([]*domain.Product, int, error) {
	// If query is empty, return all products
	if strings.TrimSpace(query) == "" {
		return r.List(ctx, nil, page, pageSize, "created_at", SortOrderDesc)
	}

	// Use ILIKE for case-insensitive search
	searchPattern := "%" + query + "%"

	// Count total matching products
	countQuery := `
		SELECT COUNT(*)
		FROM products
		WHERE title ILIKE $1 OR article ILIKE $1
	`
	var total int
	err := r.db.QueryRowContext(ctx, countQuery, searchPattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count search results: %w", err)
	}

	// Calculate offset
	offset := (page - 1) * pageSize

	// Search products
	searchQuery := `
		SELECT id, category_id, title, article, price, quantity, created_at, updated_at
		FROM products
		WHERE title ILIKE $1 OR article ILIKE $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryContext(ctx, searchQuery, searchPattern, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// ArticleMap loads the article -> product ID index in one query. It is
// built once per import run so the new-vs-existing decision is a plain
// map lookup instead of a per-row table scan.
func (r *productRepository) ArticleMap(ctx context.Context) (map[string]uuid.UUID, error) {
	query := `SELECT article, id FROM products`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load article map: %w", err)
	}
	defer rows.Close()

	articles := make(map[string]uuid.UUID)
	for rows.Next() {
		var (
			article string
			id      uuid.UUID
		)
		if err := rows.Scan(&article, &id); err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles[article] = id
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating articles: %w", err)
	}

	return articles, nil
}

// BulkCreate inserts products in multi-row statements of at most
// bulkBatchSize rows each.
func (r *productRepository) BulkCreate(ctx context.Context, products []*domain.Product) error {
	for start := 0; start < len(products); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(products) {
			end = len(products)
		}
		if err := r.bulkCreateBatch(ctx, products[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *productRepository) bulkCreateBatch(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []interface{}
	)
	for i, p := range products {
		base := i * 8
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8))
		args = append(args, p.ID, p.CategoryID, p.Title, p.Article, p.Price, p.Quantity, p.CreatedAt, p.UpdatedAt)
	}

	query := `
		INSERT INTO products (id, category_id, title, article, price, quantity, created_at, updated_at)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk create products: %w", err)
	}

	return nil
}

// BulkUpdateByArticle overwrites title, category, price and quantity of
// existing products, matching rows by article. Updates are applied in
// batches of at most bulkBatchSize rows, each batch as a single
// VALUES-join UPDATE.
func (r *productRepository) BulkUpdateByArticle(ctx context.Context, products []*domain.Product) error {
	for start := 0; start < len(products); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(products) {
			end = len(products)
		}
		if err := r.bulkUpdateBatch(ctx, products[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (r *productRepository) bulkUpdateBatch(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []interface{}
	)
	for i, p := range products {
		base := i * 5
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d::uuid, $%d, $%d::numeric, $%d::int)",
			base+1, base+2, base+3, base+4, base+5))
		args = append(args, p.Article, p.CategoryID, p.Title, p.Price, p.Quantity)
	}

	query := `
		UPDATE products AS p
		SET category_id = v.category_id,
		    title = v.title,
		    price = v.price,
		    quantity = v.quantity,
		    updated_at = NOW()
		FROM (VALUES ` + strings.Join(placeholders, ", ") + `) AS v(article, category_id, title, price, quantity)
		WHERE p.article = v.article
	`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk update products: %w", err)
	}

	return nil
}

func scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	products := []*domain.Product{}
	for rows.Next() {
		product := &domain.Product{}
		err := rows.Scan(
			&product.ID,
			&product.CategoryID,
			&product.Title,
			&product.Article,
			&product.Price,
			&product.Quantity,
			&product.CreatedAt,
			&product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}
