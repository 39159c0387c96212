package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Product repository errors
var (
	ErrProductNotFound = errors.New("product not found")
)

// ProductRepositoryInterface defines the interface for product data access
type ProductRepositoryInterface interface {
	Create(ctx context.Context, product *Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	Search(ctx context.Context, query string) ([]Product, error)
	Update(ctx context.Context, product *Product) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProductRepo implements ProductRepositoryInterface using PostgreSQL
type ProductRepo struct {
	db *sqlx.DB
}

// NewProductRepo creates a new ProductRepo instance
func NewProductRepo(db *sqlx.DB) *ProductRepo {
	return &ProductRepo{db: db}
}

// Create inserts a new product listing
func (r *ProductRepo) Create(ctx context.Context, product *Product) error {
	query := `
		INSERT INTO products (title, description, price, seller_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	return r.db.QueryRowContext(ctx, query,
		product.Title,
		product.Description,
		product.Price,
		product.SellerID,
	).Scan(&product.ID, &product.CreatedAt)
}

// GetByID retrieves a product by its ID
func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*Product, error) {
	query := `
		SELECT id, title, description, price, seller_id, created_at
		FROM products
		WHERE id = $1
	`

	product := &Product{}
	err := r.db.GetContext(ctx, product, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

// List retrieves all products, newest first
func (r *ProductRepo) List(ctx context.Context) ([]Product, error) {
	query := `
		SELECT id, title, description, price, seller_id, created_at
		FROM products
		ORDER BY created_at DESC
	`

	var products []Product
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, err
	}
	return products, nil
}

// Search retrieves products whose title contains the query string
func (r *ProductRepo) Search(ctx context.Context, query string) ([]Product, error) {
	stmt := `
		SELECT id, title, description, price, seller_id, created_at
		FROM products
		WHERE title ILIKE '%' || $1 || '%'
		ORDER BY created_at DESC
	`

	var products []Product
	if err := r.db.SelectContext(ctx, &products, stmt, query); err != nil {
		return nil, err
	}
	return products, nil
}

// Update edits the mutable fields of a product
func (r *ProductRepo) Update(ctx context.Context, product *Product) error {
	query := `
		UPDATE products
		SET title = $1, description = $2, price = $3
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query,
		product.Title,
		product.Description,
		product.Price,
		product.ID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}

// Delete removes a product permanently
func (r *ProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrProductNotFound
	}
	return nil
}
