package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ZED-Magdy/storefront-checkout/internal/postgres"
)

// Finder is the read-side lookup consumed by pricing callers.
type Finder interface {
	FindByIDs(ctx context.Context, ids []int64) ([]Product, error)
}

type Repository struct {
	db postgres.Querier
}

// NewRepository works against either a pool or a transaction; pass the
// enclosing pgx.Tx to get reads consistent with the checkout transaction.
func NewRepository(db postgres.Querier) *Repository {
	return &Repository{db: db}
}

// FindByIDs returns the products for the given ids. Missing ids are simply
// absent from the result, callers decide whether that is an error.
func (r *Repository) FindByIDs(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, title, COALESCE(category_id, 0), price_cents, stock, image_url, created_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// FindByIDsForUpdate locks the product rows for the duration of the
// surrounding transaction. Rows are locked in id order so two checkouts
// touching the same products cannot deadlock.
func (r *Repository) FindByIDsForUpdate(ctx context.Context, ids []int64) ([]Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, title, COALESCE(category_id, 0), price_cents, stock, image_url, created_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("query products for update: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func scanProducts(rows pgx.Rows) ([]Product, error) {
	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Title, &p.CategoryID, &p.PriceCents, &p.Stock, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return products, nil
}
