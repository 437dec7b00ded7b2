package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ZED-Magdy/storefront-checkout/internal/postgres"
)

// Store encapsulates reads and writes on the orders tables.
type Store struct {
	db      postgres.Querier
	nowFunc func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(db postgres.Querier) *Store {
	return &Store{
		db:      db,
		nowFunc: time.Now,
	}
}

// Insert writes the order and all its lines inside tx. The caller owns the
// transaction; nothing here is visible until it commits.
func (s *Store) Insert(ctx context.Context, tx pgx.Tx, order *Order) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = s.nowFunc()
	}

	_, err := tx.Exec(ctx, `
		INSERT INTO orders (id, user_id, order_number, subtotal_cents, shipping_cents, tax_cents, total_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		order.ID, order.UserID, order.OrderNumber,
		order.SubtotalCents, order.ShippingCents, order.TaxCents, order.TotalCents,
		order.Status, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, line := range order.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, quantity, title, image_url, unit_price_cents, total_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, line.ProductID, line.Quantity, line.Title, line.ImageURL,
			line.UnitPriceCents, line.TotalCents)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for range order.Items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	return nil
}

// Get fetches one of the user's orders with its lines. Returns (nil, nil)
// if the order does not exist or belongs to someone else.
func (s *Store) Get(ctx context.Context, orderID string, userID int64) (*Order, error) {
	var o Order
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, order_number, subtotal_cents, shipping_cents, tax_cents, total_cents, status, created_at
		FROM orders
		WHERE id = $1 AND user_id = $2`, orderID, userID).Scan(
		&o.ID, &o.UserID, &o.OrderNumber,
		&o.SubtotalCents, &o.ShippingCents, &o.TaxCents, &o.TotalCents,
		&o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := s.linesFor(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

// GetByID fetches an order regardless of owner; used by the worker.
func (s *Store) GetByID(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := s.db.QueryRow(ctx, `
		SELECT id, user_id, order_number, subtotal_cents, shipping_cents, tax_cents, total_cents, status, created_at
		FROM orders
		WHERE id = $1`, orderID).Scan(
		&o.ID, &o.UserID, &o.OrderNumber,
		&o.SubtotalCents, &o.ShippingCents, &o.TaxCents, &o.TotalCents,
		&o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := s.linesFor(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.Items = items

	return &o, nil
}

// ListByUser returns the user's orders, newest first, lines included.
func (s *Store) ListByUser(ctx context.Context, userID int64) ([]Order, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, order_number, subtotal_cents, shipping_cents, tax_cents, total_cents, status, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, order_number DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var list []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.OrderNumber,
			&o.SubtotalCents, &o.ShippingCents, &o.TaxCents, &o.TotalCents,
			&o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order rows: %w", err)
	}

	for i := range list {
		items, err := s.linesFor(ctx, list[i].ID)
		if err != nil {
			return nil, err
		}
		list[i].Items = items
	}

	return list, nil
}

func (s *Store) linesFor(ctx context.Context, orderID string) ([]Line, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, title, image_url, unit_price_cents, total_cents
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order lines: %w", err)
	}
	defer rows.Close()

	var items []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity,
			&l.Title, &l.ImageURL, &l.UnitPriceCents, &l.TotalCents); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		items = append(items, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("order line rows: %w", err)
	}

	return items, nil
}
