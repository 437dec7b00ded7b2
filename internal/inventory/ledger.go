package inventory

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/ZED-Magdy/storefront-checkout/internal/pricing"
)

// InsufficientStockError identifies the first product whose available
// stock cannot cover the requested quantity.
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Ledger validates and decrements product stock. Reserve must be called
// inside the enclosing checkout transaction; the row locks it takes are
// released on commit or rollback.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Reserve locks the stock rows for every line, verifies each requested
// quantity against current stock and decrements all of them. If any line
// falls short the whole reservation fails and no stock is touched.
//
// Rows are locked in ascending product id order so concurrent checkouts
// over overlapping products serialize instead of deadlocking.
func (l *Ledger) Reserve(ctx context.Context, tx pgx.Tx, lines []pricing.Line) error {
	if len(lines) == 0 {
		return nil
	}

	requested := make(map[int64]int64, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		requested[line.ProductID] = line.Quantity
		ids = append(ids, line.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	rows, err := tx.Query(ctx, `
		SELECT id, stock
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return fmt.Errorf("lock stock rows: %w", err)
	}

	available := make(map[int64]int64, len(ids))
	for rows.Next() {
		var id, stock int64
		if err := rows.Scan(&id, &stock); err != nil {
			rows.Close()
			return fmt.Errorf("scan stock row: %w", err)
		}
		available[id] = stock
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("stock rows: %w", err)
	}

	// Check every line before decrementing anything.
	for _, id := range ids {
		stock, ok := available[id]
		if !ok {
			return &pricing.ValidationError{
				Field: "items",
				Msg:   fmt.Sprintf("unknown product id %d", id),
			}
		}
		if requested[id] > stock {
			return &InsufficientStockError{
				ProductID: id,
				Requested: requested[id],
				Available: stock,
			}
		}
	}

	batch := &pgx.Batch{}
	for _, id := range ids {
		batch.Queue(`UPDATE products SET stock = stock - $1 WHERE id = $2`, requested[id], id)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()
	for range ids {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("decrement stock: %w", err)
		}
	}

	return nil
}
