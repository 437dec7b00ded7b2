package sequence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ZED-Magdy/storefront-checkout/internal/postgres"
)

// Sequencer allocates per-user order numbers. Numbers are gap-free and
// duplicate-free among committed orders: a number handed out inside a
// transaction that later aborts was never observable.
type Sequencer struct{}

func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Next returns max(order_number)+1 for the user, starting at 1. It takes a
// per-user advisory lock bound to the transaction, so two concurrent
// checkouts for the same user serialize here; checkouts for different
// users do not contend. The UNIQUE(user_id, order_number) constraint is
// the backstop if the lock is ever bypassed.
func (s *Sequencer) Next(ctx context.Context, tx pgx.Tx, userID int64) (int64, error) {
	_, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended('order_number:' || $1::text, 0))`, userID)
	if err != nil {
		return 0, fmt.Errorf("acquire order number lock: %w", err)
	}

	var next int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders WHERE user_id = $1`, userID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("compute next order number: %w", err)
	}

	return next, nil
}

// Preview computes the number the user's next order would get without
// locking or allocating anything. Concurrent checkouts may invalidate the
// value by the time the caller sees it.
func (s *Sequencer) Preview(ctx context.Context, db postgres.Querier, userID int64) (int64, error) {
	var next int64
	err := db.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_number), 0) + 1 FROM orders WHERE user_id = $1`, userID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("compute next order number: %w", err)
	}
	return next, nil
}
