package idempotency

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ZED-Magdy/storefront-checkout/internal/postgres"
)

// Store encapsulates idempotency operations against Postgres.
//
// Claim runs inside the checkout transaction so the claim commits
// atomically with the order it guards: a retry after a crash can never
// place the same order twice.
type Store struct {
	db        postgres.Querier
	ttlWindow time.Duration // default TTL window when creating entries
	nowFunc   func() time.Time
}

// NewStore returns a configured Store.
// ttlWindow: default TTL window (e.g., 48*time.Hour)
func NewStore(db postgres.Querier, ttlWindow time.Duration) *Store {
	return &Store{
		db:        db,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// Claim creates an IN_PROGRESS record for the key inside tx.
// Returns (claimed=true, nil) when this request owns the key.
// Returns (claimed=false, nil) when a live record already exists (caller
// should Get to inspect and replay). Expired and FAILED records are
// reclaimed as if absent.
func (s *Store) Claim(ctx context.Context, tx pgx.Tx, key, orderID string) (bool, error) {
	now := s.nowFunc()
	tag, err := tx.Exec(ctx, `
		INSERT INTO idempotency_keys (key, status, order_id, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $4, $5)
		ON CONFLICT (key) DO UPDATE
		SET status = EXCLUDED.status,
		    order_id = EXCLUDED.order_id,
		    response_status = 0,
		    response_body = '',
		    note = '',
		    updated_at = EXCLUDED.updated_at,
		    expires_at = EXCLUDED.expires_at
		WHERE idempotency_keys.status = $6
		   OR idempotency_keys.expires_at < $4`,
		key, StatusInProgress, orderID, now, now.Add(s.ttlWindow), StatusFailed)
	if err != nil {
		return false, fmt.Errorf("claim idempotency key: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// Get retrieves an idempotency record by key. If not found, returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) (*Record, error) {
	var (
		rec     Record
		orderID sql.NullString
	)
	err := s.db.QueryRow(ctx, `
		SELECT key, status, order_id::text, response_status, response_body, note, created_at, updated_at, expires_at
		FROM idempotency_keys
		WHERE key = $1`, key).Scan(
		&rec.Key, &rec.Status, &orderID, &rec.ResponseStatus, &rec.ResponseBody,
		&rec.Note, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}

	rec.OrderID = orderID.String
	return &rec, nil
}

// MarkDone sets status to DONE and stores a small response body & status
// for duplicate requests to replay.
func (s *Store) MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error {
	_, err := s.db.Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $2, response_body = $3, response_status = $4, updated_at = $5
		WHERE key = $1`,
		key, StatusDone, responseBody, responseStatus, s.nowFunc())
	if err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	return nil
}

// MarkFailed marks the idempotency record as FAILED and optionally stores a note.
func (s *Store) MarkFailed(ctx context.Context, key, note string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE idempotency_keys
		SET status = $2, note = $3, updated_at = $4
		WHERE key = $1`,
		key, StatusFailed, note, s.nowFunc())
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}
