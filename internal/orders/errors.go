package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ZED-Magdy/storefront-checkout/internal/inventory"
	"github.com/ZED-Magdy/storefront-checkout/internal/pricing"
)

var (
	// ErrConflict marks a transient clash between concurrent checkouts;
	// the caller may retry.
	ErrConflict = errors.New("checkout conflict, retry")

	// ErrDuplicateIdempotencyKey is returned when a live idempotency
	// record already owns the submitted key.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already claimed")
)

// Category buckets every checkout failure for the API boundary, which
// collapses the detail into a generic envelope while logs keep the cause.
type Category string

const (
	CategoryValidation        Category = "validation"
	CategoryInsufficientStock Category = "insufficient_stock"
	CategoryConflict          Category = "conflict"
	CategoryInternal          Category = "internal"
)

func Categorize(err error) Category {
	var ve *pricing.ValidationError
	if errors.As(err, &ve) {
		return CategoryValidation
	}

	var ise *inventory.InsufficientStockError
	if errors.As(err, &ise) {
		return CategoryInsufficientStock
	}

	if errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, context.DeadlineExceeded) ||
		isUniqueViolation(err) {
		return CategoryConflict
	}

	return CategoryInternal
}

// 23505 = unique_violation; the UNIQUE(user_id, order_number) backstop
// firing means two checkouts raced, which is retryable, not a bug report.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
