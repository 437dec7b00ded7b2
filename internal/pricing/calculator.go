package pricing

import (
	"fmt"

	"github.com/ZED-Magdy/storefront-checkout/internal/catalog"
)

// Line is one product/quantity pair in a cart.
type Line struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

// Quote is a computed price breakdown. All fields are integer cents.
type Quote struct {
	SubtotalCents int64 `json:"subtotal"`
	ShippingCents int64 `json:"shipping"`
	TaxCents      int64 `json:"tax"`
	TotalCents    int64 `json:"total"`
}

// Config holds the order-level pricing knobs.
type Config struct {
	ShippingCents  int64
	TaxRatePercent int64
}

// ValidationError reports a client-correctable problem with a cart line.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Msg)
}

// Calculator turns cart lines plus catalog state into a Quote. It has no
// side effects and is safe for unlimited concurrent use.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// ValidateLines checks quantities and duplicate product ids without
// touching the catalog. It is also used by callers that validate before
// opening a transaction.
func ValidateLines(lines []Line) error {
	seen := make(map[int64]struct{}, len(lines))
	for i, line := range lines {
		if line.ProductID <= 0 {
			return &ValidationError{
				Field: fmt.Sprintf("items.%d.product_id", i),
				Msg:   "product id must be positive",
			}
		}
		if line.Quantity <= 0 {
			return &ValidationError{
				Field: fmt.Sprintf("items.%d.quantity", i),
				Msg:   "quantity must be positive",
			}
		}
		if _, dup := seen[line.ProductID]; dup {
			return &ValidationError{
				Field: fmt.Sprintf("items.%d.product_id", i),
				Msg:   fmt.Sprintf("duplicate product id %d", line.ProductID),
			}
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

// Compute prices the cart against the given catalog snapshot.
//
// An empty cart yields an all-zero quote, not an error. Every line's
// product id must be present in products.
//
// Tax is truncated, never rounded up: tax = subtotal * rate / 100 using
// integer division, so the customer is never overcharged a fractional cent.
func (c *Calculator) Compute(lines []Line, products []catalog.Product) (Quote, error) {
	if err := ValidateLines(lines); err != nil {
		return Quote{}, err
	}

	if len(lines) == 0 {
		return Quote{}, nil
	}

	byID := make(map[int64]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	var subtotal int64
	for i, line := range lines {
		p, ok := byID[line.ProductID]
		if !ok {
			return Quote{}, &ValidationError{
				Field: fmt.Sprintf("items.%d.product_id", i),
				Msg:   fmt.Sprintf("unknown product id %d", line.ProductID),
			}
		}
		subtotal += p.PriceCents * line.Quantity
	}

	shipping := c.cfg.ShippingCents
	tax := subtotal * c.cfg.TaxRatePercent / 100

	return Quote{
		SubtotalCents: subtotal,
		ShippingCents: shipping,
		TaxCents:      tax,
		TotalCents:    subtotal + shipping + tax,
	}, nil
}
