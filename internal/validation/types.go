package validation

// Item represents a single cart line in a request.
type Item struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,min=1"` // must be >= 1
}

// CheckoutRequest is the payload for POST /checkout. An empty cart is
// rejected here, unlike quoting.
type CheckoutRequest struct {
	Items []Item `json:"items" validate:"required,min=1,dive"`
}

// CalculateCartRequest is the payload for POST /calculate-cart. An empty
// items list is allowed and quotes to zero.
type CalculateCartRequest struct {
	Items []Item `json:"items" validate:"omitempty,dive"`
}
