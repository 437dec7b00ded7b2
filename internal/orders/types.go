package orders

import "time"

// Order statuses. New orders are always StatusPending; transitions beyond
// that belong to fulfillment, not to checkout.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Order is a committed checkout. Monetary fields are integer cents.
// Orders are immutable once written.
type Order struct {
	ID            string    `json:"id"`
	UserID        int64     `json:"user_id"`
	OrderNumber   int64     `json:"order_number"`
	SubtotalCents int64     `json:"subtotal"`
	ShippingCents int64     `json:"shipping"`
	TaxCents      int64     `json:"tax"`
	TotalCents    int64     `json:"total"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	Items         []Line    `json:"items"`
}

// Line is one purchased product with its denormalized snapshot. Later
// catalog edits never touch a persisted line.
type Line struct {
	ID             int64  `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      int64  `json:"product_id"`
	Quantity       int64  `json:"quantity"`
	Title          string `json:"title"`
	ImageURL       string `json:"image_url"`
	UnitPriceCents int64  `json:"price"`
	TotalCents     int64  `json:"total"`
}

// OrderPlacedEvent is published after a checkout commits.
type OrderPlacedEvent struct {
	OrderID     string `json:"order_id"`
	UserID      int64  `json:"user_id"`
	OrderNumber int64  `json:"order_number"`
}
