package catalog

import "time"

// Product is the catalog's view of a sellable item. Prices are integer
// minor currency units (cents).
type Product struct {
	ID         int64
	Title      string
	CategoryID int64
	PriceCents int64
	Stock      int64
	ImageURL   string
	CreatedAt  time.Time
}
