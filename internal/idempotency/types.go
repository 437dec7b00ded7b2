package idempotency

import "time"

// Status values for idempotency entries
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

// Record is the shape persisted in the idempotency_keys table.
type Record struct {
	Key            string
	Status         string
	OrderID        string
	ResponseStatus int // e.g., 201
	ResponseBody   string
	Note           string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      time.Time
}
