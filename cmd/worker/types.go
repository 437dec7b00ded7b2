package main

// WorkerMessage is the order-placed payload sent from API -> SQS -> Worker.
type WorkerMessage struct {
	OrderID     string `json:"order_id"`
	UserID      int64  `json:"user_id"`
	OrderNumber int64  `json:"order_number"`
}
