package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-lambda-go/events"

	"github.com/ZED-Magdy/storefront-checkout/internal/orders"
)

// OrderGetter is the slice of the orders store the worker needs.
type OrderGetter interface {
	GetByID(ctx context.Context, orderID string) (*orders.Order, error)
}

// Notifier delivers the order-placed notification to the store admin.
// The real channel (email/SMS) is owned by a collaborator; the default
// implementation just logs.
type Notifier interface {
	NotifyOrderPlaced(ctx context.Context, order *orders.Order) error
}

// Processor handles order-placed SQS messages.
type Processor struct {
	store    OrderGetter
	notifier Notifier
}

// NewProcessor creates a worker processor with its dependencies injected.
func NewProcessor(store OrderGetter, notifier Notifier) *Processor {
	return &Processor{
		store:    store,
		notifier: notifier,
	}
}

// Handle receives an SQS batch event and processes each message.
func (p *Processor) Handle(ctx context.Context, ev events.SQSEvent) error {
	for _, rec := range ev.Records {
		if err := p.processMessage(ctx, rec); err != nil {
			// Return error: Lambda will retry. If failed too many times, message goes to DLQ.
			log.Printf("worker error: %v", err)
			return err
		}
	}
	return nil
}

func (p *Processor) processMessage(ctx context.Context, rec events.SQSMessage) error {
	var msg WorkerMessage
	if err := json.Unmarshal([]byte(rec.Body), &msg); err != nil {
		return fmt.Errorf("invalid message body: %w", err)
	}

	log.Printf("[worker] received order=%s user=%d number=%d", msg.OrderID, msg.UserID, msg.OrderNumber)

	order, err := p.store.GetByID(ctx, msg.OrderID)
	if err != nil {
		return fmt.Errorf("failed to fetch order: %w", err)
	}
	if order == nil {
		// Order-placed events are published post-commit, so a missing
		// order means a stale or forged message: drop, do not retry.
		log.Printf("[worker] order not found, dropping order=%s", msg.OrderID)
		return nil
	}

	if err := p.notifier.NotifyOrderPlaced(ctx, order); err != nil {
		return fmt.Errorf("failed to notify: %w", err)
	}

	log.Printf("[worker] notified order=%s", order.ID)
	return nil
}

// logNotifier is the default Notifier; delivery channels live elsewhere.
type logNotifier struct{}

func (logNotifier) NotifyOrderPlaced(_ context.Context, order *orders.Order) error {
	log.Printf("[worker] order placed: order=%s user=%d number=%d total_cents=%d items=%d",
		order.ID, order.UserID, order.OrderNumber, order.TotalCents, len(order.Items))
	return nil
}
