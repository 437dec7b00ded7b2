package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ZED-Magdy/storefront-checkout/internal/cache"
	"github.com/ZED-Magdy/storefront-checkout/internal/catalog"
	"github.com/ZED-Magdy/storefront-checkout/internal/idempotency"
	"github.com/ZED-Magdy/storefront-checkout/internal/inventory"
	"github.com/ZED-Magdy/storefront-checkout/internal/postgres"
	"github.com/ZED-Magdy/storefront-checkout/internal/pricing"
	"github.com/ZED-Magdy/storefront-checkout/internal/sequence"
)

// ProductsTag groups every cache entry derived from catalog state.
const ProductsTag = "products"

// Cache keys match the ones primed by the read endpoints so a commit can
// drop exactly the entries it invalidated.
func OrderCacheKey(orderID string, userID int64) string {
	return fmt.Sprintf("order_%s_%d", orderID, userID)
}

func OrdersListCacheKey(userID int64) string {
	return fmt.Sprintf("orders_%d", userID)
}

func NextOrderNumberCacheKey(userID int64) string {
	return fmt.Sprintf("next_order_number_%d", userID)
}

// EventPublisher delivers the order-placed event, at-least-once, after
// commit.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, ev OrderPlacedEvent) error
}

// ResultRecorder receives one observation per finished checkout attempt.
type ResultRecorder interface {
	RecordCheckoutResult(ctx context.Context, result string)
}

// Coordinator runs the checkout state machine: validate, price, reserve,
// sequence and persist inside one transaction, then fire post-commit
// effects. Any failure before commit rolls back every step.
type Coordinator struct {
	pool      *pgxpool.Pool
	calc      *pricing.Calculator
	ledger    *inventory.Ledger
	seq       *sequence.Sequencer
	store     *Store
	idemp     *idempotency.Store
	cache     cache.Cache
	publisher EventPublisher
	metrics   ResultRecorder
	txTimeout time.Duration
	nowFunc   func() time.Time
}

type CoordinatorConfig struct {
	Pool        *pgxpool.Pool
	Pricing     pricing.Config
	Store       *Store
	Idempotency *idempotency.Store
	Cache       cache.Cache
	Publisher   EventPublisher
	Metrics     ResultRecorder
	TxTimeout   time.Duration
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	timeout := cfg.TxTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Coordinator{
		pool:      cfg.Pool,
		calc:      pricing.NewCalculator(cfg.Pricing),
		ledger:    inventory.NewLedger(),
		seq:       sequence.NewSequencer(),
		store:     cfg.Store,
		idemp:     cfg.Idempotency,
		cache:     cfg.Cache,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		txTimeout: timeout,
		nowFunc:   time.Now,
	}
}

// Execute performs one checkout for the user. idempKey may be empty, in
// which case no idempotency record is claimed.
//
// Client-supplied prices are never trusted: the quote is recomputed from
// the locked catalog rows inside the transaction.
func (c *Coordinator) Execute(ctx context.Context, userID int64, lines []pricing.Line, idempKey string) (order *Order, err error) {
	defer func() {
		if c.metrics != nil {
			if err != nil {
				c.metrics.RecordCheckoutResult(ctx, string(Categorize(err)))
			} else {
				c.metrics.RecordCheckoutResult(ctx, "success")
			}
		}
	}()

	if len(lines) == 0 {
		return nil, &pricing.ValidationError{Field: "items", Msg: "cart is empty"}
	}
	if err := pricing.ValidateLines(lines); err != nil {
		return nil, err
	}

	txCtx, cancel := context.WithTimeout(ctx, c.txTimeout)
	defer cancel()

	orderID := uuid.NewString()

	err = postgres.WithTx(txCtx, c.pool, func(tx pgx.Tx) error {
		if idempKey != "" {
			claimed, claimErr := c.idemp.Claim(txCtx, tx, idempKey, orderID)
			if claimErr != nil {
				return claimErr
			}
			if !claimed {
				return ErrDuplicateIdempotencyKey
			}
		}

		ids := make([]int64, len(lines))
		for i, line := range lines {
			ids[i] = line.ProductID
		}

		// The FOR UPDATE read doubles as the consistent catalog snapshot
		// the quote is computed from.
		products, lookupErr := catalog.NewRepository(tx).FindByIDsForUpdate(txCtx, ids)
		if lookupErr != nil {
			return lookupErr
		}

		quote, priceErr := c.calc.Compute(lines, products)
		if priceErr != nil {
			return priceErr
		}

		if reserveErr := c.ledger.Reserve(txCtx, tx, lines); reserveErr != nil {
			return reserveErr
		}

		number, seqErr := c.seq.Next(txCtx, tx, userID)
		if seqErr != nil {
			return seqErr
		}

		order = c.buildOrder(orderID, userID, number, quote, lines, products)
		return c.store.Insert(txCtx, tx, order)
	})
	if err != nil {
		order = nil
		return nil, fmt.Errorf("checkout: %w", err)
	}

	c.afterCommit(ctx, order, idempKey)

	return order, nil
}

func (c *Coordinator) buildOrder(orderID string, userID, number int64, quote pricing.Quote, lines []pricing.Line, products []catalog.Product) *Order {
	byID := make(map[int64]catalog.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	items := make([]Line, 0, len(lines))
	for _, line := range lines {
		p := byID[line.ProductID]
		items = append(items, Line{
			OrderID:        orderID,
			ProductID:      line.ProductID,
			Quantity:       line.Quantity,
			Title:          p.Title,
			ImageURL:       p.ImageURL,
			UnitPriceCents: p.PriceCents,
			TotalCents:     p.PriceCents * line.Quantity,
		})
	}

	return &Order{
		ID:            orderID,
		UserID:        userID,
		OrderNumber:   number,
		SubtotalCents: quote.SubtotalCents,
		ShippingCents: quote.ShippingCents,
		TaxCents:      quote.TaxCents,
		TotalCents:    quote.TotalCents,
		Status:        StatusPending,
		CreatedAt:     c.nowFunc().UTC(),
		Items:         items,
	}
}

// afterCommit fires the post-commit effects. The order is already durable;
// failures here are logged and never surfaced as a checkout failure.
func (c *Coordinator) afterCommit(ctx context.Context, order *Order, idempKey string) {
	if err := c.cache.InvalidateTag(ctx, ProductsTag); err != nil {
		log.Printf("[checkout] products tag invalidation failed order=%s: %v", order.ID, err)
	}
	if err := c.cache.Delete(ctx,
		"min_max_products_price",
		OrdersListCacheKey(order.UserID),
		NextOrderNumberCacheKey(order.UserID),
	); err != nil {
		log.Printf("[checkout] cache invalidation failed order=%s: %v", order.ID, err)
	}

	body, err := json.Marshal(order)
	if err != nil {
		log.Printf("[checkout] marshal order failed order=%s: %v", order.ID, err)
		return
	}

	if err := c.cache.Set(ctx, OrderCacheKey(order.ID, order.UserID), string(body), time.Hour); err != nil {
		log.Printf("[checkout] order cache prime failed order=%s: %v", order.ID, err)
	}

	if err := c.publisher.PublishOrderPlaced(ctx, OrderPlacedEvent{
		OrderID:     order.ID,
		UserID:      order.UserID,
		OrderNumber: order.OrderNumber,
	}); err != nil {
		log.Printf("[checkout] order placed publish failed order=%s: %v", order.ID, err)
	}

	if idempKey != "" {
		if err := c.idemp.MarkDone(ctx, idempKey, string(body), 201); err != nil {
			log.Printf("[checkout] idempotency mark done failed order=%s: %v", order.ID, err)
		}
	}
}
