package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ZED-Magdy/storefront-checkout/internal/cache"
	"github.com/ZED-Magdy/storefront-checkout/internal/catalog"
	"github.com/ZED-Magdy/storefront-checkout/internal/idempotency"
	"github.com/ZED-Magdy/storefront-checkout/internal/inventory"
	"github.com/ZED-Magdy/storefront-checkout/internal/metrics"
	"github.com/ZED-Magdy/storefront-checkout/internal/orders"
	"github.com/ZED-Magdy/storefront-checkout/internal/pricing"
	"github.com/ZED-Magdy/storefront-checkout/internal/quote"
	"github.com/ZED-Magdy/storefront-checkout/internal/sequence"
	"github.com/ZED-Magdy/storefront-checkout/internal/validation"
)

// HandlerConfig groups dependencies for the orders handler.
type HandlerConfig struct {
	Pool           *pgxpool.Pool
	Cache          cache.Cache
	Publisher      orders.EventPublisher
	CloudWatch     orders.ResultRecorder // optional
	Server         *metrics.ServerMetrics
	Pricing        pricing.Config
	IdempotencyTTL time.Duration
	TxTimeout      time.Duration
	QuoteTTL       time.Duration
}

const userIDHeader = "X-User-ID"

// RegisterOrdersRoutes registers routes for the checkout API.
//
// Authentication itself is an external collaborator: the gateway verifies
// the caller and injects the identity as the X-User-ID header.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	store := orders.NewStore(cfg.Pool)
	idempStore := idempotency.NewStore(cfg.Pool, cfg.IdempotencyTTL)
	seq := sequence.NewSequencer()

	coordinator := orders.NewCoordinator(orders.CoordinatorConfig{
		Pool:        cfg.Pool,
		Pricing:     cfg.Pricing,
		Store:       store,
		Idempotency: idempStore,
		Cache:       cfg.Cache,
		Publisher:   cfg.Publisher,
		Metrics:     &checkoutRecorder{server: cfg.Server, cloudwatch: cfg.CloudWatch},
		TxTimeout:   cfg.TxTimeout,
	})

	quotes := quote.NewService(catalog.NewRepository(cfg.Pool), cfg.Pricing, cfg.Cache, cfg.QuoteTTL)

	h := &ordersHandler{
		cfg:         cfg,
		validate:    v,
		store:       store,
		idempStore:  idempStore,
		seq:         seq,
		coordinator: coordinator,
		quotes:      quotes,
	}

	r.POST("/calculate-cart", h.calculateCart)

	authed := r.Group("/", authRequired())
	authed.POST("/checkout", h.checkout)
	authed.GET("/next-order-number", h.nextOrderNumber)
	authed.GET("/orders", h.listOrders)
	authed.GET("/orders/:id", h.orderDetails)
}

type ordersHandler struct {
	cfg         HandlerConfig
	validate    *validatorv10.Validate
	store       *orders.Store
	idempStore  *idempotency.Store
	seq         *sequence.Sequencer
	coordinator *orders.Coordinator
	quotes      *quote.Service
}

// authRequired rejects requests without a gateway-injected identity.
func authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.GetHeader(userIDHeader), 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		c.Set("user_id", id)
		c.Next()
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64("user_id")
}

func (h *ordersHandler) checkout(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		// BindAndValidate already wrote the response
		return
	}

	idempKey := c.GetHeader("Idempotency-Key")

	order, err := h.coordinator.Execute(ctx, userID, toLines(req.Items), idempKey)
	if err != nil {
		if errors.Is(err, orders.ErrDuplicateIdempotencyKey) {
			h.replayIdempotent(c, idempKey)
			return
		}
		h.writeCheckoutFailure(c, userID, err)
		return
	}

	c.Header("Location", fmt.Sprintf("/orders/%s", order.ID))
	c.JSON(http.StatusCreated, order)
}

// replayIdempotent serves a duplicate checkout from its idempotency record.
func (h *ordersHandler) replayIdempotent(c *gin.Context, idempKey string) {
	ctx := c.Request.Context()

	rec, err := h.idempStore.Get(ctx, idempKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	}
	if rec == nil {
		// claim lost but no record found, should not happen
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_record_missing"})
		return
	}

	switch rec.Status {
	case idempotency.StatusDone:
		if rec.ResponseBody != "" {
			c.Data(rec.ResponseStatus, "application/json", []byte(rec.ResponseBody))
			return
		}
		c.JSON(http.StatusOK, gin.H{"order_id": rec.OrderID})
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress", "order_id": rec.OrderID})
	case idempotency.StatusFailed:
		c.JSON(http.StatusConflict, gin.H{"error": "previous_attempt_failed", "order_id": rec.OrderID})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

// writeCheckoutFailure collapses the internal taxonomy into the public
// envelope; the specific cause stays in the logs.
func (h *ordersHandler) writeCheckoutFailure(c *gin.Context, userID int64, err error) {
	category := orders.Categorize(err)
	log.Printf("[checkout] user=%d category=%s error: %v", userID, category, err)

	body := gin.H{"error": "checkout_failed", "category": category}

	switch category {
	case orders.CategoryValidation:
		var ve *pricing.ValidationError
		if errors.As(err, &ve) {
			body["fields"] = map[string]string{ve.Field: ve.Msg}
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case orders.CategoryInsufficientStock:
		var ise *inventory.InsufficientStockError
		if errors.As(err, &ise) {
			body["product_id"] = ise.ProductID
		}
		c.JSON(http.StatusUnprocessableEntity, body)
	case orders.CategoryConflict:
		body["retryable"] = true
		c.JSON(http.StatusConflict, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}

func (h *ordersHandler) calculateCart(c *gin.Context) {
	ctx := c.Request.Context()

	var req validation.CalculateCartRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	q, err := h.quotes.Quote(ctx, toLines(req.Items))
	if err != nil {
		var ve *pricing.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":  "validation_failed",
				"fields": map[string]string{ve.Field: ve.Msg},
			})
			return
		}
		log.Printf("[quote] failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "quote_failed"})
		return
	}

	c.JSON(http.StatusOK, q)
}

func (h *ordersHandler) nextOrderNumber(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	key := orders.NextOrderNumberCacheKey(userID)
	if cached, err := h.cacheGet(ctx, key); err == nil {
		if n, convErr := strconv.ParseInt(cached, 10, 64); convErr == nil {
			c.JSON(http.StatusOK, gin.H{"order_number": n})
			return
		}
	}

	n, err := h.seq.Preview(ctx, h.cfg.Pool, userID)
	if err != nil {
		log.Printf("[orders] next order number failed user=%d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "next_order_number_failed"})
		return
	}

	h.cacheSet(ctx, key, strconv.FormatInt(n, 10))
	c.JSON(http.StatusOK, gin.H{"order_number": n})
}

func (h *ordersHandler) listOrders(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	key := orders.OrdersListCacheKey(userID)
	if cached, err := h.cacheGet(ctx, key); err == nil {
		c.Data(http.StatusOK, "application/json", []byte(cached))
		return
	}

	list, err := h.store.ListByUser(ctx, userID)
	if err != nil {
		log.Printf("[orders] list failed user=%d: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "orders_list_failed"})
		return
	}
	if list == nil {
		list = []orders.Order{}
	}

	if body, err := json.Marshal(list); err == nil {
		h.cacheSet(ctx, key, string(body))
	}
	c.JSON(http.StatusOK, list)
}

func (h *ordersHandler) orderDetails(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)
	orderID := c.Param("id")

	key := orders.OrderCacheKey(orderID, userID)
	if cached, err := h.cacheGet(ctx, key); err == nil {
		c.Data(http.StatusOK, "application/json", []byte(cached))
		return
	}

	order, err := h.store.Get(ctx, orderID, userID)
	if err != nil {
		log.Printf("[orders] details failed user=%d order=%s: %v", userID, orderID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "order_details_failed"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}

	if body, err := json.Marshal(order); err == nil {
		h.cacheSet(ctx, key, string(body))
	}
	c.JSON(http.StatusOK, order)
}

func (h *ordersHandler) cacheGet(ctx context.Context, key string) (string, error) {
	val, err := h.cfg.Cache.Get(ctx, key)
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("[cache] read failed key=%s: %v", key, err)
	}
	return val, err
}

func (h *ordersHandler) cacheSet(ctx context.Context, key, value string) {
	if err := h.cfg.Cache.Set(ctx, key, value, time.Hour); err != nil {
		log.Printf("[cache] write failed key=%s: %v", key, err)
	}
}

func toLines(items []validation.Item) []pricing.Line {
	lines := make([]pricing.Line, len(items))
	for i, it := range items {
		lines[i] = pricing.Line{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return lines
}

// checkoutRecorder fans one checkout observation out to prometheus and,
// when configured, CloudWatch.
type checkoutRecorder struct {
	server     *metrics.ServerMetrics
	cloudwatch orders.ResultRecorder
}

func (r *checkoutRecorder) RecordCheckoutResult(ctx context.Context, result string) {
	if r.server != nil {
		r.server.Checkouts.WithLabelValues(result).Inc()
	}
	if r.cloudwatch != nil {
		r.cloudwatch.RecordCheckoutResult(ctx, result)
	}
}
