package quote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/ZED-Magdy/storefront-checkout/internal/cache"
	"github.com/ZED-Magdy/storefront-checkout/internal/catalog"
	"github.com/ZED-Magdy/storefront-checkout/internal/orders"
	"github.com/ZED-Magdy/storefront-checkout/internal/pricing"
)

// Service computes pre-checkout estimates. It takes no locks, mutates
// nothing and is safe for unlimited concurrent callers. Results are a pure
// function of catalog state, so they can sit in a short-lived cache keyed
// by a normalized signature of the lines.
type Service struct {
	finder catalog.Finder
	calc   *pricing.Calculator
	cache  cache.Cache
	ttl    time.Duration
}

func NewService(finder catalog.Finder, cfg pricing.Config, c cache.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{
		finder: finder,
		calc:   pricing.NewCalculator(cfg),
		cache:  c,
		ttl:    ttl,
	}
}

// Quote prices the cart against the live catalog. An empty cart is a valid
// request and yields an all-zero quote.
func (s *Service) Quote(ctx context.Context, lines []pricing.Line) (pricing.Quote, error) {
	if err := pricing.ValidateLines(lines); err != nil {
		return pricing.Quote{}, err
	}

	if len(lines) == 0 {
		return pricing.Quote{}, nil
	}

	key := cacheKey(lines)
	if cached, err := s.cache.Get(ctx, key); err == nil {
		var q pricing.Quote
		if err := json.Unmarshal([]byte(cached), &q); err == nil {
			return q, nil
		}
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("[quote] cache read failed: %v", err)
	}

	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.ProductID
	}

	products, err := s.finder.FindByIDs(ctx, ids)
	if err != nil {
		return pricing.Quote{}, fmt.Errorf("load products: %w", err)
	}

	q, err := s.calc.Compute(lines, products)
	if err != nil {
		return pricing.Quote{}, err
	}

	s.store(ctx, key, q)

	return q, nil
}

// store writes the quote through the cache and tags it under the products
// tag so checkout commits drop it. Cache failures never fail a quote.
func (s *Service) store(ctx context.Context, key string, q pricing.Quote) {
	body, err := json.Marshal(q)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(body), s.ttl); err != nil {
		log.Printf("[quote] cache write failed: %v", err)
		return
	}
	if err := s.cache.Tag(ctx, orders.ProductsTag, key); err != nil {
		log.Printf("[quote] cache tag failed: %v", err)
	}
}

// cacheKey hashes the lines sorted by product id, so equal carts hit the
// same entry regardless of submission order.
func cacheKey(lines []pricing.Line) string {
	sorted := make([]pricing.Line, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	var b strings.Builder
	for _, line := range sorted {
		fmt.Fprintf(&b, "%d:%d;", line.ProductID, line.Quantity)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return "cart_quote:" + hex.EncodeToString(sum[:])
}
