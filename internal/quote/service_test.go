package quote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZED-Magdy/storefront-checkout/internal/cache"
	"github.com/ZED-Magdy/storefront-checkout/internal/catalog"
	"github.com/ZED-Magdy/storefront-checkout/internal/orders"
	"github.com/ZED-Magdy/storefront-checkout/internal/pricing"
)

type stubFinder struct {
	mu       sync.Mutex
	products []catalog.Product
	calls    int
}

func (f *stubFinder) FindByIDs(_ context.Context, ids []int64) ([]catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	byID := map[int64]catalog.Product{}
	for _, p := range f.products {
		byID[p.ID] = p
	}

	var out []catalog.Product
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *stubFinder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]string
	tags    map[string][]string
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]string{}, tags: map[string][]string{}}
}

func (c *mapCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *mapCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *mapCache) Tag(_ context.Context, tag string, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags[tag] = append(c.tags[tag], keys...)
	return nil
}

func (c *mapCache) InvalidateTag(_ context.Context, tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.tags[tag] {
		delete(c.entries, k)
	}
	delete(c.tags, tag)
	return nil
}

func testService(products []catalog.Product) (*Service, *stubFinder, *mapCache) {
	finder := &stubFinder{products: products}
	mc := newMapCache()
	svc := NewService(finder, pricing.Config{ShippingCents: 1500, TaxRatePercent: 15}, mc, time.Minute)
	return svc, finder, mc
}

func TestQuote_EmptyCartIsZero(t *testing.T) {
	svc, finder, _ := testService(nil)

	q, err := svc.Quote(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, pricing.Quote{}, q)
	assert.Equal(t, 0, finder.callCount())
}

func TestQuote_ComputesAndCaches(t *testing.T) {
	svc, finder, mc := testService([]catalog.Product{
		{ID: 1, PriceCents: 1000},
		{ID: 2, PriceCents: 2000},
	})

	lines := []pricing.Line{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}

	q, err := svc.Quote(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), q.SubtotalCents)
	assert.Equal(t, int64(6100), q.TotalCents)
	assert.Equal(t, 1, finder.callCount())

	// second identical request is served from the cache
	q2, err := svc.Quote(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, q, q2)
	assert.Equal(t, 1, finder.callCount())

	// quote entries are tagged so a checkout commit drops them
	require.NotEmpty(t, mc.tags[orders.ProductsTag])
}

func TestQuote_SignatureIgnoresLineOrder(t *testing.T) {
	svc, finder, _ := testService([]catalog.Product{
		{ID: 1, PriceCents: 1000},
		{ID: 2, PriceCents: 2000},
	})

	_, err := svc.Quote(context.Background(), []pricing.Line{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)

	_, err = svc.Quote(context.Background(), []pricing.Line{
		{ProductID: 2, Quantity: 1},
		{ProductID: 1, Quantity: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, finder.callCount())
}

func TestQuote_InvalidatedTagForcesRecompute(t *testing.T) {
	svc, finder, mc := testService([]catalog.Product{{ID: 1, PriceCents: 1000}})

	lines := []pricing.Line{{ProductID: 1, Quantity: 1}}

	_, err := svc.Quote(context.Background(), lines)
	require.NoError(t, err)
	require.NoError(t, mc.InvalidateTag(context.Background(), orders.ProductsTag))

	_, err = svc.Quote(context.Background(), lines)
	require.NoError(t, err)
	assert.Equal(t, 2, finder.callCount())
}

func TestQuote_ValidationErrors(t *testing.T) {
	svc, _, _ := testService([]catalog.Product{{ID: 1, PriceCents: 1000}})

	tests := []struct {
		name  string
		lines []pricing.Line
	}{
		{name: "zero quantity", lines: []pricing.Line{{ProductID: 1, Quantity: 0}}},
		{name: "duplicate product", lines: []pricing.Line{{ProductID: 1, Quantity: 1}, {ProductID: 1, Quantity: 1}}},
		{name: "unknown product", lines: []pricing.Line{{ProductID: 99, Quantity: 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Quote(context.Background(), tt.lines)

			var ve *pricing.ValidationError
			require.ErrorAs(t, err, &ve)
		})
	}
}
