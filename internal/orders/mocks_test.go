package orders_test

import (
	"context"
	"sync"
	"time"

	"github.com/ZED-Magdy/storefront-checkout/internal/cache"
	"github.com/ZED-Magdy/storefront-checkout/internal/orders"
)

// fakeCache is an in-memory cache.Cache that records invalidations.
type fakeCache struct {
	mu              sync.Mutex
	entries         map[string]string
	tags            map[string]map[string]struct{}
	deletedKeys     map[string]struct{}
	invalidatedTags map[string]struct{}
}

func newFakeCache() *fakeCache {
	c := &fakeCache{}
	c.reset()
	return c
}

func (c *fakeCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]string{}
	c.tags = map[string]map[string]struct{}{}
	c.deletedKeys = map[string]struct{}{}
	c.invalidatedTags = map[string]struct{}{}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.entries[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return val, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
		c.deletedKeys[k] = struct{}{}
	}
	return nil
}

func (c *fakeCache) Tag(_ context.Context, tag string, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tags[tag] == nil {
		c.tags[tag] = map[string]struct{}{}
	}
	for _, k := range keys {
		c.tags[tag][k] = struct{}{}
	}
	return nil
}

func (c *fakeCache) InvalidateTag(_ context.Context, tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.tags[tag] {
		delete(c.entries, k)
	}
	delete(c.tags, tag)
	c.invalidatedTags[tag] = struct{}{}
	return nil
}

func (c *fakeCache) deleted(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.deletedKeys[key]
	return ok
}

func (c *fakeCache) tagInvalidated(tag string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.invalidatedTags[tag]
	return ok
}

// recordingPublisher captures published events instead of hitting SQS.
type recordingPublisher struct {
	mu   sync.Mutex
	sent []orders.OrderPlacedEvent
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, ev orders.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, ev)
	return nil
}

func (p *recordingPublisher) events() []orders.OrderPlacedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]orders.OrderPlacedEvent, len(p.sent))
	copy(out, p.sent)
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = nil
}
