package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCache(client), mr
}

func TestRedisCache_SetGet(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "order_abc_1", `{"total":6100}`, time.Hour))

	got, err := c.Get(ctx, "order_abc_1")
	require.NoError(t, err)
	assert.Equal(t, `{"total":6100}`, got)
}

func TestRedisCache_GetMissing(t *testing.T) {
	c, _ := testCache(t)

	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_TTLExpiry(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ephemeral", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := c.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Delete(t *testing.T) {
	c, _ := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", 0))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	require.NoError(t, c.Delete(ctx, "a", "b"))

	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// deleting nothing is a noop
	require.NoError(t, c.Delete(ctx))
}

func TestRedisCache_InvalidateTag(t *testing.T) {
	c, mr := testCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cart_quote:one", "q1", time.Hour))
	require.NoError(t, c.Set(ctx, "cart_quote:two", "q2", time.Hour))
	require.NoError(t, c.Set(ctx, "unrelated", "keep", time.Hour))
	require.NoError(t, c.Tag(ctx, "products", "cart_quote:one", "cart_quote:two"))

	require.NoError(t, c.InvalidateTag(ctx, "products"))

	_, err := c.Get(ctx, "cart_quote:one")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "cart_quote:two")
	assert.ErrorIs(t, err, ErrCacheMiss)

	got, err := c.Get(ctx, "unrelated")
	require.NoError(t, err)
	assert.Equal(t, "keep", got)

	// the tag set itself is gone too
	assert.False(t, mr.Exists("tag:products"))
}

func TestRedisCache_InvalidateEmptyTag(t *testing.T) {
	c, _ := testCache(t)

	// no members recorded under the tag; still succeeds
	require.NoError(t, c.InvalidateTag(context.Background(), "products"))
}
