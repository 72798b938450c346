package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*JSON, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJSON(client, time.Minute), mr
}

func TestJSONRoundTripAndTTL(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	var out payload
	found, err := c.Get(ctx, KeyProduct("1"), &out)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Set(ctx, KeyProduct("1"), payload{Name: "Guitar"}))
	found, err = c.Get(ctx, KeyProduct("1"), &out)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Guitar", out.Name)

	mr.FastForward(2 * time.Minute)
	found, err = c.Get(ctx, KeyProduct("1"), &out)
	require.NoError(t, err)
	require.False(t, found)
}

func TestJSONDeletePrefix(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, KeyCatalogList("all", "", "price-asc"), []payload{{Name: "a"}}))
	require.NoError(t, c.Set(ctx, KeyProduct("2"), payload{Name: "b"}))
	require.NoError(t, c.Set(ctx, KeyPolicies("promotions"), []payload{{Name: "c"}}))

	require.NoError(t, c.DeletePrefix(ctx, PrefixCatalog))
	require.False(t, mr.Exists(KeyProduct("2")))
	require.True(t, mr.Exists(KeyPolicies("promotions")))
}

func TestJSONDisabled(t *testing.T) {
	var c *JSON
	require.False(t, c.Enabled())
	found, err := c.Get(context.Background(), "k", &payload{})
	require.NoError(t, err)
	require.False(t, found)
	require.NoError(t, c.Set(context.Background(), "k", payload{}))
	require.NoError(t, NewJSON(nil, time.Minute).DeletePrefix(context.Background(), PrefixCatalog))
}

func TestKeyCatalogListIsStable(t *testing.T) {
	require.Equal(t, KeyCatalogList("vinyl", "kino", "name-asc"), KeyCatalogList("vinyl", "kino", "name-asc"))
	require.NotEqual(t, KeyCatalogList("vinyl", "kino", "name-asc"), KeyCatalogList("vinyl", "kino", "name-desc"))
}
