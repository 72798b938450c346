package cart

import (
	"context"
	"sync"

	"github.com/noah-isme/toko-storefront/internal/cache"
)

// Store persists carts between requests.
type Store interface {
	Get(ctx context.Context, id string) (Cart, error)
	Save(ctx context.Context, c Cart) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	carts map[string]Cart
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: make(map[string]Cart)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, id string) (Cart, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.carts[id]
	if !ok {
		return Cart{}, ErrCartNotFound
	}
	return c.clone(), nil
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, c Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[c.ID] = c.clone()
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, id)
	return nil
}

// RedisStore keeps carts as JSON values that expire after the configured TTL of inactivity.
type RedisStore struct {
	cache *cache.JSON
}

// NewRedisStore wraps a Redis JSON cache.
func NewRedisStore(c *cache.JSON) *RedisStore {
	return &RedisStore{cache: c}
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (Cart, error) {
	var c Cart
	found, err := s.cache.Get(ctx, cache.KeyCart(id), &c)
	if err != nil {
		return Cart{}, err
	}
	if !found {
		return Cart{}, ErrCartNotFound
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c, nil
}

// Save implements Store. Saving refreshes the expiry.
func (s *RedisStore) Save(ctx context.Context, c Cart) error {
	return s.cache.Set(ctx, cache.KeyCart(c.ID), c)
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.cache.Delete(ctx, cache.KeyCart(id))
}
