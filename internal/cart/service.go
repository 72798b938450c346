package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/lock"
)

const mutateLockTTL = 5 * time.Second

// ProductLookup resolves products by id.
type ProductLookup interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// ServiceConfig groups Service dependencies. Locker serialises writes to one cart
// and defaults to an in-process lock.
type ServiceConfig struct {
	Store    Store
	Products ProductLookup
	Locker   lock.Locker
	Logger   zerolog.Logger
	Now      func() time.Time
	NewID    func() string
}

// Service encapsulates cart operations on top of a Store.
type Service struct {
	store    Store
	products ProductLookup
	locker   lock.Locker
	logger   zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("cart: store is required")
	}
	if cfg.Products == nil {
		return nil, errors.New("cart: product lookup is required")
	}
	svc := &Service{store: cfg.Store, products: cfg.Products, locker: cfg.Locker, logger: cfg.Logger, now: cfg.Now, newID: cfg.NewID}
	if svc.locker == nil {
		svc.locker = &lock.Local{}
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.newID == nil {
		svc.newID = uuid.NewString
	}
	return svc, nil
}

// Create starts an empty cart.
func (s *Service) Create(ctx context.Context) (Cart, error) {
	c := New(s.newID(), s.now().UTC())
	if err := s.store.Save(ctx, c); err != nil {
		return Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return c, nil
}

// Get loads a cart and refreshes every line against the current catalog. Lines whose
// product no longer exists are dropped. The refresh holds the cart lock so a
// concurrent write is never overwritten by a stale copy.
func (s *Service) Get(ctx context.Context, id string) (Cart, error) {
	var out Cart
	err := s.locker.WithLock(ctx, cache.KeyCartLock(strings.TrimSpace(id)), mutateLockTTL, func(ctx context.Context) error {
		c, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		refreshed, changed, err := s.refresh(ctx, c)
		if err != nil {
			return err
		}
		if changed {
			refreshed.UpdatedAt = s.now().UTC()
			if err := s.store.Save(ctx, refreshed); err != nil {
				return fmt.Errorf("save cart: %w", err)
			}
			s.logger.Debug().Str("cart_id", c.ID).Msg("cart_refreshed")
		}
		out = refreshed
		return nil
	})
	if err != nil {
		return Cart{}, err
	}
	return out, nil
}

func (s *Service) refresh(ctx context.Context, c Cart) (Cart, bool, error) {
	refreshed := c.clone()
	refreshed.Items = refreshed.Items[:0]
	changed := false
	for _, it := range c.Items {
		p, err := s.products.Get(ctx, it.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			changed = true
			continue
		}
		if err != nil {
			return Cart{}, false, fmt.Errorf("refresh cart line %s: %w", it.ProductID, err)
		}
		fresh := snapshot(p, it.Quantity)
		if !sameItem(fresh, it) {
			changed = true
		}
		refreshed.Items = append(refreshed.Items, fresh)
	}
	return refreshed, changed, nil
}

// AddItem adds qty units of a product.
func (s *Service) AddItem(ctx context.Context, id, productID string, qty int) (Cart, error) {
	return s.mutate(ctx, id, func(c Cart) (Cart, error) {
		p, err := s.products.Get(ctx, strings.TrimSpace(productID))
		if err != nil {
			return c, err
		}
		return c.Add(p, qty)
	})
}

// UpdateItem sets the quantity of a line; zero or less removes it.
func (s *Service) UpdateItem(ctx context.Context, id, productID string, qty int) (Cart, error) {
	return s.mutate(ctx, id, func(c Cart) (Cart, error) { return c.SetQuantity(productID, qty) })
}

// RemoveItem drops a line.
func (s *Service) RemoveItem(ctx context.Context, id, productID string) (Cart, error) {
	return s.mutate(ctx, id, func(c Cart) (Cart, error) { return c.Remove(productID), nil })
}

// Clear empties a cart.
func (s *Service) Clear(ctx context.Context, id string) (Cart, error) {
	return s.mutate(ctx, id, func(c Cart) (Cart, error) { return c.Clear(), nil })
}

// mutate loads, changes and saves a cart while holding its lock.
func (s *Service) mutate(ctx context.Context, id string, change func(Cart) (Cart, error)) (Cart, error) {
	var out Cart
	err := s.locker.WithLock(ctx, cache.KeyCartLock(strings.TrimSpace(id)), mutateLockTTL, func(ctx context.Context) error {
		c, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		next, err := change(c)
		if err != nil {
			return err
		}
		out, err = s.save(ctx, next)
		return err
	})
	if err != nil {
		return Cart{}, err
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id string) (Cart, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Cart{}, ErrCartNotFound
	}
	c, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrCartNotFound) {
			return Cart{}, err
		}
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	return c, nil
}

func (s *Service) save(ctx context.Context, c Cart) (Cart, error) {
	c.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, c); err != nil {
		return Cart{}, fmt.Errorf("save cart: %w", err)
	}
	return c, nil
}

func sameItem(a, b Item) bool {
	return a.ProductID == b.ProductID && a.Name == b.Name && a.Quantity == b.Quantity &&
		a.Digital == b.Digital && a.UnitPrice.Equal(b.UnitPrice)
}
