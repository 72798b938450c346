package policy

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Cache key suffixes for each policy list.
const (
	listPromotions = "promotions"
	listTaxes      = "taxes"
	listShipping   = "shipping"
)

// Cached serves policy lists from Redis and reloads them from the wrapped catalog on a
// miss. Entries are stored in their descriptor form and always written as a set.
type Cached struct {
	next   Catalog
	cache  *cache.JSON
	logger zerolog.Logger
}

// NewCached wraps next with a Redis read-through cache. A disabled cache passes through.
func NewCached(next Catalog, c *cache.JSON, logger zerolog.Logger) *Cached {
	return &Cached{next: next, cache: c, logger: logger}
}

// ListPromotions implements Catalog.
func (c *Cached) ListPromotions(ctx context.Context) ([]Promotion, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ListPromotions(ctx)
}

// ListTaxPolicies implements Catalog.
func (c *Cached) ListTaxPolicies(ctx context.Context) ([]TaxPolicy, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ListTaxPolicies(ctx)
}

// ListShippingPolicies implements Catalog.
func (c *Cached) ListShippingPolicies(ctx context.Context) ([]pricing.ShippingPolicy, error) {
	snap, err := c.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.ListShippingPolicies(ctx)
}

// Snapshot implements Snapshotter. A hit needs all three lists; any miss reloads them
// together from one snapshot of the wrapped catalog.
func (c *Cached) Snapshot(ctx context.Context) (Catalog, error) {
	if s, ok := c.cached(ctx); ok {
		return s, nil
	}
	snap, err := Snapshot(ctx, c.next)
	if err != nil {
		return nil, err
	}
	promotions, err := snap.ListPromotions(ctx)
	if err != nil {
		return nil, err
	}
	taxes, err := snap.ListTaxPolicies(ctx)
	if err != nil {
		return nil, err
	}
	shipping, err := snap.ListShippingPolicies(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, listPromotions, lo.Map(promotions, func(p Promotion, _ int) PromotionDescriptor { return DescribePromotion(p) }))
	c.store(ctx, listTaxes, lo.Map(taxes, func(t TaxPolicy, _ int) TaxDescriptor { return DescribeTaxPolicy(t) }))
	c.store(ctx, listShipping, lo.Map(shipping, func(s pricing.ShippingPolicy, _ int) ShippingDescriptor { return DescribeShippingPolicy(s) }))
	return &Static{promotions: promotions, taxes: taxes, shipping: shipping}, nil
}

func (c *Cached) cached(ctx context.Context) (*Static, bool) {
	var (
		promoDescs    []PromotionDescriptor
		taxDescs      []TaxDescriptor
		shippingDescs []ShippingDescriptor
	)
	if !c.lookup(ctx, listPromotions, &promoDescs) || !c.lookup(ctx, listTaxes, &taxDescs) || !c.lookup(ctx, listShipping, &shippingDescs) {
		return nil, false
	}
	promotions, err := decodeAll(promoDescs, PromotionDescriptor.Promotion)
	if err != nil {
		return nil, false
	}
	taxes, err := decodeAll(taxDescs, TaxDescriptor.TaxPolicy)
	if err != nil {
		return nil, false
	}
	shipping, err := decodeAll(shippingDescs, ShippingDescriptor.ShippingPolicy)
	if err != nil {
		return nil, false
	}
	return &Static{promotions: promotions, taxes: taxes, shipping: shipping}, true
}

// Invalidate drops every cached policy list.
func (c *Cached) Invalidate(ctx context.Context) error {
	return c.cache.DeletePrefix(ctx, cache.PrefixPolicies)
}

func (c *Cached) lookup(ctx context.Context, kind string, dst any) bool {
	found, err := c.cache.Get(ctx, cache.KeyPolicies(kind), dst)
	if err != nil {
		c.logger.Warn().Err(err).Str("list", kind).Msg("policy_cache_get_failed")
		return false
	}
	obs.ObserveCacheLookup("policies", found)
	return found
}

func (c *Cached) store(ctx context.Context, kind string, v any) {
	if err := c.cache.Set(ctx, cache.KeyPolicies(kind), v); err != nil {
		c.logger.Warn().Err(err).Str("list", kind).Msg("policy_cache_set_failed")
	}
}

func decodeAll[D any, T any](descs []D, decode func(D) (T, error)) ([]T, error) {
	out := make([]T, 0, len(descs))
	for _, d := range descs {
		v, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
