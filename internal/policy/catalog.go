package policy

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// ErrUnresolvedPolicy is returned when an identifier has no matching catalog entry.
var ErrUnresolvedPolicy = errors.New("policy: unresolved policy")

//go:embed defaults.yaml
var defaultDocument []byte

// Promotion is a catalog entry carrying a promotional rule.
type Promotion struct {
	ID   string
	Name string
	Rule pricing.Promotion
}

// TaxPolicy is a catalog entry carrying a tax rule.
type TaxPolicy struct {
	ID   string
	Name string
	Rule pricing.TaxPolicy
}

// Catalog supplies the policies a checkout can be priced with.
type Catalog interface {
	ListPromotions(ctx context.Context) ([]Promotion, error)
	ListTaxPolicies(ctx context.Context) ([]TaxPolicy, error)
	ListShippingPolicies(ctx context.Context) ([]pricing.ShippingPolicy, error)
}

// Snapshotter is implemented by catalogs whose contents can change between calls. The
// returned catalog answers every list from one consistent document.
type Snapshotter interface {
	Snapshot(ctx context.Context) (Catalog, error)
}

// Snapshot pins c to one document when it supports it and returns c otherwise.
func Snapshot(ctx context.Context, c Catalog) (Catalog, error) {
	if s, ok := c.(Snapshotter); ok {
		return s.Snapshot(ctx)
	}
	return c, nil
}

// Static is an immutable in-memory catalog.
type Static struct {
	promotions []Promotion
	taxes      []TaxPolicy
	shipping   []pricing.ShippingPolicy
}

// NewStatic decodes every descriptor of doc. Duplicate identifiers are rejected.
func NewStatic(doc Document) (*Static, error) {
	s := &Static{}
	for _, d := range doc.Promotions {
		p, err := d.Promotion()
		if err != nil {
			return nil, err
		}
		s.promotions = append(s.promotions, p)
	}
	for _, d := range doc.TaxPolicies {
		t, err := d.TaxPolicy()
		if err != nil {
			return nil, err
		}
		s.taxes = append(s.taxes, t)
	}
	for _, d := range doc.ShippingPolicies {
		sp, err := d.ShippingPolicy()
		if err != nil {
			return nil, err
		}
		s.shipping = append(s.shipping, sp)
	}
	if err := firstDuplicate("promotion", lo.Map(s.promotions, func(p Promotion, _ int) string { return p.ID })); err != nil {
		return nil, err
	}
	if err := firstDuplicate("tax policy", lo.Map(s.taxes, func(t TaxPolicy, _ int) string { return t.ID })); err != nil {
		return nil, err
	}
	if err := firstDuplicate("shipping policy", lo.Map(s.shipping, func(sp pricing.ShippingPolicy, _ int) string { return sp.ID })); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadStatic builds a catalog from the YAML file at path, or from the built-in
// document when path is empty.
func LoadStatic(path string) (*Static, error) {
	data := defaultDocument
	if p := strings.TrimSpace(path); p != "" {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read policy file: %w", err)
		}
		data = raw
	}
	doc, err := ParseDocument(data)
	if err != nil {
		return nil, err
	}
	return NewStatic(doc)
}

// Default returns the built-in catalog.
func Default() *Static {
	s, err := LoadStatic("")
	if err != nil {
		panic(fmt.Errorf("built-in policy document: %w", err))
	}
	return s
}

// Snapshot implements Snapshotter.
func (s *Static) Snapshot(context.Context) (Catalog, error) {
	return s, nil
}

// ListPromotions implements Catalog.
func (s *Static) ListPromotions(context.Context) ([]Promotion, error) {
	return append([]Promotion(nil), s.promotions...), nil
}

// ListTaxPolicies implements Catalog.
func (s *Static) ListTaxPolicies(context.Context) ([]TaxPolicy, error) {
	return append([]TaxPolicy(nil), s.taxes...), nil
}

// ListShippingPolicies implements Catalog.
func (s *Static) ListShippingPolicies(context.Context) ([]pricing.ShippingPolicy, error) {
	return append([]pricing.ShippingPolicy(nil), s.shipping...), nil
}

// ResolvePromotion looks up a promotion by identifier.
func ResolvePromotion(ctx context.Context, c Catalog, id string) (Promotion, error) {
	items, err := c.ListPromotions(ctx)
	if err != nil {
		return Promotion{}, fmt.Errorf("list promotions: %w", err)
	}
	p, ok := lo.Find(items, func(p Promotion) bool { return p.ID == id })
	if !ok {
		return Promotion{}, fmt.Errorf("promotion %q: %w", id, ErrUnresolvedPolicy)
	}
	return p, nil
}

// ResolveTaxPolicy looks up a tax policy by identifier.
func ResolveTaxPolicy(ctx context.Context, c Catalog, id string) (TaxPolicy, error) {
	items, err := c.ListTaxPolicies(ctx)
	if err != nil {
		return TaxPolicy{}, fmt.Errorf("list tax policies: %w", err)
	}
	t, ok := lo.Find(items, func(t TaxPolicy) bool { return t.ID == id })
	if !ok {
		return TaxPolicy{}, fmt.Errorf("tax policy %q: %w", id, ErrUnresolvedPolicy)
	}
	return t, nil
}

// ResolveShippingPolicy looks up a shipping policy by identifier.
func ResolveShippingPolicy(ctx context.Context, c Catalog, id string) (pricing.ShippingPolicy, error) {
	items, err := c.ListShippingPolicies(ctx)
	if err != nil {
		return pricing.ShippingPolicy{}, fmt.Errorf("list shipping policies: %w", err)
	}
	sp, ok := lo.Find(items, func(sp pricing.ShippingPolicy) bool { return sp.ID == id })
	if !ok {
		return pricing.ShippingPolicy{}, fmt.Errorf("shipping policy %q: %w", id, ErrUnresolvedPolicy)
	}
	return sp, nil
}

func firstDuplicate(kind string, ids []string) error {
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return fmt.Errorf("%s %q declared twice: %w", kind, dup[0], ErrInvalidPolicy)
	}
	return nil
}
