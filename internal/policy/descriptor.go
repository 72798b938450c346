package policy

import (
	"errors"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

var (
	// ErrUnknownPolicyKind is returned when a descriptor names a type this build cannot price.
	ErrUnknownPolicyKind = errors.New("policy: unknown policy kind")
	// ErrInvalidPolicy is returned when a descriptor fails validation.
	ErrInvalidPolicy = errors.New("policy: invalid policy")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// PromotionDescriptor is the wire and document shape of a promotion.
type PromotionDescriptor struct {
	ID    string   `json:"id" yaml:"id" validate:"required"`
	Name  string   `json:"name" yaml:"name" validate:"required"`
	Type  string   `json:"type" yaml:"type" validate:"required"`
	Value *float64 `json:"value,omitempty" yaml:"value,omitempty" validate:"omitempty,gte=0"`
}

// TaxDescriptor is the wire and document shape of a tax policy. An empty Type means a
// flat rate.
type TaxDescriptor struct {
	ID          string   `json:"id" yaml:"id" validate:"required"`
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`
	Rate        *float64 `json:"rate,omitempty" yaml:"rate,omitempty" validate:"omitempty,gte=0,lte=1"`
	DigitalOnly bool     `json:"digitalOnly,omitempty" yaml:"digitalOnly,omitempty"`
}

// ShippingDescriptor is the wire and document shape of a shipping policy. A missing or
// zero threshold means shipping is never waived.
type ShippingDescriptor struct {
	ID        string   `json:"id" yaml:"id" validate:"required"`
	Name      string   `json:"name" yaml:"name" validate:"required"`
	Cost      float64  `json:"cost" yaml:"cost" validate:"gte=0"`
	Threshold *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty" validate:"omitempty,gte=0"`
}

// Document groups every policy list in one file.
type Document struct {
	Promotions       []PromotionDescriptor `json:"promotions" yaml:"promotions"`
	TaxPolicies      []TaxDescriptor       `json:"taxPolicies" yaml:"taxPolicies"`
	ShippingPolicies []ShippingDescriptor  `json:"shippingPolicies" yaml:"shippingPolicies"`
}

// ParseDocument decodes a YAML (or JSON) policy document.
func ParseDocument(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parse policy document: %w", err)
	}
	return doc, nil
}

// Promotion resolves the descriptor into a priced rule.
func (d PromotionDescriptor) Promotion() (Promotion, error) {
	if err := validate.Struct(d); err != nil {
		return Promotion{}, fmt.Errorf("promotion %q: %w: %v", d.ID, ErrInvalidPolicy, err)
	}
	var rule pricing.Promotion
	switch strings.ToLower(strings.TrimSpace(d.Type)) {
	case pricing.KindNone:
		rule = pricing.NoPromotion{}
	case pricing.KindPercentage:
		if d.Value == nil || *d.Value > 100 {
			return Promotion{}, fmt.Errorf("promotion %q: %w: percentage must be within 0-100", d.ID, ErrInvalidPolicy)
		}
		rule = pricing.PercentageOff{Percent: decimal.NewFromFloat(*d.Value)}
	case pricing.KindFixed:
		if d.Value == nil {
			return Promotion{}, fmt.Errorf("promotion %q: %w: fixed amount is required", d.ID, ErrInvalidPolicy)
		}
		rule = pricing.FixedAmountOff{Amount: decimal.NewFromFloat(*d.Value)}
	case pricing.KindBogoHalf:
		rule = pricing.BuyOneGetSecondHalfOff{}
	case pricing.KindBuyThreePayTwo:
		rule = pricing.BuyThreeForTwo{}
	default:
		return Promotion{}, fmt.Errorf("promotion %q type %q: %w", d.ID, d.Type, ErrUnknownPolicyKind)
	}
	return Promotion{ID: d.ID, Name: d.Name, Rule: rule}, nil
}

// TaxPolicy resolves the descriptor into a tax rule.
func (d TaxDescriptor) TaxPolicy() (TaxPolicy, error) {
	if err := validate.Struct(d); err != nil {
		return TaxPolicy{}, fmt.Errorf("tax policy %q: %w: %v", d.ID, ErrInvalidPolicy, err)
	}
	var rule pricing.TaxPolicy
	switch strings.ToLower(strings.TrimSpace(d.Type)) {
	case pricing.TaxKindNone:
		rule = pricing.NoTax{}
	case pricing.TaxKindProgressive:
		rule = pricing.Progressive{}
	case "", pricing.TaxKindFlat:
		if d.Rate == nil {
			return TaxPolicy{}, fmt.Errorf("tax policy %q: %w: rate is required", d.ID, ErrInvalidPolicy)
		}
		rule = pricing.FlatRate{Rate: decimal.NewFromFloat(*d.Rate), DigitalOnly: d.DigitalOnly}
	default:
		return TaxPolicy{}, fmt.Errorf("tax policy %q type %q: %w", d.ID, d.Type, ErrUnknownPolicyKind)
	}
	return TaxPolicy{ID: d.ID, Name: d.Name, Rule: rule}, nil
}

// ShippingPolicy resolves the descriptor into a shipping rule.
func (d ShippingDescriptor) ShippingPolicy() (pricing.ShippingPolicy, error) {
	if err := validate.Struct(d); err != nil {
		return pricing.ShippingPolicy{}, fmt.Errorf("shipping policy %q: %w: %v", d.ID, ErrInvalidPolicy, err)
	}
	policy := pricing.ShippingPolicy{
		ID:       d.ID,
		Name:     d.Name,
		FlatCost: decimal.NewFromFloat(d.Cost),
	}
	if d.Threshold != nil && *d.Threshold > 0 {
		threshold := decimal.NewFromFloat(*d.Threshold)
		policy.FreeAboveThreshold = &threshold
	}
	return policy, nil
}

// DescribePromotion converts a promotion back to its wire shape.
func DescribePromotion(p Promotion) PromotionDescriptor {
	d := PromotionDescriptor{ID: p.ID, Name: p.Name, Type: pricing.KindNone}
	if p.Rule == nil {
		return d
	}
	d.Type = p.Rule.Kind()
	switch rule := p.Rule.(type) {
	case pricing.PercentageOff:
		d.Value = floatPtr(rule.Percent)
	case pricing.FixedAmountOff:
		d.Value = floatPtr(rule.Amount)
	}
	return d
}

// DescribeTaxPolicy converts a tax policy back to its wire shape.
func DescribeTaxPolicy(t TaxPolicy) TaxDescriptor {
	d := TaxDescriptor{ID: t.ID, Name: t.Name, Type: pricing.TaxKindNone}
	if t.Rule == nil {
		return d
	}
	d.Type = t.Rule.Kind()
	if rule, ok := t.Rule.(pricing.FlatRate); ok {
		d.Rate = floatPtr(rule.Rate)
		d.DigitalOnly = rule.DigitalOnly
	}
	return d
}

// DescribeShippingPolicy converts a shipping policy back to its wire shape.
func DescribeShippingPolicy(s pricing.ShippingPolicy) ShippingDescriptor {
	d := ShippingDescriptor{ID: s.ID, Name: s.Name, Cost: s.FlatCost.InexactFloat64()}
	if s.FreeAboveThreshold != nil {
		d.Threshold = floatPtr(*s.FreeAboveThreshold)
	}
	return d
}

func floatPtr(v decimal.Decimal) *float64 {
	f := v.InexactFloat64()
	return &f
}
