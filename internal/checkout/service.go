package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/policy"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

const (
	defaultTaxPolicyID      = "progressive"
	defaultShippingPolicyID = "none"
)

// ErrEmptyCart is returned when quoting a stored cart with no lines.
var ErrEmptyCart = errors.New("checkout: cart is empty")

// ProductLookup resolves products by id.
type ProductLookup interface {
	Get(ctx context.Context, id string) (catalog.Product, error)
}

// CartSource loads stored carts.
type CartSource interface {
	Get(ctx context.Context, id string) (cart.Cart, error)
}

// Selection names the policies a quote is priced with. An empty PromotionID asks for
// the promotion with the largest discount. Empty tax and shipping ids use the
// configured defaults.
type Selection struct {
	PromotionID      string
	TaxPolicyID      string
	ShippingPolicyID string
}

// QuoteInput prices explicit cart lines.
type QuoteInput struct {
	Selection
	Lines []pricing.CartLine
}

// ItemRequest asks for qty units of a catalog product.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// PolicyRef identifies the policy a quote was priced with.
type PolicyRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Quote is a priced checkout together with the policies that produced it.
type Quote struct {
	pricing.Result
	Promotion         PolicyRef `json:"promotion"`
	PromotionAutoPick bool      `json:"promotionAutoSelected"`
	TaxPolicy         PolicyRef `json:"taxPolicy"`
	ShippingPolicy    PolicyRef `json:"shippingPolicy"`
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Policies              policy.Catalog
	Products              ProductLookup
	Carts                 CartSource
	DefaultTaxPolicy      string
	DefaultShippingPolicy string
	Logger                zerolog.Logger
}

// Service prices carts. It never creates orders.
type Service struct {
	policies        policy.Catalog
	products        ProductLookup
	carts           CartSource
	defaultTax      string
	defaultShipping string
	logger          zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Policies == nil {
		return nil, errors.New("checkout: policy catalog is required")
	}
	svc := &Service{
		policies:        cfg.Policies,
		products:        cfg.Products,
		carts:           cfg.Carts,
		defaultTax:      strings.TrimSpace(cfg.DefaultTaxPolicy),
		defaultShipping: strings.TrimSpace(cfg.DefaultShippingPolicy),
		logger:          cfg.Logger,
	}
	if svc.defaultTax == "" {
		svc.defaultTax = defaultTaxPolicyID
	}
	if svc.defaultShipping == "" {
		svc.defaultShipping = defaultShippingPolicyID
	}
	return svc, nil
}

// Quote validates the lines, resolves the selected policies and prices the cart.
func (s *Service) Quote(ctx context.Context, in QuoteInput) (q Quote, err error) {
	ctx, span := otel.Tracer("checkout").Start(ctx, "checkout.Quote")
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		promotionLabel := q.Promotion.ID
		if promotionLabel == "" {
			promotionLabel = "unresolved"
		}
		if obs.CheckoutQuotesTotal != nil {
			obs.CheckoutQuotesTotal.WithLabelValues(promotionLabel, result).Inc()
		}
		if obs.CheckoutQuoteDuration != nil {
			obs.CheckoutQuoteDuration.Observe(obs.DurationMillis(time.Since(start)))
		}
		span.End()
	}()
	span.SetAttributes(attribute.Int("checkout.lines", len(in.Lines)))

	if err := pricing.ValidateLines(in.Lines); err != nil {
		return Quote{}, err
	}

	policies, err := policy.Snapshot(ctx, s.policies)
	if err != nil {
		return Quote{}, fmt.Errorf("load policies: %w", err)
	}
	tax, err := policy.ResolveTaxPolicy(ctx, policies, lo.Ternary(in.TaxPolicyID != "", in.TaxPolicyID, s.defaultTax))
	if err != nil {
		return Quote{}, err
	}
	shipping, err := policy.ResolveShippingPolicy(ctx, policies, lo.Ternary(in.ShippingPolicyID != "", in.ShippingPolicyID, s.defaultShipping))
	if err != nil {
		return Quote{}, err
	}

	var (
		promo  policy.Promotion
		result pricing.Result
		auto   bool
	)
	if strings.TrimSpace(in.PromotionID) == "" {
		promo, result, err = s.bestPromotion(ctx, policies, in.Lines, tax.Rule, shipping)
		if err != nil {
			return Quote{}, err
		}
		auto = true
	} else {
		promo, err = policy.ResolvePromotion(ctx, policies, in.PromotionID)
		if err != nil {
			return Quote{}, err
		}
		result = pricing.Checkout(in.Lines, promo.Rule, tax.Rule, shipping)
	}

	span.SetAttributes(
		attribute.String("checkout.promotion", promo.ID),
		attribute.Bool("checkout.promotion_auto", auto),
		attribute.String("checkout.tax_policy", tax.ID),
		attribute.String("checkout.shipping_policy", shipping.ID),
		attribute.String("checkout.total", result.Total.String()),
	)
	s.logger.Debug().
		Str("promotion", promo.ID).
		Bool("auto", auto).
		Str("tax_policy", tax.ID).
		Str("shipping_policy", shipping.ID).
		Str("total", result.Total.String()).
		Msg("checkout_quote")

	return Quote{
		Result:            result,
		Promotion:         PolicyRef{ID: promo.ID, Name: promo.Name},
		PromotionAutoPick: auto,
		TaxPolicy:         PolicyRef{ID: tax.ID, Name: tax.Name},
		ShippingPolicy:    PolicyRef{ID: shipping.ID, Name: shipping.Name},
	}, nil
}

// QuoteItems prices catalog products by id. Prices and the digital flag always come
// from the catalog.
func (s *Service) QuoteItems(ctx context.Context, items []ItemRequest, sel Selection) (Quote, error) {
	if s.products == nil {
		return Quote{}, errors.New("checkout: product lookup not configured")
	}
	lines := make([]pricing.CartLine, 0, len(items))
	for _, it := range items {
		p, err := s.products.Get(ctx, it.ProductID)
		if err != nil {
			return Quote{}, err
		}
		lines = append(lines, p.CartLine(it.Quantity))
	}
	return s.Quote(ctx, QuoteInput{Selection: sel, Lines: mergeLines(lines)})
}

// QuoteCart prices a stored cart.
func (s *Service) QuoteCart(ctx context.Context, cartID string, sel Selection) (Quote, error) {
	if s.carts == nil {
		return Quote{}, errors.New("checkout: cart source not configured")
	}
	c, err := s.carts.Get(ctx, cartID)
	if err != nil {
		return Quote{}, err
	}
	if len(c.Items) == 0 {
		return Quote{}, ErrEmptyCart
	}
	return s.Quote(ctx, QuoteInput{Selection: sel, Lines: c.Lines()})
}

func (s *Service) bestPromotion(ctx context.Context, policies policy.Catalog, lines []pricing.CartLine, tax pricing.TaxPolicy, shipping pricing.ShippingPolicy) (policy.Promotion, pricing.Result, error) {
	promos, err := policies.ListPromotions(ctx)
	if err != nil {
		return policy.Promotion{}, pricing.Result{}, fmt.Errorf("list promotions: %w", err)
	}
	rules := lo.Map(promos, func(p policy.Promotion, _ int) pricing.Promotion { return p.Rule })
	idx, result, ok := pricing.BestPromotion(lines, rules, tax, shipping)
	if !ok {
		return policy.Promotion{ID: pricing.KindNone, Rule: pricing.NoPromotion{}}, pricing.Checkout(lines, pricing.NoPromotion{}, tax, shipping), nil
	}
	if obs.CheckoutBestPromotionTotal != nil {
		obs.CheckoutBestPromotionTotal.WithLabelValues(promos[idx].ID).Inc()
	}
	return promos[idx], result, nil
}

// mergeLines folds repeated product ids into one line so per-line promotions see the
// full quantity.
func mergeLines(lines []pricing.CartLine) []pricing.CartLine {
	out := make([]pricing.CartLine, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}
