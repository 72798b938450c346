package checkout_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/policy"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

type fixture struct {
	svc   *checkout.Service
	carts *cart.Service
}

func newFixture(t *testing.T, policies policy.Catalog) fixture {
	t.Helper()
	repo, err := catalog.LoadRepository("")
	require.NoError(t, err)
	products, err := catalog.NewService(catalog.ServiceConfig{Store: repo, Logger: zerolog.Nop()})
	require.NoError(t, err)

	seq := 0
	carts, err := cart.NewService(cart.ServiceConfig{
		Store:    cart.NewMemoryStore(),
		Products: products,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) },
		NewID: func() string {
			seq++
			return fmt.Sprintf("cart-%d", seq)
		},
	})
	require.NoError(t, err)

	if policies == nil {
		policies = policy.Default()
	}
	svc, err := checkout.NewService(checkout.ServiceConfig{
		Policies: policies,
		Products: products,
		Carts:    carts,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return fixture{svc: svc, carts: carts}
}

func staticCatalog(t *testing.T, doc string) *policy.Static {
	t.Helper()
	parsed, err := policy.ParseDocument([]byte(doc))
	require.NoError(t, err)
	s, err := policy.NewStatic(parsed)
	require.NoError(t, err)
	return s
}

func requireMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestNewServiceRequiresPolicies(t *testing.T) {
	_, err := checkout.NewService(checkout.ServiceConfig{})
	require.Error(t, err)
}

func TestQuoteItemsWithExplicitPolicies(t *testing.T) {
	f := newFixture(t, nil)
	q, err := f.svc.QuoteItems(context.Background(), []checkout.ItemRequest{{ProductID: "4", Quantity: 3}}, checkout.Selection{
		PromotionID:      "buy3-pay2",
		TaxPolicyID:      "flat-vat-12",
		ShippingPolicyID: "pigeon-standard",
	})
	require.NoError(t, err)
	require.False(t, q.PromotionAutoPick)
	require.Equal(t, "buy3-pay2", q.Promotion.ID)
	require.Equal(t, "flat-vat-12", q.TaxPolicy.ID)
	require.Equal(t, "pigeon-standard", q.ShippingPolicy.ID)
	requireMoney(t, "3600", q.ItemsTotal)
	requireMoney(t, "2400", q.Subtotal)
	requireMoney(t, "1200", q.DiscountAmount)
	requireMoney(t, "288", q.TaxAmount)
	requireMoney(t, "800", q.ShippingCost)
	requireMoney(t, "3488", q.Total)
	require.Len(t, q.Lines, 1)
	require.Equal(t, "Футболка \"Перемен!\"", q.Lines[0].ProductName)
}

func TestQuoteItemsMergesRepeatedProducts(t *testing.T) {
	f := newFixture(t, nil)
	q, err := f.svc.QuoteItems(context.Background(), []checkout.ItemRequest{
		{ProductID: "4", Quantity: 1},
		{ProductID: "4", Quantity: 2},
	}, checkout.Selection{PromotionID: "buy3-pay2", TaxPolicyID: "no-tax"})
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	require.Equal(t, 3, q.Lines[0].Quantity)
	requireMoney(t, "2400", q.Total)
}

func TestQuoteSelectsBestPromotion(t *testing.T) {
	f := newFixture(t, nil)
	q, err := f.svc.QuoteItems(context.Background(), []checkout.ItemRequest{{ProductID: "1", Quantity: 2}}, checkout.Selection{})
	require.NoError(t, err)
	require.True(t, q.PromotionAutoPick)
	require.Equal(t, "bogo-half", q.Promotion.ID)
	require.Equal(t, "progressive", q.TaxPolicy.ID)
	require.Equal(t, "none", q.ShippingPolicy.ID)
	requireMoney(t, "12500", q.DiscountAmount)
	requireMoney(t, "37500", q.Subtotal)
	requireMoney(t, "3750", q.TaxAmount)
	requireMoney(t, "0", q.ShippingCost)
	requireMoney(t, "41250", q.Total)
}

func TestQuoteBestPromotionTieKeepsFirst(t *testing.T) {
	policies := staticCatalog(t, `
promotions:
  - {id: first, name: First, type: percentage, value: 10}
  - {id: second, name: Second, type: percentage, value: 10}
taxPolicies:
  - {id: progressive, name: Progressive, type: progressive}
shippingPolicies:
  - {id: none, name: Pickup, cost: 0}
`)
	f := newFixture(t, policies)
	q, err := f.svc.Quote(context.Background(), checkout.QuoteInput{Lines: []pricing.CartLine{
		{ProductID: "x", UnitPrice: decimal.NewFromInt(1000), Quantity: 1},
	}})
	require.NoError(t, err)
	require.Equal(t, "first", q.Promotion.ID)
	requireMoney(t, "100", q.DiscountAmount)
}

func TestQuoteWithoutPromotionsFallsBackToNone(t *testing.T) {
	policies := staticCatalog(t, `
taxPolicies:
  - {id: progressive, name: Progressive, type: progressive}
shippingPolicies:
  - {id: none, name: Pickup, cost: 0}
`)
	f := newFixture(t, policies)
	q, err := f.svc.Quote(context.Background(), checkout.QuoteInput{Lines: []pricing.CartLine{
		{ProductID: "x", UnitPrice: decimal.NewFromInt(20000), Quantity: 1},
	}})
	require.NoError(t, err)
	require.Equal(t, pricing.KindNone, q.Promotion.ID)
	requireMoney(t, "0", q.DiscountAmount)
	requireMoney(t, "2000", q.TaxAmount)
	requireMoney(t, "22000", q.Total)
}

func TestQuoteUnresolvedPolicies(t *testing.T) {
	f := newFixture(t, nil)
	lines := []pricing.CartLine{{ProductID: "x", UnitPrice: decimal.NewFromInt(100), Quantity: 1}}
	cases := []checkout.Selection{
		{PromotionID: "black-friday"},
		{TaxPolicyID: "moon-tax"},
		{ShippingPolicyID: "teleport"},
	}
	for _, sel := range cases {
		_, err := f.svc.Quote(context.Background(), checkout.QuoteInput{Selection: sel, Lines: lines})
		require.ErrorIs(t, err, policy.ErrUnresolvedPolicy)
	}
}

func TestQuoteRejectsInvalidLines(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.Quote(context.Background(), checkout.QuoteInput{Lines: []pricing.CartLine{
		{ProductID: "x", UnitPrice: decimal.NewFromInt(100), Quantity: 0},
	}})
	require.ErrorIs(t, err, pricing.ErrInvalidQuantity)

	_, err = f.svc.Quote(context.Background(), checkout.QuoteInput{Lines: []pricing.CartLine{
		{ProductID: "x", UnitPrice: decimal.NewFromInt(-1), Quantity: 1},
	}})
	require.ErrorIs(t, err, pricing.ErrInvalidPrice)
}

func TestQuoteEmptyLines(t *testing.T) {
	f := newFixture(t, nil)
	q, err := f.svc.Quote(context.Background(), checkout.QuoteInput{Selection: checkout.Selection{ShippingPolicyID: "pigeon-standard"}})
	require.NoError(t, err)
	require.Empty(t, q.Lines)
	requireMoney(t, "0", q.Subtotal)
	requireMoney(t, "800", q.Total)
}

func TestQuoteItemsUnknownProduct(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.QuoteItems(context.Background(), []checkout.ItemRequest{{ProductID: "404", Quantity: 1}}, checkout.Selection{})
	require.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestQuoteCart(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	c, err := f.carts.Create(ctx)
	require.NoError(t, err)

	_, err = f.svc.QuoteCart(ctx, c.ID, checkout.Selection{})
	require.ErrorIs(t, err, checkout.ErrEmptyCart)

	_, err = f.carts.AddItem(ctx, c.ID, "2", 2)
	require.NoError(t, err)
	q, err := f.svc.QuoteCart(ctx, c.ID, checkout.Selection{PromotionID: "none", TaxPolicyID: "flat-vat-5"})
	require.NoError(t, err)
	requireMoney(t, "5000", q.Subtotal)
	requireMoney(t, "250", q.TaxAmount)
	requireMoney(t, "5250", q.Total)

	_, err = f.svc.QuoteCart(ctx, "missing", checkout.Selection{})
	require.ErrorIs(t, err, cart.ErrCartNotFound)
}

const (
	policyDocumentA = `{
  "promotions": [{"id": "seasonal", "name": "Seasonal", "type": "percentage", "value": 10}],
  "taxPolicies": [{"id": "vat", "name": "VAT", "type": "flat", "rate": 0.1}],
  "shippingPolicies": [{"id": "courier", "name": "Courier", "cost": 100}]
}`
	policyDocumentB = `{
  "promotions": [{"id": "seasonal", "name": "Seasonal", "type": "percentage", "value": 50}],
  "taxPolicies": [{"id": "vat", "name": "VAT", "type": "flat", "rate": 0.5}],
  "shippingPolicies": [{"id": "courier", "name": "Courier", "cost": 900}]
}`
)

func TestQuoteResolvesPoliciesFromOneRemoteDocument(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if n%2 == 1 {
			_, _ = w.Write([]byte(policyDocumentA))
			return
		}
		_, _ = w.Write([]byte(policyDocumentB))
	}))
	t.Cleanup(srv.Close)

	// Every read sees an expired document so each lookup would refetch.
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	remote := policy.NewRemote(policy.RemoteConfig{
		URL:             srv.URL,
		Timeout:         time.Second,
		RefreshInterval: time.Second,
		Logger:          zerolog.Nop(),
		Client:          &http.Client{},
		Now:             clock,
	})
	f := newFixture(t, remote)
	ctx := context.Background()
	items := []checkout.ItemRequest{{ProductID: "4", Quantity: 1}}
	sel := checkout.Selection{PromotionID: "seasonal", TaxPolicyID: "vat", ShippingPolicyID: "courier"}

	q, err := f.svc.QuoteItems(ctx, items, sel)
	require.NoError(t, err)
	require.EqualValues(t, 1, calls.Load())
	requireMoney(t, "120", q.DiscountAmount)
	requireMoney(t, "108", q.TaxAmount)
	requireMoney(t, "100", q.ShippingCost)
	requireMoney(t, "1288", q.Total)

	q, err = f.svc.QuoteItems(ctx, items, checkout.Selection{TaxPolicyID: "vat", ShippingPolicyID: "courier"})
	require.NoError(t, err)
	require.EqualValues(t, 2, calls.Load())
	require.True(t, q.PromotionAutoPick)
	requireMoney(t, "600", q.DiscountAmount)
	requireMoney(t, "300", q.TaxAmount)
	requireMoney(t, "900", q.ShippingCost)
	requireMoney(t, "1800", q.Total)
}
