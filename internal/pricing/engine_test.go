package pricing

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func sampleCart() []CartLine {
	return []CartLine{
		{ProductID: "1", ProductName: "Guitar", UnitPrice: money("25000"), Quantity: 1},
		{ProductID: "2", ProductName: "Vinyl", UnitPrice: money("2500"), Quantity: 2, Digital: true},
	}
}

func TestCheckout(t *testing.T) {
	res := Checkout(sampleCart(), PercentageOff{Percent: money("15")}, Progressive{}, ShippingPolicy{ID: "pigeon-standard", FlatCost: money("800")})

	require.Len(t, res.Lines, 2)
	require.Equal(t, "Guitar", res.Lines[0].ProductName)
	requireMoney(t, "25000", res.Lines[0].BasePrice)
	requireMoney(t, "21250", res.Lines[0].DiscountedPrice)
	requireMoney(t, "3750", res.Lines[0].Discount)
	requireMoney(t, "5000", res.Lines[1].BasePrice)
	requireMoney(t, "4250", res.Lines[1].DiscountedPrice)

	requireMoney(t, "30000", res.ItemsTotal)
	requireMoney(t, "25500", res.Subtotal)
	requireMoney(t, "4500", res.DiscountAmount)
	requireMoney(t, "2550", res.TaxAmount)
	requireMoney(t, "800", res.ShippingCost)
	requireMoney(t, "28850", res.Total)
}

func TestCheckoutEmptyCart(t *testing.T) {
	res := Checkout(nil, PercentageOff{Percent: money("15")}, FlatRate{Rate: money("0.12")}, ShippingPolicy{FlatCost: decimal.Zero})
	require.NotNil(t, res.Lines)
	require.Empty(t, res.Lines)
	for _, v := range []Money{res.ItemsTotal, res.Subtotal, res.DiscountAmount, res.TaxAmount, res.ShippingCost, res.Total} {
		require.True(t, v.IsZero())
	}
}

func TestCheckoutShippingThresholdUsesDiscountedSubtotal(t *testing.T) {
	threshold := money("50000")
	lines := []CartLine{{ProductID: "3", UnitPrice: money("52000"), Quantity: 1}}
	ship := ShippingPolicy{ID: "free-over-50k", FlatCost: money("1000"), FreeAboveThreshold: &threshold}

	full := Checkout(lines, NoPromotion{}, NoTax{}, ship)
	requireMoney(t, "0", full.ShippingCost)

	discounted := Checkout(lines, PercentageOff{Percent: money("15")}, NoTax{}, ship)
	requireMoney(t, "44200", discounted.Subtotal)
	requireMoney(t, "1000", discounted.ShippingCost)
	requireMoney(t, "45200", discounted.Total)
}

func TestCheckoutTaxExcludesShipping(t *testing.T) {
	lines := []CartLine{{ProductID: "4", UnitPrice: money("1000"), Quantity: 1}}
	res := Checkout(lines, nil, FlatRate{Rate: money("0.12")}, ShippingPolicy{FlatCost: money("5000")})
	requireMoney(t, "120", res.TaxAmount)
	requireMoney(t, "6120", res.Total)
}

func TestCheckoutDigitalOnlyTax(t *testing.T) {
	digitalOnly := FlatRate{Rate: money("0.05"), DigitalOnly: true}
	physical := []CartLine{{ProductID: "7", UnitPrice: money("500"), Quantity: 2}}
	requireMoney(t, "0", Checkout(physical, nil, digitalOnly, ShippingPolicy{}).TaxAmount)

	mixed := append(physical, CartLine{ProductID: "11", UnitPrice: money("1500"), Quantity: 1, Digital: true})
	requireMoney(t, "125", Checkout(mixed, nil, digitalOnly, ShippingPolicy{}).TaxAmount)
}

func TestCheckoutInvariantsHoldForRandomInputs(t *testing.T) {
	rng := rand.New(rand.NewSource(20240315))
	for i := 0; i < 500; i++ {
		lines := randomLines(rng)
		promo := randomPromotion(rng)
		tax := randomTaxPolicy(rng)
		ship := randomShippingPolicy(rng)

		res := Checkout(lines, promo, tax, ship)

		require.Truef(t, res.Total.Equal(res.Subtotal.Add(res.TaxAmount).Add(res.ShippingCost)), "iteration %d: total mismatch", i)
		require.Truef(t, res.Subtotal.Equal(res.ItemsTotal.Sub(res.DiscountAmount)), "iteration %d: subtotal mismatch", i)
		require.Falsef(t, res.Subtotal.IsNegative(), "iteration %d: negative subtotal", i)
		require.Falsef(t, res.TaxAmount.IsNegative(), "iteration %d: negative tax", i)
		require.Len(t, res.Lines, len(lines))
		for _, line := range res.Lines {
			require.Falsef(t, line.Discount.IsNegative(), "iteration %d: %s raised price of %s", i, promo.Kind(), line.ProductID)
			require.True(t, line.DiscountedPrice.LessThanOrEqual(line.BasePrice))
		}
	}
}

func randomLines(rng *rand.Rand) []CartLine {
	n := rng.Intn(6)
	lines := make([]CartLine, 0, n)
	for i := 0; i < n; i++ {
		cents := rng.Int63n(20_000_000)
		lines = append(lines, CartLine{
			ProductID: string(rune('a' + i)),
			UnitPrice: decimal.New(cents, -2),
			Quantity:  1 + rng.Intn(10),
			Digital:   rng.Intn(2) == 0,
		})
	}
	return lines
}

func randomPromotion(rng *rand.Rand) Promotion {
	switch rng.Intn(5) {
	case 0:
		return NoPromotion{}
	case 1:
		return PercentageOff{Percent: decimal.NewFromInt(rng.Int63n(101))}
	case 2:
		return FixedAmountOff{Amount: decimal.NewFromInt(rng.Int63n(100_000))}
	case 3:
		return BuyOneGetSecondHalfOff{}
	default:
		return BuyThreeForTwo{}
	}
}

func randomTaxPolicy(rng *rand.Rand) TaxPolicy {
	switch rng.Intn(3) {
	case 0:
		return NoTax{}
	case 1:
		return FlatRate{Rate: decimal.New(rng.Int63n(101), -2), DigitalOnly: rng.Intn(2) == 0}
	default:
		return Progressive{}
	}
}

func randomShippingPolicy(rng *rand.Rand) ShippingPolicy {
	policy := ShippingPolicy{FlatCost: decimal.NewFromInt(rng.Int63n(5001))}
	if rng.Intn(2) == 0 {
		threshold := decimal.NewFromInt(rng.Int63n(100_000))
		policy.FreeAboveThreshold = &threshold
	}
	return policy
}

func TestBestPromotion(t *testing.T) {
	candidates := []Promotion{NoPromotion{}, PercentageOff{Percent: money("15")}}
	ship := ShippingPolicy{ID: "none"}

	t.Run("picks the larger discount", func(t *testing.T) {
		idx, res, ok := BestPromotion(sampleCart(), candidates, Progressive{}, ship)
		require.True(t, ok)
		require.Equal(t, 1, idx)
		requireMoney(t, "4500", res.DiscountAmount)
	})

	t.Run("no discount keeps the first candidate", func(t *testing.T) {
		idx, res, ok := BestPromotion(nil, candidates, Progressive{}, ship)
		require.True(t, ok)
		require.Equal(t, 0, idx)
		require.True(t, res.Total.IsZero())
	})

	t.Run("first candidate wins a tie", func(t *testing.T) {
		lines := []CartLine{{ProductID: "x", UnitPrice: money("100"), Quantity: 2}}
		tied := []Promotion{BuyThreeForTwo{}, FixedAmountOff{Amount: money("25")}, BuyOneGetSecondHalfOff{}}
		idx, res, ok := BestPromotion(lines, tied, NoTax{}, ship)
		require.True(t, ok)
		require.Equal(t, 1, idx)
		requireMoney(t, "50", res.DiscountAmount)
	})

	t.Run("largest discount is first", func(t *testing.T) {
		idx, _, ok := BestPromotion(sampleCart(), []Promotion{PercentageOff{Percent: money("50")}, NoPromotion{}}, NoTax{}, ship)
		require.True(t, ok)
		require.Equal(t, 0, idx)
	})

	t.Run("no candidates", func(t *testing.T) {
		idx, _, ok := BestPromotion(sampleCart(), nil, NoTax{}, ship)
		require.False(t, ok)
		require.Equal(t, -1, idx)
	})
}

func TestValidateLines(t *testing.T) {
	require.NoError(t, ValidateLines(sampleCart()))
	require.NoError(t, ValidateLines(nil))

	err := ValidateLines([]CartLine{{ProductID: "1", UnitPrice: money("10"), Quantity: 0}})
	require.True(t, errors.Is(err, ErrInvalidQuantity))

	err = ValidateLines([]CartLine{{ProductID: "1", UnitPrice: money("-1"), Quantity: 1}})
	require.True(t, errors.Is(err, ErrInvalidPrice))
	require.Contains(t, err.Error(), "line 0 (1)")
}
