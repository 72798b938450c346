package pricing

import "github.com/shopspring/decimal"

// Promotion kinds as they appear in policy documents.
const (
	KindNone           = "none"
	KindPercentage     = "percentage"
	KindFixed          = "fixed"
	KindBogoHalf       = "bogo-half"
	KindBuyThreePayTwo = "buy3-pay2"
)

var (
	hundred      = decimal.NewFromInt(100)
	onePointFive = decimal.RequireFromString("1.5")
)

// Promotion is a closed set of promotional pricing rules. Only the variants declared in
// this package implement it.
type Promotion interface {
	Kind() string
	priceLine(unitPrice Money, quantity int64) Money
}

// NoPromotion charges full price.
type NoPromotion struct{}

// PercentageOff takes Percent (0-100) off the line.
type PercentageOff struct {
	Percent Money
}

// FixedAmountOff reduces every unit by Amount, never below zero.
type FixedAmountOff struct {
	Amount Money
}

// BuyOneGetSecondHalfOff charges the second unit of every pair at 50%.
type BuyOneGetSecondHalfOff struct{}

// BuyThreeForTwo makes every third unit free.
type BuyThreeForTwo struct{}

// PriceLine returns the promotional total for quantity units of unitPrice. A nil
// promotion behaves like NoPromotion. The result is never negative.
func PriceLine(unitPrice Money, quantity int, promotion Promotion) Money {
	if quantity <= 0 {
		return decimal.Zero
	}
	if promotion == nil {
		promotion = NoPromotion{}
	}
	total := promotion.priceLine(unitPrice, int64(quantity))
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func (NoPromotion) Kind() string { return KindNone }

func (NoPromotion) priceLine(unitPrice Money, quantity int64) Money {
	return unitPrice.Mul(decimal.NewFromInt(quantity))
}

func (PercentageOff) Kind() string { return KindPercentage }

func (p PercentageOff) priceLine(unitPrice Money, quantity int64) Money {
	factor := decimal.NewFromInt(1).Sub(p.Percent.Div(hundred))
	return unitPrice.Mul(decimal.NewFromInt(quantity)).Mul(factor)
}

func (FixedAmountOff) Kind() string { return KindFixed }

func (f FixedAmountOff) priceLine(unitPrice Money, quantity int64) Money {
	unit := unitPrice.Sub(f.Amount)
	if unit.IsNegative() {
		unit = decimal.Zero
	}
	return unit.Mul(decimal.NewFromInt(quantity))
}

func (BuyOneGetSecondHalfOff) Kind() string { return KindBogoHalf }

func (BuyOneGetSecondHalfOff) priceLine(unitPrice Money, quantity int64) Money {
	pairs := decimal.NewFromInt(quantity / 2)
	singles := decimal.NewFromInt(quantity % 2)
	return unitPrice.Mul(onePointFive).Mul(pairs).Add(unitPrice.Mul(singles))
}

func (BuyThreeForTwo) Kind() string { return KindBuyThreePayTwo }

func (BuyThreeForTwo) priceLine(unitPrice Money, quantity int64) Money {
	if quantity < 3 {
		return unitPrice.Mul(decimal.NewFromInt(quantity))
	}
	free := quantity / 3
	return unitPrice.Mul(decimal.NewFromInt(quantity - free))
}
