package pricing

import "github.com/shopspring/decimal"

// Tax policy kinds as they appear in policy documents.
const (
	TaxKindNone        = "no-tax"
	TaxKindFlat        = "flat"
	TaxKindProgressive = "progressive"
)

// TaxPolicy is a closed set of tax rules.
type TaxPolicy interface {
	Kind() string
	tax(subtotal Money, hasDigitalItems bool) Money
}

// NoTax levies nothing.
type NoTax struct{}

// FlatRate taxes the subtotal at Rate (0-1). With DigitalOnly set, carts without a
// digital line are not taxed at all.
type FlatRate struct {
	Rate        Money
	DigitalOnly bool
}

// Progressive taxes the whole subtotal at the rate of the bracket it falls into.
// Brackets are cliffs, not marginal bands: crossing a boundary re-rates every unit.
type Progressive struct{}

// Bracket caps the subtotal (inclusive) that is taxed at Rate.
type Bracket struct {
	UpTo Money
	Rate Money
}

var progressiveBrackets = []Bracket{
	{UpTo: decimal.NewFromInt(10_000), Rate: decimal.RequireFromString("0.05")},
	{UpTo: decimal.NewFromInt(50_000), Rate: decimal.RequireFromString("0.10")},
}

var progressiveTopRate = decimal.RequireFromString("0.15")

// ProgressiveBrackets returns a copy of the progressive schedule, lowest bracket first.
// Subtotals above the last bracket use ProgressiveTopRate.
func ProgressiveBrackets() []Bracket {
	out := make([]Bracket, len(progressiveBrackets))
	copy(out, progressiveBrackets)
	return out
}

// ProgressiveTopRate is the rate applied above the highest bracket.
func ProgressiveTopRate() Money { return progressiveTopRate }

// ComputeTax returns the tax owed on subtotal. A nil policy behaves like NoTax.
func ComputeTax(subtotal Money, policy TaxPolicy, hasDigitalItems bool) Money {
	if policy == nil {
		return decimal.Zero
	}
	return policy.tax(subtotal, hasDigitalItems)
}

func (NoTax) Kind() string { return TaxKindNone }

func (NoTax) tax(Money, bool) Money { return decimal.Zero }

func (FlatRate) Kind() string { return TaxKindFlat }

func (f FlatRate) tax(subtotal Money, hasDigitalItems bool) Money {
	if f.DigitalOnly && !hasDigitalItems {
		return decimal.Zero
	}
	return subtotal.Mul(f.Rate)
}

func (Progressive) Kind() string { return TaxKindProgressive }

func (Progressive) tax(subtotal Money, _ bool) Money {
	for _, b := range progressiveBrackets {
		if subtotal.LessThanOrEqual(b.UpTo) {
			return subtotal.Mul(b.Rate)
		}
	}
	return subtotal.Mul(progressiveTopRate)
}
