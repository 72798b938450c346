package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"
)

// BestPromotion prices the cart once per candidate and returns the index of the
// candidate with the largest discount together with its result. The scan starts at the
// first candidate with a running maximum of zero and only moves on a strictly larger
// discount, so ties and all-zero discounts keep the lowest index. ok is false when
// there are no candidates.
func BestPromotion(lines []CartLine, candidates []Promotion, tax TaxPolicy, shipping ShippingPolicy) (index int, result Result, ok bool) {
	if len(candidates) == 0 {
		return -1, Result{}, false
	}
	results := iter.Map(candidates, func(p *Promotion) Result {
		return Checkout(lines, *p, tax, shipping)
	})

	best := 0
	maxDiscount := decimal.Zero
	for i, res := range results {
		if res.DiscountAmount.GreaterThan(maxDiscount) {
			best = i
			maxDiscount = res.DiscountAmount
		}
	}
	return best, results[best], true
}
