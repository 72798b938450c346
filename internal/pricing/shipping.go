package pricing

import "github.com/shopspring/decimal"

// ShippingPolicy charges FlatCost unless the subtotal reaches FreeAboveThreshold.
// Free pickup is a policy with a zero FlatCost.
type ShippingPolicy struct {
	ID                 string
	Name               string
	FlatCost           Money
	FreeAboveThreshold *Money
}

// ComputeShipping returns the shipping cost for a post-discount subtotal.
func ComputeShipping(subtotal Money, policy ShippingPolicy) Money {
	if policy.FreeAboveThreshold != nil && subtotal.GreaterThanOrEqual(*policy.FreeAboveThreshold) {
		return decimal.Zero
	}
	return policy.FlatCost
}
