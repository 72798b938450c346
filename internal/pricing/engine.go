package pricing

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Money represents a monetary value in the store currency.
type Money = decimal.Decimal

// CartLine describes a line item used for pricing calculation.
type CartLine struct {
	ProductID   string
	ProductName string
	UnitPrice   Money
	Quantity    int
	Digital     bool
}

// LineBreakdown is the priced view of a single cart line.
type LineBreakdown struct {
	ProductID       string `json:"productId"`
	ProductName     string `json:"productName"`
	Quantity        int    `json:"quantity"`
	BasePrice       Money  `json:"basePrice"`
	DiscountedPrice Money  `json:"discountedPrice"`
	Discount        Money  `json:"discount"`
}

// Result aggregates computed pricing components.
type Result struct {
	Lines          []LineBreakdown `json:"lines"`
	ItemsTotal     Money           `json:"itemsTotal"`
	Subtotal       Money           `json:"subtotal"`
	DiscountAmount Money           `json:"discountAmount"`
	TaxAmount      Money           `json:"taxAmount"`
	ShippingCost   Money           `json:"shippingCost"`
	Total          Money           `json:"total"`
}

// Checkout prices every line under the promotion, then levies tax and shipping on the
// post-discount subtotal. Shipping is never taxed.
func Checkout(lines []CartLine, promotion Promotion, tax TaxPolicy, shipping ShippingPolicy) Result {
	breakdown := make([]LineBreakdown, 0, len(lines))
	itemsTotal := decimal.Zero
	subtotal := decimal.Zero
	for _, line := range lines {
		base := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		discounted := PriceLine(line.UnitPrice, line.Quantity, promotion)
		itemsTotal = itemsTotal.Add(base)
		subtotal = subtotal.Add(discounted)
		breakdown = append(breakdown, LineBreakdown{
			ProductID:       line.ProductID,
			ProductName:     line.ProductName,
			Quantity:        line.Quantity,
			BasePrice:       base,
			DiscountedPrice: discounted,
			Discount:        base.Sub(discounted),
		})
	}

	hasDigital := lo.SomeBy(lines, func(line CartLine) bool { return line.Digital })
	taxAmount := ComputeTax(subtotal, tax, hasDigital)
	shippingCost := ComputeShipping(subtotal, shipping)

	return Result{
		Lines:          breakdown,
		ItemsTotal:     itemsTotal,
		Subtotal:       subtotal,
		DiscountAmount: itemsTotal.Sub(subtotal),
		TaxAmount:      taxAmount,
		ShippingCost:   shippingCost,
		Total:          subtotal.Add(taxAmount).Add(shippingCost),
	}
}
