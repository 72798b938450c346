package catalog

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// ErrProductNotFound is returned when no product has the requested identifier.
var ErrProductNotFound = errors.New("catalog: product not found")

// Limits enforced on writable product fields.
var (
	MaxPrice    = decimal.NewFromInt(1_000_000)
	MaxQuantity = 1_000_000
)

// StockStatus is the availability badge shown next to a product.
type StockStatus string

const (
	StockInStock    StockStatus = "IN_STOCK"
	StockLow        StockStatus = "LOW"
	StockOutOfStock StockStatus = "OUT_OF_STOCK"
)

// ProductType distinguishes goods that ship from goods that are delivered digitally.
type ProductType string

const (
	TypePhysical ProductType = "physical"
	TypeDigital  ProductType = "digital"
)

// lowStockThreshold is the quantity at or below which a product is badged LOW.
const lowStockThreshold = 5

// Product is a storefront item.
type Product struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name" validate:"required,min=2,max=120"`
	Description string        `json:"description" yaml:"description" validate:"max=200"`
	Price       pricing.Money `json:"price" yaml:"-"`
	Quantity    int           `json:"quantity" yaml:"quantity" validate:"gte=0,lte=1000000"`
	Category    string        `json:"category,omitempty" yaml:"category" validate:"omitempty,max=60"`
	StockStatus StockStatus   `json:"stockStatus" yaml:"stockStatus" validate:"omitempty,oneof=IN_STOCK LOW OUT_OF_STOCK"`
	Type        ProductType   `json:"type" yaml:"type" validate:"required,oneof=physical digital"`
	Image       string        `json:"image,omitempty" yaml:"image"`
}

// IsDigital reports whether the product is delivered digitally.
func (p Product) IsDigital() bool {
	return p.Type == TypeDigital
}

// CartLine builds the pricing line for qty units of the product.
func (p Product) CartLine(qty int) pricing.CartLine {
	return pricing.CartLine{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		Quantity:    qty,
		Digital:     p.IsDigital(),
	}
}

// stockStatusFor derives a badge from the quantity on hand.
func stockStatusFor(quantity int) StockStatus {
	switch {
	case quantity <= 0:
		return StockOutOfStock
	case quantity <= lowStockThreshold:
		return StockLow
	default:
		return StockInStock
	}
}
