package cart

import (
	"errors"
	"time"

	"github.com/samber/lo"

	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

var (
	// ErrCartNotFound indicates the requested cart could not be located.
	ErrCartNotFound = errors.New("cart: cart not found")
	// ErrItemNotFound indicates the cart holds no line for the product.
	ErrItemNotFound = errors.New("cart: item not found")
	// ErrInvalidQuantity is returned when adding a non-positive quantity.
	ErrInvalidQuantity = errors.New("cart: quantity must be positive")
	// ErrOutOfStock is returned when adding a product that cannot be sold.
	ErrOutOfStock = errors.New("cart: product is out of stock")
)

// Item is one cart line with a snapshot of the product taken when it was last priced.
type Item struct {
	ProductID string        `json:"productId"`
	Name      string        `json:"name"`
	UnitPrice pricing.Money `json:"unitPrice"`
	Quantity  int           `json:"quantity"`
	Digital   bool          `json:"digital"`
}

// Cart is a value: every operation returns a new cart and leaves the receiver untouched.
type Cart struct {
	ID        string    `json:"id"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New returns an empty cart.
func New(id string, now time.Time) Cart {
	return Cart{ID: id, Items: []Item{}, UpdatedAt: now}
}

// Add puts qty units of product in the cart, incrementing an existing line.
func (c Cart) Add(product catalog.Product, qty int) (Cart, error) {
	if qty <= 0 {
		return c, ErrInvalidQuantity
	}
	if product.StockStatus == catalog.StockOutOfStock {
		return c, ErrOutOfStock
	}
	next := c.clone()
	for i := range next.Items {
		if next.Items[i].ProductID == product.ID {
			next.Items[i] = snapshot(product, next.Items[i].Quantity+qty)
			return next, nil
		}
	}
	next.Items = append(next.Items, snapshot(product, qty))
	return next, nil
}

// SetQuantity replaces the quantity of a line. A quantity of zero or less removes it.
func (c Cart) SetQuantity(productID string, qty int) (Cart, error) {
	idx := c.index(productID)
	if idx < 0 {
		return c, ErrItemNotFound
	}
	if qty <= 0 {
		return c.Remove(productID), nil
	}
	next := c.clone()
	next.Items[idx].Quantity = qty
	return next, nil
}

// Remove drops the line for productID. Removing an absent product is a no-op.
func (c Cart) Remove(productID string) Cart {
	next := c.clone()
	next.Items = lo.Reject(next.Items, func(it Item, _ int) bool { return it.ProductID == productID })
	return next
}

// Clear empties the cart.
func (c Cart) Clear() Cart {
	next := c
	next.Items = []Item{}
	return next
}

// Count is the total number of units across all lines.
func (c Cart) Count() int {
	return lo.SumBy(c.Items, func(it Item) int { return it.Quantity })
}

// Lines converts the cart into pricing input.
func (c Cart) Lines() []pricing.CartLine {
	return lo.Map(c.Items, func(it Item, _ int) pricing.CartLine {
		return pricing.CartLine{
			ProductID:   it.ProductID,
			ProductName: it.Name,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Digital:     it.Digital,
		}
	})
}

func (c Cart) index(productID string) int {
	_, idx, ok := lo.FindIndexOf(c.Items, func(it Item) bool { return it.ProductID == productID })
	if !ok {
		return -1
	}
	return idx
}

func (c Cart) clone() Cart {
	next := c
	next.Items = append([]Item(nil), c.Items...)
	return next
}

func snapshot(p catalog.Product, qty int) Item {
	return Item{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Quantity: qty, Digital: p.IsDigital()}
}
