package pricing

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuantity is returned when a cart line has a zero or negative quantity.
	ErrInvalidQuantity = errors.New("pricing: quantity must be positive")
	// ErrInvalidPrice is returned when a cart line has a negative unit price.
	ErrInvalidPrice = errors.New("pricing: unit price must not be negative")
)

// ValidateLines checks the domain Checkout is defined over. Checkout itself never
// fails; callers run this at the boundary before pricing untrusted input.
func ValidateLines(lines []CartLine) error {
	for i, line := range lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("line %d (%s): %w", i, line.ProductID, ErrInvalidQuantity)
		}
		if line.UnitPrice.IsNegative() {
			return fmt.Errorf("line %d (%s): %w", i, line.ProductID, ErrInvalidPrice)
		}
	}
	return nil
}
