package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key prefixes shared by the cached components.
const (
	PrefixCatalog  = "catalog:"
	PrefixPolicies = "policies:"
	PrefixCart     = "cart:"
	PrefixLock     = "lock:"
)

// KeyCatalogList returns the cache key for a product listing built from the normalised
// filter parts.
func KeyCatalogList(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return PrefixCatalog + "list:" + hex.EncodeToString(sum[:8])
}

// KeyProduct returns the cache key for a single product.
func KeyProduct(id string) string {
	return PrefixCatalog + "product:" + id
}

// KeyPolicies returns the cache key for one policy list (promotions, taxes, shipping).
func KeyPolicies(kind string) string {
	return PrefixPolicies + kind
}

// KeyCart returns the key holding a stored cart.
func KeyCart(id string) string {
	return PrefixCart + id
}

// KeyCartLock returns the lock key guarding writes to a cart.
func KeyCartLock(id string) string {
	return PrefixLock + PrefixCart + id
}
