package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed products.yaml
var defaultProducts []byte

type seedProduct struct {
	Product `yaml:",inline"`
	Price   float64 `yaml:"price"`
}

type seedDocument struct {
	Products []seedProduct `yaml:"products"`
}

// Repository keeps products in memory in insertion order. It is safe for concurrent use.
type Repository struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]Product
}

// NewRepository returns a repository holding the given products.
func NewRepository(products []Product) *Repository {
	r := &Repository{byID: make(map[string]Product, len(products))}
	for _, p := range products {
		if _, exists := r.byID[p.ID]; !exists {
			r.order = append(r.order, p.ID)
		}
		r.byID[p.ID] = p
	}
	return r
}

// LoadRepository seeds a repository from the YAML file at path, or from the built-in
// product list when path is empty.
func LoadRepository(path string) (*Repository, error) {
	data := defaultProducts
	if p := strings.TrimSpace(path); p != "" {
		raw, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read products file: %w", err)
		}
		data = raw
	}
	products, err := ParseProducts(data)
	if err != nil {
		return nil, err
	}
	return NewRepository(products), nil
}

// ParseProducts decodes a YAML product seed document.
func ParseProducts(data []byte) ([]Product, error) {
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse products: %w", err)
	}
	out := make([]Product, 0, len(doc.Products))
	for i, sp := range doc.Products {
		p := sp.Product
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("parse products: entry %d has no id", i)
		}
		p.Price = decimal.NewFromFloat(sp.Price)
		if p.StockStatus == "" {
			p.StockStatus = stockStatusFor(p.Quantity)
		}
		out = append(out, p)
	}
	return out, nil
}

// List returns every product in insertion order.
func (r *Repository) List(context.Context) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out, nil
}

// Get returns the product with the given id.
func (r *Repository) Get(_ context.Context, id string) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

// Create stores a new product. An empty id is replaced with a generated one.
func (r *Repository) Create(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := r.byID[p.ID]; exists {
		return Product{}, fmt.Errorf("catalog: product %q already exists", p.ID)
	}
	r.order = append(r.order, p.ID)
	r.byID[p.ID] = p
	return p, nil
}

// Update replaces an existing product.
func (r *Repository) Update(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		return Product{}, ErrProductNotFound
	}
	r.byID[p.ID] = p
	return p, nil
}

// Delete removes a product.
func (r *Repository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrProductNotFound
	}
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
