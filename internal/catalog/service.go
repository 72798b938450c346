package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
)

// Sort orders accepted by ListParams.
const (
	SortNameAsc   = "name-asc"
	SortNameDesc  = "name-desc"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
)

// CategoryAll disables the category filter.
const CategoryAll = "all"

// Store is the product persistence the service reads and writes.
type Store interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) error
}

// Service implements product listing, lookup, and administration.
type Service struct {
	store     Store
	cache     *cache.JSON
	validator *validator.Validate
	logger    zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store     Store
	Cache     *cache.JSON
	Validator *validator.Validate
	Logger    zerolog.Logger
}

// ListParams captures filters for product listing.
type ListParams struct {
	Query    string
	Category string
	Sort     string
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	return &Service{store: cfg.Store, cache: cfg.Cache, validator: v, logger: cfg.Logger}, nil
}

// ParseListParams normalises raw query values. Unknown sort orders keep insertion order.
func (s *Service) ParseListParams(values url.Values) ListParams {
	params := ListParams{
		Query:    strings.TrimSpace(values.Get("q")),
		Category: strings.TrimSpace(values.Get("category")),
	}
	if strings.EqualFold(params.Category, CategoryAll) {
		params.Category = ""
	}
	switch sortKey := strings.ToLower(strings.TrimSpace(values.Get("sort"))); sortKey {
	case SortNameAsc, SortNameDesc, SortPriceAsc, SortPriceDesc:
		params.Sort = sortKey
	}
	return params
}

// List returns the products matching params.
func (s *Service) List(ctx context.Context, params ListParams) ([]Product, error) {
	key := cache.KeyCatalogList(params.Category, strings.ToLower(params.Query), params.Sort)
	var cached []Product
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_get_failed")
	} else {
		obs.ObserveCacheLookup("catalog", found)
		if found {
			return cached, nil
		}
	}

	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	items := filterProducts(all, params)
	sortProducts(items, params.Sort)

	if err := s.cache.Set(ctx, key, items); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_set_failed")
	}
	return items, nil
}

// Get returns a single product, reading through the cache.
func (s *Service) Get(ctx context.Context, id string) (Product, error) {
	id = strings.TrimSpace(id)
	key := cache.KeyProduct(id)
	var cached Product
	if found, err := s.cache.Get(ctx, key, &cached); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_get_failed")
	} else {
		obs.ObserveCacheLookup("product", found)
		if found {
			return cached, nil
		}
	}

	p, err := s.store.Get(ctx, id)
	if err != nil {
		return Product{}, mapStoreError(err)
	}
	if err := s.cache.Set(ctx, key, p); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog_cache_set_failed")
	}
	return p, nil
}

// Categories returns the distinct non-empty categories in first-seen order.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	cats := lo.FilterMap(all, func(p Product, _ int) (string, bool) {
		return p.Category, strings.TrimSpace(p.Category) != ""
	})
	return lo.Uniq(cats), nil
}

// Create validates and stores a new product.
func (s *Service) Create(ctx context.Context, p Product) (Product, error) {
	p.ID = strings.TrimSpace(p.ID)
	if err := s.validate(&p); err != nil {
		return Product{}, err
	}
	created, err := s.store.Create(ctx, p)
	if err != nil {
		return Product{}, common.NewAppError(common.CodeConflict, err.Error(), http.StatusConflict, err)
	}
	s.invalidate(ctx)
	return created, nil
}

// Update validates and replaces an existing product.
func (s *Service) Update(ctx context.Context, id string, p Product) (Product, error) {
	p.ID = strings.TrimSpace(id)
	if err := s.validate(&p); err != nil {
		return Product{}, err
	}
	updated, err := s.store.Update(ctx, p)
	if err != nil {
		return Product{}, mapStoreError(err)
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, strings.TrimSpace(id)); err != nil {
		return mapStoreError(err)
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) validate(p *Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Description = strings.TrimSpace(p.Description)
	p.Category = strings.TrimSpace(p.Category)
	if err := s.validator.Struct(p); err != nil {
		return common.ValidationError(err)
	}
	if p.Price.IsNegative() || p.Price.GreaterThan(MaxPrice) {
		return common.NewAppError(common.CodeValidation, "price must be within 0 and 1000000", http.StatusUnprocessableEntity, nil).
			WithDetails(map[string]any{"fields": []common.FieldError{{Field: "price", Rule: "range", Param: "0-1000000"}}})
	}
	if p.StockStatus == "" {
		p.StockStatus = stockStatusFor(p.Quantity)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, cache.PrefixCatalog); err != nil {
		s.logger.Warn().Err(err).Msg("catalog_cache_invalidate_failed")
	}
}

func filterProducts(all []Product, params ListParams) []Product {
	query := strings.ToLower(params.Query)
	return lo.Filter(all, func(p Product, _ int) bool {
		if params.Category != "" && p.Category != params.Category {
			return false
		}
		return query == "" || strings.Contains(strings.ToLower(p.Name), query)
	})
}

func sortProducts(items []Product, order string) {
	switch order {
	case SortNameAsc, SortNameDesc:
		coll := collate.New(language.Russian, collate.IgnoreCase)
		sort.SliceStable(items, func(i, j int) bool {
			cmp := coll.CompareString(items[i].Name, items[j].Name)
			if order == SortNameDesc {
				return cmp > 0
			}
			return cmp < 0
		})
	case SortPriceAsc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price.LessThan(items[j].Price) })
	case SortPriceDesc:
		sort.SliceStable(items, func(i, j int) bool { return items[i].Price.GreaterThan(items[j].Price) })
	}
}

func mapStoreError(err error) error {
	if errors.Is(err, ErrProductNotFound) {
		return common.NewAppError(common.CodeNotFound, "product not found", http.StatusNotFound, err)
	}
	return fmt.Errorf("catalog store: %w", err)
}
