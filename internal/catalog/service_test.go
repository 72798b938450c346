package catalog_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/common"
)

func newService(t *testing.T, c *cache.JSON) (*catalog.Service, *catalog.Repository) {
	t.Helper()
	repo, err := catalog.LoadRepository("")
	require.NoError(t, err)
	svc, err := catalog.NewService(catalog.ServiceConfig{Store: repo, Cache: c, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return svc, repo
}

func ids(items []catalog.Product) []string {
	return lo.Map(items, func(p catalog.Product, _ int) string { return p.ID })
}

func TestSeedProducts(t *testing.T) {
	svc, _ := newService(t, nil)
	items, err := svc.List(context.Background(), catalog.ListParams{})
	require.NoError(t, err)
	require.Len(t, items, 12)
	require.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}, ids(items))

	vinyl, err := svc.Get(context.Background(), "2")
	require.NoError(t, err)
	require.True(t, vinyl.IsDigital())
	require.True(t, vinyl.Price.Equal(decimal.NewFromInt(2500)))
	require.Equal(t, catalog.StockInStock, vinyl.StockStatus)

	leha, err := svc.Get(context.Background(), "12")
	require.NoError(t, err)
	require.Empty(t, leha.Category)
	require.True(t, leha.Price.Equal(decimal.NewFromInt(999999)))

	line := vinyl.CartLine(3)
	require.Equal(t, "2", line.ProductID)
	require.Equal(t, 3, line.Quantity)
	require.True(t, line.Digital)
}

func TestParseListParams(t *testing.T) {
	svc, _ := newService(t, nil)
	params := svc.ParseListParams(url.Values{"q": {"  Кино "}, "category": {"all"}, "sort": {"PRICE-ASC"}})
	require.Equal(t, catalog.ListParams{Query: "Кино", Category: "", Sort: catalog.SortPriceAsc}, params)

	params = svc.ParseListParams(url.Values{"category": {"vinyl"}, "sort": {"random"}})
	require.Equal(t, "vinyl", params.Category)
	require.Empty(t, params.Sort)
}

func TestListFiltersAndSorts(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		params catalog.ListParams
		want   []string
	}{
		{name: "category", params: catalog.ListParams{Category: "tickets"}, want: []string{"9", "10", "11"}},
		{name: "search is case insensitive", params: catalog.ListParams{Query: "кино"}, want: []string{"2", "9"}},
		{name: "search and category", params: catalog.ListParams{Query: "группа", Category: "tickets"}, want: []string{"11"}},
		{name: "unknown category", params: catalog.ListParams{Category: "drums"}, want: []string{}},
		{name: "name ascending", params: catalog.ListParams{Category: "vinyl", Sort: catalog.SortNameAsc}, want: []string{"2", "5", "8"}},
		{name: "name descending", params: catalog.ListParams{Category: "vinyl", Sort: catalog.SortNameDesc}, want: []string{"8", "5", "2"}},
		{name: "price ascending", params: catalog.ListParams{Category: "merch", Sort: catalog.SortPriceAsc}, want: []string{"7", "4"}},
		{name: "price descending is stable", params: catalog.ListParams{Category: "guitars", Sort: catalog.SortPriceDesc}, want: []string{"6", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := svc.List(ctx, tt.params)
			require.NoError(t, err)
			require.Equal(t, tt.want, ids(items))
		})
	}

	all, err := svc.List(ctx, catalog.ListParams{Sort: catalog.SortPriceDesc})
	require.NoError(t, err)
	require.Equal(t, "12", all[0].ID)
	require.Equal(t, "7", all[len(all)-1].ID)
}

func TestCategories(t *testing.T) {
	svc, _ := newService(t, nil)
	cats, err := svc.Categories(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"guitars", "vinyl", "synths", "merch", "tickets"}, cats)
}

func TestCreateUpdateDelete(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()

	created, err := svc.Create(ctx, catalog.Product{
		Name:     "Барабанные палочки",
		Price:    decimal.NewFromInt(900),
		Quantity: 3,
		Category: "drums",
		Type:     catalog.TypePhysical,
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, catalog.StockLow, created.StockStatus)

	created.Quantity = 0
	created.StockStatus = ""
	updated, err := svc.Update(ctx, created.ID, created)
	require.NoError(t, err)
	require.Equal(t, catalog.StockOutOfStock, updated.StockStatus)

	require.NoError(t, svc.Delete(ctx, created.ID))
	_, err = svc.Get(ctx, created.ID)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusNotFound, appErr.HTTPStatus)
	require.ErrorIs(t, err, catalog.ErrProductNotFound)

	err = svc.Delete(ctx, created.ID)
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, common.CodeNotFound, appErr.Code)

	_, err = svc.Create(ctx, catalog.Product{ID: "1", Name: "Дубль", Price: decimal.NewFromInt(1), Type: catalog.TypeDigital})
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, http.StatusConflict, appErr.HTTPStatus)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newService(t, nil)
	ctx := context.Background()
	valid := catalog.Product{Name: "Медиатор", Price: decimal.NewFromInt(100), Quantity: 10, Type: catalog.TypePhysical}

	tests := []struct {
		name   string
		mutate func(p *catalog.Product)
		field  string
	}{
		{name: "short name", mutate: func(p *catalog.Product) { p.Name = "A" }, field: "name"},
		{name: "long description", mutate: func(p *catalog.Product) { p.Description = string(make([]rune, 201)) }, field: "description"},
		{name: "negative quantity", mutate: func(p *catalog.Product) { p.Quantity = -1 }, field: "quantity"},
		{name: "quantity too large", mutate: func(p *catalog.Product) { p.Quantity = 1_000_001 }, field: "quantity"},
		{name: "bad type", mutate: func(p *catalog.Product) { p.Type = "service" }, field: "type"},
		{name: "negative price", mutate: func(p *catalog.Product) { p.Price = decimal.NewFromInt(-1) }, field: "price"},
		{name: "price too large", mutate: func(p *catalog.Product) { p.Price = decimal.NewFromInt(1_000_001) }, field: "price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := svc.Create(ctx, p)
			var appErr *common.AppError
			require.ErrorAs(t, err, &appErr)
			require.Equal(t, common.CodeValidation, appErr.Code)
			details, ok := appErr.Details.(map[string]any)
			require.True(t, ok)
			fields, ok := details["fields"].([]common.FieldError)
			require.True(t, ok)
			require.Equal(t, tt.field, fields[0].Field)
		})
	}
}

func TestListCacheInvalidatedOnWrite(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, repo := newService(t, cache.NewJSON(client, time.Minute))
	ctx := context.Background()
	params := catalog.ListParams{Category: "merch"}

	first, err := svc.List(ctx, params)
	require.NoError(t, err)
	require.Len(t, first, 2)

	// bypass the service so only the cache can explain the result
	_, err = repo.Create(ctx, catalog.Product{ID: "shadow", Name: "Значок", Category: "merch", Type: catalog.TypePhysical})
	require.NoError(t, err)
	cached, err := svc.List(ctx, params)
	require.NoError(t, err)
	require.Len(t, cached, 2)
	require.True(t, cached[0].Price.Equal(first[0].Price))

	_, err = svc.Create(ctx, catalog.Product{Name: "Нашивка", Price: decimal.NewFromInt(300), Quantity: 40, Category: "merch", Type: catalog.TypePhysical})
	require.NoError(t, err)
	fresh, err := svc.List(ctx, params)
	require.NoError(t, err)
	require.Len(t, fresh, 4)
}

func TestGetReadsThroughCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc, repo := newService(t, cache.NewJSON(client, time.Minute))
	ctx := context.Background()

	p, err := svc.Get(ctx, " 2 ")
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.KeyProduct("2")))

	changed := p
	changed.Price = decimal.NewFromInt(9999)
	_, err = repo.Update(ctx, changed)
	require.NoError(t, err)

	cached, err := svc.Get(ctx, "2")
	require.NoError(t, err)
	require.True(t, cached.Price.Equal(p.Price))

	_, err = svc.Update(ctx, "2", changed)
	require.NoError(t, err)
	fresh, err := svc.Get(ctx, "2")
	require.NoError(t, err)
	require.True(t, fresh.Price.Equal(decimal.NewFromInt(9999)))

	_, err = svc.Get(ctx, "missing")
	require.Error(t, err)
	require.False(t, mr.Exists(cache.KeyProduct("missing")))
}
