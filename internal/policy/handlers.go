package policy

import (
	"net/http"

	"github.com/samber/lo"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Handler exposes the policy catalog read endpoints.
type Handler struct {
	catalog Catalog
}

// NewHandler constructs a Handler.
func NewHandler(c Catalog) *Handler {
	return &Handler{catalog: c}
}

// Promotions handles GET /api/v1/promotions.
func (h *Handler) Promotions(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListPromotions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": lo.Map(items, func(p Promotion, _ int) PromotionDescriptor { return DescribePromotion(p) }),
	})
}

// TaxPolicies handles GET /api/v1/taxes.
func (h *Handler) TaxPolicies(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListTaxPolicies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": lo.Map(items, func(t TaxPolicy, _ int) TaxDescriptor { return DescribeTaxPolicy(t) }),
	})
}

// ShippingPolicies handles GET /api/v1/shipping-policies.
func (h *Handler) ShippingPolicies(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListShippingPolicies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": lo.Map(items, func(s pricing.ShippingPolicy, _ int) ShippingDescriptor { return DescribeShippingPolicy(s) }),
	})
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, common.NewAppError(common.CodeInternal, "policy catalog unavailable", http.StatusServiceUnavailable, err))
}
