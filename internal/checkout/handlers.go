package checkout

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/format"
	"github.com/noah-isme/toko-storefront/internal/policy"
	"github.com/noah-isme/toko-storefront/internal/pricing"
)

// Handler exposes checkout quoting over HTTP.
type Handler struct {
	Svc       *Service
	Validator *validator.Validate
	Currency  string
}

type quoteItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0,lte=1000000"`
}

type quoteRequest struct {
	CartID           string      `json:"cartId" validate:"omitempty,max=64"`
	Items            []quoteItem `json:"items" validate:"omitempty,max=100,dive"`
	PromotionID      string      `json:"promotionId"`
	TaxPolicyID      string      `json:"taxPolicyId"`
	ShippingPolicyID string      `json:"shippingPolicyId"`
}

type displayTotals struct {
	ItemsTotal     string `json:"itemsTotal"`
	Subtotal       string `json:"subtotal"`
	DiscountAmount string `json:"discountAmount"`
	TaxAmount      string `json:"taxAmount"`
	ShippingCost   string `json:"shippingCost"`
	Total          string `json:"total"`
}

type quoteView struct {
	Quote
	Currency string        `json:"currency"`
	Display  displayTotals `json:"display"`
}

// Routes mounts the checkout endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/quote", h.Quote)
}

// Quote handles POST /api/v1/checkout/quote.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	v := h.Validator
	if v == nil {
		v = common.NewValidator()
	}
	if err := v.Struct(req); err != nil {
		common.WriteError(w, common.ValidationError(err))
		return
	}
	if (len(req.Items) == 0) == (strings.TrimSpace(req.CartID) == "") {
		common.WriteError(w, common.NewAppError(common.CodeValidation, "exactly one of items or cartId is required", http.StatusUnprocessableEntity, nil))
		return
	}

	sel := Selection{
		PromotionID:      strings.TrimSpace(req.PromotionID),
		TaxPolicyID:      strings.TrimSpace(req.TaxPolicyID),
		ShippingPolicyID: strings.TrimSpace(req.ShippingPolicyID),
	}
	var (
		q   Quote
		err error
	)
	if len(req.Items) > 0 {
		items := make([]ItemRequest, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, ItemRequest{ProductID: strings.TrimSpace(it.ProductID), Quantity: it.Quantity})
		}
		q, err = h.Svc.QuoteItems(r.Context(), items, sel)
	} else {
		q, err = h.Svc.QuoteCart(r.Context(), strings.TrimSpace(req.CartID), sel)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": h.view(q)})
}

func (h *Handler) view(q Quote) quoteView {
	money := func(m pricing.Money) string { return format.Money(m, h.Currency) }
	return quoteView{
		Quote:    q,
		Currency: strings.ToUpper(h.Currency),
		Display: displayTotals{
			ItemsTotal:     money(q.ItemsTotal),
			Subtotal:       money(q.Subtotal),
			DiscountAmount: money(q.DiscountAmount),
			TaxAmount:      money(q.TaxAmount),
			ShippingCost:   money(q.ShippingCost),
			Total:          money(q.Total),
		},
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, policy.ErrUnresolvedPolicy):
		common.WriteError(w, common.NewAppError(common.CodeUnresolvedPolicy, err.Error(), http.StatusUnprocessableEntity, err))
	case errors.Is(err, pricing.ErrInvalidQuantity):
		common.WriteError(w, common.NewAppError(common.CodeInvalidQuantity, err.Error(), http.StatusUnprocessableEntity, err))
	case errors.Is(err, pricing.ErrInvalidPrice):
		common.WriteError(w, common.NewAppError(common.CodeInvalidPrice, err.Error(), http.StatusUnprocessableEntity, err))
	case errors.Is(err, ErrEmptyCart):
		common.WriteError(w, common.NewAppError(common.CodeValidation, err.Error(), http.StatusUnprocessableEntity, err))
	case errors.Is(err, cart.ErrCartNotFound):
		common.WriteError(w, common.NewAppError(common.CodeNotFound, err.Error(), http.StatusNotFound, err))
	default:
		common.WriteError(w, err)
	}
}
