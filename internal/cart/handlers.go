package cart

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-storefront/internal/common"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc       *Service
	Validator *validator.Validate
}

type addItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  *int   `json:"quantity" validate:"omitempty,gt=0,lte=1000000"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required,lte=1000000"`
}

type cartView struct {
	Cart
	Count int `json:"count"`
}

// Routes mounts the cart endpoints on r. Write routes are wrapped by writeMW.
func (h *Handler) Routes(writeMW func(http.Handler) http.Handler) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/{id}", h.Get)
		r.Group(func(r chi.Router) {
			if writeMW != nil {
				r.Use(writeMW)
			}
			r.Post("/", h.Create)
			r.Post("/{id}/items", h.AddItem)
			r.Patch("/{id}/items/{productId}", h.UpdateItem)
			r.Delete("/{id}/items/{productId}", h.RemoveItem)
			r.Delete("/{id}/items", h.Clear)
		})
	}
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Create(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, http.StatusCreated, c)
}

// Get handles GET /api/v1/carts/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, http.StatusOK, c)
}

// AddItem handles POST /api/v1/carts/{id}/items. Quantity defaults to one.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var payload addItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	qty := 1
	if payload.Quantity != nil {
		qty = *payload.Quantity
	}
	c, err := h.Svc.AddItem(r.Context(), chi.URLParam(r, "id"), payload.ProductID, qty)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, http.StatusOK, c)
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{productId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var payload updateItemRequest
	if !h.decode(w, r, &payload) {
		return
	}
	c, err := h.Svc.UpdateItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId"), *payload.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, http.StatusOK, c)
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{productId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.RemoveItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "productId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, http.StatusOK, c)
}

// Clear handles DELETE /api/v1/carts/{id}/items.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	c, err := h.Svc.Clear(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.render(w, http.StatusOK, c)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := common.DecodeJSON(r, dst); err != nil {
		common.WriteError(w, err)
		return false
	}
	v := h.Validator
	if v == nil {
		v = common.NewValidator()
	}
	if err := v.Struct(dst); err != nil {
		common.WriteError(w, common.ValidationError(err))
		return false
	}
	return true
}

func (h *Handler) render(w http.ResponseWriter, status int, c Cart) {
	common.JSON(w, status, map[string]any{"data": cartView{Cart: c, Count: c.Count()}})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCartNotFound), errors.Is(err, ErrItemNotFound):
		common.WriteError(w, common.NewAppError(common.CodeNotFound, err.Error(), http.StatusNotFound, err))
	case errors.Is(err, ErrInvalidQuantity):
		common.WriteError(w, common.NewAppError(common.CodeInvalidQuantity, err.Error(), http.StatusUnprocessableEntity, err))
	case errors.Is(err, ErrOutOfStock):
		common.WriteError(w, common.NewAppError(common.CodeConflict, err.Error(), http.StatusConflict, err))
	default:
		common.WriteError(w, err)
	}
}
