package catalog

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
)

// Handler exposes admin catalog endpoints.
type Handler struct {
	service      *Service
	defaultLimit int
	maxLimit     int
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, defaultLimit, maxLimit int) *Handler {
	return &Handler{service: service, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// CreateCategory handles POST /api/v1/admin/create-category.
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var in CategoryInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	c, err := h.service.CreateCategory(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": c})
}

// Categories handles GET /api/v1/admin/get-categories.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListCategories(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// CreateProduct handles POST /api/v1/admin/create-product.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in ProductInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": p})
}

// Products handles GET /api/v1/admin/get-products.
func (h *Handler) Products(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, h.defaultLimit, h.maxLimit)
	result, err := h.service.ListProducts(r.Context(), page)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(result.Total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       result.Items,
		"pagination": page.Meta(result.Total),
	})
}

// EditProduct handles PUT /api/v1/admin/product/{productId}.
func (h *Handler) EditProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLParamID(w, r, "productId")
	if !ok {
		return
	}
	var patch ProductPatch
	if err := common.DecodeJSON(r, &patch); err != nil {
		common.WriteError(w, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), id, patch)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// DeleteProduct handles DELETE /api/v1/admin/product/{productId}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLParamID(w, r, "productId")
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddVariant handles POST /api/v1/admin/products/{productId}/variants.
func (h *Handler) AddVariant(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLParamID(w, r, "productId")
	if !ok {
		return
	}
	var in VariantInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	v, err := h.service.AddVariant(r.Context(), id, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": v})
}
