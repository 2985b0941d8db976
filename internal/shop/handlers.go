package shop

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
)

// Handler serves shopkeeper endpoints.
type Handler struct {
	service      *Service
	defaultLimit int
	maxLimit     int
}

// NewHandler constructs a Handler.
func NewHandler(service *Service, defaultLimit, maxLimit int) *Handler {
	return &Handler{service: service, defaultLimit: defaultLimit, maxLimit: maxLimit}
}

// Create handles POST /api/v1/salesperson/create-shop.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	salespersonID, ok := common.AccountID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var in CreateInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	sk, err := h.service.Create(r.Context(), salespersonID, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sk})
}

// List handles GET /api/v1/admin/get-shops.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := common.ParsePagination(r, h.defaultLimit, h.maxLimit)
	rows, total, err := h.service.List(r.Context(), page)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{"data": rows, "pagination": page.Meta(total)})
}
