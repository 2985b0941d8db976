package accounts

import (
	"net/http"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
)

// Handler serves admin account endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Signup handles POST /api/v1/admin/signup.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var in AdminSignupInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	acc, err := h.service.SignupAdmin(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{"id": acc.ID, "email": acc.Email}})
}

// CreateSalesperson handles POST /api/v1/admin/create-salesperson.
func (h *Handler) CreateSalesperson(w http.ResponseWriter, r *http.Request) {
	var in SalespersonInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	sp, err := h.service.CreateSalesperson(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": sp})
}

// CreateDistributor handles POST /api/v1/admin/create-distributor.
func (h *Handler) CreateDistributor(w http.ResponseWriter, r *http.Request) {
	var in DistributorInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	d, err := h.service.CreateDistributor(r.Context(), in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": d})
}

// Salespeople handles GET /api/v1/admin/get-salesperson.
func (h *Handler) Salespeople(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListSalespeople(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// Distributors handles GET /api/v1/admin/get-distributors.
func (h *Handler) Distributors(w http.ResponseWriter, r *http.Request) {
	rows, err := h.service.ListDistributors(r.Context())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

// EditDistributor handles PUT /api/v1/admin/distributor/{id}.
func (h *Handler) EditDistributor(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLParamID(w, r, "id")
	if !ok {
		return
	}
	var patch DistributorPatch
	if err := common.DecodeJSON(r, &patch); err != nil {
		common.WriteError(w, err)
		return
	}
	d, err := h.service.UpdateDistributor(r.Context(), id, patch)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": d})
}

// DeleteDistributor handles DELETE /api/v1/admin/distributor/{id}.
func (h *Handler) DeleteDistributor(w http.ResponseWriter, r *http.Request) {
	id, ok := common.URLParamID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteDistributor(r.Context(), id); err != nil {
		common.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
