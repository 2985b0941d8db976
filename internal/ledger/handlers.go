package ledger

import (
	"net/http"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
)

// Handler exposes the distributor ledger endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a Handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// PaymentRequest is the body of PUT /distributor/orders/{orderId}/payment.
type PaymentRequest struct {
	InitialAmount   *float64          `json:"initialAmount"`
	RemainingAmount *float64          `json:"remainingAmount"`
	DueDate         *common.Timestamp `json:"dueDate"`
	PaymentStatus   *string           `json:"paymentStatus"`
}

// Fields converts the request into a partial update.
func (r PaymentRequest) Fields() Fields {
	return Fields{
		InitialAmount:   r.InitialAmount,
		RemainingAmount: r.RemainingAmount,
		DueDate:         common.TimePtr(r.DueDate),
		PaymentStatus:   r.PaymentStatus,
	}
}

// UpsertPayment handles PUT /api/v1/distributor/orders/{orderId}/payment.
func (h *Handler) UpsertPayment(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "ledger service not configured", nil)
		return
	}
	distributorID, ok := common.AccountID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	orderID, ok := common.URLParamID(w, r, "orderId")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := common.DecodeJSON(r, &req); err != nil {
		common.WriteError(w, err)
		return
	}
	payment, err := h.service.UpsertPayment(r.Context(), distributorID, orderID, req.Fields())
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payment})
}

// ShopkeeperBalance handles GET /api/v1/distributor/shopkeepers/{shopkeeperId}/balance.
func (h *Handler) ShopkeeperBalance(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "ledger service not configured", nil)
		return
	}
	distributorID, ok := common.AccountID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	shopkeeperID, ok := common.URLParamID(w, r, "shopkeeperId")
	if !ok {
		return
	}
	balance, err := h.service.ShopkeeperBalance(r.Context(), distributorID, shopkeeperID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"shopkeeperId": shopkeeperID,
		"balance":      balance,
	}})
}

// ShopkeeperBalances handles GET /api/v1/distributor/shopkeepers/balances.
func (h *Handler) ShopkeeperBalances(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "ledger service not configured", nil)
		return
	}
	distributorID, ok := common.AccountID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	balances, err := h.service.ShopkeepersWithBalances(r.Context(), distributorID)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": balances})
}
