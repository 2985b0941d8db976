package order

import (
	"net/http"
	"strconv"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
)

// Handler exposes order endpoints for salespeople, distributors and admins.
type Handler struct {
	service      *Service
	defaultLimit int
	maxLimit     int
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service      *Service
	DefaultLimit int
	MaxLimit     int
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{service: cfg.Service, defaultLimit: cfg.DefaultLimit, maxLimit: cfg.MaxLimit}
}

// Create handles POST /api/v1/salesperson/create-order.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
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
	created, err := h.service.Create(r.Context(), salespersonID, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	body := orderBody(created.Order)
	body["items"] = created.Items
	if created.PartialPayment != nil {
		body["partialPayment"] = created.PartialPayment
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": body})
}

// Edit handles PUT /api/v1/distributor/orders/{orderId}.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
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
	var in EditInput
	if err := common.DecodeJSON(r, &in); err != nil {
		common.WriteError(w, err)
		return
	}
	edited, err := h.service.Edit(r.Context(), distributorID, orderID, in)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	body := orderBody(edited.Order)
	body["items"] = edited.Items
	if edited.PartialPayment != nil {
		body["partialPayment"] = edited.PartialPayment
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": body})
}

// DistributorOrders handles GET /api/v1/distributor/get-orders.
func (h *Handler) DistributorOrders(w http.ResponseWriter, r *http.Request) {
	distributorID, ok := common.AccountID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	h.list(w, r, Filter{DistributorID: distributorID})
}

// AdminOrders handles GET /api/v1/admin/get-orders.
func (h *Handler) AdminOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, Filter{})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, filter Filter) {
	if h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order service not configured", nil)
		return
	}
	page := common.ParsePagination(r, h.defaultLimit, h.maxLimit)
	listings, total, err := h.service.List(r.Context(), filter, page)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	response := make([]map[string]any, 0, len(listings))
	for _, l := range listings {
		items := make([]map[string]any, 0, len(l.Items))
		for _, it := range l.Items {
			items = append(items, map[string]any{
				"productId":   it.ProductID,
				"variantId":   it.VariantID,
				"productName": it.ProductName,
				"quantity":    it.Quantity,
				"price":       it.Price,
			})
		}
		body := orderBody(l.Order)
		body["shopkeeper"] = map[string]any{"name": l.ShopkeeperName, "contactNumber": l.ShopkeeperContact}
		body["salesperson"] = map[string]any{"name": l.SalespersonName}
		body["items"] = items
		response = append(response, body)
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       response,
		"pagination": page.Meta(total),
	})
}

func orderBody(o Order) map[string]any {
	return map[string]any{
		"id":            o.ID,
		"shopkeeperId":  o.ShopkeeperID,
		"distributorId": o.DistributorID,
		"salespersonId": o.SalespersonID,
		"deliveryDate":  o.DeliveryDate,
		"deliverySlot":  o.DeliverySlot,
		"paymentTerm":   o.PaymentTerm,
		"orderNote":     o.OrderNote,
		"totalAmount":   o.TotalAmount,
		"status":        o.Status,
		"createdAt":     o.CreatedAt,
	}
}
