package order

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/ledger"
	"github.com/noah-isme/backend-b2b-orders/internal/pricing"
)

// Order statuses. PENDING is assigned on creation.
const (
	StatusPending    = "PENDING"
	StatusConfirmed  = "CONFIRMED"
	StatusDispatched = "DISPATCHED"
	StatusDelivered  = "DELIVERED"
	StatusCancelled  = "CANCELLED"
)

// Payment terms.
const (
	TermCOD     = "COD"
	TermCredit  = "CREDIT"
	TermPartial = "PARTIAL"
)

var (
	ErrNotFound           = errors.New("order: not found")
	ErrItemNotFound       = errors.New("order: item not found")
	ErrForbidden          = errors.New("order: belongs to another distributor")
	ErrShopkeeperNotFound = errors.New("order: shopkeeper not found")
	ErrAccountNotFound    = errors.New("order: account not found")
)

// Order is a persisted order header.
type Order struct {
	ID            int64     `json:"id"`
	ShopkeeperID  int64     `json:"shopkeeperId"`
	DistributorID int64     `json:"distributorId"`
	SalespersonID int64     `json:"salespersonId"`
	DeliveryDate  time.Time `json:"deliveryDate"`
	DeliverySlot  string    `json:"deliverySlot"`
	PaymentTerm   string    `json:"paymentTerm"`
	OrderNote     string    `json:"orderNote"`
	TotalAmount   float64   `json:"totalAmount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Item is a persisted order line. Its unit price is never stored.
type Item struct {
	ID        int64  `json:"id"`
	OrderID   int64  `json:"orderId"`
	ProductID int64  `json:"productId"`
	VariantID *int64 `json:"variantId,omitempty"`
	Quantity  int    `json:"quantity"`
}

// Ref returns the pricing reference of the item.
func (it Item) Ref() pricing.ItemRef {
	return pricing.ItemRef{ProductID: it.ProductID, VariantID: it.VariantID}
}

// ItemInput is an item in a create or edit request.
type ItemInput struct {
	ProductID int64  `json:"productId" validate:"required,gt=0"`
	VariantID *int64 `json:"variantId" validate:"omitempty,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

func (in ItemInput) pricingItem() pricing.Item {
	return pricing.Item{ItemRef: pricing.ItemRef{ProductID: in.ProductID, VariantID: in.VariantID}, Quantity: in.Quantity}
}

// PartialPaymentInput is the optional ledger payload of a create request.
type PartialPaymentInput struct {
	InitialAmount   float64          `json:"initialAmount" validate:"gte=0"`
	RemainingAmount float64          `json:"remainingAmount" validate:"gte=0"`
	DueDate         common.Timestamp `json:"dueDate" validate:"required"`
}

// CreateInput is the body of POST /salesperson/create-order. SalespersonID defaults to the
// authenticated salesperson.
type CreateInput struct {
	ShopkeeperID   int64                `json:"shopkeeperId" validate:"required,gt=0"`
	DistributorID  int64                `json:"distributorId" validate:"required,gt=0"`
	SalespersonID  int64                `json:"salespersonId" validate:"omitempty,gt=0"`
	DeliveryDate   common.Timestamp     `json:"deliveryDate" validate:"required"`
	DeliverySlot   string               `json:"deliverySlot" validate:"required"`
	PaymentTerm    string               `json:"paymentTerm" validate:"required,oneof=COD CREDIT PARTIAL"`
	OrderNote      string               `json:"orderNote" validate:"max=1000"`
	Items          []ItemInput          `json:"items" validate:"required,min=1,dive"`
	PartialPayment *PartialPaymentInput `json:"partialPayment" validate:"-"`
}

// partialPaymentBody validates PartialPayment on its own so error paths keep the
// partialPayment prefix. Only PARTIAL orders are checked.
type partialPaymentBody struct {
	PartialPayment *PartialPaymentInput `json:"partialPayment" validate:"omitempty"`
}

// EditInput is the body of PUT /distributor/orders/{orderId}. Every field is optional but
// at least one must be supplied.
type EditInput struct {
	DeliveryDate   *common.Timestamp      `json:"deliveryDate"`
	DeliverySlot   *string                `json:"deliverySlot" validate:"omitempty,min=1"`
	Status         *string                `json:"status" validate:"omitempty,oneof=PENDING CONFIRMED DISPATCHED DELIVERED CANCELLED"`
	PartialPayment *ledger.PaymentRequest `json:"partialPayment"`
	Items          []ItemInput            `json:"items" validate:"omitempty,dive"`
}

// Empty reports whether the edit changes nothing.
func (in EditInput) Empty() bool {
	return in.DeliveryDate == nil && in.DeliverySlot == nil && in.Status == nil && in.PartialPayment == nil && len(in.Items) == 0
}

// Created is the outcome of Create.
type Created struct {
	Order          Order                  `json:"order"`
	Items          []Item                 `json:"items"`
	PartialPayment *ledger.PartialPayment `json:"partialPayment,omitempty"`
}

// Edited is the outcome of Edit.
type Edited struct {
	Order          Order                  `json:"order"`
	Items          []Item                 `json:"items"`
	PartialPayment *ledger.PartialPayment `json:"partialPayment,omitempty"`
}

// Filter scopes order listings. A zero DistributorID lists every order.
type Filter struct {
	DistributorID int64
}

// Summary is an order row joined with its parties for listings.
type Summary struct {
	Order
	ShopkeeperName    string
	ShopkeeperContact string
	SalespersonName   string
}

// ItemDetail is an order line with its product name and current unit price.
type ItemDetail struct {
	OrderID     int64
	ProductID   int64
	VariantID   *int64
	ProductName string
	Quantity    int
	Price       float64
}

// Repository is the persistence contract of the order service.
type Repository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	CountOrders(ctx context.Context, filter Filter) (int, error)
	ListOrders(ctx context.Context, filter Filter, page common.Page) ([]Summary, error)
	// ListItemDetails returns the items of the orders ListOrders returns for the same
	// filter and page, so both can run concurrently.
	ListItemDetails(ctx context.Context, filter Filter, page common.Page) ([]ItemDetail, error)
}

// TxRepository runs inside a transaction.
type TxRepository interface {
	AccountKind(ctx context.Context, accountID int64) (string, error)
	CreateOrderWithItems(ctx context.Context, o Order, items []pricing.Item, payment *ledger.Fields) (Order, []Item, *ledger.UpsertResult, error)
	LockOrder(ctx context.Context, orderID int64) (Order, error)
	FindOrderItem(ctx context.Context, orderID, productID int64, variantID *int64) (Item, error)
	UpdateOrderItemQuantity(ctx context.Context, itemID int64, quantity int) (Item, error)
	ListItems(ctx context.Context, orderID int64) ([]Item, error)
	UpdateOrder(ctx context.Context, o Order) (Order, error)
	Prices() pricing.Catalog
	Ledger() ledger.Store
}
