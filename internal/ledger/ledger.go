package ledger

import (
	"context"
	"errors"
	"time"
)

// Payment statuses. PENDING is the sentinel assigned when a row is created without one.
const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
	StatusOverdue = "OVERDUE"
)

var (
	// ErrOrderNotFound is returned when the order a payment belongs to does not exist.
	ErrOrderNotFound = errors.New("ledger: order not found")
	// ErrForbidden is returned when a distributor touches another distributor's order.
	ErrForbidden = errors.New("ledger: order belongs to another distributor")
	// ErrPaymentNotFound is returned when an order has no partial payment row.
	ErrPaymentNotFound = errors.New("ledger: partial payment not found")
)

// PartialPayment is the single running balance record of an order.
type PartialPayment struct {
	ID              int64     `json:"id"`
	OrderID         int64     `json:"orderId"`
	InitialAmount   float64   `json:"initialAmount"`
	RemainingAmount float64   `json:"remainingAmount"`
	DueDate         time.Time `json:"dueDate"`
	PaymentStatus   string    `json:"paymentStatus"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Fields is a partial update. Nil fields keep their stored value, or take the insert
// default when the row does not exist yet.
type Fields struct {
	InitialAmount   *float64
	RemainingAmount *float64
	DueDate         *time.Time
	PaymentStatus   *string
}

// Empty reports whether no field was supplied.
func (f Fields) Empty() bool {
	return f.InitialAmount == nil && f.RemainingAmount == nil && f.DueDate == nil && f.PaymentStatus == nil
}

// UpsertResult is the row after an upsert and whether it was inserted.
type UpsertResult struct {
	Payment PartialPayment
	Created bool
}

// BalanceFilter scopes a remaining-amount aggregation.
type BalanceFilter struct {
	DistributorID int64
	ShopkeeperID  int64
}

// ShopkeeperBalance is the outstanding balance of one shopkeeper with a distributor.
type ShopkeeperBalance struct {
	ShopkeeperID int64   `json:"id"`
	Name         string  `json:"name"`
	TotalBalance float64 `json:"totalBalance"`
}

// Store is the persistence contract of the ledger.
type Store interface {
	// OrderDistributor returns the distributor owning orderID or ErrOrderNotFound.
	OrderDistributor(ctx context.Context, orderID int64) (int64, error)
	// UpsertPartialPayment creates or partially updates the row for orderID in one statement.
	UpsertPartialPayment(ctx context.Context, orderID int64, f Fields) (UpsertResult, error)
	// SumRemaining sums remaining amounts where both the order and the payment are PENDING.
	SumRemaining(ctx context.Context, filter BalanceFilter) (float64, error)
	// BalancesByShopkeeper sums remaining amounts of pending orders per shopkeeper without
	// filtering on payment status.
	BalancesByShopkeeper(ctx context.Context, distributorID int64) ([]ShopkeeperBalance, error)
	// GetPartialPayment loads the row for orderID or ErrPaymentNotFound.
	GetPartialPayment(ctx context.Context, orderID int64) (PartialPayment, error)
}

// ValidStatus reports whether status is a known payment status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusPaid, StatusOverdue:
		return true
	default:
		return false
	}
}
