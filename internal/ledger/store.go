package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-b2b-orders/internal/db"
)

const upsertPartialPaymentSQL = `INSERT INTO partial_payments (order_id, initial_amount, remaining_amount, due_date, payment_status)
VALUES ($1, COALESCE($2::double precision, 0), COALESCE($3::double precision, 0), COALESCE($4::timestamptz, now()), COALESCE($5::text, 'PENDING'))
ON CONFLICT (order_id) DO UPDATE SET
    initial_amount   = COALESCE($2::double precision, partial_payments.initial_amount),
    remaining_amount = COALESCE($3::double precision, partial_payments.remaining_amount),
    due_date         = COALESCE($4::timestamptz, partial_payments.due_date),
    payment_status   = COALESCE($5::text, partial_payments.payment_status),
    updated_at       = now()
RETURNING id, order_id, initial_amount, remaining_amount, due_date, payment_status, created_at, updated_at, (xmax = 0) AS inserted`

const sumRemainingSQL = `SELECT COALESCE(SUM(pp.remaining_amount), 0)
FROM partial_payments pp
JOIN orders o ON o.id = pp.order_id
WHERE o.distributor_id = $1
  AND o.shopkeeper_id = $2
  AND o.status = 'PENDING'
  AND pp.payment_status = 'PENDING'`

// Shopkeepers without a payment row still appear with a zero balance. Payment status is
// deliberately not filtered here, unlike sumRemainingSQL.
const balancesByShopkeeperSQL = `SELECT s.id, s.name, COALESCE(SUM(pp.remaining_amount), 0) AS total_balance
FROM orders o
JOIN shopkeepers s ON s.id = o.shopkeeper_id
LEFT JOIN partial_payments pp ON pp.order_id = o.id
WHERE o.distributor_id = $1
  AND o.status = 'PENDING'
GROUP BY s.id, s.name
ORDER BY s.id`

const getPartialPaymentSQL = `SELECT id, order_id, initial_amount, remaining_amount, due_date, payment_status, created_at, updated_at
FROM partial_payments
WHERE order_id = $1`

// PgStore implements Store on PostgreSQL. DB may be a pool or a transaction.
type PgStore struct {
	DB db.DBTX
}

// NewPgStore constructs a PgStore.
func NewPgStore(conn db.DBTX) PgStore {
	return PgStore{DB: conn}
}

func (s PgStore) OrderDistributor(ctx context.Context, orderID int64) (int64, error) {
	var distributorID int64
	err := s.DB.QueryRow(ctx, `SELECT distributor_id FROM orders WHERE id = $1`, orderID).Scan(&distributorID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrOrderNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ledger: order distributor: %w", err)
	}
	return distributorID, nil
}

func (s PgStore) UpsertPartialPayment(ctx context.Context, orderID int64, f Fields) (UpsertResult, error) {
	var res UpsertResult
	p := &res.Payment
	err := s.DB.QueryRow(ctx, upsertPartialPaymentSQL, orderID, f.InitialAmount, f.RemainingAmount, f.DueDate, f.PaymentStatus).
		Scan(&p.ID, &p.OrderID, &p.InitialAmount, &p.RemainingAmount, &p.DueDate, &p.PaymentStatus, &p.CreatedAt, &p.UpdatedAt, &res.Created)
	if err != nil {
		if db.PgErrorCode(err) == db.CodeForeignKeyViolation {
			return UpsertResult{}, ErrOrderNotFound
		}
		return UpsertResult{}, fmt.Errorf("ledger: upsert partial payment: %w", err)
	}
	return res, nil
}

func (s PgStore) SumRemaining(ctx context.Context, filter BalanceFilter) (float64, error) {
	var total float64
	if err := s.DB.QueryRow(ctx, sumRemainingSQL, filter.DistributorID, filter.ShopkeeperID).Scan(&total); err != nil {
		return 0, fmt.Errorf("ledger: sum remaining: %w", err)
	}
	return total, nil
}

func (s PgStore) BalancesByShopkeeper(ctx context.Context, distributorID int64) ([]ShopkeeperBalance, error) {
	rows, err := s.DB.Query(ctx, balancesByShopkeeperSQL, distributorID)
	if err != nil {
		return nil, fmt.Errorf("ledger: balances by shopkeeper: %w", err)
	}
	balances, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ShopkeeperBalance, error) {
		var b ShopkeeperBalance
		err := row.Scan(&b.ShopkeeperID, &b.Name, &b.TotalBalance)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: scan balances: %w", err)
	}
	return balances, nil
}

func (s PgStore) GetPartialPayment(ctx context.Context, orderID int64) (PartialPayment, error) {
	var p PartialPayment
	err := s.DB.QueryRow(ctx, getPartialPaymentSQL, orderID).
		Scan(&p.ID, &p.OrderID, &p.InitialAmount, &p.RemainingAmount, &p.DueDate, &p.PaymentStatus, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PartialPayment{}, ErrPaymentNotFound
	}
	if err != nil {
		return PartialPayment{}, fmt.Errorf("ledger: get partial payment: %w", err)
	}
	return p, nil
}
