package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/db"
	"github.com/noah-isme/backend-b2b-orders/internal/ledger"
	"github.com/noah-isme/backend-b2b-orders/internal/pricing"
)

const orderColumns = `o.id, o.shopkeeper_id, o.distributor_id, o.salesperson_id, o.delivery_date, o.delivery_slot,
o.payment_term, o.order_note, o.total_amount, o.status, o.created_at, o.updated_at`

// Pool is the subset of *pgxpool.Pool the repository needs.
type Pool interface {
	db.DBTX
	db.TxBeginner
}

// PgRepository implements Repository on PostgreSQL.
type PgRepository struct {
	pool Pool
}

// NewPgRepository constructs a PgRepository.
func NewPgRepository(pool Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// WithTx runs fn in a transaction, committing when it returns nil.
func (r *PgRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, pgTx{tx: tx})
	})
}

// CountOrders implements Repository.
func (r *PgRepository) CountOrders(ctx context.Context, filter Filter) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders o WHERE ($1::bigint = 0 OR o.distributor_id = $1)`, filter.DistributorID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// pageSQL selects the order ids of one listing page; ListOrders and ListItemDetails share it.
const pageSQL = `SELECT o.id FROM orders o
WHERE ($1::bigint = 0 OR o.distributor_id = $1)
ORDER BY o.created_at DESC, o.id DESC
LIMIT $2 OFFSET $3`

// ListOrders implements Repository.
func (r *PgRepository) ListOrders(ctx context.Context, filter Filter, page common.Page) ([]Summary, error) {
	q := `SELECT ` + orderColumns + `, s.name, s.contact_number, COALESCE(sp.name, '')
FROM orders o
JOIN shopkeepers s ON s.id = o.shopkeeper_id
LEFT JOIN accounts sp ON sp.id = o.salesperson_id
WHERE o.id IN (` + pageSQL + `)
ORDER BY o.created_at DESC, o.id DESC`
	rows, err := r.pool.Query(ctx, q, filter.DistributorID, page.PerPage, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		var s Summary
		err := row.Scan(orderDest(&s.Order, &s.ShopkeeperName, &s.ShopkeeperContact, &s.SalespersonName)...)
		return s, err
	})
}

// ListItemDetails implements Repository. A variant only prices the line when it belongs to
// the referenced product; unknown products list with an empty name and a zero price.
func (r *PgRepository) ListItemDetails(ctx context.Context, filter Filter, page common.Page) ([]ItemDetail, error) {
	q := `SELECT oi.order_id, oi.product_id, oi.variant_id, COALESCE(p.name, ''), oi.quantity,
       COALESCE(v.price, p.retailer_price, 0)
FROM order_items oi
LEFT JOIN products p ON p.id = oi.product_id
LEFT JOIN product_variants v ON v.id = oi.variant_id AND v.product_id = oi.product_id
WHERE oi.order_id IN (` + pageSQL + `)
ORDER BY oi.order_id, oi.id`
	rows, err := r.pool.Query(ctx, q, filter.DistributorID, page.PerPage, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ItemDetail, error) {
		var d ItemDetail
		err := row.Scan(&d.OrderID, &d.ProductID, &d.VariantID, &d.ProductName, &d.Quantity, &d.Price)
		return d, err
	})
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) Prices() pricing.Catalog { return pricing.PgCatalog{DB: t.tx} }

func (t pgTx) Ledger() ledger.Store { return ledger.NewPgStore(t.tx) }

func (t pgTx) AccountKind(ctx context.Context, accountID int64) (string, error) {
	var kind string
	err := t.tx.QueryRow(ctx, `SELECT kind::text FROM accounts WHERE id = $1`, accountID).Scan(&kind)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrAccountNotFound
	}
	if err != nil {
		return "", fmt.Errorf("account kind: %w", err)
	}
	return kind, nil
}

func (t pgTx) CreateOrderWithItems(ctx context.Context, o Order, items []pricing.Item, payment *ledger.Fields) (Order, []Item, *ledger.UpsertResult, error) {
	const insertOrder = `INSERT INTO orders AS o (shopkeeper_id, distributor_id, salesperson_id, delivery_date, delivery_slot,
    payment_term, order_note, total_amount, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + orderColumns
	var created Order
	err := t.tx.QueryRow(ctx, insertOrder, o.ShopkeeperID, o.DistributorID, o.SalespersonID, o.DeliveryDate,
		o.DeliverySlot, o.PaymentTerm, o.OrderNote, o.TotalAmount, o.Status).Scan(orderDest(&created)...)
	if err != nil {
		return Order{}, nil, nil, translateCreateError(err)
	}

	out := make([]Item, 0, len(items))
	for _, it := range items {
		row := Item{OrderID: created.ID, ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity}
		err := t.tx.QueryRow(ctx,
			`INSERT INTO order_items (order_id, product_id, variant_id, quantity) VALUES ($1, $2, $3, $4) RETURNING id`,
			created.ID, it.ProductID, it.VariantID, it.Quantity).Scan(&row.ID)
		if err != nil {
			return Order{}, nil, nil, fmt.Errorf("insert order item: %w", err)
		}
		out = append(out, row)
	}

	if payment == nil {
		return created, out, nil, nil
	}
	res, err := ledger.NewPgStore(t.tx).UpsertPartialPayment(ctx, created.ID, *payment)
	if err != nil {
		return Order{}, nil, nil, err
	}
	return created, out, &res, nil
}

func (t pgTx) LockOrder(ctx context.Context, orderID int64) (Order, error) {
	var o Order
	err := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders o WHERE o.id = $1 FOR UPDATE`, orderID).Scan(orderDest(&o)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("lock order: %w", err)
	}
	return o, nil
}

// FindOrderItem picks the oldest matching line when the same product/variant appears twice.
func (t pgTx) FindOrderItem(ctx context.Context, orderID, productID int64, variantID *int64) (Item, error) {
	const q = `SELECT id, order_id, product_id, variant_id, quantity
FROM order_items
WHERE order_id = $1 AND product_id = $2 AND variant_id IS NOT DISTINCT FROM $3
ORDER BY id
LIMIT 1`
	var it Item
	err := t.tx.QueryRow(ctx, q, orderID, productID, variantID).Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("find order item: %w", err)
	}
	return it, nil
}

func (t pgTx) UpdateOrderItemQuantity(ctx context.Context, itemID int64, quantity int) (Item, error) {
	const q = `UPDATE order_items SET quantity = $2 WHERE id = $1
RETURNING id, order_id, product_id, variant_id, quantity`
	var it Item
	err := t.tx.QueryRow(ctx, q, itemID, quantity).Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Quantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("update order item: %w", err)
	}
	return it, nil
}

func (t pgTx) ListItems(ctx context.Context, orderID int64) ([]Item, error) {
	rows, err := t.tx.Query(ctx, `SELECT id, order_id, product_id, variant_id, quantity FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Item, error) {
		var it Item
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Quantity)
		return it, err
	})
}

func (t pgTx) UpdateOrder(ctx context.Context, o Order) (Order, error) {
	const q = `UPDATE orders AS o SET delivery_date = $2, delivery_slot = $3, status = $4, total_amount = $5, updated_at = now()
WHERE o.id = $1
RETURNING ` + orderColumns
	var updated Order
	err := t.tx.QueryRow(ctx, q, o.ID, o.DeliveryDate, o.DeliverySlot, o.Status, o.TotalAmount).Scan(orderDest(&updated)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("update order: %w", err)
	}
	return updated, nil
}

func orderDest(o *Order, extra ...any) []any {
	dest := []any{&o.ID, &o.ShopkeeperID, &o.DistributorID, &o.SalespersonID, &o.DeliveryDate, &o.DeliverySlot,
		&o.PaymentTerm, &o.OrderNote, &o.TotalAmount, &o.Status, &o.CreatedAt, &o.UpdatedAt}
	return append(dest, extra...)
}

func translateCreateError(err error) error {
	if db.PgErrorCode(err) == db.CodeForeignKeyViolation {
		constraint := db.ConstraintName(err)
		switch {
		case strings.Contains(constraint, "shopkeeper"):
			return ErrShopkeeperNotFound
		default:
			return ErrAccountNotFound
		}
	}
	return fmt.Errorf("insert order: %w", err)
}
