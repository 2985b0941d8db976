package order

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/ledger"
	"github.com/noah-isme/backend-b2b-orders/internal/pricing"
)

// memRepo is an in-memory Repository. WithTx holds the lock for the whole callback and
// restores a snapshot when the callback fails.
type memRepo struct {
	mu          sync.Mutex
	accounts    map[int64]string
	names       map[int64]string
	shopkeepers map[int64][2]string
	products    map[int64]memProduct
	orders      map[int64]Order
	items       map[int64]Item
	payments    map[int64]ledger.PartialPayment
	nextOrder   int64
	nextItem    int64
	nextPayment int64
	now         time.Time
}

type memProduct struct {
	name     string
	retailer float64
	variants map[int64]float64
}

func newMemRepo() *memRepo {
	return &memRepo{
		accounts:    map[int64]string{10: "DISTRIBUTOR", 11: "DISTRIBUTOR", 20: "SALESPERSON", 30: "ADMIN"},
		names:       map[int64]string{10: "Dist One", 11: "Dist Two", 20: "Sam Sales"},
		shopkeepers: map[int64][2]string{100: {"Corner Shop", "9876543210"}},
		products: map[int64]memProduct{
			1: {name: "Rice 5kg", retailer: 50},
			2: {name: "Oil 1L", retailer: 100, variants: map[int64]float64{20: 80}},
			3: {name: "Tea", retailer: 10, variants: map[int64]float64{30: 12}},
		},
		orders:   map[int64]Order{},
		items:    map[int64]Item{},
		payments: map[int64]ledger.PartialPayment{},
		now:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

type memSnapshot struct {
	orders   map[int64]Order
	items    map[int64]Item
	payments map[int64]ledger.PartialPayment
	counters [3]int64
}

func (r *memRepo) snapshot() memSnapshot {
	s := memSnapshot{
		orders:   make(map[int64]Order, len(r.orders)),
		items:    make(map[int64]Item, len(r.items)),
		payments: make(map[int64]ledger.PartialPayment, len(r.payments)),
		counters: [3]int64{r.nextOrder, r.nextItem, r.nextPayment},
	}
	for k, v := range r.orders {
		s.orders[k] = v
	}
	for k, v := range r.items {
		s.items[k] = v
	}
	for k, v := range r.payments {
		s.payments[k] = v
	}
	return s
}

func (r *memRepo) restore(s memSnapshot) {
	r.orders, r.items, r.payments = s.orders, s.items, s.payments
	r.nextOrder, r.nextItem, r.nextPayment = s.counters[0], s.counters[1], s.counters[2]
}

func (r *memRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot()
	if err := fn(ctx, memTx{r: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memRepo) FindProductPrices(ctx context.Context, productIDs, variantIDs []int64) ([]pricing.ProductPrice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prices(productIDs, variantIDs), nil
}

func (r *memRepo) prices(productIDs, variantIDs []int64) []pricing.ProductPrice {
	wanted := map[int64]bool{}
	for _, id := range variantIDs {
		wanted[id] = true
	}
	var out []pricing.ProductPrice
	for _, id := range productIDs {
		p, ok := r.products[id]
		if !ok {
			continue
		}
		pp := pricing.ProductPrice{ID: id, RetailerPrice: p.retailer}
		for vid, price := range p.variants {
			if wanted[vid] {
				pp.Variants = append(pp.Variants, pricing.VariantPrice{ID: vid, Price: price})
			}
		}
		out = append(out, pp)
	}
	return out
}

func (r *memRepo) filtered(filter Filter) []Order {
	var out []Order
	for _, o := range r.orders {
		if filter.DistributorID == 0 || o.DistributorID == filter.DistributorID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *memRepo) page(filter Filter, page common.Page) []Order {
	all := r.filtered(filter)
	start := page.Offset()
	if start >= len(all) {
		return nil
	}
	end := start + page.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

func (r *memRepo) CountOrders(_ context.Context, filter Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.filtered(filter)), nil
}

func (r *memRepo) ListOrders(_ context.Context, filter Filter, page common.Page) ([]Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Summary
	for _, o := range r.page(filter, page) {
		shop := r.shopkeepers[o.ShopkeeperID]
		out = append(out, Summary{Order: o, ShopkeeperName: shop[0], ShopkeeperContact: shop[1], SalespersonName: r.names[o.SalespersonID]})
	}
	return out, nil
}

func (r *memRepo) ListItemDetails(_ context.Context, filter Filter, page common.Page) ([]ItemDetail, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ItemDetail
	for _, o := range r.page(filter, page) {
		for _, it := range r.orderItems(o.ID) {
			p := r.products[it.ProductID]
			price := p.retailer
			if it.VariantID != nil {
				if vp, ok := p.variants[*it.VariantID]; ok {
					price = vp
				}
			}
			out = append(out, ItemDetail{OrderID: o.ID, ProductID: it.ProductID, VariantID: it.VariantID, ProductName: p.name, Quantity: it.Quantity, Price: price})
		}
	}
	return out, nil
}

func (r *memRepo) orderItems(orderID int64) []Item {
	var out []Item
	for _, it := range r.items {
		if it.OrderID == orderID {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memRepo) order(id int64) Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id]
}

func (r *memRepo) itemsOf(id int64) []Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orderItems(id)
}

func (r *memRepo) payment(orderID int64) (ledger.PartialPayment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[orderID]
	return p, ok
}

func (r *memRepo) setRetailerPrice(productID int64, price float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.products[productID]
	p.retailer = price
	r.products[productID] = p
}

type memTx struct {
	r *memRepo
}

func (t memTx) Prices() pricing.Catalog { return memTxCatalog(t) }

func (t memTx) Ledger() ledger.Store { return memLedger(t) }

func (t memTx) AccountKind(_ context.Context, accountID int64) (string, error) {
	kind, ok := t.r.accounts[accountID]
	if !ok {
		return "", ErrAccountNotFound
	}
	return kind, nil
}

func (t memTx) CreateOrderWithItems(ctx context.Context, o Order, items []pricing.Item, payment *ledger.Fields) (Order, []Item, *ledger.UpsertResult, error) {
	if _, ok := t.r.shopkeepers[o.ShopkeeperID]; !ok {
		return Order{}, nil, nil, ErrShopkeeperNotFound
	}
	if _, ok := t.r.accounts[o.SalespersonID]; !ok {
		return Order{}, nil, nil, ErrAccountNotFound
	}
	t.r.nextOrder++
	o.ID = t.r.nextOrder
	o.CreatedAt, o.UpdatedAt = t.r.now, t.r.now
	t.r.orders[o.ID] = o
	out := make([]Item, 0, len(items))
	for _, it := range items {
		t.r.nextItem++
		row := Item{ID: t.r.nextItem, OrderID: o.ID, ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity}
		t.r.items[row.ID] = row
		out = append(out, row)
	}
	if payment == nil {
		return o, out, nil, nil
	}
	res, err := memLedger(t).UpsertPartialPayment(ctx, o.ID, *payment)
	if err != nil {
		return Order{}, nil, nil, err
	}
	return o, out, &res, nil
}

func (t memTx) LockOrder(_ context.Context, orderID int64) (Order, error) {
	o, ok := t.r.orders[orderID]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (t memTx) FindOrderItem(_ context.Context, orderID, productID int64, variantID *int64) (Item, error) {
	for _, it := range t.r.orderItems(orderID) {
		if it.ProductID != productID {
			continue
		}
		if (it.VariantID == nil) != (variantID == nil) {
			continue
		}
		if it.VariantID != nil && *it.VariantID != *variantID {
			continue
		}
		return it, nil
	}
	return Item{}, ErrItemNotFound
}

func (t memTx) UpdateOrderItemQuantity(_ context.Context, itemID int64, quantity int) (Item, error) {
	it, ok := t.r.items[itemID]
	if !ok {
		return Item{}, ErrItemNotFound
	}
	it.Quantity = quantity
	t.r.items[itemID] = it
	return it, nil
}

func (t memTx) ListItems(_ context.Context, orderID int64) ([]Item, error) {
	return t.r.orderItems(orderID), nil
}

func (t memTx) UpdateOrder(_ context.Context, o Order) (Order, error) {
	if _, ok := t.r.orders[o.ID]; !ok {
		return Order{}, ErrNotFound
	}
	o.UpdatedAt = t.r.now
	t.r.orders[o.ID] = o
	return o, nil
}

type memTxCatalog memTx

func (c memTxCatalog) FindProductPrices(_ context.Context, productIDs, variantIDs []int64) ([]pricing.ProductPrice, error) {
	return c.r.prices(productIDs, variantIDs), nil
}

// memLedger is the transactional ledger view; only the upsert is used by the order service.
type memLedger memTx

func (l memLedger) UpsertPartialPayment(_ context.Context, orderID int64, f ledger.Fields) (ledger.UpsertResult, error) {
	if _, ok := l.r.orders[orderID]; !ok {
		return ledger.UpsertResult{}, ledger.ErrOrderNotFound
	}
	p, exists := l.r.payments[orderID]
	if !exists {
		l.r.nextPayment++
		p = ledger.PartialPayment{ID: l.r.nextPayment, OrderID: orderID, DueDate: l.r.now, PaymentStatus: ledger.StatusPending, CreatedAt: l.r.now}
	}
	if f.InitialAmount != nil {
		p.InitialAmount = *f.InitialAmount
	}
	if f.RemainingAmount != nil {
		p.RemainingAmount = *f.RemainingAmount
	}
	if f.DueDate != nil {
		p.DueDate = *f.DueDate
	}
	if f.PaymentStatus != nil {
		p.PaymentStatus = *f.PaymentStatus
	}
	p.UpdatedAt = l.r.now
	l.r.payments[orderID] = p
	return ledger.UpsertResult{Payment: p, Created: !exists}, nil
}

func (l memLedger) OrderDistributor(_ context.Context, orderID int64) (int64, error) {
	o, ok := l.r.orders[orderID]
	if !ok {
		return 0, ledger.ErrOrderNotFound
	}
	return o.DistributorID, nil
}

func (l memLedger) SumRemaining(context.Context, ledger.BalanceFilter) (float64, error) {
	return 0, errors.New("not supported")
}

func (l memLedger) BalancesByShopkeeper(context.Context, int64) ([]ledger.ShopkeeperBalance, error) {
	return nil, errors.New("not supported")
}

func (l memLedger) GetPartialPayment(_ context.Context, orderID int64) (ledger.PartialPayment, error) {
	p, ok := l.r.payments[orderID]
	if !ok {
		return ledger.PartialPayment{}, ledger.ErrPaymentNotFound
	}
	return p, nil
}
