package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memOrder struct {
	distributorID int64
	shopkeeperID  int64
	shopkeeper    string
	status        string
}

// memStore mirrors the PgStore queries over maps.
type memStore struct {
	mu       sync.Mutex
	orders   map[int64]memOrder
	payments map[int64]PartialPayment
	nextID   int64
	now      time.Time
	err      error
}

func newMemStore() *memStore {
	return &memStore{
		orders:   map[int64]memOrder{},
		payments: map[int64]PartialPayment{},
		now:      time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) addOrder(id, distributorID, shopkeeperID int64, shopkeeper, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[id] = memOrder{distributorID: distributorID, shopkeeperID: shopkeeperID, shopkeeper: shopkeeper, status: status}
}

func (m *memStore) setOrderStatus(id int64, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.orders[id]
	o.status = status
	m.orders[id] = o
}

func (m *memStore) OrderDistributor(_ context.Context, orderID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return 0, ErrOrderNotFound
	}
	return o.distributorID, nil
}

func (m *memStore) UpsertPartialPayment(_ context.Context, orderID int64, f Fields) (UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return UpsertResult{}, m.err
	}
	if _, ok := m.orders[orderID]; !ok {
		return UpsertResult{}, ErrOrderNotFound
	}
	p, exists := m.payments[orderID]
	if !exists {
		m.nextID++
		p = PartialPayment{ID: m.nextID, OrderID: orderID, DueDate: m.now, PaymentStatus: StatusPending, CreatedAt: m.now}
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
	p.UpdatedAt = m.now
	m.payments[orderID] = p
	return UpsertResult{Payment: p, Created: !exists}, nil
}

func (m *memStore) SumRemaining(_ context.Context, filter BalanceFilter) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var total float64
	for orderID, p := range m.payments {
		o := m.orders[orderID]
		if o.distributorID == filter.DistributorID && o.shopkeeperID == filter.ShopkeeperID &&
			o.status == "PENDING" && p.PaymentStatus == StatusPending {
			total += p.RemainingAmount
		}
	}
	return total, nil
}

func (m *memStore) BalancesByShopkeeper(_ context.Context, distributorID int64) ([]ShopkeeperBalance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	byShop := map[int64]*ShopkeeperBalance{}
	for orderID, o := range m.orders {
		if o.distributorID != distributorID || o.status != "PENDING" {
			continue
		}
		b, ok := byShop[o.shopkeeperID]
		if !ok {
			b = &ShopkeeperBalance{ShopkeeperID: o.shopkeeperID, Name: o.shopkeeper}
			byShop[o.shopkeeperID] = b
		}
		if p, ok := m.payments[orderID]; ok {
			b.TotalBalance += p.RemainingAmount
		}
	}
	out := make([]ShopkeeperBalance, 0, len(byShop))
	for _, b := range byShop {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShopkeeperID < out[j].ShopkeeperID })
	return out, nil
}

func (m *memStore) GetPartialPayment(_ context.Context, orderID int64) (PartialPayment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return PartialPayment{}, m.err
	}
	p, ok := m.payments[orderID]
	if !ok {
		return PartialPayment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (m *memStore) rows() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.payments)
}
