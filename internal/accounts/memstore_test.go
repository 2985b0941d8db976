package accounts

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
)

var testHasher = Hasher{Params: &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}}

type memStore struct {
	mu           sync.Mutex
	nextID       int64
	accounts     map[int64]Account
	salespeople  map[int64]Salesperson
	distributors map[int64]Distributor
	withOrders   map[int64]bool
}

func newMemStore() *memStore {
	return &memStore{
		accounts:     map[int64]Account{},
		salespeople:  map[int64]Salesperson{},
		distributors: map[int64]Distributor{},
		withOrders:   map[int64]bool{},
	}
}

func (m *memStore) insert(kind, email, name, phone, hash string) (Account, error) {
	for _, a := range m.accounts {
		if a.Email == email {
			return Account{}, ErrEmailTaken
		}
		if kind == RoleSalesperson && a.Kind == RoleSalesperson && a.PhoneNumber == phone {
			return Account{}, ErrPhoneTaken
		}
	}
	m.nextID++
	now := time.Now()
	a := Account{ID: m.nextID, Kind: kind, Email: email, Name: name, PhoneNumber: phone, PasswordHash: hash, CreatedAt: now, UpdatedAt: now}
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memStore) CreateAdmin(_ context.Context, email, name, hash string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insert(RoleAdmin, email, name, "", hash)
}

func (m *memStore) CreateSalesperson(_ context.Context, in SalespersonInput, hash string) (Salesperson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sp := range m.salespeople {
		if sp.EmployeeID == in.EmployeeID {
			return Salesperson{}, ErrEmployeeIDTaken
		}
	}
	a, err := m.insert(RoleSalesperson, in.Email, in.Name, in.PhoneNumber, hash)
	if err != nil {
		return Salesperson{}, err
	}
	sp := Salesperson{Account: a, EmployeeID: in.EmployeeID, PAN: in.PAN, Address: in.Address}
	m.salespeople[a.ID] = sp
	return sp, nil
}

func (m *memStore) CreateDistributor(_ context.Context, in DistributorInput, hash string) (Distributor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, err := m.insert(RoleDistributor, in.Email, in.Name, in.PhoneNumber, hash)
	if err != nil {
		return Distributor{}, err
	}
	d := Distributor{Account: a, GSTNumber: in.GSTNumber, PAN: in.PAN, Address: in.Address}
	m.distributors[a.ID] = d
	return d, nil
}

func (m *memStore) ListSalespeople(context.Context) ([]Salesperson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Salesperson, 0, len(m.salespeople))
	for _, sp := range m.salespeople {
		out = append(out, sp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) ListDistributors(context.Context) ([]Distributor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Distributor, 0, len(m.distributors))
	for _, d := range m.distributors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) UpdateDistributor(_ context.Context, id int64, patch DistributorPatch, hash *string) (Distributor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.distributors[id]
	if !ok {
		return Distributor{}, ErrNotFound
	}
	if patch.Email != nil {
		for _, a := range m.accounts {
			if a.ID != id && a.Email == *patch.Email {
				return Distributor{}, ErrEmailTaken
			}
		}
		d.Email = *patch.Email
	}
	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if patch.PhoneNumber != nil {
		d.PhoneNumber = *patch.PhoneNumber
	}
	if patch.Address != nil {
		d.Address = *patch.Address
	}
	if patch.GSTNumber != nil {
		d.GSTNumber = *patch.GSTNumber
	}
	if patch.PAN != nil {
		d.PAN = *patch.PAN
	}
	if hash != nil {
		d.PasswordHash = *hash
	}
	m.distributors[id] = d
	m.accounts[id] = d.Account
	return d, nil
}

func (m *memStore) DeleteDistributor(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.distributors[id]; !ok {
		return ErrNotFound
	}
	if m.withOrders[id] {
		return ErrDistributorInUse
	}
	delete(m.distributors, id)
	delete(m.accounts, id)
	return nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Email == email {
			return a, nil
		}
	}
	return Account{}, ErrNotFound
}

func (m *memStore) FindByID(_ context.Context, id int64) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrNotFound
	}
	return a, nil
}
