// Package accounts manages the admin, salesperson and distributor accounts. All three kinds
// live in one table tagged by kind, with kind-specific columns in profile tables.
package accounts

import (
	"context"
	"errors"
	"time"
)

// Account kinds double as JWT roles.
const (
	RoleAdmin       = "ADMIN"
	RoleSalesperson = "SALESPERSON"
	RoleDistributor = "DISTRIBUTOR"
)

var (
	ErrNotFound         = errors.New("accounts: account not found")
	ErrEmailTaken       = errors.New("accounts: email already registered")
	ErrPhoneTaken       = errors.New("accounts: phone number already registered")
	ErrEmployeeIDTaken  = errors.New("accounts: employee id already registered")
	ErrDistributorInUse = errors.New("accounts: distributor has orders")
)

// Account is the common part of every account kind.
type Account struct {
	ID           int64     `json:"id"`
	Kind         string    `json:"role"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PhoneNumber  string    `json:"phoneNumber,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Salesperson is an account that onboards shopkeepers and places orders.
type Salesperson struct {
	Account
	EmployeeID string `json:"employeeId"`
	PAN        string `json:"pan"`
	Address    string `json:"address"`
}

// Distributor is an account that fulfils orders and tracks their payment.
type Distributor struct {
	Account
	GSTNumber string `json:"gstNumber"`
	PAN       string `json:"pan"`
	Address   string `json:"address"`
}

// AdminSignupInput is the body of POST /admin/signup.
type AdminSignupInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"max=200"`
}

// SalespersonInput is the body of POST /admin/create-salesperson.
type SalespersonInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	Name        string `json:"name" validate:"required,max=200"`
	PhoneNumber string `json:"phoneNumber" validate:"required,min=10,max=15"`
	EmployeeID  string `json:"employeeId" validate:"required,max=60"`
	PAN         string `json:"pan" validate:"max=20"`
	Address     string `json:"address" validate:"max=500"`
}

// DistributorInput is the body of POST /admin/create-distributor.
type DistributorInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	PhoneNumber string `json:"phoneNumber" validate:"required,numeric,min=10,max=15"`
	GSTNumber   string `json:"gstNumber" validate:"max=20"`
	PAN         string `json:"pan" validate:"omitempty,len=10"`
	Address     string `json:"address" validate:"required,max=500"`
}

// DistributorPatch is the body of PUT /admin/distributor/{id}. Nil fields are left unchanged.
type DistributorPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Email       *string `json:"email" validate:"omitempty,email"`
	Password    *string `json:"password" validate:"omitempty,min=6"`
	PhoneNumber *string `json:"phoneNumber" validate:"omitempty,numeric,min=10,max=15"`
	GSTNumber   *string `json:"gstNumber" validate:"omitempty,max=20"`
	PAN         *string `json:"pan" validate:"omitempty,len=10"`
	Address     *string `json:"address" validate:"omitempty,min=1,max=500"`
}

// Empty reports whether the patch changes nothing.
func (p DistributorPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil && p.PhoneNumber == nil &&
		p.GSTNumber == nil && p.PAN == nil && p.Address == nil
}

// Store persists accounts.
type Store interface {
	CreateAdmin(ctx context.Context, email, name, passwordHash string) (Account, error)
	CreateSalesperson(ctx context.Context, in SalespersonInput, passwordHash string) (Salesperson, error)
	CreateDistributor(ctx context.Context, in DistributorInput, passwordHash string) (Distributor, error)
	ListSalespeople(ctx context.Context) ([]Salesperson, error)
	ListDistributors(ctx context.Context) ([]Distributor, error)
	// UpdateDistributor applies patch; passwordHash replaces the stored hash when non-nil.
	UpdateDistributor(ctx context.Context, id int64, patch DistributorPatch, passwordHash *string) (Distributor, error)
	DeleteDistributor(ctx context.Context, id int64) error
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id int64) (Account, error)
}
