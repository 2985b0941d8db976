package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
)

// Service implements account management for admins.
type Service struct {
	store     Store
	hasher    Hasher
	validator *common.Validator
	logger    zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store     Store
	Hasher    Hasher
	Validator *common.Validator
	Logger    zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("accounts: store is required")
	}
	return &Service{store: cfg.Store, hasher: cfg.Hasher, validator: cfg.Validator, logger: cfg.Logger}, nil
}

// SignupAdmin creates an admin account.
func (s *Service) SignupAdmin(ctx context.Context, in AdminSignupInput) (Account, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validator.Struct(in); err != nil {
		return Account{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Account{}, s.internal(err, "hash password failed")
	}
	acc, err := s.store.CreateAdmin(ctx, in.Email, in.Name, hash)
	if err != nil {
		return Account{}, s.mapError(err, "create admin failed")
	}
	return acc, nil
}

// CreateSalesperson creates a salesperson account. Email, phone number and employee id
// must each be unused.
func (s *Service) CreateSalesperson(ctx context.Context, in SalespersonInput) (Salesperson, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.EmployeeID = strings.TrimSpace(in.EmployeeID)
	if err := s.validator.Struct(in); err != nil {
		return Salesperson{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Salesperson{}, s.internal(err, "hash password failed")
	}
	sp, err := s.store.CreateSalesperson(ctx, in, hash)
	if err != nil {
		return Salesperson{}, s.mapError(err, "create salesperson failed")
	}
	return sp, nil
}

// CreateDistributor creates a distributor account.
func (s *Service) CreateDistributor(ctx context.Context, in DistributorInput) (Distributor, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if err := s.validator.Struct(in); err != nil {
		return Distributor{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return Distributor{}, s.internal(err, "hash password failed")
	}
	d, err := s.store.CreateDistributor(ctx, in, hash)
	if err != nil {
		return Distributor{}, s.mapError(err, "create distributor failed")
	}
	return d, nil
}

// ListSalespeople returns every salesperson.
func (s *Service) ListSalespeople(ctx context.Context) ([]Salesperson, error) {
	rows, err := s.store.ListSalespeople(ctx)
	if err != nil {
		return nil, s.mapError(err, "list salespeople failed")
	}
	if rows == nil {
		rows = []Salesperson{}
	}
	return rows, nil
}

// ListDistributors returns every distributor.
func (s *Service) ListDistributors(ctx context.Context) ([]Distributor, error) {
	rows, err := s.store.ListDistributors(ctx)
	if err != nil {
		return nil, s.mapError(err, "list distributors failed")
	}
	if rows == nil {
		rows = []Distributor{}
	}
	return rows, nil
}

// UpdateDistributor applies a partial update to a distributor.
func (s *Service) UpdateDistributor(ctx context.Context, id int64, patch DistributorPatch) (Distributor, error) {
	if patch.Email != nil {
		email := normalizeEmail(*patch.Email)
		patch.Email = &email
	}
	if err := s.validator.Struct(patch); err != nil {
		return Distributor{}, err
	}
	if patch.Empty() {
		return Distributor{}, common.ValidationError("at least one field must be provided")
	}
	var hash *string
	if patch.Password != nil {
		h, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return Distributor{}, s.internal(err, "hash password failed")
		}
		hash = &h
	}
	d, err := s.store.UpdateDistributor(ctx, id, patch, hash)
	if err != nil {
		return Distributor{}, s.mapError(err, "update distributor failed")
	}
	return d, nil
}

// DeleteDistributor removes a distributor that has no orders.
func (s *Service) DeleteDistributor(ctx context.Context, id int64) error {
	if err := s.store.DeleteDistributor(ctx, id); err != nil {
		return s.mapError(err, "delete distributor failed")
	}
	return nil
}

func (s *Service) mapError(err error, msg string) error {
	switch {
	case common.IsAppError(err):
		return err
	case errors.Is(err, ErrNotFound):
		return common.NotFound("account", err)
	case errors.Is(err, ErrEmailTaken):
		return common.Conflict("email is already registered", err)
	case errors.Is(err, ErrPhoneTaken):
		return common.Conflict("phone number is already registered", err)
	case errors.Is(err, ErrEmployeeIDTaken):
		return common.Conflict("employee id is already registered", err)
	case errors.Is(err, ErrDistributorInUse):
		return common.Conflict("distributor has orders and cannot be deleted", err)
	default:
		return s.internal(err, msg)
	}
}

func (s *Service) internal(err error, msg string) error {
	s.logger.Error().Err(err).Msg(msg)
	return common.Internal(fmt.Errorf("%s: %w", msg, err))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
