// Package shop onboards and lists the shopkeepers that orders are placed for.
package shop

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
)

var (
	ErrContactTaken = errors.New("shop: contact number already registered")
)

// Shopkeeper is a retail customer onboarded by a salesperson.
type Shopkeeper struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	OwnerName             string    `json:"ownerName"`
	ContactNumber         string    `json:"contactNumber"`
	Email                 string    `json:"email"`
	GPSLocation           string    `json:"gpsLocation"`
	ImageURL              string    `json:"imageUrl"`
	VideoURL              string    `json:"videoUrl"`
	PreferredDeliverySlot string    `json:"preferredDeliverySlot"`
	SalespersonID         *int64    `json:"salespersonId"`
	CreatedAt             time.Time `json:"createdAt"`
}

// CreateInput is the body of POST /salesperson/create-shop.
type CreateInput struct {
	Name                  string `json:"name" validate:"required,max=200"`
	OwnerName             string `json:"ownerName" validate:"required,max=200"`
	ContactNumber         string `json:"contactNumber" validate:"required,numeric,len=10"`
	Email                 string `json:"email" validate:"omitempty,email"`
	GPSLocation           string `json:"gpsLocation" validate:"max=120"`
	ImageURL              string `json:"imageUrl" validate:"omitempty,url"`
	VideoURL              string `json:"videoUrl" validate:"omitempty,url"`
	PreferredDeliverySlot string `json:"preferredDeliverySlot" validate:"max=60"`
	SalespersonID         *int64 `json:"salespersonId" validate:"omitempty,gt=0"`
}

// Store persists shopkeepers.
type Store interface {
	Create(ctx context.Context, in CreateInput) (Shopkeeper, error)
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, page common.Page) ([]Shopkeeper, error)
}

// Service implements shopkeeper onboarding.
type Service struct {
	store     Store
	validator *common.Validator
	logger    zerolog.Logger
}

// NewService constructs a Service.
func NewService(store Store, validator *common.Validator, logger zerolog.Logger) *Service {
	return &Service{store: store, validator: validator, logger: logger}
}

// Create onboards a shopkeeper. The onboarding salesperson is recorded unless the body
// names one explicitly.
func (s *Service) Create(ctx context.Context, salespersonID int64, in CreateInput) (Shopkeeper, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.OwnerName = strings.TrimSpace(in.OwnerName)
	in.ContactNumber = strings.TrimSpace(in.ContactNumber)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validator.Struct(in); err != nil {
		return Shopkeeper{}, err
	}
	if in.SalespersonID == nil && salespersonID > 0 {
		in.SalespersonID = &salespersonID
	}
	sk, err := s.store.Create(ctx, in)
	if err != nil {
		if errors.Is(err, ErrContactTaken) {
			return Shopkeeper{}, common.Conflict("shopkeeper with this contact number already exists", err)
		}
		s.logger.Error().Err(err).Msg("create shopkeeper failed")
		return Shopkeeper{}, common.Internal(err)
	}
	return sk, nil
}

// List returns one page of shopkeepers and the total count.
func (s *Service) List(ctx context.Context, page common.Page) ([]Shopkeeper, int, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("count shopkeepers failed")
		return nil, 0, common.Internal(err)
	}
	rows, err := s.store.List(ctx, page)
	if err != nil {
		s.logger.Error().Err(err).Msg("list shopkeepers failed")
		return nil, 0, common.Internal(err)
	}
	if rows == nil {
		rows = []Shopkeeper{}
	}
	return rows, total, nil
}
