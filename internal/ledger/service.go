package ledger

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/events"
)

// ReminderScheduler schedules a payment-due reminder for an order.
type ReminderScheduler interface {
	ScheduleDueReminder(ctx context.Context, orderID int64, dueDate time.Time) error
}

// Service implements the partial payment ledger.
type Service struct {
	store     Store
	reminders ReminderScheduler
	events    events.Emitter
	logger    zerolog.Logger
	upserts   metric.Int64Counter
}

// ServiceConfig groups Service dependencies. Only Store is required.
type ServiceConfig struct {
	Store     Store
	Reminders ReminderScheduler
	Events    events.Emitter
	Logger    zerolog.Logger
	Meter     metric.Meter
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("ledger: store is required")
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter("github.com/noah-isme/backend-b2b-orders/internal/ledger")
	}
	upserts, err := meter.Int64Counter("ledger.upserts",
		metric.WithDescription("Partial payment upserts by outcome."),
		metric.WithUnit("{upsert}"),
	)
	if err != nil {
		return nil, err
	}
	return &Service{
		store:     cfg.Store,
		reminders: cfg.Reminders,
		events:    cfg.Events,
		logger:    cfg.Logger,
		upserts:   upserts,
	}, nil
}

// ValidateFields rejects negative amounts and unknown statuses.
func ValidateFields(f Fields) error {
	var messages []string
	if f.InitialAmount != nil && (*f.InitialAmount < 0 || math.IsNaN(*f.InitialAmount)) {
		messages = append(messages, "initialAmount must be greater than or equal to 0")
	}
	if f.RemainingAmount != nil && (*f.RemainingAmount < 0 || math.IsNaN(*f.RemainingAmount)) {
		messages = append(messages, "remainingAmount must be greater than or equal to 0")
	}
	if f.PaymentStatus != nil && !ValidStatus(*f.PaymentStatus) {
		messages = append(messages, "paymentStatus must be one of PENDING, PAID, OVERDUE")
	}
	if len(messages) > 0 {
		return common.ValidationError(messages...)
	}
	return nil
}

// UpsertPayment creates or partially updates the partial payment of orderID. The caller
// must own the order.
func (s *Service) UpsertPayment(ctx context.Context, distributorID, orderID int64, f Fields) (PartialPayment, error) {
	if err := ValidateFields(f); err != nil {
		return PartialPayment{}, err
	}
	owner, err := s.store.OrderDistributor(ctx, orderID)
	if err != nil {
		s.count(ctx, "error")
		return PartialPayment{}, s.mapError(err, orderID)
	}
	if owner != distributorID {
		s.count(ctx, "forbidden")
		return PartialPayment{}, common.Forbidden("you are not authorized to update this order", ErrForbidden)
	}
	res, err := s.store.UpsertPartialPayment(ctx, orderID, f)
	if err != nil {
		s.count(ctx, "error")
		return PartialPayment{}, s.mapError(err, orderID)
	}
	s.AfterUpsert(ctx, res, f)
	return res.Payment, nil
}

// AfterUpsert runs the side effects of a committed upsert: metrics, the payment.updated
// event and a due reminder when the row is new or its due date was supplied. Failures are
// logged and never fail the request.
func (s *Service) AfterUpsert(ctx context.Context, res UpsertResult, f Fields) {
	if res.Created {
		s.count(ctx, "created")
	} else {
		s.count(ctx, "updated")
	}
	p := res.Payment
	if s.events != nil {
		if _, err := s.events.Emit(ctx, events.TopicPaymentUpdated, p.OrderID, p); err != nil {
			s.logger.Warn().Err(err).Int64("order_id", p.OrderID).Msg("emit payment event failed")
		}
	}
	if s.reminders != nil && (res.Created || f.DueDate != nil) && p.PaymentStatus == StatusPending {
		if err := s.reminders.ScheduleDueReminder(ctx, p.OrderID, p.DueDate); err != nil {
			s.logger.Warn().Err(err).Int64("order_id", p.OrderID).Msg("schedule payment reminder failed")
		}
	}
}

// ShopkeeperBalance returns the unpaid balance of a shopkeeper with the distributor. Only
// rows where both the order and the payment are PENDING count.
func (s *Service) ShopkeeperBalance(ctx context.Context, distributorID, shopkeeperID int64) (float64, error) {
	total, err := s.store.SumRemaining(ctx, BalanceFilter{DistributorID: distributorID, ShopkeeperID: shopkeeperID})
	if err != nil {
		s.logger.Error().Err(err).Int64("distributor_id", distributorID).Int64("shopkeeper_id", shopkeeperID).Msg("shopkeeper balance failed")
		return 0, common.Internal(err)
	}
	return total, nil
}

// ShopkeepersWithBalances lists shopkeepers holding at least one pending order with the
// distributor, with the sum of those orders' remaining amounts. Payment status is ignored.
func (s *Service) ShopkeepersWithBalances(ctx context.Context, distributorID int64) ([]ShopkeeperBalance, error) {
	balances, err := s.store.BalancesByShopkeeper(ctx, distributorID)
	if err != nil {
		s.logger.Error().Err(err).Int64("distributor_id", distributorID).Msg("shopkeeper balances failed")
		return nil, common.Internal(err)
	}
	if balances == nil {
		balances = []ShopkeeperBalance{}
	}
	return balances, nil
}

// PendingPayment returns the row for orderID when it still has an unpaid balance.
func (s *Service) PendingPayment(ctx context.Context, orderID int64) (PartialPayment, bool, error) {
	p, err := s.store.GetPartialPayment(ctx, orderID)
	if errors.Is(err, ErrPaymentNotFound) {
		return PartialPayment{}, false, nil
	}
	if err != nil {
		return PartialPayment{}, false, err
	}
	return p, p.PaymentStatus == StatusPending && p.RemainingAmount > 0, nil
}

func (s *Service) mapError(err error, orderID int64) error {
	if errors.Is(err, ErrOrderNotFound) {
		return common.NotFound("order", err)
	}
	s.logger.Error().Err(err).Int64("order_id", orderID).Msg("partial payment upsert failed")
	return common.Internal(err)
}

func (s *Service) count(ctx context.Context, result string) {
	s.upserts.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
