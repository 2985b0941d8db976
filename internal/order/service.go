package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/backend-b2b-orders/internal/accounts"
	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/events"
	"github.com/noah-isme/backend-b2b-orders/internal/ledger"
	"github.com/noah-isme/backend-b2b-orders/internal/obs"
	"github.com/noah-isme/backend-b2b-orders/internal/pricing"
)

// Service creates, edits and lists orders.
type Service struct {
	repo      Repository
	resolver  *pricing.Resolver
	validator *common.Validator
	ledger    *ledger.Service
	events    events.Emitter
	logger    zerolog.Logger
}

// ServiceConfig groups Service dependencies. Ledger and Events are optional.
type ServiceConfig struct {
	Repository Repository
	Resolver   *pricing.Resolver
	Validator  *common.Validator
	Ledger     *ledger.Service
	Events     events.Emitter
	Logger     zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("order: repository is required")
	}
	if cfg.Resolver == nil {
		return nil, errors.New("order: price resolver is required")
	}
	return &Service{
		repo:      cfg.Repository,
		resolver:  cfg.Resolver,
		validator: cfg.Validator,
		ledger:    cfg.Ledger,
		events:    cfg.Events,
		logger:    cfg.Logger,
	}, nil
}

// Create prices the items, computes the total and writes the order, its items and, for
// PARTIAL orders carrying a payload, the partial payment in one transaction.
func (s *Service) Create(ctx context.Context, salespersonID int64, in CreateInput) (Created, error) {
	if err := s.validator.Struct(in); err != nil {
		return Created{}, err
	}
	if in.PaymentTerm == TermPartial && in.PartialPayment != nil {
		if err := s.validator.Struct(partialPaymentBody{PartialPayment: in.PartialPayment}); err != nil {
			return Created{}, err
		}
	}
	if in.SalespersonID == 0 {
		in.SalespersonID = salespersonID
	}
	if in.SalespersonID != salespersonID {
		return Created{}, common.Forbidden("orders can only be placed on your own behalf", ErrForbidden)
	}

	items := make([]pricing.Item, 0, len(in.Items))
	for _, it := range in.Items {
		items = append(items, it.pricingItem())
	}
	prices, err := s.resolver.ResolvePrices(ctx, pricing.Refs(items))
	if err != nil {
		return Created{}, s.internal(err, "resolve prices failed")
	}
	total := pricing.ComputeTotal(pricing.Lines(prices, items))

	var payment *ledger.Fields
	if in.PaymentTerm == TermPartial && in.PartialPayment != nil {
		due := in.PartialPayment.DueDate.Time
		payment = &ledger.Fields{
			InitialAmount:   &in.PartialPayment.InitialAmount,
			RemainingAmount: &in.PartialPayment.RemainingAmount,
			DueDate:         &due,
		}
	}

	draft := Order{
		ShopkeeperID:  in.ShopkeeperID,
		DistributorID: in.DistributorID,
		SalespersonID: in.SalespersonID,
		DeliveryDate:  in.DeliveryDate.Time,
		DeliverySlot:  strings.TrimSpace(in.DeliverySlot),
		PaymentTerm:   in.PaymentTerm,
		OrderNote:     strings.TrimSpace(in.OrderNote),
		TotalAmount:   total,
		Status:        StatusPending,
	}

	var (
		out    Created
		upsert *ledger.UpsertResult
	)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		kind, err := tx.AccountKind(ctx, draft.DistributorID)
		if errors.Is(err, ErrAccountNotFound) || (err == nil && kind != accounts.RoleDistributor) {
			return common.NotFound("distributor", ErrAccountNotFound)
		}
		if err != nil {
			return err
		}
		created, createdItems, res, err := tx.CreateOrderWithItems(ctx, draft, items, payment)
		if err != nil {
			return err
		}
		out = Created{Order: created, Items: createdItems}
		upsert = res
		return nil
	})
	if err != nil {
		obs.IncCounter(obs.OrdersCreatedTotal, in.PaymentTerm, "error")
		return Created{}, s.mapError(err, "create order failed")
	}
	obs.IncCounter(obs.OrdersCreatedTotal, in.PaymentTerm, "ok")
	obs.ObserveOrderTotal(out.Order.TotalAmount)

	s.emit(ctx, events.TopicOrderCreated, out.Order)
	if upsert != nil {
		out.PartialPayment = &upsert.Payment
		if s.ledger != nil {
			s.ledger.AfterUpsert(ctx, *upsert, *payment)
		}
	}
	return out, nil
}

// Edit applies a distributor's changes to one of their orders. Item quantity changes
// trigger a full recomputation of the order total over all of its items. Everything runs
// in one transaction holding a row lock on the order; any failure leaves the order as it was.
func (s *Service) Edit(ctx context.Context, distributorID, orderID int64, in EditInput) (Edited, error) {
	if err := s.validator.Struct(in); err != nil {
		return Edited{}, err
	}
	if in.Empty() {
		return Edited{}, common.ValidationError("at least one of deliveryDate, deliverySlot, status, partialPayment or items must be provided")
	}
	var fields ledger.Fields
	if in.PartialPayment != nil {
		fields = in.PartialPayment.Fields()
		if err := ledger.ValidateFields(fields); err != nil {
			return Edited{}, err
		}
	}

	var (
		out    Edited
		upsert *ledger.UpsertResult
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if o.DistributorID != distributorID {
			return ErrForbidden
		}

		for _, change := range in.Items {
			item, err := tx.FindOrderItem(ctx, orderID, change.ProductID, change.VariantID)
			if err != nil {
				return err
			}
			if _, err := tx.UpdateOrderItemQuantity(ctx, item.ID, change.Quantity); err != nil {
				return err
			}
		}

		items, err := tx.ListItems(ctx, orderID)
		if err != nil {
			return err
		}
		if len(in.Items) > 0 {
			total, err := recomputeTotal(ctx, tx, items)
			if err != nil {
				return err
			}
			o.TotalAmount = total
		}
		if in.DeliveryDate != nil && !in.DeliveryDate.IsZero() {
			o.DeliveryDate = in.DeliveryDate.Time
		}
		if in.DeliverySlot != nil {
			o.DeliverySlot = strings.TrimSpace(*in.DeliverySlot)
		}
		if in.Status != nil {
			o.Status = *in.Status
		}
		updated, err := tx.UpdateOrder(ctx, o)
		if err != nil {
			return err
		}

		if in.PartialPayment != nil {
			res, err := tx.Ledger().UpsertPartialPayment(ctx, orderID, fields)
			if err != nil {
				return err
			}
			upsert = &res
		}
		out = Edited{Order: updated, Items: items}
		return nil
	})
	if err != nil {
		obs.IncCounter(obs.OrderEditsTotal, "error")
		return Edited{}, s.mapError(err, "edit order failed")
	}
	obs.IncCounter(obs.OrderEditsTotal, "ok")

	s.emit(ctx, events.TopicOrderUpdated, out.Order)
	if upsert != nil {
		out.PartialPayment = &upsert.Payment
		if s.ledger != nil {
			s.ledger.AfterUpsert(ctx, *upsert, fields)
		}
	}
	return out, nil
}

func recomputeTotal(ctx context.Context, tx TxRepository, items []Item) (float64, error) {
	priced := make([]pricing.Item, 0, len(items))
	for _, it := range items {
		priced = append(priced, pricing.Item{ItemRef: it.Ref(), Quantity: it.Quantity})
	}
	prices, err := pricing.NewResolver(tx.Prices()).ResolvePrices(ctx, pricing.Refs(priced))
	if err != nil {
		return 0, err
	}
	return pricing.ComputeTotal(pricing.Lines(prices, priced)), nil
}

// Listing is one order in a listing response.
type Listing struct {
	Summary
	Items []ItemDetail
}

// List returns a page of orders, scoped to a distributor when filter.DistributorID is set,
// together with the total number of matching orders. Count, orders and items are fetched
// concurrently.
func (s *Service) List(ctx context.Context, filter Filter, page common.Page) ([]Listing, int, error) {
	var (
		total     int
		summaries []Summary
		details   []ItemDetail
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountOrders(gctx, filter)
		total = n
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.ListOrders(gctx, filter, page)
		summaries = rows
		return err
	})
	g.Go(func() error {
		rows, err := s.repo.ListItemDetails(gctx, filter, page)
		details = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, s.internal(err, "list orders failed")
	}

	byOrder := make(map[int64][]ItemDetail, len(summaries))
	for _, d := range details {
		byOrder[d.OrderID] = append(byOrder[d.OrderID], d)
	}
	out := make([]Listing, 0, len(summaries))
	for _, sum := range summaries {
		items := byOrder[sum.ID]
		if items == nil {
			items = []ItemDetail{}
		}
		out = append(out, Listing{Summary: sum, Items: items})
	}
	return out, total, nil
}

func (s *Service) emit(ctx context.Context, topic string, o Order) {
	if s.events == nil {
		return
	}
	payload := map[string]any{
		"orderId":       o.ID,
		"distributorId": o.DistributorID,
		"shopkeeperId":  o.ShopkeeperID,
		"status":        o.Status,
		"totalAmount":   o.TotalAmount,
		"at":            time.Now().UTC(),
	}
	if _, err := s.events.Emit(ctx, topic, o.ID, payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Int64("order_id", o.ID).Msg("emit order event failed")
	}
}

func (s *Service) mapError(err error, msg string) error {
	switch {
	case common.IsAppError(err):
		return err
	case errors.Is(err, ErrNotFound), errors.Is(err, ledger.ErrOrderNotFound):
		return common.NotFound("order", err)
	case errors.Is(err, ErrItemNotFound):
		return common.NotFound("order item", err)
	case errors.Is(err, ErrShopkeeperNotFound):
		return common.NotFound("shopkeeper", err)
	case errors.Is(err, ErrAccountNotFound):
		return common.NotFound("account", err)
	case errors.Is(err, ErrForbidden):
		return common.Forbidden("you are not authorized to update this order", err)
	default:
		return s.internal(err, msg)
	}
}

func (s *Service) internal(err error, msg string) error {
	s.logger.Error().Err(err).Msg(msg)
	return common.Internal(fmt.Errorf("order: %w", err))
}
