package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/backend-b2b-orders/internal/events"
	"github.com/noah-isme/backend-b2b-orders/internal/ledger"
)

// PaymentReader reports whether an order still owes money on its ledger row.
type PaymentReader interface {
	PendingPayment(ctx context.Context, orderID int64) (ledger.PartialPayment, bool, error)
}

// Handlers processes tasks on the worker side.
type Handlers struct {
	payments  PaymentReader
	events    events.Emitter
	logger    zerolog.Logger
	reminders metric.Int64Counter
}

// HandlersConfig groups Handlers dependencies.
type HandlersConfig struct {
	Payments PaymentReader
	Events   events.Emitter
	Logger   zerolog.Logger
	Meter    metric.Meter
}

// NewHandlers constructs the task handlers.
func NewHandlers(cfg HandlersConfig) (*Handlers, error) {
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter("github.com/noah-isme/backend-b2b-orders/internal/tasks")
	}
	counter, err := meter.Int64Counter("payment.reminders",
		metric.WithDescription("Payment due reminders processed by outcome."),
		metric.WithUnit("{reminder}"),
	)
	if err != nil {
		return nil, fmt.Errorf("tasks: reminder counter: %w", err)
	}
	return &Handlers{payments: cfg.Payments, events: cfg.Events, logger: cfg.Logger, reminders: counter}, nil
}

// Register mounts every handler on mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePaymentDueReminder, h.HandlePaymentDue)
	mux.HandleFunc(TypeEventFanout, h.HandleEventFanout)
}

// HandlePaymentDue re-reads the ledger row and emits payment.due while it is still unpaid.
// It never writes to the ledger.
func (h *Handlers) HandlePaymentDue(ctx context.Context, t *asynq.Task) error {
	var payload PaymentDuePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payment reminder: %v: %w", err, asynq.SkipRetry)
	}
	log := h.logger.With().Int64("order_id", payload.OrderID).Logger()

	p, pending, err := h.payments.PendingPayment(ctx, payload.OrderID)
	if err != nil {
		return fmt.Errorf("load partial payment: %w", err)
	}
	if !pending {
		h.count(ctx, "settled")
		log.Debug().Msg("payment reminder skipped, nothing owed")
		return nil
	}
	if !p.DueDate.Equal(payload.DueDate) {
		h.count(ctx, "stale")
		log.Debug().Time("due_date", p.DueDate).Msg("payment reminder skipped, due date moved")
		return nil
	}

	if h.events != nil {
		if _, err := h.events.Emit(ctx, events.TopicPaymentDue, p.OrderID, p); err != nil {
			return fmt.Errorf("emit payment due: %w", err)
		}
	}
	h.count(ctx, "sent")
	log.Info().Float64("remaining_amount", p.RemainingAmount).Time("due_date", p.DueDate).Msg("payment due")
	return nil
}

// HandleEventFanout logs a domain event delivered by the API.
func (h *Handlers) HandleEventFanout(_ context.Context, t *asynq.Task) error {
	var ev events.Event
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return fmt.Errorf("decode event: %v: %w", err, asynq.SkipRetry)
	}
	if !slices.Contains(events.DefaultTopics(), ev.Topic) {
		h.logger.Warn().Str("topic", ev.Topic).Msg("unknown event topic dropped")
		return nil
	}
	entry := h.logger.Info().
		Str("event_id", ev.ID.String()).
		Str("topic", ev.Topic).
		Int64("aggregate_id", ev.AggregateID)
	if len(ev.Payload) > 0 {
		entry = entry.RawJSON("payload", ev.Payload)
	}
	entry.Msg("domain event")
	return nil
}

func (h *Handlers) count(ctx context.Context, result string) {
	h.reminders.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
