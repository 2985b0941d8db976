package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/noah-isme/backend-b2b-orders/internal/events"
	"github.com/noah-isme/backend-b2b-orders/internal/ledger"
)

type enqueued struct {
	task *asynq.Task
	opts map[asynq.OptionType]any
}

type fakeClient struct {
	mu    sync.Mutex
	ids   map[string]bool
	tasks []enqueued
	err   error
}

func (f *fakeClient) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	values := map[asynq.OptionType]any{}
	for _, o := range opts {
		values[o.Type()] = o.Value()
	}
	if id, ok := values[asynq.TaskIDOpt].(string); ok {
		if f.ids == nil {
			f.ids = map[string]bool{}
		}
		if f.ids[id] {
			return nil, asynq.ErrTaskIDConflict
		}
		f.ids[id] = true
	}
	f.tasks = append(f.tasks, enqueued{task: task, opts: values})
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func TestScheduleDueReminderRunsAheadOfDueDate(t *testing.T) {
	client := &fakeClient{}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s := ReminderScheduler{Client: client, Lead: 24 * time.Hour, Now: func() time.Time { return now }}

	due := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.ScheduleDueReminder(context.Background(), 42, due))
	require.Len(t, client.tasks, 1)

	got := client.tasks[0]
	require.Equal(t, TypePaymentDueReminder, got.task.Type())
	require.Equal(t, due.Add(-24*time.Hour), got.opts[asynq.ProcessAtOpt])
	require.Equal(t, ReminderTaskID(42, due), got.opts[asynq.TaskIDOpt])
	require.Equal(t, QueueDefault, got.opts[asynq.QueueOpt])

	var payload PaymentDuePayload
	require.NoError(t, json.Unmarshal(got.task.Payload(), &payload))
	require.Equal(t, int64(42), payload.OrderID)
	require.True(t, due.Equal(payload.DueDate))
}

func TestScheduleDueReminderPastDueRunsNow(t *testing.T) {
	client := &fakeClient{}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s := ReminderScheduler{Client: client, Lead: 24 * time.Hour, Now: func() time.Time { return now }}

	require.NoError(t, s.ScheduleDueReminder(context.Background(), 7, now.Add(time.Hour)))
	require.Equal(t, now, client.tasks[0].opts[asynq.ProcessAtOpt])
}

func TestScheduleDueReminderDeduplicates(t *testing.T) {
	client := &fakeClient{}
	s := ReminderScheduler{Client: client, Lead: time.Hour}
	due := time.Now().Add(48 * time.Hour)

	require.NoError(t, s.ScheduleDueReminder(context.Background(), 7, due))
	require.NoError(t, s.ScheduleDueReminder(context.Background(), 7, due))
	require.Len(t, client.tasks, 1)

	require.NoError(t, s.ScheduleDueReminder(context.Background(), 7, due.Add(24*time.Hour)))
	require.Len(t, client.tasks, 2)
}

func TestScheduleDueReminderSurfacesEnqueueErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("redis down")}
	err := ReminderScheduler{Client: client}.ScheduleDueReminder(context.Background(), 1, time.Now())
	require.ErrorContains(t, err, "redis down")

	require.Error(t, ReminderScheduler{}.ScheduleDueReminder(context.Background(), 1, time.Now()))
}

func TestEventNotifierEnqueuesFanout(t *testing.T) {
	client := &fakeClient{}
	ev := events.Event{ID: uuid.New(), Topic: events.TopicOrderCreated, AggregateID: 5, Payload: json.RawMessage(`{"id":5}`)}

	n := EventNotifier{Client: client}
	require.NoError(t, n.Notify(context.Background(), ev))
	require.NoError(t, n.Notify(context.Background(), ev))
	require.Len(t, client.tasks, 1)
	require.Equal(t, TypeEventFanout, client.tasks[0].task.Type())
	require.Equal(t, "event:"+ev.ID.String(), client.tasks[0].opts[asynq.TaskIDOpt])

	require.NoError(t, EventNotifier{}.Notify(context.Background(), ev))
}

type fakePayments struct {
	payment ledger.PartialPayment
	pending bool
	err     error
}

func (f fakePayments) PendingPayment(context.Context, int64) (ledger.PartialPayment, bool, error) {
	return f.payment, f.pending, f.err
}

type recordingEmitter struct {
	topics []string
}

func (r *recordingEmitter) Emit(_ context.Context, topic string, aggregateID int64, _ any) (events.Event, error) {
	r.topics = append(r.topics, topic)
	return events.Event{Topic: topic, AggregateID: aggregateID}, nil
}

func reminderTask(t *testing.T, orderID int64, due time.Time) *asynq.Task {
	t.Helper()
	task, err := NewPaymentDueTask(PaymentDuePayload{OrderID: orderID, DueDate: due})
	require.NoError(t, err)
	return task
}

func TestHandlePaymentDue(t *testing.T) {
	due := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	row := ledger.PartialPayment{OrderID: 9, RemainingAmount: 30, DueDate: due, PaymentStatus: ledger.StatusPending}

	cases := []struct {
		name     string
		payments fakePayments
		taskDue  time.Time
		emitted  int
		wantErr  bool
	}{
		{"still owed", fakePayments{payment: row, pending: true}, due, 1, false},
		{"settled", fakePayments{payment: row, pending: false}, due, 0, false},
		{"due date moved", fakePayments{payment: row, pending: true}, due.Add(-48 * time.Hour), 0, false},
		{"store failure retries", fakePayments{err: errors.New("timeout")}, due, 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			emitter := &recordingEmitter{}
			h, err := NewHandlers(HandlersConfig{Payments: tc.payments, Events: emitter, Logger: zerolog.Nop()})
			require.NoError(t, err)

			err = h.HandlePaymentDue(context.Background(), reminderTask(t, 9, tc.taskDue))
			if tc.wantErr {
				require.Error(t, err)
				require.False(t, errors.Is(err, asynq.SkipRetry))
			} else {
				require.NoError(t, err)
			}
			require.Len(t, emitter.topics, tc.emitted)
			if tc.emitted > 0 {
				require.Equal(t, events.TopicPaymentDue, emitter.topics[0])
			}
		})
	}
}

func TestHandlersSkipRetryOnMalformedPayload(t *testing.T) {
	h, err := NewHandlers(HandlersConfig{Payments: fakePayments{}, Logger: zerolog.Nop()})
	require.NoError(t, err)

	err = h.HandlePaymentDue(context.Background(), asynq.NewTask(TypePaymentDueReminder, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	err = h.HandleEventFanout(context.Background(), asynq.NewTask(TypeEventFanout, []byte("nope")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	task, err := NewEventFanoutTask(events.Event{ID: uuid.New(), Topic: events.TopicOrderUpdated, AggregateID: 3})
	require.NoError(t, err)
	require.NoError(t, h.HandleEventFanout(context.Background(), task))
}

func TestHandleEventFanoutDropsUnknownTopics(t *testing.T) {
	h, err := NewHandlers(HandlersConfig{Payments: fakePayments{}, Logger: zerolog.Nop()})
	require.NoError(t, err)

	task, err := NewEventFanoutTask(events.Event{ID: uuid.New(), Topic: "inventory.adjusted", AggregateID: 9})
	require.NoError(t, err)
	require.NoError(t, h.HandleEventFanout(context.Background(), task))
}

func TestHandlePaymentDueCountsReminders(t *testing.T) {
	due := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	row := ledger.PartialPayment{OrderID: 9, RemainingAmount: 30, DueDate: due, PaymentStatus: ledger.StatusPending}
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	ctx := context.Background()

	for _, payments := range []fakePayments{{payment: row, pending: true}, {payment: row, pending: false}} {
		h, err := NewHandlers(HandlersConfig{Payments: payments, Logger: zerolog.Nop(), Meter: provider.Meter("tasks-test")})
		require.NoError(t, err)
		require.NoError(t, h.HandlePaymentDue(ctx, reminderTask(t, 9, due)))
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	counts := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "payment.reminders" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				result, _ := dp.Attributes.Value(attribute.Key("result"))
				counts[result.AsString()] += dp.Value
			}
		}
	}
	require.Equal(t, map[string]int64{"sent": 1, "settled": 1}, counts)
}
