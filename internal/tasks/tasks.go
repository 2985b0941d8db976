// Package tasks defines the background jobs exchanged between the API and the worker
// over asynq.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/backend-b2b-orders/internal/events"
)

const (
	// QueueDefault carries every task this service enqueues.
	QueueDefault = "default"
	// TypePaymentDueReminder fires shortly before a partial payment falls due.
	TypePaymentDueReminder = "payment:due_reminder"
	// TypeEventFanout delivers a persisted domain event to the worker.
	TypeEventFanout = "events:fanout"
)

// PaymentDuePayload identifies the ledger row a reminder was scheduled for.
type PaymentDuePayload struct {
	OrderID int64     `json:"orderId"`
	DueDate time.Time `json:"dueDate"`
}

// NewPaymentDueTask constructs a payment reminder task.
func NewPaymentDueTask(payload PaymentDuePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePaymentDueReminder, data), nil
}

// NewEventFanoutTask wraps a domain event.
func NewEventFanoutTask(ev events.Event) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEventFanout, data), nil
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReminderScheduler schedules payment-due reminders ahead of the due date.
type ReminderScheduler struct {
	Client   Enqueuer
	Lead     time.Duration
	MaxRetry int
	Now      func() time.Time
}

// ScheduleDueReminder enqueues a reminder for Lead before dueDate, or immediately when that
// moment has passed. One task exists per (order, due date); rescheduling the same pair is
// a no-op.
func (s ReminderScheduler) ScheduleDueReminder(ctx context.Context, orderID int64, dueDate time.Time) error {
	if s.Client == nil {
		return errors.New("tasks: client not configured")
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}
	processAt := dueDate.Add(-s.Lead)
	if processAt.Before(now) {
		processAt = now
	}
	task, err := NewPaymentDueTask(PaymentDuePayload{OrderID: orderID, DueDate: dueDate.UTC()})
	if err != nil {
		return err
	}
	retry := s.MaxRetry
	if retry <= 0 {
		retry = 5
	}
	_, err = s.Client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.TaskID(ReminderTaskID(orderID, dueDate)),
		asynq.ProcessAt(processAt),
		asynq.MaxRetry(retry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue payment reminder: %w", err)
	}
	return nil
}

// ReminderTaskID is the dedupe id of a reminder.
func ReminderTaskID(orderID int64, dueDate time.Time) string {
	return fmt.Sprintf("payment-due:%d:%d", orderID, dueDate.Unix())
}

// EventNotifier forwards every persisted event to the worker.
type EventNotifier struct {
	Client Enqueuer
}

// Notify implements events.Notifier.
func (n EventNotifier) Notify(ctx context.Context, ev events.Event) error {
	if n.Client == nil {
		return nil
	}
	task, err := NewEventFanoutTask(ev)
	if err != nil {
		return err
	}
	_, err = n.Client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.TaskID("event:"+ev.ID.String()))
	if err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("enqueue event %s: %w", ev.Topic, err)
	}
	return nil
}
