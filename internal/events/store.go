package events

import (
	"context"

	"github.com/noah-isme/backend-b2b-orders/internal/db"
)

// PgStore persists events in the domain_events table.
type PgStore struct {
	DB db.DBTX
}

// InsertEvent implements EventStore.
func (s PgStore) InsertEvent(ctx context.Context, ev Event) (Event, error) {
	const q = `INSERT INTO domain_events (id, topic, aggregate_id, payload, occurred_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING occurred_at`
	if err := s.DB.QueryRow(ctx, q, ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload), ev.OccurredAt).Scan(&ev.OccurredAt); err != nil {
		return Event{}, err
	}
	return ev, nil
}
