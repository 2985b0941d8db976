package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/db"
)

// PgStore writes audit entries to the audit_logs table.
type PgStore struct {
	DB db.DBTX
}

func (s PgStore) Insert(ctx context.Context, e Entry) error {
	const q = `INSERT INTO audit_logs (actor_id, actor_role, action, resource_type, resource_id, method, path, status,
    ip, user_agent, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := s.DB.Exec(ctx, q, e.ActorID, e.ActorRole, e.Action, e.ResourceType, e.ResourceID, e.Method, e.Path,
		e.Status, e.IP, e.UserAgent, e.RequestID, []byte(e.Metadata)); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

func (s PgStore) List(ctx context.Context, page common.Page) ([]Entry, int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM audit_logs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}
	rows, err := s.DB.Query(ctx, `SELECT id, actor_id, actor_role, action, resource_type, resource_id, method, path,
    status, ip, user_agent, request_id, metadata, created_at
FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Entry, error) {
		var e Entry
		var meta []byte
		err := row.Scan(&e.ID, &e.ActorID, &e.ActorRole, &e.Action, &e.ResourceType, &e.ResourceID, &e.Method, &e.Path,
			&e.Status, &e.IP, &e.UserAgent, &e.RequestID, &meta, &e.CreatedAt)
		e.Metadata = meta
		return e, err
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan audit logs: %w", err)
	}
	return entries, total, nil
}
