package shop

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-b2b-orders/internal/common"
	"github.com/noah-isme/backend-b2b-orders/internal/db"
)

const shopkeeperColumns = `id, name, owner_name, contact_number, email, gps_location, image_url, video_url,
    preferred_delivery_slot, salesperson_id, created_at`

// PgStore implements Store on PostgreSQL.
type PgStore struct {
	DB db.DBTX
}

func (s PgStore) Create(ctx context.Context, in CreateInput) (Shopkeeper, error) {
	const q = `INSERT INTO shopkeepers (name, owner_name, contact_number, email, gps_location, image_url, video_url,
    preferred_delivery_slot, salesperson_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + shopkeeperColumns
	sk, err := scanShopkeeper(s.DB.QueryRow(ctx, q, in.Name, in.OwnerName, in.ContactNumber, in.Email, in.GPSLocation,
		in.ImageURL, in.VideoURL, in.PreferredDeliverySlot, in.SalespersonID))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Shopkeeper{}, ErrContactTaken
		}
		return Shopkeeper{}, fmt.Errorf("insert shopkeeper: %w", err)
	}
	return sk, nil
}

func (s PgStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM shopkeepers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count shopkeepers: %w", err)
	}
	return n, nil
}

func (s PgStore) List(ctx context.Context, page common.Page) ([]Shopkeeper, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+shopkeeperColumns+` FROM shopkeepers ORDER BY id DESC LIMIT $1 OFFSET $2`,
		page.PerPage, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list shopkeepers: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Shopkeeper, error) {
		return scanShopkeeper(row)
	})
}

func scanShopkeeper(row pgx.Row) (Shopkeeper, error) {
	var sk Shopkeeper
	err := row.Scan(&sk.ID, &sk.Name, &sk.OwnerName, &sk.ContactNumber, &sk.Email, &sk.GPSLocation, &sk.ImageURL,
		&sk.VideoURL, &sk.PreferredDeliverySlot, &sk.SalespersonID, &sk.CreatedAt)
	return sk, err
}
