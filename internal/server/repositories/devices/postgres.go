// Package devices stores the client installations a user signs in from.
package devices

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	"github.com/dmitrijs2005/pwkeeper/internal/dbx"
	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert returns the device keyed by (userID, name, platform), creating it
// when absent. last_seen_at is overwritten; concurrent calls converge on one
// row thanks to the unique constraint.
func (r *PostgresRepository) Upsert(ctx context.Context, userID int64, name, platform string, seenAt time.Time) (*models.Device, error) {
	query :=
		`INSERT INTO devices (user_id, name, platform, last_seen_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, name, platform)
		 DO UPDATE SET last_seen_at = EXCLUDED.last_seen_at
		 RETURNING id, last_seen_at, created_at`

	d := &models.Device{UserID: userID, Name: name, Platform: platform}
	err := r.db.QueryRowContext(ctx, query, userID, name, platform, seenAt).
		Scan(&d.ID, &d.LastSeenAt, &d.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return d, nil
}

func (r *PostgresRepository) Touch(ctx context.Context, id int64, seenAt time.Time) error {
	query := `UPDATE devices SET last_seen_at = $2 WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, seenAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
