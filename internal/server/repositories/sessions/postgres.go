// Package sessions stores refresh-token sessions in PostgreSQL. Rows hold
// only the keyed hash of the token, never the token itself.
package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	"github.com/dmitrijs2005/pwkeeper/internal/dbx"
	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
)

const selectColumns = `SELECT id, user_id, device_id, refresh_token_hash, expires_at, revoked_at, created_at
		 FROM sessions`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create stores s and fills its ID and CreatedAt. A hash that is already
// stored yields common.ErrConflict.
func (r *PostgresRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	query :=
		`INSERT INTO sessions (user_id, device_id, refresh_token_hash, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query, s.UserID, s.DeviceID, s.RefreshTokenHash, s.ExpiresAt).
		Scan(&s.ID, &s.CreatedAt)

	if err != nil {
		if _, ok := dbx.IsUniqueViolation(err); ok {
			return nil, fmt.Errorf("%w: refresh token hash %w", common.ErrConflict, err)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return s, nil
}

// FindByRefreshHash returns the session regardless of its state.
func (r *PostgresRepository) FindByRefreshHash(ctx context.Context, hash string) (*models.Session, error) {
	query := selectColumns + `
		 WHERE refresh_token_hash = $1`

	return scanOne(r.db.QueryRowContext(ctx, query, hash))
}

// LockByRefreshHash is FindByRefreshHash holding a row lock until the
// surrounding transaction ends. Use it only inside dbx.WithTx.
func (r *PostgresRepository) LockByRefreshHash(ctx context.Context, hash string) (*models.Session, error) {
	query := selectColumns + `
		 WHERE refresh_token_hash = $1
		 FOR UPDATE`

	return scanOne(r.db.QueryRowContext(ctx, query, hash))
}

// Revoke marks the session revoked at the given time and returns the
// effective revocation time. Revoking twice keeps the first timestamp.
func (r *PostgresRepository) Revoke(ctx context.Context, id int64, at time.Time) (time.Time, error) {
	query :=
		`UPDATE sessions SET revoked_at = COALESCE(revoked_at, $2)
		 WHERE id = $1
		 RETURNING revoked_at`

	var revokedAt time.Time
	err := r.db.QueryRowContext(ctx, query, id, at).Scan(&revokedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, common.ErrNotFound
		}
		return time.Time{}, fmt.Errorf("db error: %w", err)
	}

	return revokedAt, nil
}

// RevokeAllForUser revokes every live session of the user and returns how
// many were affected.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	query :=
		`UPDATE sessions SET revoked_at = $2
		 WHERE user_id = $1 AND revoked_at IS NULL`

	res, err := r.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return n, nil
}

func scanOne(row *sql.Row) (*models.Session, error) {
	s := &models.Session{}
	var revokedAt sql.NullTime

	err := row.Scan(&s.ID, &s.UserID, &s.DeviceID, &s.RefreshTokenHash, &s.ExpiresAt, &revokedAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}

	return s, nil
}
