package sessions

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.Session) (*models.Session, error)
	FindByRefreshHash(ctx context.Context, hash string) (*models.Session, error)
	LockByRefreshHash(ctx context.Context, hash string) (*models.Session, error)
	Revoke(ctx context.Context, id int64, at time.Time) (time.Time, error)
	RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error)
}
