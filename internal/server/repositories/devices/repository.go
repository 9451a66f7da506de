package devices

import (
	"context"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
)

type Repository interface {
	Upsert(ctx context.Context, userID int64, name, platform string, seenAt time.Time) (*models.Device, error)
	Touch(ctx context.Context, id int64, seenAt time.Time) error
}
