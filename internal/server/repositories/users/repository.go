package users

import (
	"context"

	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, email, passwordHash string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id int64) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}
