package client

import (
	"context"

	pb "github.com/dmitrijs2005/pwkeeper/internal/proto"
)

type Client interface {
	Close() error
	LoggedIn() bool
	Register(ctx context.Context, email, password string) (*pb.User, error)
	Login(ctx context.Context, email, password, deviceName string) error
	Refresh(ctx context.Context) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) (int64, error)
	Me(ctx context.Context) (*pb.User, error)
}
