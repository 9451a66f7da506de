package grpc

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	"github.com/dmitrijs2005/pwkeeper/internal/logging"
	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger          { return n }

// fakeAuth records the arguments it was called with and returns canned
// results. A nil func field falls back to a benign default.
type fakeAuth struct {
	mu sync.Mutex

	register     func(email, password string) (*models.User, error)
	authenticate func(email, password string) (*models.User, error)
	issue        func(user *models.User, device, platform string) (*models.TokenPair, error)
	refresh      func(token string) (*models.TokenPair, error)
	logout       func(token string) error
	logoutAll    func(userID int64) (int64, error)
	verifyAccess func(token string) (*models.User, error)

	lastDevice   string
	lastPlatform string
}

func (f *fakeAuth) Register(_ context.Context, email, password string) (*models.User, error) {
	if f.register == nil {
		return &models.User{ID: 1, Email: email, IsActive: true}, nil
	}
	return f.register(email, password)
}

func (f *fakeAuth) Authenticate(_ context.Context, email, password string) (*models.User, error) {
	if f.authenticate == nil {
		return nil, common.ErrInvalidCredentials
	}
	return f.authenticate(email, password)
}

func (f *fakeAuth) IssueTokensForUser(_ context.Context, user *models.User, device, platform string) (*models.TokenPair, error) {
	f.mu.Lock()
	f.lastDevice, f.lastPlatform = device, platform
	f.mu.Unlock()

	if f.issue == nil {
		return &models.TokenPair{AccessToken: "access", RefreshToken: "refresh", TokenType: common.BearerTokenType}, nil
	}
	return f.issue(user, device, platform)
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (*models.TokenPair, error) {
	if f.refresh == nil {
		return nil, common.ErrInvalidToken
	}
	return f.refresh(token)
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	if f.logout == nil {
		return nil
	}
	return f.logout(token)
}

func (f *fakeAuth) LogoutAll(_ context.Context, userID int64) (int64, error) {
	if f.logoutAll == nil {
		return 0, nil
	}
	return f.logoutAll(userID)
}

func (f *fakeAuth) VerifyAccessToken(_ context.Context, token string) (*models.User, error) {
	if f.verifyAccess == nil {
		return nil, common.ErrInvalidToken
	}
	return f.verifyAccess(token)
}

func (f *fakeAuth) device() (string, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastDevice, f.lastPlatform
}
