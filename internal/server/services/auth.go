// Package services contains server-side business logic. AuthService handles
// registration, credential checks, and the issue, rotation and revocation of
// device-bound token pairs.
package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	"github.com/dmitrijs2005/pwkeeper/internal/cryptox"
	"github.com/dmitrijs2005/pwkeeper/internal/dbx"
	"github.com/dmitrijs2005/pwkeeper/internal/logging"
	"github.com/dmitrijs2005/pwkeeper/internal/server/auth"
	"github.com/dmitrijs2005/pwkeeper/internal/server/models"
	"github.com/dmitrijs2005/pwkeeper/internal/server/repositories/repomanager"
)

// dummyPassword feeds the digest verified for unknown emails, so a failed
// login costs the same whether or not the account exists.
const dummyPassword = "pwkeeper-no-such-user"

// PasswordHasher produces and checks password digests.
// cryptox.PasswordHasher is the production implementation.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, digest string) bool
	NeedsRehash(digest string) bool
}

// TokenLifetimes sets how long issued tokens stay valid.
type TokenLifetimes struct {
	Access  time.Duration
	Refresh time.Duration
}

type AuthService struct {
	tx            dbx.Transactor
	repomanager   repomanager.RepositoryManager
	hasher        PasswordHasher
	refreshHasher *cryptox.RefreshTokenHasher
	issuer        *auth.Issuer
	lifetimes     TokenLifetimes
	dummyDigest   string
	now           func() time.Time
	logger        logging.Logger
}

type AuthServiceOption func(*AuthService)

// WithClock replaces the time source. The issuer keeps its own clock.
func WithClock(now func() time.Time) AuthServiceOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(
	tx dbx.Transactor,
	m repomanager.RepositoryManager,
	hasher PasswordHasher,
	refreshHasher *cryptox.RefreshTokenHasher,
	issuer *auth.Issuer,
	lifetimes TokenLifetimes,
	logger logging.Logger,
	opts ...AuthServiceOption,
) (*AuthService, error) {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy digest: %w", err)
	}

	s := &AuthService{
		tx:            tx,
		repomanager:   m,
		hasher:        hasher,
		refreshHasher: refreshHasher,
		issuer:        issuer,
		lifetimes:     lifetimes,
		dummyDigest:   dummy,
		now:           time.Now,
		logger:        logger.With("module", "auth_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates an active account for email. The email is normalized
// first; a taken email yields common.ErrDuplicateEmail, also when a
// concurrent registration wins the race at the store.
func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users(s.tx.Conn())

	_, err := repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, common.ErrDuplicateEmail
	case !errors.Is(err, common.ErrNotFound):
		return nil, s.storeError(ctx, "find user by email", err)
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: hash password: %v", common.ErrInternal, err)
	}

	user, err := repo.Create(ctx, email, digest)
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.ErrDuplicateEmail
		}
		return nil, s.storeError(ctx, "create user", err)
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate returns the user whose password matches. Unknown email and
// wrong password both yield common.ErrInvalidCredentials, and both run one
// full digest verification. Digests in an outdated format are upgraded in
// place on success.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	repo := s.repomanager.Users(s.tx.Conn())

	user, err := repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.hasher.Verify(password, s.dummyDigest)
			return nil, common.ErrInvalidCredentials
		}
		return nil, s.storeError(ctx, "find user by email", err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Debug(ctx, "password mismatch", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(user.PasswordHash) {
		s.upgradeDigest(ctx, user, password)
	}

	return user, nil
}

// upgradeDigest is best effort; the login succeeds even if it fails.
func (s *AuthService) upgradeDigest(ctx context.Context, user *models.User, password string) {
	digest, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Warn(ctx, "rehash password failed", "user_id", user.ID, "error", err)
		return
	}
	if err := s.repomanager.Users(s.tx.Conn()).UpdatePasswordHash(ctx, user.ID, digest); err != nil {
		s.logger.Warn(ctx, "store upgraded digest failed", "user_id", user.ID, "error", err)
		return
	}
	user.PasswordHash = digest
	s.logger.Info(ctx, "password digest upgraded", "user_id", user.ID)
}

// IssueTokensForUser upserts the (user, device, platform) device and opens a
// new session on it. Earlier sessions of the device stay live. The device
// upsert and the session insert commit together.
func (s *AuthService) IssueTokensForUser(ctx context.Context, user *models.User, deviceName, platform string) (*models.TokenPair, error) {
	deviceName = DeviceName(deviceName)
	platform = Platform(platform)

	var pair *models.TokenPair
	err := s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		device, err := s.repomanager.Devices(tx).Upsert(ctx, user.ID, deviceName, platform, s.now())
		if err != nil {
			return s.storeError(ctx, "upsert device", err)
		}

		pair, err = s.openSession(ctx, tx, user, device.ID)
		return err
	})
	if err != nil {
		return nil, s.txError(ctx, err)
	}

	s.logger.Info(ctx, "tokens issued", "user_id", user.ID, "platform", platform)
	return pair, nil
}

// Refresh exchanges a live refresh token for a new pair. The presented
// session is revoked and a new one is opened on the same device in one unit
// of work, so a refresh token works at most once.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	userID, err := s.verify(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	hash := s.refreshHasher.Hash(refreshToken)

	var pair *models.TokenPair
	err = s.tx.WithTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		sessions := s.repomanager.Sessions(tx)

		session, err := sessions.LockByRefreshHash(ctx, hash)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrSessionRevoked
			}
			return s.storeError(ctx, "find session", err)
		}

		now := s.now()
		if !session.IsLive(now) || session.UserID != userID {
			return common.ErrSessionRevoked
		}

		user, err := s.repomanager.Users(tx).FindByID(ctx, userID)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				return common.ErrInvalidToken
			}
			return s.storeError(ctx, "find user", err)
		}
		if !user.IsActive {
			return common.ErrInactiveUser
		}

		if _, err := sessions.Revoke(ctx, session.ID, now); err != nil {
			return s.storeError(ctx, "revoke session", err)
		}
		if err := s.repomanager.Devices(tx).Touch(ctx, session.DeviceID, now); err != nil && !errors.Is(err, common.ErrNotFound) {
			return s.storeError(ctx, "touch device", err)
		}

		pair, err = s.openSession(ctx, tx, user, session.DeviceID)
		return err
	})
	if err != nil {
		return nil, s.txError(ctx, err)
	}

	s.logger.Info(ctx, "session rotated", "user_id", userID)
	return pair, nil
}

// Logout revokes the session of refreshToken. Unknown or already revoked
// tokens are not an error, so logging out twice succeeds. A token that fails
// verification cannot belong to a live session and is ignored without a
// store lookup.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	subject, err := s.issuer.Subject(refreshToken)
	if err != nil {
		s.logger.Debug(ctx, "logout with unverifiable token", "error", err)
		return nil
	}

	sessions := s.repomanager.Sessions(s.tx.Conn())

	session, err := sessions.FindByRefreshHash(ctx, s.refreshHasher.Hash(refreshToken))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return s.storeError(ctx, "find session", err)
	}
	if strconv.FormatInt(session.UserID, 10) != subject {
		s.logger.Warn(ctx, "refresh token subject does not match session", "session_id", session.ID)
		return nil
	}

	if _, err := sessions.Revoke(ctx, session.ID, s.now()); err != nil && !errors.Is(err, common.ErrNotFound) {
		return s.storeError(ctx, "revoke session", err)
	}

	s.logger.Info(ctx, "session revoked", "user_id", session.UserID, "session_id", session.ID)
	return nil
}

// LogoutAll revokes every live session of the user.
func (s *AuthService) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	n, err := s.repomanager.Sessions(s.tx.Conn()).RevokeAllForUser(ctx, userID, s.now())
	if err != nil {
		return 0, s.storeError(ctx, "revoke sessions", err)
	}

	s.logger.Info(ctx, "all sessions revoked", "user_id", userID, "count", n)
	return n, nil
}

// VerifyAccessToken resolves an access token to its active user.
func (s *AuthService) VerifyAccessToken(ctx context.Context, accessToken string) (*models.User, error) {
	userID, err := s.verify(accessToken, auth.TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.tx.Conn()).FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, s.storeError(ctx, "find user", err)
	}
	if !user.IsActive {
		return nil, common.ErrInactiveUser
	}

	return user, nil
}

// openSession issues a pair for user and stores the refresh token hash as a
// new session on deviceID. It must run inside a transaction.
func (s *AuthService) openSession(ctx context.Context, tx dbx.DBTX, user *models.User, deviceID int64) (*models.TokenPair, error) {
	access, err := s.issuer.Issue(user.Subject(), s.lifetimes.Access, auth.TokenTypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: issue access token: %v", common.ErrInternal, err)
	}
	refresh, err := s.issuer.Issue(user.Subject(), s.lifetimes.Refresh, auth.TokenTypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: issue refresh token: %v", common.ErrInternal, err)
	}

	_, err = s.repomanager.Sessions(tx).Create(ctx, &models.Session{
		UserID:           user.ID,
		DeviceID:         deviceID,
		RefreshTokenHash: s.refreshHasher.Hash(refresh.Value),
		ExpiresAt:        refresh.ExpiresAt,
	})
	if err != nil {
		return nil, s.storeError(ctx, "create session", err)
	}

	return &models.TokenPair{
		AccessToken:  access.Value,
		RefreshToken: refresh.Value,
		TokenType:    common.BearerTokenType,
	}, nil
}

// verify checks token and its type and returns the numeric subject.
func (s *AuthService) verify(token string, typ auth.TokenType) (int64, error) {
	claims, err := s.issuer.Verify(token)
	if err != nil {
		return 0, err
	}
	if claims.Type != typ {
		return 0, common.ErrTokenWrongType
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, common.ErrTokenMalformed
	}
	return id, nil
}

func (s *AuthService) storeError(ctx context.Context, op string, err error) error {
	s.logger.Error(ctx, "store failure", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", common.ErrStoreUnavailable, op, err)
}

// txError passes through classified failures and reports anything else,
// such as a failed commit, as a store failure.
func (s *AuthService) txError(ctx context.Context, err error) error {
	for _, known := range []error{common.ErrStoreUnavailable, common.ErrInvalidToken, common.ErrInactiveUser, common.ErrInternal} {
		if errors.Is(err, known) {
			return err
		}
	}
	return s.storeError(ctx, "transaction", err)
}
