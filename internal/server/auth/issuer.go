// Package auth issues and verifies the signed, expiring tokens handed to
// clients.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType distinguishes access tokens from refresh tokens so one cannot
// be replayed as the other.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the payload of every issued token.
type Claims struct {
	jwt.RegisteredClaims
	Type TokenType `json:"token_type,omitempty"`
}

// Token is an issued token together with its metadata.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

// ErrUnsupportedAlgorithm is returned for algorithms other than HS256/384/512.
var ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

// Issuer signs tokens with a shared secret. It is safe for concurrent use.
type Issuer struct {
	secret []byte
	method jwt.SigningMethod
	now    func() time.Time
}

// NewIssuer returns an Issuer for one of HS256, HS384 or HS512.
func NewIssuer(secret []byte, algorithm string) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("token secret must not be empty")
	}

	method, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}

	return &Issuer{
		secret: append([]byte(nil), secret...),
		method: method,
		now:    time.Now,
	}, nil
}

// WithClock replaces the time source used for issuing and verifying.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	c := *i
	c.now = now
	return &c
}

// Issue signs a token for subject that expires ttl from now. Every token
// carries a unique ID, so two tokens issued in the same second differ.
func (i *Issuer) Issue(subject string, ttl time.Duration, typ TokenType) (*Token, error) {
	now := i.now()
	exp := now.Add(ttl)
	id := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Type: typ,
	}

	signed, err := jwt.NewWithClaims(i.method, claims).SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Token{Value: signed, ID: id, ExpiresAt: exp.Truncate(time.Second)}, nil
}

// Verify checks the signature, algorithm and expiry of token and returns its
// claims. A token is expired from its exp second onwards; there is no leeway.
// Every failure matches common.ErrInvalidToken.
func (i *Issuer) Verify(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return nil, common.ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, common.ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", common.ErrTokenMalformed, err)
	}

	if claims.Subject == "" {
		return nil, common.ErrTokenMissingSubject
	}

	return claims, nil
}

// Subject verifies token and returns the identity it was issued for.
func (i *Issuer) Subject(token string) (string, error) {
	claims, err := i.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
