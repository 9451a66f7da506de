package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestIssuer(t *testing.T, secret, alg string) (*Issuer, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	i, err := NewIssuer([]byte(secret), alg)
	require.NoError(t, err)
	return i.WithClock(clock.Now), clock
}

func TestIssueAndVerify(t *testing.T) {
	i, clock := newTestIssuer(t, "s3cret", "HS256")

	tok, err := i.Issue("42", 30*time.Minute, TokenTypeAccess)
	require.NoError(t, err)
	assert.NotEmpty(t, tok.ID)
	assert.Equal(t, clock.Now().Add(30*time.Minute), tok.ExpiresAt)

	claims, err := i.Verify(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "42", claims.Subject)
	assert.Equal(t, TokenTypeAccess, claims.Type)
	assert.Equal(t, tok.ID, claims.ID)

	sub, err := i.Subject(tok.Value)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)
}

func TestVerify_ExpiryBoundary(t *testing.T) {
	i, clock := newTestIssuer(t, "s3cret", "HS256")

	tok, err := i.Issue("7", time.Minute, TokenTypeAccess)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = i.Verify(tok.Value)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = i.Verify(tok.Value)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	i, _ := newTestIssuer(t, "right", "HS256")
	other, _ := newTestIssuer(t, "wrong", "HS256")

	tok, err := i.Issue("1", time.Hour, TokenTypeAccess)
	require.NoError(t, err)

	_, err = other.Verify(tok.Value)
	assert.ErrorIs(t, err, common.ErrTokenSignature)
}

func TestVerify_AlgorithmMismatch(t *testing.T) {
	hs512, _ := newTestIssuer(t, "same", "HS512")
	hs256, _ := newTestIssuer(t, "same", "HS256")

	tok, err := hs512.Issue("1", time.Hour, TokenTypeAccess)
	require.NoError(t, err)

	_, err = hs256.Verify(tok.Value)
	assert.ErrorIs(t, err, common.ErrTokenSignature)
}

func TestVerify_NoneAlgorithmRejected(t *testing.T) {
	i, clock := newTestIssuer(t, "s3cret", "HS256")

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "1",
		"exp": clock.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = i.Verify(unsigned)
	assert.ErrorIs(t, err, common.ErrTokenSignature)
}

func TestVerify_Malformed(t *testing.T) {
	i, _ := newTestIssuer(t, "s3cret", "HS256")

	for _, tok := range []string{"", "not.a.jwt", "abc", "a.b.c.d"} {
		_, err := i.Verify(tok)
		assert.ErrorIs(t, err, common.ErrTokenMalformed, tok)
	}
}

func TestVerify_MissingExpiry(t *testing.T) {
	i, _ := newTestIssuer(t, "s3cret", "HS256")

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	_, err = i.Verify(tok)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_MissingSubject(t *testing.T) {
	i, _ := newTestIssuer(t, "s3cret", "HS256")

	tok, err := i.Issue("", time.Hour, TokenTypeAccess)
	require.NoError(t, err)

	_, err = i.Verify(tok.Value)
	assert.ErrorIs(t, err, common.ErrTokenMissingSubject)
}

func TestIssue_SameInstantTokensDiffer(t *testing.T) {
	i, _ := newTestIssuer(t, "s3cret", "HS384")

	a, err := i.Issue("1", time.Hour, TokenTypeRefresh)
	require.NoError(t, err)
	b, err := i.Issue("1", time.Hour, TokenTypeRefresh)
	require.NoError(t, err)

	assert.NotEqual(t, a.Value, b.Value)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewIssuer_Errors(t *testing.T) {
	_, err := NewIssuer(nil, "HS256")
	assert.Error(t, err)

	for _, alg := range []string{"RS256", "none", "", "hs256"} {
		_, err := NewIssuer([]byte("k"), alg)
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm, alg)
	}
}

func TestIssuer_ConcurrentUse(t *testing.T) {
	i, _ := newTestIssuer(t, "s3cret", "HS256")

	var wg sync.WaitGroup
	for n := 0; n < 16; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := i.Issue("9", time.Hour, TokenTypeAccess)
			if assert.NoError(t, err) {
				_, err = i.Verify(tok.Value)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
