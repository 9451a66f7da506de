package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// RefreshTokenHasher derives the lookup key under which a refresh token is
// stored. The hash is deterministic so the store can find a session by it,
// and keyed so a leaked table cannot be matched against guessed tokens.
type RefreshTokenHasher struct {
	key []byte
}

func NewRefreshTokenHasher(key []byte) (*RefreshTokenHasher, error) {
	if len(key) == 0 {
		return nil, errors.New("refresh token hash key must not be empty")
	}
	return &RefreshTokenHasher{key: append([]byte(nil), key...)}, nil
}

// Hash returns the hex encoded HMAC-SHA256 of token.
func (h *RefreshTokenHasher) Hash(token string) string {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
