// Package cryptox contains the credential primitives of the server:
// one-way password digests and keyed refresh-token hashes.
package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrUnsupportedDigest is returned by decoding helpers for strings that are
// not argon2id digests produced by this package.
var ErrUnsupportedDigest = errors.New("unsupported password digest")

// Argon2Params tunes the argon2id key derivation.
type Argon2Params struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params follows the RFC 9106 second recommended option.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		MemoryKiB:   64 * 1024,
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Validate rejects parameters argon2 cannot run with.
func (p Argon2Params) Validate() error {
	switch {
	case p.MemoryKiB < 8*uint32(p.Parallelism):
		return fmt.Errorf("argon2 memory must be at least 8*parallelism KiB")
	case p.Iterations == 0:
		return fmt.Errorf("argon2 iterations must be positive")
	case p.Parallelism == 0:
		return fmt.Errorf("argon2 parallelism must be positive")
	case p.SaltLength < 8:
		return fmt.Errorf("argon2 salt length must be at least 8 bytes")
	case p.KeyLength < 16:
		return fmt.Errorf("argon2 key length must be at least 16 bytes")
	}
	return nil
}

// PasswordHasher produces self-describing argon2id digests:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
//
// It also verifies bcrypt digests ($2a$, $2b$, $2y$) left by older
// deployments; those are reported by NeedsRehash.
type PasswordHasher struct {
	params Argon2Params
}

func NewPasswordHasher(params Argon2Params) *PasswordHasher {
	return &PasswordHasher{params: params}
}

// Hash returns a fresh digest of plain with a random salt. Two calls with the
// same input produce different digests.
func (h *PasswordHasher) Hash(plain string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	key := argon2.IDKey([]byte(plain), salt, h.params.Iterations, h.params.MemoryKiB, h.params.Parallelism, h.params.KeyLength)

	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.MemoryKiB, h.params.Iterations, h.params.Parallelism,
		enc.EncodeToString(salt), enc.EncodeToString(key),
	), nil
}

// Verify reports whether plain matches digest. Malformed or foreign digests
// never match and never panic.
func (h *PasswordHasher) Verify(plain, digest string) bool {
	if isBcrypt(digest) {
		return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
	}

	params, salt, want, err := decodeArgon2(digest)
	if err != nil || !h.acceptable(params) {
		return false
	}

	got := argon2.IDKey([]byte(plain), salt, params.Iterations, params.MemoryKiB, params.Parallelism, params.KeyLength)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// NeedsRehash reports whether digest was produced by another algorithm or
// with parameters that differ from the current ones.
func (h *PasswordHasher) NeedsRehash(digest string) bool {
	params, _, _, err := decodeArgon2(digest)
	if err != nil {
		return true
	}
	return params.MemoryKiB != h.params.MemoryKiB ||
		params.Iterations != h.params.Iterations ||
		params.Parallelism != h.params.Parallelism ||
		params.KeyLength != h.params.KeyLength
}

// acceptable refuses digests whose cost is far above the configured one, so
// a tampered row cannot pin the CPU.
func (h *PasswordHasher) acceptable(p Argon2Params) bool {
	return p.MemoryKiB <= h.params.MemoryKiB*4 &&
		p.Iterations <= h.params.Iterations*4 &&
		uint32(p.Parallelism) <= uint32(h.params.Parallelism)*4 &&
		p.SaltLength >= 8 && p.SaltLength <= 64 &&
		p.KeyLength >= 16 && p.KeyLength <= 128
}

func isBcrypt(digest string) bool {
	for _, prefix := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(digest, prefix) {
			return true
		}
	}
	return false
}

func decodeArgon2(digest string) (Argon2Params, []byte, []byte, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return Argon2Params{}, nil, nil, ErrUnsupportedDigest
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return Argon2Params{}, nil, nil, ErrUnsupportedDigest
	}

	var mem, iter, par uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iter, &par); err != nil {
		return Argon2Params{}, nil, nil, ErrUnsupportedDigest
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return Argon2Params{}, nil, nil, ErrUnsupportedDigest
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[4])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrUnsupportedDigest
	}
	key, err := enc.DecodeString(parts[5])
	if err != nil {
		return Argon2Params{}, nil, nil, ErrUnsupportedDigest
	}

	return Argon2Params{
		MemoryKiB:   mem,
		Iterations:  iter,
		Parallelism: uint8(par),
		SaltLength:  uint32(len(salt)),
		KeyLength:   uint32(len(key)),
	}, salt, key, nil
}
