package services

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/pwkeeper/internal/common"
)

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
// Every lookup and insert goes through it, so emails compare case-insensitively.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail expects an already normalized address.
func ValidateEmail(email string) error {
	if email == "" {
		return common.NewValidationError("email", "must not be empty")
	}
	if len(email) > common.MaxEmailLength {
		return common.NewValidationError("email", "is too long")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return common.NewValidationError("email", "is not a valid address")
	}

	_, domain, _ := strings.Cut(email, "@")
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return common.NewValidationError("email", "is not a valid address")
	}

	return nil
}

// ValidatePassword checks the length in characters, not bytes.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < common.MinPasswordLength {
		return common.NewValidationError("password", "is too short")
	}
	if n > common.MaxPasswordLength {
		return common.NewValidationError("password", "is too long")
	}
	return nil
}

// DeviceName derives a device name from client metadata such as the
// user agent. Empty input becomes common.UnknownPlatform.
func DeviceName(raw string) string {
	return clip(strings.TrimSpace(raw), common.MaxDeviceNameLength)
}

// Platform normalizes a client-reported platform label.
func Platform(raw string) string {
	return clip(strings.ToLower(strings.TrimSpace(raw)), common.MaxPlatformLength)
}

func clip(s string, max int) string {
	if s == "" {
		return common.UnknownPlatform
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max])
}
