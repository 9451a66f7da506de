// Package common contains shared constants and sentinel errors used across
// pwkeeper components.
package common

// Metadata keys read from inbound gRPC requests.
const (
	AuthorizationHeaderName  = "authorization"
	UserAgentHeaderName      = "user-agent"
	ClientPlatformHeaderName = "x-client-platform"
)

// BearerTokenType is reported as token_type in every issued token pair.
const BearerTokenType = "bearer"

// UnknownPlatform is recorded when a client does not report its platform or
// device name.
const UnknownPlatform = "unknown"

// Column limits of the persistent schema.
const (
	MaxEmailLength      = 255
	MaxDeviceNameLength = 255
	MaxPlatformLength   = 50
)

// Password length bounds in runes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)
