// Package client contains the client side of the pwkeeper auth API.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface):
//     Register, Login, Refresh, Logout, LogoutAll and Me.
//  2. A concrete gRPC implementation (see GRPCClient) that speaks the
//     JSON content-subtype, injects the access token via an interceptor,
//     transparently refreshes an expired access token once, and maps gRPC
//     status codes to sentinel errors.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrForbidden, ErrAlreadyExists,
// ErrInvalidInput and ErrNotLoggedIn.
//
// GRPCClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation.
package client
