// Package cli provides the interactive pwkeeper command-line client.
//
// It wires configuration, the gRPC auth client and an interactive REPL.
//
// Key features:
//   - Register / Login with email and password
//   - Me: show the current account
//   - Refresh: rotate the token pair
//   - Logout / Logout on all devices
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
