// Package cli provides the interactive authflow command-line client.
//
// It wires configuration, the local credential store, the HTTP gateway, and
// an interactive REPL driven by the authentication flow state: the set of
// commands offered at any moment follows the current phase (logged out,
// awaiting an MFA code, awaiting email verification, authenticated).
//
// Key features:
//   - Login with optional 6-digit MFA challenge
//   - Signup followed by email verification token redemption
//   - Two-factor enrollment with a terminal QR code and one-time backup codes
//   - Whoami / Logout
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
