// Package gateway contains the typed HTTP client for the identity backend.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Gateway interface) covering
//     the backend auth operations: Login, VerifyMfa, SetupMfaBegin,
//     SetupMfaVerify, Signup, VerifyEmail, Logout.
//  2. A concrete JSON-over-HTTP implementation (see HTTPGateway) that primes
//     and attaches the CSRF header on mutating calls, reads the bearer token
//     fresh from the credential store on authenticated calls, and maps every
//     failure to a single error type.
//  3. The CSRF provider (see CsrfProvider) caching the anti-forgery token for
//     the session and re-priming it once when the backend rejects it.
//
// # Error Handling
//
// Every failure crossing the package boundary is a *Error carrying a Kind.
// Callers match with KindOf/IsKind; raw transport errors never escape.
// Locally detectable problems (a non-6-digit MFA code, an empty verification
// token) are rejected with KindValidation before any network I/O.
//
// Concurrency & Contexts
//
// HTTPGateway is safe for concurrent use. All operations accept a
// context.Context and honor cancellation and timeouts.
package gateway
