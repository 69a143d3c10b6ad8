// Package flow implements the authentication flow state machine.
//
// # Overview
//
// The Controller consumes user-triggered events (login submitted, MFA code
// entered, verification link observed, logout requested), drives the auth
// gateway, and exposes the single current State to the presentation layer.
// The possible phases are LoggedOut, AwaitingMfaCode,
// AwaitingEmailVerification, VerifyingEmailToken, and Authenticated; illegal
// combinations such as "authenticated and awaiting MFA" cannot be expressed.
//
// # Credential Ownership
//
// The session credential store is written exclusively from transition
// handlers in this package. The store holds a bearer token iff the phase is
// Authenticated and an MFA correlator iff the phase is AwaitingMfaCode; each
// transition writes the store and the state together.
//
// # Stale Results
//
// There is no cancellation of in-flight requests. Instead every transition
// bumps an epoch, and a network completion that started under an older epoch
// is discarded with ErrStaleResult, so a late login response cannot clobber
// a state the user has already left.
package flow
