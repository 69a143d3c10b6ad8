package flow

import "github.com/dbelyaev/authflow/internal/client/models"

// Phase is the discriminant of the authentication flow state. Exactly one
// phase is active at a time.
type Phase int

const (
	// PhaseLoggedOut: no credentials held.
	PhaseLoggedOut Phase = iota
	// PhaseAwaitingMfaCode: password accepted, a 6-digit code is pending.
	// The store holds the MFA correlator and no tokens.
	PhaseAwaitingMfaCode
	// PhaseAwaitingEmailVerification: signup accepted, the user must follow
	// the link mailed to them. No credentials held.
	PhaseAwaitingEmailVerification
	// PhaseVerifyingEmailToken: a verification token from a link is being
	// redeemed.
	PhaseVerifyingEmailToken
	// PhaseAuthenticated: the store holds a token pair and no correlator.
	PhaseAuthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseLoggedOut:
		return "logged_out"
	case PhaseAwaitingMfaCode:
		return "awaiting_mfa_code"
	case PhaseAwaitingEmailVerification:
		return "awaiting_email_verification"
	case PhaseVerifyingEmailToken:
		return "verifying_email_token"
	case PhaseAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// State is an immutable snapshot of the flow. Fields other than Phase are
// meaningful only in the phases noted; every transition rebuilds the whole
// value, so stale combinations cannot leak across phases.
type State struct {
	Phase Phase

	// User is set in PhaseAuthenticated and, when the backend returned it
	// with the login response, in PhaseAwaitingMfaCode.
	User models.User

	// Email is set in PhaseAwaitingEmailVerification.
	Email string

	// Token is set in PhaseVerifyingEmailToken.
	Token string

	// MfaSetupPromptVisible: PhaseAuthenticated only; the user has not
	// enrolled in MFA and has not dismissed the suggestion.
	MfaSetupPromptVisible bool

	// MfaSetupInProgress: PhaseAuthenticated only; enrollment material has
	// been issued and a confirmation code is pending.
	MfaSetupInProgress bool
}
