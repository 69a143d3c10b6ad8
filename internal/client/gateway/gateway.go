package gateway

import (
	"context"

	"github.com/dbelyaev/authflow/internal/client/models"
)

// Gateway is the transport-agnostic contract for the identity backend's auth
// operations. Every method returns either a typed payload or a *Error; no
// other error type crosses this boundary.
type Gateway interface {
	// Login submits credentials. On success without MFA the result carries
	// tokens; with MFA required it carries the opaque session correlator and
	// no tokens. Persisting either is the caller's job.
	Login(ctx context.Context, creds models.LoginCredentials) (*models.LoginResult, error)

	// VerifyMfa submits the 6-digit code for the pending login. The
	// correlator captured at login is read fresh from the credential source.
	// Codes that are not exactly 6 digits are rejected locally without a
	// network call.
	VerifyMfa(ctx context.Context, code string) (*models.MfaVerifyResult, error)

	// SetupMfaBegin starts MFA enrollment for the authenticated user.
	SetupMfaBegin(ctx context.Context) (*models.MfaSetupMaterial, error)

	// SetupMfaVerify confirms enrollment with a code from the authenticator.
	// Same local 6-digit validation as VerifyMfa.
	SetupMfaVerify(ctx context.Context, code string) (*models.MfaSetupVerifyResult, error)

	// Signup registers a new account. It does not authenticate the user;
	// email verification must succeed before login works.
	Signup(ctx context.Context, creds models.SignupCredentials) (*models.SignupResult, error)

	// VerifyEmail redeems a verification link token. The token is opaque;
	// only non-emptiness is checked locally.
	VerifyEmail(ctx context.Context, token string) (*models.EmailVerifyResult, error)

	// Logout revokes the session server-side, best effort. Clearing local
	// credentials is the caller's job and must happen regardless of the
	// outcome here.
	Logout(ctx context.Context) error
}

// CredentialSource is the read-only view of the credential store the gateway
// needs: the bearer token and MFA correlator are read fresh on every call so
// a token refreshed elsewhere is picked up immediately.
type CredentialSource interface {
	AccessToken(ctx context.Context) (string, error)
	MfaCorrelator(ctx context.Context) (string, error)
	DeviceID(ctx context.Context) (string, error)
}
