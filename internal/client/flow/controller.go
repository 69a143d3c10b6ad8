package flow

import (
	"context"
	"sync"
	"time"

	"github.com/dbelyaev/authflow/internal/client/gateway"
	"github.com/dbelyaev/authflow/internal/client/models"
	"github.com/dbelyaev/authflow/internal/logging"
)

// SessionStore is the credential persistence the controller owns. All writes
// to it happen inside transition handlers here; no other component mutates
// session credentials.
type SessionStore interface {
	AccessToken(ctx context.Context) (string, error)
	MfaCorrelator(ctx context.Context) (string, error)
	SaveTokens(ctx context.Context, tokens models.Tokens) error
	SaveMfaCorrelator(ctx context.Context, sessionID string) error
	ClearAll(ctx context.Context) error
}

// Controller is the authentication flow state machine. It consumes
// user-triggered events, drives the gateway, and maintains the invariant
// that the store holds a bearer token iff the phase is Authenticated and an
// MFA correlator iff the phase is AwaitingMfaCode.
//
// Events are processed one at a time; network calls run without the lock
// held and their completions are revalidated against the current epoch, so a
// result arriving after the flow transitioned away (say, a login response
// landing after a logout) is discarded instead of being applied to a stale
// state.
type Controller struct {
	gw      gateway.Gateway
	session SessionStore
	log     logging.Logger
	now     func() time.Time

	mu            sync.Mutex
	state         State
	epoch         uint64
	loginInFlight bool
	setupMaterial *models.MfaSetupMaterial
}

func NewController(gw gateway.Gateway, session SessionStore, log logging.Logger) *Controller {
	return &Controller{
		gw:      gw,
		session: session,
		log:     log,
		now:     time.Now,
		state:   State{Phase: PhaseLoggedOut},
	}
}

// State returns a snapshot of the current flow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetupMaterial returns the enrollment material while MFA setup is in
// progress, nil otherwise.
func (c *Controller) SetupMaterial() *models.MfaSetupMaterial {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setupMaterial == nil {
		return nil
	}
	m := *c.setupMaterial
	return &m
}

// transitionTo replaces the state wholesale and invalidates in-flight
// completions. Callers must hold c.mu.
func (c *Controller) transitionTo(s State) {
	c.state = s
	c.epoch++
	if s.Phase != PhaseAuthenticated {
		c.setupMaterial = nil
	}
}

// Restore derives the initial state from whatever the store already holds:
// a pending correlator resumes the MFA step, a live access token resumes the
// authenticated session, an expired one is cleared.
func (c *Controller) Restore(ctx context.Context) error {
	correlator, err := c.session.MfaCorrelator(ctx)
	if err != nil {
		return err
	}
	token, err := c.session.AccessToken(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case correlator != "":
		c.transitionTo(State{Phase: PhaseAwaitingMfaCode})
		c.log.Info(ctx, "restored pending mfa verification")
	case token != "":
		user, expired, parsed := userFromToken(token, c.now())
		if parsed && expired {
			c.log.Info(ctx, "stored access token expired, clearing credentials")
			if err := c.session.ClearAll(ctx); err != nil {
				return err
			}
			c.transitionTo(State{Phase: PhaseLoggedOut})
			return nil
		}
		c.transitionTo(State{
			Phase:                 PhaseAuthenticated,
			User:                  user,
			MfaSetupPromptVisible: parsed && !user.IsMfaEnabled,
		})
		c.log.Info(ctx, "restored authenticated session", "username", user.Username)
	default:
		c.transitionTo(State{Phase: PhaseLoggedOut})
	}
	return nil
}

// Login submits credentials. Only one login may be in flight at a time; a
// duplicate submission is rejected with ErrLoginInFlight.
func (c *Controller) Login(ctx context.Context, creds models.LoginCredentials) error {
	c.mu.Lock()
	if c.state.Phase != PhaseLoggedOut {
		c.mu.Unlock()
		return ErrNotAllowed
	}
	if c.loginInFlight {
		c.mu.Unlock()
		return ErrLoginInFlight
	}
	c.loginInFlight = true
	epoch := c.epoch
	c.mu.Unlock()

	res, err := c.gw.Login(ctx, creds)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loginInFlight = false

	if c.epoch != epoch {
		c.log.Warn(ctx, "discarding login result, state changed while in flight")
		return ErrStaleResult
	}
	if err != nil {
		return err
	}

	if res.RequiresMfa {
		if err := c.session.SaveMfaCorrelator(ctx, res.SessionID); err != nil {
			return err
		}
		c.transitionTo(State{Phase: PhaseAwaitingMfaCode, User: res.User})
		return nil
	}

	if err := c.session.SaveTokens(ctx, *res.Tokens); err != nil {
		return err
	}
	c.transitionTo(State{
		Phase:                 PhaseAuthenticated,
		User:                  res.User,
		MfaSetupPromptVisible: !res.User.IsMfaEnabled,
	})
	return nil
}

// SubmitMfaCode forwards the 6-digit code for the pending login. On failure
// the correlator is retained so the user can retry without re-entering the
// password.
func (c *Controller) SubmitMfaCode(ctx context.Context, code string) error {
	c.mu.Lock()
	if c.state.Phase != PhaseAwaitingMfaCode {
		c.mu.Unlock()
		return ErrNotAllowed
	}
	epoch := c.epoch
	c.mu.Unlock()

	res, err := c.gw.VerifyMfa(ctx, code)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		c.log.Warn(ctx, "discarding mfa result, state changed while in flight")
		return ErrStaleResult
	}
	if err != nil {
		return err
	}

	// SaveTokens clears the correlator in the same transaction.
	if err := c.session.SaveTokens(ctx, res.Tokens); err != nil {
		return err
	}
	c.transitionTo(State{
		Phase:                 PhaseAuthenticated,
		User:                  res.User,
		MfaSetupPromptVisible: !res.User.IsMfaEnabled,
	})
	return nil
}

// Signup registers a new account. No credentials are persisted; the flow
// moves to awaiting email verification.
func (c *Controller) Signup(ctx context.Context, creds models.SignupCredentials) (*models.SignupResult, error) {
	c.mu.Lock()
	if c.state.Phase != PhaseLoggedOut {
		c.mu.Unlock()
		return nil, ErrNotAllowed
	}
	epoch := c.epoch
	c.mu.Unlock()

	res, err := c.gw.Signup(ctx, creds)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return nil, ErrStaleResult
	}
	if err != nil {
		return nil, err
	}

	c.transitionTo(State{Phase: PhaseAwaitingEmailVerification, Email: res.Email})
	return res, nil
}

// ObserveVerificationToken redeems a token observed in a verification link.
// Success lands in LoggedOut: the user must log in after verification, never
// auto-authenticate. Failure stays in VerifyingEmailToken so the error can be
// surfaced; AbandonEmailVerification returns to LoggedOut.
func (c *Controller) ObserveVerificationToken(ctx context.Context, token string) error {
	c.mu.Lock()
	if c.state.Phase != PhaseLoggedOut && c.state.Phase != PhaseAwaitingEmailVerification {
		c.mu.Unlock()
		return ErrNotAllowed
	}
	c.transitionTo(State{Phase: PhaseVerifyingEmailToken, Token: token})
	epoch := c.epoch
	c.mu.Unlock()

	res, err := c.gw.VerifyEmail(ctx, token)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return ErrStaleResult
	}
	if err != nil {
		return err
	}

	c.log.Info(ctx, "email verified", "message", res.Message)
	c.transitionTo(State{Phase: PhaseLoggedOut})
	return nil
}

// AbandonEmailVerification returns to LoggedOut after a failed verification.
func (c *Controller) AbandonEmailVerification() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseVerifyingEmailToken {
		return ErrNotAllowed
	}
	c.transitionTo(State{Phase: PhaseLoggedOut})
	return nil
}

// BeginMfaSetup starts enrollment for an authenticated user without MFA.
// The returned material is ephemeral: held only while setup is in progress.
func (c *Controller) BeginMfaSetup(ctx context.Context) (*models.MfaSetupMaterial, error) {
	c.mu.Lock()
	if c.state.Phase != PhaseAuthenticated || c.state.User.IsMfaEnabled || c.state.MfaSetupInProgress {
		c.mu.Unlock()
		return nil, ErrNotAllowed
	}
	epoch := c.epoch
	c.mu.Unlock()

	material, err := c.gw.SetupMfaBegin(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return nil, ErrStaleResult
	}
	if err != nil {
		return nil, c.forceLogoutOnAuthLoss(ctx, err)
	}

	c.setupMaterial = material
	c.state.MfaSetupInProgress = true
	return material, nil
}

// VerifyMfaSetup confirms enrollment. The returned backup codes are shown to
// the caller exactly once and are not retained anywhere in the client.
func (c *Controller) VerifyMfaSetup(ctx context.Context, code string) ([]string, error) {
	c.mu.Lock()
	if c.state.Phase != PhaseAuthenticated || !c.state.MfaSetupInProgress {
		c.mu.Unlock()
		return nil, ErrNotAllowed
	}
	epoch := c.epoch
	c.mu.Unlock()

	res, err := c.gw.SetupMfaVerify(ctx, code)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return nil, ErrStaleResult
	}
	if err != nil {
		return nil, c.forceLogoutOnAuthLoss(ctx, err)
	}
	if !res.IsVerified {
		return nil, &gateway.Error{Kind: gateway.KindInvalidMfaCode, Message: "verification code rejected"}
	}

	c.setupMaterial = nil
	c.state.MfaSetupInProgress = false
	c.state.MfaSetupPromptVisible = false
	c.state.User.IsMfaEnabled = true
	c.log.Info(ctx, "mfa enrollment completed", "username", c.state.User.Username)
	return res.BackupCodes, nil
}

// CancelMfaSetup abandons enrollment and discards the setup material.
func (c *Controller) CancelMfaSetup() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseAuthenticated || !c.state.MfaSetupInProgress {
		return ErrNotAllowed
	}
	c.setupMaterial = nil
	c.state.MfaSetupInProgress = false
	return nil
}

// DismissMfaPrompt hides the enrollment suggestion for this session.
func (c *Controller) DismissMfaPrompt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.MfaSetupPromptVisible = false
}

// Logout revokes the session server-side (best effort) and always clears
// local credentials: a network failure never leaves the client looking
// authenticated. Legal from every state, idempotent.
func (c *Controller) Logout(ctx context.Context) error {
	if err := c.gw.Logout(ctx); err != nil {
		c.log.Warn(ctx, "server-side logout failed, clearing local credentials anyway", "err", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	clearErr := c.session.ClearAll(ctx)
	c.transitionTo(State{Phase: PhaseLoggedOut})
	return clearErr
}

// forceLogoutOnAuthLoss handles the backend declaring our bearer invalid
// during an authenticated-only action: credentials are cleared and the flow
// drops to LoggedOut. Callers must hold c.mu. Other errors pass through.
func (c *Controller) forceLogoutOnAuthLoss(ctx context.Context, err error) error {
	if !gateway.IsKind(err, gateway.KindUnauthenticated) {
		return err
	}
	c.log.Warn(ctx, "bearer rejected, forcing logout")
	if clearErr := c.session.ClearAll(ctx); clearErr != nil {
		c.log.Error(ctx, "failed to clear credentials", "err", clearErr)
	}
	c.transitionTo(State{Phase: PhaseLoggedOut})
	return err
}
