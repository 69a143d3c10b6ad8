package flow

import (
	"context"
	"testing"
	"time"

	"github.com/dbelyaev/authflow/internal/client/gateway"
	"github.com/dbelyaev/authflow/internal/client/models"
	"github.com/dbelyaev/authflow/internal/logging"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// ---- fake gateway ----

type fakeGateway struct {
	loginRes   *models.LoginResult
	loginErr   error
	loginCalls int
	lastLogin  models.LoginCredentials
	onLogin    func() // runs during the simulated network call

	verifyRes   *models.MfaVerifyResult
	verifyErr   error
	verifyCalls int
	lastCode    string

	setupBeginRes *models.MfaSetupMaterial
	setupBeginErr error

	setupVerifyRes *models.MfaSetupVerifyResult
	setupVerifyErr error

	signupRes *models.SignupResult
	signupErr error

	emailRes   *models.EmailVerifyResult
	emailErr   error
	lastEmailT string

	logoutErr   error
	logoutCalls int
}

func (f *fakeGateway) Login(_ context.Context, creds models.LoginCredentials) (*models.LoginResult, error) {
	f.loginCalls++
	f.lastLogin = creds
	if f.onLogin != nil {
		f.onLogin()
	}
	return f.loginRes, f.loginErr
}

func (f *fakeGateway) VerifyMfa(_ context.Context, code string) (*models.MfaVerifyResult, error) {
	f.verifyCalls++
	f.lastCode = code
	return f.verifyRes, f.verifyErr
}

func (f *fakeGateway) SetupMfaBegin(context.Context) (*models.MfaSetupMaterial, error) {
	return f.setupBeginRes, f.setupBeginErr
}

func (f *fakeGateway) SetupMfaVerify(context.Context, string) (*models.MfaSetupVerifyResult, error) {
	return f.setupVerifyRes, f.setupVerifyErr
}

func (f *fakeGateway) Signup(_ context.Context, creds models.SignupCredentials) (*models.SignupResult, error) {
	return f.signupRes, f.signupErr
}

func (f *fakeGateway) VerifyEmail(_ context.Context, token string) (*models.EmailVerifyResult, error) {
	f.lastEmailT = token
	return f.emailRes, f.emailErr
}

func (f *fakeGateway) Logout(context.Context) error {
	f.logoutCalls++
	return f.logoutErr
}

// ---- fake session store ----

type fakeSession struct {
	access     string
	refresh    string
	correlator string

	saveTokensCalls     int
	saveCorrelatorCalls int
	clearAllCalls       int

	saveTokensErr error
	clearErr      error
}

func (f *fakeSession) AccessToken(context.Context) (string, error)   { return f.access, nil }
func (f *fakeSession) MfaCorrelator(context.Context) (string, error) { return f.correlator, nil }

func (f *fakeSession) SaveTokens(_ context.Context, tokens models.Tokens) error {
	f.saveTokensCalls++
	if f.saveTokensErr != nil {
		return f.saveTokensErr
	}
	f.access, f.refresh, f.correlator = tokens.Access, tokens.Refresh, ""
	return nil
}

func (f *fakeSession) SaveMfaCorrelator(_ context.Context, id string) error {
	f.saveCorrelatorCalls++
	f.correlator, f.access, f.refresh = id, "", ""
	return nil
}

func (f *fakeSession) ClearAll(context.Context) error {
	f.clearAllCalls++
	f.access, f.refresh, f.correlator = "", "", ""
	return f.clearErr
}

func (f *fakeSession) empty() bool {
	return f.access == "" && f.refresh == "" && f.correlator == ""
}

// ---- helpers ----

func newController(gw *fakeGateway, s *fakeSession) *Controller {
	return NewController(gw, s, logging.NewDiscard())
}

var (
	alice = models.User{ID: 1, Username: "alice", Email: "alice@example.org"}
	bob   = models.User{ID: 2, Username: "bob", Email: "bob@example.org"}
)

func authenticate(t *testing.T, c *Controller, gw *fakeGateway, user models.User) {
	t.Helper()
	gw.loginRes = &models.LoginResult{User: user, Tokens: &models.Tokens{Access: "acc", Refresh: "ref"}}
	gw.loginErr = nil
	require.NoError(t, c.Login(context.Background(), models.LoginCredentials{Username: user.Username, Password: "pw"}))
	require.Equal(t, PhaseAuthenticated, c.State().Phase)
}

func kindErr(k gateway.Kind, msg string) *gateway.Error {
	return &gateway.Error{Kind: k, Message: msg}
}

// ---- login ----

func TestLogin_NoMfa_Authenticates(t *testing.T) {
	gw := &fakeGateway{loginRes: &models.LoginResult{
		User:   alice,
		Tokens: &models.Tokens{Access: "acc", Refresh: "ref"},
	}}
	s := &fakeSession{}
	c := newController(gw, s)

	require.NoError(t, c.Login(context.Background(), models.LoginCredentials{Username: "alice", Password: "pw"}))

	st := c.State()
	require.Equal(t, PhaseAuthenticated, st.Phase)
	require.Equal(t, alice, st.User)
	require.True(t, st.MfaSetupPromptVisible, "user without mfa gets the enrollment prompt")

	require.Equal(t, "acc", s.access)
	require.Equal(t, "ref", s.refresh)
	require.Empty(t, s.correlator)
}

func TestLogin_MfaRequired_AwaitsCode(t *testing.T) {
	gw := &fakeGateway{loginRes: &models.LoginResult{
		RequiresMfa: true,
		SessionID:   "s1",
		User:        bob,
	}}
	s := &fakeSession{}
	c := newController(gw, s)

	require.NoError(t, c.Login(context.Background(), models.LoginCredentials{Username: "bob", Password: "pw"}))

	st := c.State()
	require.Equal(t, PhaseAwaitingMfaCode, st.Phase)
	require.Equal(t, bob, st.User)

	require.Equal(t, "s1", s.correlator)
	require.Empty(t, s.access, "no bearer token may be persisted before mfa verification")
	require.Empty(t, s.refresh)
}

func TestLogin_InvalidCredentials_NoStateChangeNoWrites(t *testing.T) {
	gw := &fakeGateway{loginErr: kindErr(gateway.KindInvalidCredentials, "invalid username or password")}
	s := &fakeSession{}
	c := newController(gw, s)

	err := c.Login(context.Background(), models.LoginCredentials{Username: "alice", Password: "bad-pass"})
	require.True(t, gateway.IsKind(err, gateway.KindInvalidCredentials))

	require.Equal(t, PhaseLoggedOut, c.State().Phase)
	require.True(t, s.empty())
	require.Zero(t, s.saveTokensCalls)
	require.Zero(t, s.saveCorrelatorCalls)
}

func TestLogin_WrongPhase_NotAllowed(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	authenticate(t, c, gw, alice)

	err := c.Login(context.Background(), models.LoginCredentials{Username: "alice", Password: "pw"})
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestLogin_SecondSubmissionWhileInFlight_Rejected(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)

	secondErr := make(chan error, 1)
	gw.loginRes = &models.LoginResult{User: alice, Tokens: &models.Tokens{Access: "a", Refresh: "r"}}
	gw.onLogin = func() {
		// a second submission lands while the first is on the wire
		secondErr <- c.Login(context.Background(), models.LoginCredentials{Username: "alice", Password: "pw"})
	}

	require.NoError(t, c.Login(context.Background(), models.LoginCredentials{Username: "alice", Password: "pw"}))
	require.ErrorIs(t, <-secondErr, ErrLoginInFlight)
	require.Equal(t, 1, gw.loginCalls)
}

func TestLogin_ResultAfterLogout_Discarded(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)

	gw.loginRes = &models.LoginResult{User: alice, Tokens: &models.Tokens{Access: "a", Refresh: "r"}}
	gw.onLogin = func() {
		// the user logs out through another path before the response lands
		require.NoError(t, c.Logout(context.Background()))
	}

	err := c.Login(context.Background(), models.LoginCredentials{Username: "alice", Password: "pw"})
	require.ErrorIs(t, err, ErrStaleResult)
	require.Equal(t, PhaseLoggedOut, c.State().Phase)
	require.True(t, s.empty())
}

// ---- mfa verification ----

func setupAwaitingMfa(t *testing.T, gw *fakeGateway, s *fakeSession) *Controller {
	t.Helper()
	gw.loginRes = &models.LoginResult{RequiresMfa: true, SessionID: "s1", User: bob}
	c := newController(gw, s)
	require.NoError(t, c.Login(context.Background(), models.LoginCredentials{Username: "bob", Password: "good-pass"}))
	require.Equal(t, PhaseAwaitingMfaCode, c.State().Phase)
	return c
}

func TestSubmitMfaCode_InvalidCode_StateUnchangedCorrelatorKept(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := setupAwaitingMfa(t, gw, s)

	gw.verifyErr = kindErr(gateway.KindValidation, "mfa code must be exactly 6 digits")
	err := c.SubmitMfaCode(context.Background(), "12345")
	require.True(t, gateway.IsKind(err, gateway.KindValidation))

	require.Equal(t, PhaseAwaitingMfaCode, c.State().Phase)
	require.Equal(t, "s1", s.correlator)
}

func TestSubmitMfaCode_WrongThenRight(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := setupAwaitingMfa(t, gw, s)
	ctx := context.Background()

	// wrong code: state unchanged, correlator retained for the retry
	gw.verifyErr = kindErr(gateway.KindInvalidMfaCode, "invalid mfa code")
	err := c.SubmitMfaCode(ctx, "000000")
	require.True(t, gateway.IsKind(err, gateway.KindInvalidMfaCode))
	require.Equal(t, PhaseAwaitingMfaCode, c.State().Phase)
	require.Equal(t, "s1", s.correlator)

	// correct code: authenticated, tokens persisted, correlator gone
	gw.verifyErr = nil
	gw.verifyRes = &models.MfaVerifyResult{
		User:   models.User{ID: 2, Username: "bob", IsMfaEnabled: true},
		Tokens: models.Tokens{Access: "acc", Refresh: "ref"},
	}
	require.NoError(t, c.SubmitMfaCode(ctx, "123456"))

	st := c.State()
	require.Equal(t, PhaseAuthenticated, st.Phase)
	require.True(t, st.User.IsMfaEnabled)
	require.False(t, st.MfaSetupPromptVisible)
	require.Equal(t, "acc", s.access)
	require.Empty(t, s.correlator)
}

func TestSubmitMfaCode_WrongPhase_NotAllowed(t *testing.T) {
	c := newController(&fakeGateway{}, &fakeSession{})
	err := c.SubmitMfaCode(context.Background(), "123456")
	require.ErrorIs(t, err, ErrNotAllowed)
}

// ---- signup & email verification ----

func TestSignup_Success_AwaitsEmailVerificationWithoutCredentials(t *testing.T) {
	gw := &fakeGateway{signupRes: &models.SignupResult{Username: "carol", Email: "c@example.org"}}
	s := &fakeSession{}
	c := newController(gw, s)

	res, err := c.Signup(context.Background(), models.SignupCredentials{
		Username: "carol", Email: "c@example.org", Password: "pw", PasswordConfirm: "pw",
	})
	require.NoError(t, err)
	require.Equal(t, "carol", res.Username)

	st := c.State()
	require.Equal(t, PhaseAwaitingEmailVerification, st.Phase)
	require.Equal(t, "c@example.org", st.Email)
	require.True(t, s.empty())
}

func TestSignup_Failure_StaysLoggedOut(t *testing.T) {
	gw := &fakeGateway{signupErr: kindErr(gateway.KindValidation, "username already taken")}
	c := newController(gw, &fakeSession{})

	_, err := c.Signup(context.Background(), models.SignupCredentials{Username: "carol"})
	require.Error(t, err)
	require.Equal(t, PhaseLoggedOut, c.State().Phase)
}

func TestObserveVerificationToken_Success_LandsLoggedOut(t *testing.T) {
	gw := &fakeGateway{
		signupRes: &models.SignupResult{Username: "carol", Email: "c@example.org"},
		emailRes:  &models.EmailVerifyResult{Message: "email verified"},
	}
	s := &fakeSession{}
	c := newController(gw, s)

	_, err := c.Signup(context.Background(), models.SignupCredentials{Username: "carol", Email: "c@example.org"})
	require.NoError(t, err)

	// verification success prompts re-login, never auto-authenticates
	require.NoError(t, c.ObserveVerificationToken(context.Background(), "tok-abc"))
	require.Equal(t, "tok-abc", gw.lastEmailT)
	require.Equal(t, PhaseLoggedOut, c.State().Phase)
	require.True(t, s.empty())
}

func TestObserveVerificationToken_FromLoggedOut_DeepLink(t *testing.T) {
	gw := &fakeGateway{emailRes: &models.EmailVerifyResult{Message: "ok"}}
	c := newController(gw, &fakeSession{})

	require.NoError(t, c.ObserveVerificationToken(context.Background(), "tok-deep"))
	require.Equal(t, PhaseLoggedOut, c.State().Phase)
}

func TestObserveVerificationToken_Failure_StaysVerifying(t *testing.T) {
	gw := &fakeGateway{emailErr: kindErr(gateway.KindExpiredToken, "verification link expired")}
	c := newController(gw, &fakeSession{})

	err := c.ObserveVerificationToken(context.Background(), "stale")
	require.True(t, gateway.IsKind(err, gateway.KindExpiredToken))

	st := c.State()
	require.Equal(t, PhaseVerifyingEmailToken, st.Phase)
	require.Equal(t, "stale", st.Token)

	// the user can back out to logged-out
	require.NoError(t, c.AbandonEmailVerification())
	require.Equal(t, PhaseLoggedOut, c.State().Phase)
}

// ---- mfa enrollment ----

func beginSetup(t *testing.T, c *Controller, gw *fakeGateway) *models.MfaSetupMaterial {
	t.Helper()
	gw.setupBeginRes = &models.MfaSetupMaterial{QRCode: "cXI=", ManualEntryKey: "ABCD EFGH"}
	material, err := c.BeginMfaSetup(context.Background())
	require.NoError(t, err)
	return material
}

func TestBeginMfaSetup_IssuesMaterial(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	authenticate(t, c, gw, alice)

	material := beginSetup(t, c, gw)
	require.Equal(t, "ABCD EFGH", material.ManualEntryKey)

	st := c.State()
	require.True(t, st.MfaSetupInProgress)
	require.NotNil(t, c.SetupMaterial())
}

func TestBeginMfaSetup_AlreadyEnrolled_NotAllowed(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	enrolled := alice
	enrolled.IsMfaEnabled = true
	authenticate(t, c, gw, enrolled)

	_, err := c.BeginMfaSetup(context.Background())
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestBeginMfaSetup_BearerRejected_ForcesLogout(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	authenticate(t, c, gw, alice)

	gw.setupBeginErr = kindErr(gateway.KindUnauthenticated, "token revoked")
	_, err := c.BeginMfaSetup(context.Background())
	require.True(t, gateway.IsKind(err, gateway.KindUnauthenticated))

	require.Equal(t, PhaseLoggedOut, c.State().Phase)
	require.True(t, s.empty())
}

func TestVerifyMfaSetup_Success_BackupCodesReturnedExactlyOnce(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	authenticate(t, c, gw, alice)
	beginSetup(t, c, gw)

	gw.setupVerifyRes = &models.MfaSetupVerifyResult{
		IsVerified:  true,
		BackupCodes: []string{"aaaa-bbbb", "cccc-dddd"},
	}
	codes, err := c.VerifyMfaSetup(context.Background(), "123456")
	require.NoError(t, err)
	require.Equal(t, []string{"aaaa-bbbb", "cccc-dddd"}, codes)

	st := c.State()
	require.Equal(t, PhaseAuthenticated, st.Phase)
	require.True(t, st.User.IsMfaEnabled)
	require.False(t, st.MfaSetupInProgress)
	require.False(t, st.MfaSetupPromptVisible)

	// the setup session is gone: no second read can re-return the codes
	require.Nil(t, c.SetupMaterial())
	_, err = c.VerifyMfaSetup(context.Background(), "123456")
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestVerifyMfaSetup_WrongCode_SetupStaysInProgress(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	authenticate(t, c, gw, alice)
	beginSetup(t, c, gw)

	gw.setupVerifyErr = kindErr(gateway.KindInvalidMfaCode, "invalid mfa code")
	_, err := c.VerifyMfaSetup(context.Background(), "000000")
	require.True(t, gateway.IsKind(err, gateway.KindInvalidMfaCode))

	st := c.State()
	require.True(t, st.MfaSetupInProgress)
	require.False(t, st.User.IsMfaEnabled)
	require.NotNil(t, c.SetupMaterial())
}

func TestVerifyMfaSetup_NotVerifiedResponse_IsInvalidCode(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	authenticate(t, c, gw, alice)
	beginSetup(t, c, gw)

	gw.setupVerifyRes = &models.MfaSetupVerifyResult{IsVerified: false}
	_, err := c.VerifyMfaSetup(context.Background(), "123456")
	require.True(t, gateway.IsKind(err, gateway.KindInvalidMfaCode))
	require.True(t, c.State().MfaSetupInProgress)
}

func TestCancelMfaSetup_DiscardsMaterial(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	authenticate(t, c, gw, alice)
	beginSetup(t, c, gw)

	require.NoError(t, c.CancelMfaSetup())

	st := c.State()
	require.Equal(t, PhaseAuthenticated, st.Phase)
	require.False(t, st.MfaSetupInProgress)
	require.Nil(t, c.SetupMaterial())
}

func TestDismissMfaPrompt_HidesSuggestion(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	authenticate(t, c, gw, alice)
	require.True(t, c.State().MfaSetupPromptVisible)

	c.DismissMfaPrompt()
	require.False(t, c.State().MfaSetupPromptVisible)
}

// ---- logout ----

func TestLogout_NetworkFailure_StillClearsEverything(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	authenticate(t, c, gw, alice)

	gw.logoutErr = kindErr(gateway.KindNetwork, "connection refused")
	require.NoError(t, c.Logout(context.Background()))

	require.Equal(t, PhaseLoggedOut, c.State().Phase)
	require.True(t, s.empty())
	require.Equal(t, 1, s.clearAllCalls)
}

func TestLogout_Idempotent(t *testing.T) {
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := newController(gw, s)
	authenticate(t, c, gw, alice)

	require.NoError(t, c.Logout(context.Background()))
	require.NoError(t, c.Logout(context.Background()))

	require.Equal(t, PhaseLoggedOut, c.State().Phase)
	require.True(t, s.empty())
	require.Equal(t, 2, s.clearAllCalls)
}

func TestLogout_ReachableFromEveryPhase(t *testing.T) {
	ctx := context.Background()

	// awaiting mfa
	gw := &fakeGateway{}
	s := &fakeSession{}
	c := setupAwaitingMfa(t, gw, s)
	require.NoError(t, c.Logout(ctx))
	require.Equal(t, PhaseLoggedOut, c.State().Phase)
	require.True(t, s.empty())

	// awaiting email verification
	gw = &fakeGateway{signupRes: &models.SignupResult{Email: "c@example.org"}}
	s = &fakeSession{}
	c = newController(gw, s)
	_, err := c.Signup(ctx, models.SignupCredentials{Username: "carol", Email: "c@example.org"})
	require.NoError(t, err)
	require.NoError(t, c.Logout(ctx))
	require.Equal(t, PhaseLoggedOut, c.State().Phase)

	// verifying email token (stuck on a failed link)
	gw = &fakeGateway{emailErr: kindErr(gateway.KindExpiredToken, "expired")}
	s = &fakeSession{}
	c = newController(gw, s)
	_ = c.ObserveVerificationToken(ctx, "stale")
	require.NoError(t, c.Logout(ctx))
	require.Equal(t, PhaseLoggedOut, c.State().Phase)

	// mid mfa-setup
	gw = &fakeGateway{}
	s = &fakeSession{}
	c = newController(gw, s)
	authenticate(t, c, gw, alice)
	beginSetup(t, c, gw)
	require.NoError(t, c.Logout(ctx))
	require.Equal(t, PhaseLoggedOut, c.State().Phase)
	require.Nil(t, c.SetupMaterial(), "setup material must not survive logout")
}

// ---- restore ----

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestRestore_EmptyStore_LoggedOut(t *testing.T) {
	c := newController(&fakeGateway{}, &fakeSession{})
	require.NoError(t, c.Restore(context.Background()))
	require.Equal(t, PhaseLoggedOut, c.State().Phase)
}

func TestRestore_PendingCorrelator_AwaitsMfa(t *testing.T) {
	s := &fakeSession{correlator: "s1"}
	c := newController(&fakeGateway{}, s)
	require.NoError(t, c.Restore(context.Background()))
	require.Equal(t, PhaseAwaitingMfaCode, c.State().Phase)
}

func TestRestore_LiveToken_RestoresUserSnapshot(t *testing.T) {
	tok := signToken(t, jwt.MapClaims{
		"user_id":     float64(7),
		"username":    "dave",
		"email":       "dave@example.org",
		"mfa_enabled": false,
		"exp":         time.Now().Add(time.Hour).Unix(),
	})
	s := &fakeSession{access: tok, refresh: "ref"}
	c := newController(&fakeGateway{}, s)

	require.NoError(t, c.Restore(context.Background()))

	st := c.State()
	require.Equal(t, PhaseAuthenticated, st.Phase)
	require.Equal(t, int64(7), st.User.ID)
	require.Equal(t, "dave", st.User.Username)
	require.True(t, st.MfaSetupPromptVisible)
}

func TestRestore_ExpiredToken_ClearsAndLogsOut(t *testing.T) {
	tok := signToken(t, jwt.MapClaims{
		"username": "dave",
		"exp":      time.Now().Add(-time.Hour).Unix(),
	})
	s := &fakeSession{access: tok, refresh: "ref"}
	c := newController(&fakeGateway{}, s)

	require.NoError(t, c.Restore(context.Background()))
	require.Equal(t, PhaseLoggedOut, c.State().Phase)
	require.True(t, s.empty())
	require.Equal(t, 1, s.clearAllCalls)
}

func TestRestore_OpaqueToken_StillAuthenticated(t *testing.T) {
	s := &fakeSession{access: "not-a-jwt"}
	c := newController(&fakeGateway{}, s)

	require.NoError(t, c.Restore(context.Background()))

	st := c.State()
	require.Equal(t, PhaseAuthenticated, st.Phase)
	require.Empty(t, st.User.Username)
	require.False(t, st.MfaSetupPromptVisible, "unknown enrollment state shows no prompt")
}
