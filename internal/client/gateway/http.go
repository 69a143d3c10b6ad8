package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/dbelyaev/authflow/internal/client/models"
	"github.com/dbelyaev/authflow/internal/logging"
)

const defaultUserAgent = "authflow-cli/1.0"

// HTTPGateway talks JSON over HTTP to the identity backend. All failures are
// mapped to *Error before returning; mutating requests carry the CSRF header
// and retry exactly once after re-priming when the backend rejects the token.
type HTTPGateway struct {
	baseURL   string
	httpc     *http.Client
	csrf      *CsrfProvider
	creds     CredentialSource
	userAgent string
	log       logging.Logger
}

// NewHTTPGateway builds a gateway for baseURL (e.g. "http://host:8000/api").
// The gateway and its CSRF provider share one cookie jar so the CSRF cookie
// issued at priming accompanies every later request.
func NewHTTPGateway(baseURL string, timeout time.Duration, creds CredentialSource, log logging.Logger) (*HTTPGateway, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, newError(KindValidation, "invalid base URL %q: %v", baseURL, err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, newError(KindNetwork, "failed to create cookie jar: %v", err)
	}
	httpc := &http.Client{Timeout: timeout, Jar: jar}
	return &HTTPGateway{
		baseURL:   baseURL,
		httpc:     httpc,
		csrf:      NewCsrfProvider(baseURL, httpc),
		creds:     creds,
		userAgent: defaultUserAgent,
		log:       log,
	}, nil
}

// callSpec describes one backend call for the shared request plumbing.
type callSpec struct {
	method   string
	path     string
	body     any
	bearer   bool
	mutating bool
	// status maps a non-2xx response to a domain error; when it returns nil
	// the generic mapping applies.
	status func(code int, msg string) *Error
}

func (g *HTTPGateway) call(ctx context.Context, spec callSpec, out any) error {
	err := g.callOnce(ctx, spec, out)
	if spec.mutating && IsKind(err, KindCsrfRejected) {
		// One re-prime-and-retry, then surface whatever comes back.
		g.log.Debug(ctx, "csrf token rejected, re-priming", "path", spec.path)
		g.csrf.Invalidate()
		err = g.callOnce(ctx, spec, out)
	}
	return err
}

func (g *HTTPGateway) callOnce(ctx context.Context, spec callSpec, out any) error {
	var body io.Reader
	if spec.body != nil {
		data, err := json.Marshal(spec.body)
		if err != nil {
			return newError(KindValidation, "failed to encode request body: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, g.baseURL+spec.path, body)
	if err != nil {
		return newError(KindNetwork, "failed to build request: %v", err)
	}
	req.Header.Set("User-Agent", g.userAgent)
	if spec.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if spec.mutating {
		token, err := g.csrf.EnsureToken(ctx)
		if err != nil {
			return err
		}
		req.Header.Set(CsrfHeaderName, token)
	}

	if spec.bearer {
		token, err := g.creds.AccessToken(ctx)
		if err != nil {
			return newError(KindNetwork, "failed to read access token: %v", err)
		}
		if token == "" {
			return newError(KindUnauthenticated, "no access token stored")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.httpc.Do(req)
	if err != nil {
		return newError(KindNetwork, "request failed: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(KindNetwork, "failed to read response: %v", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return newError(KindBackend, "malformed response body: %v", err)
		}
		return nil
	}

	msg := errorMessage(data, resp.Status)

	if resp.StatusCode == http.StatusForbidden {
		return newError(KindCsrfRejected, "%s", msg)
	}
	if spec.status != nil {
		if e := spec.status(resp.StatusCode, msg); e != nil {
			return e
		}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return newError(KindUnauthenticated, "%s", msg)
	}
	return newError(KindBackend, "%s", msg)
}

// errorMessage extracts the backend's error string from a failure body.
// The backend reports either {"error": "..."} or {"detail": "..."}.
func errorMessage(data []byte, fallback string) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(data, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return fallback
}

// validMfaCode reports whether s is exactly 6 ASCII digits.
func validMfaCode(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (g *HTTPGateway) Login(ctx context.Context, creds models.LoginCredentials) (*models.LoginResult, error) {
	var result models.LoginResult
	err := g.call(ctx, callSpec{
		method:   http.MethodPost,
		path:     "/auth/login/",
		body:     creds,
		mutating: true,
		status: func(code int, msg string) *Error {
			if code == http.StatusUnauthorized || code == http.StatusBadRequest {
				return newError(KindInvalidCredentials, "%s", msg)
			}
			return nil
		},
	}, &result)
	if err != nil {
		return nil, err
	}
	if !result.RequiresMfa && result.Tokens == nil {
		return nil, newError(KindBackend, "login response missing tokens")
	}
	if result.RequiresMfa && result.SessionID == "" {
		return nil, newError(KindBackend, "login response missing mfa session id")
	}
	g.log.Info(ctx, "login accepted", "username", result.User.Username, "requires_mfa", result.RequiresMfa)
	return &result, nil
}

// mfaVerifyRequest is the wire shape of POST /auth/verify-mfa/.
type mfaVerifyRequest struct {
	Token      string            `json:"token"`
	SessionID  string            `json:"session_id"`
	DeviceInfo models.DeviceInfo `json:"device_info"`
}

func (g *HTTPGateway) VerifyMfa(ctx context.Context, code string) (*models.MfaVerifyResult, error) {
	if !validMfaCode(code) {
		return nil, newError(KindValidation, "mfa code must be exactly 6 digits")
	}

	sessionID, err := g.creds.MfaCorrelator(ctx)
	if err != nil {
		return nil, newError(KindNetwork, "failed to read mfa session: %v", err)
	}
	if sessionID == "" {
		return nil, newError(KindUnauthenticated, "no pending mfa session")
	}
	deviceID, err := g.creds.DeviceID(ctx)
	if err != nil {
		return nil, newError(KindNetwork, "failed to read device id: %v", err)
	}

	var result models.MfaVerifyResult
	err = g.call(ctx, callSpec{
		method:   http.MethodPost,
		path:     "/auth/verify-mfa/",
		body:     mfaVerifyRequest{Token: code, SessionID: sessionID, DeviceInfo: models.DeviceInfo{DeviceID: deviceID, UserAgent: g.userAgent}},
		mutating: true,
		status: func(code int, msg string) *Error {
			if code == http.StatusUnauthorized || code == http.StatusBadRequest {
				return newError(KindInvalidMfaCode, "%s", msg)
			}
			return nil
		},
	}, &result)
	if err != nil {
		return nil, err
	}
	g.log.Info(ctx, "mfa verification accepted", "username", result.User.Username)
	return &result, nil
}

func (g *HTTPGateway) SetupMfaBegin(ctx context.Context) (*models.MfaSetupMaterial, error) {
	var result models.MfaSetupMaterial
	err := g.call(ctx, callSpec{
		method: http.MethodGet,
		path:   "/auth/setup-mfa/",
		bearer: true,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type mfaSetupVerifyRequest struct {
	VerificationCode string `json:"verification_code"`
}

func (g *HTTPGateway) SetupMfaVerify(ctx context.Context, code string) (*models.MfaSetupVerifyResult, error) {
	if !validMfaCode(code) {
		return nil, newError(KindValidation, "mfa code must be exactly 6 digits")
	}

	var result models.MfaSetupVerifyResult
	err := g.call(ctx, callSpec{
		method:   http.MethodPost,
		path:     "/auth/setup-mfa/",
		body:     mfaSetupVerifyRequest{VerificationCode: code},
		bearer:   true,
		mutating: true,
		status: func(code int, msg string) *Error {
			if code == http.StatusBadRequest {
				return newError(KindInvalidMfaCode, "%s", msg)
			}
			return nil
		},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *HTTPGateway) Signup(ctx context.Context, creds models.SignupCredentials) (*models.SignupResult, error) {
	var result models.SignupResult
	err := g.call(ctx, callSpec{
		method:   http.MethodPost,
		path:     "/auth/signup/",
		body:     creds,
		mutating: true,
		status: func(code int, msg string) *Error {
			if code == http.StatusBadRequest || code == http.StatusConflict {
				return newError(KindValidation, "%s", msg)
			}
			return nil
		},
	}, &result)
	if err != nil {
		return nil, err
	}
	g.log.Info(ctx, "signup accepted", "username", result.Username, "email", result.Email)
	return &result, nil
}

func (g *HTTPGateway) VerifyEmail(ctx context.Context, token string) (*models.EmailVerifyResult, error) {
	if token == "" {
		return nil, newError(KindValidation, "verification token is empty")
	}

	var result models.EmailVerifyResult
	err := g.call(ctx, callSpec{
		method: http.MethodGet,
		path:   "/auth/verify-email/" + url.PathEscape(token) + "/",
		status: func(code int, msg string) *Error {
			switch code {
			case http.StatusBadRequest, http.StatusNotFound, http.StatusGone:
				return newError(KindExpiredToken, "%s", msg)
			}
			return nil
		},
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *HTTPGateway) Logout(ctx context.Context) error {
	token, err := g.creds.AccessToken(ctx)
	if err != nil || token == "" {
		// Nothing to revoke server-side; local cleanup is the caller's job.
		return nil
	}

	err = g.call(ctx, callSpec{
		method:   http.MethodPost,
		path:     "/auth/logout/",
		bearer:   true,
		mutating: true,
	}, nil)
	if err != nil {
		g.log.Warn(ctx, "server-side logout failed", "err", err)
		return err
	}
	return nil
}

var _ Gateway = (*HTTPGateway)(nil)
