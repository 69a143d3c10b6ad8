package gateway

import (
	"context"
	"net/http"
	"net/url"
	"sync"
)

const (
	// CsrfHeaderName carries the anti-forgery token on mutating requests.
	CsrfHeaderName = "X-CSRF-Token"
	// csrfCookieName is the cookie the backend sets on the priming endpoint.
	csrfCookieName = "csrftoken"
)

// CsrfProvider obtains and caches the anti-forgery token the backend requires
// on state-changing requests. The token is primed once per session via
// GET /auth/csrf/ and reused until Invalidate is called.
type CsrfProvider struct {
	baseURL string
	httpc   *http.Client

	mu    sync.Mutex
	token string
}

// NewCsrfProvider builds a provider priming against baseURL. The HTTP client
// must carry a cookie jar shared with the gateway, so the CSRF cookie issued
// here accompanies subsequent requests.
func NewCsrfProvider(baseURL string, httpc *http.Client) *CsrfProvider {
	return &CsrfProvider{baseURL: baseURL, httpc: httpc}
}

// EnsureToken returns the cached token, priming the backend for a fresh one
// when none is cached. Repeated calls within a session reuse the cache.
func (p *CsrfProvider) EnsureToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" {
		return p.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/auth/csrf/", nil)
	if err != nil {
		return "", newError(KindNetwork, "failed to build csrf request: %v", err)
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", newError(KindNetwork, "csrf priming failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", newError(KindBackend, "csrf priming failed: %s", resp.Status)
	}

	token := p.cookieToken()
	if token == "" {
		return "", newError(KindBackend, "backend did not issue a csrf cookie")
	}
	p.token = token
	return token, nil
}

// Invalidate drops the cached token. The next EnsureToken primes again.
func (p *CsrfProvider) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = ""
}

func (p *CsrfProvider) cookieToken() string {
	if p.httpc.Jar == nil {
		return ""
	}
	u, err := url.Parse(p.baseURL)
	if err != nil {
		return ""
	}
	for _, c := range p.httpc.Jar.Cookies(u) {
		if c.Name == csrfCookieName {
			return c.Value
		}
	}
	return ""
}
