package auditor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/a11yaudit/evidence"
)

const testSecret = "s3cret-for-tests-only-0123456789"

func do(t *testing.T, srv *httptest.Server, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	tok, err := GenerateToken([]byte(testSecret), userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestHTTP_AuditFlow(t *testing.T) {
	sc := &fakeScanner{ev: pageEvidence()}
	a, _ := newTestAuditor(t, &Config{Auth: AuthConfig{JWTSecret: testSecret}}, sc)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()
	alice := tokenFor(t, "alice")
	bob := tokenFor(t, "bob")

	resp, body := do(t, srv, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, _ = do(t, srv, http.MethodPost, "/audit", "", map[string]any{"url": pageURL})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPost, "/audit", alice, map[string]any{"url": pageURL})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, float64(1), body["summary"].(map[string]any)["total"])
	id, _ := body["audit_id"].(string)
	require.NotEmpty(t, id)

	resp, body = do(t, srv, http.MethodGet, "/audits", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	audits := body["audits"].([]any)
	require.Len(t, audits, 1)
	assert.Equal(t, id, audits[0].(map[string]any)["id"])

	resp, body = do(t, srv, http.MethodGet, "/audits", bob, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["audits"])

	resp, body = do(t, srv, http.MethodGet, "/audits/"+id, alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, pageURL, body["url"])
	assert.Len(t, body["issues"], 1)

	resp, _ = do(t, srv, http.MethodGet, "/audits/"+id, bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = do(t, srv, http.MethodGet, "/audits/missing", alice, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHTTP_AuditErrors(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		scanErr error
		want    int
	}{
		{"bad scheme", "ftp://files.example.org", nil, http.StatusBadRequest},
		{"blocklisted", "https://phishing.org/", nil, http.StatusBadRequest},
		{"unreachable", pageURL, errors.New("all navigation strategies failed"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := &fakeScanner{ev: &evidence.Evidence{}, err: tt.scanErr}
			a, _ := newTestAuditor(t, nil, sc)
			srv := httptest.NewServer(a.Handler())
			defer srv.Close()

			resp, body := do(t, srv, http.MethodPost, "/audit", "", map[string]any{"url": tt.url})
			assert.Equal(t, tt.want, resp.StatusCode)
			assert.Equal(t, "error", body["status"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHTTP_AnonymousWithoutSecret(t *testing.T) {
	// WHAT: Without a JWT secret every caller is the anonymous user.
	// WHY: Single-user deployments must work with no identity layer.
	a, _ := newTestAuditor(t, nil, &fakeScanner{ev: pageEvidence()})
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, _ := do(t, srv, http.MethodPost, "/audit", "", map[string]any{"url": pageURL})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	all, err := a.History(t.Context(), AnonymousUser, HistoryQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestHTTP_Crawl(t *testing.T) {
	site := http.NewServeMux()
	site.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/a">A</a><a href="/b">B</a><a href="https://elsewhere.org/">x</a>`)
	})
	target := httptest.NewServer(site)
	defer target.Close()

	a, _ := newTestAuditor(t, nil, &fakeScanner{})
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, body := do(t, srv, http.MethodPost, "/crawl", "", map[string]any{"url": target.URL + "/", "max_pages": 10})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{target.URL, target.URL + "/a", target.URL + "/b"}, body["urls"])

	resp, _ = do(t, srv, http.MethodPost, "/crawl", "", map[string]any{"url": "javascript:alert(1)"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestValidateToken(t *testing.T) {
	secret := []byte(testSecret)

	tok := tokenFor(t, "alice")
	claims, err := ValidateToken(secret, tok)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.UserID)

	_, err = ValidateToken([]byte("another-secret-entirely-000000000"), tok)
	assert.Error(t, err)

	// HS512 with the same secret is rejected by the method pin.
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, &Claims{UserID: "alice"}).SignedString(secret)
	require.NoError(t, err)
	_, err = ValidateToken(secret, hs512)
	assert.Error(t, err)

	expired, err := GenerateToken(secret, "alice", -time.Minute)
	require.NoError(t, err)
	_, err = ValidateToken(secret, expired)
	assert.Error(t, err)

	_, err = GenerateToken(nil, "alice", time.Hour)
	assert.Error(t, err)
}

func TestIdentity_CookieAndInvalidToken(t *testing.T) {
	var got string
	h := identity([]byte(testSecret))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: tokenFor(t, "carol")})
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "carol", got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "garbage"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "", got)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "token=")
}

func TestHTTP_RateLimit(t *testing.T) {
	// WHAT: A caller over its audit budget gets 429 until the window resets.
	// WHY: Each audit drives a browser and several model calls.
	cfg := &Config{HTTP: HTTPConfig{RateLimit: RateLimitConfig{MaxRequests: 2, Window: time.Hour}}}
	a, _ := newTestAuditor(t, cfg, &fakeScanner{ev: pageEvidence()})
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	for i := 0; i < 2; i++ {
		resp, _ := do(t, srv, http.MethodPost, "/audit", "", map[string]any{"url": pageURL})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := do(t, srv, http.MethodPost, "/audit", "", map[string]any{"url": pageURL})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate limit exceeded", body["error"])
	assert.Equal(t, "3600", resp.Header.Get("Retry-After"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, _ = do(t, srv, http.MethodGet, "/audits", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "reads are not limited")
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	rl := newRateLimiter(RateLimitConfig{MaxRequests: 1, Window: time.Minute})
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("u"))
	assert.False(t, rl.allow("u"))
	assert.True(t, rl.allow("v"), "buckets are per caller")

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.allow("u"))

	assert.True(t, newRateLimiter(RateLimitConfig{}).allow("u"), "zero config disables the limit")
}

func TestRateLimiter_ClientIP(t *testing.T) {
	// WHAT: X-Forwarded-For is only believed when the peer is a trusted proxy.
	// WHY: A direct client could otherwise pick a fresh bucket per request.
	req := func(remote, xff string) *http.Request {
		r := httptest.NewRequest(http.MethodPost, "/audit", nil)
		r.RemoteAddr = remote
		if xff != "" {
			r.Header.Set("X-Forwarded-For", xff)
		}
		return r
	}

	direct := newRateLimiter(RateLimitConfig{})
	assert.Equal(t, "203.0.113.7", direct.clientIP(req("203.0.113.7:5000", "198.51.100.1")))

	proxied := newRateLimiter(RateLimitConfig{TrustedProxies: []string{"10.0.0.0/8", "192.0.2.1"}})
	assert.Equal(t, "198.51.100.1", proxied.clientIP(req("10.1.2.3:443", "198.51.100.1")))
	assert.Equal(t, "198.51.100.9", proxied.clientIP(req("10.1.2.3:443", "1.2.3.4, 198.51.100.9, 192.0.2.1")),
		"spoofed leftmost hops are ignored")
	assert.Equal(t, "10.1.2.3", proxied.clientIP(req("10.1.2.3:443", "")))
	assert.Equal(t, "203.0.113.7", proxied.clientIP(req("203.0.113.7:5000", "198.51.100.1")),
		"untrusted peer keeps its socket address")
}

func TestHTTP_RateLimitIgnoresSpoofedForwardedFor(t *testing.T) {
	cfg := &Config{HTTP: HTTPConfig{RateLimit: RateLimitConfig{MaxRequests: 1, Window: time.Hour}}}
	a, _ := newTestAuditor(t, cfg, &fakeScanner{ev: pageEvidence()})
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	post := func(xff string) int {
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/audit", strings.NewReader(`{"url":"`+pageURL+`"}`))
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", xff)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	assert.Equal(t, http.StatusOK, post("198.51.100.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("198.51.100.2"))
}
