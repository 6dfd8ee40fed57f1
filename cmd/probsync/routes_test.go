package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probsync/probsync/internal/config"
	"github.com/probsync/probsync/internal/service/metrics"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFromString(`
dev_mode: true
auth:
  signing_key: "0123456789abcdef0123456789abcdef"
kv:
  type: memory
rate_limit:
  auth:
    max: 10
    window: 60s
  data:
    max: 30
    window: 60s
`)
	require.NoError(t, err)
	return cfg
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	deps, err := createDependencies(testConfig(t), metrics.New(), nil)
	require.NoError(t, err)
	t.Cleanup(deps.Close)
	return SetupRouter(deps)
}

// loginThroughRouter walks the full login flow and returns the session
// cookie.
func loginThroughRouter(t *testing.T, router http.Handler) *http.Cookie {
	t.Helper()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth?action=login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/auth?state="+url.QueryEscape(state)+"&code=code-developer", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestRouter_FullSyncFlow(t *testing.T) {
	router := newTestRouter(t)
	cookie := loginThroughRouter(t, router)

	// Fresh user gets the default document.
	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"problems":{},"deletedIds":[]}`, rec.Body.String())

	// Issue a CSRF token.
	req = httptest.NewRequest(http.MethodGet, "/api/user?action=csrf", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var csrfResp struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &csrfResp))

	// Write the document.
	doc := `{"problems":{"1":{"status":"solved"}},"deletedIds":[]}`
	req = httptest.NewRequest(http.MethodPost, "/api/user", strings.NewReader(`{"data":`+doc+`}`))
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", csrfResp.CSRFToken)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	// Read it back, byte for byte.
	req = httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, doc, rec.Body.String())
}

func TestRouter_AuthRateLimit(t *testing.T) {
	router := newTestRouter(t)

	var codes []int
	for i := 0; i < 11; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/auth?action=token", nil)
		req.Header.Set("CF-Connecting-IP", "203.0.113.7")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	for i := 0; i < 10; i++ {
		assert.NotEqual(t, http.StatusTooManyRequests, codes[i], "request %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, codes[10])
}

func TestRouter_CORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/user", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "X-CSRF-Token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRouter_PreflightNotRateLimited(t *testing.T) {
	cfg, err := config.LoadFromString(`
dev_mode: true
auth:
  signing_key: "0123456789abcdef0123456789abcdef"
kv:
  type: memory
rate_limit:
  data:
    max: 1
    window: 60s
`)
	require.NoError(t, err)
	deps, err := createDependencies(cfg, metrics.New(), nil)
	require.NoError(t, err)
	t.Cleanup(deps.Close)
	router := SetupRouter(deps)

	// Exhaust the data window for this client.
	var last int
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
		req.Header.Set("CF-Connecting-IP", "203.0.113.9")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		last = rec.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)

	// The preflight still gets its 204.
	req := httptest.NewRequest(http.MethodOptions, "/api/user", nil)
	req.Header.Set("CF-Connecting-IP", "203.0.113.9")
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_CORSReflectsOrigin(t *testing.T) {
	router := newTestRouter(t)
	cookie := loginThroughRouter(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/healthz", "/metrics"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	// Readiness is not signalled until startup completes.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
