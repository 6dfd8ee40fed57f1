package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probsync/probsync/internal/kv"
	"github.com/probsync/probsync/internal/service/csrf"
	"github.com/probsync/probsync/internal/service/metrics"
	"github.com/probsync/probsync/internal/service/session"
	"github.com/probsync/probsync/internal/service/userdata"
)

type userDataFixture struct {
	handler   *UserDataHandler
	store     *kv.MemoryStore
	sessions  *session.Manager
	csrf      *csrf.Service
	documents *userdata.Store
}

func newUserDataFixture(t *testing.T) *userDataFixture {
	t.Helper()

	store := kv.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	sessions, err := session.NewManager(session.DefaultConfig(), testSigningKey, "probsync-test")
	require.NoError(t, err)

	csrfSvc := csrf.NewService(store)
	documents := userdata.NewStore(store)

	return &userDataFixture{
		handler:   NewUserDataHandler(sessions, csrfSvc, documents, metrics.New()),
		store:     store,
		sessions:  sessions,
		csrf:      csrfSvc,
		documents: documents,
	}
}

// sessionToken signs a session for userID without going through the
// auth endpoint.
func (f *userDataFixture) sessionToken(t *testing.T, userID string) string {
	t.Helper()
	rec := httptest.NewRecorder()
	token, err := f.sessions.Issue(rec, userID, "Test User")
	require.NoError(t, err)
	return token
}

func (f *userDataFixture) request(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	switch method {
	case http.MethodGet:
		f.handler.HandleGet(rec, req)
	case http.MethodPost:
		f.handler.HandlePost(rec, req)
	}
	return rec
}

func TestUserData_Get_DefaultDocument(t *testing.T) {
	f := newUserDataFixture(t)
	token := f.sessionToken(t, "user-1")

	rec := f.request(t, http.MethodGet, "/api/user", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, userdata.DefaultDocument, rec.Body.String())
}

func TestUserData_Get_CookieAuth(t *testing.T) {
	f := newUserDataFixture(t)
	token := f.sessionToken(t, "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/user", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	rec := httptest.NewRecorder()
	f.handler.HandleGet(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUserData_Get_Unauthenticated(t *testing.T) {
	f := newUserDataFixture(t)

	rec := f.request(t, http.MethodGet, "/api/user", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodGet, "/api/user", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserData_CSRFIssue(t *testing.T) {
	f := newUserDataFixture(t)
	token := f.sessionToken(t, "user-1")

	rec := f.request(t, http.MethodGet, "/api/user?action=csrf", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.CSRFToken)

	// The issued token validates exactly once.
	ctx := context.Background()
	require.NoError(t, f.csrf.Validate(ctx, "user-1", resp.CSRFToken))
	assert.ErrorIs(t, f.csrf.Validate(ctx, "user-1", resp.CSRFToken), csrf.ErrTokenMismatch)
}

func TestUserData_PostThenGet_RoundTrip(t *testing.T) {
	f := newUserDataFixture(t)
	token := f.sessionToken(t, "user-1")

	csrfToken, err := f.csrf.Issue(context.Background(), "user-1")
	require.NoError(t, err)

	doc := `{"problems":{"1":{"status":"solved"}},"deletedIds":[]}`
	req := httptest.NewRequest(http.MethodPost, "/api/user", strings.NewReader(`{"data":`+doc+`}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(CSRFHeader, csrfToken)
	rec := httptest.NewRecorder()
	f.handler.HandlePost(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	got := f.request(t, http.MethodGet, "/api/user", token, "")
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, doc, got.Body.String())
}

func TestUserData_Post_CSRFSingleUse(t *testing.T) {
	f := newUserDataFixture(t)
	token := f.sessionToken(t, "user-1")

	csrfToken, err := f.csrf.Issue(context.Background(), "user-1")
	require.NoError(t, err)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/user", strings.NewReader(`{"data":{}}`))
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set(CSRFHeader, csrfToken)
		rec := httptest.NewRecorder()
		f.handler.HandlePost(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, post().Code)
	assert.Equal(t, http.StatusForbidden, post().Code)
}

func TestUserData_Post_CSRFConsumedEvenOnBadBody(t *testing.T) {
	f := newUserDataFixture(t)
	token := f.sessionToken(t, "user-1")
	ctx := context.Background()

	csrfToken, err := f.csrf.Issue(ctx, "user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/user", strings.NewReader("not json"))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(CSRFHeader, csrfToken)
	rec := httptest.NewRecorder()
	f.handler.HandlePost(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	// The token was consumed before body parsing.
	assert.ErrorIs(t, f.csrf.Validate(ctx, "user-1", csrfToken), csrf.ErrTokenMismatch)
}

func TestUserData_Post_MissingCSRF(t *testing.T) {
	f := newUserDataFixture(t)
	token := f.sessionToken(t, "user-1")

	rec := f.request(t, http.MethodPost, "/api/user", token, `{"data":{}}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUserData_Post_WrongCSRF(t *testing.T) {
	f := newUserDataFixture(t)
	token := f.sessionToken(t, "user-1")
	ctx := context.Background()

	csrfToken, err := f.csrf.Issue(ctx, "user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/user", strings.NewReader(`{"data":{}}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(CSRFHeader, "wrong-token")
	rec := httptest.NewRecorder()
	f.handler.HandlePost(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)

	// A mismatch consumes nothing; the real token still works.
	assert.NoError(t, f.csrf.Validate(ctx, "user-1", csrfToken))
}

func TestUserData_Post_NonObjectData(t *testing.T) {
	f := newUserDataFixture(t)
	token := f.sessionToken(t, "user-1")
	ctx := context.Background()

	for name, body := range map[string]string{
		"array":   `{"data":[1,2]}`,
		"string":  `{"data":"text"}`,
		"number":  `{"data":42}`,
		"null":    `{"data":null}`,
		"missing": `{}`,
	} {
		t.Run(name, func(t *testing.T) {
			csrfToken, err := f.csrf.Issue(ctx, "user-1")
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/user", strings.NewReader(body))
			req.Header.Set("Authorization", "Bearer "+token)
			req.Header.Set(CSRFHeader, csrfToken)
			rec := httptest.NewRecorder()
			f.handler.HandlePost(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestUserData_Options(t *testing.T) {
	f := newUserDataFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/user", nil)
	rec := httptest.NewRecorder()
	f.handler.HandleOptions(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestIsJSONObject(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"object", `{"a":1}`, true},
		{"object with leading space", "  {}", true},
		{"array", `[1]`, false},
		{"string", `"x"`, false},
		{"empty", ``, false},
		{"null", `null`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isJSONObject(json.RawMessage(tt.raw)))
		})
	}
}
