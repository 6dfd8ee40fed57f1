package handler

import (
	"errors"
	"net/http"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/probsync/probsync/internal/service/csrf"
	"github.com/probsync/probsync/internal/service/idp"
	"github.com/probsync/probsync/internal/service/metrics"
	"github.com/probsync/probsync/internal/service/session"
	"github.com/probsync/probsync/internal/service/state"
	"github.com/probsync/probsync/internal/service/userdata"
	"github.com/probsync/probsync/internal/ui"
	"github.com/probsync/probsync/pkg/logger"
	"github.com/probsync/probsync/pkg/tracing"
)

// maxAuthCodeLength bounds the authorization code accepted on the
// callback. Provider codes are far shorter; anything larger is junk.
const maxAuthCodeLength = 1000

// User-facing failure messages. Detail stays in the server log.
const (
	msgInvalidState   = "Invalid or expired authentication state"
	msgInvalidCode    = "Invalid authorization code"
	msgExchangeFailed = "Authentication failed"
	msgProfileFailed  = "Could not retrieve user profile"
	msgSessionFailed  = "Could not establish session"
)

// AuthHandler handles the /api/auth endpoint: login redirect, OAuth
// callback, token retrieval and logout.
type AuthHandler struct {
	provider  idp.Provider
	sessions  *session.Manager
	states    *state.Service
	csrf      *csrf.Service
	documents *userdata.Store
	renderer  *ui.Renderer
	metrics   *metrics.Metrics
	appRoot   string
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(
	provider idp.Provider,
	sessions *session.Manager,
	states *state.Service,
	csrfSvc *csrf.Service,
	documents *userdata.Store,
	renderer *ui.Renderer,
	m *metrics.Metrics,
	appRoot string,
) *AuthHandler {
	if appRoot == "" {
		appRoot = "/"
	}
	return &AuthHandler{
		provider:  provider,
		sessions:  sessions,
		states:    states,
		csrf:      csrfSvc,
		documents: documents,
		renderer:  renderer,
		metrics:   m,
		appRoot:   appRoot,
	}
}

// HandleAuth dispatches on the action query parameter. A request with
// no action but a state parameter is the provider callback.
func (h *AuthHandler) HandleAuth(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Query().Get("action") {
	case "login":
		h.handleLogin(w, r)
	case "token":
		h.handleToken(w, r)
	case "logout":
		h.handleLogout(w, r)
	default:
		if r.URL.Query().Has("state") {
			h.handleCallback(w, r)
			return
		}
		h.metrics.AuthRequestsTotal.WithLabelValues("unknown", "error").Inc()
		writeError(w, http.StatusBadRequest, "unknown action")
	}
}

// handleLogin stores a fresh single-use state value and redirects to
// the provider's authorize URL.
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	stateValue, err := h.states.Issue(r.Context())
	if err != nil {
		logger.Error("failed to issue oauth state", zap.Error(err))
		h.metrics.AuthRequestsTotal.WithLabelValues("login", "error").Inc()
		writeError(w, http.StatusInternalServerError, "login temporarily unavailable")
		return
	}

	h.metrics.AuthRequestsTotal.WithLabelValues("login", "redirect").Inc()
	http.Redirect(w, r, h.provider.AuthURL(stateValue), http.StatusFound)
}

// handleCallback runs the OAuth callback pipeline: state check, code
// validation, code exchange, profile fetch, session issue. Every
// failure is delivered through the same HTML bridge page so popup and
// redirect flows share one contract.
func (h *AuthHandler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.Start(r.Context(), "auth.callback")
	defer span.End()
	tracing.SetAttributes(ctx, tracing.WithProvider(h.provider.Name()))

	fail := func(status int, userMsg string) {
		tracing.SetStatus(ctx, codes.Error, userMsg)
		h.metrics.AuthRequestsTotal.WithLabelValues("callback", "failure").Inc()
		h.renderer.Failure(w, status, ui.FailureData{Message: userMsg})
	}

	stateValue := r.URL.Query().Get("state")
	if err := h.states.Consume(ctx, stateValue); err != nil {
		if !errors.Is(err, state.ErrStateNotFound) {
			logger.Error("state lookup failed", zap.Error(err))
			fail(http.StatusInternalServerError, msgInvalidState)
			return
		}
		logger.Warn("callback with unknown state")
		fail(http.StatusBadRequest, msgInvalidState)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" || len(code) > maxAuthCodeLength {
		logger.Warn("callback with invalid code", zap.Int("code_length", len(code)))
		fail(http.StatusBadRequest, msgInvalidCode)
		return
	}

	tokens, err := h.provider.Exchange(ctx, code)
	if err != nil {
		logger.Error("code exchange failed", zap.String("provider", h.provider.Name()), zap.Error(err))
		tracing.RecordError(ctx, err)
		fail(http.StatusInternalServerError, msgExchangeFailed)
		return
	}

	profile, err := h.provider.UserInfo(ctx, tokens.AccessToken)
	if err != nil {
		logger.Error("userinfo fetch failed", zap.String("provider", h.provider.Name()), zap.Error(err))
		tracing.RecordError(ctx, err)
		fail(http.StatusInternalServerError, msgProfileFailed)
		return
	}
	if profile.ID == "" || userdata.ValidateUserID(profile.ID) != nil {
		logger.Warn("provider returned unusable user id")
		fail(http.StatusBadRequest, msgProfileFailed)
		return
	}
	displayName := profile.DisplayName()

	if err := h.documents.Provision(ctx, profile.ID); err != nil {
		logger.Error("document provisioning failed", zap.Error(err))
		fail(http.StatusInternalServerError, msgSessionFailed)
		return
	}

	if _, err := h.sessions.Issue(w, profile.ID, displayName); err != nil {
		logger.Error("session issue failed", zap.Error(err))
		fail(http.StatusInternalServerError, msgSessionFailed)
		return
	}

	h.metrics.AuthRequestsTotal.WithLabelValues("callback", "success").Inc()
	h.metrics.SessionsIssued.Inc()
	tracing.SetAttributes(ctx, tracing.AttrUserID.String(profile.ID))
	logger.Info("login completed", zap.String("user_id", profile.ID))

	h.renderer.Success(w, ui.SuccessData{
		UserID:      profile.ID,
		DisplayName: displayName,
		AppRoot:     h.appRoot,
	})
}

// tokenResponse is returned by action=token for contexts that cannot
// read the HttpOnly cookie, such as a background worker.
type tokenResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// handleToken returns the cookie session as a bearer-usable token.
// Only the cookie is consulted: a bearer header must not be able to
// mint itself a fresh token.
func (h *AuthHandler) handleToken(w http.ResponseWriter, r *http.Request) {
	token, claims, err := h.sessions.TokenFromCookie(r)
	if err != nil {
		h.metrics.AuthRequestsTotal.WithLabelValues("token", "unauthorized").Inc()
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	h.metrics.AuthRequestsTotal.WithLabelValues("token", "success").Inc()
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:       token,
		UserID:      claims.UserID,
		DisplayName: claims.DisplayName,
		ExpiresIn:   int64(h.sessions.TTL().Seconds()),
	})
}

// handleLogout clears the session cookie and drops any outstanding
// CSRF token for the user.
func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if claims, err := h.sessions.FromRequest(r); err == nil {
		if err := h.csrf.Drop(r.Context(), claims.UserID); err != nil {
			logger.Warn("failed to drop csrf token on logout", zap.Error(err))
		}
	}
	h.sessions.Clear(w)
	h.metrics.AuthRequestsTotal.WithLabelValues("logout", "success").Inc()
	w.WriteHeader(http.StatusNoContent)
}
