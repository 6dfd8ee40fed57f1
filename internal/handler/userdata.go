package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/probsync/probsync/internal/service/csrf"
	"github.com/probsync/probsync/internal/service/metrics"
	"github.com/probsync/probsync/internal/service/session"
	"github.com/probsync/probsync/internal/service/userdata"
	"github.com/probsync/probsync/pkg/logger"
)

// CSRFHeader carries the single-use mutation token.
const CSRFHeader = "X-CSRF-Token"

// maxBodyBytes bounds the POST body. Documents are small; a megabyte
// of headroom is generous.
const maxBodyBytes = 1 << 20

// UserDataHandler handles the /api/user endpoint: document reads and
// writes plus CSRF token issuance.
type UserDataHandler struct {
	sessions  *session.Manager
	csrf      *csrf.Service
	documents *userdata.Store
	metrics   *metrics.Metrics
}

// NewUserDataHandler creates a new user data handler.
func NewUserDataHandler(
	sessions *session.Manager,
	csrfSvc *csrf.Service,
	documents *userdata.Store,
	m *metrics.Metrics,
) *UserDataHandler {
	return &UserDataHandler{
		sessions:  sessions,
		csrf:      csrfSvc,
		documents: documents,
		metrics:   m,
	}
}

// authenticate resolves the session (cookie first, then bearer) and
// checks the user id is usable as a store key. It writes the error
// response itself and returns an empty id on failure.
func (h *UserDataHandler) authenticate(w http.ResponseWriter, r *http.Request) string {
	claims, err := h.sessions.FromRequest(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return ""
	}
	if err := userdata.ValidateUserID(claims.UserID); err != nil {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return ""
	}
	return claims.UserID
}

// HandleGet serves the document, or a fresh CSRF token for
// action=csrf.
func (h *UserDataHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID := h.authenticate(w, r)
	if userID == "" {
		return
	}

	if r.URL.Query().Get("action") == "csrf" {
		h.handleCSRFIssue(w, r, userID)
		return
	}

	doc, err := h.documents.Load(r.Context(), userID)
	if err != nil {
		logger.Error("document load failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	h.metrics.SyncReadsTotal.Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, doc)
}

type csrfResponse struct {
	CSRFToken string `json:"csrfToken"`
}

func (h *UserDataHandler) handleCSRFIssue(w http.ResponseWriter, r *http.Request, userID string) {
	token, err := h.csrf.Issue(r.Context(), userID)
	if err != nil {
		logger.Error("csrf issue failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	h.metrics.CSRFIssuedTotal.Inc()
	writeJSON(w, http.StatusOK, csrfResponse{CSRFToken: token})
}

// writeRequest is the POST body shape. Data stays raw so the stored
// document is byte-identical to what the client sent.
type writeRequest struct {
	Data json.RawMessage `json:"data"`
}

// HandlePost overwrites the document. The CSRF token is consumed
// before the body is parsed, so every attempt costs a token whether or
// not the write goes through.
func (h *UserDataHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	userID := h.authenticate(w, r)
	if userID == "" {
		return
	}

	if err := h.csrf.Validate(r.Context(), userID, r.Header.Get(CSRFHeader)); err != nil {
		switch {
		case errors.Is(err, csrf.ErrTokenMissing), errors.Is(err, csrf.ErrTokenMismatch):
			h.metrics.CSRFRejectedTotal.Inc()
			writeError(w, http.StatusForbidden, "invalid csrf token")
		default:
			logger.Error("csrf validation failed", zap.String("user_id", userID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to validate token")
		}
		return
	}

	var req writeRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if !isJSONObject(req.Data) {
		writeError(w, http.StatusBadRequest, "data must be an object")
		return
	}

	encoding, err := h.documents.Save(r.Context(), userID, string(req.Data))
	if err != nil {
		logger.Error("document save failed", zap.String("user_id", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to save data")
		return
	}

	h.metrics.SyncWritesTotal.Inc()
	h.metrics.DocumentSizeBytes.WithLabelValues(encoding).Observe(float64(len(req.Data)))
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "OK")
}

// HandleOptions answers the CORS preflight. The CORS middleware has
// already attached the reflected-origin headers.
func (h *UserDataHandler) HandleOptions(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// isJSONObject reports whether raw is a JSON object, not an array,
// scalar or null.
func isJSONObject(raw json.RawMessage) bool {
	for _, b := range raw {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}
