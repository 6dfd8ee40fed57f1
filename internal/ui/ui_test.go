package ui

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_Success(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.Success(rr, SuccessData{UserID: "user-1", DisplayName: "Ada", AppRoot: "/"})

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "auth-success"))
	assert.True(t, strings.Contains(body, "user-1"))
	assert.True(t, strings.Contains(body, "Ada"))
}

func TestRenderer_Success_NeverEmbedsToken(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.Success(rr, SuccessData{UserID: "user-1", DisplayName: "Ada", AppRoot: "/"})

	assert.False(t, strings.Contains(rr.Body.String(), "token"),
		"success page must not reference the session token")
}

func TestRenderer_Failure(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.Failure(rr, http.StatusBadRequest, FailureData{Message: "Authentication failed"})

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "auth-failure"))
	assert.True(t, strings.Contains(body, "Authentication failed"))
}

func TestRenderer_Failure_EscapesMessage(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	r.Failure(rr, http.StatusBadRequest, FailureData{Message: "<script>alert(1)</script>"})

	assert.False(t, strings.Contains(rr.Body.String(), "<script>alert(1)</script>"))
}
