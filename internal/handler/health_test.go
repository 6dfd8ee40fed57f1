package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/probsync/probsync/internal/kv"
)

func TestHealth_Liveness(t *testing.T) {
	store := kv.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	h := NewHealthHandler(store)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestHealth_Readiness(t *testing.T) {
	store := kv.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	h := NewHealthHandler(store)

	readyCode := func() int {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		h.HandleReady(rec, req)
		return rec.Code
	}

	// Not ready until startup completes.
	assert.Equal(t, http.StatusServiceUnavailable, readyCode())

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, readyCode())
}
