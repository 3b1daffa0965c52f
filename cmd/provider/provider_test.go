package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(deliveryRate float64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return SetupRouter(NewHandler(NewMockProvider(deliveryRate, 0, 0, 0)))
}

func post(t *testing.T, r http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSend(t *testing.T) {
	valid := SendRequest{NotificationID: "n-1", Channel: "SMS", PhoneNumber: "+15550001", Body: "hi"}

	t.Run("accepts when delivery always succeeds", func(t *testing.T) {
		w := post(t, newTestRouter(1), "/api/v1/notifications/send", valid)
		require.Equal(t, http.StatusOK, w.Code)

		var resp SendResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, StatusAccepted, resp.Status)
		assert.Equal(t, "n-1", resp.NotificationID)
		assert.NotEmpty(t, resp.ProviderRef)
	})

	t.Run("reports failure with 202", func(t *testing.T) {
		w := post(t, newTestRouter(0), "/api/v1/notifications/send", valid)
		require.Equal(t, http.StatusAccepted, w.Code)

		var resp SendResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, StatusFailed, resp.Status)
		assert.Contains(t, errorMessages, resp.ErrorCode)
	})

	t.Run("rejects unknown channel", func(t *testing.T) {
		bad := valid
		bad.Channel = "PIGEON"
		w := post(t, newTestRouter(1), "/api/v1/notifications/send", bad)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHealthAndConfig(t *testing.T) {
	r := newTestRouter(1)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)

	req := httptest.NewRequest(http.MethodPut, "/api/v1/config", bytes.NewBufferString(`{"delivery_rate":0.25}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodPut, "/api/v1/config", bytes.NewBufferString(`{"delivery_rate":2}`))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
