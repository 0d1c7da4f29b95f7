package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voicegate-server-go/internal/domain/auth"
	"voicegate-server-go/internal/domain/binding/store"
	"voicegate-server-go/internal/domain/eventbus"
	"voicegate-server-go/internal/platform/logging"
)

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger, err := logging.New(logging.Config{Level: "error", Dir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })

	orchestrator := auth.NewOrchestrator(store.NewMemory(), nil, eventbus.New(), logger, auth.Options{
		BaselineThreshold: 0.75,
		AbsoluteFloor:     0.60,
		AdvisoryBand:      0.05,
		JWTSecret:         "test-secret",
		SessionTTL:        time.Hour,
	})

	service, err := NewAuthService(orchestrator, logger)
	require.NoError(t, err)

	engine := gin.New()
	apiGroup := engine.Group("/api")
	require.NoError(t, service.Start(context.Background(), engine, apiGroup))
	return engine
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return recorder, resp
}

func enrollAlice(t *testing.T, engine *gin.Engine) {
	t.Helper()
	recorder, resp := doJSON(t, engine, http.MethodPost, "/api/auth/enroll", gin.H{
		"user_id":     "alice",
		"device_id":   "phone-1",
		"fingerprint": "fp-1",
		"sample":      []float64{1, 0},
	})
	require.Equal(t, http.StatusCreated, recorder.Code)
	require.True(t, resp.Success)
}

func TestEnrollEndpoint(t *testing.T) {
	engine := newTestServer(t)

	t.Run("success", func(t *testing.T) {
		enrollAlice(t, engine)
	})

	t.Run("duplicate", func(t *testing.T) {
		recorder, resp := doJSON(t, engine, http.MethodPost, "/api/auth/enroll", gin.H{
			"user_id":   "alice",
			"device_id": "phone-1",
			"sample":    []float64{1, 0},
		})
		assert.Equal(t, http.StatusConflict, recorder.Code)
		assert.False(t, resp.Success)
	})

	t.Run("missing fields", func(t *testing.T) {
		recorder, _ := doJSON(t, engine, http.MethodPost, "/api/auth/enroll", gin.H{
			"user_id": "bob",
		})
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
	})

	t.Run("malformed sample", func(t *testing.T) {
		recorder, resp := doJSON(t, engine, http.MethodPost, "/api/auth/enroll", gin.H{
			"user_id":   "bob",
			"device_id": "phone-1",
			"sample":    []float64{0, 0},
		})
		assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
		assert.Equal(t, "cannot verify voice, please retry", resp.Message)
	})
}

func TestVerifyEndpoint(t *testing.T) {
	engine := newTestServer(t)
	enrollAlice(t, engine)

	t.Run("accept issues token", func(t *testing.T) {
		recorder, resp := doJSON(t, engine, http.MethodPost, "/api/auth/verify", gin.H{
			"user_id":     "alice",
			"device_id":   "phone-1",
			"fingerprint": "fp-1",
			"sample":      []float64{1, 0},
		})
		require.Equal(t, http.StatusOK, recorder.Code)
		require.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "ACCEPT", data["outcome"])
		assert.NotEmpty(t, data["token"])

		// The issued token passes session validation.
		req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
		req.Header.Set("Authorization", "Bearer "+data["token"].(string))
		sessionRecorder := httptest.NewRecorder()
		engine.ServeHTTP(sessionRecorder, req)
		assert.Equal(t, http.StatusOK, sessionRecorder.Code)
	})

	t.Run("reject carries no token or score", func(t *testing.T) {
		recorder, resp := doJSON(t, engine, http.MethodPost, "/api/auth/verify", gin.H{
			"user_id":     "alice",
			"device_id":   "phone-1",
			"fingerprint": "fp-1",
			"sample":      []float64{-1, 0.001},
		})
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.False(t, resp.Success)
		assert.NotContains(t, recorder.Body.String(), "score")
		assert.NotContains(t, recorder.Body.String(), "SIMILARITY")
	})

	t.Run("unknown device requires enrollment", func(t *testing.T) {
		recorder, resp := doJSON(t, engine, http.MethodPost, "/api/auth/verify", gin.H{
			"user_id":   "nobody",
			"device_id": "phone-1",
			"sample":    []float64{1, 0},
		})
		assert.Equal(t, http.StatusNotFound, recorder.Code)
		assert.Equal(t, "enrollment required", resp.Message)
	})
}

func TestRevokeEndpoint(t *testing.T) {
	engine := newTestServer(t)
	enrollAlice(t, engine)

	recorder, resp := doJSON(t, engine, http.MethodPost, "/api/auth/revoke", gin.H{
		"user_id":   "alice",
		"device_id": "phone-1",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	require.True(t, resp.Success)

	// A revoked binding rejects a dissimilar sample and demands re-enrollment.
	recorder, resp = doJSON(t, engine, http.MethodPost, "/api/auth/verify", gin.H{
		"user_id":   "alice",
		"device_id": "phone-1",
		"sample":    []float64{-1, 0.001},
	})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "re-enrollment required", resp.Message)

	t.Run("revoking missing binding", func(t *testing.T) {
		recorder, _ := doJSON(t, engine, http.MethodPost, "/api/auth/revoke", gin.H{
			"user_id":   "nobody",
			"device_id": "phone-9",
		})
		assert.Equal(t, http.StatusNotFound, recorder.Code)
	})
}

func TestListBindingsEndpoint(t *testing.T) {
	engine := newTestServer(t)
	enrollAlice(t, engine)

	recorder, resp := doJSON(t, engine, http.MethodGet, "/api/auth/bindings/alice", nil)
	require.Equal(t, http.StatusOK, recorder.Code)

	views := resp.Data.([]interface{})
	require.Len(t, views, 1)
	view := views[0].(map[string]interface{})
	assert.Equal(t, "phone-1", view["device_id"])
	assert.Equal(t, "TRUSTED", view["trust_level"])

	// Stored signatures never leave the server.
	assert.NotContains(t, recorder.Body.String(), "signature")
}

func TestSessionEndpointRejectsBadTokens(t *testing.T) {
	engine := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	recorder := httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	recorder = httptest.NewRecorder()
	engine.ServeHTTP(recorder, req)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
