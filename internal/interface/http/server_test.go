package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-engine/internal/interface/http/handlers"
)

func serve(t *testing.T, s *Server, method, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestServer_HealthEndpoints(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("postgres", func(context.Context) error { return nil })
	checker.AddOptionalCheck("redis", func(context.Context) error { return errors.New("down") })

	s := NewServer(DefaultConfig(), Dependencies{Health: checker})

	rec, body := serve(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, true, body["healthy"])

	rec, body = serve(t, s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["ready"])

	checker.AddCheck("postgres", func(context.Context) error { return errors.New("down") })
	rec, _ = serve(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_NoChecker(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{})
	rec, body := serve(t, s, http.MethodGet, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["message"])
}

func TestServer_Jobs(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{})
	rec, _ := serve(t, s, http.MethodGet, "/jobs")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	s = NewServer(DefaultConfig(), Dependencies{Jobs: func() any {
		return map[string]any{"jobs": []string{"certificate_retry"}}
	}})
	rec, body := serve(t, s, http.MethodGet, "/jobs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"certificate_retry"}, body["jobs"])
}

func TestServer_RecoversPanic(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{Jobs: func() any { panic("boom") }})
	rec, body := serve(t, s, http.MethodGet, "/jobs")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", body["error"])
}

func TestConfig_Address(t *testing.T) {
	assert.Equal(t, "0.0.0.0:8081", DefaultConfig().Address())
	assert.Equal(t, "127.0.0.1:9000", Config{Host: "127.0.0.1", Port: 9000}.Address())
}
