package certificates

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/certificate"
	"github.com/alem-hub/learning-engine/pkg/circuitbreaker"
	"github.com/alem-hub/learning-engine/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetrier() *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(3),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(5*time.Millisecond),
	)
}

func newTestClient(t *testing.T, url string, breaker *circuitbreaker.CircuitBreaker) *Client {
	t.Helper()
	cfg := DefaultClientConfig(url)
	cfg.APIKey = "secret"
	cfg.Retrier = fastRetrier()
	cfg.Breaker = breaker
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

var issueReq = certificate.IssueRequest{EnrollmentID: "enr-1", LearnerID: "learner-1", CourseID: "course-1"}

func TestClient_Issue(t *testing.T) {
	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/certificates", r.URL.Path)
		assert.Equal(t, "enr-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body issueRequestDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, issueRequestDTO{EnrollmentID: "enr-1", LearnerID: "learner-1", CourseID: "course-1"}, body)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(issueResponseDTO{CertificateID: "cert-42", IssuedAt: issuedAt})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL+"/", nil)
	res, err := c.Issue(context.Background(), issueReq)
	require.NoError(t, err)
	assert.Equal(t, "cert-42", res.ExternalRef)
	assert.True(t, issuedAt.Equal(res.IssuedAt))
}

func TestClient_Issue_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(issueResponseDTO{CertificateID: "cert-1"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	res, err := c.Issue(context.Background(), issueReq)
	require.NoError(t, err)
	assert.Equal(t, "cert-1", res.ExternalRef)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Issue_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"unknown_course","message":"course not registered"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.Issue(context.Background(), issueReq)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "unknown_course", apiErr.Code)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, circuitbreaker.StateClosed, c.BreakerState())
}

func TestClient_Issue_BreakerOpensOnOutage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := circuitbreaker.New("test",
		circuitbreaker.WithFailureThreshold(1),
		circuitbreaker.WithTimeout(time.Hour),
		circuitbreaker.WithIsFailure(IsOutage),
	)
	c := newTestClient(t, srv.URL, breaker)

	_, err := c.Issue(context.Background(), issueReq)
	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, circuitbreaker.StateOpen, c.BreakerState())

	_, err = c.Issue(context.Background(), issueReq)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_Issue_EmptyCertificateID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.Issue(context.Background(), issueReq)
	assert.ErrorContains(t, err, "empty certificate id")
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.Error(t, err)
}
