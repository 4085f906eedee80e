// Package certificates implements the client of the external certificate
// issuance service.
//
// Every request carries the enrollment id as its Idempotency-Key, so a retry
// after an ambiguous failure cannot produce a second certificate.
package certificates

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/certificate"
	"github.com/alem-hub/learning-engine/pkg/circuitbreaker"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the issuance client.
type ClientConfig struct {
	// BaseURL is the issuance service base URL.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout bounds a single HTTP request.
	Timeout time.Duration

	// Retrier overrides retry.CertificateServiceRetrier.
	Retrier *retry.Retrier

	// Breaker overrides circuitbreaker.CertificateServiceBreaker.
	Breaker *circuitbreaker.CircuitBreaker

	// HTTPClient overrides the default client.
	HTTPClient *http.Client

	Logger *logger.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS AND DTO
// ══════════════════════════════════════════════════════════════════════════════

// APIError is a non-2xx answer from the service.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("certificate service: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("certificate service: status %d", e.StatusCode)
}

// Temporary reports whether the request may succeed when repeated.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type issueRequestDTO struct {
	EnrollmentID string `json:"enrollment_id"`
	LearnerID    string `json:"learner_id"`
	CourseID     string `json:"course_id"`
}

type issueResponseDTO struct {
	CertificateID string    `json:"certificate_id"`
	IssuedAt      time.Time `json:"issued_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements certificate.Issuer over HTTP.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	log        *logger.Logger
}

var _ certificate.Issuer = (*Client)(nil)

// NewClient creates a new issuance client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, errors.New("certificates: base URL is required")
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	log := config.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With(logger.Component("certificate_client"))

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	retrier := config.Retrier
	if retrier == nil {
		retrier = retry.CertificateServiceRetrier()
	}
	breaker := config.Breaker
	if breaker == nil {
		breaker = circuitbreaker.CertificateServiceBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}, circuitbreaker.WithIsFailure(IsOutage))
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		retrier:    retrier,
		breaker:    breaker,
		log:        log,
	}, nil
}

// Issue implements certificate.Issuer.
func (c *Client) Issue(ctx context.Context, req certificate.IssueRequest) (certificate.IssueResult, error) {
	body := issueRequestDTO{
		EnrollmentID: req.EnrollmentID,
		LearnerID:    req.LearnerID,
		CourseID:     req.CourseID,
	}

	var resp issueResponseDTO
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.doRequest(ctx, http.MethodPost, "/v1/certificates", req.EnrollmentID, body, &resp)
		})
	})
	if err != nil {
		return certificate.IssueResult{}, fmt.Errorf("issue certificate for %s: %w", req.EnrollmentID, err)
	}
	if resp.CertificateID == "" {
		return certificate.IssueResult{}, fmt.Errorf("issue certificate for %s: empty certificate id", req.EnrollmentID)
	}

	c.log.Info("certificate issued",
		logger.EnrollmentID(req.EnrollmentID),
		logger.String("certificate_id", resp.CertificateID),
	)
	return certificate.IssueResult{ExternalRef: resp.CertificateID, IssuedAt: resp.IssuedAt}, nil
}

// BreakerState returns the state of the circuit breaker.
func (c *Client) BreakerState() circuitbreaker.State {
	return c.breaker.State()
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// doRequest performs a single request. Errors worth repeating are wrapped
// with retry.Retryable.
func (c *Client) doRequest(ctx context.Context, method, path, idempotencyKey string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	c.log.Debug("certificate service request",
		logger.String("method", method),
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Latency(time.Since(started)),
	)

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(respBody, apiErr)
		if resp.StatusCode == http.StatusTooManyRequests {
			c.waitRetryAfter(ctx, resp.Header.Get("Retry-After"))
		}
		if apiErr.Temporary() {
			return retry.Retryable(apiErr)
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

// IsOutage counts failures that say the service is unhealthy. A rejected
// request (4xx) leaves the breaker closed.
func IsOutage(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		return false
	}
	return true
}

// waitRetryAfter honours a short Retry-After before the retrier's own backoff.
func (c *Client) waitRetryAfter(ctx context.Context, header string) {
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return
	}
	wait := time.Duration(seconds) * time.Second
	if wait > 5*time.Second {
		wait = 5 * time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}
