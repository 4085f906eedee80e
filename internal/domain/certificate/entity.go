// Package certificate records certificate issuance for completed enrollments.
// The artifact itself is produced by an external issuer; this package keeps
// the claim that guarantees at most one issuance call per enrollment and the
// outcome of that call.
package certificate

import (
	"context"
	"time"
)

// Status of a certificate row.
type Status string

const (
	// StatusPending - claimed, issuer call in flight.
	StatusPending Status = "pending"
	// StatusIssued - issuer accepted; ExternalRef is set.
	StatusIssued Status = "issued"
	// StatusFailed - issuer call failed. Releases the claim.
	StatusFailed Status = "failed"
	// StatusRevoked - withdrawn by an external collaborator. Releases the claim.
	StatusRevoked Status = "revoked"
)

// HoldsClaim reports whether a row in this status blocks another claim for
// the same enrollment.
func (s Status) HoldsClaim() bool {
	return s == StatusPending || s == StatusIssued
}

// Outcome is what one completion-trigger invocation did.
type Outcome string

const (
	// OutcomeNone - the trigger was not invoked.
	OutcomeNone Outcome = ""
	// OutcomeSkipped - a certificate already exists or is being issued.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeIssued - this invocation called the issuer and it succeeded.
	OutcomeIssued Outcome = "issued"
	// OutcomeFailed - this invocation called the issuer and it failed.
	OutcomeFailed Outcome = "failed"
)

// Certificate is one issuance record.
type Certificate struct {
	ID            string
	EnrollmentID  string
	LearnerID     string
	CourseID      string
	Status        Status
	ExternalRef   string
	FailureReason string
	ClaimedAt     time.Time
	IssuedAt      *time.Time
	UpdatedAt     time.Time
}

// NewClaim builds a pending row for an enrollment.
func NewClaim(id, enrollmentID, learnerID, courseID string, now time.Time) *Certificate {
	return &Certificate{
		ID:           id,
		EnrollmentID: enrollmentID,
		LearnerID:    learnerID,
		CourseID:     courseID,
		Status:       StatusPending,
		ClaimedAt:    now,
		UpdatedAt:    now,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores certificate rows. At most one row per enrollment may be
// pending or issued at any time.
type Repository interface {
	// Claim inserts c as pending. If another row of the enrollment holds the
	// claim, it returns an error matching shared.ErrAlreadyExists.
	Claim(ctx context.Context, c *Certificate) error

	// FindActive returns the pending or issued row of the enrollment, or an
	// error matching shared.ErrNotFound.
	FindActive(ctx context.Context, enrollmentID string) (*Certificate, error)

	// MarkIssued moves a pending row to issued.
	MarkIssued(ctx context.Context, id, externalRef string, issuedAt time.Time) error

	// MarkFailed moves a pending row to failed.
	MarkFailed(ctx context.Context, id, reason string, at time.Time) error

	// ReleaseStale fails pending rows claimed before the cutoff and returns
	// how many were released.
	ReleaseStale(ctx context.Context, claimedBefore time.Time, at time.Time) (int, error)
}

// IssueRequest is sent to the issuer. EnrollmentID doubles as the
// idempotency key.
type IssueRequest struct {
	EnrollmentID string
	LearnerID    string
	CourseID     string
}

// IssueResult is the issuer's answer.
type IssueResult struct {
	ExternalRef string
	IssuedAt    time.Time
}

// Issuer produces the certificate artifact.
type Issuer interface {
	Issue(ctx context.Context, req IssueRequest) (IssueResult, error)
}

// IssuerFunc adapts a function to Issuer.
type IssuerFunc func(ctx context.Context, req IssueRequest) (IssueResult, error)

// Issue implements Issuer.
func (f IssuerFunc) Issue(ctx context.Context, req IssueRequest) (IssueResult, error) {
	return f(ctx, req)
}
