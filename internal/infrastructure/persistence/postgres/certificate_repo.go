package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/certificate"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// CertificateRepository implements certificate.Repository for PostgreSQL.
type CertificateRepository struct {
	conn *Connection
}

var _ certificate.Repository = (*CertificateRepository)(nil)

// NewCertificateRepository creates a new CertificateRepository.
func NewCertificateRepository(conn *Connection) *CertificateRepository {
	return &CertificateRepository{conn: conn}
}

const certificateColumns = `
	id, enrollment_id, learner_id, course_id, status, external_ref,
	failure_reason, claimed_at, issued_at, updated_at`

// Claim implements certificate.Repository. uq_certificates_active_claim makes
// a second claim for the same enrollment fail.
func (r *CertificateRepository) Claim(ctx context.Context, c *certificate.Certificate) error {
	_, err := r.conn.Exec(ctx, `INSERT INTO certificates (`+certificateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.ID,
		c.EnrollmentID,
		c.LearnerID,
		c.CourseID,
		string(c.Status),
		c.ExternalRef,
		c.FailureReason,
		c.ClaimedAt,
		c.IssuedAt,
		c.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrCertificateExists
		}
		return fmt.Errorf("claim certificate: %w", err)
	}
	return nil
}

// FindActive implements certificate.Repository.
func (r *CertificateRepository) FindActive(ctx context.Context, enrollmentID string) (*certificate.Certificate, error) {
	var (
		c      certificate.Certificate
		status string
	)
	err := r.conn.QueryRow(ctx, `SELECT `+certificateColumns+` FROM certificates
		WHERE enrollment_id = $1 AND status IN ('pending', 'issued')`, enrollmentID).Scan(
		&c.ID,
		&c.EnrollmentID,
		&c.LearnerID,
		&c.CourseID,
		&status,
		&c.ExternalRef,
		&c.FailureReason,
		&c.ClaimedAt,
		&c.IssuedAt,
		&c.UpdatedAt,
	)
	if IsNoRows(err) {
		return nil, shared.NotFound("certificate", "FindActive", "no certificate for enrollment %s", enrollmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	c.Status = certificate.Status(status)
	return &c, nil
}

// MarkIssued implements certificate.Repository.
func (r *CertificateRepository) MarkIssued(ctx context.Context, id, externalRef string, issuedAt time.Time) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE certificates SET status = 'issued', external_ref = $1, issued_at = $2, updated_at = $2
		WHERE id = $3 AND status = 'pending'`, externalRef, issuedAt, id)
	if err != nil {
		return fmt.Errorf("mark certificate issued: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.InvalidState("certificate", "MarkIssued", "certificate %s is not pending", id)
	}
	return nil
}

// MarkFailed implements certificate.Repository.
func (r *CertificateRepository) MarkFailed(ctx context.Context, id, reason string, at time.Time) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE certificates SET status = 'failed', failure_reason = $1, updated_at = $2
		WHERE id = $3 AND status = 'pending'`, reason, at, id)
	if err != nil {
		return fmt.Errorf("mark certificate failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.InvalidState("certificate", "MarkFailed", "certificate %s is not pending", id)
	}
	return nil
}

// ReleaseStale implements certificate.Repository.
func (r *CertificateRepository) ReleaseStale(ctx context.Context, claimedBefore time.Time, at time.Time) (int, error) {
	tag, err := r.conn.Exec(ctx, `
		UPDATE certificates SET status = 'failed', failure_reason = 'claim expired', updated_at = $1
		WHERE status = 'pending' AND claimed_at < $2`, at, claimedBefore)
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
