// Package eventhandler contains reactions to domain events.
package eventhandler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/learning-engine/internal/application/command"
	"github.com/alem-hub/learning-engine/internal/domain/certificate"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/retry"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON ENROLLMENT COMPLETED HANDLER
// The completion trigger. Issues at most one certificate per completed
// enrollment:
// 1. Skip when the enrollment already carries a certificate.
// 2. Claim the enrollment's certificate slot (unique while pending/issued).
// 3. Call the issuer; record issued or failed.
// A failed call releases the slot so the retry job can claim it again.
// ═══════════════════════════════════════════════════════════════════════════

// CompletionConfig configures OnEnrollmentCompletedHandler.
type CompletionConfig struct {
	// IssueTimeout bounds one issuer call. Zero means no extra bound.
	IssueTimeout time.Duration

	// RetryAttempts bounds the versioned write of the enrollment pointer.
	RetryAttempts int
}

// DefaultCompletionConfig returns the default configuration.
func DefaultCompletionConfig() CompletionConfig {
	return CompletionConfig{
		IssueTimeout:  30 * time.Second,
		RetryAttempts: command.DefaultRetryAttempts,
	}
}

// OnEnrollmentCompletedHandler reacts to completed enrollments.
type OnEnrollmentCompletedHandler struct {
	enrollments  enrollment.Repository
	certificates certificate.Repository
	issuer       certificate.Issuer

	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
	retrier   *retry.Retrier
	config    CompletionConfig
}

var _ command.CompletionTrigger = (*OnEnrollmentCompletedHandler)(nil)

// NewOnEnrollmentCompletedHandler creates the completion trigger.
func NewOnEnrollmentCompletedHandler(
	enrollments enrollment.Repository,
	certificates certificate.Repository,
	issuer certificate.Issuer,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
	config CompletionConfig,
) *OnEnrollmentCompletedHandler {
	if publisher == nil {
		publisher = shared.NopPublisher{}
	}
	if clock == nil {
		clock = timeutil.System()
	}
	if log == nil {
		log = logger.NewNop()
	}
	if config.RetryAttempts <= 0 {
		config.RetryAttempts = command.DefaultRetryAttempts
	}
	return &OnEnrollmentCompletedHandler{
		enrollments:  enrollments,
		certificates: certificates,
		issuer:       issuer,
		publisher:    publisher,
		clock:        clock,
		log:          log.With(logger.Component("completion_trigger")),
		retrier:      retry.OptimisticRetrier(config.RetryAttempts, shared.IsConflict).With(retry.WithInitialDelay(0)),
		config:       config,
	}
}

// OnEnrollmentCompleted runs the trigger for one enrollment. An issuer failure
// is reported as certificate.OutcomeFailed with a nil error; errors are
// returned only for storage failures.
func (h *OnEnrollmentCompletedHandler) OnEnrollmentCompleted(ctx context.Context, enrollmentID string) (certificate.Outcome, error) {
	log := h.log.With(logger.EnrollmentID(enrollmentID))

	e, err := h.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return certificate.OutcomeNone, err
	}
	if e.Status != enrollment.StatusCompleted {
		return certificate.OutcomeNone, shared.InvalidState("certificate", "OnEnrollmentCompleted",
			"enrollment %s is %s", e.ID, e.Status)
	}
	if e.CertificateIssuedAt != nil {
		return certificate.OutcomeSkipped, nil
	}

	active, err := h.certificates.FindActive(ctx, e.ID)
	switch {
	case err == nil:
		if active.Status == certificate.StatusIssued && active.IssuedAt != nil {
			// The pointer write was lost after a successful issue.
			if err := h.recordPointer(ctx, e.ID, *active.IssuedAt); err != nil {
				return certificate.OutcomeSkipped, err
			}
		}
		log.Debug("certificate already claimed", logger.String("status", string(active.Status)))
		return certificate.OutcomeSkipped, nil
	case !shared.IsNotFound(err):
		return certificate.OutcomeNone, err
	}

	claim := certificate.NewClaim(shared.NewID(), e.ID, e.LearnerID, e.CourseID, h.clock.Now())
	if err := h.certificates.Claim(ctx, claim); err != nil {
		if shared.IsAlreadyExists(err) {
			return certificate.OutcomeSkipped, nil
		}
		return certificate.OutcomeNone, err
	}

	res, err := h.issue(ctx, e)
	if err != nil {
		return h.fail(ctx, log, claim, err)
	}
	return h.succeed(ctx, log, claim, res)
}

func (h *OnEnrollmentCompletedHandler) issue(ctx context.Context, e *enrollment.Enrollment) (certificate.IssueResult, error) {
	if h.config.IssueTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.IssueTimeout)
		defer cancel()
	}
	return h.issuer.Issue(ctx, certificate.IssueRequest{
		EnrollmentID: e.ID,
		LearnerID:    e.LearnerID,
		CourseID:     e.CourseID,
	})
}

func (h *OnEnrollmentCompletedHandler) fail(ctx context.Context, log *logger.Logger, c *certificate.Certificate, cause error) (certificate.Outcome, error) {
	now := h.clock.Now()
	reason := cause.Error()
	log.Warn("certificate issue failed", logger.String("certificate_id", c.ID), logger.Err(cause))

	if err := h.certificates.MarkFailed(ctx, c.ID, reason, now); err != nil {
		// The pending row is released later by the stale-claim sweep.
		log.Error("mark certificate failed", logger.Err(err))
	}
	h.emit(log, shared.CertificateFailedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventCertificateFailed, c.EnrollmentID, now),
		CertificateID: c.ID,
		EnrollmentID:  c.EnrollmentID,
		Reason:        reason,
	})
	return certificate.OutcomeFailed, nil
}

func (h *OnEnrollmentCompletedHandler) succeed(ctx context.Context, log *logger.Logger, c *certificate.Certificate, res certificate.IssueResult) (certificate.Outcome, error) {
	issuedAt := res.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = h.clock.Now()
	}
	if err := h.certificates.MarkIssued(ctx, c.ID, res.ExternalRef, issuedAt); err != nil {
		return certificate.OutcomeIssued, fmt.Errorf("mark certificate %s issued: %w", c.ID, err)
	}
	if err := h.recordPointer(ctx, c.EnrollmentID, issuedAt); err != nil {
		return certificate.OutcomeIssued, err
	}

	log.Info("certificate issued",
		logger.String("certificate_id", c.ID),
		logger.String("external_ref", res.ExternalRef),
	)
	h.emit(log, shared.CertificateIssuedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventCertificateIssued, c.EnrollmentID, issuedAt),
		CertificateID: c.ID,
		EnrollmentID:  c.EnrollmentID,
		ExternalRef:   res.ExternalRef,
		IssuedAt:      issuedAt,
	})
	return certificate.OutcomeIssued, nil
}

// recordPointer sets Enrollment.CertificateIssuedAt with a versioned write.
func (h *OnEnrollmentCompletedHandler) recordPointer(ctx context.Context, enrollmentID string, issuedAt time.Time) error {
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		e, err := h.enrollments.GetByID(ctx, enrollmentID)
		if err != nil {
			return err
		}
		if !e.RecordCertificate(issuedAt) {
			return nil
		}
		return h.enrollments.Update(ctx, e)
	})
	if errors.Is(err, retry.ErrExhausted) || shared.IsConflict(err) {
		return shared.NewDomainError("certificate", "RecordPointer", shared.ErrTransient, "enrollment kept changing")
	}
	return err
}

func (h *OnEnrollmentCompletedHandler) emit(log *logger.Logger, ev shared.Event) {
	if err := h.publisher.Publish(ev); err != nil {
		log.Warn("event publish failed", logger.String("event_type", string(ev.EventType())), logger.Err(err))
	}
}
