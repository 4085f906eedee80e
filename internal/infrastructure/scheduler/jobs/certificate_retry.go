// Package jobs contains the scheduled jobs of the learning engine.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/certificate"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATE RETRY JOB
// ══════════════════════════════════════════════════════════════════════════════

// CompletionTrigger is the part of the engine the retry job drives.
type CompletionTrigger interface {
	OnEnrollmentCompleted(ctx context.Context, enrollmentID string) (certificate.Outcome, error)
}

// CertificateRetryJob re-runs the completion trigger for completed
// enrollments that still have no certificate. Claims left pending longer
// than StaleClaimAge are released first so their enrollments are retried.
type CertificateRetryJob struct {
	enrollments  enrollment.Repository
	certificates certificate.Repository
	trigger      CompletionTrigger
	clock        timeutil.Clock
	log          *logger.Logger

	config CertificateRetryConfig

	lastRunStats atomic.Value // *CertificateRetryStats
}

// CertificateRetryConfig contains configuration for the retry job.
type CertificateRetryConfig struct {
	// StaleClaimAge is how long a pending claim may live before it is
	// considered abandoned by a crashed worker.
	StaleClaimAge time.Duration

	// MinCompletedAge keeps the job away from completions whose trigger
	// call is still in flight.
	MinCompletedAge time.Duration

	// BatchSize caps the enrollments handled per run.
	BatchSize int

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultCertificateRetryConfig returns sensible defaults.
func DefaultCertificateRetryConfig() CertificateRetryConfig {
	return CertificateRetryConfig{
		StaleClaimAge:   10 * time.Minute,
		MinCompletedAge: time.Minute,
		BatchSize:       100,
		Timeout:         5 * time.Minute,
	}
}

// CertificateRetryStats contains statistics from one run.
type CertificateRetryStats struct {
	StartedAt     time.Time
	Duration      time.Duration
	ReleasedStale int
	Checked       int
	Issued        int
	Skipped       int
	Failed        int
	Errors        int
}

// NewCertificateRetryJob creates the job.
func NewCertificateRetryJob(
	enrollments enrollment.Repository,
	certificates certificate.Repository,
	trigger CompletionTrigger,
	clock timeutil.Clock,
	log *logger.Logger,
	config CertificateRetryConfig,
) *CertificateRetryJob {
	if clock == nil {
		clock = timeutil.System()
	}
	if log == nil {
		log = logger.NewNop()
	}
	defaults := DefaultCertificateRetryConfig()
	if config.StaleClaimAge <= 0 {
		config.StaleClaimAge = defaults.StaleClaimAge
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	return &CertificateRetryJob{
		enrollments:  enrollments,
		certificates: certificates,
		trigger:      trigger,
		clock:        clock,
		log:          log.With(logger.Component("job"), logger.String("job", "certificate_retry")),
		config:       config,
	}
}

// Name implements scheduler.Job.
func (j *CertificateRetryJob) Name() string { return "certificate_retry" }

// Description implements scheduler.Job.
func (j *CertificateRetryJob) Description() string {
	return "Retries certificate issuance for completed enrollments without a certificate"
}

// Run implements scheduler.Job.
func (j *CertificateRetryJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	now := j.clock.Now()
	stats := &CertificateRetryStats{StartedAt: now}
	defer func() {
		stats.Duration = j.clock.Now().Sub(now)
		j.lastRunStats.Store(stats)
	}()

	released, err := j.certificates.ReleaseStale(ctx, now.Add(-j.config.StaleClaimAge), now)
	if err != nil {
		return fmt.Errorf("release stale claims: %w", err)
	}
	stats.ReleasedStale = released
	if released > 0 {
		j.log.Warn("released stale certificate claims", logger.Int("count", released))
	}

	pending, err := j.enrollments.ListAwaitingCertificate(ctx, now.Add(-j.config.MinCompletedAge), j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list enrollments awaiting certificate: %w", err)
	}

	for _, e := range pending {
		if ctx.Err() != nil {
			break
		}
		stats.Checked++

		outcome, err := j.trigger.OnEnrollmentCompleted(ctx, e.ID)
		if err != nil {
			stats.Errors++
			j.log.Warn("certificate retry failed", logger.EnrollmentID(e.ID), logger.Err(err))
			continue
		}
		switch outcome {
		case certificate.OutcomeIssued:
			stats.Issued++
		case certificate.OutcomeFailed:
			stats.Failed++
		default:
			stats.Skipped++
		}
	}

	if stats.Checked > 0 || stats.ReleasedStale > 0 {
		j.log.Info("certificate retry finished",
			logger.Int("checked", stats.Checked),
			logger.Int("issued", stats.Issued),
			logger.Int("failed", stats.Failed),
			logger.Int("errors", stats.Errors),
		)
	}
	if stats.Errors > 0 {
		return fmt.Errorf("certificate retry: %d of %d enrollments errored", stats.Errors, stats.Checked)
	}
	return ctx.Err()
}

// LastRunStats returns statistics of the latest run, or nil.
func (j *CertificateRetryJob) LastRunStats() *CertificateRetryStats {
	stats, _ := j.lastRunStats.Load().(*CertificateRetryStats)
	return stats
}
