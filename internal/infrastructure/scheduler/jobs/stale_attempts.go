package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alem-hub/learning-engine/internal/application/command"
	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STALE ATTEMPTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// SubmissionGrader grades an attempt left in submitted.
type SubmissionGrader interface {
	GradeSubmitted(ctx context.Context, attemptID string) (*command.SubmitAttemptResult, error)
}

// StaleAttemptsJob reports in-progress attempts whose deadline passed and
// grades attempts stranded between submission and grading. It never changes
// the status of an expired attempt.
//
// attempt.expired is published once per attempt while the process lives: an
// attempt is reported by the first run after its deadline. After a restart
// the first run reports every expired attempt again.
type StaleAttemptsJob struct {
	attempts  assessment.AttemptRepository
	grader    SubmissionGrader
	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger

	config StaleAttemptsConfig

	mu      sync.Mutex
	lastRun time.Time
	stats   StaleAttemptsStats
}

// StaleAttemptsConfig contains configuration for the job.
type StaleAttemptsConfig struct {
	// SubmittedGrace is how long an attempt may sit in submitted before the
	// job grades it.
	SubmittedGrace time.Duration

	// BatchSize caps the attempts loaded per status; 0 loads all.
	BatchSize int

	// Timeout is the maximum duration for the job.
	Timeout time.Duration
}

// DefaultStaleAttemptsConfig returns sensible defaults.
func DefaultStaleAttemptsConfig() StaleAttemptsConfig {
	return StaleAttemptsConfig{
		SubmittedGrace: time.Minute,
		Timeout:        2 * time.Minute,
	}
}

// StaleAttemptsStats contains statistics from one run.
type StaleAttemptsStats struct {
	StartedAt    time.Time
	InProgress   int
	NewlyExpired int
	Regraded     int
	Errors       int
}

// NewStaleAttemptsJob creates the job.
func NewStaleAttemptsJob(
	attempts assessment.AttemptRepository,
	grader SubmissionGrader,
	publisher shared.EventPublisher,
	clock timeutil.Clock,
	log *logger.Logger,
	config StaleAttemptsConfig,
) *StaleAttemptsJob {
	if clock == nil {
		clock = timeutil.System()
	}
	if log == nil {
		log = logger.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultStaleAttemptsConfig().Timeout
	}
	return &StaleAttemptsJob{
		attempts:  attempts,
		grader:    grader,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("job"), logger.String("job", "stale_attempts")),
		config:    config,
	}
}

// Name implements scheduler.Job.
func (j *StaleAttemptsJob) Name() string { return "stale_attempts" }

// Description implements scheduler.Job.
func (j *StaleAttemptsJob) Description() string {
	return "Reports expired quiz attempts and grades stranded submissions"
}

// Run implements scheduler.Job.
func (j *StaleAttemptsJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	now := j.clock.Now()
	stats := StaleAttemptsStats{StartedAt: now}

	open, err := j.attempts.ListByStatus(ctx, assessment.AttemptInProgress, now, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list in-progress attempts: %w", err)
	}
	stats.InProgress = len(open)

	publishFailed := false
	for _, a := range open {
		deadline, timed := a.Deadline()
		if !timed || !a.IsExpired(now) {
			continue
		}
		if !j.lastRun.IsZero() && !deadline.After(j.lastRun) {
			continue
		}
		if j.publisher != nil {
			ev := shared.AttemptExpiredEvent{
				BaseEvent:    shared.NewBaseEvent(shared.EventAttemptExpired, a.ID, now),
				AttemptID:    a.ID,
				EnrollmentID: a.EnrollmentID,
				QuizID:       a.QuizID,
				StartedAt:    a.StartedAt,
				Deadline:     deadline,
			}
			if err := j.publisher.Publish(ev); err != nil {
				stats.Errors++
				publishFailed = true
				j.log.Warn("failed to publish attempt expiry", logger.AttemptID(a.ID), logger.Err(err))
				continue
			}
		}
		stats.NewlyExpired++
	}

	stranded, err := j.attempts.ListByStatus(ctx, assessment.AttemptSubmitted, now.Add(-j.config.SubmittedGrace), j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("list submitted attempts: %w", err)
	}
	for _, a := range stranded {
		if ctx.Err() != nil {
			break
		}
		if a.SubmittedAt != nil && now.Sub(*a.SubmittedAt) < j.config.SubmittedGrace {
			continue
		}
		if _, err := j.grader.GradeSubmitted(ctx, a.ID); err != nil {
			if shared.IsInvalidState(err) {
				// graded concurrently
				continue
			}
			stats.Errors++
			j.log.Warn("failed to grade stranded attempt", logger.AttemptID(a.ID), logger.Err(err))
			continue
		}
		stats.Regraded++
	}

	// A failed publish keeps the window open so the next run repeats it.
	if !publishFailed {
		j.lastRun = now
	}
	j.stats = stats

	if stats.NewlyExpired > 0 || stats.Regraded > 0 {
		j.log.Info("stale attempts processed",
			logger.Int("expired", stats.NewlyExpired),
			logger.Int("regraded", stats.Regraded),
			logger.Int("errors", stats.Errors),
		)
	}
	if stats.Errors > 0 {
		return fmt.Errorf("stale attempts: %d errors", stats.Errors)
	}
	return nil
}

// LastRunStats returns statistics of the latest run.
func (j *StaleAttemptsJob) LastRunStats() StaleAttemptsStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stats
}
