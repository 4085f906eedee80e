package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/certificate"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/progress"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/retry"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT AGGREGATOR
// Recomputes enrollment roll-ups from the ledger and the course's current
// lesson list, and owns the active -> completed transition.
// ══════════════════════════════════════════════════════════════════════════════

// CompletionTrigger is called once for every write that completed an enrollment.
type CompletionTrigger interface {
	OnEnrollmentCompleted(ctx context.Context, enrollmentID string) (certificate.Outcome, error)
}

// RecomputeResult is the outcome of one recompute.
type RecomputeResult struct {
	Enrollment *enrollment.Enrollment

	// Completed is true only for the recompute whose write moved the
	// enrollment to completed.
	Completed bool

	// Certificate is the trigger outcome when Completed is set.
	Certificate certificate.Outcome
}

// EnrollmentAggregator keeps roll-ups consistent with the ledger.
type EnrollmentAggregator struct {
	enrollments enrollment.Repository
	progress    progress.Repository
	catalog     catalog.Reader
	trigger     CompletionTrigger

	publisher shared.EventPublisher
	clock     timeutil.Clock
	retrier   *retry.Retrier
	log       *logger.Logger
}

// NewEnrollmentAggregator creates an EnrollmentAggregator. trigger may be nil,
// in which case completions are only published.
func NewEnrollmentAggregator(
	enrollments enrollment.Repository,
	progressRepo progress.Repository,
	catalogReader catalog.Reader,
	trigger CompletionTrigger,
	opts Options,
) *EnrollmentAggregator {
	opts = opts.withDefaults()
	return &EnrollmentAggregator{
		enrollments: enrollments,
		progress:    progressRepo,
		catalog:     catalogReader,
		trigger:     trigger,
		publisher:   opts.Publisher,
		clock:       opts.Clock,
		retrier:     opts.retrier(),
		log:         opts.Logger.With(logger.Component("aggregator")),
	}
}

// Recompute rebuilds the roll-ups of one enrollment with a single read of all
// its ledger rows and a single versioned write. Conflicting writers retry from
// a fresh read, so exactly one of them can observe the active -> completed
// edge, and only that one invokes the completion trigger.
func (a *EnrollmentAggregator) Recompute(ctx context.Context, enrollmentID string) (*RecomputeResult, error) {
	const op = "Recompute"
	var res *RecomputeResult

	err := optimistic(ctx, a.retrier, "enrollment", op, func(ctx context.Context) error {
		e, err := a.enrollments.GetByID(ctx, enrollmentID)
		if err != nil {
			return err
		}
		lessons, err := a.catalog.LessonIDs(ctx, e.CourseID)
		if err != nil {
			return fmt.Errorf("recompute: lessons of course %s: %w", e.CourseID, err)
		}
		rows, err := a.progress.ListByEnrollment(ctx, e.ID)
		if err != nil {
			return fmt.Errorf("recompute: ledger of %s: %w", e.ID, err)
		}

		completed := e.ApplyRollUp(enrollment.ComputeRollUp(lessons, snapshots(rows)), a.clock.Now())
		if err := a.enrollments.Update(ctx, e); err != nil {
			return err
		}
		res = &RecomputeResult{Enrollment: e, Completed: completed}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if res.Completed {
		a.onCompleted(ctx, res)
	}
	return res, nil
}

func (a *EnrollmentAggregator) onCompleted(ctx context.Context, res *RecomputeResult) {
	e := res.Enrollment
	log := a.log.With(logger.EnrollmentID(e.ID), logger.CourseID(e.CourseID))
	log.Info("enrollment completed",
		logger.Int("lessons", e.TotalLessonCount),
		logger.Int64("time_spent", e.TotalTimeSpent),
	)

	publish(log, a.publisher, shared.NewEnrollmentCompletedEvent(e.ID, e.LearnerID, e.CourseID, *e.CompletedAt, e.TotalTimeSpent))

	if a.trigger == nil {
		return
	}
	outcome, err := a.trigger.OnEnrollmentCompleted(ctx, e.ID)
	if err != nil {
		// Completion stands; the certificate retry job picks this up.
		log.Error("completion trigger failed", logger.Err(err))
		return
	}
	res.Certificate = outcome
}

func snapshots(rows []*progress.LessonProgress) []enrollment.LessonSnapshot {
	out := make([]enrollment.LessonSnapshot, len(rows))
	for i, r := range rows {
		out[i] = enrollment.LessonSnapshot{
			LessonID:  r.LessonID,
			Completed: r.IsCompleted(),
			TimeSpent: r.TimeSpent,
		}
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE ENROLLMENT COMMAND
// Public entry to the aggregator for content edits that happen without a
// progress report.
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeEnrollmentCommand asks for a fresh roll-up.
type RecomputeEnrollmentCommand struct {
	EnrollmentID string
}

// Validate validates the command.
func (c RecomputeEnrollmentCommand) Validate() error {
	return shared.RequireID("enrollment", "RecomputeEnrollment", "enrollment_id", c.EnrollmentID)
}

// RecomputeEnrollmentHandler handles RecomputeEnrollmentCommand.
type RecomputeEnrollmentHandler struct {
	aggregator *EnrollmentAggregator
}

// NewRecomputeEnrollmentHandler creates a RecomputeEnrollmentHandler.
func NewRecomputeEnrollmentHandler(aggregator *EnrollmentAggregator) *RecomputeEnrollmentHandler {
	return &RecomputeEnrollmentHandler{aggregator: aggregator}
}

// Handle executes the command.
func (h *RecomputeEnrollmentHandler) Handle(ctx context.Context, cmd RecomputeEnrollmentCommand) (*RecomputeResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return h.aggregator.Recompute(ctx, cmd.EnrollmentID)
}
