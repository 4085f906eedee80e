package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/progress"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/retry"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPORT PROGRESS COMMAND
// Upserts the ledger row of one lesson, then hands over to the aggregator.
// ══════════════════════════════════════════════════════════════════════════════

// ReportProgressCommand contains one progress report.
type ReportProgressCommand struct {
	EnrollmentID string
	LessonID     string

	// TimeDelta is seconds spent since the previous report. Must be >= 0.
	TimeDelta int64

	// Position is the resume marker. Nil keeps the stored one.
	Position *int64

	// CompletionFraction is clamped to [0, 100].
	CompletionFraction float64
}

// Validate validates the command.
func (c ReportProgressCommand) Validate() error {
	const op = "ReportProgress"
	if err := shared.RequireID("progress", op, "enrollment_id", c.EnrollmentID); err != nil {
		return err
	}
	if err := shared.RequireID("progress", op, "lesson_id", c.LessonID); err != nil {
		return err
	}
	return c.report().Validate()
}

func (c ReportProgressCommand) report() progress.Report {
	return progress.Report{
		TimeDelta:          c.TimeDelta,
		Position:           c.Position,
		CompletionFraction: c.CompletionFraction,
	}
}

// MarkCompleteCommand is the explicit completion shortcut.
type MarkCompleteCommand struct {
	EnrollmentID string
	LessonID     string
}

// ReportProgressResult contains the state after the report.
type ReportProgressResult struct {
	Progress   *progress.LessonProgress
	Enrollment *enrollment.Enrollment

	// LessonCompleted is true when this report completed the lesson.
	LessonCompleted bool

	// EnrollmentCompleted is true when this report completed the course.
	EnrollmentCompleted bool
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ReportProgressHandler handles ReportProgressCommand and MarkCompleteCommand.
type ReportProgressHandler struct {
	enrollments enrollment.Repository
	progress    progress.Repository
	catalog     catalog.Reader
	aggregator  *EnrollmentAggregator

	publisher shared.EventPublisher
	clock     timeutil.Clock
	retrier   *retry.Retrier
	log       *logger.Logger
}

// NewReportProgressHandler creates a ReportProgressHandler.
func NewReportProgressHandler(
	enrollments enrollment.Repository,
	progressRepo progress.Repository,
	catalogReader catalog.Reader,
	aggregator *EnrollmentAggregator,
	opts Options,
) *ReportProgressHandler {
	opts = opts.withDefaults()
	return &ReportProgressHandler{
		enrollments: enrollments,
		progress:    progressRepo,
		catalog:     catalogReader,
		aggregator:  aggregator,
		publisher:   opts.Publisher,
		clock:       opts.Clock,
		retrier:     opts.retrier(),
		log:         opts.Logger.With(logger.Component("ledger")),
	}
}

// Handle executes the report progress command.
//
// A nil result means nothing was written. When the ledger row commits but the
// roll-up fails, Handle returns the result with Progress set, a nil
// Enrollment, and the error: the report is stored and must not be replayed.
// RecomputeEnrollment or the next report brings the enrollment up to date.
func (h *ReportProgressHandler) Handle(ctx context.Context, cmd ReportProgressCommand) (*ReportProgressResult, error) {
	const op = "ReportProgress"
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	if err := h.checkAccess(ctx, op, cmd.EnrollmentID, cmd.LessonID); err != nil {
		return nil, err
	}

	// The ledger write and the roll-up have separate retry scopes so a
	// conflict on the enrollment never re-applies the time delta.
	var (
		row *progress.LessonProgress
		out progress.Outcome
	)
	err := optimistic(ctx, h.retrier, "progress", op, func(ctx context.Context) error {
		var err error
		row, out, err = h.upsert(ctx, cmd)
		return err
	})
	if err != nil {
		return nil, err
	}

	if out.JustCompleted {
		h.log.Debug("lesson completed", logger.EnrollmentID(cmd.EnrollmentID), logger.LessonID(cmd.LessonID))
		publish(h.log, h.publisher, shared.NewLessonCompletedEvent(row.EnrollmentID, row.LessonID, row.TimeSpent, *row.CompletedAt))
	}

	res := &ReportProgressResult{Progress: row, LessonCompleted: out.JustCompleted}
	rec, err := h.aggregator.Recompute(ctx, cmd.EnrollmentID)
	if err != nil {
		h.log.Warn("roll-up after ledger write failed",
			logger.EnrollmentID(cmd.EnrollmentID),
			logger.LessonID(cmd.LessonID),
			logger.Err(err),
		)
		return res, fmt.Errorf("report_progress: recompute: %w", err)
	}

	res.Enrollment = rec.Enrollment
	res.EnrollmentCompleted = rec.Completed
	return res, nil
}

// MarkComplete is ReportProgress with a full completion fraction and no time
// or position change. Calling it twice leaves the row as the first call did.
func (h *ReportProgressHandler) MarkComplete(ctx context.Context, cmd MarkCompleteCommand) (*ReportProgressResult, error) {
	report := progress.CompletionReport()
	return h.Handle(ctx, ReportProgressCommand{
		EnrollmentID:       cmd.EnrollmentID,
		LessonID:           cmd.LessonID,
		TimeDelta:          report.TimeDelta,
		Position:           report.Position,
		CompletionFraction: report.CompletionFraction,
	})
}

// checkAccess verifies the enrollment, the lesson, and that the lesson is
// part of the enrollment's course.
func (h *ReportProgressHandler) checkAccess(ctx context.Context, op, enrollmentID, lessonID string) error {
	e, err := h.enrollments.GetByID(ctx, enrollmentID)
	if err != nil {
		return err
	}
	course, err := h.catalog.CourseOfLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if course != e.CourseID {
		return shared.NotFound("progress", op, "lesson %s is not part of course %s", lessonID, e.CourseID)
	}
	if !e.AcceptsActivity() {
		return shared.InvalidState("progress", op, "enrollment %s is %s", e.ID, e.Status)
	}
	return nil
}

// upsert reads the row (or starts one), applies the report and writes it
// with a version check. Unchanged rows are not written.
func (h *ReportProgressHandler) upsert(ctx context.Context, cmd ReportProgressCommand) (*progress.LessonProgress, progress.Outcome, error) {
	now := h.clock.Now()

	row, err := h.progress.Get(ctx, cmd.EnrollmentID, cmd.LessonID)
	switch {
	case shared.IsNotFound(err):
		row = progress.New(shared.NewID(), cmd.EnrollmentID, cmd.LessonID, now)
	case err != nil:
		return nil, progress.Outcome{}, err
	}

	out := row.Apply(cmd.report(), now)
	switch {
	case !row.IsPersisted():
		err = h.progress.Insert(ctx, row)
	case out.Changed:
		err = h.progress.Update(ctx, row)
	}
	if err != nil {
		return nil, progress.Outcome{}, err
	}
	return row, out, nil
}
