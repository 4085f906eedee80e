package command

import (
	"context"

	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/retry"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// START ATTEMPT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// StartAttemptCommand starts a new attempt at a quiz.
type StartAttemptCommand struct {
	EnrollmentID string
	QuizID       string
}

// Validate validates the command.
func (c StartAttemptCommand) Validate() error {
	if err := shared.RequireID("assessment", "StartAttempt", "enrollment_id", c.EnrollmentID); err != nil {
		return err
	}
	return shared.RequireID("assessment", "StartAttempt", "quiz_id", c.QuizID)
}

// StartAttemptResult contains the new attempt and the learner-facing payload.
type StartAttemptResult struct {
	Attempt *assessment.Attempt
	Payload assessment.Payload
}

// StartAttemptHandler handles StartAttemptCommand.
type StartAttemptHandler struct {
	enrollments enrollment.Repository
	attempts    assessment.AttemptRepository
	catalog     catalog.Reader

	clock   timeutil.Clock
	retrier *retry.Retrier
	log     *logger.Logger
}

// NewStartAttemptHandler creates a StartAttemptHandler.
func NewStartAttemptHandler(
	enrollments enrollment.Repository,
	attempts assessment.AttemptRepository,
	catalogReader catalog.Reader,
	opts Options,
) *StartAttemptHandler {
	opts = opts.withDefaults()
	return &StartAttemptHandler{
		enrollments: enrollments,
		attempts:    attempts,
		catalog:     catalogReader,
		clock:       opts.Clock,
		retrier:     opts.retrier(),
		log:         opts.Logger.With(logger.Component("assessment")),
	}
}

// Handle executes the start attempt command.
//
// Attempt numbers are claimed through the unique (enrollment, quiz,
// attempt_number) key: a losing concurrent start re-reads the used numbers,
// which also re-checks the attempt limit.
func (h *StartAttemptHandler) Handle(ctx context.Context, cmd StartAttemptCommand) (*StartAttemptResult, error) {
	const op = "StartAttempt"
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	e, err := h.enrollments.GetByID(ctx, cmd.EnrollmentID)
	if err != nil {
		return nil, err
	}
	quiz, err := h.catalog.GetQuiz(ctx, cmd.QuizID)
	if err != nil {
		return nil, err
	}
	if err := quiz.Validate(); err != nil {
		return nil, err
	}
	if !quiz.Published {
		return nil, shared.NewDomainError("assessment", op, shared.ErrQuizNotPublished, "quiz "+quiz.ID+" is not published")
	}
	course, err := h.catalog.CourseOfLesson(ctx, quiz.LessonID)
	if err != nil {
		return nil, err
	}
	if course != e.CourseID {
		return nil, shared.NotFound("assessment", op, "quiz %s is not part of course %s", quiz.ID, e.CourseID)
	}
	if !e.AcceptsActivity() {
		return nil, shared.InvalidState("assessment", op, "enrollment %s is %s", e.ID, e.Status)
	}

	var attempt *assessment.Attempt
	err = optimistic(ctx, h.retrier, "assessment", op, func(ctx context.Context) error {
		used, err := h.attempts.AttemptNumbers(ctx, e.ID, quiz.ID)
		if err != nil {
			return err
		}
		if err := quiz.CheckAttemptAllowed(len(used)); err != nil {
			return err
		}
		a := assessment.NewAttempt(assessment.StartParams{
			ID:            shared.NewID(),
			EnrollmentID:  e.ID,
			AttemptNumber: assessment.NextAttemptNumber(used),
			Quiz:          quiz,
			Now:           h.clock.Now(),
		})
		if err := h.attempts.Insert(ctx, a); err != nil {
			return err
		}
		attempt = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.log.Info("attempt started",
		logger.EnrollmentID(e.ID),
		logger.QuizID(quiz.ID),
		logger.AttemptID(attempt.ID),
		logger.Int("attempt_number", attempt.AttemptNumber),
	)
	return &StartAttemptResult{Attempt: attempt, Payload: assessment.BuildPayload(attempt)}, nil
}
