package command

import (
	"context"

	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT ATTEMPT COMMAND
// Stores the learner's answers and grades them synchronously. Attempt
// outcomes never touch the enrollment.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitAttemptCommand submits answers for an in-progress attempt.
type SubmitAttemptCommand struct {
	AttemptID string
	Answers   []assessment.Answer
}

// Validate validates the command.
func (c SubmitAttemptCommand) Validate() error {
	return shared.RequireID("assessment", "SubmitAttempt", "attempt_id", c.AttemptID)
}

// SubmitAttemptResult contains the graded attempt.
type SubmitAttemptResult struct {
	Attempt *assessment.Attempt
	Grade   assessment.GradeResult
	Payload assessment.Payload
}

// SubmitAttemptHandler handles SubmitAttemptCommand.
type SubmitAttemptHandler struct {
	attempts assessment.AttemptRepository

	publisher shared.EventPublisher
	clock     timeutil.Clock
	log       *logger.Logger
}

// NewSubmitAttemptHandler creates a SubmitAttemptHandler.
func NewSubmitAttemptHandler(attempts assessment.AttemptRepository, opts Options) *SubmitAttemptHandler {
	opts = opts.withDefaults()
	return &SubmitAttemptHandler{
		attempts:  attempts,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		log:       opts.Logger.With(logger.Component("assessment")),
	}
}

// Handle executes the submit attempt command.
func (h *SubmitAttemptHandler) Handle(ctx context.Context, cmd SubmitAttemptCommand) (*SubmitAttemptResult, error) {
	const op = "SubmitAttempt"
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	a, err := h.attempts.GetByID(ctx, cmd.AttemptID)
	if err != nil {
		return nil, err
	}

	if err := a.Submit(cmd.Answers, h.clock.Now()); err != nil {
		if shared.IsInvalidState(err) {
			h.log.Debug("submission rejected", logger.AttemptID(a.ID), logger.Err(err))
		}
		return nil, err
	}
	if err := h.attempts.SaveSubmission(ctx, a); err != nil {
		if shared.IsConflict(err) {
			return nil, shared.InvalidState("assessment", op, "attempt %s was already submitted", a.ID)
		}
		return nil, err
	}

	return h.grade(ctx, a)
}

// GradeSubmitted finishes grading of an attempt left in submitted, for
// example after a crash between the two writes. Attempts in other states are
// returned unchanged.
func (h *SubmitAttemptHandler) GradeSubmitted(ctx context.Context, attemptID string) (*SubmitAttemptResult, error) {
	a, err := h.attempts.GetByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if a.Status != assessment.AttemptSubmitted {
		res, _ := a.Result()
		return &SubmitAttemptResult{Attempt: a, Grade: res, Payload: assessment.BuildPayload(a)}, nil
	}
	return h.grade(ctx, a)
}

func (h *SubmitAttemptHandler) grade(ctx context.Context, a *assessment.Attempt) (*SubmitAttemptResult, error) {
	res, err := a.ApplyGrade(h.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := h.attempts.SaveGrade(ctx, a); err != nil {
		if shared.IsConflict(err) {
			return nil, shared.InvalidState("assessment", "GradeAttempt", "attempt %s was already graded", a.ID)
		}
		return nil, err
	}

	h.log.Info("attempt graded",
		logger.AttemptID(a.ID),
		logger.QuizID(a.QuizID),
		logger.Int("score", res.Score),
		logger.Int("max_score", res.MaxScore),
		logger.Bool("passed", res.Passed),
	)
	publish(h.log, h.publisher, shared.QuizSubmittedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventQuizSubmitted, a.ID, *a.GradedAt),
		AttemptID:     a.ID,
		EnrollmentID:  a.EnrollmentID,
		QuizID:        a.QuizID,
		AttemptNumber: a.AttemptNumber,
		Score:         res.Score,
		MaxScore:      res.MaxScore,
		Percentage:    res.Percentage,
		Passed:        res.Passed,
	})

	return &SubmitAttemptResult{Attempt: a, Grade: res, Payload: assessment.BuildPayload(a)}, nil
}
