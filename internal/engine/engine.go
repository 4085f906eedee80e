// Package engine wires the learning-progress and assessment handlers into a
// single entry point for the request layer and the background jobs.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/learning-engine/internal/application/command"
	"github.com/alem-hub/learning-engine/internal/application/eventhandler"
	"github.com/alem-hub/learning-engine/internal/application/query"
	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/certificate"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/progress"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// Deps are the ports the engine runs on.
type Deps struct {
	Enrollments  enrollment.Repository
	Progress     progress.Repository
	Attempts     assessment.AttemptRepository
	Certificates certificate.Repository
	Catalog      catalog.Reader
	Issuer       certificate.Issuer

	// Optional.
	Publisher shared.EventPublisher
	Clock     timeutil.Clock
	Logger    *logger.Logger
}

// Settings tune the engine.
type Settings struct {
	RetryAttempts int
	RetryDelay    time.Duration
	IssueTimeout  time.Duration
}

// Engine exposes every operation.
type Engine struct {
	enroll         *command.EnrollHandler
	reportProgress *command.ReportProgressHandler
	recompute      *command.RecomputeEnrollmentHandler
	startAttempt   *command.StartAttemptHandler
	submitAttempt  *command.SubmitAttemptHandler
	completion     *eventhandler.OnEnrollmentCompletedHandler
	getProgress    *query.GetProgressHandler
	getEnrollment  *query.GetEnrollmentProgressHandler
	getPayload     *query.GetAttemptPayloadHandler
	listAttempts   *query.ListAttemptsHandler

	deps Deps
}

// New wires an Engine.
func New(deps Deps, settings Settings) (*Engine, error) {
	if deps.Enrollments == nil || deps.Progress == nil || deps.Attempts == nil ||
		deps.Certificates == nil || deps.Catalog == nil {
		return nil, errors.New("engine: repositories and catalog are required")
	}
	if deps.Issuer == nil {
		return nil, errors.New("engine: certificate issuer is required")
	}
	if deps.Publisher == nil {
		deps.Publisher = shared.NopPublisher{}
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.System()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}

	opts := command.Options{
		Clock:         deps.Clock,
		Logger:        deps.Logger,
		Publisher:     deps.Publisher,
		RetryAttempts: settings.RetryAttempts,
		RetryDelay:    settings.RetryDelay,
	}

	completionCfg := eventhandler.DefaultCompletionConfig()
	if settings.IssueTimeout > 0 {
		completionCfg.IssueTimeout = settings.IssueTimeout
	}
	if settings.RetryAttempts > 0 {
		completionCfg.RetryAttempts = settings.RetryAttempts
	}
	completion := eventhandler.NewOnEnrollmentCompletedHandler(
		deps.Enrollments, deps.Certificates, deps.Issuer,
		deps.Publisher, deps.Clock, deps.Logger, completionCfg,
	)

	aggregator := command.NewEnrollmentAggregator(deps.Enrollments, deps.Progress, deps.Catalog, completion, opts)

	return &Engine{
		enroll:         command.NewEnrollHandler(deps.Enrollments, deps.Catalog, opts),
		reportProgress: command.NewReportProgressHandler(deps.Enrollments, deps.Progress, deps.Catalog, aggregator, opts),
		recompute:      command.NewRecomputeEnrollmentHandler(aggregator),
		startAttempt:   command.NewStartAttemptHandler(deps.Enrollments, deps.Attempts, deps.Catalog, opts),
		submitAttempt:  command.NewSubmitAttemptHandler(deps.Attempts, opts),
		completion:     completion,
		getProgress:    query.NewGetProgressHandler(deps.Enrollments, deps.Progress, deps.Catalog),
		getEnrollment:  query.NewGetEnrollmentProgressHandler(deps.Enrollments, deps.Progress, deps.Catalog),
		getPayload:     query.NewGetAttemptPayloadHandler(deps.Attempts),
		listAttempts:   query.NewListAttemptsHandler(deps.Enrollments, deps.Attempts, deps.Catalog),
		deps:           deps,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS LEDGER
// ══════════════════════════════════════════════════════════════════════════════

// Enroll creates an active enrollment.
func (e *Engine) Enroll(ctx context.Context, cmd command.EnrollCommand) (*enrollment.Enrollment, error) {
	return e.enroll.Handle(ctx, cmd)
}

// ReportProgress upserts one lesson's progress and refreshes the roll-ups.
func (e *Engine) ReportProgress(ctx context.Context, cmd command.ReportProgressCommand) (*command.ReportProgressResult, error) {
	return e.reportProgress.Handle(ctx, cmd)
}

// MarkComplete completes one lesson.
func (e *Engine) MarkComplete(ctx context.Context, enrollmentID, lessonID string) (*command.ReportProgressResult, error) {
	return e.reportProgress.MarkComplete(ctx, command.MarkCompleteCommand{EnrollmentID: enrollmentID, LessonID: lessonID})
}

// GetProgress reads one lesson's progress.
func (e *Engine) GetProgress(ctx context.Context, enrollmentID, lessonID string) (*progress.LessonProgress, error) {
	return e.getProgress.Handle(ctx, query.GetProgressQuery{EnrollmentID: enrollmentID, LessonID: lessonID})
}

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT AGGREGATOR
// ══════════════════════════════════════════════════════════════════════════════

// RecomputeEnrollment refreshes roll-ups after a content edit.
func (e *Engine) RecomputeEnrollment(ctx context.Context, enrollmentID string) (*command.RecomputeResult, error) {
	return e.recompute.Handle(ctx, command.RecomputeEnrollmentCommand{EnrollmentID: enrollmentID})
}

// GetEnrollmentProgress returns the course overview.
func (e *Engine) GetEnrollmentProgress(ctx context.Context, enrollmentID string) (*query.EnrollmentProgressDTO, error) {
	return e.getEnrollment.Handle(ctx, query.GetEnrollmentProgressQuery{EnrollmentID: enrollmentID})
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSESSMENT ENGINE
// ══════════════════════════════════════════════════════════════════════════════

// StartAttempt starts a quiz attempt.
func (e *Engine) StartAttempt(ctx context.Context, enrollmentID, quizID string) (*command.StartAttemptResult, error) {
	return e.startAttempt.Handle(ctx, command.StartAttemptCommand{EnrollmentID: enrollmentID, QuizID: quizID})
}

// GetAttemptPayload renders an attempt for the learner.
func (e *Engine) GetAttemptPayload(ctx context.Context, attemptID string) (*assessment.Payload, error) {
	return e.getPayload.Handle(ctx, query.GetAttemptPayloadQuery{AttemptID: attemptID})
}

// SubmitAttempt submits and grades an attempt.
func (e *Engine) SubmitAttempt(ctx context.Context, attemptID string, answers []assessment.Answer) (*command.SubmitAttemptResult, error) {
	return e.submitAttempt.Handle(ctx, command.SubmitAttemptCommand{AttemptID: attemptID, Answers: answers})
}

// GradeSubmitted finishes an attempt stranded in submitted.
func (e *Engine) GradeSubmitted(ctx context.Context, attemptID string) (*command.SubmitAttemptResult, error) {
	return e.submitAttempt.GradeSubmitted(ctx, attemptID)
}

// ListAttempts returns the attempt history at one quiz.
func (e *Engine) ListAttempts(ctx context.Context, enrollmentID, quizID string) (*query.AttemptHistoryDTO, error) {
	return e.listAttempts.Handle(ctx, query.ListAttemptsQuery{EnrollmentID: enrollmentID, QuizID: quizID})
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION TRIGGER
// ══════════════════════════════════════════════════════════════════════════════

// OnEnrollmentCompleted runs the completion trigger. Safe to call repeatedly.
func (e *Engine) OnEnrollmentCompleted(ctx context.Context, enrollmentID string) (certificate.Outcome, error) {
	return e.completion.OnEnrollmentCompleted(ctx, enrollmentID)
}

// Deps returns the ports the engine was built with, for the background jobs.
func (e *Engine) Deps() Deps {
	return e.deps
}
