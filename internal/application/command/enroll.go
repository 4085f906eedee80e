package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/pkg/logger"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL COMMAND
// Entry point for the enrollment collaborator. The new enrollment starts
// active with roll-ups taken from the course's current lesson list.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollCommand creates an enrollment.
type EnrollCommand struct {
	// EnrollmentID is optional; a new id is generated when empty.
	EnrollmentID string
	LearnerID    string
	CourseID     string
}

// EnrollHandler handles EnrollCommand.
type EnrollHandler struct {
	enrollments enrollment.Repository
	catalog     catalog.Reader

	clock timeutil.Clock
	log   *logger.Logger
}

// NewEnrollHandler creates an EnrollHandler.
func NewEnrollHandler(enrollments enrollment.Repository, catalogReader catalog.Reader, opts Options) *EnrollHandler {
	opts = opts.withDefaults()
	return &EnrollHandler{
		enrollments: enrollments,
		catalog:     catalogReader,
		clock:       opts.Clock,
		log:         opts.Logger.With(logger.Component("enrollment")),
	}
}

// Handle executes the command.
func (h *EnrollHandler) Handle(ctx context.Context, cmd EnrollCommand) (*enrollment.Enrollment, error) {
	id := cmd.EnrollmentID
	if id == "" {
		id = shared.NewID()
	}
	now := h.clock.Now()
	e, err := enrollment.New(id, cmd.LearnerID, cmd.CourseID, now)
	if err != nil {
		return nil, err
	}

	lessons, err := h.catalog.LessonIDs(ctx, cmd.CourseID)
	if err != nil {
		return nil, fmt.Errorf("enroll: lessons of %s: %w", cmd.CourseID, err)
	}
	e.ApplyRollUp(enrollment.ComputeRollUp(lessons, nil), now)

	if err := h.enrollments.Create(ctx, e); err != nil {
		return nil, err
	}
	h.log.Info("enrolled",
		logger.EnrollmentID(e.ID),
		logger.LearnerID(e.LearnerID),
		logger.CourseID(e.CourseID),
		logger.Int("lessons", e.TotalLessonCount),
	)
	return e, nil
}
