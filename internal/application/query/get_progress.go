// Package query contains read operations (CQRS - Queries).
package query

import (
	"context"

	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/progress"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRESS QUERY
// Reads one ledger row. Lessons with no row yet are reported as a synthetic
// not_started row; reads never create rows.
// ══════════════════════════════════════════════════════════════════════════════

// GetProgressQuery identifies one (enrollment, lesson) pair.
type GetProgressQuery struct {
	EnrollmentID string
	LessonID     string
}

// Validate validates the query.
func (q GetProgressQuery) Validate() error {
	if err := shared.RequireID("progress", "GetProgress", "enrollment_id", q.EnrollmentID); err != nil {
		return err
	}
	return shared.RequireID("progress", "GetProgress", "lesson_id", q.LessonID)
}

// GetProgressHandler handles GetProgressQuery.
type GetProgressHandler struct {
	enrollments enrollment.Repository
	progress    progress.Repository
	catalog     catalog.Reader
}

// NewGetProgressHandler creates a GetProgressHandler.
func NewGetProgressHandler(enrollments enrollment.Repository, progressRepo progress.Repository, catalogReader catalog.Reader) *GetProgressHandler {
	return &GetProgressHandler{enrollments: enrollments, progress: progressRepo, catalog: catalogReader}
}

// Handle executes the query.
func (h *GetProgressHandler) Handle(ctx context.Context, q GetProgressQuery) (*progress.LessonProgress, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	e, err := h.enrollments.GetByID(ctx, q.EnrollmentID)
	if err != nil {
		return nil, err
	}
	course, err := h.catalog.CourseOfLesson(ctx, q.LessonID)
	if err != nil {
		return nil, err
	}
	if course != e.CourseID {
		return nil, shared.NotFound("progress", "GetProgress", "lesson %s is not part of course %s", q.LessonID, e.CourseID)
	}

	row, err := h.progress.Get(ctx, q.EnrollmentID, q.LessonID)
	if shared.IsNotFound(err) {
		return progress.NotStarted(q.EnrollmentID, q.LessonID), nil
	}
	return row, err
}
