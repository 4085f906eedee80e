package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/progress"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ENROLLMENT PROGRESS QUERY
// The course overview: stored roll-ups plus one row per lesson currently in
// the course, in course order.
// ══════════════════════════════════════════════════════════════════════════════

// GetEnrollmentProgressQuery identifies an enrollment.
type GetEnrollmentProgressQuery struct {
	EnrollmentID string
}

// Validate validates the query.
func (q GetEnrollmentProgressQuery) Validate() error {
	return shared.RequireID("enrollment", "GetEnrollmentProgress", "enrollment_id", q.EnrollmentID)
}

// EnrollmentProgressDTO is the course overview.
type EnrollmentProgressDTO struct {
	Enrollment *enrollment.Enrollment
	Lessons    []*progress.LessonProgress

	// Stale is set when the stored roll-up disagrees with the ledger, for
	// example after a lesson was added and no recompute ran yet.
	Stale bool
}

// GetEnrollmentProgressHandler handles GetEnrollmentProgressQuery.
type GetEnrollmentProgressHandler struct {
	enrollments enrollment.Repository
	progress    progress.Repository
	catalog     catalog.Reader
}

// NewGetEnrollmentProgressHandler creates a GetEnrollmentProgressHandler.
func NewGetEnrollmentProgressHandler(enrollments enrollment.Repository, progressRepo progress.Repository, catalogReader catalog.Reader) *GetEnrollmentProgressHandler {
	return &GetEnrollmentProgressHandler{enrollments: enrollments, progress: progressRepo, catalog: catalogReader}
}

// Handle executes the query.
func (h *GetEnrollmentProgressHandler) Handle(ctx context.Context, q GetEnrollmentProgressQuery) (*EnrollmentProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	e, err := h.enrollments.GetByID(ctx, q.EnrollmentID)
	if err != nil {
		return nil, err
	}
	lessons, err := h.catalog.LessonIDs(ctx, e.CourseID)
	if err != nil {
		return nil, fmt.Errorf("enrollment progress: lessons of %s: %w", e.CourseID, err)
	}
	rows, err := h.progress.ListByEnrollment(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("enrollment progress: ledger of %s: %w", e.ID, err)
	}

	byLesson := make(map[string]*progress.LessonProgress, len(rows))
	snaps := make([]enrollment.LessonSnapshot, 0, len(rows))
	for _, r := range rows {
		byLesson[r.LessonID] = r
		snaps = append(snaps, enrollment.LessonSnapshot{LessonID: r.LessonID, Completed: r.IsCompleted(), TimeSpent: r.TimeSpent})
	}

	out := &EnrollmentProgressDTO{Enrollment: e, Lessons: make([]*progress.LessonProgress, 0, len(lessons))}
	for _, id := range lessons {
		if r, ok := byLesson[id]; ok {
			out.Lessons = append(out.Lessons, r)
			continue
		}
		out.Lessons = append(out.Lessons, progress.NotStarted(e.ID, id))
	}

	fresh := enrollment.ComputeRollUp(lessons, snaps)
	out.Stale = fresh.TotalLessons != e.TotalLessonCount ||
		min(fresh.CompletedLessons, fresh.TotalLessons) != e.CompletedLessonCount ||
		fresh.TotalTimeSpent != e.TotalTimeSpent
	return out, nil
}
