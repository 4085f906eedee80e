// Package catalog is the engine's read-only view of the content catalog.
// Course and lesson authoring happens elsewhere.
package catalog

import (
	"context"

	"github.com/alem-hub/learning-engine/internal/domain/assessment"
)

// Reader answers the catalog questions the engine asks.
type Reader interface {
	// LessonIDs returns the course's current lesson ids. An unknown course
	// yields an error matching shared.ErrNotFound.
	LessonIDs(ctx context.Context, courseID string) ([]string, error)

	// CourseOfLesson returns the id of the course owning the lesson, or an
	// error matching shared.ErrNotFound.
	CourseOfLesson(ctx context.Context, lessonID string) (string, error)

	// GetQuiz returns the quiz definition, or an error matching
	// shared.ErrNotFound.
	GetQuiz(ctx context.Context, quizID string) (*assessment.Quiz, error)
}
