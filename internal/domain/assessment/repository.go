package assessment

import (
	"context"
	"time"
)

// AttemptRepository is the storage contract for quiz attempts.
type AttemptRepository interface {
	// Insert stores a new attempt. Another attempt holding the same
	// (enrollment, quiz, attempt_number) yields shared.ErrConcurrencyConflict.
	Insert(ctx context.Context, a *Attempt) error

	// GetByID returns the attempt or an error matching shared.ErrNotFound.
	GetByID(ctx context.Context, id string) (*Attempt, error)

	// AttemptNumbers returns the attempt numbers already used for the pair.
	AttemptNumbers(ctx context.Context, enrollmentID, quizID string) ([]int, error)

	// ListByEnrollmentQuiz returns the pair's attempts ordered by number.
	ListByEnrollmentQuiz(ctx context.Context, enrollmentID, quizID string) ([]*Attempt, error)

	// SaveSubmission persists submitted_at, time_taken, answers and status
	// if the stored attempt is still in progress. Otherwise it returns
	// shared.ErrConcurrencyConflict.
	SaveSubmission(ctx context.Context, a *Attempt) error

	// SaveGrade persists the grading fields if the stored attempt is still
	// submitted. Otherwise it returns shared.ErrConcurrencyConflict.
	SaveGrade(ctx context.Context, a *Attempt) error

	// ListByStatus returns attempts in the given status started before the
	// cutoff, oldest first.
	ListByStatus(ctx context.Context, status AttemptStatus, startedBefore time.Time, limit int) ([]*Attempt, error)
}
