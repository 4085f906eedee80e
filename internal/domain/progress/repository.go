package progress

import "context"

// Repository is the storage contract for the ledger.
type Repository interface {
	// Get returns the row for (enrollmentID, lessonID) or an error matching
	// shared.ErrNotFound.
	Get(ctx context.Context, enrollmentID, lessonID string) (*LessonProgress, error)

	// Insert stores a new row with Version 1. A concurrent insert of the same
	// pair yields shared.ErrConcurrencyConflict.
	Insert(ctx context.Context, p *LessonProgress) error

	// Update writes p if the stored version equals p.Version and bumps
	// p.Version. A moved version yields shared.ErrConcurrencyConflict.
	Update(ctx context.Context, p *LessonProgress) error

	// ListByEnrollment returns every row of the enrollment.
	ListByEnrollment(ctx context.Context, enrollmentID string) ([]*LessonProgress, error)
}
