package enrollment

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository is the storage contract for enrollments.
type Repository interface {
	// Create stores a new enrollment with Version 1.
	// Returns shared.ErrAlreadyExists if the id is taken.
	Create(ctx context.Context, e *Enrollment) error

	// GetByID returns the enrollment or an error matching shared.ErrNotFound.
	GetByID(ctx context.Context, id string) (*Enrollment, error)

	// Update writes e if the stored version still equals e.Version and bumps
	// e.Version on success. A moved version yields shared.ErrConcurrencyConflict.
	Update(ctx context.Context, e *Enrollment) error

	// ListAwaitingCertificate returns completed enrollments without a
	// certificate pointer that completed before the cutoff, oldest first.
	ListAwaitingCertificate(ctx context.Context, completedBefore time.Time, limit int) ([]*Enrollment, error)
}
