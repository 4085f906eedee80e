// Package progress models the Progress Ledger: one LessonProgress row per
// (enrollment, lesson) pair. Rows are created lazily on first interaction and
// never deleted. Nothing here looks across lessons.
package progress

import (
	"math"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

// Status is the state of a single lesson for an enrollment.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// CompleteFraction is the completion fraction of a finished lesson.
const CompleteFraction = 100.0

// LessonProgress is a single ledger row.
type LessonProgress struct {
	ID                 string
	EnrollmentID       string
	LessonID           string
	Status             Status
	TimeSpent          int64 // seconds, cumulative
	LastPosition       int64 // opaque resume marker
	CompletionFraction float64
	StartedAt          time.Time
	CompletedAt        *time.Time
	UpdatedAt          time.Time

	// Version is zero for rows that were never stored.
	Version int64
}

// NotStarted returns the synthetic record returned for lessons the learner has
// not touched yet. It has no ID and is never persisted by reads.
func NotStarted(enrollmentID, lessonID string) *LessonProgress {
	return &LessonProgress{
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
		Status:       StatusNotStarted,
	}
}

// New starts a fresh row for the first interaction with a lesson.
func New(id, enrollmentID, lessonID string, now time.Time) *LessonProgress {
	return &LessonProgress{
		ID:           id,
		EnrollmentID: enrollmentID,
		LessonID:     lessonID,
		Status:       StatusNotStarted,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// IsPersisted reports whether the row came from storage.
func (p *LessonProgress) IsPersisted() bool {
	return p.Version > 0
}

// IsCompleted reports whether the lesson is done.
func (p *LessonProgress) IsCompleted() bool {
	return p.Status == StatusCompleted
}

// Clone returns a deep copy.
func (p *LessonProgress) Clone() *LessonProgress {
	c := *p
	if p.CompletedAt != nil {
		t := *p.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// ══════════════════════════════════════════════════════════════════════════════
// REPORTS
// ══════════════════════════════════════════════════════════════════════════════

// Report is one progress report from the learner's client.
type Report struct {
	// TimeDelta is added to the cumulative time. Must be >= 0.
	TimeDelta int64
	// Position replaces the resume marker. Nil keeps the stored one.
	Position *int64
	// CompletionFraction is clamped to [0, 100]. 100 completes the lesson.
	CompletionFraction float64
}

// Validate rejects reports that can never be applied.
func (r Report) Validate() error {
	if r.TimeDelta < 0 {
		return shared.WrapError("progress", "Report", shared.ErrValidation, "time_delta must be >= 0", shared.ErrNegativeValue)
	}
	if math.IsNaN(r.CompletionFraction) {
		return shared.Validation("progress", "Report", "completion_fraction is not a number")
	}
	return nil
}

// CompletionReport is the mark-complete shortcut: fraction 100, no time, no
// position change.
func CompletionReport() Report {
	return Report{CompletionFraction: CompleteFraction}
}

// Outcome describes what Apply did.
type Outcome struct {
	// Changed is false when the report left the row untouched.
	Changed bool
	// JustCompleted is true when this report completed the lesson.
	JustCompleted bool
}

// Apply folds a validated report into the row. Once completed, the fraction
// stays at 100 and completed_at keeps its first value.
func (p *LessonProgress) Apply(r Report, now time.Time) Outcome {
	before := *p
	var out Outcome

	p.TimeSpent = shared.AddSeconds(p.TimeSpent, r.TimeDelta)
	if r.Position != nil {
		p.LastPosition = *r.Position
	}

	fraction := shared.ClampPercent(r.CompletionFraction)
	switch {
	case p.Status == StatusCompleted:
		// never regresses
	case fraction >= CompleteFraction:
		p.Status = StatusCompleted
		p.CompletionFraction = CompleteFraction
		at := now
		p.CompletedAt = &at
		out.JustCompleted = true
	default:
		p.Status = StatusInProgress
		p.CompletionFraction = fraction
	}

	out.Changed = out.JustCompleted ||
		p.TimeSpent != before.TimeSpent ||
		p.LastPosition != before.LastPosition ||
		p.Status != before.Status ||
		p.CompletionFraction != before.CompletionFraction
	if out.Changed {
		p.UpdatedAt = now
	}
	return out
}

// CheckInvariants verifies completed_at and fraction against status.
func (p *LessonProgress) CheckInvariants() error {
	const op = "CheckInvariants"
	completed := p.Status == StatusCompleted
	if completed != (p.CompletedAt != nil) {
		return shared.InvalidState("progress", op, "completed_at must be set iff status is completed")
	}
	if completed != (p.CompletionFraction == CompleteFraction) {
		return shared.InvalidState("progress", op, "fraction %.2f does not match status %s", p.CompletionFraction, p.Status)
	}
	if p.TimeSpent < 0 {
		return shared.InvalidState("progress", op, "negative time spent")
	}
	return nil
}
