// Package enrollment holds the Enrollment aggregate: one learner's participation
// in one course, its roll-up fields, and its state machine.
//
// Roll-ups are always recomputed from the full LessonProgress set and the
// course's current lesson list, never maintained incrementally.
package enrollment

import (
	"fmt"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the lifecycle state of an enrollment.
type Status string

const (
	// StatusActive - learner is working through the course.
	StatusActive Status = "active"
	// StatusCompleted - every lesson of the course was completed. Terminal here.
	StatusCompleted Status = "completed"
	// StatusDropped - set by an external collaborator. Never overwritten here.
	StatusDropped Status = "dropped"
	// StatusExpired - set by an external collaborator. Never overwritten here.
	StatusExpired Status = "expired"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusDropped, StatusExpired:
		return true
	default:
		return false
	}
}

// IsClosed reports whether the enrollment was closed from outside the engine.
// Closed enrollments accept no new learner activity.
func (s Status) IsClosed() bool {
	return s == StatusDropped || s == StatusExpired
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment is the aggregate root. It is mutated only by the aggregator and
// the completion trigger, always through a versioned write.
type Enrollment struct {
	ID        string
	LearnerID string
	CourseID  string
	Status    Status

	// Roll-ups.
	ProgressPercentage   float64
	CompletedLessonCount int
	TotalLessonCount     int
	TotalTimeSpent       int64 // seconds

	LastAccessedAt      time.Time
	StartedAt           time.Time
	CompletedAt         *time.Time
	CertificateIssuedAt *time.Time

	// Version is the optimistic concurrency counter. Repositories compare it
	// on write and bump it on success.
	Version int64
}

// New creates an active enrollment.
func New(id, learnerID, courseID string, now time.Time) (*Enrollment, error) {
	const op = "New"
	if err := shared.RequireID("enrollment", op, "id", id); err != nil {
		return nil, err
	}
	if err := shared.RequireID("enrollment", op, "learner_id", learnerID); err != nil {
		return nil, err
	}
	if err := shared.RequireID("enrollment", op, "course_id", courseID); err != nil {
		return nil, err
	}
	return &Enrollment{
		ID:             id,
		LearnerID:      learnerID,
		CourseID:       courseID,
		Status:         StatusActive,
		StartedAt:      now,
		LastAccessedAt: now,
	}, nil
}

// Clone returns a deep copy.
func (e *Enrollment) Clone() *Enrollment {
	c := *e
	if e.CompletedAt != nil {
		t := *e.CompletedAt
		c.CompletedAt = &t
	}
	if e.CertificateIssuedAt != nil {
		t := *e.CertificateIssuedAt
		c.CertificateIssuedAt = &t
	}
	return &c
}

// AcceptsActivity reports whether progress reports and attempt starts are allowed.
func (e *Enrollment) AcceptsActivity() bool {
	return !e.Status.IsClosed()
}

// ══════════════════════════════════════════════════════════════════════════════
// ROLL-UP
// ══════════════════════════════════════════════════════════════════════════════

// RollUp is the recomputed view of an enrollment's lesson progress.
type RollUp struct {
	TotalLessons     int
	CompletedLessons int
	TotalTimeSpent   int64
}

// ComputeRollUp derives roll-up numbers from the course's current lessons and
// the enrollment's progress rows. Rows for lessons no longer in the course
// still count towards time spent but not towards completion.
func ComputeRollUp(courseLessons []string, rows []LessonSnapshot) RollUp {
	inCourse := make(map[string]struct{}, len(courseLessons))
	for _, id := range courseLessons {
		inCourse[id] = struct{}{}
	}

	r := RollUp{TotalLessons: len(inCourse)}
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		r.TotalTimeSpent = shared.AddSeconds(r.TotalTimeSpent, row.TimeSpent)
		if !row.Completed {
			continue
		}
		if _, ok := inCourse[row.LessonID]; !ok {
			continue
		}
		if _, dup := seen[row.LessonID]; dup {
			continue
		}
		seen[row.LessonID] = struct{}{}
		r.CompletedLessons++
	}
	return r
}

// LessonSnapshot is what the roll-up needs to know about one progress row.
type LessonSnapshot struct {
	LessonID  string
	Completed bool
	TimeSpent int64
}

// ApplyRollUp writes recomputed roll-ups and drives the state machine.
// It returns true only when this call moved the enrollment from active to
// completed. Completion is monotonic: a completed enrollment stays completed
// even if the course later grows. Closed enrollments get fresh roll-ups but
// keep their status.
func (e *Enrollment) ApplyRollUp(r RollUp, now time.Time) bool {
	completed := r.CompletedLessons
	if completed > r.TotalLessons {
		completed = r.TotalLessons
	}

	e.TotalLessonCount = r.TotalLessons
	e.CompletedLessonCount = completed
	e.ProgressPercentage = shared.Percentage(int64(completed), int64(r.TotalLessons))
	e.TotalTimeSpent = r.TotalTimeSpent
	e.LastAccessedAt = now

	if e.Status == StatusActive && r.TotalLessons > 0 && completed == r.TotalLessons {
		e.Status = StatusCompleted
		at := now
		e.CompletedAt = &at
		return true
	}
	return false
}

// RecordCertificate stores the issuance pointer. The first timestamp wins.
func (e *Enrollment) RecordCertificate(issuedAt time.Time) bool {
	if e.CertificateIssuedAt != nil {
		return false
	}
	at := issuedAt
	e.CertificateIssuedAt = &at
	return true
}

// CheckInvariants verifies the structural invariants of the aggregate.
func (e *Enrollment) CheckInvariants() error {
	const op = "CheckInvariants"
	if !e.Status.IsValid() {
		return shared.InvalidState("enrollment", op, "unknown status %q", e.Status)
	}
	if e.CompletedLessonCount > e.TotalLessonCount {
		return shared.InvalidState("enrollment", op, "completed %d exceeds total %d", e.CompletedLessonCount, e.TotalLessonCount)
	}
	want := shared.Percentage(int64(e.CompletedLessonCount), int64(e.TotalLessonCount))
	if e.ProgressPercentage != want {
		return shared.InvalidState("enrollment", op, "percentage %.2f, expected %.2f", e.ProgressPercentage, want)
	}
	if (e.Status == StatusCompleted) != (e.CompletedAt != nil) {
		return shared.InvalidState("enrollment", op, "completed_at must be set iff status is completed")
	}
	return nil
}

// String is used in logs.
func (e *Enrollment) String() string {
	return fmt.Sprintf("enrollment(%s %s %d/%d v%d)", e.ID, e.Status, e.CompletedLessonCount, e.TotalLessonCount, e.Version)
}
