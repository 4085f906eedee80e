// Package memory provides in-process implementations of every repository
// port and of the catalog reader. Version checks and uniqueness rules match
// the Postgres implementation, so the same command tests hold for both.
//
// All values are copied on the way in and out; callers never share memory
// with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/certificate"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/progress"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

// Store holds all tables behind one mutex.
type Store struct {
	mu sync.RWMutex

	enrollments  map[string]*enrollment.Enrollment
	progress     map[progressKey]*progress.LessonProgress
	attempts     map[string]*assessment.Attempt
	certificates map[string]*certificate.Certificate

	courses map[string][]string // course -> lessons
	lessons map[string]string   // lesson -> course
	quizzes map[string]*assessment.Quiz
}

type progressKey struct {
	enrollmentID string
	lessonID     string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		enrollments:  make(map[string]*enrollment.Enrollment),
		progress:     make(map[progressKey]*progress.LessonProgress),
		attempts:     make(map[string]*assessment.Attempt),
		certificates: make(map[string]*certificate.Certificate),
		courses:      make(map[string][]string),
		lessons:      make(map[string]string),
		quizzes:      make(map[string]*assessment.Quiz),
	}
}

// Enrollments returns the enrollment repository view.
func (s *Store) Enrollments() *EnrollmentRepository { return &EnrollmentRepository{s: s} }

// Progress returns the ledger repository view.
func (s *Store) Progress() *ProgressRepository { return &ProgressRepository{s: s} }

// Attempts returns the attempt repository view.
func (s *Store) Attempts() *AttemptRepository { return &AttemptRepository{s: s} }

// Certificates returns the certificate repository view.
func (s *Store) Certificates() *CertificateRepository { return &CertificateRepository{s: s} }

// Catalog returns the catalog reader view.
func (s *Store) Catalog() *Catalog { return &Catalog{s: s} }

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENTS
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository.
type EnrollmentRepository struct{ s *Store }

var _ enrollment.Repository = (*EnrollmentRepository)(nil)

// Create implements enrollment.Repository.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.enrollments[e.ID]; ok {
		return shared.NewDomainError("enrollment", "Create", shared.ErrAlreadyExists, "enrollment "+e.ID+" exists")
	}
	e.Version = 1
	r.s.enrollments[e.ID] = e.Clone()
	return nil
}

// GetByID implements enrollment.Repository.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.enrollments[id]
	if !ok {
		return nil, shared.NotFound("enrollment", "GetByID", "enrollment %s not found", id)
	}
	return e.Clone(), nil
}

// Update implements enrollment.Repository.
func (r *EnrollmentRepository) Update(ctx context.Context, e *enrollment.Enrollment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.enrollments[e.ID]
	if !ok {
		return shared.NotFound("enrollment", "Update", "enrollment %s not found", e.ID)
	}
	if cur.Version != e.Version {
		return shared.NewDomainError("enrollment", "Update", shared.ErrConcurrencyConflict, "version moved")
	}
	e.Version++
	r.s.enrollments[e.ID] = e.Clone()
	return nil
}

// ListAwaitingCertificate implements enrollment.Repository.
func (r *EnrollmentRepository) ListAwaitingCertificate(ctx context.Context, completedBefore time.Time, limit int) ([]*enrollment.Enrollment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*enrollment.Enrollment
	for _, e := range r.s.enrollments {
		if e.Status != enrollment.StatusCompleted || e.CertificateIssuedAt != nil || e.CompletedAt == nil {
			continue
		}
		if !e.CompletedAt.Before(completedBefore) {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository.
type ProgressRepository struct{ s *Store }

var _ progress.Repository = (*ProgressRepository)(nil)

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, enrollmentID, lessonID string) (*progress.LessonProgress, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.progress[progressKey{enrollmentID, lessonID}]
	if !ok {
		return nil, shared.NotFound("progress", "Get", "no progress for lesson %s", lessonID)
	}
	return p.Clone(), nil
}

// Insert implements progress.Repository.
func (r *ProgressRepository) Insert(ctx context.Context, p *progress.LessonProgress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := progressKey{p.EnrollmentID, p.LessonID}
	if _, ok := r.s.progress[key]; ok {
		return shared.NewDomainError("progress", "Insert", shared.ErrConcurrencyConflict, "row created concurrently")
	}
	p.Version = 1
	r.s.progress[key] = p.Clone()
	return nil
}

// Update implements progress.Repository.
func (r *ProgressRepository) Update(ctx context.Context, p *progress.LessonProgress) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := progressKey{p.EnrollmentID, p.LessonID}
	cur, ok := r.s.progress[key]
	if !ok {
		return shared.NotFound("progress", "Update", "no progress for lesson %s", p.LessonID)
	}
	if cur.Version != p.Version {
		return shared.NewDomainError("progress", "Update", shared.ErrConcurrencyConflict, "version moved")
	}
	p.Version++
	r.s.progress[key] = p.Clone()
	return nil
}

// ListByEnrollment implements progress.Repository.
func (r *ProgressRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*progress.LessonProgress, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*progress.LessonProgress
	for k, p := range r.s.progress {
		if k.enrollmentID == enrollmentID {
			out = append(out, p.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LessonID < out[j].LessonID })
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTEMPTS
// ══════════════════════════════════════════════════════════════════════════════

// AttemptRepository implements assessment.AttemptRepository.
type AttemptRepository struct{ s *Store }

var _ assessment.AttemptRepository = (*AttemptRepository)(nil)

// Insert implements assessment.AttemptRepository.
func (r *AttemptRepository) Insert(ctx context.Context, a *assessment.Attempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.attempts {
		if cur.EnrollmentID == a.EnrollmentID && cur.QuizID == a.QuizID && cur.AttemptNumber == a.AttemptNumber {
			return shared.NewDomainError("assessment", "Insert", shared.ErrConcurrencyConflict, "attempt number taken")
		}
	}
	if _, ok := r.s.attempts[a.ID]; ok {
		return shared.NewDomainError("assessment", "Insert", shared.ErrAlreadyExists, "attempt "+a.ID+" exists")
	}
	r.s.attempts[a.ID] = a.Clone()
	return nil
}

// GetByID implements assessment.AttemptRepository.
func (r *AttemptRepository) GetByID(ctx context.Context, id string) (*assessment.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	a, ok := r.s.attempts[id]
	if !ok {
		return nil, shared.NotFound("assessment", "GetByID", "attempt %s not found", id)
	}
	return a.Clone(), nil
}

// AttemptNumbers implements assessment.AttemptRepository.
func (r *AttemptRepository) AttemptNumbers(ctx context.Context, enrollmentID, quizID string) ([]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var nums []int
	for _, a := range r.s.attempts {
		if a.EnrollmentID == enrollmentID && a.QuizID == quizID {
			nums = append(nums, a.AttemptNumber)
		}
	}
	sort.Ints(nums)
	return nums, nil
}

// ListByEnrollmentQuiz implements assessment.AttemptRepository.
func (r *AttemptRepository) ListByEnrollmentQuiz(ctx context.Context, enrollmentID, quizID string) ([]*assessment.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*assessment.Attempt
	for _, a := range r.s.attempts {
		if a.EnrollmentID == enrollmentID && a.QuizID == quizID {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

// SaveSubmission implements assessment.AttemptRepository.
func (r *AttemptRepository) SaveSubmission(ctx context.Context, a *assessment.Attempt) error {
	return r.transition(a, assessment.AttemptInProgress, "SaveSubmission")
}

// SaveGrade implements assessment.AttemptRepository.
func (r *AttemptRepository) SaveGrade(ctx context.Context, a *assessment.Attempt) error {
	return r.transition(a, assessment.AttemptSubmitted, "SaveGrade")
}

func (r *AttemptRepository) transition(a *assessment.Attempt, from assessment.AttemptStatus, op string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.attempts[a.ID]
	if !ok {
		return shared.NotFound("assessment", op, "attempt %s not found", a.ID)
	}
	if cur.Status != from {
		return shared.NewDomainError("assessment", op, shared.ErrConcurrencyConflict, "attempt is "+string(cur.Status))
	}
	r.s.attempts[a.ID] = a.Clone()
	return nil
}

// ListByStatus implements assessment.AttemptRepository.
func (r *AttemptRepository) ListByStatus(ctx context.Context, status assessment.AttemptStatus, startedBefore time.Time, limit int) ([]*assessment.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []*assessment.Attempt
	for _, a := range r.s.attempts {
		if a.Status == status && a.StartedAt.Before(startedBefore) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CERTIFICATES
// ══════════════════════════════════════════════════════════════════════════════

// CertificateRepository implements certificate.Repository.
type CertificateRepository struct{ s *Store }

var _ certificate.Repository = (*CertificateRepository)(nil)

// Claim implements certificate.Repository.
func (r *CertificateRepository) Claim(ctx context.Context, c *certificate.Certificate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, cur := range r.s.certificates {
		if cur.EnrollmentID == c.EnrollmentID && cur.Status.HoldsClaim() {
			return shared.ErrCertificateExists
		}
	}
	cp := *c
	r.s.certificates[c.ID] = &cp
	return nil
}

// FindActive implements certificate.Repository.
func (r *CertificateRepository) FindActive(ctx context.Context, enrollmentID string) (*certificate.Certificate, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, cur := range r.s.certificates {
		if cur.EnrollmentID == enrollmentID && cur.Status.HoldsClaim() {
			cp := *cur
			return &cp, nil
		}
	}
	return nil, shared.NotFound("certificate", "FindActive", "no certificate for enrollment %s", enrollmentID)
}

// MarkIssued implements certificate.Repository.
func (r *CertificateRepository) MarkIssued(ctx context.Context, id, externalRef string, issuedAt time.Time) error {
	return r.finish(id, "MarkIssued", func(c *certificate.Certificate) {
		at := issuedAt
		c.Status = certificate.StatusIssued
		c.ExternalRef = externalRef
		c.IssuedAt = &at
		c.UpdatedAt = issuedAt
	})
}

// MarkFailed implements certificate.Repository.
func (r *CertificateRepository) MarkFailed(ctx context.Context, id, reason string, at time.Time) error {
	return r.finish(id, "MarkFailed", func(c *certificate.Certificate) {
		c.Status = certificate.StatusFailed
		c.FailureReason = reason
		c.UpdatedAt = at
	})
}

func (r *CertificateRepository) finish(id, op string, apply func(*certificate.Certificate)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.certificates[id]
	if !ok {
		return shared.NotFound("certificate", op, "certificate %s not found", id)
	}
	if c.Status != certificate.StatusPending {
		return shared.InvalidState("certificate", op, "certificate %s is %s", id, c.Status)
	}
	apply(c)
	return nil
}

// ReleaseStale implements certificate.Repository.
func (r *CertificateRepository) ReleaseStale(ctx context.Context, claimedBefore time.Time, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n := 0
	for _, c := range r.s.certificates {
		if c.Status == certificate.StatusPending && c.ClaimedAt.Before(claimedBefore) {
			c.Status = certificate.StatusFailed
			c.FailureReason = "claim expired"
			c.UpdatedAt = at
			n++
		}
	}
	return n, nil
}

// All returns every certificate row of an enrollment. Used by tests.
func (r *CertificateRepository) All(enrollmentID string) []certificate.Certificate {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []certificate.Certificate
	for _, c := range r.s.certificates {
		if c.EnrollmentID == enrollmentID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimedAt.Before(out[j].ClaimedAt) })
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG
// ══════════════════════════════════════════════════════════════════════════════

// Catalog implements catalog.Reader over in-memory course data.
type Catalog struct{ s *Store }

var _ catalog.Reader = (*Catalog)(nil)

// PutCourse sets the course's lesson list, replacing any previous one.
func (c *Catalog) PutCourse(courseID string, lessonIDs ...string) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	for _, old := range c.s.courses[courseID] {
		delete(c.s.lessons, old)
	}
	c.s.courses[courseID] = append([]string(nil), lessonIDs...)
	for _, l := range lessonIDs {
		c.s.lessons[l] = courseID
	}
}

// PutQuiz stores a quiz definition.
func (c *Catalog) PutQuiz(q *assessment.Quiz) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	cp := *q
	cp.Questions = append([]assessment.Question(nil), q.Questions...)
	c.s.quizzes[q.ID] = &cp
}

// LessonIDs implements catalog.Reader.
func (c *Catalog) LessonIDs(ctx context.Context, courseID string) ([]string, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	ids, ok := c.s.courses[courseID]
	if !ok {
		return nil, shared.NotFound("catalog", "LessonIDs", "course %s not found", courseID)
	}
	return append([]string(nil), ids...), nil
}

// CourseOfLesson implements catalog.Reader.
func (c *Catalog) CourseOfLesson(ctx context.Context, lessonID string) (string, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	course, ok := c.s.lessons[lessonID]
	if !ok {
		return "", shared.NotFound("catalog", "CourseOfLesson", "lesson %s not found", lessonID)
	}
	return course, nil
}

// GetQuiz implements catalog.Reader.
func (c *Catalog) GetQuiz(ctx context.Context, quizID string) (*assessment.Quiz, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	q, ok := c.s.quizzes[quizID]
	if !ok {
		return nil, shared.NotFound("catalog", "GetQuiz", "quiz %s not found", quizID)
	}
	cp := *q
	cp.Questions = append([]assessment.Question(nil), q.Questions...)
	return &cp, nil
}
