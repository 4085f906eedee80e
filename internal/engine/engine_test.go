package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-engine/internal/application/command"
	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/certificate"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/progress"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

var t0 = time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)

// ═══════════════════════════════════════════════════════════════════════════
// Fixture
// ═══════════════════════════════════════════════════════════════════════════

type recorder struct {
	mu     sync.Mutex
	events []shared.Event
}

func (r *recorder) Publish(ev shared.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count(t shared.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.EventType() == t {
			n++
		}
	}
	return n
}

type fixture struct {
	store  *memory.Store
	clock  *timeutil.ManualClock
	events *recorder
	calls  atomic.Int32
	fail   atomic.Bool
	eng    *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  memory.New(),
		clock:  timeutil.NewManual(t0),
		events: &recorder{},
	}
	f.store.Catalog().PutCourse("course-1", "l1", "l2", "l3")
	f.store.Catalog().PutCourse("course-2", "other-1")

	issuer := certificate.IssuerFunc(func(ctx context.Context, req certificate.IssueRequest) (certificate.IssueResult, error) {
		f.calls.Add(1)
		if f.fail.Load() {
			return certificate.IssueResult{}, errors.New("issuer down")
		}
		return certificate.IssueResult{ExternalRef: "cert-" + req.EnrollmentID, IssuedAt: f.clock.Now()}, nil
	})

	eng, err := New(Deps{
		Enrollments:  f.store.Enrollments(),
		Progress:     f.store.Progress(),
		Attempts:     f.store.Attempts(),
		Certificates: f.store.Certificates(),
		Catalog:      f.store.Catalog(),
		Issuer:       issuer,
		Publisher:    f.events,
		Clock:        f.clock,
	}, Settings{RetryAttempts: 20, RetryDelay: -1})
	require.NoError(t, err)
	f.eng = eng
	return f
}

func (f *fixture) enroll(t *testing.T, id, course string) *enrollment.Enrollment {
	t.Helper()
	e, err := f.eng.Enroll(context.Background(), command.EnrollCommand{EnrollmentID: id, LearnerID: "learner-" + id, CourseID: course})
	require.NoError(t, err)
	return e
}

func (f *fixture) enrollment(t *testing.T, id string) *enrollment.Enrollment {
	t.Helper()
	e, err := f.store.Enrollments().GetByID(context.Background(), id)
	require.NoError(t, err)
	return e
}

func minutes(n int) *time.Duration {
	d := time.Duration(n) * time.Minute
	return &d
}

func intp(n int) *int { return &n }

func quiz(id, lesson string) *assessment.Quiz {
	return &assessment.Quiz{
		ID:           id,
		LessonID:     lesson,
		Published:    true,
		PassingScore: 50,
		Questions: []assessment.Question{
			assessment.TrueFalse{QuestionBase: assessment.QuestionBase{ID: "q1", Text: "sky is blue", PointValue: 2}, CorrectValue: true},
			assessment.ShortAnswer{QuestionBase: assessment.QuestionBase{ID: "q2", Text: "capital of France", PointValue: 2}, CanonicalAnswer: "Paris"},
		},
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress ledger and aggregator
// ═══════════════════════════════════════════════════════════════════════════

func TestEngine_FullPassIssuesOneCertificate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t, "e1", "course-1")

	for i, lesson := range []string{"l1", "l2", "l3"} {
		res, err := f.eng.ReportProgress(ctx, command.ReportProgressCommand{
			EnrollmentID:       "e1",
			LessonID:           lesson,
			TimeDelta:          60,
			CompletionFraction: 100,
		})
		require.NoError(t, err)
		assert.True(t, res.LessonCompleted)
		assert.Equal(t, i == 2, res.EnrollmentCompleted)
	}

	e := f.enrollment(t, "e1")
	assert.Equal(t, enrollment.StatusCompleted, e.Status)
	assert.Equal(t, 3, e.CompletedLessonCount)
	assert.Equal(t, 100.0, e.ProgressPercentage)
	assert.Equal(t, int64(180), e.TotalTimeSpent)
	require.NotNil(t, e.CertificateIssuedAt)
	require.NoError(t, e.CheckInvariants())

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Len(t, f.store.Certificates().All("e1"), 1)
	assert.Equal(t, 1, f.events.count(shared.EventEnrollmentCompleted))
	assert.Equal(t, 1, f.events.count(shared.EventCertificateIssued))

	// Further activity neither reopens the course nor issues again.
	_, err := f.eng.MarkComplete(ctx, "e1", "l1")
	require.NoError(t, err)
	outcome, err := f.eng.OnEnrollmentCompleted(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, certificate.OutcomeSkipped, outcome)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestEngine_ConcurrentCompletionCallsIssuerOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t, "e1", "course-1")
	_, err := f.eng.MarkComplete(ctx, "e1", "l1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, lesson := range []string{"l2", "l3"} {
		wg.Add(1)
		go func(lesson string) {
			defer wg.Done()
			_, err := f.eng.MarkComplete(ctx, "e1", lesson)
			assert.NoError(t, err)
		}(lesson)
	}
	wg.Wait()

	assert.Equal(t, enrollment.StatusCompleted, f.enrollment(t, "e1").Status)
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, 1, f.events.count(shared.EventEnrollmentCompleted))
}

func TestEngine_ConcurrentTriggerCallsAfterFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t, "e1", "course-1")

	f.fail.Store(true)
	for _, lesson := range []string{"l1", "l2", "l3"} {
		_, err := f.eng.MarkComplete(ctx, "e1", lesson)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Nil(t, f.enrollment(t, "e1").CertificateIssuedAt)

	f.fail.Store(false)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.eng.OnEnrollmentCompleted(ctx, "e1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), f.calls.Load())
	assert.NotNil(t, f.enrollment(t, "e1").CertificateIssuedAt)

	issued := 0
	for _, c := range f.store.Certificates().All("e1") {
		if c.Status == certificate.StatusIssued {
			issued++
		}
	}
	assert.Equal(t, 1, issued)
}

func TestEngine_IssuerFailureThenRetry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Catalog().PutCourse("solo", "only")
	f.enroll(t, "e1", "solo")

	f.fail.Store(true)
	_, err := f.eng.MarkComplete(ctx, "e1", "only")
	require.NoError(t, err, "completion stands even when issuance fails")
	assert.Equal(t, enrollment.StatusCompleted, f.enrollment(t, "e1").Status)
	assert.Equal(t, 1, f.events.count(shared.EventCertificateFailed))

	outcome, err := f.eng.OnEnrollmentCompleted(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, certificate.OutcomeFailed, outcome)

	f.fail.Store(false)
	outcome, err = f.eng.OnEnrollmentCompleted(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, certificate.OutcomeIssued, outcome)
	assert.Equal(t, int32(3), f.calls.Load())
}

func TestEngine_TriggerRejectsActiveEnrollment(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "e1", "course-1")

	outcome, err := f.eng.OnEnrollmentCompleted(context.Background(), "e1")
	assert.True(t, shared.IsInvalidState(err))
	assert.Equal(t, certificate.OutcomeNone, outcome)
	assert.Zero(t, f.calls.Load())
}

func TestEngine_MarkCompleteIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t, "e1", "course-1")

	first, err := f.eng.MarkComplete(ctx, "e1", "l1")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	second, err := f.eng.MarkComplete(ctx, "e1", "l1")
	require.NoError(t, err)

	assert.True(t, first.LessonCompleted)
	assert.False(t, second.LessonCompleted)
	assert.Equal(t, first.Progress.CompletedAt, second.Progress.CompletedAt)
	assert.Equal(t, first.Progress.Version, second.Progress.Version)
	assert.Equal(t, 1, f.enrollment(t, "e1").CompletedLessonCount)
	assert.Equal(t, 1, f.events.count(shared.EventLessonCompleted))
}

// conflictingEnrollments loses every optimistic write.
type conflictingEnrollments struct {
	enrollment.Repository
}

func (conflictingEnrollments) Update(context.Context, *enrollment.Enrollment) error {
	return shared.ErrConcurrencyConflict
}

func TestEngine_RollUpFailureReturnsCommittedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t, "e1", "course-1")

	eng, err := New(Deps{
		Enrollments:  conflictingEnrollments{f.store.Enrollments()},
		Progress:     f.store.Progress(),
		Attempts:     f.store.Attempts(),
		Certificates: f.store.Certificates(),
		Catalog:      f.store.Catalog(),
		Issuer:       certificate.IssuerFunc(func(context.Context, certificate.IssueRequest) (certificate.IssueResult, error) { return certificate.IssueResult{}, nil }),
		Publisher:    f.events,
		Clock:        f.clock,
	}, Settings{RetryAttempts: 3, RetryDelay: -1})
	require.NoError(t, err)

	res, err := eng.ReportProgress(ctx, command.ReportProgressCommand{EnrollmentID: "e1", LessonID: "l1", TimeDelta: 45, CompletionFraction: 30})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrTransient)
	require.NotNil(t, res)
	require.NotNil(t, res.Progress)
	assert.Nil(t, res.Enrollment)
	assert.Equal(t, int64(45), res.Progress.TimeSpent)

	stored, err := f.eng.GetProgress(ctx, "e1", "l1")
	require.NoError(t, err)
	assert.Equal(t, int64(45), stored.TimeSpent)

	rec, err := f.eng.RecomputeEnrollment(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, int64(45), rec.Enrollment.TotalTimeSpent)
}

func TestEngine_ProgressNeverRegresses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t, "e1", "course-1")

	_, err := f.eng.MarkComplete(ctx, "e1", "l1")
	require.NoError(t, err)
	pos := int64(42)
	res, err := f.eng.ReportProgress(ctx, command.ReportProgressCommand{
		EnrollmentID: "e1", LessonID: "l1", TimeDelta: 30, Position: &pos, CompletionFraction: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, progress.StatusCompleted, res.Progress.Status)
	assert.Equal(t, 100.0, res.Progress.CompletionFraction)
	assert.Equal(t, int64(30), res.Progress.TimeSpent)
	assert.Equal(t, int64(42), res.Progress.LastPosition)
}

func TestEngine_ReportValidation(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "e1", "course-1")

	_, err := f.eng.ReportProgress(context.Background(), command.ReportProgressCommand{
		EnrollmentID: "e1", LessonID: "l1", TimeDelta: -5,
	})
	assert.True(t, shared.IsValidation(err))
}

func TestEngine_CompletionIsMonotonicWhenCourseGrows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t, "e1", "course-1")
	for _, lesson := range []string{"l1", "l2", "l3"} {
		_, err := f.eng.MarkComplete(ctx, "e1", lesson)
		require.NoError(t, err)
	}

	f.store.Catalog().PutCourse("course-1", "l1", "l2", "l3", "l4")
	res, err := f.eng.RecomputeEnrollment(ctx, "e1")
	require.NoError(t, err)

	assert.False(t, res.Completed)
	assert.Equal(t, enrollment.StatusCompleted, res.Enrollment.Status)
	assert.Equal(t, 4, res.Enrollment.TotalLessonCount)
	assert.Equal(t, 3, res.Enrollment.CompletedLessonCount)
	assert.Equal(t, 75.0, res.Enrollment.ProgressPercentage)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestEngine_RemovedLessonKeepsCountsConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t, "e1", "course-1")
	_, err := f.eng.MarkComplete(ctx, "e1", "l1")
	require.NoError(t, err)
	_, err = f.eng.MarkComplete(ctx, "e1", "l2")
	require.NoError(t, err)

	f.store.Catalog().PutCourse("course-1", "l2", "l3")
	res, err := f.eng.RecomputeEnrollment(ctx, "e1")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Enrollment.TotalLessonCount)
	assert.Equal(t, 1, res.Enrollment.CompletedLessonCount)
	assert.LessOrEqual(t, res.Enrollment.CompletedLessonCount, res.Enrollment.TotalLessonCount)
	require.NoError(t, res.Enrollment.CheckInvariants())
}

func TestEngine_ClosedEnrollmentRejectsActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Catalog().PutQuiz(quiz("quiz-1", "l1"))
	e := f.enroll(t, "e1", "course-1")

	e.Status = enrollment.StatusDropped
	require.NoError(t, f.store.Enrollments().Update(ctx, e))

	_, err := f.eng.MarkComplete(ctx, "e1", "l1")
	assert.True(t, shared.IsInvalidState(err))
	_, err = f.eng.StartAttempt(ctx, "e1", "quiz-1")
	assert.True(t, shared.IsInvalidState(err))
}

func TestEngine_LessonOfAnotherCourse(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "e1", "course-1")

	_, err := f.eng.MarkComplete(context.Background(), "e1", "other-1")
	assert.True(t, shared.IsNotFound(err))
	_, err = f.eng.GetProgress(context.Background(), "e1", "other-1")
	assert.True(t, shared.IsNotFound(err))
}

func TestEngine_GetProgressOfUntouchedLesson(t *testing.T) {
	f := newFixture(t)
	f.enroll(t, "e1", "course-1")

	p, err := f.eng.GetProgress(context.Background(), "e1", "l2")
	require.NoError(t, err)
	assert.Equal(t, progress.StatusNotStarted, p.Status)
	assert.Zero(t, p.TimeSpent)
}

func TestEngine_EnrollmentProgressOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.enroll(t, "e1", "course-1")
	_, err := f.eng.MarkComplete(ctx, "e1", "l2")
	require.NoError(t, err)

	dto, err := f.eng.GetEnrollmentProgress(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, dto.Lessons, 3)
	assert.Equal(t, progress.StatusNotStarted, dto.Lessons[0].Status)
	assert.Equal(t, progress.StatusCompleted, dto.Lessons[1].Status)
	assert.False(t, dto.Stale)

	f.store.Catalog().PutCourse("course-1", "l1", "l2", "l3", "l4")
	dto, err = f.eng.GetEnrollmentProgress(ctx, "e1")
	require.NoError(t, err)
	assert.True(t, dto.Stale)
}

// ═══════════════════════════════════════════════════════════════════════════
// Assessment
// ═══════════════════════════════════════════════════════════════════════════

func TestEngine_AttemptLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := quiz("quiz-1", "l1")
	q.RevealAnswers = true
	f.store.Catalog().PutQuiz(q)
	f.enroll(t, "e1", "course-1")

	started, err := f.eng.StartAttempt(ctx, "e1", "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, 1, started.Attempt.AttemptNumber)
	assert.Len(t, started.Payload.Questions, 2)

	f.clock.Advance(90 * time.Second)
	res, err := f.eng.SubmitAttempt(ctx, started.Attempt.ID, []assessment.Answer{
		assessment.BoolAnswer{QuestionID: "q1", Value: true},
		assessment.TextAnswer{QuestionID: "q2", Text: "  paris "},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Grade.Score)
	assert.True(t, res.Grade.Passed)
	assert.Equal(t, assessment.AttemptGraded, res.Attempt.Status)
	require.NotNil(t, res.Attempt.TimeTaken)
	assert.Equal(t, int64(90), *res.Attempt.TimeTaken)
	assert.Equal(t, 1, f.events.count(shared.EventQuizSubmitted))

	_, err = f.eng.SubmitAttempt(ctx, started.Attempt.ID, nil)
	assert.True(t, shared.IsInvalidState(err))

	history, err := f.eng.ListAttempts(ctx, "e1", "quiz-1")
	require.NoError(t, err)
	require.Len(t, history.Attempts, 1)
	assert.True(t, history.Passed)
	require.NotNil(t, history.BestPercentage)
	assert.Equal(t, 100.0, *history.BestPercentage)
	assert.Nil(t, history.RemainingAttempts)
}

func TestEngine_AttemptLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := quiz("quiz-1", "l1")
	q.MaxAttempts = intp(2)
	f.store.Catalog().PutQuiz(q)
	f.enroll(t, "e1", "course-1")

	for i := 0; i < 2; i++ {
		_, err := f.eng.StartAttempt(ctx, "e1", "quiz-1")
		require.NoError(t, err)
	}
	_, err := f.eng.StartAttempt(ctx, "e1", "quiz-1")

	var limitErr *shared.AttemptLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 2, limitErr.Limit)
	assert.Equal(t, 2, limitErr.Count)
	assert.ErrorIs(t, err, shared.ErrAttemptLimitExceeded)

	history, err := f.eng.ListAttempts(ctx, "e1", "quiz-1")
	require.NoError(t, err)
	require.NotNil(t, history.RemainingAttempts)
	assert.Zero(t, *history.RemainingAttempts)
}

func TestEngine_ConcurrentStartsRespectLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := quiz("quiz-1", "l1")
	q.MaxAttempts = intp(2)
	f.store.Catalog().PutQuiz(q)
	f.enroll(t, "e1", "course-1")

	var (
		wg      sync.WaitGroup
		started atomic.Int32
	)
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.eng.StartAttempt(ctx, "e1", "quiz-1"); err == nil {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	nums, err := f.store.Attempts().AttemptNumbers(ctx, "e1", "quiz-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, nums)
	assert.Equal(t, int32(2), started.Load())
}

func TestEngine_ExpiredAttemptCannotBeSubmitted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := quiz("quiz-1", "l1")
	q.TimeLimit = minutes(10)
	f.store.Catalog().PutQuiz(q)
	f.enroll(t, "e1", "course-1")

	started, err := f.eng.StartAttempt(ctx, "e1", "quiz-1")
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	_, err = f.eng.SubmitAttempt(ctx, started.Attempt.ID, []assessment.Answer{
		assessment.BoolAnswer{QuestionID: "q1", Value: true},
	})
	assert.ErrorIs(t, err, shared.ErrAttemptExpired)
	assert.True(t, shared.IsInvalidState(err))

	a, err := f.store.Attempts().GetByID(ctx, started.Attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.AttemptInProgress, a.Status)
}

func TestEngine_UnpublishedQuiz(t *testing.T) {
	f := newFixture(t)
	q := quiz("quiz-1", "l1")
	q.Published = false
	f.store.Catalog().PutQuiz(q)
	f.enroll(t, "e1", "course-1")

	_, err := f.eng.StartAttempt(context.Background(), "e1", "quiz-1")
	assert.ErrorIs(t, err, shared.ErrQuizNotPublished)
}

func TestEngine_MalformedQuizIsRejected(t *testing.T) {
	f := newFixture(t)
	q := quiz("quiz-1", "l1")
	q.Questions = append(q.Questions, assessment.SingleChoice{
		QuestionBase: assessment.QuestionBase{ID: "q3", Text: "pick one", PointValue: 1},
		Options:      []assessment.Option{{ID: "a", Correct: true}, {ID: "b", Correct: true}},
	})
	f.store.Catalog().PutQuiz(q)
	f.enroll(t, "e1", "course-1")

	_, err := f.eng.StartAttempt(context.Background(), "e1", "quiz-1")
	assert.True(t, shared.IsValidation(err))

	n, err := f.store.Attempts().AttemptNumbers(context.Background(), "e1", "quiz-1")
	require.NoError(t, err)
	assert.Empty(t, n)
}

func TestEngine_QuizOfAnotherCourse(t *testing.T) {
	f := newFixture(t)
	f.store.Catalog().PutQuiz(quiz("quiz-x", "other-1"))
	f.enroll(t, "e1", "course-1")

	_, err := f.eng.StartAttempt(context.Background(), "e1", "quiz-x")
	assert.True(t, shared.IsNotFound(err))
}

func TestEngine_GradeSubmittedRecoversStrandedAttempt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.Catalog().PutQuiz(quiz("quiz-1", "l1"))
	f.enroll(t, "e1", "course-1")

	started, err := f.eng.StartAttempt(ctx, "e1", "quiz-1")
	require.NoError(t, err)

	// Simulate a crash after the submission write.
	a := started.Attempt.Clone()
	require.NoError(t, a.Submit([]assessment.Answer{assessment.BoolAnswer{QuestionID: "q1", Value: false}}, f.clock.Now()))
	require.NoError(t, f.store.Attempts().SaveSubmission(ctx, a))

	res, err := f.eng.GradeSubmitted(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.AttemptGraded, res.Attempt.Status)
	assert.Equal(t, 0, res.Grade.Score)
	assert.False(t, res.Grade.Passed)

	again, err := f.eng.GradeSubmitted(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.AttemptGraded, again.Attempt.Status)
	assert.Equal(t, 1, f.events.count(shared.EventQuizSubmitted))
}

func TestEngine_PayloadHidesCorrectnessBeforeGrading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := quiz("quiz-1", "l1")
	q.RevealAnswers = true
	f.store.Catalog().PutQuiz(q)
	f.enroll(t, "e1", "course-1")

	started, err := f.eng.StartAttempt(ctx, "e1", "quiz-1")
	require.NoError(t, err)

	p, err := f.eng.GetAttemptPayload(ctx, started.Attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, assessment.AttemptInProgress, p.Status)
	assert.Empty(t, p.RevealedAnswers)
	assert.Nil(t, p.Score)
}

func TestNew_RequiresPorts(t *testing.T) {
	_, err := New(Deps{}, Settings{})
	assert.Error(t, err)
}
