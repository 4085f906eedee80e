package assessment

import (
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/shared"
	"github.com/alem-hub/learning-engine/pkg/timeutil"
)

// AttemptStatus is the state of an attempt: in_progress -> submitted -> graded.
type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptGraded     AttemptStatus = "graded"
)

// Attempt is one pass by a learner at a quiz, scoped to an enrollment.
// Only an in_progress attempt is mutable.
type Attempt struct {
	ID            string
	EnrollmentID  string
	QuizID        string
	AttemptNumber int
	Status        AttemptStatus

	StartedAt   time.Time
	SubmittedAt *time.Time
	GradedAt    *time.Time
	TimeTaken   *int64 // seconds

	Score      int
	MaxScore   int
	Percentage float64
	IsPassed   *bool

	// Settings captured from the quiz at start.
	TimeLimit     *time.Duration
	PassingScore  float64
	RevealAnswers bool

	// Questions is the frozen set, in the order the learner sees it,
	// including correctness.
	Questions []Question
	Answers   []Answer
}

// StartParams are the inputs for a new attempt.
type StartParams struct {
	ID            string
	EnrollmentID  string
	AttemptNumber int
	Quiz          *Quiz
	Now           time.Time
}

// NewAttempt freezes the quiz for a new in-progress attempt. max_score is
// fixed here; later quiz edits do not change it.
func NewAttempt(p StartParams) *Attempt {
	q := p.Quiz
	questions := FreezeQuestions(p.ID, q.Questions, q.ShuffleQuestions, q.ShuffleOptions)
	a := &Attempt{
		ID:            p.ID,
		EnrollmentID:  p.EnrollmentID,
		QuizID:        q.ID,
		AttemptNumber: p.AttemptNumber,
		Status:        AttemptInProgress,
		StartedAt:     p.Now,
		MaxScore:      MaxScore(questions),
		PassingScore:  q.PassingScore,
		RevealAnswers: q.RevealAnswers,
		Questions:     questions,
	}
	if q.TimeLimit != nil {
		d := *q.TimeLimit
		a.TimeLimit = &d
	}
	return a
}

// NextAttemptNumber returns the smallest positive integer not in used.
func NextAttemptNumber(used []int) int {
	taken := make(map[int]struct{}, len(used))
	for _, n := range used {
		taken[n] = struct{}{}
	}
	for n := 1; ; n++ {
		if _, ok := taken[n]; !ok {
			return n
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRY
// ══════════════════════════════════════════════════════════════════════════════

// IsExpired reports whether an attempt started at startedAt with the given
// limit has run out of time at now. Untimed attempts never expire. The
// deadline itself is still in time.
func IsExpired(startedAt time.Time, limit *time.Duration, now time.Time) bool {
	if limit == nil {
		return false
	}
	return now.After(startedAt.Add(*limit))
}

// Deadline returns the submission deadline of a timed attempt.
func (a *Attempt) Deadline() (time.Time, bool) {
	if a.TimeLimit == nil {
		return time.Time{}, false
	}
	return a.StartedAt.Add(*a.TimeLimit), true
}

// IsExpired applies the package-level predicate to this attempt.
func (a *Attempt) IsExpired(now time.Time) bool {
	return IsExpired(a.StartedAt, a.TimeLimit, now)
}

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Submit records the learner's answers and moves the attempt to submitted.
// Answers are kept verbatim. Fails with shared.ErrInvalidState unless the
// attempt is in progress, and with shared.ErrAttemptExpired when the time
// limit has elapsed.
func (a *Attempt) Submit(answers []Answer, now time.Time) error {
	const op = "SubmitAttempt"
	if a.Status != AttemptInProgress {
		return shared.InvalidState("assessment", op, "attempt %s is %s", a.ID, a.Status)
	}
	if a.IsExpired(now) {
		return shared.WrapError("assessment", op, shared.ErrInvalidState, "attempt "+a.ID+" passed its time limit", shared.ErrAttemptExpired)
	}

	at := now
	taken := timeutil.SecondsBetween(a.StartedAt, now)
	a.SubmittedAt = &at
	a.TimeTaken = &taken
	a.Answers = cloneAnswers(answers)
	a.Status = AttemptSubmitted
	return nil
}

// ApplyGrade grades the stored answers against the frozen set and moves the
// attempt from submitted to graded.
func (a *Attempt) ApplyGrade(now time.Time) (GradeResult, error) {
	if a.Status != AttemptSubmitted {
		return GradeResult{}, shared.InvalidState("assessment", "GradeAttempt", "attempt %s is %s", a.ID, a.Status)
	}
	res := Grade(a.Questions, a.Answers, a.PassingScore)

	at := now
	passed := res.Passed
	a.Score = res.Score
	a.MaxScore = res.MaxScore
	a.Percentage = res.Percentage
	a.IsPassed = &passed
	a.GradedAt = &at
	a.Status = AttemptGraded
	return res, nil
}

// Result re-derives the grading breakdown of a graded attempt.
func (a *Attempt) Result() (GradeResult, bool) {
	if a.Status != AttemptGraded {
		return GradeResult{}, false
	}
	return Grade(a.Questions, a.Answers, a.PassingScore), true
}

// Clone returns a deep copy.
func (a *Attempt) Clone() *Attempt {
	c := *a
	c.Questions = make([]Question, len(a.Questions))
	for i, q := range a.Questions {
		c.Questions[i] = cloneQuestion(q)
	}
	c.Answers = cloneAnswers(a.Answers)
	if a.SubmittedAt != nil {
		t := *a.SubmittedAt
		c.SubmittedAt = &t
	}
	if a.GradedAt != nil {
		t := *a.GradedAt
		c.GradedAt = &t
	}
	if a.TimeTaken != nil {
		v := *a.TimeTaken
		c.TimeTaken = &v
	}
	if a.IsPassed != nil {
		v := *a.IsPassed
		c.IsPassed = &v
	}
	if a.TimeLimit != nil {
		v := *a.TimeLimit
		c.TimeLimit = &v
	}
	return &c
}
