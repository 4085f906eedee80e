package enrollment

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

func newActive(t *testing.T) *Enrollment {
	t.Helper()
	e, err := New("enr-1", "learner-1", "course-1", t0)
	require.NoError(t, err)
	return e
}

func TestNew_RequiresIDs(t *testing.T) {
	_, err := New("", "learner", "course", t0)
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	_, err = New("id", "learner", " ", t0)
	assert.ErrorIs(t, err, shared.ErrInvalidID)

	e, err := New("id", "learner", "course", t0)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, e.Status)
	assert.Equal(t, t0, e.StartedAt)
	assert.NoError(t, e.CheckInvariants())
}

func TestComputeRollUp(t *testing.T) {
	rows := []LessonSnapshot{
		{LessonID: "a", Completed: true, TimeSpent: 30},
		{LessonID: "b", Completed: false, TimeSpent: 20},
		{LessonID: "gone", Completed: true, TimeSpent: 10},
	}

	r := ComputeRollUp([]string{"a", "b", "c"}, rows)
	assert.Equal(t, 3, r.TotalLessons)
	assert.Equal(t, 1, r.CompletedLessons, "rows for removed lessons do not count")
	assert.Equal(t, int64(60), r.TotalTimeSpent, "time spent sums every row")
}

func TestComputeRollUp_DuplicateLessonIDs(t *testing.T) {
	r := ComputeRollUp([]string{"a", "a", "b"}, []LessonSnapshot{{LessonID: "a", Completed: true}})
	assert.Equal(t, 2, r.TotalLessons)
	assert.Equal(t, 1, r.CompletedLessons)
}

func TestApplyRollUp_CompletesOnce(t *testing.T) {
	e := newActive(t)
	later := t0.Add(time.Hour)

	assert.False(t, e.ApplyRollUp(RollUp{TotalLessons: 2, CompletedLessons: 1, TotalTimeSpent: 40}, later))
	assert.Equal(t, 50.0, e.ProgressPercentage)
	assert.Equal(t, StatusActive, e.Status)
	assert.Nil(t, e.CompletedAt)

	assert.True(t, e.ApplyRollUp(RollUp{TotalLessons: 2, CompletedLessons: 2, TotalTimeSpent: 90}, later))
	assert.Equal(t, StatusCompleted, e.Status)
	require.NotNil(t, e.CompletedAt)
	assert.Equal(t, later, *e.CompletedAt)
	assert.Equal(t, 100.0, e.ProgressPercentage)

	assert.False(t, e.ApplyRollUp(RollUp{TotalLessons: 2, CompletedLessons: 2, TotalTimeSpent: 95}, later.Add(time.Minute)),
		"second full recompute is not a new transition")
	assert.Equal(t, later, *e.CompletedAt)
	assert.NoError(t, e.CheckInvariants())
}

func TestApplyRollUp_CompletionIsMonotonic(t *testing.T) {
	e := newActive(t)
	require.True(t, e.ApplyRollUp(RollUp{TotalLessons: 1, CompletedLessons: 1}, t0))

	// A lesson was added to the course.
	assert.False(t, e.ApplyRollUp(RollUp{TotalLessons: 2, CompletedLessons: 1}, t0.Add(time.Hour)))
	assert.Equal(t, StatusCompleted, e.Status)
	assert.Equal(t, 50.0, e.ProgressPercentage)
	assert.Equal(t, 2, e.TotalLessonCount)
	assert.NoError(t, e.CheckInvariants())
}

func TestApplyRollUp_EmptyCourseNeverCompletes(t *testing.T) {
	e := newActive(t)
	assert.False(t, e.ApplyRollUp(RollUp{}, t0))
	assert.Equal(t, StatusActive, e.Status)
	assert.Equal(t, 0.0, e.ProgressPercentage)
}

func TestApplyRollUp_ClosedStatusIsKept(t *testing.T) {
	for _, st := range []Status{StatusDropped, StatusExpired} {
		e := newActive(t)
		e.Status = st
		assert.False(t, e.ApplyRollUp(RollUp{TotalLessons: 1, CompletedLessons: 1, TotalTimeSpent: 5}, t0))
		assert.Equal(t, st, e.Status)
		assert.Equal(t, 100.0, e.ProgressPercentage, "roll-ups still refresh")
		assert.Nil(t, e.CompletedAt)
	}
}

func TestApplyRollUp_ClampsCompletedToTotal(t *testing.T) {
	e := newActive(t)
	e.ApplyRollUp(RollUp{TotalLessons: 1, CompletedLessons: 3}, t0)
	assert.Equal(t, 1, e.CompletedLessonCount)
	assert.NoError(t, e.CheckInvariants())
}

func TestApplyRollUp_RoundsHalfUp(t *testing.T) {
	e := newActive(t)
	e.ApplyRollUp(RollUp{TotalLessons: 3, CompletedLessons: 2}, t0)
	assert.Equal(t, 66.67, e.ProgressPercentage)

	e.ApplyRollUp(RollUp{TotalLessons: 3, CompletedLessons: 1}, t0)
	assert.Equal(t, 33.33, e.ProgressPercentage)

	e.ApplyRollUp(RollUp{TotalLessons: 8, CompletedLessons: 1}, t0)
	assert.Equal(t, 12.5, e.ProgressPercentage)
}

func TestRecordCertificate_FirstWins(t *testing.T) {
	e := newActive(t)
	assert.True(t, e.RecordCertificate(t0))
	assert.False(t, e.RecordCertificate(t0.Add(time.Hour)))
	assert.Equal(t, t0, *e.CertificateIssuedAt)
}

func TestClone_IsDeep(t *testing.T) {
	e := newActive(t)
	e.ApplyRollUp(RollUp{TotalLessons: 1, CompletedLessons: 1}, t0)
	c := e.Clone()
	*c.CompletedAt = t0.Add(time.Hour)
	assert.Equal(t, t0, *e.CompletedAt)
}

func TestStatus(t *testing.T) {
	assert.True(t, StatusDropped.IsClosed())
	assert.True(t, StatusExpired.IsClosed())
	assert.False(t, StatusCompleted.IsClosed())
	assert.False(t, Status("paused").IsValid())
}

func TestComputeRollUp_TimeSaturates(t *testing.T) {
	r := ComputeRollUp([]string{"l1", "l2"}, []LessonSnapshot{
		{LessonID: "l1", TimeSpent: math.MaxInt64},
		{LessonID: "l2", TimeSpent: 10},
	})
	assert.Equal(t, int64(math.MaxInt64), r.TotalTimeSpent)

	e, err := New("e1", "u1", "c1", t0)
	require.NoError(t, err)
	e.ApplyRollUp(r, t0)
	assert.NoError(t, e.CheckInvariants())
}
