package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/certificate"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/progress"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

var t0 = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func TestEnrollments_StaleVersionConflicts(t *testing.T) {
	ctx := context.Background()
	s := New()
	e, err := enrollment.New("enr-1", "learner-1", "course-1", t0)
	require.NoError(t, err)
	require.NoError(t, s.Enrollments().Create(ctx, e))
	assert.ErrorIs(t, s.Enrollments().Create(ctx, e), shared.ErrAlreadyExists)

	a, _ := s.Enrollments().GetByID(ctx, "enr-1")
	b, _ := s.Enrollments().GetByID(ctx, "enr-1")
	require.NoError(t, s.Enrollments().Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)
	assert.ErrorIs(t, s.Enrollments().Update(ctx, b), shared.ErrConcurrencyConflict)

	// returned values are copies
	a.LearnerID = "changed"
	got, err := s.Enrollments().GetByID(ctx, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, "learner-1", got.LearnerID)
}

func TestProgress_InsertIsUniquePerPair(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Progress().Insert(ctx, progress.New("lp-1", "enr-1", "l1", t0)))
	assert.ErrorIs(t, s.Progress().Insert(ctx, progress.New("lp-2", "enr-1", "l1", t0)), shared.ErrConcurrencyConflict)

	_, err := s.Progress().Get(ctx, "enr-1", "l2")
	assert.True(t, shared.IsNotFound(err))
}

func TestAttempts_StatusGuardedTransitions(t *testing.T) {
	ctx := context.Background()
	s := New()
	a := &assessment.Attempt{ID: "att-1", EnrollmentID: "enr-1", QuizID: "quiz-1", AttemptNumber: 1, Status: assessment.AttemptInProgress, StartedAt: t0}
	require.NoError(t, s.Attempts().Insert(ctx, a))

	dup := *a
	dup.ID = "att-2"
	assert.ErrorIs(t, s.Attempts().Insert(ctx, &dup), shared.ErrConcurrencyConflict)

	a.Status = assessment.AttemptSubmitted
	require.NoError(t, s.Attempts().SaveSubmission(ctx, a))
	assert.ErrorIs(t, s.Attempts().SaveSubmission(ctx, a), shared.ErrConcurrencyConflict)

	a.Status = assessment.AttemptGraded
	require.NoError(t, s.Attempts().SaveGrade(ctx, a))
	assert.ErrorIs(t, s.Attempts().SaveGrade(ctx, a), shared.ErrConcurrencyConflict)
}

func TestCertificates_SingleActiveClaim(t *testing.T) {
	ctx := context.Background()
	s := New()
	certs := s.Certificates()

	require.NoError(t, certs.Claim(ctx, certificate.NewClaim("c1", "enr-1", "learner-1", "course-1", t0)))
	assert.ErrorIs(t, certs.Claim(ctx, certificate.NewClaim("c2", "enr-1", "learner-1", "course-1", t0)), shared.ErrCertificateExists)

	require.NoError(t, certs.MarkFailed(ctx, "c1", "timeout", t0))
	assert.True(t, shared.IsInvalidState(certs.MarkIssued(ctx, "c1", "ext", t0)))

	require.NoError(t, certs.Claim(ctx, certificate.NewClaim("c2", "enr-1", "learner-1", "course-1", t0)))
	assert.Len(t, certs.All("enr-1"), 2)
}
