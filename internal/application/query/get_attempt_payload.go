package query

import (
	"context"
	"sort"

	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET ATTEMPT PAYLOAD QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetAttemptPayloadQuery identifies an attempt.
type GetAttemptPayloadQuery struct {
	AttemptID string
}

// GetAttemptPayloadHandler renders an attempt for the learner.
type GetAttemptPayloadHandler struct {
	attempts assessment.AttemptRepository
}

// NewGetAttemptPayloadHandler creates a GetAttemptPayloadHandler.
func NewGetAttemptPayloadHandler(attempts assessment.AttemptRepository) *GetAttemptPayloadHandler {
	return &GetAttemptPayloadHandler{attempts: attempts}
}

// Handle returns the attempt in its frozen question order. Correctness is
// never included before grading.
func (h *GetAttemptPayloadHandler) Handle(ctx context.Context, q GetAttemptPayloadQuery) (*assessment.Payload, error) {
	if err := shared.RequireID("assessment", "GetAttemptPayload", "attempt_id", q.AttemptID); err != nil {
		return nil, err
	}
	a, err := h.attempts.GetByID(ctx, q.AttemptID)
	if err != nil {
		return nil, err
	}
	p := assessment.BuildPayload(a)
	return &p, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST ATTEMPTS QUERY
// Attempt history of one learner at one quiz.
// ══════════════════════════════════════════════════════════════════════════════

// ListAttemptsQuery identifies an (enrollment, quiz) pair.
type ListAttemptsQuery struct {
	EnrollmentID string
	QuizID       string
}

// Validate validates the query.
func (q ListAttemptsQuery) Validate() error {
	if err := shared.RequireID("assessment", "ListAttempts", "enrollment_id", q.EnrollmentID); err != nil {
		return err
	}
	return shared.RequireID("assessment", "ListAttempts", "quiz_id", q.QuizID)
}

// AttemptSummary is one history line.
type AttemptSummary struct {
	AttemptID     string                   `json:"attempt_id"`
	AttemptNumber int                      `json:"attempt_number"`
	Status        assessment.AttemptStatus `json:"status"`
	Score         *int                     `json:"score,omitempty"`
	MaxScore      int                      `json:"max_score"`
	Percentage    *float64                 `json:"percentage,omitempty"`
	IsPassed      *bool                    `json:"is_passed,omitempty"`
}

// AttemptHistoryDTO is the result of ListAttemptsQuery.
type AttemptHistoryDTO struct {
	Attempts []AttemptSummary `json:"attempts"`

	// BestPercentage is the highest graded percentage, nil if none graded.
	BestPercentage *float64 `json:"best_percentage,omitempty"`
	Passed         bool     `json:"passed"`

	// RemainingAttempts is nil when the quiz has no limit.
	RemainingAttempts *int `json:"remaining_attempts,omitempty"`
}

// ListAttemptsHandler handles ListAttemptsQuery.
type ListAttemptsHandler struct {
	enrollments enrollment.Repository
	attempts    assessment.AttemptRepository
	catalog     catalog.Reader
}

// NewListAttemptsHandler creates a ListAttemptsHandler.
func NewListAttemptsHandler(enrollments enrollment.Repository, attempts assessment.AttemptRepository, catalogReader catalog.Reader) *ListAttemptsHandler {
	return &ListAttemptsHandler{enrollments: enrollments, attempts: attempts, catalog: catalogReader}
}

// Handle executes the query.
func (h *ListAttemptsHandler) Handle(ctx context.Context, q ListAttemptsQuery) (*AttemptHistoryDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if _, err := h.enrollments.GetByID(ctx, q.EnrollmentID); err != nil {
		return nil, err
	}
	quiz, err := h.catalog.GetQuiz(ctx, q.QuizID)
	if err != nil {
		return nil, err
	}
	list, err := h.attempts.ListByEnrollmentQuiz(ctx, q.EnrollmentID, q.QuizID)
	if err != nil {
		return nil, err
	}
	sort.Slice(list, func(i, j int) bool { return list[i].AttemptNumber < list[j].AttemptNumber })

	out := &AttemptHistoryDTO{Attempts: make([]AttemptSummary, 0, len(list))}
	for _, a := range list {
		s := AttemptSummary{
			AttemptID:     a.ID,
			AttemptNumber: a.AttemptNumber,
			Status:        a.Status,
			MaxScore:      a.MaxScore,
		}
		if res, ok := a.Result(); ok {
			score, pct, passed := res.Score, res.Percentage, res.Passed
			s.Score, s.Percentage, s.IsPassed = &score, &pct, &passed
			if out.BestPercentage == nil || pct > *out.BestPercentage {
				out.BestPercentage = &pct
			}
			out.Passed = out.Passed || passed
		}
		out.Attempts = append(out.Attempts, s)
	}
	if quiz.MaxAttempts != nil {
		left := max(*quiz.MaxAttempts-len(list), 0)
		out.RemainingAttempts = &left
	}
	return out, nil
}
