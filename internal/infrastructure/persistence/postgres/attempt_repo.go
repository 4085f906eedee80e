package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// QUIZ ATTEMPT REPOSITORY IMPLEMENTATION
// The frozen question set and the answers are stored as JSONB documents.
// ══════════════════════════════════════════════════════════════════════════════

// AttemptRepository implements assessment.AttemptRepository for PostgreSQL.
type AttemptRepository struct {
	conn *Connection
}

var _ assessment.AttemptRepository = (*AttemptRepository)(nil)

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(conn *Connection) *AttemptRepository {
	return &AttemptRepository{conn: conn}
}

const attemptColumns = `
	id, enrollment_id, quiz_id, attempt_number, status, started_at,
	submitted_at, graded_at, time_taken, score, max_score, percentage,
	is_passed, time_limit_seconds, passing_score, reveal_answers,
	questions, answers`

// Insert implements assessment.AttemptRepository.
func (r *AttemptRepository) Insert(ctx context.Context, a *assessment.Attempt) error {
	questions, err := assessment.MarshalQuestions(a.Questions)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	answers, err := assessment.MarshalAnswers(a.Answers)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	query := `INSERT INTO quiz_attempts (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.conn.Exec(ctx, query,
		a.ID,
		a.EnrollmentID,
		a.QuizID,
		a.AttemptNumber,
		string(a.Status),
		a.StartedAt,
		a.SubmittedAt,
		a.GradedAt,
		a.TimeTaken,
		a.Score,
		a.MaxScore,
		a.Percentage,
		a.IsPassed,
		limitSeconds(a.TimeLimit),
		a.PassingScore,
		a.RevealAnswers,
		questions,
		answers,
	)
	if err != nil {
		if IsUniqueViolation(err) && constraintOf(err) == "uq_attempt_number" {
			return shared.NewDomainError("assessment", "Insert", shared.ErrConcurrencyConflict,
				fmt.Sprintf("attempt number %d taken", a.AttemptNumber))
		}
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// GetByID implements assessment.AttemptRepository.
func (r *AttemptRepository) GetByID(ctx context.Context, id string) (*assessment.Attempt, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+attemptColumns+` FROM quiz_attempts WHERE id = $1`, id)
	a, err := scanAttempt(row)
	if IsNoRows(err) {
		return nil, shared.NotFound("assessment", "GetAttempt", "attempt %s not found", id)
	}
	return a, err
}

// AttemptNumbers implements assessment.AttemptRepository.
func (r *AttemptRepository) AttemptNumbers(ctx context.Context, enrollmentID, quizID string) ([]int, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT attempt_number FROM quiz_attempts WHERE enrollment_id = $1 AND quiz_id = $2 ORDER BY attempt_number`,
		enrollmentID, quizID)
	if err != nil {
		return nil, fmt.Errorf("attempt numbers: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// ListByEnrollmentQuiz implements assessment.AttemptRepository.
func (r *AttemptRepository) ListByEnrollmentQuiz(ctx context.Context, enrollmentID, quizID string) ([]*assessment.Attempt, error) {
	return r.list(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE enrollment_id = $1 AND quiz_id = $2 ORDER BY attempt_number`,
		enrollmentID, quizID)
}

// ListByStatus implements assessment.AttemptRepository.
func (r *AttemptRepository) ListByStatus(ctx context.Context, status assessment.AttemptStatus, startedBefore time.Time, limit int) ([]*assessment.Attempt, error) {
	return r.list(ctx,
		`SELECT `+attemptColumns+` FROM quiz_attempts
		 WHERE status = $1 AND started_at < $2 ORDER BY started_at LIMIT $3`,
		string(status), startedBefore, limitOrAll(limit))
}

// SaveSubmission implements assessment.AttemptRepository.
func (r *AttemptRepository) SaveSubmission(ctx context.Context, a *assessment.Attempt) error {
	answers, err := assessment.MarshalAnswers(a.Answers)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	tag, err := r.conn.Exec(ctx, `
		UPDATE quiz_attempts SET status = $1, submitted_at = $2, time_taken = $3, answers = $4
		WHERE id = $5 AND status = 'in_progress'`,
		string(a.Status), a.SubmittedAt, a.TimeTaken, answers, a.ID)
	if err != nil {
		return fmt.Errorf("save submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("assessment", "SaveSubmission", shared.ErrConcurrencyConflict, "attempt left in_progress")
	}
	return nil
}

// SaveGrade implements assessment.AttemptRepository.
func (r *AttemptRepository) SaveGrade(ctx context.Context, a *assessment.Attempt) error {
	tag, err := r.conn.Exec(ctx, `
		UPDATE quiz_attempts SET status = $1, graded_at = $2, score = $3, max_score = $4, percentage = $5, is_passed = $6
		WHERE id = $7 AND status = 'submitted'`,
		string(a.Status), a.GradedAt, a.Score, a.MaxScore, a.Percentage, a.IsPassed, a.ID)
	if err != nil {
		return fmt.Errorf("save grade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("assessment", "SaveGrade", shared.ErrConcurrencyConflict, "attempt left submitted")
	}
	return nil
}

func (r *AttemptRepository) list(ctx context.Context, query string, args ...any) ([]*assessment.Attempt, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []*assessment.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAttempt(row pgx.Row) (*assessment.Attempt, error) {
	var (
		a           assessment.Attempt
		status      string
		limitSecs   *int64
		questionDoc []byte
		answerDoc   []byte
	)
	err := row.Scan(
		&a.ID,
		&a.EnrollmentID,
		&a.QuizID,
		&a.AttemptNumber,
		&status,
		&a.StartedAt,
		&a.SubmittedAt,
		&a.GradedAt,
		&a.TimeTaken,
		&a.Score,
		&a.MaxScore,
		&a.Percentage,
		&a.IsPassed,
		&limitSecs,
		&a.PassingScore,
		&a.RevealAnswers,
		&questionDoc,
		&answerDoc,
	)
	if err != nil {
		return nil, err
	}
	a.Status = assessment.AttemptStatus(status)
	if limitSecs != nil {
		d := time.Duration(*limitSecs) * time.Second
		a.TimeLimit = &d
	}
	if a.Questions, err = assessment.UnmarshalQuestions(questionDoc); err != nil {
		return nil, fmt.Errorf("attempt %s questions: %w", a.ID, err)
	}
	if a.Answers, err = assessment.UnmarshalAnswers(answerDoc); err != nil {
		return nil, fmt.Errorf("attempt %s answers: %w", a.ID, err)
	}
	return &a, nil
}

// limitSeconds is exact: Quiz.Validate only admits whole-second limits.
func limitSeconds(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	s := int64(*d / time.Second)
	return &s
}
