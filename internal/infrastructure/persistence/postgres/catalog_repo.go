package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/assessment"
	"github.com/alem-hub/learning-engine/internal/domain/catalog"
	"github.com/alem-hub/learning-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG READER
// Read-only access to the catalog tables.
// ══════════════════════════════════════════════════════════════════════════════

// CatalogReader implements catalog.Reader for PostgreSQL.
type CatalogReader struct {
	conn *Connection
}

var _ catalog.Reader = (*CatalogReader)(nil)

// NewCatalogReader creates a new CatalogReader.
func NewCatalogReader(conn *Connection) *CatalogReader {
	return &CatalogReader{conn: conn}
}

// LessonIDs implements catalog.Reader.
func (r *CatalogReader) LessonIDs(ctx context.Context, courseID string) ([]string, error) {
	var exists bool
	if err := r.conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM courses WHERE id = $1)`, courseID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("lookup course: %w", err)
	}
	if !exists {
		return nil, shared.NotFound("catalog", "LessonIDs", "course %s not found", courseID)
	}

	rows, err := r.conn.Query(ctx, `SELECT id FROM lessons WHERE course_id = $1 ORDER BY position, id`, courseID)
	if err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// CourseOfLesson implements catalog.Reader.
func (r *CatalogReader) CourseOfLesson(ctx context.Context, lessonID string) (string, error) {
	var course string
	err := r.conn.QueryRow(ctx, `SELECT course_id FROM lessons WHERE id = $1`, lessonID).Scan(&course)
	if IsNoRows(err) {
		return "", shared.NotFound("catalog", "CourseOfLesson", "lesson %s not found", lessonID)
	}
	if err != nil {
		return "", fmt.Errorf("lookup lesson: %w", err)
	}
	return course, nil
}

// GetQuiz implements catalog.Reader.
func (r *CatalogReader) GetQuiz(ctx context.Context, quizID string) (*assessment.Quiz, error) {
	var (
		q         assessment.Quiz
		limitSecs *int64
		doc       []byte
	)
	err := r.conn.QueryRow(ctx, `
		SELECT id, lesson_id, title, published, passing_score, max_attempts, time_limit_seconds,
		       shuffle_questions, shuffle_options, reveal_answers, questions
		FROM quizzes WHERE id = $1`, quizID).Scan(
		&q.ID,
		&q.LessonID,
		&q.Title,
		&q.Published,
		&q.PassingScore,
		&q.MaxAttempts,
		&limitSecs,
		&q.ShuffleQuestions,
		&q.ShuffleOptions,
		&q.RevealAnswers,
		&doc,
	)
	if IsNoRows(err) {
		return nil, shared.NotFound("catalog", "GetQuiz", "quiz %s not found", quizID)
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if limitSecs != nil {
		d := time.Duration(*limitSecs) * time.Second
		q.TimeLimit = &d
	}
	if q.Questions, err = assessment.UnmarshalQuestions(doc); err != nil {
		return nil, fmt.Errorf("quiz %s questions: %w", quizID, err)
	}
	return &q, nil
}
