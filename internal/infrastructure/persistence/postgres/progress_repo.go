package postgres

import (
	"context"
	"fmt"

	"github.com/alem-hub/learning-engine/internal/domain/progress"
	"github.com/alem-hub/learning-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS LEDGER REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements progress.Repository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

var _ progress.Repository = (*ProgressRepository)(nil)

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `
	id, enrollment_id, lesson_id, status, time_spent, last_position,
	completion_fraction, started_at, completed_at, updated_at, version`

// Get implements progress.Repository.
func (r *ProgressRepository) Get(ctx context.Context, enrollmentID, lessonID string) (*progress.LessonProgress, error) {
	row := r.conn.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM lesson_progress WHERE enrollment_id = $1 AND lesson_id = $2`,
		enrollmentID, lessonID)
	p, err := scanProgress(row)
	if IsNoRows(err) {
		return nil, shared.NotFound("progress", "Get", "no progress for lesson %s", lessonID)
	}
	return p, err
}

// Insert implements progress.Repository. A racing insert of the same pair
// hits uq_lesson_progress_pair and is reported as a conflict so the caller
// re-reads and updates instead.
func (r *ProgressRepository) Insert(ctx context.Context, p *progress.LessonProgress) error {
	query := `INSERT INTO lesson_progress (` + progressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1)`

	_, err := r.conn.Exec(ctx, query,
		p.ID,
		p.EnrollmentID,
		p.LessonID,
		string(p.Status),
		p.TimeSpent,
		p.LastPosition,
		p.CompletionFraction,
		p.StartedAt,
		p.CompletedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("progress", "Insert", shared.ErrConcurrencyConflict, "row created concurrently")
		}
		return fmt.Errorf("insert lesson progress: %w", err)
	}
	p.Version = 1
	return nil
}

// Update implements progress.Repository.
func (r *ProgressRepository) Update(ctx context.Context, p *progress.LessonProgress) error {
	query := `
		UPDATE lesson_progress SET
			status = $1,
			time_spent = $2,
			last_position = $3,
			completion_fraction = $4,
			completed_at = $5,
			updated_at = $6,
			version = version + 1
		WHERE id = $7 AND version = $8
	`
	tag, err := r.conn.Exec(ctx, query,
		string(p.Status),
		p.TimeSpent,
		p.LastPosition,
		p.CompletionFraction,
		p.CompletedAt,
		p.UpdatedAt,
		p.ID,
		p.Version,
	)
	if err != nil {
		return fmt.Errorf("update lesson progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("progress", "Update", shared.ErrConcurrencyConflict, "version moved")
	}
	p.Version++
	return nil
}

// ListByEnrollment implements progress.Repository.
func (r *ProgressRepository) ListByEnrollment(ctx context.Context, enrollmentID string) ([]*progress.LessonProgress, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+progressColumns+` FROM lesson_progress WHERE enrollment_id = $1 ORDER BY started_at, id`,
		enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("list lesson progress: %w", err)
	}
	defer rows.Close()

	var out []*progress.LessonProgress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProgress(row pgx.Row) (*progress.LessonProgress, error) {
	var (
		p      progress.LessonProgress
		status string
	)
	err := row.Scan(
		&p.ID,
		&p.EnrollmentID,
		&p.LessonID,
		&status,
		&p.TimeSpent,
		&p.LastPosition,
		&p.CompletionFraction,
		&p.StartedAt,
		&p.CompletedAt,
		&p.UpdatedAt,
		&p.Version,
	)
	if err != nil {
		return nil, err
	}
	p.Status = progress.Status(status)
	return &p, nil
}
