package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/learning-engine/internal/domain/enrollment"
	"github.com/alem-hub/learning-engine/internal/domain/shared"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EnrollmentRepository implements enrollment.Repository for PostgreSQL.
type EnrollmentRepository struct {
	conn *Connection
}

var _ enrollment.Repository = (*EnrollmentRepository)(nil)

// NewEnrollmentRepository creates a new EnrollmentRepository.
func NewEnrollmentRepository(conn *Connection) *EnrollmentRepository {
	return &EnrollmentRepository{conn: conn}
}

const enrollmentColumns = `
	id, learner_id, course_id, status, progress_percentage,
	completed_lesson_count, total_lesson_count, total_time_spent,
	last_accessed_at, started_at, completed_at, certificate_issued_at, version`

// Create implements enrollment.Repository.
func (r *EnrollmentRepository) Create(ctx context.Context, e *enrollment.Enrollment) error {
	query := `INSERT INTO enrollments (` + enrollmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 1)`

	_, err := r.conn.Exec(ctx, query,
		e.ID,
		e.LearnerID,
		e.CourseID,
		string(e.Status),
		e.ProgressPercentage,
		e.CompletedLessonCount,
		e.TotalLessonCount,
		e.TotalTimeSpent,
		e.LastAccessedAt,
		e.StartedAt,
		e.CompletedAt,
		e.CertificateIssuedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.NewDomainError("enrollment", "Create", shared.ErrAlreadyExists, "enrollment "+e.ID+" exists")
		}
		return fmt.Errorf("create enrollment: %w", err)
	}
	e.Version = 1
	return nil
}

// GetByID implements enrollment.Repository.
func (r *EnrollmentRepository) GetByID(ctx context.Context, id string) (*enrollment.Enrollment, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+enrollmentColumns+` FROM enrollments WHERE id = $1`, id)
	e, err := scanEnrollment(row)
	if IsNoRows(err) {
		return nil, shared.NotFound("enrollment", "GetByID", "enrollment %s not found", id)
	}
	return e, err
}

// Update implements enrollment.Repository.
func (r *EnrollmentRepository) Update(ctx context.Context, e *enrollment.Enrollment) error {
	query := `
		UPDATE enrollments SET
			status = $1,
			progress_percentage = $2,
			completed_lesson_count = $3,
			total_lesson_count = $4,
			total_time_spent = $5,
			last_accessed_at = $6,
			completed_at = $7,
			certificate_issued_at = $8,
			version = version + 1
		WHERE id = $9 AND version = $10
	`
	tag, err := r.conn.Exec(ctx, query,
		string(e.Status),
		e.ProgressPercentage,
		e.CompletedLessonCount,
		e.TotalLessonCount,
		e.TotalTimeSpent,
		e.LastAccessedAt,
		e.CompletedAt,
		e.CertificateIssuedAt,
		e.ID,
		e.Version,
	)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missOrConflict(ctx, e.ID)
	}
	e.Version++
	return nil
}

func (r *EnrollmentRepository) missOrConflict(ctx context.Context, id string) error {
	var one int
	err := r.conn.QueryRow(ctx, `SELECT 1 FROM enrollments WHERE id = $1`, id).Scan(&one)
	if IsNoRows(err) {
		return shared.NotFound("enrollment", "Update", "enrollment %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return shared.NewDomainError("enrollment", "Update", shared.ErrConcurrencyConflict, "version moved")
}

// ListAwaitingCertificate implements enrollment.Repository.
func (r *EnrollmentRepository) ListAwaitingCertificate(ctx context.Context, completedBefore time.Time, limit int) ([]*enrollment.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + `
		FROM enrollments
		WHERE status = 'completed' AND certificate_issued_at IS NULL AND completed_at < $1
		ORDER BY completed_at
		LIMIT $2`

	rows, err := r.conn.Query(ctx, query, completedBefore, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("list awaiting certificate: %w", err)
	}
	defer rows.Close()

	var out []*enrollment.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEnrollment(row pgx.Row) (*enrollment.Enrollment, error) {
	var (
		e      enrollment.Enrollment
		status string
	)
	err := row.Scan(
		&e.ID,
		&e.LearnerID,
		&e.CourseID,
		&status,
		&e.ProgressPercentage,
		&e.CompletedLessonCount,
		&e.TotalLessonCount,
		&e.TotalTimeSpent,
		&e.LastAccessedAt,
		&e.StartedAt,
		&e.CompletedAt,
		&e.CertificateIssuedAt,
		&e.Version,
	)
	if err != nil {
		return nil, err
	}
	e.Status = enrollment.Status(status)
	return &e, nil
}

// limitOrAll maps a non-positive limit to no limit.
func limitOrAll(limit int) *int {
	if limit <= 0 {
		return nil
	}
	return &limit
}
