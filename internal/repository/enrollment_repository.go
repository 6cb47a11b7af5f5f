package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/registrar-api/internal/models"
)

const enrollmentColumns = `id, student_id, section_id, course_id, term_id, status, created_at, dropped_at, completed_at`

// EnrollmentRepository persists enrollments.
type EnrollmentRepository struct {
	db sqlx.ExtContext
}

// NewEnrollmentRepository constructs repository.
func NewEnrollmentRepository(db sqlx.ExtContext) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create inserts an enrollment. A second open enrollment for the same
// student and course violates a partial unique index and maps to ErrDuplicate.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (` + enrollmentColumns + `)
VALUES (:id, :student_id, :section_id, :course_id, :term_id, :status, :created_at, :dropped_at, :completed_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, enrollment); err != nil {
		return mapError(fmt.Errorf("insert enrollment: %w", err))
	}
	return nil
}

// FindByID loads an enrollment.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.db, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindOpenByStudentCourse returns the student's non-dropped enrollment for a
// course, or sql.ErrNoRows.
func (r *EnrollmentRepository) FindOpenByStudentCourse(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments
WHERE student_id = $1 AND course_id = $2 AND status <> $3 LIMIT 1`
	var enrollment models.Enrollment
	if err := sqlx.GetContext(ctx, r.db, &enrollment, query, studentID, courseID, models.EnrollmentStatusDropped); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// ListActiveByStudentTerm returns the student's ACTIVE enrollments in a term.
func (r *EnrollmentRepository) ListActiveByStudentTerm(ctx context.Context, studentID, termID string) ([]models.Enrollment, error) {
	const query = `SELECT ` + enrollmentColumns + ` FROM enrollments
WHERE student_id = $1 AND term_id = $2 AND status = $3 ORDER BY created_at, id`
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.db, &enrollments, query, studentID, termID, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list student term enrollments: %w", err)
	}
	return enrollments, nil
}

// ListBySection returns a section's enrollments, optionally filtered by status.
func (r *EnrollmentRepository) ListBySection(ctx context.Context, sectionID string, statuses ...models.EnrollmentStatus) ([]models.Enrollment, error) {
	query := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE section_id = $1`
	args := []interface{}{sectionID}
	if len(statuses) > 0 {
		raw := make([]string, len(statuses))
		for i, s := range statuses {
			raw[i] = string(s)
		}
		query += ` AND status = ANY($2)`
		args = append(args, pq.Array(raw))
	}
	query += ` ORDER BY created_at, id`
	var enrollments []models.Enrollment
	if err := sqlx.SelectContext(ctx, r.db, &enrollments, query, args...); err != nil {
		return nil, fmt.Errorf("list section enrollments: %w", err)
	}
	return enrollments, nil
}

// ListWaitlist returns the section's waitlist in FIFO order.
func (r *EnrollmentRepository) ListWaitlist(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	return r.ListBySection(ctx, sectionID, models.EnrollmentStatusWaitlisted)
}

// TransitionStatus moves an enrollment from one status to another. It fails
// with ErrStaleVersion when the enrollment is no longer in from.
func (r *EnrollmentRepository) TransitionStatus(ctx context.Context, id string, from, to models.EnrollmentStatus, at time.Time) error {
	query := `UPDATE enrollments SET status = $1 WHERE id = $2 AND status = $3`
	switch to {
	case models.EnrollmentStatusDropped:
		query = `UPDATE enrollments SET status = $1, dropped_at = $4 WHERE id = $2 AND status = $3`
	case models.EnrollmentStatusCompleted:
		query = `UPDATE enrollments SET status = $1, completed_at = $4 WHERE id = $2 AND status = $3`
	}
	args := []interface{}{to, id, from}
	if to == models.EnrollmentStatusDropped || to == models.EnrollmentStatusCompleted {
		args = append(args, at)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(fmt.Errorf("transition enrollment: %w", err))
	}
	return rowsAffected(res, "transition enrollment")
}
