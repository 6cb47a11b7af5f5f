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

// GradeRepository persists raw assessment scores and posted finals.
type GradeRepository struct {
	db sqlx.ExtContext
}

// NewGradeRepository constructs repository.
func NewGradeRepository(db sqlx.ExtContext) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert writes a score, replacing any previous score for the same
// enrollment and assessment.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.UpdatedAt.IsZero() {
		grade.UpdatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grades (id, enrollment_id, assessment_id, score, updated_at)
VALUES (:id, :enrollment_id, :assessment_id, :score, :updated_at)
ON CONFLICT (enrollment_id, assessment_id)
DO UPDATE SET score = EXCLUDED.score, updated_at = EXCLUDED.updated_at`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, grade); err != nil {
		return mapError(fmt.Errorf("upsert grade: %w", err))
	}
	return nil
}

// ListByEnrollments returns every score recorded for the given enrollments.
func (r *GradeRepository) ListByEnrollments(ctx context.Context, enrollmentIDs []string) ([]models.Grade, error) {
	if len(enrollmentIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, enrollment_id, assessment_id, score, updated_at FROM grades
WHERE enrollment_id = ANY($1) ORDER BY enrollment_id, assessment_id`
	var grades []models.Grade
	if err := sqlx.SelectContext(ctx, r.db, &grades, query, pq.Array(enrollmentIDs)); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// UpsertFinal writes the authoritative final grade of an enrollment.
func (r *GradeRepository) UpsertFinal(ctx context.Context, final *models.FinalGrade) error {
	if final.PostedAt.IsZero() {
		final.PostedAt = time.Now().UTC()
	}
	const query = `INSERT INTO final_grades (enrollment_id, percentage, letter, points, posted_at)
VALUES (:enrollment_id, :percentage, :letter, :points, :posted_at)
ON CONFLICT (enrollment_id)
DO UPDATE SET percentage = EXCLUDED.percentage, letter = EXCLUDED.letter, points = EXCLUDED.points, posted_at = EXCLUDED.posted_at`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, final); err != nil {
		return mapError(fmt.Errorf("upsert final grade: %w", err))
	}
	return nil
}

// FindFinal loads the posted final of an enrollment.
func (r *GradeRepository) FindFinal(ctx context.Context, enrollmentID string) (*models.FinalGrade, error) {
	const query = `SELECT enrollment_id, percentage, letter, points, posted_at FROM final_grades WHERE enrollment_id = $1`
	var final models.FinalGrade
	if err := sqlx.GetContext(ctx, r.db, &final, query, enrollmentID); err != nil {
		return nil, err
	}
	return &final, nil
}
