package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

const assessmentColumns = `id, section_id, title, weight, total_points, due_date, created_at`

// AssessmentRepository persists section assessments.
type AssessmentRepository struct {
	db sqlx.ExtContext
}

// NewAssessmentRepository constructs repository.
func NewAssessmentRepository(db sqlx.ExtContext) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Create inserts an assessment.
func (r *AssessmentRepository) Create(ctx context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assessments (` + assessmentColumns + `)
VALUES (:id, :section_id, :title, :weight, :total_points, :due_date, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, assessment); err != nil {
		return mapError(fmt.Errorf("insert assessment: %w", err))
	}
	return nil
}

// FindByID loads an assessment.
func (r *AssessmentRepository) FindByID(ctx context.Context, id string) (*models.Assessment, error) {
	const query = `SELECT ` + assessmentColumns + ` FROM assessments WHERE id = $1`
	var assessment models.Assessment
	if err := sqlx.GetContext(ctx, r.db, &assessment, query, id); err != nil {
		return nil, err
	}
	return &assessment, nil
}

// ListBySection returns a section's assessments in creation order.
func (r *AssessmentRepository) ListBySection(ctx context.Context, sectionID string) ([]models.Assessment, error) {
	const query = `SELECT ` + assessmentColumns + ` FROM assessments WHERE section_id = $1 ORDER BY created_at, id`
	var assessments []models.Assessment
	if err := sqlx.SelectContext(ctx, r.db, &assessments, query, sectionID); err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	return assessments, nil
}
