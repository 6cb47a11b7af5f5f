package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

// StandingRepository persists academic standing per student and term.
type StandingRepository struct {
	db sqlx.ExtContext
}

// NewStandingRepository constructs repository.
func NewStandingRepository(db sqlx.ExtContext) *StandingRepository {
	return &StandingRepository{db: db}
}

// Upsert writes the standing of a student for a term.
func (r *StandingRepository) Upsert(ctx context.Context, record *models.StandingRecord) error {
	const query = `INSERT INTO standing_records (student_id, term_id, gpa, credits, standing, processed_at)
VALUES (:student_id, :term_id, :gpa, :credits, :standing, :processed_at)
ON CONFLICT (student_id, term_id)
DO UPDATE SET gpa = EXCLUDED.gpa, credits = EXCLUDED.credits, standing = EXCLUDED.standing, processed_at = EXCLUDED.processed_at`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, record); err != nil {
		return mapError(fmt.Errorf("upsert standing: %w", err))
	}
	return nil
}

// ListByTerm returns the standings of a term.
func (r *StandingRepository) ListByTerm(ctx context.Context, termID string) ([]models.StandingRecord, error) {
	const query = `SELECT student_id, term_id, gpa, credits, standing, processed_at FROM standing_records
WHERE term_id = $1 ORDER BY student_id`
	var records []models.StandingRecord
	if err := sqlx.SelectContext(ctx, r.db, &records, query, termID); err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	return records, nil
}
