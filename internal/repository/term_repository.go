package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/registrar-api/internal/models"
)

// TermRepository reads term reference data.
type TermRepository struct {
	db sqlx.ExtContext
}

// NewTermRepository constructs repository.
func NewTermRepository(db sqlx.ExtContext) *TermRepository {
	return &TermRepository{db: db}
}

// FindByID loads a term.
func (r *TermRepository) FindByID(ctx context.Context, id string) (*models.Term, error) {
	const query = `SELECT id, name, start_date, end_date, enrollment_deadline, closed, standing_processed_at FROM terms WHERE id = $1`
	var term models.Term
	if err := sqlx.GetContext(ctx, r.db, &term, query, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// MarkStandingProcessed stamps the last term-end run.
func (r *TermRepository) MarkStandingProcessed(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE terms SET standing_processed_at = $1 WHERE id = $2`
	res, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("mark term processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("term rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
