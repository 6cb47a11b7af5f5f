package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/registrar-api/internal/models"
)

// AuditRepository appends audit trail entries.
type AuditRepository struct {
	db sqlx.ExtContext
}

// NewAuditRepository constructs repository.
func NewAuditRepository(db sqlx.ExtContext) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts entry.
func (r *AuditRepository) Record(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if len(entry.Details) == 0 {
		entry.Details = types.JSONText(`{}`)
	}
	const query = `INSERT INTO audit_logs (id, actor_id, action, entity, entity_id, details, created_at)
VALUES (:id, :actor_id, :action, :entity, :entity_id, :details, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.db, query, entry); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns the trail of one entity, oldest first.
func (r *AuditRepository) ListByEntity(ctx context.Context, entity, entityID string) ([]models.AuditEntry, error) {
	const query = `SELECT id, actor_id, action, entity, entity_id, details, created_at FROM audit_logs
WHERE entity = $1 AND entity_id = $2 ORDER BY created_at, id`
	var entries []models.AuditEntry
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, entity, entityID); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
