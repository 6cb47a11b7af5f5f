package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/registrar-api/internal/models"
)

// AuditLog keeps audit entries in memory.
type AuditLog struct {
	mu      sync.Mutex
	entries []models.AuditEntry
}

// NewAuditLog constructs an empty log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Record appends entry.
func (l *AuditLog) Record(_ context.Context, entry *models.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, *entry)
	return nil
}

// Entries returns a copy of the recorded entries, optionally filtered by action.
func (l *AuditLog) Entries(actions ...string) []models.AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.AuditEntry
	for _, e := range l.entries {
		if len(actions) == 0 {
			out = append(out, e)
			continue
		}
		for _, a := range actions {
			if e.Action == a {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// ListByEntity returns the trail of one entity, oldest first.
func (l *AuditLog) ListByEntity(_ context.Context, entity, entityID string) ([]models.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.AuditEntry
	for _, e := range l.entries {
		if e.Entity == entity && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}
