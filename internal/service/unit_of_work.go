package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/retry"
)

// RetryConfig bounds optimistic-concurrency retries of a unit of work.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig is used when a service is built with a zero RetryConfig.
var DefaultRetryConfig = RetryConfig{MaxAttempts: 5, BaseDelay: 20 * time.Millisecond, MaxDelay: 500 * time.Millisecond}

type auditRecorder interface {
	Record(ctx context.Context, entry *models.AuditEntry) error
}

type notifier interface {
	Notify(ctx context.Context, userID, message, contextRef string)
}

// runner executes units of work against the store, retrying stale and
// serialization failures with backoff.
type runner struct {
	store   repository.Store
	retry   RetryConfig
	metrics *MetricsService
	logger  *zap.Logger
}

func newRunner(store repository.Store, cfg RetryConfig, metrics *MetricsService, logger *zap.Logger) runner {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return runner{store: store, retry: cfg, metrics: metrics, logger: logger}
}

// atomically runs fn in a unit of work. Domain errors pass through; retry
// exhaustion becomes TRANSIENT_FAILURE and anything else INTERNAL_ERROR.
func atomically[T any](ctx context.Context, r runner, op string, fn func(ctx context.Context, tx repository.Tx) (T, error)) (T, error) {
	policy := retry.Policy{
		Attempts:  r.retry.MaxAttempts,
		BaseDelay: r.retry.BaseDelay,
		MaxDelay:  r.retry.MaxDelay,
		Retriable: repository.Retriable,
		OnRetry: func(attempt int, err error) {
			r.metrics.RecordConcurrencyRetry(op)
			r.logger.Debug("retrying unit of work", zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		},
	}
	result, err := retry.Do(ctx, policy, func(ctx context.Context) (T, error) {
		var out T
		err := r.store.Atomic(ctx, func(ctx context.Context, tx repository.Tx) error {
			var err error
			out, err = fn(ctx, tx)
			return err
		})
		return out, err
	})
	if err != nil {
		var zero T
		return zero, r.translate(op, err)
	}
	return result, nil
}

// read runs fn against a consistent view without retries.
func read[T any](ctx context.Context, r runner, op string, fn func(ctx context.Context, tx repository.Tx) (T, error)) (T, error) {
	var out T
	err := r.store.Read(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = fn(ctx, tx)
		return err
	})
	if err != nil {
		var zero T
		return zero, r.translate(op, err)
	}
	return out, nil
}

func (r runner) translate(op string, err error) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, retry.ErrExhausted):
		r.logger.Warn("unit of work exhausted retries", zap.String("op", op), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, appErrors.ErrTransient.Message)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "request cancelled")
	default:
		r.logger.Error("unit of work failed", zap.String("op", op), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to "+op)
	}
}

// notFound maps sql.ErrNoRows to a NOT_FOUND error naming what, and passes
// other errors through.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, what+" not found")
	}
	return err
}

func requirePrincipal(principal *models.Principal) error {
	if principal == nil || principal.ID == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "authentication required")
	}
	return nil
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// recordAudit writes an audit entry. Failures are logged, never surfaced:
// the audited mutation has already committed.
func recordAudit(ctx context.Context, audit auditRecorder, logger *zap.Logger, actorID, action, entity, entityID string, details interface{}) {
	if audit == nil {
		return
	}
	entry := &models.AuditEntry{ActorID: actorID, Action: action, Entity: entity, EntityID: entityID}
	if details != nil {
		payload, err := json.Marshal(details)
		if err != nil {
			logger.Warn("failed to encode audit details", zap.String("action", action), zap.Error(err))
		} else {
			entry.Details = types.JSONText(payload)
		}
	}
	if err := audit.Record(ctx, entry); err != nil {
		logger.Error("failed to record audit entry", zap.String("action", action), zap.String("entity_id", entityID), zap.Error(err))
	}
}

func errorCode(err error) string {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return appErrors.ErrInternal.Code
}
