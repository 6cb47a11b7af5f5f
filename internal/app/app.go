// Package app assembles the registrar core from configuration. The HTTP
// server and the operator CLI share it.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/repository"
	"github.com/noah-isme/registrar-api/internal/repository/memory"
	"github.com/noah-isme/registrar-api/internal/service"
	"github.com/noah-isme/registrar-api/pkg/cache"
	"github.com/noah-isme/registrar-api/pkg/config"
	"github.com/noah-isme/registrar-api/pkg/database"
	"github.com/noah-isme/registrar-api/pkg/jobs"
	"github.com/noah-isme/registrar-api/pkg/notify"
)

// Store is a unit-of-work store that can report its health.
type Store interface {
	repository.Store
	Ping(ctx context.Context) error
}

// App holds the wired services and the resources behind them.
type App struct {
	Store   Store
	Audit   repository.AuditLog
	Metrics *service.MetricsService
	Queue   *jobs.Queue

	Auth          *service.AuthService
	Notifications *service.NotificationService
	Courses       *service.CourseService
	Sections      *service.SectionService
	Admission     *service.AdmissionService
	Grades        *service.GradeService
	Transcripts   *service.TranscriptService
	Standing      *service.StandingService

	closers []func() error
}

// New opens the configured backends and wires every service. The caller
// must Close the result.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Metrics: service.NewMetricsService()}

	switch cfg.Database.Driver {
	case config.DriverMemory:
		a.Store = memory.NewStore()
		a.Audit = memory.NewAuditLog()
		logger.Warn("using in-memory store; data is lost on exit")
	case config.DriverPostgres:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db, cfg.Database.Name, cfg.Database.MigrationsDir, logger); err != nil {
				_ = a.Close(context.Background())
				return nil, err
			}
		}
		a.Store = repository.NewPostgresStore(db)
		a.Audit = repository.NewAuditRepository(db)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}

	var locker *cache.Locker
	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		_ = a.Close(context.Background())
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		a.closers = append(a.closers, redisClient.Close)
		locker = cache.NewLocker(redisClient, "registrar:")
	}

	var publisher notify.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = notify.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.NotificationTopic, cfg.Kafka.WriteTimeout)
	} else {
		publisher = notify.NewLogPublisher(logger)
	}
	a.closers = append(a.closers, publisher.Close)

	if cfg.Notifications.Enabled {
		a.Queue = jobs.NewQueue("notifications", nil, jobs.QueueConfig{
			Workers:    cfg.Notifications.Workers,
			MaxRetries: cfg.Notifications.Retries,
			Logger:     logger,
		})
	}

	retry := service.RetryConfig{
		MaxAttempts: cfg.Admission.MaxAttempts,
		BaseDelay:   cfg.Admission.RetryBaseDelay,
		MaxDelay:    cfg.Admission.RetryMaxDelay,
	}

	a.Auth = service.NewAuthService(logger, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})
	a.Notifications = service.NewNotificationService(a.Queue, publisher, a.Metrics, logger)
	a.Courses = service.NewCourseService(a.Store, a.Audit, nil, a.Metrics, logger, retry)
	a.Sections = service.NewSectionService(a.Store, a.Audit, nil, a.Metrics, logger, retry)
	a.Admission = service.NewAdmissionService(a.Store, a.Audit, a.Notifications, nil, a.Metrics, logger, retry)
	a.Grades = service.NewGradeService(a.Store, a.Audit, a.Notifications, nil, a.Metrics, logger, retry)
	a.Transcripts = service.NewTranscriptService(a.Store, a.Metrics, logger)
	if locker != nil {
		a.Standing = service.NewStandingService(a.Store, a.Audit, a.Notifications, locker, cfg.TermEnd.LockTTL, a.Metrics, logger, retry)
	} else {
		a.Standing = service.NewStandingService(a.Store, a.Audit, a.Notifications, nil, cfg.TermEnd.LockTTL, a.Metrics, logger, retry)
	}

	return a, nil
}

// Start launches background workers.
func (a *App) Start(ctx context.Context) {
	if a.Queue != nil {
		a.Queue.Start(ctx)
	}
}

// Close drains queued notifications until ctx ends, then releases every
// backend.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Queue != nil {
		if err := a.Queue.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain notifications: %w", err))
		}
		a.Queue.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
