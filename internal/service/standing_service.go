package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/grading"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	"github.com/noah-isme/registrar-api/pkg/cache"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type termLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// StandingService runs the end-of-term batch: it locks grading on every
// section of the term and records each student's academic standing.
type StandingService struct {
	run      runner
	audit    auditRecorder
	notifier notifier
	metrics  *MetricsService
	locker   termLocker
	lockTTL  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewStandingService constructs a StandingService. locker may be nil when no
// shared lock backend is configured.
func NewStandingService(store repository.Store, audit auditRecorder, notifier notifier, locker termLocker, lockTTL time.Duration, metrics *MetricsService, logger *zap.Logger, retry RetryConfig) *StandingService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}
	return &StandingService{
		run:      newRunner(store, retry, metrics, logger),
		audit:    audit,
		notifier: notifier,
		metrics:  metrics,
		locker:   locker,
		lockTTL:  lockTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessTermEnd locks the term's sections and upserts a standing record for
// every student with a posted result in the term. Running it again yields
// the same standings and locks nothing twice.
func (s *StandingService) ProcessTermEnd(ctx context.Context, principal *models.Principal, termID string) (*models.TermEndReport, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if !principal.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "only staff may run term-end processing")
	}

	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "term-end:"+termID, s.lockTTL)
		if err != nil {
			if errors.Is(err, cache.ErrLockHeld) {
				return nil, appErrors.ErrTermEndInProgress
			}
			return nil, appErrors.Wrap(err, appErrors.ErrTransient.Code, appErrors.ErrTransient.Status, "failed to acquire term-end lock")
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("failed to release term-end lock", zap.String("term_id", termID), zap.Error(err))
			}
		}()
	}

	started := time.Now()
	defer func() { s.metrics.ObserveTermEnd(time.Since(started)) }()

	sections, err := read(ctx, s.run, "load term sections", func(ctx context.Context, tx repository.Tx) ([]models.Section, error) {
		if _, err := tx.Terms().FindByID(ctx, termID); err != nil {
			return nil, notFound(err, "term")
		}
		return tx.Sections().ListByTerm(ctx, termID)
	})
	if err != nil {
		return nil, err
	}

	locked := 0
	for _, section := range sections {
		sectionID := section.ID
		changed, err := atomically(ctx, s.run, "lock section", func(ctx context.Context, tx repository.Tx) (bool, error) {
			current, err := tx.Sections().FindByID(ctx, sectionID)
			if err != nil {
				return false, err
			}
			if current.GradesLocked || current.GradesUnlocked {
				return false, nil
			}
			current.GradesLocked = true
			return true, tx.Sections().SaveGradeFlags(ctx, current)
		})
		if err != nil {
			return nil, err
		}
		if changed {
			locked++
			recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionSectionLock, models.AuditEntitySection, sectionID, map[string]string{"reason": "term end"})
		}
	}

	now := s.now().UTC()
	type outcome struct {
		records []models.StandingRecord
		changed []models.StandingRecord
	}
	result, err := atomically(ctx, s.run, "record standings", func(ctx context.Context, tx repository.Tx) (outcome, error) {
		entries, err := tx.Transcripts().ListByTerm(ctx, termID)
		if err != nil {
			return outcome{}, err
		}
		existing, err := tx.Standings().ListByTerm(ctx, termID)
		if err != nil {
			return outcome{}, err
		}
		previous := make(map[string]models.Standing, len(existing))
		for _, r := range existing {
			previous[r.StudentID] = r.Standing
		}

		var out outcome
		for _, g := range termGPAs(termID, entries) {
			record := models.StandingRecord{
				StudentID:   g.StudentID,
				TermID:      termID,
				GPA:         g.GPA,
				Credits:     g.Credits,
				Standing:    grading.Standing(g.GPA),
				ProcessedAt: now,
			}
			if err := tx.Standings().Upsert(ctx, &record); err != nil {
				return outcome{}, err
			}
			out.records = append(out.records, record)
			if prev, ok := previous[g.StudentID]; !ok || prev != record.Standing {
				out.changed = append(out.changed, record)
			}
		}
		if err := tx.Terms().MarkStandingProcessed(ctx, termID, now); err != nil {
			return outcome{}, notFound(err, "term")
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	report := &models.TermEndReport{
		TermID:            termID,
		StudentsProcessed: len(result.records),
		StandingCounts:    make(map[models.Standing]int, len(models.AllStandings)),
		SectionsLocked:    locked,
		ProcessedAt:       now,
	}
	for _, st := range models.AllStandings {
		report.StandingCounts[st] = 0
	}
	for _, r := range result.records {
		report.StandingCounts[r.Standing]++
	}

	s.logger.Info("term end processed",
		zap.String("term_id", termID),
		zap.Int("students", report.StudentsProcessed),
		zap.Int("sections_locked", locked),
	)
	recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionTermEnd, models.AuditEntityTerm, termID, report)
	for _, r := range result.changed {
		if s.notifier != nil {
			s.notifier.Notify(ctx, r.StudentID, fmt.Sprintf("Your academic standing is %s (GPA %.2f)", r.Standing, r.GPA), "term:"+termID)
		}
	}
	return report, nil
}
