package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	"github.com/noah-isme/registrar-api/internal/schedule"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

// SectionService schedules sections and controls their enrollment window.
type SectionService struct {
	run       runner
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSectionService constructs a SectionService.
func NewSectionService(store repository.Store, audit auditRecorder, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, retry RetryConfig) *SectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SectionService{
		run:       newRunner(store, retry, metrics, logger),
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// Create schedules a section of a course in a term.
func (s *SectionService) Create(ctx context.Context, principal *models.Principal, req dto.CreateSectionRequest) (*models.SectionView, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if !principal.HasAnyRole(models.RoleDepartmentHead, models.RoleAdmin) {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "only department heads may create sections")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid section payload")
	}
	if idx := schedule.ValidateSlots(req.Slots); idx >= 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("slot %d is malformed", idx), map[string]int{"slot": idx})
	}

	section, err := atomically(ctx, s.run, "create section", func(ctx context.Context, tx repository.Tx) (*models.Section, error) {
		if _, err := tx.Courses().FindCourseByID(ctx, req.CourseID); err != nil {
			return nil, notFound(err, "course")
		}
		if _, err := tx.Courses().ActiveVersion(ctx, req.CourseID); err != nil {
			return nil, notFound(err, "active course version")
		}
		term, err := tx.Terms().FindByID(ctx, req.TermID)
		if err != nil {
			return nil, notFound(err, "term")
		}
		if term.Closed {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "term is closed")
		}
		section := &models.Section{
			CourseID:            req.CourseID,
			TermID:              req.TermID,
			Capacity:            req.Capacity,
			InstructorID:        req.InstructorID,
			IsOpenForEnrollment: req.IsOpenForEnrollment,
			Slots:               req.Slots,
		}
		if err := tx.Sections().Create(ctx, section); err != nil {
			return nil, err
		}
		return section, nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionSectionCreate, models.AuditEntitySection, section.ID, map[string]interface{}{
		"course_id": section.CourseID,
		"term_id":   section.TermID,
		"capacity":  section.Capacity,
	})
	return viewOf(section), nil
}

// Get returns a section with its derived editability.
func (s *SectionService) Get(ctx context.Context, id string) (*models.SectionView, error) {
	section, err := read(ctx, s.run, "load section", func(ctx context.Context, tx repository.Tx) (*models.Section, error) {
		section, err := tx.Sections().FindByID(ctx, id)
		return section, notFound(err, "section")
	})
	if err != nil {
		return nil, err
	}
	return viewOf(section), nil
}

// SetEnrollmentOpen opens or closes the section for new enrollments.
// Existing enrollments and the waitlist are unaffected.
func (s *SectionService) SetEnrollmentOpen(ctx context.Context, principal *models.Principal, id string, open bool) (*models.SectionView, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if !principal.IsStaff() && !principal.HasRole(models.RoleDepartmentHead) {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "not allowed to change the enrollment window")
	}

	section, err := atomically(ctx, s.run, "set enrollment window", func(ctx context.Context, tx repository.Tx) (*models.Section, error) {
		section, err := tx.Sections().FindByID(ctx, id)
		if err != nil {
			return nil, notFound(err, "section")
		}
		if section.IsOpenForEnrollment == open {
			return section, nil
		}
		if err := tx.Sections().SetEnrollmentOpen(ctx, id, section.Version, open); err != nil {
			return nil, err
		}
		return tx.Sections().FindByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionSectionWindow, models.AuditEntitySection, id, map[string]bool{"open": open})
	return viewOf(section), nil
}

// Waitlist lists waitlisted enrollments of a section in promotion order.
func (s *SectionService) Waitlist(ctx context.Context, principal *models.Principal, sectionID string) ([]models.WaitlistEntry, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	return read(ctx, s.run, "load waitlist", func(ctx context.Context, tx repository.Tx) ([]models.WaitlistEntry, error) {
		section, err := tx.Sections().FindByID(ctx, sectionID)
		if err != nil {
			return nil, notFound(err, "section")
		}
		if !principal.IsStaff() && !principal.HasRole(models.RoleDepartmentHead) && !section.TaughtBy(principal.ID) {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "not allowed to view this waitlist")
		}
		waiting, err := tx.Enrollments().ListWaitlist(ctx, sectionID)
		if err != nil {
			return nil, err
		}
		entries := make([]models.WaitlistEntry, len(waiting))
		for i, e := range waiting {
			entries[i] = models.WaitlistEntry{Position: i + 1, Enrollment: e}
		}
		return entries, nil
	})
}

func viewOf(section *models.Section) *models.SectionView {
	return &models.SectionView{Section: *section, GradesEditable: section.GradesEditable()}
}
