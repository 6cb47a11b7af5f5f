package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/prereq"
	"github.com/noah-isme/registrar-api/internal/repository"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

// CourseService manages the course catalog and its prerequisite graph.
type CourseService struct {
	run       runner
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(store repository.Store, audit auditRecorder, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, retry RetryConfig) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{
		run:       newRunner(store, retry, metrics, logger),
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// ValidatePrerequisites checks whether giving the course the candidate
// prerequisites would keep the catalog graph acyclic. Nothing is written.
func (s *CourseService) ValidatePrerequisites(ctx context.Context, courseID string, codes []string) (*models.PrerequisiteValidation, error) {
	codes = normalizeCodes(codes)
	return read(ctx, s.run, "validate prerequisites", func(ctx context.Context, tx repository.Tx) (*models.PrerequisiteValidation, error) {
		course, err := tx.Courses().FindCourseByID(ctx, courseID)
		if err != nil {
			return nil, notFound(err, "course")
		}
		result, err := s.checkGraph(ctx, tx, course.Code, codes)
		if err != nil {
			return nil, err
		}
		return &models.PrerequisiteValidation{Valid: result.Valid, Cycle: result.Cycle}, nil
	})
}

// GetPrerequisiteGraph returns the prerequisite sub-graph reachable from the
// course together with its validation and every root-to-leaf chain.
func (s *CourseService) GetPrerequisiteGraph(ctx context.Context, courseID string) (*models.PrerequisiteGraph, error) {
	return read(ctx, s.run, "load prerequisite graph", func(ctx context.Context, tx repository.Tx) (*models.PrerequisiteGraph, error) {
		course, err := tx.Courses().FindCourseByID(ctx, courseID)
		if err != nil {
			return nil, notFound(err, "course")
		}
		edges, err := tx.Courses().ActivePrerequisites(ctx)
		if err != nil {
			return nil, err
		}
		sub := prereq.Reachable(prereq.Graph(edges), course.Code)
		result := prereq.Validate(sub, course.Code)

		view := &models.PrerequisiteGraph{
			Root:       course.Code,
			Graph:      sub,
			Validation: models.PrerequisiteValidation{Valid: result.Valid, Cycle: result.Cycle},
		}
		if result.Valid {
			chains, err := prereq.Chains(sub, course.Code)
			if err != nil {
				return nil, err
			}
			view.Chains = chains
		}
		return view, nil
	})
}

// CreateCourse adds a course with its first version.
func (s *CourseService) CreateCourse(ctx context.Context, principal *models.Principal, req dto.CreateCourseRequest) (*models.Course, error) {
	if err := s.authorizeCatalog(principal); err != nil {
		return nil, err
	}
	req.Code = strings.TrimSpace(req.Code)
	req.Prerequisites = normalizeCodes(req.Prerequisites)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	prereqs := req.Prerequisites

	course, err := atomically(ctx, s.run, "create course", func(ctx context.Context, tx repository.Tx) (*models.Course, error) {
		if _, err := tx.Courses().FindCourseByCode(ctx, req.Code); err == nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		if err := s.ensurePublishable(ctx, tx, req.Code, prereqs); err != nil {
			return nil, err
		}

		course := &models.Course{Code: req.Code}
		if err := tx.Courses().CreateCourse(ctx, course); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
			}
			return nil, err
		}
		version := &models.CourseVersion{
			CourseID:      course.ID,
			Title:         req.Title,
			Description:   req.Description,
			Credits:       req.Credits,
			Prerequisites: pq.StringArray(prereqs),
		}
		if err := tx.Courses().CreateVersion(ctx, version); err != nil {
			return nil, err
		}
		course.ActiveVersion = version
		return course, nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionCourseVersion, models.AuditEntityCourse, course.ID, map[string]interface{}{
		"code":          course.Code,
		"version":       course.ActiveVersion.Version,
		"prerequisites": course.ActiveVersion.Prerequisites,
	})
	return course, nil
}

// PublishVersion makes a new version the course's only active one. Earlier
// versions are kept.
func (s *CourseService) PublishVersion(ctx context.Context, principal *models.Principal, courseID string, req dto.PublishVersionRequest) (*models.CourseVersion, error) {
	if err := s.authorizeCatalog(principal); err != nil {
		return nil, err
	}
	req.Prerequisites = normalizeCodes(req.Prerequisites)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course version payload")
	}
	prereqs := req.Prerequisites

	version, err := atomically(ctx, s.run, "publish course version", func(ctx context.Context, tx repository.Tx) (*models.CourseVersion, error) {
		course, err := tx.Courses().FindCourseByID(ctx, courseID)
		if err != nil {
			return nil, notFound(err, "course")
		}
		if err := s.ensurePublishable(ctx, tx, course.Code, prereqs); err != nil {
			return nil, err
		}
		version := &models.CourseVersion{
			CourseID:      course.ID,
			Title:         req.Title,
			Description:   req.Description,
			Credits:       req.Credits,
			Prerequisites: pq.StringArray(prereqs),
		}
		if err := tx.Courses().CreateVersion(ctx, version); err != nil {
			return nil, err
		}
		return version, nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionCourseVersion, models.AuditEntityCourse, courseID, map[string]interface{}{
		"version":       version.Version,
		"prerequisites": version.Prerequisites,
	})
	return version, nil
}

// ListVersions returns every version of a course, newest first.
func (s *CourseService) ListVersions(ctx context.Context, courseID string) ([]models.CourseVersion, error) {
	return read(ctx, s.run, "list course versions", func(ctx context.Context, tx repository.Tx) ([]models.CourseVersion, error) {
		if _, err := tx.Courses().FindCourseByID(ctx, courseID); err != nil {
			return nil, notFound(err, "course")
		}
		return tx.Courses().ListVersions(ctx, courseID)
	})
}

func (s *CourseService) authorizeCatalog(principal *models.Principal) error {
	if err := requirePrincipal(principal); err != nil {
		return err
	}
	if !principal.HasAnyRole(models.RoleDepartmentHead, models.RoleAdmin) {
		return appErrors.Clone(appErrors.ErrAccessDenied, "only department heads may change the catalog")
	}
	return nil
}

// ensurePublishable rejects unknown codes and cycles.
func (s *CourseService) ensurePublishable(ctx context.Context, tx repository.Tx, code string, prereqs []string) error {
	result, err := s.checkGraph(ctx, tx, code, prereqs)
	if err != nil {
		return err
	}
	if !result.Valid {
		return appErrors.WithDetails(appErrors.ErrCircularPrerequisite, "", models.CircularPrerequisiteDetails{Cycle: result.Cycle})
	}
	return nil
}

func (s *CourseService) checkGraph(ctx context.Context, tx repository.Tx, code string, prereqs []string) (prereq.Result, error) {
	var unknown []string
	if len(prereqs) > 0 {
		candidates := make([]string, 0, len(prereqs))
		for _, p := range prereqs {
			if p != code {
				candidates = append(candidates, p)
			}
		}
		missing, err := tx.Courses().MissingCodes(ctx, candidates)
		if err != nil {
			return prereq.Result{}, err
		}
		unknown = missing
	}
	if len(unknown) > 0 {
		return prereq.Result{}, appErrors.WithDetails(appErrors.ErrValidation, "unknown prerequisite codes", map[string][]string{"unknown": unknown})
	}

	edges, err := tx.Courses().ActivePrerequisites(ctx)
	if err != nil {
		return prereq.Result{}, err
	}
	return prereq.Validate(prereq.Graph(edges).With(code, prereqs), code), nil
}

// normalizeCodes trims codes and drops blanks and repeats, keeping order.
func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes))
	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
