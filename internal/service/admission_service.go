package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	"github.com/noah-isme/registrar-api/internal/schedule"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

// Names of the admission checks as they appear in the audit trail.
const (
	checkAccess        = "access"
	checkWindow        = "enrollment_window"
	checkDuplicate     = "duplicate"
	checkPrerequisites = "prerequisites"
	checkSchedule      = "schedule"
	checkCapacity      = "capacity"
	checkWaitlist      = "waitlist"
)

// AdmissionService decides enrollment requests and keeps section seat
// counts consistent with the enrollments that hold them.
type AdmissionService struct {
	run       runner
	audit     auditRecorder
	notifier  notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAdmissionService constructs an AdmissionService.
func NewAdmissionService(store repository.Store, audit auditRecorder, notifier notifier, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, retry RetryConfig) *AdmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdmissionService{
		run:       newRunner(store, retry, metrics, logger),
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// checkTrail accumulates admission check outcomes for the audit log.
type checkTrail []models.CheckOutcome

func (t *checkTrail) pass(check string) {
	*t = append(*t, models.CheckOutcome{Check: check, Passed: true})
}

func (t *checkTrail) fail(check string, err *appErrors.Error) error {
	*t = append(*t, models.CheckOutcome{Check: check, Code: err.Code})
	return err
}

// Enroll runs the admission checks in order and either seats the student,
// waitlists them, or reports the first failing check.
func (s *AdmissionService) Enroll(ctx context.Context, principal *models.Principal, req dto.EnrollRequest) (*models.AdmissionResult, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrollment payload")
	}

	var trail checkTrail
	result, err := atomically(ctx, s.run, "enroll", func(ctx context.Context, tx repository.Tx) (*models.AdmissionResult, error) {
		trail = trail[:0]
		return s.admit(ctx, tx, principal, req, &trail)
	})
	if err != nil {
		s.metrics.RecordAdmission(errorCode(err))
		recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionAdmitRejected, models.AuditEntitySection, req.SectionID, map[string]interface{}{
			"student_id": req.StudentID,
			"code":       errorCode(err),
			"checks":     trail,
		})
		return nil, err
	}

	s.metrics.RecordAdmission(string(result.Status))
	action := models.AuditActionEnroll
	if result.Status == models.EnrollmentStatusWaitlisted {
		action = models.AuditActionWaitlist
		s.notify(ctx, req.StudentID, fmt.Sprintf("You are number %d on the waitlist", result.WaitlistPosition), "enrollment:"+result.Enrollment.ID)
	}
	recordAudit(ctx, s.audit, s.logger, principal.ID, action, models.AuditEntityEnrollment, result.Enrollment.ID, map[string]interface{}{
		"student_id":        req.StudentID,
		"section_id":        req.SectionID,
		"waitlist_position": result.WaitlistPosition,
		"checks":            trail,
	})
	return result, nil
}

func (s *AdmissionService) admit(ctx context.Context, tx repository.Tx, principal *models.Principal, req dto.EnrollRequest, trail *checkTrail) (*models.AdmissionResult, error) {
	if !principal.HasRole(models.RoleStudent) || principal.ID != req.StudentID {
		return nil, trail.fail(checkAccess, appErrors.Clone(appErrors.ErrAccessDenied, "students may only enroll themselves"))
	}
	trail.pass(checkAccess)

	section, err := tx.Sections().FindByID(ctx, req.SectionID)
	if err != nil {
		return nil, notFound(err, "section")
	}
	if !section.AcceptsEnrollment() {
		return nil, trail.fail(checkWindow, appErrors.ErrEnrollmentClosed)
	}
	term, err := tx.Terms().FindByID(ctx, section.TermID)
	if err != nil {
		return nil, notFound(err, "term")
	}
	if !term.AcceptsEnrollment(s.now()) {
		return nil, trail.fail(checkWindow, appErrors.ErrDeadlinePassed)
	}
	trail.pass(checkWindow)

	if _, err := tx.Enrollments().FindOpenByStudentCourse(ctx, req.StudentID, section.CourseID); err == nil {
		return nil, trail.fail(checkDuplicate, appErrors.ErrAlreadyEnrolled)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	trail.pass(checkDuplicate)

	missing, err := s.missingPrerequisites(ctx, tx, req.StudentID, section.CourseID)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		return nil, trail.fail(checkPrerequisites, appErrors.WithDetails(appErrors.ErrMissingPrerequisites, "", models.MissingPrerequisitesDetails{Missing: missing}))
	}
	trail.pass(checkPrerequisites)

	conflicts, err := s.scheduleConflicts(ctx, tx, req.StudentID, section)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, trail.fail(checkSchedule, appErrors.WithDetails(appErrors.ErrScheduleConflict, "", models.ScheduleConflictDetails{Conflicts: conflicts}))
	}
	trail.pass(checkSchedule)

	enrollment := &models.Enrollment{
		StudentID: req.StudentID,
		SectionID: section.ID,
		CourseID:  section.CourseID,
		TermID:    section.TermID,
	}

	if section.HasFreeSeat() {
		enrollment.Status = models.EnrollmentStatusActive
		if err := s.createEnrollment(ctx, tx, enrollment, trail); err != nil {
			return nil, err
		}
		if err := tx.Sections().AdjustEnrollment(ctx, section.ID, section.Version, 1); err != nil {
			return nil, err
		}
		trail.pass(checkCapacity)
		return &models.AdmissionResult{Enrollment: *enrollment, Status: enrollment.Status}, nil
	}

	if !req.JoinWaitlist {
		return nil, trail.fail(checkCapacity, appErrors.WithDetails(appErrors.ErrSectionFull, "", models.SectionFullDetails{
			Capacity:      section.Capacity,
			EnrolledCount: section.EnrolledCount,
		}))
	}
	*trail = append(*trail, models.CheckOutcome{Check: checkCapacity})

	enrollment.Status = models.EnrollmentStatusWaitlisted
	if err := s.createEnrollment(ctx, tx, enrollment, trail); err != nil {
		return nil, err
	}
	waiting, err := tx.Enrollments().ListWaitlist(ctx, section.ID)
	if err != nil {
		return nil, err
	}
	position := len(waiting)
	for i, w := range waiting {
		if w.ID == enrollment.ID {
			position = i + 1
			break
		}
	}
	trail.pass(checkWaitlist)
	return &models.AdmissionResult{Enrollment: *enrollment, Status: enrollment.Status, WaitlistPosition: position}, nil
}

func (s *AdmissionService) createEnrollment(ctx context.Context, tx repository.Tx, enrollment *models.Enrollment, trail *checkTrail) error {
	err := tx.Enrollments().Create(ctx, enrollment)
	if errors.Is(err, repository.ErrDuplicate) {
		return trail.fail(checkDuplicate, appErrors.ErrAlreadyEnrolled)
	}
	return err
}

// Drop ends an enrollment. Dropping an active seat hands it to the earliest
// waitlisted student who is still eligible, in the same unit of work.
func (s *AdmissionService) Drop(ctx context.Context, principal *models.Principal, enrollmentID string) (*models.DropResult, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}

	var skippedCodes map[string]string
	result, err := atomically(ctx, s.run, "drop enrollment", func(ctx context.Context, tx repository.Tx) (*models.DropResult, error) {
		skippedCodes = map[string]string{}

		enrollment, err := tx.Enrollments().FindByID(ctx, enrollmentID)
		if err != nil {
			return nil, notFound(err, "enrollment")
		}
		if enrollment.StudentID != principal.ID && !principal.IsStaff() {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "not allowed to drop this enrollment")
		}
		if !enrollment.Open() {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("cannot drop a %s enrollment", enrollment.Status))
		}

		now := s.now().UTC()
		if err := tx.Enrollments().TransitionStatus(ctx, enrollment.ID, enrollment.Status, models.EnrollmentStatusDropped, now); err != nil {
			return nil, err
		}
		previous := enrollment.Status
		enrollment.Status = models.EnrollmentStatusDropped
		enrollment.DroppedAt = &now
		result := &models.DropResult{Dropped: *enrollment}
		if previous != models.EnrollmentStatusActive {
			return result, nil
		}

		section, err := tx.Sections().FindByID(ctx, enrollment.SectionID)
		if err != nil {
			return nil, err
		}
		var promoted *models.Enrollment
		if !section.FinalGradesPosted && !section.GradesLocked {
			var skipped []models.Enrollment
			promoted, skipped, err = s.promote(ctx, tx, section, skippedCodes)
			if err != nil {
				return nil, err
			}
			result.Promoted = promoted
			result.Skipped = skipped
		}

		// A promotion keeps the count; the zero delta still bumps the version.
		delta := -1
		if promoted != nil {
			delta = 0
		}
		if err := tx.Sections().AdjustEnrollment(ctx, section.ID, section.Version, delta); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionDrop, models.AuditEntityEnrollment, result.Dropped.ID, map[string]string{
		"student_id": result.Dropped.StudentID,
		"section_id": result.Dropped.SectionID,
	})
	for _, skipped := range result.Skipped {
		code := skippedCodes[skipped.ID]
		recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionPromoteSkipped, models.AuditEntityEnrollment, skipped.ID, map[string]string{
			"student_id": skipped.StudentID,
			"section_id": skipped.SectionID,
			"code":       code,
		})
		s.notify(ctx, skipped.StudentID, "A seat opened but you could not be enrolled: "+code, "enrollment:"+skipped.ID)
	}
	if p := result.Promoted; p != nil {
		recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionPromote, models.AuditEntityEnrollment, p.ID, map[string]string{
			"student_id":    p.StudentID,
			"section_id":    p.SectionID,
			"replaced_seat": result.Dropped.ID,
		})
		s.notify(ctx, p.StudentID, "You have been enrolled from the waitlist", "enrollment:"+p.ID)
	}
	return result, nil
}

// promote activates the first waitlisted candidate whose prerequisites and
// schedule are valid now. Candidates passed over stay waitlisted.
func (s *AdmissionService) promote(ctx context.Context, tx repository.Tx, section *models.Section, skippedCodes map[string]string) (*models.Enrollment, []models.Enrollment, error) {
	waiting, err := tx.Enrollments().ListWaitlist(ctx, section.ID)
	if err != nil {
		return nil, nil, err
	}

	var skipped []models.Enrollment
	for i := range waiting {
		candidate := waiting[i]
		missing, err := s.missingPrerequisites(ctx, tx, candidate.StudentID, candidate.CourseID)
		if err != nil {
			return nil, nil, err
		}
		if len(missing) > 0 {
			skipped = append(skipped, candidate)
			skippedCodes[candidate.ID] = appErrors.ErrMissingPrerequisites.Code
			continue
		}
		conflicts, err := s.scheduleConflicts(ctx, tx, candidate.StudentID, section)
		if err != nil {
			return nil, nil, err
		}
		if len(conflicts) > 0 {
			skipped = append(skipped, candidate)
			skippedCodes[candidate.ID] = appErrors.ErrScheduleConflict.Code
			continue
		}

		if err := tx.Enrollments().TransitionStatus(ctx, candidate.ID, models.EnrollmentStatusWaitlisted, models.EnrollmentStatusActive, s.now().UTC()); err != nil {
			return nil, nil, err
		}
		candidate.Status = models.EnrollmentStatusActive
		return &candidate, skipped, nil
	}
	return nil, skipped, nil
}

// missingPrerequisites lists the active version's prerequisite codes the
// student has no passing transcript entry for.
func (s *AdmissionService) missingPrerequisites(ctx context.Context, tx repository.Tx, studentID, courseID string) ([]string, error) {
	version, err := tx.Courses().ActiveVersion(ctx, courseID)
	if err != nil {
		return nil, notFound(err, "active course version")
	}
	if len(version.Prerequisites) == 0 {
		return nil, nil
	}
	entries, err := tx.Transcripts().ListByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	passed := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Passed() {
			passed[e.CourseCode] = true
		}
	}
	var missing []string
	for _, code := range version.Prerequisites {
		if !passed[code] {
			missing = append(missing, code)
		}
	}
	return missing, nil
}

// scheduleConflicts compares section against the student's other active
// sections in the same term. Waitlisted enrollments hold no time.
func (s *AdmissionService) scheduleConflicts(ctx context.Context, tx repository.Tx, studentID string, section *models.Section) ([]models.SectionConflict, error) {
	active, err := tx.Enrollments().ListActiveByStudentTerm(ctx, studentID, section.TermID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(active))
	for _, e := range active {
		if e.SectionID != section.ID {
			ids = append(ids, e.SectionID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	held, err := tx.Sections().ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	var conflicts []models.SectionConflict
	for _, other := range held {
		overlap := schedule.Conflicts(section.Slots, other.Slots)
		if len(overlap) == 0 {
			continue
		}
		code := other.CourseID
		if course, err := tx.Courses().FindCourseByID(ctx, other.CourseID); err == nil {
			code = course.Code
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		conflicts = append(conflicts, models.SectionConflict{CourseCode: code, SectionID: other.ID, Slots: overlap})
	}
	return conflicts, nil
}

func (s *AdmissionService) notify(ctx context.Context, userID, message, ref string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, message, ref)
	}
}
