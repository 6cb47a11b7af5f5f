package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/grading"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

// GradeService owns assessments, raw scores and the posting of final grades.
type GradeService struct {
	run       runner
	audit     auditRecorder
	notifier  notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewGradeService constructs a GradeService.
func NewGradeService(store repository.Store, audit auditRecorder, notifier notifier, validate *validator.Validate, metrics *MetricsService, logger *zap.Logger, retry RetryConfig) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &GradeService{
		run:       newRunner(store, retry, metrics, logger),
		audit:     audit,
		notifier:  notifier,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

func canGrade(principal *models.Principal, section *models.Section) bool {
	return principal.IsStaff() || (principal.HasRole(models.RoleInstructor) && section.TaughtBy(principal.ID))
}

// CreateAssessment adds an assessment to a section. Weights may be built up
// incrementally, so a total other than 100 is reported as a warning here and
// only enforced when grades are posted.
func (s *GradeService) CreateAssessment(ctx context.Context, principal *models.Principal, sectionID string, req dto.CreateAssessmentRequest) (*models.AssessmentResult, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assessment payload")
	}

	result, err := atomically(ctx, s.run, "create assessment", func(ctx context.Context, tx repository.Tx) (*models.AssessmentResult, error) {
		section, err := tx.Sections().FindByID(ctx, sectionID)
		if err != nil {
			return nil, notFound(err, "section")
		}
		if !canGrade(principal, section) && !principal.HasRole(models.RoleDepartmentHead) {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "not allowed to manage assessments for this section")
		}
		if !section.GradesEditable() {
			return nil, appErrors.ErrGradesLocked
		}
		if section.FinalGradesPosted {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "assessments cannot be added after final grades are posted")
		}

		assessment := &models.Assessment{
			SectionID:   sectionID,
			Title:       strings.TrimSpace(req.Title),
			Weight:      req.Weight,
			TotalPoints: req.TotalPoints,
			DueDate:     req.DueDate,
		}
		if err := tx.Assessments().Create(ctx, assessment); err != nil {
			return nil, err
		}
		all, err := tx.Assessments().ListBySection(ctx, sectionID)
		if err != nil {
			return nil, err
		}

		result := &models.AssessmentResult{Assessment: *assessment, WeightTotal: grading.RoundHalfUp(grading.WeightTotal(all))}
		if !grading.WeightsComplete(all) {
			result.Warning = fmt.Sprintf("assessment weights total %.2f; final grades cannot be posted until they total 100", result.WeightTotal)
		}
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if result.Warning != "" {
		s.logger.Info("assessment weights incomplete", zap.String("section_id", sectionID), zap.Float64("weight_total", result.WeightTotal))
	}
	return result, nil
}

// ListAssessments returns a section's assessments in creation order.
func (s *GradeService) ListAssessments(ctx context.Context, sectionID string) ([]models.Assessment, error) {
	return read(ctx, s.run, "list assessments", func(ctx context.Context, tx repository.Tx) ([]models.Assessment, error) {
		if _, err := tx.Sections().FindByID(ctx, sectionID); err != nil {
			return nil, notFound(err, "section")
		}
		return tx.Assessments().ListBySection(ctx, sectionID)
	})
}

type pendingScore struct {
	entry      models.ScoreEntry
	enrollment models.Enrollment
}

type sectionUpdate struct {
	scores      []pendingScore
	regenerated int
}

// UpdateGrades records a batch of scores in one unit of work: every score,
// enrollment and section lock is checked against the same view before
// anything is written, and either the whole batch commits or none of it.
// Scores for a posted section that was explicitly unlocked regenerate the
// affected final grades and transcript entries.
func (s *GradeService) UpdateGrades(ctx context.Context, principal *models.Principal, entries []models.ScoreEntry) (*models.GradeUpdateResult, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no grades submitted")
	}
	for _, e := range entries {
		if err := s.validator.Struct(e); err != nil {
			return nil, validationError(err, "invalid grade entry")
		}
	}

	updates, err := atomically(ctx, s.run, "update grades", func(ctx context.Context, tx repository.Tx) (map[string]*sectionUpdate, error) {
		sections, bySection, err := s.checkScores(ctx, tx, principal, entries)
		if err != nil {
			return nil, err
		}
		now := s.now().UTC()
		for _, id := range sortedKeys(bySection) {
			update := bySection[id]
			regenerated, err := s.writeScores(ctx, tx, sections[id], update.scores, now)
			if err != nil {
				return nil, err
			}
			update.regenerated = regenerated
		}
		return bySection, nil
	})
	if err != nil {
		return nil, err
	}

	sectionIDs := sortedKeys(updates)

	result := &models.GradeUpdateResult{Sections: sectionIDs}
	for _, sectionID := range sectionIDs {
		update := updates[sectionID]
		result.Updated += len(update.scores)
		result.Regenerated += update.regenerated
		recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionGradeUpdate, models.AuditEntitySection, sectionID, map[string]interface{}{
			"scores":      scoreDetails(update.scores),
			"regenerated": update.regenerated,
		})
	}
	return result, nil
}

func (s *GradeService) checkScores(ctx context.Context, tx repository.Tx, principal *models.Principal, entries []models.ScoreEntry) (map[string]*models.Section, map[string]*sectionUpdate, error) {
	sections := make(map[string]*models.Section)
	out := make(map[string]*sectionUpdate)
	for _, e := range entries {
		enrollment, err := tx.Enrollments().FindByID(ctx, e.EnrollmentID)
		if err != nil {
			return nil, nil, notFound(err, "enrollment")
		}
		assessment, err := tx.Assessments().FindByID(ctx, e.AssessmentID)
		if err != nil {
			return nil, nil, notFound(err, "assessment")
		}
		if assessment.SectionID != enrollment.SectionID {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "assessment does not belong to the enrollment's section")
		}
		if e.Score < 0 || e.Score > assessment.TotalPoints {
			return nil, nil, appErrors.WithDetails(appErrors.ErrInvalidScore, "", models.InvalidScoreDetails{
				EnrollmentID: e.EnrollmentID,
				AssessmentID: e.AssessmentID,
				Value:        e.Score,
				Max:          assessment.TotalPoints,
			})
		}
		if enrollment.Status != models.EnrollmentStatusActive && enrollment.Status != models.EnrollmentStatusCompleted {
			return nil, nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("cannot grade a %s enrollment", enrollment.Status))
		}

		section, ok := sections[enrollment.SectionID]
		if !ok {
			section, err = tx.Sections().FindByID(ctx, enrollment.SectionID)
			if err != nil {
				return nil, nil, notFound(err, "section")
			}
			sections[section.ID] = section
		}
		if !canGrade(principal, section) {
			return nil, nil, appErrors.Clone(appErrors.ErrAccessDenied, "not allowed to grade this section")
		}
		if !section.GradesEditable() {
			return nil, nil, appErrors.ErrGradesLocked
		}
		update, ok := out[section.ID]
		if !ok {
			update = &sectionUpdate{}
			out[section.ID] = update
		}
		update.scores = append(update.scores, pendingScore{entry: e, enrollment: *enrollment})
	}
	return sections, out, nil
}

// writeScores stores one section's scores. On a posted section every touched
// completed enrollment must still yield a final from weights totalling 100;
// otherwise the whole batch is rejected rather than leaving stale finals.
func (s *GradeService) writeScores(ctx context.Context, tx repository.Tx, section *models.Section, scores []pendingScore, now time.Time) (int, error) {
	touched := make(map[string]models.Enrollment)
	for _, p := range scores {
		grade := &models.Grade{EnrollmentID: p.entry.EnrollmentID, AssessmentID: p.entry.AssessmentID, Score: p.entry.Score, UpdatedAt: now}
		if err := tx.Grades().Upsert(ctx, grade); err != nil {
			return 0, err
		}
		touched[p.enrollment.ID] = p.enrollment
	}
	if !section.FinalGradesPosted {
		return 0, nil
	}

	posting, err := s.loadPostingContext(ctx, tx, section)
	if err != nil {
		return 0, err
	}
	if !grading.WeightsComplete(posting.assessments) {
		return 0, appErrors.WithDetails(appErrors.ErrInvalidWeights, "", models.InvalidWeightsDetails{
			Total: grading.RoundHalfUp(grading.WeightTotal(posting.assessments)),
		})
	}

	ids := make([]string, 0, len(touched))
	for id, e := range touched {
		if e.Status == models.EnrollmentStatusCompleted {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	grades, err := posting.gradesFor(ctx, tx, ids)
	if err != nil {
		return 0, err
	}

	var missing []models.MissingGradeSet
	for _, id := range ids {
		if m := grading.Missing(posting.assessments, grades[id]); len(m) > 0 {
			missing = append(missing, models.MissingGradeSet{EnrollmentID: id, StudentID: touched[id].StudentID, AssessmentIDs: m})
		}
	}
	if len(missing) > 0 {
		return 0, appErrors.WithDetails(appErrors.ErrMissingGrades, "", models.MissingGradesDetails{Missing: missing})
	}

	for _, id := range ids {
		res := grading.ComputeFinal(posting.assessments, grades[id])
		if res == nil {
			return 0, appErrors.Clone(appErrors.ErrMissingGrades, "final grade could not be computed")
		}
		if _, err := s.writeFinal(ctx, tx, posting, touched[id], res, now); err != nil {
			return 0, err
		}
	}
	return len(ids), nil
}

// PostFinalGrades computes and records the final grade of every active
// enrollment, completes those enrollments and materializes transcript
// entries. Posting an already posted section changes nothing.
func (s *GradeService) PostFinalGrades(ctx context.Context, principal *models.Principal, sectionID string) (*models.PostingResult, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}

	var notices []models.TranscriptEntry
	result, err := atomically(ctx, s.run, "post final grades", func(ctx context.Context, tx repository.Tx) (*models.PostingResult, error) {
		notices = notices[:0]

		section, err := tx.Sections().FindByID(ctx, sectionID)
		if err != nil {
			return nil, notFound(err, "section")
		}
		if !canGrade(principal, section) {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "not allowed to post grades for this section")
		}
		if section.FinalGradesPosted {
			return s.existingFinals(ctx, tx, section)
		}

		posting, err := s.loadPostingContext(ctx, tx, section)
		if err != nil {
			return nil, err
		}
		if !grading.WeightsComplete(posting.assessments) {
			return nil, appErrors.WithDetails(appErrors.ErrInvalidWeights, "", models.InvalidWeightsDetails{
				Total: grading.RoundHalfUp(grading.WeightTotal(posting.assessments)),
			})
		}

		active, err := tx.Enrollments().ListBySection(ctx, sectionID, models.EnrollmentStatusActive)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(active))
		for i, e := range active {
			ids[i] = e.ID
		}
		grades, err := posting.gradesFor(ctx, tx, ids)
		if err != nil {
			return nil, err
		}

		var missing []models.MissingGradeSet
		for _, e := range active {
			if m := grading.Missing(posting.assessments, grades[e.ID]); len(m) > 0 {
				missing = append(missing, models.MissingGradeSet{EnrollmentID: e.ID, StudentID: e.StudentID, AssessmentIDs: m})
			}
		}
		if len(missing) > 0 {
			return nil, appErrors.WithDetails(appErrors.ErrMissingGrades, "", models.MissingGradesDetails{Missing: missing})
		}

		now := s.now().UTC()
		result := &models.PostingResult{SectionID: sectionID}
		for _, e := range active {
			res := grading.ComputeFinal(posting.assessments, grades[e.ID])
			if res == nil {
				return nil, appErrors.Clone(appErrors.ErrMissingGrades, "final grade could not be computed")
			}
			if err := tx.Enrollments().TransitionStatus(ctx, e.ID, models.EnrollmentStatusActive, models.EnrollmentStatusCompleted, now); err != nil {
				return nil, err
			}
			entry, err := s.writeFinal(ctx, tx, posting, e, res, now)
			if err != nil {
				return nil, err
			}
			result.Finals = append(result.Finals, models.FinalGrade{
				EnrollmentID: e.ID,
				Percentage:   res.Percentage,
				Letter:       res.Letter,
				Points:       res.Points,
				PostedAt:     now,
			})
			notices = append(notices, *entry)
		}
		result.Posted = len(result.Finals)

		section.FinalGradesPosted = true
		if err := tx.Sections().SaveGradeFlags(ctx, section); err != nil {
			return nil, err
		}
		return result, nil
	})
	if err != nil {
		s.metrics.RecordGradePosting(errorCode(err))
		return nil, err
	}
	if result.AlreadyPosted {
		s.metrics.RecordGradePosting("already_posted")
		return result, nil
	}

	s.metrics.RecordGradePosting("posted")
	recordAudit(ctx, s.audit, s.logger, principal.ID, models.AuditActionFinalPosted, models.AuditEntitySection, sectionID, map[string]int{"posted": result.Posted})
	for _, n := range notices {
		s.notify(ctx, n.StudentID, fmt.Sprintf("Final grade posted for %s: %s", n.CourseCode, n.Letter), "enrollment:"+n.EnrollmentID)
	}
	return result, nil
}

func (s *GradeService) existingFinals(ctx context.Context, tx repository.Tx, section *models.Section) (*models.PostingResult, error) {
	completed, err := tx.Enrollments().ListBySection(ctx, section.ID, models.EnrollmentStatusCompleted)
	if err != nil {
		return nil, err
	}
	result := &models.PostingResult{SectionID: section.ID, AlreadyPosted: true}
	for _, e := range completed {
		final, err := tx.Grades().FindFinal(ctx, e.ID)
		if err != nil {
			return nil, notFound(err, "final grade")
		}
		result.Finals = append(result.Finals, *final)
	}
	return result, nil
}

// SetSectionLock locks or unlocks grade editing. Unlocking a posted section
// lets corrections flow through to final grades and transcripts.
func (s *GradeService) SetSectionLock(ctx context.Context, principal *models.Principal, sectionID string, locked bool, reason string) (*models.SectionView, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	if !principal.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrAccessDenied, "only staff may change grade locks")
	}
	reason = strings.TrimSpace(reason)
	if !locked && reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a reason is required to unlock grades")
	}

	section, err := atomically(ctx, s.run, "set section lock", func(ctx context.Context, tx repository.Tx) (*models.Section, error) {
		section, err := tx.Sections().FindByID(ctx, sectionID)
		if err != nil {
			return nil, notFound(err, "section")
		}
		if locked {
			section.GradesLocked = true
			section.GradesUnlocked = false
			section.UnlockReason = nil
		} else {
			section.GradesUnlocked = true
			section.UnlockReason = &reason
		}
		if err := tx.Sections().SaveGradeFlags(ctx, section); err != nil {
			return nil, err
		}
		return section, nil
	})
	if err != nil {
		return nil, err
	}

	action := models.AuditActionSectionLock
	if !locked {
		action = models.AuditActionSectionUnlock
	}
	recordAudit(ctx, s.audit, s.logger, principal.ID, action, models.AuditEntitySection, sectionID, map[string]string{"reason": reason})
	return viewOf(section), nil
}

// ProjectedGrade computes the live grade of an enrollment from the scores
// recorded so far. It is informational and never stored.
func (s *GradeService) ProjectedGrade(ctx context.Context, principal *models.Principal, enrollmentID string) (*models.ProjectedGrade, error) {
	if err := requirePrincipal(principal); err != nil {
		return nil, err
	}
	return read(ctx, s.run, "project grade", func(ctx context.Context, tx repository.Tx) (*models.ProjectedGrade, error) {
		enrollment, err := tx.Enrollments().FindByID(ctx, enrollmentID)
		if err != nil {
			return nil, notFound(err, "enrollment")
		}
		section, err := tx.Sections().FindByID(ctx, enrollment.SectionID)
		if err != nil {
			return nil, notFound(err, "section")
		}
		if enrollment.StudentID != principal.ID && !canGrade(principal, section) {
			return nil, appErrors.Clone(appErrors.ErrAccessDenied, "not allowed to view this grade")
		}
		assessments, err := tx.Assessments().ListBySection(ctx, section.ID)
		if err != nil {
			return nil, err
		}
		grades, err := tx.Grades().ListByEnrollments(ctx, []string{enrollmentID})
		if err != nil {
			return nil, err
		}
		scores := make(map[string]float64, len(grades))
		for _, g := range grades {
			scores[g.AssessmentID] = g.Score
		}

		projected := &models.ProjectedGrade{
			EnrollmentID: enrollmentID,
			Assessments:  len(assessments),
			Graded:       len(assessments) - len(grading.Missing(assessments, scores)),
		}
		if res := grading.ComputeFinal(assessments, scores); res != nil {
			projected.Complete = true
			projected.Percentage = &res.Percentage
			projected.Letter = &res.Letter
			projected.Points = &res.Points
		}
		return projected, nil
	})
}

// postingContext is the catalog and term data copied onto transcript entries.
type postingContext struct {
	section     *models.Section
	course      *models.Course
	version     *models.CourseVersion
	term        *models.Term
	assessments []models.Assessment
}

func (s *GradeService) loadPostingContext(ctx context.Context, tx repository.Tx, section *models.Section) (*postingContext, error) {
	course, err := tx.Courses().FindCourseByID(ctx, section.CourseID)
	if err != nil {
		return nil, notFound(err, "course")
	}
	version, err := tx.Courses().ActiveVersion(ctx, section.CourseID)
	if err != nil {
		return nil, notFound(err, "active course version")
	}
	term, err := tx.Terms().FindByID(ctx, section.TermID)
	if err != nil {
		return nil, notFound(err, "term")
	}
	assessments, err := tx.Assessments().ListBySection(ctx, section.ID)
	if err != nil {
		return nil, err
	}
	return &postingContext{section: section, course: course, version: version, term: term, assessments: assessments}, nil
}

// gradesFor returns recorded scores keyed by enrollment then assessment.
func (p *postingContext) gradesFor(ctx context.Context, tx repository.Tx, enrollmentIDs []string) (map[string]map[string]float64, error) {
	out := make(map[string]map[string]float64, len(enrollmentIDs))
	if len(enrollmentIDs) == 0 {
		return out, nil
	}
	grades, err := tx.Grades().ListByEnrollments(ctx, enrollmentIDs)
	if err != nil {
		return nil, err
	}
	for _, g := range grades {
		if out[g.EnrollmentID] == nil {
			out[g.EnrollmentID] = make(map[string]float64)
		}
		out[g.EnrollmentID][g.AssessmentID] = g.Score
	}
	return out, nil
}

func (s *GradeService) writeFinal(ctx context.Context, tx repository.Tx, p *postingContext, e models.Enrollment, res *grading.Result, now time.Time) (*models.TranscriptEntry, error) {
	final := &models.FinalGrade{
		EnrollmentID: e.ID,
		Percentage:   res.Percentage,
		Letter:       res.Letter,
		Points:       res.Points,
		PostedAt:     now,
	}
	if err := tx.Grades().UpsertFinal(ctx, final); err != nil {
		return nil, err
	}
	entry := &models.TranscriptEntry{
		StudentID:     e.StudentID,
		EnrollmentID:  e.ID,
		SectionID:     p.section.ID,
		CourseID:      p.course.ID,
		CourseCode:    p.course.Code,
		CourseTitle:   p.version.Title,
		Credits:       p.version.Credits,
		TermID:        p.term.ID,
		TermName:      p.term.Name,
		TermStartDate: p.term.StartDate,
		Percentage:    res.Percentage,
		Letter:        res.Letter,
		GradePoints:   res.Points,
		PostedAt:      now,
	}
	if err := tx.Transcripts().Upsert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func sortedKeys(m map[string]*sectionUpdate) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func scoreDetails(scores []pendingScore) []models.ScoreEntry {
	out := make([]models.ScoreEntry, len(scores))
	for i, p := range scores {
		out[i] = p.entry
	}
	return out
}

func (s *GradeService) notify(ctx context.Context, userID, message, ref string) {
	if s.notifier != nil {
		s.notifier.Notify(ctx, userID, message, ref)
	}
}
