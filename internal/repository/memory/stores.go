package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
)

type courseStore struct{ t *tx }

func (s courseStore) CreateCourse(_ context.Context, course *models.Course) error {
	for _, c := range s.t.data.courses {
		if c.Code == course.Code {
			return repository.ErrDuplicate
		}
	}
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	if course.CreatedAt.IsZero() {
		course.CreatedAt = s.t.clock.now()
	}
	stored := *course
	stored.ActiveVersion = nil
	s.t.data.courses[course.ID] = stored
	return nil
}

func (s courseStore) FindCourseByID(ctx context.Context, id string) (*models.Course, error) {
	course, ok := s.t.data.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if v, err := s.ActiveVersion(ctx, id); err == nil {
		course.ActiveVersion = v
	}
	return &course, nil
}

func (s courseStore) FindCourseByCode(ctx context.Context, code string) (*models.Course, error) {
	for id, c := range s.t.data.courses {
		if c.Code == code {
			return s.FindCourseByID(ctx, id)
		}
	}
	return nil, sql.ErrNoRows
}

func (s courseStore) CreateVersion(_ context.Context, version *models.CourseVersion) error {
	if _, ok := s.t.data.courses[version.CourseID]; !ok {
		return sql.ErrNoRows
	}
	next := 1
	for id, v := range s.t.data.versions {
		if v.CourseID != version.CourseID {
			continue
		}
		if v.Version >= next {
			next = v.Version + 1
		}
		if v.Active {
			v.Active = false
			s.t.data.versions[id] = v
		}
	}
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = s.t.clock.now()
	}
	version.Version = next
	version.Active = true
	stored := *version
	stored.Prerequisites = append(pq.StringArray{}, version.Prerequisites...)
	s.t.data.versions[version.ID] = stored
	return nil
}

func (s courseStore) ListVersions(_ context.Context, courseID string) ([]models.CourseVersion, error) {
	var out []models.CourseVersion
	for _, v := range s.t.data.versions {
		if v.CourseID == courseID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

func (s courseStore) ActiveVersion(_ context.Context, courseID string) (*models.CourseVersion, error) {
	for _, v := range s.t.data.versions {
		if v.CourseID == courseID && v.Active {
			return &v, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s courseStore) ActivePrerequisites(context.Context) (map[string][]string, error) {
	graph := make(map[string][]string)
	for _, v := range s.t.data.versions {
		if !v.Active {
			continue
		}
		if c, ok := s.t.data.courses[v.CourseID]; ok {
			graph[c.Code] = append([]string(nil), v.Prerequisites...)
		}
	}
	return graph, nil
}

func (s courseStore) MissingCodes(_ context.Context, codes []string) ([]string, error) {
	known := make(map[string]bool, len(s.t.data.courses))
	for _, c := range s.t.data.courses {
		known[c.Code] = true
	}
	var missing []string
	for _, code := range codes {
		if !known[code] {
			missing = append(missing, code)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

type termStore struct{ t *tx }

func (s termStore) FindByID(_ context.Context, id string) (*models.Term, error) {
	term, ok := s.t.data.terms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &term, nil
}

func (s termStore) MarkStandingProcessed(_ context.Context, id string, at time.Time) error {
	term, ok := s.t.data.terms[id]
	if !ok {
		return sql.ErrNoRows
	}
	term.StandingProcessedAt = &at
	s.t.data.terms[id] = term
	return nil
}

type sectionStore struct{ t *tx }

func (s sectionStore) Create(_ context.Context, section *models.Section) error {
	if section.ID == "" {
		section.ID = uuid.NewString()
	}
	if _, exists := s.t.data.sections[section.ID]; exists {
		return repository.ErrDuplicate
	}
	if section.CreatedAt.IsZero() {
		section.CreatedAt = s.t.clock.now()
	}
	if section.Version == 0 {
		section.Version = 1
	}
	stored := *section
	stored.Slots = append([]models.ScheduleSlot(nil), section.Slots...)
	s.t.data.sections[section.ID] = stored
	return nil
}

func (s sectionStore) FindByID(_ context.Context, id string) (*models.Section, error) {
	section, ok := s.t.data.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &section, nil
}

func (s sectionStore) ListByIDs(_ context.Context, ids []string) ([]models.Section, error) {
	var out []models.Section
	for _, id := range ids {
		if section, ok := s.t.data.sections[id]; ok {
			out = append(out, section)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s sectionStore) ListByTerm(_ context.Context, termID string) ([]models.Section, error) {
	var out []models.Section
	for _, section := range s.t.data.sections {
		if section.TermID == termID {
			out = append(out, section)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s sectionStore) AdjustEnrollment(_ context.Context, id string, version int64, delta int) error {
	section, ok := s.t.data.sections[id]
	if !ok || section.Version != version {
		return repository.ErrStaleVersion
	}
	next := section.EnrolledCount + delta
	if next < 0 || next > section.Capacity {
		return repository.ErrStaleVersion
	}
	section.EnrolledCount = next
	section.Version++
	s.t.data.sections[id] = section
	return nil
}

func (s sectionStore) SetEnrollmentOpen(_ context.Context, id string, version int64, open bool) error {
	section, ok := s.t.data.sections[id]
	if !ok || section.Version != version {
		return repository.ErrStaleVersion
	}
	section.IsOpenForEnrollment = open
	section.Version++
	s.t.data.sections[id] = section
	return nil
}

func (s sectionStore) SaveGradeFlags(_ context.Context, section *models.Section) error {
	stored, ok := s.t.data.sections[section.ID]
	if !ok || stored.Version != section.Version {
		return repository.ErrStaleVersion
	}
	stored.FinalGradesPosted = section.FinalGradesPosted
	stored.GradesLocked = section.GradesLocked
	stored.GradesUnlocked = section.GradesUnlocked
	stored.UnlockReason = section.UnlockReason
	stored.Version++
	s.t.data.sections[section.ID] = stored
	section.Version = stored.Version
	return nil
}

type enrollmentStore struct{ t *tx }

func (s enrollmentStore) Create(_ context.Context, enrollment *models.Enrollment) error {
	if enrollment.Status != models.EnrollmentStatusDropped {
		for _, e := range s.t.data.enrollments {
			if e.StudentID == enrollment.StudentID && e.CourseID == enrollment.CourseID && e.Status != models.EnrollmentStatusDropped {
				return repository.ErrDuplicate
			}
		}
	}
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = s.t.clock.now()
	}
	s.t.data.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (s enrollmentStore) FindByID(_ context.Context, id string) (*models.Enrollment, error) {
	e, ok := s.t.data.enrollments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &e, nil
}

func (s enrollmentStore) FindOpenByStudentCourse(_ context.Context, studentID, courseID string) (*models.Enrollment, error) {
	for _, e := range s.t.data.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status != models.EnrollmentStatusDropped {
			return &e, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s enrollmentStore) ListActiveByStudentTerm(_ context.Context, studentID, termID string) ([]models.Enrollment, error) {
	return s.filter(func(e models.Enrollment) bool {
		return e.StudentID == studentID && e.TermID == termID && e.Status == models.EnrollmentStatusActive
	}), nil
}

func (s enrollmentStore) ListBySection(_ context.Context, sectionID string, statuses ...models.EnrollmentStatus) ([]models.Enrollment, error) {
	return s.filter(func(e models.Enrollment) bool {
		if e.SectionID != sectionID {
			return false
		}
		if len(statuses) == 0 {
			return true
		}
		for _, st := range statuses {
			if e.Status == st {
				return true
			}
		}
		return false
	}), nil
}

func (s enrollmentStore) ListWaitlist(ctx context.Context, sectionID string) ([]models.Enrollment, error) {
	return s.ListBySection(ctx, sectionID, models.EnrollmentStatusWaitlisted)
}

func (s enrollmentStore) TransitionStatus(_ context.Context, id string, from, to models.EnrollmentStatus, at time.Time) error {
	e, ok := s.t.data.enrollments[id]
	if !ok || e.Status != from {
		return repository.ErrStaleVersion
	}
	e.Status = to
	switch to {
	case models.EnrollmentStatusDropped:
		e.DroppedAt = &at
	case models.EnrollmentStatusCompleted:
		e.CompletedAt = &at
	}
	s.t.data.enrollments[id] = e
	return nil
}

func (s enrollmentStore) filter(keep func(models.Enrollment) bool) []models.Enrollment {
	var out []models.Enrollment
	for _, e := range s.t.data.enrollments {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

type assessmentStore struct{ t *tx }

func (s assessmentStore) Create(_ context.Context, assessment *models.Assessment) error {
	if assessment.ID == "" {
		assessment.ID = uuid.NewString()
	}
	if assessment.CreatedAt.IsZero() {
		assessment.CreatedAt = s.t.clock.now()
	}
	s.t.data.assessments[assessment.ID] = *assessment
	return nil
}

func (s assessmentStore) FindByID(_ context.Context, id string) (*models.Assessment, error) {
	a, ok := s.t.data.assessments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &a, nil
}

func (s assessmentStore) ListBySection(_ context.Context, sectionID string) ([]models.Assessment, error) {
	var out []models.Assessment
	for _, a := range s.t.data.assessments {
		if a.SectionID == sectionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type gradeStore struct{ t *tx }

func gradeKey(enrollmentID, assessmentID string) string {
	return enrollmentID + "|" + assessmentID
}

func (s gradeStore) Upsert(_ context.Context, grade *models.Grade) error {
	key := gradeKey(grade.EnrollmentID, grade.AssessmentID)
	if existing, ok := s.t.data.grades[key]; ok {
		grade.ID = existing.ID
	} else if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.UpdatedAt.IsZero() {
		grade.UpdatedAt = s.t.clock.now()
	}
	s.t.data.grades[key] = *grade
	return nil
}

func (s gradeStore) ListByEnrollments(_ context.Context, enrollmentIDs []string) ([]models.Grade, error) {
	wanted := make(map[string]bool, len(enrollmentIDs))
	for _, id := range enrollmentIDs {
		wanted[id] = true
	}
	var out []models.Grade
	for _, g := range s.t.data.grades {
		if wanted[g.EnrollmentID] {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return gradeKey(out[i].EnrollmentID, out[i].AssessmentID) < gradeKey(out[j].EnrollmentID, out[j].AssessmentID)
	})
	return out, nil
}

func (s gradeStore) UpsertFinal(_ context.Context, final *models.FinalGrade) error {
	if final.PostedAt.IsZero() {
		final.PostedAt = s.t.clock.now()
	}
	s.t.data.finals[final.EnrollmentID] = *final
	return nil
}

func (s gradeStore) FindFinal(_ context.Context, enrollmentID string) (*models.FinalGrade, error) {
	f, ok := s.t.data.finals[enrollmentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &f, nil
}

type transcriptStore struct{ t *tx }

func (s transcriptStore) Upsert(_ context.Context, entry *models.TranscriptEntry) error {
	if existing, ok := s.t.data.transcripts[entry.EnrollmentID]; ok {
		entry.ID = existing.ID
		entry.Revision = existing.Revision + 1
	} else {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		entry.Revision = 1
	}
	s.t.data.transcripts[entry.EnrollmentID] = *entry
	return nil
}

func (s transcriptStore) ListByStudent(_ context.Context, studentID string) ([]models.TranscriptEntry, error) {
	var out []models.TranscriptEntry
	for _, e := range s.t.data.transcripts {
		if e.StudentID == studentID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.TermStartDate.Equal(b.TermStartDate) {
			return a.TermStartDate.Before(b.TermStartDate)
		}
		if a.TermID != b.TermID {
			return a.TermID < b.TermID
		}
		return a.CourseCode < b.CourseCode
	})
	return out, nil
}

func (s transcriptStore) ListByTerm(_ context.Context, termID string) ([]models.TranscriptEntry, error) {
	var out []models.TranscriptEntry
	for _, e := range s.t.data.transcripts {
		if e.TermID == termID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StudentID != out[j].StudentID {
			return out[i].StudentID < out[j].StudentID
		}
		return out[i].CourseCode < out[j].CourseCode
	})
	return out, nil
}

type standingStore struct{ t *tx }

func (s standingStore) Upsert(_ context.Context, record *models.StandingRecord) error {
	s.t.data.standings[record.StudentID+"|"+record.TermID] = *record
	return nil
}

func (s standingStore) ListByTerm(_ context.Context, termID string) ([]models.StandingRecord, error) {
	var out []models.StandingRecord
	for _, r := range s.t.data.standings {
		if r.TermID == termID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}
