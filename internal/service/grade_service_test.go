package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

type gradedSection struct {
	section *models.SectionView
	midterm models.Assessment
	final   models.Assessment
	seat    models.Enrollment
}

// newGradedSection sets up CS101 in T1 with a 40/60 split and one seated student.
func newGradedSection(f *fixture, finalWeight float64) gradedSection {
	f.term("T1", monday)
	course := f.course("CS101", 15)
	section := f.section(course.ID, "T1", 3, slot(models.Monday, "09:00", "10:30"))
	seat := f.enroll("stu-1", section.ID, false)
	return gradedSection{
		section: section,
		midterm: f.assessment(section.ID, "midterm", 40, 100),
		final:   f.assessment(section.ID, "final", finalWeight, 100),
		seat:    seat.Enrollment,
	}
}

func (g gradedSection) scores(midterm, final float64) []models.ScoreEntry {
	return []models.ScoreEntry{
		{EnrollmentID: g.seat.ID, AssessmentID: g.midterm.ID, Score: midterm},
		{EnrollmentID: g.seat.ID, AssessmentID: g.final.ID, Score: final},
	}
}

func (f *fixture) transcriptOf(studentID string) []models.TranscriptEntry {
	f.t.Helper()
	var out []models.TranscriptEntry
	require.NoError(f.t, f.store.Read(f.ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		out, err = tx.Transcripts().ListByStudent(ctx, studentID)
		return err
	}))
	return out
}

func TestCreateAssessmentWarnsUntilWeightsTotal100(t *testing.T) {
	f := newFixture(t)
	f.term("T1", monday)
	course := f.course("CS101", 15)
	section := f.section(course.ID, "T1", 3, slot(models.Monday, "09:00", "10:30"))

	first, err := f.grades.CreateAssessment(f.ctx, instructor, section.ID, dto.CreateAssessmentRequest{Title: "midterm", Weight: 40, TotalPoints: 50})
	require.NoError(t, err)
	assert.Equal(t, 40.0, first.WeightTotal)
	assert.NotEmpty(t, first.Warning)

	second, err := f.grades.CreateAssessment(f.ctx, instructor, section.ID, dto.CreateAssessmentRequest{Title: "final", Weight: 60, TotalPoints: 100})
	require.NoError(t, err)
	assert.Equal(t, 100.0, second.WeightTotal)
	assert.Empty(t, second.Warning)

	list, err := f.grades.ListAssessments(f.ctx, section.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "midterm", list[0].Title)

	_, err = f.grades.CreateAssessment(f.ctx, student("stu-1"), section.ID, dto.CreateAssessmentRequest{Title: "quiz", Weight: 1, TotalPoints: 1})
	requireCode(t, err, appErrors.ErrAccessDenied.Code)
}

func TestPostFinalGradesComputesWeightedFinal(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 60)

	_, err := f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 50))
	require.NoError(t, err)

	res, err := f.grades.PostFinalGrades(f.ctx, instructor, g.section.ID)
	require.NoError(t, err)
	require.Equal(t, 1, res.Posted)
	assert.Equal(t, 62.0, res.Finals[0].Percentage)
	assert.Equal(t, models.LetterB, res.Finals[0].Letter)
	assert.Equal(t, 4.0, res.Finals[0].Points)

	assert.Equal(t, models.EnrollmentStatusCompleted, f.enrollmentState(g.seat.ID).Status)
	view := f.sectionState(g.section.ID)
	assert.True(t, view.FinalGradesPosted)
	assert.False(t, view.GradesEditable)

	entries := f.transcriptOf("stu-1")
	require.Len(t, entries, 1)
	assert.Equal(t, "CS101", entries[0].CourseCode)
	assert.Equal(t, 15.0, entries[0].Credits)
	assert.Equal(t, 1, entries[0].Revision)
	assert.Len(t, f.audit.Entries(models.AuditActionFinalPosted), 1)
	assert.NotEmpty(t, f.published.For("stu-1"))
}

func TestPostFinalGradesRejectsIncompleteWeightsWithoutWriting(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 55)

	_, err := f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 50))
	require.NoError(t, err)

	_, err = f.grades.PostFinalGrades(f.ctx, instructor, g.section.ID)
	appErr := requireCode(t, err, appErrors.ErrInvalidWeights.Code)
	assert.Equal(t, models.InvalidWeightsDetails{Total: 95}, appErr.Details)

	assert.Equal(t, models.EnrollmentStatusActive, f.enrollmentState(g.seat.ID).Status)
	assert.False(t, f.sectionState(g.section.ID).FinalGradesPosted)
	assert.Empty(t, f.transcriptOf("stu-1"))
	require.NoError(t, f.store.Read(f.ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.Grades().FindFinal(ctx, g.seat.ID)
		assert.ErrorIs(t, err, sql.ErrNoRows)
		return nil
	}))
}

func TestPostFinalGradesReportsMissingGrades(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 60)
	other := f.enroll("stu-2", g.section.ID, false)

	_, err := f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 50))
	require.NoError(t, err)
	_, err = f.grades.UpdateGrades(f.ctx, instructor, []models.ScoreEntry{{EnrollmentID: other.Enrollment.ID, AssessmentID: g.midterm.ID, Score: 0}})
	require.NoError(t, err)

	_, err = f.grades.PostFinalGrades(f.ctx, instructor, g.section.ID)
	appErr := requireCode(t, err, appErrors.ErrMissingGrades.Code)
	assert.Equal(t, models.MissingGradesDetails{Missing: []models.MissingGradeSet{{
		EnrollmentID:  other.Enrollment.ID,
		StudentID:     "stu-2",
		AssessmentIDs: []string{g.final.ID},
	}}}, appErr.Details)
	assert.False(t, f.sectionState(g.section.ID).FinalGradesPosted)
}

func TestPostFinalGradesLeavesWaitlistAlone(t *testing.T) {
	f := newFixture(t)
	f.term("T1", monday)
	course := f.course("CS101", 15)
	section := f.section(course.ID, "T1", 1, slot(models.Monday, "09:00", "10:30"))
	seat := f.enroll("stu-1", section.ID, false)
	waiting := f.enroll("stu-2", section.ID, true)
	exam := f.assessment(section.ID, "exam", 100, 20)

	_, err := f.grades.UpdateGrades(f.ctx, instructor, []models.ScoreEntry{{EnrollmentID: seat.Enrollment.ID, AssessmentID: exam.ID, Score: 15}})
	require.NoError(t, err)
	res, err := f.grades.PostFinalGrades(f.ctx, instructor, section.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Posted)
	assert.Equal(t, 75.0, res.Finals[0].Percentage)
	assert.Equal(t, models.EnrollmentStatusWaitlisted, f.enrollmentState(waiting.Enrollment.ID).Status)
}

func TestPostFinalGradesIsIdempotent(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 60)
	_, err := f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 50))
	require.NoError(t, err)

	first, err := f.grades.PostFinalGrades(f.ctx, instructor, g.section.ID)
	require.NoError(t, err)
	again, err := f.grades.PostFinalGrades(f.ctx, staff, g.section.ID)
	require.NoError(t, err)

	assert.True(t, again.AlreadyPosted)
	require.Len(t, again.Finals, 1)
	assert.Equal(t, first.Finals[0].Percentage, again.Finals[0].Percentage)
	assert.Equal(t, 1, f.transcriptOf("stu-1")[0].Revision)
	assert.Len(t, f.audit.Entries(models.AuditActionFinalPosted), 1)
}

func TestPostFinalGradesRequiresSectionAuthority(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 60)
	stranger := &models.Principal{ID: "inst-2", Roles: []models.Role{models.RoleInstructor}}

	_, err := f.grades.PostFinalGrades(f.ctx, stranger, g.section.ID)
	requireCode(t, err, appErrors.ErrAccessDenied.Code)
	_, err = f.grades.UpdateGrades(f.ctx, stranger, g.scores(1, 1))
	requireCode(t, err, appErrors.ErrAccessDenied.Code)
}

func TestUpdateGradesValidatesEveryScoreFirst(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 60)

	_, err := f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 101))
	appErr := requireCode(t, err, appErrors.ErrInvalidScore.Code)
	assert.Equal(t, models.InvalidScoreDetails{EnrollmentID: g.seat.ID, AssessmentID: g.final.ID, Value: 101, Max: 100}, appErr.Details)

	_, err = f.grades.UpdateGrades(f.ctx, instructor, g.scores(-1, 50))
	requireCode(t, err, appErrors.ErrInvalidScore.Code)

	projected, err := f.grades.ProjectedGrade(f.ctx, student("stu-1"), g.seat.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, projected.Graded)
}

func TestGradesLockAndUnlockRegenerates(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 60)
	_, err := f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 50))
	require.NoError(t, err)
	_, err = f.grades.PostFinalGrades(f.ctx, instructor, g.section.ID)
	require.NoError(t, err)

	_, err = f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 60))
	requireCode(t, err, appErrors.ErrGradesLocked.Code)

	_, err = f.grades.SetSectionLock(f.ctx, staff, g.section.ID, false, "  ")
	requireCode(t, err, appErrors.ErrValidation.Code)
	_, err = f.grades.SetSectionLock(f.ctx, instructor, g.section.ID, false, "regrade")
	requireCode(t, err, appErrors.ErrAccessDenied.Code)

	view, err := f.grades.SetSectionLock(f.ctx, staff, g.section.ID, false, "final exam re-marked")
	require.NoError(t, err)
	assert.True(t, view.GradesEditable)
	require.NotNil(t, view.UnlockReason)

	res, err := f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 90))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Equal(t, 1, res.Regenerated)

	entries := f.transcriptOf("stu-1")
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].Revision)
	assert.Equal(t, 86.0, entries[0].Percentage)
	assert.Equal(t, models.LetterA, entries[0].Letter)

	view, err = f.grades.SetSectionLock(f.ctx, staff, g.section.ID, true, "")
	require.NoError(t, err)
	assert.False(t, view.GradesEditable)
	_, err = f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 95))
	requireCode(t, err, appErrors.ErrGradesLocked.Code)

	assert.Len(t, f.audit.Entries(models.AuditActionSectionUnlock), 1)
	assert.Len(t, f.audit.Entries(models.AuditActionSectionLock), 1)
}

func TestProjectedGrade(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 60)

	_, err := f.grades.UpdateGrades(f.ctx, instructor, []models.ScoreEntry{{EnrollmentID: g.seat.ID, AssessmentID: g.midterm.ID, Score: 80}})
	require.NoError(t, err)

	partial, err := f.grades.ProjectedGrade(f.ctx, student("stu-1"), g.seat.ID)
	require.NoError(t, err)
	assert.False(t, partial.Complete)
	assert.Nil(t, partial.Percentage)
	assert.Equal(t, 1, partial.Graded)
	assert.Equal(t, 2, partial.Assessments)

	_, err = f.grades.UpdateGrades(f.ctx, instructor, []models.ScoreEntry{{EnrollmentID: g.seat.ID, AssessmentID: g.final.ID, Score: 50}})
	require.NoError(t, err)

	full, err := f.grades.ProjectedGrade(f.ctx, instructor, g.seat.ID)
	require.NoError(t, err)
	assert.True(t, full.Complete)
	require.NotNil(t, full.Percentage)
	assert.Equal(t, 62.0, *full.Percentage)

	_, err = f.grades.ProjectedGrade(f.ctx, student("stu-9"), g.seat.ID)
	requireCode(t, err, appErrors.ErrAccessDenied.Code)
}

func (f *fixture) gradesOf(enrollmentID string) map[string]float64 {
	f.t.Helper()
	out := make(map[string]float64)
	require.NoError(f.t, f.store.Read(f.ctx, func(ctx context.Context, tx repository.Tx) error {
		grades, err := tx.Grades().ListByEnrollments(ctx, []string{enrollmentID})
		for _, g := range grades {
			out[g.AssessmentID] = g.Score
		}
		return err
	}))
	return out
}

// addAssessmentDirectly writes an assessment without going through the service.
func (f *fixture) addAssessmentDirectly(sectionID string, weight float64) models.Assessment {
	f.t.Helper()
	extra := models.Assessment{SectionID: sectionID, Title: "bonus", Weight: weight, TotalPoints: 100}
	require.NoError(f.t, f.store.Atomic(f.ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Assessments().Create(ctx, &extra)
	}))
	return extra
}

func postAndUnlock(t *testing.T, f *fixture, g gradedSection) {
	t.Helper()
	_, err := f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 50))
	require.NoError(t, err)
	_, err = f.grades.PostFinalGrades(f.ctx, instructor, g.section.ID)
	require.NoError(t, err)
	_, err = f.grades.SetSectionLock(f.ctx, staff, g.section.ID, false, "fix")
	require.NoError(t, err)
}

func TestCreateAssessmentRejectedAfterPosting(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 60)
	postAndUnlock(t, f, g)

	_, err := f.grades.CreateAssessment(f.ctx, instructor, g.section.ID, dto.CreateAssessmentRequest{Title: "bonus", Weight: 40, TotalPoints: 100})
	requireCode(t, err, appErrors.ErrPreconditionFailed.Code)

	list, err := f.grades.ListAssessments(f.ctx, g.section.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	res, err := f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 90))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Regenerated)
	assert.Equal(t, 86.0, f.transcriptOf("stu-1")[0].Percentage)
}

func TestUpdateGradesOnPostedSectionRequiresFullWeights(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 60)
	postAndUnlock(t, f, g)
	extra := f.addAssessmentDirectly(g.section.ID, 40)

	scores := append(g.scores(80, 90), models.ScoreEntry{EnrollmentID: g.seat.ID, AssessmentID: extra.ID, Score: 100})
	_, err := f.grades.UpdateGrades(f.ctx, instructor, scores)
	appErr := requireCode(t, err, appErrors.ErrInvalidWeights.Code)
	assert.Equal(t, models.InvalidWeightsDetails{Total: 140}, appErr.Details)

	entries := f.transcriptOf("stu-1")
	require.Len(t, entries, 1)
	assert.Equal(t, 62.0, entries[0].Percentage)
	assert.Equal(t, 1, entries[0].Revision)
	assert.Equal(t, map[string]float64{g.midterm.ID: 80, g.final.ID: 50}, f.gradesOf(g.seat.ID))
}

func TestUpdateGradesOnPostedSectionReportsMissingGrades(t *testing.T) {
	f := newFixture(t)
	g := newGradedSection(f, 60)
	postAndUnlock(t, f, g)
	extra := f.addAssessmentDirectly(g.section.ID, 0)

	_, err := f.grades.UpdateGrades(f.ctx, instructor, g.scores(80, 90))
	appErr := requireCode(t, err, appErrors.ErrMissingGrades.Code)
	assert.Equal(t, models.MissingGradesDetails{Missing: []models.MissingGradeSet{{
		EnrollmentID:  g.seat.ID,
		StudentID:     "stu-1",
		AssessmentIDs: []string{extra.ID},
	}}}, appErr.Details)

	assert.Equal(t, 1, f.transcriptOf("stu-1")[0].Revision)
	assert.Equal(t, 50.0, f.gradesOf(g.seat.ID)[g.final.ID])
}

// interleavingStore runs before once, ahead of the first unit of work, to
// stand in for a concurrent writer.
type interleavingStore struct {
	repository.Store
	once   sync.Once
	before func()
}

func (s *interleavingStore) Atomic(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	s.once.Do(s.before)
	return s.Store.Atomic(ctx, fn)
}

type twoSections struct {
	first, second *models.SectionView
	firstExam     models.Assessment
	secondExam    models.Assessment
	firstSeat     models.Enrollment
	secondSeat    models.Enrollment
}

func newTwoSections(f *fixture) twoSections {
	f.term("T1", monday)
	cs := f.course("CS101", 15)
	ma := f.course("MA101", 15)
	var s twoSections
	s.first = f.section(cs.ID, "T1", 3, slot(models.Monday, "09:00", "10:00"))
	s.second = f.section(ma.ID, "T1", 3, slot(models.Tuesday, "09:00", "10:00"))
	s.firstExam = f.assessment(s.first.ID, "exam", 100, 100)
	s.secondExam = f.assessment(s.second.ID, "exam", 100, 100)
	s.firstSeat = f.enroll("stu-1", s.first.ID, false).Enrollment
	s.secondSeat = f.enroll("stu-1", s.second.ID, false).Enrollment
	return s
}

func (s twoSections) scores() []models.ScoreEntry {
	return []models.ScoreEntry{
		{EnrollmentID: s.firstSeat.ID, AssessmentID: s.firstExam.ID, Score: 70},
		{EnrollmentID: s.secondSeat.ID, AssessmentID: s.secondExam.ID, Score: 60},
	}
}

func TestUpdateGradesBatchIsAllOrNothing(t *testing.T) {
	cases := []struct {
		name string
		race func(f *fixture, s twoSections)
		code string
	}{
		{
			name: "section locked mid-call",
			race: func(f *fixture, s twoSections) {
				_, err := f.grades.SetSectionLock(f.ctx, staff, s.second.ID, true, "")
				require.NoError(f.t, err)
			},
			code: appErrors.ErrGradesLocked.Code,
		},
		{
			name: "enrollment dropped mid-call",
			race: func(f *fixture, s twoSections) {
				_, err := f.admission.Drop(f.ctx, student("stu-1"), s.secondSeat.ID)
				require.NoError(f.t, err)
			},
			code: appErrors.ErrPreconditionFailed.Code,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			s := newTwoSections(f)
			store := &interleavingStore{Store: f.store, before: func() { tc.race(f, s) }}
			svc := NewGradeService(store, f.audit, nil, nil, nil, nil, testRetry)

			_, err := svc.UpdateGrades(f.ctx, instructor, s.scores())
			requireCode(t, err, tc.code)
			assert.Empty(t, f.gradesOf(s.firstSeat.ID))
			assert.Empty(t, f.gradesOf(s.secondSeat.ID))
			assert.Empty(t, f.audit.Entries(models.AuditActionGradeUpdate))
		})
	}
}

func TestUpdateGradesAcrossSections(t *testing.T) {
	f := newFixture(t)
	s := newTwoSections(f)

	res, err := f.grades.UpdateGrades(f.ctx, instructor, s.scores())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)
	assert.Len(t, res.Sections, 2)
	assert.Equal(t, 70.0, f.gradesOf(s.firstSeat.ID)[s.firstExam.ID])
	assert.Equal(t, 60.0, f.gradesOf(s.secondSeat.ID)[s.secondExam.ID])
	assert.Len(t, f.audit.Entries(models.AuditActionGradeUpdate), 2)
}
