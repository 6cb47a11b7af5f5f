package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/internal/repository/memory"
)

var (
	deptHead   = &models.Principal{ID: "head-1", Roles: []models.Role{models.RoleDepartmentHead}}
	staff      = &models.Principal{ID: "staff-1", Roles: []models.Role{models.RoleStaff}}
	instructor = &models.Principal{ID: "inst-1", Roles: []models.Role{models.RoleInstructor}}
)

func student(id string) *models.Principal {
	return &models.Principal{ID: id, Roles: []models.Role{models.RoleStudent}}
}

var testRetry = RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

type fixture struct {
	t         *testing.T
	ctx       context.Context
	store     *memory.Store
	audit     *memory.AuditLog
	published *recordingPublisher
	metrics   *MetricsService

	courses     *CourseService
	sections    *SectionService
	admission   *AdmissionService
	grades      *GradeService
	transcripts *TranscriptService
	standing    *StandingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	audit := memory.NewAuditLog()
	pub := &recordingPublisher{}
	metrics := NewMetricsService()
	notifier := NewNotificationService(nil, pub, metrics, nil)

	return &fixture{
		t:           t,
		ctx:         context.Background(),
		store:       store,
		audit:       audit,
		published:   pub,
		metrics:     metrics,
		courses:     NewCourseService(store, audit, nil, metrics, nil, testRetry),
		sections:    NewSectionService(store, audit, nil, metrics, nil, testRetry),
		admission:   NewAdmissionService(store, audit, notifier, nil, metrics, nil, testRetry),
		grades:      NewGradeService(store, audit, notifier, nil, metrics, nil, testRetry),
		transcripts: NewTranscriptService(store, metrics, nil),
		standing:    NewStandingService(store, audit, notifier, nil, 0, metrics, nil, testRetry),
	}
}

func (f *fixture) term(id string, start time.Time) models.Term {
	term := models.Term{ID: id, Name: "Term " + id, StartDate: start, EndDate: start.AddDate(0, 4, 0)}
	f.store.PutTerm(term)
	return term
}

func (f *fixture) course(code string, credits float64, prereqs ...string) *models.Course {
	f.t.Helper()
	course, err := f.courses.CreateCourse(f.ctx, deptHead, dto.CreateCourseRequest{
		Code:          code,
		Title:         code + " title",
		Credits:       credits,
		Prerequisites: prereqs,
	})
	require.NoError(f.t, err)
	return course
}

func (f *fixture) section(courseID, termID string, capacity int, slots ...models.ScheduleSlot) *models.SectionView {
	f.t.Helper()
	inst := instructor.ID
	section, err := f.sections.Create(f.ctx, deptHead, dto.CreateSectionRequest{
		CourseID:            courseID,
		TermID:              termID,
		Capacity:            capacity,
		InstructorID:        &inst,
		IsOpenForEnrollment: true,
		Slots:               slots,
	})
	require.NoError(f.t, err)
	return section
}

func (f *fixture) enroll(studentID, sectionID string, waitlist bool) *models.AdmissionResult {
	f.t.Helper()
	res, err := f.admission.Enroll(f.ctx, student(studentID), dto.EnrollRequest{StudentID: studentID, SectionID: sectionID, JoinWaitlist: waitlist})
	require.NoError(f.t, err)
	return res
}

func (f *fixture) assessment(sectionID, title string, weight, total float64) models.Assessment {
	f.t.Helper()
	res, err := f.grades.CreateAssessment(f.ctx, instructor, sectionID, dto.CreateAssessmentRequest{Title: title, Weight: weight, TotalPoints: total})
	require.NoError(f.t, err)
	return res.Assessment
}

// pass runs a single-assessment offering of course in a past term so it
// shows up on the student's transcript with the given percentage.
func (f *fixture) pass(studentID string, course *models.Course, score float64) {
	f.t.Helper()
	term := f.term("past-"+course.Code+"-"+studentID, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	section := f.section(course.ID, term.ID, 5, slot(models.Sunday, "06:00", "07:00"))
	enrollment := f.enroll(studentID, section.ID, false)
	exam := f.assessment(section.ID, "exam", 100, 100)
	_, err := f.grades.UpdateGrades(f.ctx, instructor, []models.ScoreEntry{{EnrollmentID: enrollment.Enrollment.ID, AssessmentID: exam.ID, Score: score}})
	require.NoError(f.t, err)
	_, err = f.grades.PostFinalGrades(f.ctx, instructor, section.ID)
	require.NoError(f.t, err)
}

func slot(day models.Weekday, start, end string) models.ScheduleSlot {
	s, err := models.ParseClock(start)
	if err != nil {
		panic(err)
	}
	e, err := models.ParseClock(end)
	if err != nil {
		panic(err)
	}
	return models.ScheduleSlot{Day: day, Start: s, End: e, Room: "R1"}
}
