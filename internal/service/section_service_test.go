package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

func TestCreateSection(t *testing.T) {
	f := newFixture(t)
	f.term("T1", monday)
	course := f.course("CS101", 15)

	section := f.section(course.ID, "T1", 30, slot(models.Monday, "09:00", "10:30"))
	assert.NotEmpty(t, section.ID)
	assert.Equal(t, 30, section.Capacity)
	assert.Zero(t, section.EnrolledCount)
	assert.True(t, section.GradesEditable)
	assert.Len(t, f.audit.Entries(models.AuditActionSectionCreate), 1)

	stored := f.sectionState(section.ID)
	require.Len(t, stored.Slots, 1)
	assert.Equal(t, models.Monday, stored.Slots[0].Day)
}

func TestCreateSectionRejections(t *testing.T) {
	f := newFixture(t)
	f.term("T1", monday)
	closed := f.term("T0", monday.AddDate(-1, 0, 0))
	closed.Closed = true
	f.store.PutTerm(closed)
	course := f.course("CS101", 15)

	valid := func() dto.CreateSectionRequest {
		return dto.CreateSectionRequest{
			CourseID: course.ID,
			TermID:   "T1",
			Capacity: 10,
			Slots:    []models.ScheduleSlot{slot(models.Monday, "09:00", "10:00")},
		}
	}
	backwards := slot(models.Tuesday, "11:00", "10:00")

	cases := []struct {
		name      string
		principal *models.Principal
		mutate    func(*dto.CreateSectionRequest)
		code      string
	}{
		{name: "instructor", principal: instructor, code: appErrors.ErrAccessDenied.Code},
		{name: "zero capacity", principal: deptHead, mutate: func(r *dto.CreateSectionRequest) { r.Capacity = 0 }, code: appErrors.ErrValidation.Code},
		{name: "no slots", principal: deptHead, mutate: func(r *dto.CreateSectionRequest) { r.Slots = nil }, code: appErrors.ErrValidation.Code},
		{name: "bad slot", principal: deptHead, mutate: func(r *dto.CreateSectionRequest) { r.Slots = append(r.Slots, backwards) }, code: appErrors.ErrValidation.Code},
		{name: "unknown course", principal: deptHead, mutate: func(r *dto.CreateSectionRequest) { r.CourseID = "missing" }, code: appErrors.ErrNotFound.Code},
		{name: "unknown term", principal: deptHead, mutate: func(r *dto.CreateSectionRequest) { r.TermID = "missing" }, code: appErrors.ErrNotFound.Code},
		{name: "closed term", principal: deptHead, mutate: func(r *dto.CreateSectionRequest) { r.TermID = "T0" }, code: appErrors.ErrPreconditionFailed.Code},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := valid()
			if tc.mutate != nil {
				tc.mutate(&req)
			}
			_, err := f.sections.Create(f.ctx, tc.principal, req)
			requireCode(t, err, tc.code)
		})
	}

	req := valid()
	req.Slots = append(req.Slots, backwards)
	_, err := f.sections.Create(f.ctx, deptHead, req)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, map[string]int{"slot": 1}, appErr.Details)
	assert.Empty(t, f.audit.Entries(models.AuditActionSectionCreate))
}

func TestSetEnrollmentOpen(t *testing.T) {
	f := newFixture(t)
	f.term("T1", monday)
	course := f.course("CS101", 15)
	section := f.section(course.ID, "T1", 2, slot(models.Monday, "09:00", "10:00"))
	f.enroll("stu-1", section.ID, false)

	_, err := f.sections.SetEnrollmentOpen(f.ctx, instructor, section.ID, false)
	requireCode(t, err, appErrors.ErrAccessDenied.Code)

	view, err := f.sections.SetEnrollmentOpen(f.ctx, staff, section.ID, false)
	require.NoError(t, err)
	assert.False(t, view.IsOpenForEnrollment)
	assert.Equal(t, 1, view.EnrolledCount)

	_, err = f.admission.Enroll(f.ctx, student("stu-2"), dto.EnrollRequest{StudentID: "stu-2", SectionID: section.ID})
	requireCode(t, err, appErrors.ErrEnrollmentClosed.Code)

	view, err = f.sections.SetEnrollmentOpen(f.ctx, deptHead, section.ID, true)
	require.NoError(t, err)
	assert.True(t, view.IsOpenForEnrollment)
	f.enroll("stu-2", section.ID, false)

	_, err = f.sections.SetEnrollmentOpen(f.ctx, staff, "missing", true)
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestWaitlistAccess(t *testing.T) {
	f := newFixture(t)
	f.term("T1", monday)
	course := f.course("CS101", 15)
	section := f.section(course.ID, "T1", 1, slot(models.Monday, "09:00", "10:00"))
	f.enroll("stu-1", section.ID, false)
	f.enroll("stu-2", section.ID, true)
	f.enroll("stu-3", section.ID, true)

	for _, p := range []*models.Principal{staff, deptHead, instructor} {
		entries, err := f.sections.Waitlist(f.ctx, p, section.ID)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, 1, entries[0].Position)
		assert.Equal(t, "stu-2", entries[0].Enrollment.StudentID)
		assert.Equal(t, "stu-3", entries[1].Enrollment.StudentID)
	}

	_, err := f.sections.Waitlist(f.ctx, student("stu-2"), section.ID)
	requireCode(t, err, appErrors.ErrAccessDenied.Code)

	other := &models.Principal{ID: "inst-2", Roles: []models.Role{models.RoleInstructor}}
	_, err = f.sections.Waitlist(f.ctx, other, section.ID)
	requireCode(t, err, appErrors.ErrAccessDenied.Code)
}
