package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
)

func TestCreateCourse(t *testing.T) {
	f := newFixture(t)
	f.course("CS101", 15)

	course, err := f.courses.CreateCourse(f.ctx, deptHead, dto.CreateCourseRequest{
		Code:          " CS201 ",
		Title:         "Data Structures",
		Credits:       15,
		Prerequisites: []string{"CS101", " CS101", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "CS201", course.Code)
	require.NotNil(t, course.ActiveVersion)
	assert.Equal(t, 1, course.ActiveVersion.Version)
	assert.Equal(t, []string{"CS101"}, []string(course.ActiveVersion.Prerequisites))

	_, err = f.courses.CreateCourse(f.ctx, deptHead, dto.CreateCourseRequest{Code: "CS201", Title: "Again", Credits: 15})
	requireCode(t, err, appErrors.ErrConflict.Code)

	_, err = f.courses.CreateCourse(f.ctx, instructor, dto.CreateCourseRequest{Code: "CS301", Title: "x", Credits: 15})
	requireCode(t, err, appErrors.ErrAccessDenied.Code)

	_, err = f.courses.CreateCourse(f.ctx, deptHead, dto.CreateCourseRequest{Code: "CS301", Title: "x", Credits: 0})
	requireCode(t, err, appErrors.ErrValidation.Code)

	_, err = f.courses.CreateCourse(f.ctx, nil, dto.CreateCourseRequest{Code: "CS301", Title: "x", Credits: 1})
	requireCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestCreateCourseRejectsSelfPrerequisite(t *testing.T) {
	f := newFixture(t)
	_, err := f.courses.CreateCourse(f.ctx, deptHead, dto.CreateCourseRequest{Code: "CS101", Title: "x", Credits: 15, Prerequisites: []string{"CS101"}})
	appErr := requireCode(t, err, appErrors.ErrCircularPrerequisite.Code)
	assert.Equal(t, models.CircularPrerequisiteDetails{Cycle: []string{"CS101", "CS101"}}, appErr.Details)
}

func TestValidatePrerequisites(t *testing.T) {
	f := newFixture(t)
	base := f.course("CS101", 15)
	f.course("CS201", 15, "CS101")

	res, err := f.courses.ValidatePrerequisites(f.ctx, base.ID, nil)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Cycle)

	res, err = f.courses.ValidatePrerequisites(f.ctx, base.ID, []string{"CS201"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, []string{"CS101", "CS201", "CS101"}, res.Cycle)

	res, err = f.courses.ValidatePrerequisites(f.ctx, base.ID, []string{"CS101"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CS101", "CS101"}, res.Cycle)

	_, err = f.courses.ValidatePrerequisites(f.ctx, base.ID, []string{"NOPE"})
	appErr := requireCode(t, err, appErrors.ErrValidation.Code)
	assert.Equal(t, map[string][]string{"unknown": {"NOPE"}}, appErr.Details)

	_, err = f.courses.ValidatePrerequisites(f.ctx, "missing", nil)
	requireCode(t, err, appErrors.ErrNotFound.Code)
}

func TestPublishVersion(t *testing.T) {
	f := newFixture(t)
	base := f.course("CS101", 15)
	f.course("CS201", 15, "CS101")
	f.course("MA101", 10)

	_, err := f.courses.PublishVersion(f.ctx, deptHead, base.ID, dto.PublishVersionRequest{Title: "Intro", Credits: 15, Prerequisites: []string{"CS201"}})
	appErr := requireCode(t, err, appErrors.ErrCircularPrerequisite.Code)
	assert.Equal(t, models.CircularPrerequisiteDetails{Cycle: []string{"CS101", "CS201", "CS101"}}, appErr.Details)

	version, err := f.courses.PublishVersion(f.ctx, deptHead, base.ID, dto.PublishVersionRequest{Title: "Intro v2", Credits: 20, Prerequisites: []string{"MA101"}})
	require.NoError(t, err)
	assert.Equal(t, 2, version.Version)
	assert.True(t, version.Active)

	versions, err := f.courses.ListVersions(f.ctx, base.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, 2, versions[0].Version)
	assert.True(t, versions[0].Active)
	assert.False(t, versions[1].Active)

	assert.Len(t, f.audit.Entries(models.AuditActionCourseVersion), 4)
}

func TestGetPrerequisiteGraph(t *testing.T) {
	f := newFixture(t)
	f.course("CS101", 15)
	f.course("MA101", 15)
	f.course("CS201", 15, "CS101")
	f.course("PH101", 15)
	top := f.course("CS301", 15, "CS201", "MA101")

	view, err := f.courses.GetPrerequisiteGraph(f.ctx, top.ID)
	require.NoError(t, err)
	assert.Equal(t, "CS301", view.Root)
	assert.True(t, view.Validation.Valid)
	assert.NotContains(t, view.Graph, "PH101")
	assert.Equal(t, []string{"CS201", "MA101"}, view.Graph["CS301"])
	assert.Empty(t, view.Graph["CS101"])
	assert.Equal(t, [][]string{{"CS301", "CS201", "CS101"}, {"CS301", "MA101"}}, view.Chains)
}
