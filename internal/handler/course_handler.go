package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/response"
)

type courseService interface {
	CreateCourse(ctx context.Context, principal *models.Principal, req dto.CreateCourseRequest) (*models.Course, error)
	PublishVersion(ctx context.Context, principal *models.Principal, courseID string, req dto.PublishVersionRequest) (*models.CourseVersion, error)
	ListVersions(ctx context.Context, courseID string) ([]models.CourseVersion, error)
	ValidatePrerequisites(ctx context.Context, courseID string, codes []string) (*models.PrerequisiteValidation, error)
	GetPrerequisiteGraph(ctx context.Context, courseID string) (*models.PrerequisiteGraph, error)
}

// CourseHandler exposes the course catalog and its prerequisite graph.
type CourseHandler struct {
	service courseService
}

// NewCourseHandler builds a new handler.
func NewCourseHandler(service courseService) *CourseHandler {
	return &CourseHandler{service: service}
}

// Create godoc
// @Summary Create a course with its first version
// @Tags Courses
// @Accept json
// @Produce json
// @Param payload body dto.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	var req dto.CreateCourseRequest
	if !bindJSON(c, &req, "invalid course payload") {
		return
	}
	course, err := h.service.CreateCourse(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, course)
}

// PublishVersion godoc
// @Summary Publish a new active version of a course
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.PublishVersionRequest true "Version payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{id}/versions [post]
func (h *CourseHandler) PublishVersion(c *gin.Context) {
	var req dto.PublishVersionRequest
	if !bindJSON(c, &req, "invalid course version payload") {
		return
	}
	version, err := h.service.PublishVersion(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, version)
}

// ListVersions godoc
// @Summary List every version of a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/versions [get]
func (h *CourseHandler) ListVersions(c *gin.Context) {
	versions, err := h.service.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, versions)
}

// ValidatePrerequisites godoc
// @Summary Check a candidate prerequisite list for cycles
// @Tags Courses
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body dto.ValidatePrerequisitesRequest true "Candidate prerequisites"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/prerequisites/validate [post]
func (h *CourseHandler) ValidatePrerequisites(c *gin.Context) {
	var req dto.ValidatePrerequisitesRequest
	if !bindJSON(c, &req, "invalid prerequisite payload") {
		return
	}
	result, err := h.service.ValidatePrerequisites(c.Request.Context(), c.Param("id"), req.Prerequisites)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// PrerequisiteGraph godoc
// @Summary Get the prerequisite graph reachable from a course
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/prerequisite-graph [get]
func (h *CourseHandler) PrerequisiteGraph(c *gin.Context) {
	graph, err := h.service.GetPrerequisiteGraph(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, graph)
}
