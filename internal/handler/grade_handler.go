package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/response"
)

type gradeService interface {
	CreateAssessment(ctx context.Context, principal *models.Principal, sectionID string, req dto.CreateAssessmentRequest) (*models.AssessmentResult, error)
	ListAssessments(ctx context.Context, sectionID string) ([]models.Assessment, error)
	UpdateGrades(ctx context.Context, principal *models.Principal, entries []models.ScoreEntry) (*models.GradeUpdateResult, error)
	PostFinalGrades(ctx context.Context, principal *models.Principal, sectionID string) (*models.PostingResult, error)
	SetSectionLock(ctx context.Context, principal *models.Principal, sectionID string, locked bool, reason string) (*models.SectionView, error)
	ProjectedGrade(ctx context.Context, principal *models.Principal, enrollmentID string) (*models.ProjectedGrade, error)
}

// GradeHandler exposes assessments, raw scores and final grade posting.
type GradeHandler struct {
	service gradeService
}

// NewGradeHandler builds a new handler.
func NewGradeHandler(service gradeService) *GradeHandler {
	return &GradeHandler{service: service}
}

// CreateAssessment godoc
// @Summary Add a weighted assessment to a section
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body dto.CreateAssessmentRequest true "Assessment payload"
// @Success 201 {object} response.Envelope
// @Router /sections/{id}/assessments [post]
func (h *GradeHandler) CreateAssessment(c *gin.Context) {
	var req dto.CreateAssessmentRequest
	if !bindJSON(c, &req, "invalid assessment payload") {
		return
	}
	res, err := h.service.CreateAssessment(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// ListAssessments godoc
// @Summary List a section's assessments
// @Tags Grades
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/assessments [get]
func (h *GradeHandler) ListAssessments(c *gin.Context) {
	items, err := h.service.ListAssessments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}

// UpdateGrades godoc
// @Summary Record raw assessment scores
// @Description The whole batch is validated before anything is written.
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body dto.UpdateGradesRequest true "Scores"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grades [put]
func (h *GradeHandler) UpdateGrades(c *gin.Context) {
	var req dto.UpdateGradesRequest
	if !bindJSON(c, &req, "invalid grades payload") {
		return
	}
	if len(req.Grades) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "grades must not be empty"))
		return
	}
	res, err := h.service.UpdateGrades(c.Request.Context(), principalFromContext(c), req.Grades)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// PostFinalGrades godoc
// @Summary Post final grades for a section
// @Tags Grades
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /sections/{id}/final-grades [post]
func (h *GradeHandler) PostFinalGrades(c *gin.Context) {
	res, err := h.service.PostFinalGrades(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}

// SetLock godoc
// @Summary Lock or unlock grade editing on a section
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body dto.SetLockRequest true "Lock payload"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/lock [put]
func (h *GradeHandler) SetLock(c *gin.Context) {
	var req dto.SetLockRequest
	if !bindJSON(c, &req, "invalid lock payload") {
		return
	}
	if req.Locked == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "locked is required"))
		return
	}
	section, err := h.service.SetSectionLock(c.Request.Context(), principalFromContext(c), c.Param("id"), *req.Locked, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section)
}

// ProjectedGrade godoc
// @Summary Live projected grade for an enrollment
// @Tags Grades
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/projected-grade [get]
func (h *GradeHandler) ProjectedGrade(c *gin.Context) {
	res, err := h.service.ProjectedGrade(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}
