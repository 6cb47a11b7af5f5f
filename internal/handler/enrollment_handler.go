package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/dto"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/response"
)

type admissionService interface {
	Enroll(ctx context.Context, principal *models.Principal, req dto.EnrollRequest) (*models.AdmissionResult, error)
	Drop(ctx context.Context, principal *models.Principal, enrollmentID string) (*models.DropResult, error)
}

// EnrollmentHandler exposes admission and drop endpoints.
type EnrollmentHandler struct {
	service admissionService
}

// NewEnrollmentHandler builds a new handler.
func NewEnrollmentHandler(service admissionService) *EnrollmentHandler {
	return &EnrollmentHandler{service: service}
}

// Enroll godoc
// @Summary Request a seat in a section
// @Description Admits the student, or queues them when join_waitlist is set and the section is full.
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param payload body dto.EnrollRequest true "Enrollment payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	principal := principalFromContext(c)
	var req dto.EnrollRequest
	if !bindJSON(c, &req, "invalid enrollment payload") {
		return
	}
	if req.StudentID == "" && principal != nil {
		req.StudentID = principal.ID
	}
	res, err := h.service.Enroll(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusCreated
	if res.Status == models.EnrollmentStatusWaitlisted {
		status = http.StatusAccepted
	}
	response.JSON(c, status, res)
}

// Drop godoc
// @Summary Drop an enrollment
// @Description Dropping an active seat promotes the earliest eligible waitlisted student.
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	res, err := h.service.Drop(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res)
}
