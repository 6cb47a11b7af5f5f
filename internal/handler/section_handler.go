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

type sectionService interface {
	Create(ctx context.Context, principal *models.Principal, req dto.CreateSectionRequest) (*models.SectionView, error)
	Get(ctx context.Context, id string) (*models.SectionView, error)
	SetEnrollmentOpen(ctx context.Context, principal *models.Principal, id string, open bool) (*models.SectionView, error)
	Waitlist(ctx context.Context, principal *models.Principal, sectionID string) ([]models.WaitlistEntry, error)
}

// SectionHandler exposes section scheduling endpoints.
type SectionHandler struct {
	service sectionService
}

// NewSectionHandler builds a new handler.
func NewSectionHandler(service sectionService) *SectionHandler {
	return &SectionHandler{service: service}
}

// Create godoc
// @Summary Schedule a section
// @Tags Sections
// @Accept json
// @Produce json
// @Param payload body dto.CreateSectionRequest true "Section payload"
// @Success 201 {object} response.Envelope
// @Router /sections [post]
func (h *SectionHandler) Create(c *gin.Context) {
	var req dto.CreateSectionRequest
	if !bindJSON(c, &req, "invalid section payload") {
		return
	}
	section, err := h.service.Create(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, section)
}

// Get godoc
// @Summary Get a section
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [get]
func (h *SectionHandler) Get(c *gin.Context) {
	section, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section)
}

// SetEnrollmentWindow godoc
// @Summary Open or close a section for enrollment
// @Tags Sections
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body dto.SetEnrollmentWindowRequest true "Window payload"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/enrollment-window [put]
func (h *SectionHandler) SetEnrollmentWindow(c *gin.Context) {
	var req dto.SetEnrollmentWindowRequest
	if !bindJSON(c, &req, "invalid enrollment window payload") {
		return
	}
	if req.Open == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "open is required"))
		return
	}
	section, err := h.service.SetEnrollmentOpen(c.Request.Context(), principalFromContext(c), c.Param("id"), *req.Open)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section)
}

// Waitlist godoc
// @Summary List a section's waitlist in promotion order
// @Tags Sections
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/waitlist [get]
func (h *SectionHandler) Waitlist(c *gin.Context) {
	entries, err := h.service.Waitlist(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}
