package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/response"
)

type transcriptService interface {
	GetFullTranscript(ctx context.Context, principal *models.Principal, studentID string) (*models.Transcript, error)
	TermGPAs(ctx context.Context, termID string) ([]models.StudentTermGPA, error)
}

type standingService interface {
	ProcessTermEnd(ctx context.Context, principal *models.Principal, termID string) (*models.TermEndReport, error)
}

// RecordsHandler exposes transcripts and term-level academic records.
type RecordsHandler struct {
	transcripts transcriptService
	standing    standingService
}

// NewRecordsHandler builds a new handler.
func NewRecordsHandler(transcripts transcriptService, standing standingService) *RecordsHandler {
	return &RecordsHandler{transcripts: transcripts, standing: standing}
}

// Transcript godoc
// @Summary Full transcript of a student
// @Tags Records
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/transcript [get]
func (h *RecordsHandler) Transcript(c *gin.Context) {
	transcript, err := h.transcripts.GetFullTranscript(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transcript)
}

// TermGPAs godoc
// @Summary Per-student GPA for a term
// @Tags Records
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /terms/{id}/gpas [get]
func (h *RecordsHandler) TermGPAs(c *gin.Context) {
	gpas, err := h.transcripts.TermGPAs(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gpas, map[string]interface{}{"count": len(gpas)})
}

// ProcessTermEnd godoc
// @Summary Run term-end processing
// @Description Locks grading for the term and records academic standing. Safe to re-run.
// @Tags Records
// @Produce json
// @Param id path string true "Term ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /terms/{id}/term-end [post]
func (h *RecordsHandler) ProcessTermEnd(c *gin.Context) {
	report, err := h.standing.ProcessTermEnd(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}
