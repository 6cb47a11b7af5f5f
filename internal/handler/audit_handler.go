package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/response"
)

type auditReader interface {
	ListByEntity(ctx context.Context, entity, entityID string) ([]models.AuditEntry, error)
}

var auditEntities = map[string]struct{}{
	models.AuditEntityEnrollment: {},
	models.AuditEntitySection:    {},
	models.AuditEntityGrade:      {},
	models.AuditEntityCourse:     {},
	models.AuditEntityTerm:       {},
}

// AuditHandler exposes the audit trail to registrar staff.
type AuditHandler struct {
	audit auditReader
}

// NewAuditHandler builds a new handler.
func NewAuditHandler(audit auditReader) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// Trail godoc
// @Summary Audit trail of one entity
// @Tags Audit
// @Produce json
// @Param entity path string true "Entity kind" Enums(enrollment, section, grade, course, term)
// @Param id path string true "Entity ID"
// @Success 200 {object} response.Envelope
// @Router /audit/{entity}/{id} [get]
func (h *AuditHandler) Trail(c *gin.Context) {
	entity := c.Param("entity")
	if _, ok := auditEntities[entity]; !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown audit entity"))
		return
	}
	entries, err := h.audit.ListByEntity(c.Request.Context(), entity, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []models.AuditEntry{}
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}
