package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/middleware"
	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/response"
)

func principalFromContext(c *gin.Context) *models.Principal {
	return middleware.PrincipalFromContext(c)
}

// bindJSON decodes the body into dst, writing a validation error and
// returning false when the payload is malformed.
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
