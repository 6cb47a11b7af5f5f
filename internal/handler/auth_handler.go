package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/response"
)

// AuthHandler exposes identity endpoints. Tokens are issued by the identity
// provider; this API only verifies them.
type AuthHandler struct{}

// NewAuthHandler creates a new handler.
func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

// Me godoc
// @Summary Current principal
// @Description Returns the id and roles carried by the bearer token.
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, principal)
}
