package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/response"
)

// RequireRoles rejects callers that carry none of roles. Finer rules, such
// as instructors grading only their own sections, stay in the services.
func RequireRoles(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFromContext(c)
		if principal == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !principal.HasAnyRole(roles...) {
			response.Error(c, appErrors.ErrAccessDenied)
			c.Abort()
			return
		}
		c.Next()
	}
}
