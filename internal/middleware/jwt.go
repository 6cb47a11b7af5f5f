package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/registrar-api/internal/models"
	appErrors "github.com/noah-isme/registrar-api/pkg/errors"
	"github.com/noah-isme/registrar-api/pkg/logger"
	"github.com/noah-isme/registrar-api/pkg/response"
)

// ContextPrincipalKey is the gin context key storing the verified caller.
const ContextPrincipalKey = "principal"

// TokenVerifier turns a bearer token into a principal.
type TokenVerifier interface {
	Verify(token string) (*models.Principal, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		principal, err := verifier.Verify(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextPrincipalKey, principal)
		c.Set(logger.PrincipalKey, principal.ID)
		c.Next()
	}
}

// PrincipalFromContext returns the caller stored by JWT, or nil.
func PrincipalFromContext(c *gin.Context) *models.Principal {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, ok := value.(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}
