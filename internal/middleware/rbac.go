package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-student-records/internal/models"
	appErrors "github.com/noah-isme/sma-student-records/pkg/errors"
	"github.com/noah-isme/sma-student-records/pkg/response"
)

// PanelRoles may use the dashboard and the record API.
var PanelRoles = []models.UserRole{models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff}

// HasRole reports whether the claims carry one of roles.
func HasRole(claims *models.JWTClaims, roles ...models.UserRole) bool {
	if claims == nil {
		return false
	}
	for _, r := range roles {
		if claims.Role == r {
			return true
		}
	}
	return false
}

// RequireRoles rejects callers whose token role is not listed. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
