package middleware

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"sportclub/internal/domain/member"
	"sportclub/internal/pkg/response"
)

// RequireRole ensures that the authenticated user has one of the given roles
func RequireRole(roles ...member.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("role")
		if !exists {
			response.Error(c, http.StatusUnauthorized, "UNAUTHORIZED", "Role not found in token")
			c.Abort()
			return
		}

		s, _ := role.(string)
		if !slices.Contains(roles, member.Role(s)) {
			response.Error(c, http.StatusForbidden, "FORBIDDEN", "Access denied: insufficient permissions")
			c.Abort()
			return
		}

		c.Next()
	}
}

// StaffOnly admits trainers and admins.
func StaffOnly() gin.HandlerFunc {
	return RequireRole(member.RoleTrainer, member.RoleAdmin)
}

// AdminOnly middleware requires admin role
func AdminOnly() gin.HandlerFunc {
	return RequireRole(member.RoleAdmin)
}
