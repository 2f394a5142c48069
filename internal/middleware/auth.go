package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sportclub/internal/pkg/jwt"
	"sportclub/internal/pkg/response"
)

// JWTAuth validates the bearer token and stores user_id and role on the
// context. When allowQuery is set a ?token= parameter is accepted as well,
// since browsers cannot set headers on websocket upgrades.
func JWTAuth(jwtService *jwt.Service, allowQuery ...bool) gin.HandlerFunc {
	queryOK := len(allowQuery) > 0 && allowQuery[0]
	return func(c *gin.Context) {
		token, code, msg := bearer(c, queryOK)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, code, msg)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func bearer(c *gin.Context, queryOK bool) (token, code, msg string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if queryOK {
			if t := c.Query("token"); t != "" {
				return t, "", ""
			}
		}
		return "", "AUTH_HEADER_MISSING", "Authorization header is required"
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'"
	}
	return parts[1], "", ""
}
