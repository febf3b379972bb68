package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/agromatch_backend/utils"
)

// AuthMiddleware reads an optional bearer token and stores the caller id and
// role in the request context. Requests without a token pass through.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")
		if auth == "" {
			c.Next()
			return
		}

		const bearer = "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		validate, err := utils.JwtValidate(auth[len(bearer):])
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetUserIdInContext(c.Request.Context(), claim.ID)
		ctx = utils.SetUserRoleInContext(ctx, claim.Role)
		ctx = utils.SetIsAdminInContext(ctx, claim.Role == utils.RoleAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireRoles rejects callers whose role is not listed. Admins always pass.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if isAdmin, _ := utils.GetIsAdminFromContext(ctx); isAdmin {
			c.Next()
			return
		}
		role, ok := utils.GetUserRoleFromContext(ctx)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		c.Abort()
	}
}
