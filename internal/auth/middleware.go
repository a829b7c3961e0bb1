package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"portal-backend/internal/models"
)

// Middleware authenticates the request and exposes the principal to feature
// handlers as (user_id, company_id, role) context keys.
func Middleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == "OPTIONS" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		} else {
			var err error
			tokenString, err = c.Cookie(AuthCookieName)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "No authorization token provided"})
				c.Abort()
				return
			}
		}

		claims, err := ParseToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		var user models.User
		if err := db.First(&user, claims.UserID).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			c.Abort()
			return
		}

		if !user.Active {
			c.JSON(http.StatusForbidden, gin.H{"error": "User account is disabled"})
			c.Abort()
			return
		}

		role := claims.Role
		if user.IsSuperAdmin() {
			role = models.RoleSuperAdmin
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Set("company_id", claims.CompanyID)
		c.Set("role", role)
		c.Set("user", user)

		c.Next()
	}
}

// RequireRole enforces a minimum company role on the route. Superadmins
// always pass.
func RequireRole(minRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString("role")
		if models.RoleRank(role) < models.RoleRank(minRole) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient role", "required": minRole})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminMiddleware restricts access to admin users only
func AdminMiddleware() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin)
}
