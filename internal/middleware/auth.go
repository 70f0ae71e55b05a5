package middleware

import (
	"strings"

	"github.com/TsaH0/CircleOfInevitibility-backend/internal/models"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/utils"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// ContextUserID is the gin context key holding the authenticated user id.
const ContextUserID = "userId"

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.Split(c.GetHeader("Authorization"), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// AuthMiddleware requires a valid bearer token for an existing user.
func AuthMiddleware(secret string, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			abortWith(c, errors.Unauthorized("Authorization header required"))
			return
		}
		tokenString, ok := bearerToken(c)
		if !ok {
			abortWith(c, errors.Unauthorized("Invalid authorization header format"))
			return
		}

		claims, err := utils.ValidateToken(secret, tokenString)
		if err != nil {
			abortWith(c, errors.Unauthorized("Invalid or expired token"))
			return
		}

		// Tokens outlive deleted users.
		var user models.User
		if err := db.WithContext(c.Request.Context()).Select("id").First(&user, "id = ?", claims.UserID).Error; err != nil {
			abortWith(c, errors.Unauthorized("User not found"))
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}

// OptionalAuthMiddleware sets the user id when a valid token is present and
// never aborts.
func OptionalAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, ok := bearerToken(c); ok {
			if claims, err := utils.ValidateToken(secret, tokenString); err == nil {
				c.Set(ContextUserID, claims.UserID)
			}
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user id, or "" for anonymous
// requests.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
