package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/TWolczanski/image-api/internal/config"
	"github.com/TWolczanski/image-api/internal/repository"
	"github.com/TWolczanski/image-api/internal/security"
)

const (
	// CurrentUserKey holds the authenticated models.User in the gin context.
	CurrentUserKey = "current_user"
	// AccessClaimsKey holds the parsed security.AccessClaims.
	AccessClaimsKey = "access_claims"
)

// Auth resolves the Bearer token to a user or aborts with 401. Handlers
// behind it can rely on CurrentUserKey being set.
func Auth(cfg *config.AppConfig, users repository.UserStore, sessions repository.SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseAccessToken(tokenStr, cfg.Security.JWTAccessSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		session, err := sessions.GetByID(c.Request.Context(), claims.SessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_not_found"})
			return
		}
		if session.UserID != claims.UserID || session.ExpiresAt.Before(time.Now()) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_expired"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_not_found"})
			return
		}

		c.Set(AccessClaimsKey, *claims)
		c.Set(CurrentUserKey, user)

		c.Next()
	}
}
