package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
	"github.com/Raimpz/simple-chat/internal/security"
)

const currentUserKey = "current_user"

type TokenVerifier interface {
	Verify(token string) (string, bool)
}

// Auth resolves the bearer token to an enabled user and stores its identity
// on the context. Every failure is a 401.
func Auth(tokens TokenVerifier, users repository.UserStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, ok := security.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		username, ok := tokens.Verify(tokenStr)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		user, err := users.FindByUsername(c.Request.Context(), username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_not_found"})
			return
		}
		if !user.Enabled {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_disabled"})
			return
		}

		c.Set(currentUserKey, models.Identity{
			UserID:      user.ID,
			Username:    user.Username,
			Authorities: []string{models.AuthorityUser},
		})

		c.Next()
	}
}

// CurrentUser returns the identity stored by Auth.
func CurrentUser(c *gin.Context) (models.Identity, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return models.Identity{}, false
	}
	identity, ok := val.(models.Identity)
	return identity, ok
}
