package middleware

import (
	"context"
	"log"
	"net/http"

	"campuslink/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	CheckUserKey  = "user"
	SessionUserID = "user_id"
)

// UserLoader resolves the session user.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// AuthRequired rejects requests without a loaded user. Runs after LoadUser.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "not logged in"})
			return
		}
		c.Next()
	}
}

// LoadUser retrieves the user from the session and sets it on the context
func LoadUser(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(SessionUserID).(string)
		if ok && userID != "" {
			user, err := users.GetByID(c.Request.Context(), userID)
			if err == nil {
				c.Set(CheckUserKey, user)
			} else {
				log.Printf("Session user %s not loaded: %v", userID, err)
			}
		}
		c.Next()
	}
}
