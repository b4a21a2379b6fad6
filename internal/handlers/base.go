package handlers

import (
	"log"
	"net/http"

	"campuslink/internal/apperror"
	"campuslink/internal/middleware"
	"campuslink/internal/models"

	"github.com/gin-gonic/gin"
)

func currentUser(c *gin.Context) *models.User {
	if user, exists := c.Get(middleware.CheckUserKey); exists {
		if u, ok := user.(*models.User); ok {
			return u
		}
	}
	return nil
}

// respondError writes the error in the API's error shape. Internal errors are logged
// and replaced by a generic message.
func respondError(c *gin.Context, err error) {
	status := apperror.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"success": false, "error": apperror.Message(err)})
}

// bindError reports a request body that failed validation.
func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request: " + err.Error()})
}
