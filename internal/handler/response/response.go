// Package response writes error bodies in the {"detail": "..."} shape.
package response

import (
	"net/http"

	"file-sharing-service/internal/apperr"
	"file-sharing-service/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error maps err onto a status and a client-safe detail. Server errors are
// logged with their internal text, which never reaches the client.
func Error(c *gin.Context, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.GetLogger(c.Request.Context()).Error("request failed", zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"detail": apperr.Detail(err)})
}

func Detail(c *gin.Context, status int, detail string) {
	c.JSON(status, gin.H{"detail": detail})
}

func Message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}
