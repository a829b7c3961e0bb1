package utils

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"portal-backend/internal/errors"
)

// SendError renders an AppError with its mapped HTTP status. Unknown errors
// become opaque 500s.
func SendError(c *gin.Context, err error) {
	appErr, ok := errors.As(err)
	if !ok {
		appErr = &errors.AppError{Code: "INTERNAL", Message: "An unexpected error occurred", Err: err}
	}

	status := appErr.HTTPStatus()
	c.JSON(status, gin.H{
		"error":   appErr.Code,
		"message": appErr.Message,
		"details": appErr.Details,
	})

	if status >= http.StatusInternalServerError {
		extras := map[string]interface{}{
			"status_code": status,
			"error_code":  appErr.Code,
			"details":     appErr.Details,
		}
		if c != nil && c.FullPath() != "" {
			extras["route"] = c.FullPath()
		}
		CaptureSentryError(c, appErr.Err, fmt.Sprintf("SendError:%s", appErr.Code), extras)
	}
}

// HandleError logs an error with context
func HandleError(err error, context string) {
	if err != nil {
		logrus.WithError(err).Error(context)
		CaptureSentryError(nil, err, context, nil)
	}
}

// GetClientIP extracts the client IP from the request
func GetClientIP(c *gin.Context) string {
	forwarded := c.GetHeader("X-Forwarded-For")
	if forwarded != "" {
		ips := strings.Split(forwarded, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	realIP := c.GetHeader("X-Real-IP")
	if realIP != "" {
		return strings.TrimSpace(realIP)
	}

	return c.ClientIP()
}
