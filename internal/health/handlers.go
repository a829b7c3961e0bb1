package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"portal-backend/internal/database"
)

var startedAt = time.Now()

// HandleHealth reports liveness plus a database ping.
func HandleHealth(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"

	sqlDB, err := database.DB.DB()
	if err != nil || sqlDB.Ping() != nil {
		status = http.StatusServiceUnavailable
		dbStatus = "unreachable"
	}

	c.JSON(status, gin.H{
		"status":   map[bool]string{true: "ok", false: "degraded"}[status == http.StatusOK],
		"database": dbStatus,
		"uptime":   time.Since(startedAt).Round(time.Second).String(),
	})
}
