package journal

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-backend/internal/database"
	"portal-backend/pkg/utils"
)

// HandleListEvents lists journal events, newest first. Admin only.
func HandleListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	events, err := ListEvents(database.DB, limit)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// HandleGetEvent returns one event with its full attempt history.
func HandleGetEvent(c *gin.Context) {
	event, err := GetEvent(database.DB, c.Param("eventId"))
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}

// HandleReplayEvent resends a failed event's recorded request.
func HandleReplayEvent(c *gin.Context) {
	event, err := Replay(database.DB, c.Param("eventId"))
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": event})
}
