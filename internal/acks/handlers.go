package acks

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/plans"
	"portal-backend/pkg/utils"
)

// HandleAcknowledge records the caller's acknowledgement of the plan's
// active version (or an explicit version_number from the body).
func HandleAcknowledge(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	var req struct {
		VersionNumber int `json:"version_number"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.VersionNumber < 0 {
		utils.SendError(c, apperrors.Validation("version_number must be positive"))
		return
	}

	ack, err := Acknowledge(database.DB, plan.ID, c.GetUint("user_id"), req.VersionNumber)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledgement": ack})
}

// HandleGetAckSummary returns the ledger rollup plus the members still
// pending, for the plan's active version by default.
func HandleGetAckSummary(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	versionNumber, _ := strconv.Atoi(c.DefaultQuery("version_number", "0"))
	summary, err := Summarize(database.DB, plan.CompanyID, plan.ID, versionNumber)
	if err != nil {
		utils.SendError(c, err)
		return
	}

	pending, err := UsersPendingAck(database.DB, plan.CompanyID, plan.ID, summary.VersionNumber)
	if err != nil {
		utils.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary, "pending_users": pending})
}
