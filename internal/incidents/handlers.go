package incidents

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/metrics"
	"portal-backend/internal/models"
	"portal-backend/internal/plans"
	"portal-backend/pkg/utils"
)

// HandleStartIncident opens an incident on the plan. Idempotent: an already
// active incident is returned as-is.
func HandleStartIncident(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	var req struct {
		Source string `json:"source"`
	}
	_ = c.ShouldBindJSON(&req)
	if req.Source == "" {
		req.Source = models.IncidentSourceManual
	}

	incident, created, err := StartIncident(database.DB, plan.ID, req.Source, c.GetUint("user_id"))
	if err != nil {
		utils.SendError(c, err)
		return
	}
	if created {
		metrics.IncidentsStarted.WithLabelValues(req.Source).Inc()
		c.JSON(http.StatusCreated, gin.H{"incident": incident})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incident": incident, "status": "already_active"})
}

// HandleCloseIncident closes the incident named in the body, or the plan's
// active incident when none is named.
func HandleCloseIncident(c *gin.Context) {
	var req struct {
		IncidentID uint `json:"incident_id"`
	}
	_ = c.ShouldBindJSON(&req)

	if req.IncidentID == 0 {
		plan, ok := plans.PlanForRequest(c)
		if !ok {
			return
		}
		active, err := ActiveIncident(database.DB, plan.ID)
		if err != nil {
			utils.SendError(c, err)
			return
		}
		if active == nil {
			utils.SendError(c, apperrors.NotFound("active incident"))
			return
		}
		req.IncidentID = active.ID
	}

	incident, err := CloseIncident(database.DB, req.IncidentID, c.GetUint("user_id"))
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"incident": incident})
}

// HandleGetConsole returns the plan's active incident with its checklist
// ticks and recent events.
func HandleGetConsole(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	incident, err := ActiveIncident(database.DB, plan.ID)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	if incident == nil {
		c.JSON(http.StatusOK, gin.H{"incident": nil})
		return
	}

	var ticks []models.ChecklistTick
	if err := database.DB.Preload("Item").
		Where("incident_id = ?", incident.ID).Find(&ticks).Error; err != nil {
		utils.SendError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("event_log_limit", "100"))
	events, err := ListEvents(database.DB, plan.ID, limit)
	if err != nil {
		utils.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"incident": incident, "ticks": ticks, "events": events})
}

// HandleToggleTick flips a checklist tick on or off.
func HandleToggleTick(c *gin.Context) {
	tickID, err := strconv.ParseUint(c.Param("tickId"), 10, 64)
	if err != nil {
		utils.SendError(c, apperrors.Validation("invalid tick id"))
		return
	}

	var req struct {
		Done bool `json:"done"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	tick, err := ToggleTick(database.DB, uint(tickID), req.Done, c.GetUint("user_id"))
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tick": tick})
}

// HandleAppendEvent appends an event-log entry to an incident.
func HandleAppendEvent(c *gin.Context) {
	var req struct {
		IncidentID uint       `json:"incident_id" binding:"required"`
		HappenedAt *time.Time `json:"happened_at"`
		Notes      string     `json:"notes" binding:"required"`
		Initials   string     `json:"initials"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	happenedAt := time.Time{}
	if req.HappenedAt != nil {
		happenedAt = *req.HappenedAt
	}

	userID := c.GetUint("user_id")
	entry, err := AppendEvent(database.DB, req.IncidentID, happenedAt, req.Notes, req.Initials, &userID)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": entry})
}

// HandleExportEventsCSV streams the plan's event log as CSV, newest first.
func HandleExportEventsCSV(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("event_log_limit", "100"))
	events, err := ListEvents(database.DB, plan.ID, limit)
	if err != nil {
		utils.SendError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="event_log.csv"`)
	if err := WriteEventsCSV(c.Writer, events); err != nil {
		logrus.WithError(err).Error("failed to stream event log CSV")
	}
}

// HandleIncidentWebhook is the CSRF-exempt entry point that lets monitoring
// systems auto-start incidents. Requires the shared webhook API key.
func HandleIncidentWebhook(c *gin.Context) {
	var req struct {
		CompanyID uint   `json:"company_id" binding:"required"`
		Source    string `json:"source"`
		Message   string `json:"message"`
		APIKey    string `json:"api_key"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	expected := os.Getenv("BCP_WEBHOOK_API_KEY")
	if expected == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(expected)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		return
	}

	var plan models.BCPlan
	if err := database.DB.Where("company_id = ?", req.CompanyID).First(&plan).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No plan for company"})
		return
	}

	source := req.Source
	if source == "" {
		source = models.IncidentSourceUptimeKuma
	}

	incident, created, err := StartIncident(database.DB, plan.ID, source, 0)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, gin.H{"status": "already_active", "incident_id": incident.ID})
		return
	}

	metrics.IncidentsStarted.WithLabelValues(source).Inc()
	notes := req.Message
	if notes == "" {
		notes = fmt.Sprintf("Incident auto-started by %s", source)
	}
	if _, err := AppendEvent(database.DB, incident.ID, time.Now().UTC(), notes, "", nil); err != nil {
		logrus.WithError(err).Warn("failed to append webhook incident event")
	}

	c.JSON(http.StatusCreated, gin.H{"status": "started", "incident_id": incident.ID})
}
