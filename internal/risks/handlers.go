package risks

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
	"portal-backend/internal/plans"
	"portal-backend/pkg/utils"
)

// HandleListRisks returns the plan's risk register with optional severity
// and heat-map cell filters.
func HandleListRisks(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	risks, err := ListRisks(database.DB, plan.ID, Filter{
		Severity:    c.Query("severity"),
		HeatmapCell: c.Query("heatmap_filter"),
	})
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"risks": risks, "total": len(risks)})
}

// HandleCreateRisk adds a risk to the plan.
func HandleCreateRisk(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	var req struct {
		Description         string `json:"description" binding:"required"`
		Likelihood          int    `json:"likelihood" binding:"required"`
		Impact              int    `json:"impact" binding:"required"`
		PreventativeActions string `json:"preventative_actions"`
		ContingencyPlans    string `json:"contingency_plans"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	risk, err := CreateRisk(database.DB, plan.ID, req.Description, req.Likelihood, req.Impact,
		req.PreventativeActions, req.ContingencyPlans)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"risk": risk})
}

// HandleUpdateRisk updates a risk, recomputing rating and severity.
func HandleUpdateRisk(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	riskID, err := strconv.ParseUint(c.Param("riskId"), 10, 64)
	if err != nil {
		utils.SendError(c, apperrors.Validation("invalid risk id"))
		return
	}
	var existing models.BCRisk
	if err := database.DB.Where("plan_id = ?", plan.ID).First(&existing, uint(riskID)).Error; err != nil {
		utils.SendError(c, apperrors.NotFound("risk"))
		return
	}

	var req struct {
		Description         *string `json:"description"`
		Likelihood          *int    `json:"likelihood"`
		Impact              *int    `json:"impact"`
		PreventativeActions *string `json:"preventative_actions"`
		ContingencyPlans    *string `json:"contingency_plans"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	risk, err := UpdateRisk(database.DB, uint(riskID), req.Description, req.Likelihood, req.Impact,
		req.PreventativeActions, req.ContingencyPlans)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"risk": risk})
}

// HandleDeleteRisk removes a risk from the register.
func HandleDeleteRisk(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	riskID, err := strconv.ParseUint(c.Param("riskId"), 10, 64)
	if err != nil {
		utils.SendError(c, apperrors.Validation("invalid risk id"))
		return
	}

	result := database.DB.Where("plan_id = ?", plan.ID).Delete(&models.BCRisk{}, uint(riskID))
	if result.Error != nil {
		utils.SendError(c, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		utils.SendError(c, apperrors.NotFound("risk"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Risk deleted"})
}

// HandleGetHeatmap returns the 4×4 heat-map aggregation with legend.
func HandleGetHeatmap(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	hm, err := GetHeatmap(database.DB, plan.ID)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, hm)
}

// HandleExportRisksCSV streams the risk register as CSV.
func HandleExportRisksCSV(c *gin.Context) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	risks, err := ListRisks(database.DB, plan.ID, Filter{
		Severity:    c.Query("severity"),
		HeatmapCell: c.Query("heatmap_filter"),
	})
	if err != nil {
		utils.SendError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="risk_register.csv"`)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"Description", "Likelihood", "Impact", "Rating", "Severity", "Preventative Actions", "Contingency Plans"})
	for _, risk := range risks {
		_ = w.Write([]string{
			risk.Description,
			fmt.Sprintf("%d", risk.Likelihood),
			fmt.Sprintf("%d", risk.Impact),
			fmt.Sprintf("%d", risk.Rating),
			risk.Severity,
			risk.PreventativeActions,
			risk.ContingencyPlans,
		})
	}
	w.Flush()
}
