package plans

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"portal-backend/internal/audit"
	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
	"portal-backend/pkg/utils"
)

// PlanForRequest loads the plan referenced by the :id route param and
// enforces company scoping. Routes without an :id param resolve to the
// caller's company plan, creating it on first access. Superadmins may
// reach any plan.
func PlanForRequest(c *gin.Context) (*models.BCPlan, bool) {
	if c.Param("id") == "" {
		plan, err := GetOrCreatePlan(database.DB, c.GetUint("company_id"), c.GetUint("user_id"))
		if err != nil {
			utils.SendError(c, err)
			return nil, false
		}
		return plan, true
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.SendError(c, apperrors.Validation("invalid plan id"))
		return nil, false
	}

	var plan models.BCPlan
	if err := database.DB.First(&plan, uint(id)).Error; err != nil {
		utils.SendError(c, apperrors.NotFound("plan"))
		return nil, false
	}

	if c.GetString("role") != models.RoleSuperAdmin && plan.CompanyID != c.GetUint("company_id") {
		utils.SendError(c, apperrors.Forbidden("plan belongs to another company"))
		return nil, false
	}
	return &plan, true
}

// HandleListPlans returns a paged plan list. Non-superadmins only see their
// active company's plan.
func HandleListPlans(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "25"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	query := database.DB.Model(&models.BCPlan{})
	if c.GetString("role") != models.RoleSuperAdmin {
		query = query.Where("company_id = ?", c.GetUint("company_id"))
	}
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.SendError(c, err)
		return
	}

	var plans []models.BCPlan
	if err := query.Order("id").Offset((page - 1) * perPage).Limit(perPage).Find(&plans).Error; err != nil {
		utils.SendError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"plans":    plans,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// HandleGetOrCreatePlan returns the active company's plan, creating it on
// first access.
func HandleGetOrCreatePlan(c *gin.Context) {
	plan, err := GetOrCreatePlan(database.DB, c.GetUint("company_id"), c.GetUint("user_id"))
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

// HandleGetPlan returns one plan with its active version.
func HandleGetPlan(c *gin.Context) {
	plan, ok := PlanForRequest(c)
	if !ok {
		return
	}

	response := gin.H{"plan": plan}
	if version, err := ActiveVersion(database.DB, plan.ID); err == nil {
		response["active_version"] = version
	}
	c.JSON(http.StatusOK, response)
}

// HandleUpdatePlan updates plan metadata (title, summary, version label).
func HandleUpdatePlan(c *gin.Context) {
	plan, ok := PlanForRequest(c)
	if !ok {
		return
	}

	var req struct {
		Title            *string `json:"title"`
		ExecutiveSummary *string `json:"executive_summary"`
		VersionLabel     *string `json:"version_label"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.ExecutiveSummary != nil {
		updates["executive_summary"] = *req.ExecutiveSummary
	}
	if req.VersionLabel != nil {
		updates["version_label"] = *req.VersionLabel
	}
	if len(updates) > 0 {
		if err := database.DB.Model(plan).Updates(updates).Error; err != nil {
			utils.SendError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

// HandleTransitionPlan moves a plan through the status machine.
func HandleTransitionPlan(c *gin.Context) {
	plan, ok := PlanForRequest(c)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	updated, err := Transition(database.DB, plan.ID, req.Status, c.GetUint("user_id"), c.GetString("role"))
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"plan": updated})
}

// HandleListVersions returns a plan's versions, newest first.
func HandleListVersions(c *gin.Context) {
	plan, ok := PlanForRequest(c)
	if !ok {
		return
	}

	var versions []models.BCPlanVersion
	if err := database.DB.Where("plan_id = ?", plan.ID).
		Order("version_number DESC").Find(&versions).Error; err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions, "total": len(versions)})
}

// HandleCreateVersion creates the next version of a plan.
func HandleCreateVersion(c *gin.Context) {
	plan, ok := PlanForRequest(c)
	if !ok {
		return
	}

	var req struct {
		Summary string                 `json:"summary"`
		Content map[string]interface{} `json:"content"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	version, err := CreateVersion(database.DB, plan.ID, c.GetUint("user_id"), req.Summary, req.Content)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"version": version})
}

// HandleActivateVersion reactivates a superseded version.
func HandleActivateVersion(c *gin.Context) {
	plan, ok := PlanForRequest(c)
	if !ok {
		return
	}

	versionID, err := strconv.ParseUint(c.Param("versionId"), 10, 64)
	if err != nil {
		utils.SendError(c, apperrors.Validation("invalid version id"))
		return
	}

	version, err := ActivateVersion(database.DB, plan.ID, uint(versionID), c.GetUint("user_id"))
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": version})
}

// HandleSubmitForReview submits a draft plan to the named reviewers.
func HandleSubmitForReview(c *gin.Context) {
	plan, ok := PlanForRequest(c)
	if !ok {
		return
	}

	var req struct {
		ReviewerIDs []uint `json:"reviewer_ids" binding:"required"`
		Notes       string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	reviews, err := SubmitForReview(database.DB, plan.ID, c.GetUint("user_id"), c.GetString("role"), req.ReviewerIDs, req.Notes)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"reviews": reviews})
}

// HandleDecideReview approves or requests changes on a review.
func HandleDecideReview(c *gin.Context) {
	reviewID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		utils.SendError(c, apperrors.Validation("invalid review id"))
		return
	}

	var req struct {
		Decision string `json:"decision" binding:"required"` // approve or request_changes
		Notes    string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	var review *models.BCReview
	switch req.Decision {
	case "approve":
		review, err = ApproveReview(database.DB, uint(reviewID), c.GetUint("user_id"), c.GetString("role"), req.Notes)
	case "request_changes":
		review, err = RequestChanges(database.DB, uint(reviewID), c.GetUint("user_id"), c.GetString("role"), req.Notes)
	default:
		utils.SendError(c, apperrors.Validation("decision must be approve or request_changes"))
		return
	}
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"review": review})
}

// HandleGetAudit returns the plan's audit trail.
func HandleGetAudit(c *gin.Context) {
	plan, ok := PlanForRequest(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := audit.List(database.DB, plan.ID, limit)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": entries, "total": len(entries)})
}

// HandleListTemplates returns all plan templates.
func HandleListTemplates(c *gin.Context) {
	var templates []models.BCTemplate
	if err := database.DB.Order("id").Find(&templates).Error; err != nil {
		utils.SendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates, "total": len(templates)})
}

// HandleCreateTemplate creates a template; marking it default clears the
// previous default in the same transaction.
func HandleCreateTemplate(c *gin.Context) {
	var req struct {
		Name        string                 `json:"name" binding:"required"`
		Description string                 `json:"description"`
		Schema      map[string]interface{} `json:"schema" binding:"required"`
		IsDefault   bool                   `json:"is_default"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	tmpl := models.BCTemplate{
		Name:        req.Name,
		Description: req.Description,
		SchemaJSON:  models.MustJSON(req.Schema),
		IsDefault:   req.IsDefault,
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		if req.IsDefault {
			if err := tx.Model(&models.BCTemplate{}).Where("is_default = ?", true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&tmpl).Error
	})
	if err != nil {
		utils.SendError(c, apperrors.Wrap(err, apperrors.CodeConflict, "template name already exists"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": tmpl})
}
