package xero

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
	"portal-backend/pkg/utils"
)

// HandleSync runs the invoice pipeline for one company (admin only). The
// result is always 200 with a structured status; upstream failures are
// journaled, not raised.
func HandleSync(c *gin.Context) {
	companyID, err := strconv.ParseUint(c.Query("company_id"), 10, 64)
	if err != nil || companyID == 0 {
		utils.SendError(c, apperrors.Validation("company_id query parameter is required"))
		return
	}

	result := SyncCompany(c.Request.Context(), database.DB, uint(companyID))
	c.JSON(http.StatusOK, gin.H{"result": result})
}

// HandleSyncAll runs the pipeline for every configured company.
func HandleSyncAll(c *gin.Context) {
	results := SyncAll(c.Request.Context(), database.DB)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// HandleGetSettings returns the active company's module configuration with
// secrets elided by the model's json tags.
func HandleGetSettings(c *gin.Context) {
	companyID := c.GetUint("company_id")
	settings, err := LoadSettings(c.Request.Context(), database.DB, companyID)
	if err != nil {
		utils.SendError(c, err)
		return
	}
	if settings == nil {
		settings = &models.XeroSettings{CompanyID: companyID}
	}
	c.JSON(http.StatusOK, gin.H{
		"settings":   settings,
		"configured": ValidationReason(settings) == "",
	})
}

// HandleUpdateSettings upserts the module configuration and drops the
// cached copy so the change takes effect immediately.
func HandleUpdateSettings(c *gin.Context) {
	companyID := c.GetUint("company_id")

	var req struct {
		ClientID          *string     `json:"client_id"`
		ClientSecret      *string     `json:"client_secret"`
		RefreshToken      *string     `json:"refresh_token"`
		TenantID          *string     `json:"tenant_id"`
		BillableStatuses  interface{} `json:"billable_statuses"`
		DefaultHourlyRate *string     `json:"default_hourly_rate"`
		AccountCode       *string     `json:"account_code"`
		TaxType           *string     `json:"tax_type"`
		LineAmountType    *string     `json:"line_amount_type"`
		ReferencePrefix   *string     `json:"reference_prefix"`
		LineItemTemplate  *string     `json:"line_item_description_template"`
		AutoSend          *bool       `json:"auto_send"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendError(c, apperrors.Validation(err.Error()))
		return
	}

	var settings models.XeroSettings
	err := database.DB.Where("company_id = ?", companyID).
		FirstOrCreate(&settings, models.XeroSettings{CompanyID: companyID}).Error
	if err != nil {
		utils.SendError(c, err)
		return
	}

	setIf := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	setIf(&settings.ClientID, req.ClientID)
	setIf(&settings.ClientSecret, req.ClientSecret)
	setIf(&settings.RefreshToken, req.RefreshToken)
	setIf(&settings.TenantID, req.TenantID)
	setIf(&settings.DefaultHourlyRate, req.DefaultHourlyRate)
	setIf(&settings.AccountCode, req.AccountCode)
	setIf(&settings.TaxType, req.TaxType)
	setIf(&settings.ReferencePrefix, req.ReferencePrefix)
	setIf(&settings.LineItemTemplate, req.LineItemTemplate)

	if req.BillableStatuses != nil {
		settings.BillableStatuses = models.StringArray(NormalizeStatuses(req.BillableStatuses))
	}
	if req.LineAmountType != nil {
		switch *req.LineAmountType {
		case "Exclusive", "Inclusive":
			settings.LineAmountType = *req.LineAmountType
		default:
			utils.SendError(c, apperrors.Validation("line_amount_type must be Exclusive or Inclusive"))
			return
		}
	}
	if req.AutoSend != nil {
		settings.AutoSend = *req.AutoSend
	}

	if err := database.DB.Save(&settings).Error; err != nil {
		utils.SendError(c, err)
		return
	}
	InvalidateSettings(c.Request.Context(), companyID)

	c.JSON(http.StatusOK, gin.H{
		"settings":   settings,
		"configured": ValidationReason(&settings) == "",
	})
}
