package exports

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"portal-backend/internal/database"
	"portal-backend/internal/incidents"
	"portal-backend/internal/metrics"
	"portal-backend/internal/models"
	"portal-backend/internal/plans"
	"portal-backend/pkg/utils"
)

// HandleExportPDF renders the plan as PDF. The content hash of the gathered
// data rides back in X-Content-Hash and is stamped on the active version.
func HandleExportPDF(c *gin.Context) {
	exportPlan(c, "pdf", "application/pdf", RenderPDF)
}

// HandleExportDOCX renders the plan as DOCX.
func HandleExportDOCX(c *gin.Context) {
	exportPlan(c, "docx",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		RenderDOCX)
}

func exportPlan(c *gin.Context, format, contentType string, render func(*PlanDocument) ([]byte, error)) {
	plan, ok := plans.PlanForRequest(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("event_log_limit", "100"))
	limit = incidents.ClampEventLimit(limit)

	doc, err := Gather(database.DB, plan, limit)
	if err != nil {
		utils.SendError(c, err)
		return
	}

	content, metadata := doc.HashInputs()
	hash, err := ContentHash(content, metadata)
	if err != nil {
		utils.SendError(c, err)
		return
	}

	output, err := render(doc)
	if err != nil {
		utils.SendError(c, err)
		return
	}

	stampVersionHash(plan, format, hash)
	metrics.ExportsGenerated.WithLabelValues(format).Inc()

	filename := ExportFilename(plan.Title, doc.GeneratedAt, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Content-Hash", hash)
	c.Data(http.StatusOK, contentType, output)
}

// stampVersionHash records the export hash on the plan's current version.
// Best effort: a plan with no versions yet still exports.
func stampVersionHash(plan *models.BCPlan, format, hash string) {
	if plan.CurrentVersionID == nil {
		return
	}
	column := "pdf_hash"
	if format == "docx" {
		column = "docx_hash"
	}
	err := database.DB.Model(&models.BCPlanVersion{}).
		Where("id = ?", *plan.CurrentVersionID).
		Update(column, hash).Error
	if err != nil {
		utils.HandleError(err, fmt.Sprintf("stamp %s export hash on plan %d", format, plan.ID))
	}
}
