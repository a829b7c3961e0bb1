package risks

import (
	"gorm.io/gorm"

	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
)

// CreateRisk validates and inserts a risk with its derived rating and
// severity columns.
func CreateRisk(db *gorm.DB, planID uint, description string, likelihood, impact int, preventative, contingency string) (*models.BCRisk, error) {
	if err := ValidateScores(likelihood, impact); err != nil {
		return nil, err
	}
	rating := RatingFor(likelihood, impact)
	risk := models.BCRisk{
		PlanID:              planID,
		Description:         description,
		Likelihood:          likelihood,
		Impact:              impact,
		Rating:              rating,
		Severity:            SeverityFor(rating),
		PreventativeActions: preventative,
		ContingencyPlans:    contingency,
	}
	if err := db.Create(&risk).Error; err != nil {
		return nil, err
	}
	return &risk, nil
}

// UpdateRisk applies changes, recomputing rating and severity so the derived
// columns never drift from the two scalars.
func UpdateRisk(db *gorm.DB, riskID uint, description *string, likelihood, impact *int, preventative, contingency *string) (*models.BCRisk, error) {
	var risk models.BCRisk
	if err := db.First(&risk, riskID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("risk")
		}
		return nil, err
	}

	if description != nil {
		risk.Description = *description
	}
	if likelihood != nil {
		risk.Likelihood = *likelihood
	}
	if impact != nil {
		risk.Impact = *impact
	}
	if preventative != nil {
		risk.PreventativeActions = *preventative
	}
	if contingency != nil {
		risk.ContingencyPlans = *contingency
	}

	if err := ValidateScores(risk.Likelihood, risk.Impact); err != nil {
		return nil, err
	}
	risk.Rating = RatingFor(risk.Likelihood, risk.Impact)
	risk.Severity = SeverityFor(risk.Rating)

	if err := db.Save(&risk).Error; err != nil {
		return nil, err
	}
	return &risk, nil
}

// Filter narrows a risk listing. Unparseable values mean no filter.
type Filter struct {
	Severity    string
	HeatmapCell string
}

// ListRisks returns a plan's risks with optional severity / heat-map cell
// filters, highest rating first.
func ListRisks(db *gorm.DB, planID uint, filter Filter) ([]models.BCRisk, error) {
	query := db.Where("plan_id = ?", planID)

	if filter.Severity != "" {
		switch filter.Severity {
		case SeverityLow, SeverityModerate, SeverityHigh, SeveritySevere:
			query = query.Where("severity = ?", filter.Severity)
		}
	}
	if filter.HeatmapCell != "" {
		if l, i, ok := ParseCell(filter.HeatmapCell); ok {
			query = query.Where("likelihood = ? AND impact = ?", l, i)
		}
	}

	var risks []models.BCRisk
	err := query.Order("rating DESC, id").Find(&risks).Error
	return risks, err
}

// HeatmapCell is one populated cell of the 4×4 grid.
type HeatmapCell struct {
	Likelihood int    `json:"likelihood"`
	Impact     int    `json:"impact"`
	Count      int    `json:"count"`
	Rating     int    `json:"rating"`
	Severity   string `json:"severity"`
}

// Heatmap aggregates a plan's risks into the 4×4 likelihood/impact grid.
// Cells maps "L,I" to count; Grid carries per-cell band detail for every
// populated cell.
type Heatmap struct {
	Cells  map[string]int `json:"cells"`
	Grid   []HeatmapCell  `json:"grid"`
	Legend []Band         `json:"legend"`
}

// GetHeatmap builds the heat-map aggregation for a plan.
func GetHeatmap(db *gorm.DB, planID uint) (*Heatmap, error) {
	type row struct {
		Likelihood int
		Impact     int
		Count      int
	}
	var rows []row
	err := db.Model(&models.BCRisk{}).
		Select("likelihood, impact, COUNT(*) AS count").
		Where("plan_id = ?", planID).
		Group("likelihood, impact").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	hm := &Heatmap{Cells: map[string]int{}, Legend: Legend}
	for _, r := range rows {
		rating := RatingFor(r.Likelihood, r.Impact)
		hm.Cells[CellKey(r.Likelihood, r.Impact)] = r.Count
		hm.Grid = append(hm.Grid, HeatmapCell{
			Likelihood: r.Likelihood,
			Impact:     r.Impact,
			Count:      r.Count,
			Rating:     rating,
			Severity:   SeverityFor(rating),
		})
	}
	return hm, nil
}
