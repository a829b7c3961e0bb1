package exports

import (
	"time"

	"gorm.io/gorm"

	"portal-backend/internal/incidents"
	"portal-backend/internal/models"
	"portal-backend/internal/risks"
)

// ActivityRow pairs a critical activity with its impact record so documents
// can render the humanized recovery time objective inline.
type ActivityRow struct {
	Activity models.CriticalActivity `json:"activity"`
	RTOHours *int                    `json:"rto_hours"`
	RTOLabel string                  `json:"rto_label"`
	Notes    string                  `json:"notes"`
}

// PlanDocument is the complete gathered data set both export formats
// consume. Section order is fixed: overview, risk management, business
// impact analysis, incident response, recovery, rehearse/maintain/review.
type PlanDocument struct {
	Plan        models.BCPlan        `json:"plan"`
	Company     models.Company       `json:"company"`
	GeneratedAt time.Time            `json:"generated_at"`

	// 1. Plan Overview
	Objectives   []models.Objective         `json:"objectives"`
	Distribution []models.DistributionEntry `json:"distribution"`

	// 2. Risk Management
	RiskLegend []risks.Band             `json:"risk_legend"`
	Risks      []models.BCRisk          `json:"risks"`
	Insurance  []models.InsurancePolicy `json:"insurance"`
	Backups    []models.BackupItem      `json:"backups"`

	// 3. Business Impact Analysis
	Activities []ActivityRow `json:"activities"`

	// 4. Incident Response
	ImmediateChecklist []models.ChecklistItem  `json:"immediate_checklist"`
	Roles              []models.BCRole         `json:"roles"`
	Contacts           []models.BCContact      `json:"contacts"`
	Events             []models.EventLogEntry  `json:"events"`

	// 5. Recovery
	RecoveryActions   []models.RecoveryAction  `json:"recovery_actions"`
	RecoveryChecklist []models.ChecklistItem   `json:"recovery_checklist"`
	Claims            []models.InsuranceClaim  `json:"claims"`
	MarketChanges     []models.MarketChange    `json:"market_changes"`

	// 6. Rehearse/Maintain/Review
	Training       []models.TrainingItem       `json:"training"`
	ReviewSchedule []models.ReviewScheduleItem `json:"review_schedule"`
}

// Gather loads everything a plan export needs in the fixed section order.
// eventLimit bounds the event-log excerpt per the console clamp.
func Gather(db *gorm.DB, plan *models.BCPlan, eventLimit int) (*PlanDocument, error) {
	doc := &PlanDocument{
		Plan:        *plan,
		GeneratedAt: time.Now().UTC(),
		RiskLegend:  risks.Legend,
	}

	if err := db.First(&doc.Company, plan.CompanyID).Error; err != nil {
		return nil, err
	}

	if err := db.Where("plan_id = ?", plan.ID).Order("position asc, id asc").
		Find(&doc.Objectives).Error; err != nil {
		return nil, err
	}
	if err := db.Where("plan_id = ?", plan.ID).Order("id asc").
		Find(&doc.Distribution).Error; err != nil {
		return nil, err
	}

	var err error
	if doc.Risks, err = risks.ListRisks(db, plan.ID, risks.Filter{}); err != nil {
		return nil, err
	}
	if err := db.Where("plan_id = ?", plan.ID).Order("id asc").
		Find(&doc.Insurance).Error; err != nil {
		return nil, err
	}
	if err := db.Where("plan_id = ?", plan.ID).Order("id asc").
		Find(&doc.Backups).Error; err != nil {
		return nil, err
	}

	var activities []models.CriticalActivity
	if err := db.Where("plan_id = ?", plan.ID).
		Order("priority asc, importance desc, id asc").
		Find(&activities).Error; err != nil {
		return nil, err
	}
	for _, activity := range activities {
		row := ActivityRow{Activity: activity}
		var impact models.ActivityImpact
		if err := db.Where("activity_id = ?", activity.ID).First(&impact).Error; err == nil {
			row.RTOHours = impact.RTOHours
			row.Notes = impact.Notes
		}
		row.RTOLabel = HumanizeHours(row.RTOHours)
		doc.Activities = append(doc.Activities, row)
	}

	if err := db.Where("plan_id = ? AND phase = ?", plan.ID, models.ChecklistPhaseImmediate).
		Order("position asc").Find(&doc.ImmediateChecklist).Error; err != nil {
		return nil, err
	}
	if err := db.Where("plan_id = ?", plan.ID).Order("id asc").
		Find(&doc.Roles).Error; err != nil {
		return nil, err
	}
	if err := db.Where("plan_id = ?", plan.ID).Order("kind asc, name asc").
		Find(&doc.Contacts).Error; err != nil {
		return nil, err
	}
	if doc.Events, err = incidents.ListEvents(db, plan.ID, eventLimit); err != nil {
		return nil, err
	}

	if err := db.Where("plan_id = ?", plan.ID).Order("due_date asc, id asc").
		Find(&doc.RecoveryActions).Error; err != nil {
		return nil, err
	}
	if err := db.Where("plan_id = ? AND phase = ?", plan.ID, models.ChecklistPhaseCrisisRecovery).
		Order("position asc").Find(&doc.RecoveryChecklist).Error; err != nil {
		return nil, err
	}
	if err := db.Where("plan_id = ?", plan.ID).Order("id asc").
		Find(&doc.Claims).Error; err != nil {
		return nil, err
	}
	if err := db.Where("plan_id = ?", plan.ID).Order("id asc").
		Find(&doc.MarketChanges).Error; err != nil {
		return nil, err
	}

	if err := db.Where("plan_id = ?", plan.ID).Order("scheduled_for asc, id asc").
		Find(&doc.Training).Error; err != nil {
		return nil, err
	}
	if err := db.Where("plan_id = ?", plan.ID).Order("next_due asc, id asc").
		Find(&doc.ReviewSchedule).Error; err != nil {
		return nil, err
	}

	return doc, nil
}

// HashInputs returns the content and metadata objects the export hash
// covers. GeneratedAt stays out so regenerating an unchanged plan yields
// the same digest.
func (d *PlanDocument) HashInputs() (interface{}, interface{}) {
	content := map[string]interface{}{
		"objectives":          d.Objectives,
		"distribution":        d.Distribution,
		"risks":               d.Risks,
		"insurance":           d.Insurance,
		"backups":             d.Backups,
		"activities":          d.Activities,
		"immediate_checklist": d.ImmediateChecklist,
		"roles":               d.Roles,
		"contacts":            d.Contacts,
		"events":              d.Events,
		"recovery_actions":    d.RecoveryActions,
		"recovery_checklist":  d.RecoveryChecklist,
		"claims":              d.Claims,
		"market_changes":      d.MarketChanges,
		"training":            d.Training,
		"review_schedule":     d.ReviewSchedule,
	}
	metadata := map[string]interface{}{
		"plan_id":           d.Plan.ID,
		"title":             d.Plan.Title,
		"executive_summary": d.Plan.ExecutiveSummary,
		"version_label":     d.Plan.VersionLabel,
		"status":            d.Plan.Status,
		"company":           d.Company.Name,
	}
	return content, metadata
}
