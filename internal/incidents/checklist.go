package incidents

import (
	"gorm.io/gorm"

	"portal-backend/internal/models"
)

// defaultImmediateItems are the immediate-phase checklist items seeded into a
// plan on first incident. Order is deterministic.
var defaultImmediateItems = []string{
	"Confirm the safety of all staff and visitors",
	"Call emergency services if required (000)",
	"Evacuate the premises if instructed or unsafe",
	"Account for all staff at the assembly point",
	"Notify the incident coordinator",
	"Start the incident event log",
	"Assess the nature and scale of the disruption",
	"Notify the business owner / senior management",
	"Activate the business continuity team",
	"Secure the site and any undamaged assets",
	"Notify the insurance provider",
	"Identify critical activities affected",
	"Brief staff on the situation and next steps",
	"Notify key customers of any service impact",
	"Notify key suppliers and logistics partners",
	"Divert phones and update voicemail / website",
	"Arrange temporary premises or remote work if needed",
	"Schedule the first recovery status meeting",
}

// defaultCrisisRecoveryItems seed the crisis-recovery phase checklist.
var defaultCrisisRecoveryItems = []string{
	"Confirm all immediate actions are complete",
	"Stand up recovery workstreams per the recovery plan",
	"Begin damage assessment and documentation",
	"Lodge insurance claims with supporting evidence",
	"Restore critical activities within their RTOs",
	"Monitor staff wellbeing and arrange support",
	"Provide regular updates to staff and customers",
	"Review supplier and market impacts",
	"Record lessons learned for the post-incident review",
}

// SeedChecklist inserts the default checklist items for a plan if it has
// none. Returns the plan's immediate-phase items afterwards.
func SeedChecklist(tx *gorm.DB, planID uint) ([]models.ChecklistItem, error) {
	var count int64
	if err := tx.Model(&models.ChecklistItem{}).Where("plan_id = ?", planID).Count(&count).Error; err != nil {
		return nil, err
	}

	if count == 0 {
		for i, text := range defaultImmediateItems {
			item := models.ChecklistItem{
				PlanID:   planID,
				Phase:    models.ChecklistPhaseImmediate,
				Position: i + 1,
				Text:     text,
			}
			if err := tx.Create(&item).Error; err != nil {
				return nil, err
			}
		}
		for i, text := range defaultCrisisRecoveryItems {
			item := models.ChecklistItem{
				PlanID:   planID,
				Phase:    models.ChecklistPhaseCrisisRecovery,
				Position: i + 1,
				Text:     text,
			}
			if err := tx.Create(&item).Error; err != nil {
				return nil, err
			}
		}
	}

	var items []models.ChecklistItem
	err := tx.Where("plan_id = ? AND phase = ?", planID, models.ChecklistPhaseImmediate).
		Order("position").Find(&items).Error
	return items, err
}
