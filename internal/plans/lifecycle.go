package plans

import (
	"time"

	"gorm.io/gorm"

	"portal-backend/internal/audit"
	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/metrics"
	"portal-backend/internal/models"
)

// allowedTransitions is the plan status machine. Same-status moves are
// accepted as no-ops before this table is consulted.
var allowedTransitions = map[string][]string{
	models.PlanStatusDraft:    {models.PlanStatusInReview, models.PlanStatusArchived},
	models.PlanStatusInReview: {models.PlanStatusDraft, models.PlanStatusApproved},
	models.PlanStatusApproved: {models.PlanStatusArchived},
	models.PlanStatusArchived: {models.PlanStatusDraft},
}

func transitionAllowed(from, to string) bool {
	for _, t := range allowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// GetOrCreatePlan returns the company's plan, creating it on first access by
// any company member. The plan is seeded from the default template.
func GetOrCreatePlan(db *gorm.DB, companyID, userID uint) (*models.BCPlan, error) {
	var plan models.BCPlan
	err := db.Where("company_id = ?", companyID).First(&plan).Error
	if err == nil {
		return &plan, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var company models.Company
	if err := db.First(&company, companyID).Error; err != nil {
		return nil, apperrors.NotFound("company")
	}

	plan = models.BCPlan{
		CompanyID:    companyID,
		Title:        company.Name + " Business Continuity Plan",
		VersionLabel: "0.1",
		Status:       models.PlanStatusDraft,
		OwnerID:      userID,
	}
	var tmpl models.BCTemplate
	if err := db.Where("is_default = ?", true).First(&tmpl).Error; err == nil {
		plan.TemplateID = &tmpl.ID
	}

	if err := db.Create(&plan).Error; err != nil {
		// A concurrent first access may have won the unique company_id race.
		if dbErr := db.Where("company_id = ?", companyID).First(&plan).Error; dbErr == nil {
			return &plan, nil
		}
		return nil, err
	}
	return &plan, nil
}

// Transition moves a plan through the status machine. Moving to approved
// requires an approver-or-better caller and a pending review, which the
// transition marks approved. Every real move is audited.
func Transition(db *gorm.DB, planID uint, target string, actorID uint, role string) (*models.BCPlan, error) {
	var plan models.BCPlan
	var moved bool

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := database.LockForUpdate(tx).First(&plan, planID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFound("plan")
			}
			return err
		}

		if plan.Status == target {
			return nil // no-op
		}
		if !transitionAllowed(plan.Status, target) {
			return apperrors.Newf(apperrors.CodeInvalidTransition,
				"cannot transition plan from %s to %s", plan.Status, target)
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{"status": target}

		if target == models.PlanStatusApproved {
			if models.RoleRank(role) < models.RoleRank(models.RoleApprover) {
				return apperrors.Forbidden("approving a plan requires the approver role")
			}
			var review models.BCReview
			if err := tx.Where("plan_id = ? AND status = ?", planID, models.ReviewStatusPending).
				Order("requested_at").First(&review).Error; err != nil {
				return apperrors.New(apperrors.CodeInvalidTransition,
					"plan has no pending review to approve")
			}
			if err := tx.Model(&review).Updates(map[string]interface{}{
				"status":     models.ReviewStatusApproved,
				"decided_at": now,
			}).Error; err != nil {
				return err
			}
			updates["approved_at"] = now
		}

		from := plan.Status
		if err := tx.Model(&plan).Updates(updates).Error; err != nil {
			return err
		}
		plan.Status = target

		audit.Record(tx, planID, audit.ActionStatusChanged, actorID, map[string]interface{}{
			"from": from,
			"to":   target,
		})
		moved = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if moved {
		metrics.PlanTransitions.WithLabelValues(target).Inc()
	}
	return &plan, nil
}
