package plans

import (
	"time"

	"gorm.io/gorm"

	"portal-backend/internal/audit"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
)

// SubmitForReview creates one pending review per reviewer and moves a draft
// plan into in_review. Requires editor or better.
func SubmitForReview(db *gorm.DB, planID, actorID uint, role string, reviewerIDs []uint, notes string) ([]models.BCReview, error) {
	if models.RoleRank(role) < models.RoleRank(models.RoleEditor) {
		return nil, apperrors.Forbidden("submitting a plan for review requires the editor role")
	}
	if len(reviewerIDs) == 0 {
		return nil, apperrors.Validation("at least one reviewer is required")
	}

	var reviews []models.BCReview
	err := db.Transaction(func(tx *gorm.DB) error {
		var plan models.BCPlan
		if err := tx.First(&plan, planID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFound("plan")
			}
			return err
		}
		if plan.Status != models.PlanStatusDraft {
			return apperrors.Newf(apperrors.CodeInvalidTransition,
				"plan must be in draft to submit for review, currently %s", plan.Status)
		}

		now := time.Now().UTC()
		for _, reviewerID := range reviewerIDs {
			review := models.BCReview{
				PlanID:      planID,
				RequesterID: actorID,
				ReviewerID:  reviewerID,
				Status:      models.ReviewStatusPending,
				Notes:       notes,
				RequestedAt: now,
			}
			if err := tx.Create(&review).Error; err != nil {
				return err
			}
			reviews = append(reviews, review)
		}

		if err := tx.Model(&plan).Update("status", models.PlanStatusInReview).Error; err != nil {
			return err
		}

		audit.Record(tx, planID, audit.ActionReviewSubmitted, actorID, map[string]interface{}{
			"reviewers": reviewerIDs,
		})
		audit.Record(tx, planID, audit.ActionStatusChanged, actorID, map[string]interface{}{
			"from": models.PlanStatusDraft,
			"to":   models.PlanStatusInReview,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// ApproveReview records an approved decision. The first approval on a plan
// in review moves it to approved and stamps approved_at.
func ApproveReview(db *gorm.DB, reviewID, actorID uint, role string, notes string) (*models.BCReview, error) {
	return decideReview(db, reviewID, actorID, role, notes, models.ReviewStatusApproved)
}

// RequestChanges records a changes_requested decision. The first such
// decision moves an in_review plan back to draft.
func RequestChanges(db *gorm.DB, reviewID, actorID uint, role string, notes string) (*models.BCReview, error) {
	return decideReview(db, reviewID, actorID, role, notes, models.ReviewStatusChangesRequested)
}

func decideReview(db *gorm.DB, reviewID, actorID uint, role, notes, decision string) (*models.BCReview, error) {
	if models.RoleRank(role) < models.RoleRank(models.RoleApprover) {
		return nil, apperrors.Forbidden("deciding a review requires the approver role")
	}

	var review models.BCReview
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&review, reviewID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFound("review")
			}
			return err
		}
		if review.ReviewerID != actorID && models.RoleRank(role) < models.RoleRank(models.RoleSuperAdmin) {
			return apperrors.Forbidden("only the assigned reviewer may decide this review")
		}
		if review.Status != models.ReviewStatusPending {
			return apperrors.Newf(apperrors.CodeConflict, "review already decided as %s", review.Status)
		}

		var plan models.BCPlan
		if err := tx.First(&plan, review.PlanID).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := tx.Model(&review).Updates(map[string]interface{}{
			"status":     decision,
			"notes":      notes,
			"decided_at": now,
		}).Error; err != nil {
			return err
		}
		review.Status = decision
		review.DecidedAt = &now

		if plan.Status != models.PlanStatusInReview {
			return nil // decision recorded, plan already moved on
		}

		switch decision {
		case models.ReviewStatusApproved:
			if err := tx.Model(&plan).Updates(map[string]interface{}{
				"status":      models.PlanStatusApproved,
				"approved_at": now,
			}).Error; err != nil {
				return err
			}
			audit.Record(tx, plan.ID, audit.ActionApproved, actorID, map[string]interface{}{
				"review_id": review.ID,
			})
			audit.Record(tx, plan.ID, audit.ActionStatusChanged, actorID, map[string]interface{}{
				"from": models.PlanStatusInReview,
				"to":   models.PlanStatusApproved,
			})
		case models.ReviewStatusChangesRequested:
			if err := tx.Model(&plan).Update("status", models.PlanStatusDraft).Error; err != nil {
				return err
			}
			audit.Record(tx, plan.ID, audit.ActionChangesRequested, actorID, map[string]interface{}{
				"review_id": review.ID,
			})
			audit.Record(tx, plan.ID, audit.ActionStatusChanged, actorID, map[string]interface{}{
				"from": models.PlanStatusInReview,
				"to":   models.PlanStatusDraft,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &review, nil
}
