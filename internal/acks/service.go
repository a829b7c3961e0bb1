package acks

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"portal-backend/internal/audit"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
	"portal-backend/internal/plans"
)

// Acknowledge records that a user has read the plan at the given version.
// One row per (plan, user): re-acknowledging a later version replaces the
// earlier record, an older version never overwrites a newer one.
func Acknowledge(db *gorm.DB, planID, userID uint, versionNumber int) (*models.Acknowledgement, error) {
	if versionNumber == 0 {
		active, err := plans.ActiveVersion(db, planID)
		if err != nil {
			return nil, err
		}
		if active == nil {
			return nil, apperrors.Validation("plan has no active version to acknowledge")
		}
		versionNumber = active.VersionNumber
	}

	ack := models.Acknowledgement{
		PlanID:     planID,
		UserID:     userID,
		AckVersion: versionNumber,
		AckedAt:    time.Now().UTC(),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.Acknowledgement
		err := tx.Where("plan_id = ? AND user_id = ?", planID, userID).First(&existing).Error
		if err == nil {
			if existing.AckVersion >= versionNumber {
				ack = existing
				return nil
			}
			existing.AckVersion = versionNumber
			existing.AckedAt = ack.AckedAt
			if err := tx.Save(&existing).Error; err != nil {
				return err
			}
			ack = existing
			audit.Record(tx, planID, audit.ActionAcknowledged, userID, map[string]interface{}{
				"version_number": versionNumber,
			})
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "plan_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"ack_version", "acked_at"}),
		}).Create(&ack).Error; err != nil {
			return err
		}
		audit.Record(tx, planID, audit.ActionAcknowledged, userID, map[string]interface{}{
			"version_number": versionNumber,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// UsersPendingAck lists company members who have not acknowledged the plan
// at version v or later. Superadmins are excluded: they are operators, not
// plan audiences.
func UsersPendingAck(db *gorm.DB, companyID, planID uint, v int) ([]models.User, error) {
	var users []models.User
	err := db.
		Joins("JOIN company_members ON company_members.user_id = users.id AND company_members.company_id = ?", companyID).
		Where("users.role <> ?", models.RoleSuperAdmin).
		Where("users.id NOT IN (?)",
			db.Model(&models.Acknowledgement{}).
				Select("user_id").
				Where("plan_id = ? AND ack_version >= ?", planID, v)).
		Order("users.name asc").
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// Summary is the acknowledgement ledger rollup for a plan version.
type Summary struct {
	VersionNumber int   `json:"version_number"`
	Total         int64 `json:"total"`
	Acknowledged  int64 `json:"acknowledged"`
	Pending       int64 `json:"pending"`
}

// Summarize counts member acknowledgement coverage against the active
// version (or the given version when nonzero).
func Summarize(db *gorm.DB, companyID, planID uint, versionNumber int) (*Summary, error) {
	if versionNumber == 0 {
		active, err := plans.ActiveVersion(db, planID)
		if err != nil {
			return nil, err
		}
		if active != nil {
			versionNumber = active.VersionNumber
		}
	}

	var total int64
	err := db.Model(&models.User{}).
		Joins("JOIN company_members ON company_members.user_id = users.id AND company_members.company_id = ?", companyID).
		Where("users.role <> ?", models.RoleSuperAdmin).
		Count(&total).Error
	if err != nil {
		return nil, err
	}

	// Same eligible-user set as the total: a superadmin's ack must not
	// count against a denominator that excludes them.
	var acked int64
	err = db.Model(&models.Acknowledgement{}).
		Joins("JOIN company_members ON company_members.user_id = acknowledgements.user_id AND company_members.company_id = ?", companyID).
		Joins("JOIN users ON users.id = acknowledgements.user_id").
		Where("users.role <> ?", models.RoleSuperAdmin).
		Where("acknowledgements.plan_id = ? AND acknowledgements.ack_version >= ?", planID, versionNumber).
		Count(&acked).Error
	if err != nil {
		return nil, err
	}

	pending := total - acked
	if pending < 0 {
		pending = 0
	}
	return &Summary{
		VersionNumber: versionNumber,
		Total:         total,
		Acknowledged:  acked,
		Pending:       pending,
	}, nil
}
