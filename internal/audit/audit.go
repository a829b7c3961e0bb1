package audit

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portal-backend/internal/models"
)

// Plan audit actions.
const (
	ActionStatusChanged    = "plan.status_changed"
	ActionVersionCreated   = "plan.version_created"
	ActionVersionActivated = "plan.version_activated"
	ActionReviewSubmitted  = "plan.review_submitted"
	ActionApproved         = "plan.approved"
	ActionChangesRequested = "plan.changes_requested"
	ActionAcknowledged     = "plan.acknowledged"
	ActionAttachmentAdded  = "plan.attachment_added"
	ActionIncidentStarted  = "plan.incident_started"
	ActionIncidentClosed   = "plan.incident_closed"
)

// Record appends an audit entry for a plan. Failures are logged, never
// propagated: an audit miss must not abort the mutation it describes.
func Record(db *gorm.DB, planID uint, action string, actorID uint, details map[string]interface{}) {
	entry := models.BCAuditEntry{
		PlanID:    planID,
		Action:    action,
		ActorID:   actorID,
		Details:   models.MustJSON(details),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.Create(&entry).Error; err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"plan_id": planID,
			"action":  action,
		}).Error("failed to write audit entry")
	}
}

// List returns the audit trail for a plan, newest first.
func List(db *gorm.DB, planID uint, limit int) ([]models.BCAuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.BCAuditEntry
	err := db.Where("plan_id = ?", planID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
