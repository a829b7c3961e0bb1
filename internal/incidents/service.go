package incidents

import (
	"encoding/csv"
	"io"
	"time"

	"gorm.io/gorm"

	"portal-backend/internal/audit"
	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
)

// StartIncident opens an incident for a plan. If an active incident already
// exists it is returned unchanged. Otherwise the incident is created and one
// unticked ChecklistTick per immediate-phase item is inserted, seeding the
// default checklist first when the plan has none. The plan row is locked so
// concurrent starts cannot produce two active incidents.
func StartIncident(db *gorm.DB, planID uint, source string, actorID uint) (*models.Incident, bool, error) {
	var incident models.Incident
	created := false

	err := db.Transaction(func(tx *gorm.DB) error {
		var plan models.BCPlan
		if err := database.LockForUpdate(tx).First(&plan, planID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFound("plan")
			}
			return err
		}

		err := tx.Where("plan_id = ? AND status = ?", planID, models.IncidentStatusActive).
			First(&incident).Error
		if err == nil {
			return nil // already active, idempotent
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		items, err := SeedChecklist(tx, planID)
		if err != nil {
			return err
		}

		incident = models.Incident{
			PlanID:    planID,
			Status:    models.IncidentStatusActive,
			Source:    source,
			StartedAt: time.Now().UTC(),
		}
		if err := tx.Create(&incident).Error; err != nil {
			return err
		}

		for _, item := range items {
			tick := models.ChecklistTick{IncidentID: incident.ID, ItemID: item.ID}
			if err := tx.Create(&tick).Error; err != nil {
				return err
			}
		}

		created = true
		audit.Record(tx, planID, audit.ActionIncidentStarted, actorID, map[string]interface{}{
			"incident_id": incident.ID,
			"source":      source,
		})
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &incident, created, nil
}

// CloseIncident marks an incident closed. Ticks and event-log entries are
// kept.
func CloseIncident(db *gorm.DB, incidentID, actorID uint) (*models.Incident, error) {
	var incident models.Incident
	if err := db.First(&incident, incidentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("incident")
		}
		return nil, err
	}
	if incident.Status == models.IncidentStatusClosed {
		return &incident, nil
	}

	now := time.Now().UTC()
	if err := db.Model(&incident).Updates(map[string]interface{}{
		"status":    models.IncidentStatusClosed,
		"closed_at": now,
	}).Error; err != nil {
		return nil, err
	}
	incident.Status = models.IncidentStatusClosed
	incident.ClosedAt = &now

	audit.Record(db, incident.PlanID, audit.ActionIncidentClosed, actorID, map[string]interface{}{
		"incident_id": incident.ID,
	})
	return &incident, nil
}

// ActiveIncident returns the plan's active incident, if any.
func ActiveIncident(db *gorm.DB, planID uint) (*models.Incident, error) {
	var incident models.Incident
	err := db.Where("plan_id = ? AND status = ?", planID, models.IncidentStatusActive).
		First(&incident).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &incident, nil
}

// ToggleTick flips a checklist tick, stamping or clearing completer and time.
func ToggleTick(db *gorm.DB, tickID uint, done bool, userID uint) (*models.ChecklistTick, error) {
	var tick models.ChecklistTick
	if err := db.First(&tick, tickID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("checklist tick")
		}
		return nil, err
	}

	updates := map[string]interface{}{"is_done": done}
	if done {
		now := time.Now().UTC()
		updates["done_at"] = now
		updates["done_by_id"] = userID
		tick.DoneAt = &now
		tick.DoneByID = &userID
	} else {
		updates["done_at"] = nil
		updates["done_by_id"] = nil
		tick.DoneAt = nil
		tick.DoneByID = nil
	}
	tick.IsDone = done

	if err := db.Model(&models.ChecklistTick{}).Where("id = ?", tick.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &tick, nil
}

// AppendEvent inserts an immutable event-log entry on an incident.
func AppendEvent(db *gorm.DB, incidentID uint, happenedAt time.Time, notes, initials string, authorID *uint) (*models.EventLogEntry, error) {
	var incident models.Incident
	if err := db.First(&incident, incidentID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.NotFound("incident")
		}
		return nil, err
	}
	if happenedAt.IsZero() {
		happenedAt = time.Now().UTC()
	}

	entry := models.EventLogEntry{
		IncidentID: incidentID,
		PlanID:     incident.PlanID,
		HappenedAt: happenedAt.UTC(),
		Notes:      notes,
		Initials:   initials,
		AuthorID:   authorID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.Create(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListEvents returns a plan's event log, newest first, up to limit entries.
// The limit is clamped to [1, 500] with a default of 100.
func ListEvents(db *gorm.DB, planID uint, limit int) ([]models.EventLogEntry, error) {
	limit = ClampEventLimit(limit)
	var entries []models.EventLogEntry
	err := db.Where("plan_id = ?", planID).
		Order("happened_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// ClampEventLimit clamps an event-log limit into [1, 500], defaulting to 100
// for non-positive input.
func ClampEventLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 500 {
		return 500
	}
	return limit
}

// WriteEventsCSV renders event-log entries as UTF-8 CSV with the fixed
// header, newest-first ordering preserved from the input.
func WriteEventsCSV(w io.Writer, entries []models.EventLogEntry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Timestamp", "Initials", "Notes"}); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := cw.Write([]string{
			entry.HappenedAt.UTC().Format(time.RFC3339),
			entry.Initials,
			entry.Notes,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
