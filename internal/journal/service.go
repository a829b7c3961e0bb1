package journal

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
)

// Attempt captures everything one try of a journaled call observed. The
// request fields hold the bytes actually transmitted, which may differ
// from the event's original draft on replay.
type Attempt struct {
	Number          int
	Status          string
	ResponseStatus  int
	ResponseBody    string
	ResponseHeaders map[string]string
	RequestHeaders  map[string]string
	RequestBody     string
	ErrorMessage    string
}

// CreateManualEvent persists the intent of an outbound call before it is
// made: name, target and the exact payload+headers to be sent (and resent
// on manual replay).
func CreateManualEvent(db *gorm.DB, name, targetURL, payload string, headers map[string]string, maxAttempts, backoffSeconds int) (*models.CallJournalEvent, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	event := models.CallJournalEvent{
		ID:             uuid.NewString(),
		Name:           name,
		TargetURL:      targetURL,
		RequestHeaders: headersJSON(headers),
		RequestBody:    payload,
		Status:         models.CallStatusInProgress,
		MaxAttempts:    maxAttempts,
		BackoffSeconds: backoffSeconds,
	}
	if err := db.Create(&event).Error; err != nil {
		return nil, err
	}
	return &event, nil
}

// RecordManualSuccess appends a succeeded attempt and moves the event
// status to succeeded.
func RecordManualSuccess(db *gorm.DB, eventID string, a Attempt) error {
	a.Status = models.CallStatusSucceeded
	return recordAttempt(db, eventID, a)
}

// RecordManualFailure appends a failed or error attempt. status must be
// "failed" (upstream non-2xx) or "error" (transport fault).
func RecordManualFailure(db *gorm.DB, eventID, status string, a Attempt) error {
	if status != models.CallStatusFailed && status != models.CallStatusError {
		return apperrors.Validation("attempt status must be failed or error")
	}
	a.Status = status
	return recordAttempt(db, eventID, a)
}

// recordAttempt is append-only per attempt; the event's running status
// mirrors the most recent attempt.
func recordAttempt(db *gorm.DB, eventID string, a Attempt) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var event models.CallJournalEvent
		if err := tx.First(&event, "id = ?", eventID).Error; err != nil {
			return apperrors.NotFound("journal event")
		}

		if a.Number == 0 {
			var count int64
			if err := tx.Model(&models.CallJournalAttempt{}).
				Where("event_id = ?", eventID).Count(&count).Error; err != nil {
				return err
			}
			a.Number = int(count) + 1
		}

		record := models.CallJournalAttempt{
			EventID:         eventID,
			Number:          a.Number,
			Status:          a.Status,
			ResponseStatus:  a.ResponseStatus,
			ResponseHeaders: headersJSON(a.ResponseHeaders),
			ResponseBody:    a.ResponseBody,
			RequestHeaders:  headersJSON(a.RequestHeaders),
			RequestBody:     a.RequestBody,
			ErrorMessage:    a.ErrorMessage,
			CreatedAt:       time.Now().UTC(),
		}
		if err := tx.Create(&record).Error; err != nil {
			return err
		}
		return tx.Model(&event).Update("status", a.Status).Error
	})
}

// ListEvents returns journal events newest first.
func ListEvents(db *gorm.DB, limit int) ([]models.CallJournalEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var events []models.CallJournalEvent
	err := db.Order("created_at DESC").Limit(limit).Find(&events).Error
	return events, err
}

// GetEvent loads an event with its attempts, oldest attempt first.
func GetEvent(db *gorm.DB, eventID string) (*models.CallJournalEvent, error) {
	var event models.CallJournalEvent
	err := db.Preload("Attempts", func(db *gorm.DB) *gorm.DB {
		return db.Order("number asc")
	}).First(&event, "id = ?", eventID).Error
	if err != nil {
		return nil, apperrors.NotFound("journal event")
	}
	return &event, nil
}

func headersJSON(headers map[string]string) models.JSON {
	if len(headers) == 0 {
		return nil
	}
	return models.MustJSON(headers)
}
