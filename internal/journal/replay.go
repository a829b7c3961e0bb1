package journal

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
)

var replayClient = &http.Client{Timeout: 30 * time.Second}

// Replay resends a journaled event's recorded request exactly as stored
// and records the outcome as a new attempt. Succeeded events are not
// replayable; use the recorded response instead.
func Replay(db *gorm.DB, eventID string) (*models.CallJournalEvent, error) {
	event, err := GetEvent(db, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.CallStatusSucceeded {
		return nil, apperrors.New(apperrors.CodeConflict, "event already succeeded")
	}
	if strings.TrimSpace(event.TargetURL) == "" {
		return nil, apperrors.New(apperrors.CodeConfigMissing, "event has no target URL to replay")
	}

	headers := map[string]string{}
	if decoded, err := event.RequestHeaders.AsMap(); err == nil {
		for k, v := range decoded {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	req, err := http.NewRequest(http.MethodPost, event.TargetURL, bytes.NewReader([]byte(event.RequestBody)))
	if err != nil {
		return nil, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	attempt := Attempt{
		RequestHeaders: headers,
		RequestBody:    event.RequestBody,
	}

	resp, err := replayClient.Do(req)
	if err != nil {
		attempt.ErrorMessage = err.Error()
		if recordErr := RecordManualFailure(db, eventID, models.CallStatusError, attempt); recordErr != nil {
			return nil, recordErr
		}
		return GetEvent(db, eventID)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	attempt.ResponseStatus = resp.StatusCode
	attempt.ResponseBody = string(body)
	attempt.ResponseHeaders = flattenHeader(resp.Header)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		err = RecordManualSuccess(db, eventID, attempt)
	} else {
		err = RecordManualFailure(db, eventID, models.CallStatusFailed, attempt)
	}
	if err != nil {
		return nil, err
	}
	return GetEvent(db, eventID)
}

func flattenHeader(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, values := range h {
		if len(values) > 0 {
			out[k] = values[0]
		}
	}
	return out
}
