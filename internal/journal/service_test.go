package journal

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	return db
}

func TestCreateManualEvent(t *testing.T) {
	db := newTestDB(t)

	event, err := CreateManualEvent(db, "xero.invoice", "https://api.example/invoices",
		`{"Invoices":[]}`, map[string]string{"Authorization": "Bearer tok"}, 0, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, models.CallStatusInProgress, event.Status)
	assert.Equal(t, 1, event.MaxAttempts, "max attempts floors at 1")

	headers, err := event.RequestHeaders.AsMap()
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", headers["Authorization"])
}

func TestAttemptNumberingAndStatusMirror(t *testing.T) {
	db := newTestDB(t)
	event, err := CreateManualEvent(db, "xero.invoice", "https://api.example", "{}", nil, 1, 0)
	require.NoError(t, err)

	require.NoError(t, RecordManualFailure(db, event.ID, models.CallStatusError, Attempt{
		ErrorMessage: "connection refused",
	}))
	require.NoError(t, RecordManualFailure(db, event.ID, models.CallStatusFailed, Attempt{
		ResponseStatus: 400,
		ResponseBody:   `{"Message":"validation"}`,
	}))
	require.NoError(t, RecordManualSuccess(db, event.ID, Attempt{
		ResponseStatus: 200,
		ResponseBody:   `{"Invoices":[{"InvoiceNumber":"INV-9"}]}`,
	}))

	loaded, err := GetEvent(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusSucceeded, loaded.Status, "event status mirrors the latest attempt")
	require.Len(t, loaded.Attempts, 3)
	assert.Equal(t, 1, loaded.Attempts[0].Number)
	assert.Equal(t, models.CallStatusError, loaded.Attempts[0].Status)
	assert.Equal(t, 2, loaded.Attempts[1].Number)
	assert.Equal(t, models.CallStatusFailed, loaded.Attempts[1].Status)
	assert.Equal(t, 3, loaded.Attempts[2].Number)
	assert.Equal(t, 200, loaded.Attempts[2].ResponseStatus)
}

func TestRecordManualFailureValidatesStatus(t *testing.T) {
	db := newTestDB(t)
	event, err := CreateManualEvent(db, "test", "https://api.example", "{}", nil, 1, 0)
	require.NoError(t, err)

	err = RecordManualFailure(db, event.ID, "succeeded", Attempt{})
	require.Error(t, err)
	appErr, _ := apperrors.As(err)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
}

func TestRecordAttemptUnknownEvent(t *testing.T) {
	db := newTestDB(t)
	err := RecordManualSuccess(db, "no-such-id", Attempt{})
	require.Error(t, err)
}

func TestReplayRefusesSucceededEvents(t *testing.T) {
	db := newTestDB(t)
	event, err := CreateManualEvent(db, "test", "https://api.example", "{}", nil, 1, 0)
	require.NoError(t, err)
	require.NoError(t, RecordManualSuccess(db, event.ID, Attempt{ResponseStatus: 200}))

	_, err = Replay(db, event.ID)
	require.Error(t, err)
	appErr, _ := apperrors.As(err)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestReplayRequiresTargetURL(t *testing.T) {
	db := newTestDB(t)
	event, err := CreateManualEvent(db, "test", "", "{}", nil, 1, 0)
	require.NoError(t, err)

	_, err = Replay(db, event.ID)
	require.Error(t, err)
	appErr, _ := apperrors.As(err)
	assert.Equal(t, apperrors.CodeConfigMissing, appErr.Code)
}

func TestReplaySendsRecordedRequest(t *testing.T) {
	db := newTestDB(t)

	var gotBody string
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	event, err := CreateManualEvent(db, "xero.invoice", server.URL,
		`{"Invoices":[{"Type":"ACCREC"}]}`, map[string]string{"Authorization": "Bearer tok"}, 1, 0)
	require.NoError(t, err)
	require.NoError(t, RecordManualFailure(db, event.ID, models.CallStatusError, Attempt{
		ErrorMessage: "connection reset",
	}))

	replayed, err := Replay(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusSucceeded, replayed.Status)
	require.Len(t, replayed.Attempts, 2)
	assert.Equal(t, 200, replayed.Attempts[1].ResponseStatus)

	assert.Equal(t, `{"Invoices":[{"Type":"ACCREC"}]}`, gotBody, "replay resends the stored bytes")
	assert.Equal(t, "Bearer tok", gotAuth, "replay resends the stored headers")
}

func TestReplayRecordsUpstreamFailure(t *testing.T) {
	db := newTestDB(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Message":"still broken"}`))
	}))
	defer server.Close()

	event, err := CreateManualEvent(db, "test", server.URL, "{}", nil, 1, 0)
	require.NoError(t, err)

	replayed, err := Replay(db, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusFailed, replayed.Status)
	require.Len(t, replayed.Attempts, 1)
	assert.Equal(t, 400, replayed.Attempts[0].ResponseStatus)
	assert.Contains(t, replayed.Attempts[0].ResponseBody, "still broken")
}

func TestListEventsNewestFirst(t *testing.T) {
	db := newTestDB(t)
	for i := 0; i < 3; i++ {
		_, err := CreateManualEvent(db, "test", "https://api.example", "{}", nil, 1, 0)
		require.NoError(t, err)
	}

	events, err := ListEvents(db, 2)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}
