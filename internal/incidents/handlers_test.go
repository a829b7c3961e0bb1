package incidents

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-backend/internal/database"
	"portal-backend/internal/models"
)

func postWebhook(t *testing.T, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/bcp/webhook/incident", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	HandleIncidentWebhook(c)
	return w
}

func TestIncidentWebhook(t *testing.T) {
	db := newTestDB(t)
	database.DB = db
	plan := seedPlan(t, db)
	t.Setenv("BCP_WEBHOOK_API_KEY", "hook-secret")

	t.Run("rejects wrong key", func(t *testing.T) {
		w := postWebhook(t, map[string]interface{}{
			"company_id": plan.CompanyID,
			"api_key":    "wrong",
		})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("starts incident and logs the trigger", func(t *testing.T) {
		w := postWebhook(t, map[string]interface{}{
			"company_id": plan.CompanyID,
			"api_key":    "hook-secret",
			"message":    "Monitor is DOWN: acme.example",
		})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp struct {
			Status     string `json:"status"`
			IncidentID uint   `json:"incident_id"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "started", resp.Status)

		var incident models.Incident
		require.NoError(t, db.First(&incident, resp.IncidentID).Error)
		assert.Equal(t, models.IncidentSourceUptimeKuma, incident.Source)

		var entry models.EventLogEntry
		require.NoError(t, db.Where("incident_id = ?", incident.ID).First(&entry).Error)
		assert.Equal(t, "Monitor is DOWN: acme.example", entry.Notes)
		assert.Nil(t, entry.AuthorID)
	})

	t.Run("repeat fire reports already_active", func(t *testing.T) {
		w := postWebhook(t, map[string]interface{}{
			"company_id": plan.CompanyID,
			"api_key":    "hook-secret",
		})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "already_active", resp.Status)

		var count int64
		require.NoError(t, db.Model(&models.Incident{}).
			Where("plan_id = ?", plan.ID).Count(&count).Error)
		assert.EqualValues(t, 1, count)
	})

	t.Run("unknown company", func(t *testing.T) {
		w := postWebhook(t, map[string]interface{}{
			"company_id": 9999,
			"api_key":    "hook-secret",
		})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestIncidentWebhookUnconfiguredKey(t *testing.T) {
	db := newTestDB(t)
	database.DB = db
	plan := seedPlan(t, db)
	t.Setenv("BCP_WEBHOOK_API_KEY", "")

	w := postWebhook(t, map[string]interface{}{
		"company_id": plan.CompanyID,
		"api_key":    "",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "an unset key disables the webhook entirely")
}
