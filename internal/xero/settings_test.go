package xero

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-backend/internal/database"
	"portal-backend/internal/models"
)

func TestNormalizeStatuses(t *testing.T) {
	assert.Equal(t, []string{"resolved", "closed"},
		NormalizeStatuses("Resolved, closed ,RESOLVED"))
	assert.Equal(t, []string{"open", "pending"},
		NormalizeStatuses([]string{" Open", "pending", "open"}))
	assert.Equal(t, []string{"resolved"},
		NormalizeStatuses([]interface{}{"Resolved", 42, ""}))
	assert.Empty(t, NormalizeStatuses(""))
	assert.Empty(t, NormalizeStatuses(nil))
}

func TestBillableStatusesDefault(t *testing.T) {
	assert.Equal(t, []string{"resolved"}, BillableStatuses(&models.XeroSettings{}))
	assert.Equal(t, []string{"closed", "resolved"},
		BillableStatuses(&models.XeroSettings{BillableStatuses: models.StringArray{"Closed", "Resolved"}}))
}

func TestValidationReason(t *testing.T) {
	assert.Equal(t, ReasonNotConfigured, ValidationReason(nil))
	assert.Equal(t, ReasonNotConfigured, ValidationReason(&models.XeroSettings{}))
	assert.Equal(t, ReasonNotConfigured, ValidationReason(&models.XeroSettings{
		ClientID: "id", ClientSecret: "secret",
	}))
	assert.Equal(t, ReasonNoTenant, ValidationReason(&models.XeroSettings{
		ClientID: "id", ClientSecret: "secret", RefreshToken: "tok",
	}))
	assert.Equal(t, ReasonNoHourlyRate, ValidationReason(&models.XeroSettings{
		ClientID: "id", ClientSecret: "secret", RefreshToken: "tok", TenantID: "tenant",
	}))
	assert.Equal(t, "", ValidationReason(&models.XeroSettings{
		ClientID: "id", ClientSecret: "secret", RefreshToken: "tok",
		TenantID: "tenant", DefaultHourlyRate: "150",
	}))
}

func TestLoadSettingsMissingRowIsNil(t *testing.T) {
	db, err := database.OpenTest()
	require.NoError(t, err)
	ctx := context.Background()

	InvalidateSettings(ctx, 12345)
	settings, err := LoadSettings(ctx, db, 12345)
	require.NoError(t, err)
	assert.Nil(t, settings)
}

func TestLoadSettingsCachesAndInvalidates(t *testing.T) {
	db, err := database.OpenTest()
	require.NoError(t, err)
	ctx := context.Background()

	row := models.XeroSettings{CompanyID: 777, TenantID: "tenant-a", DefaultHourlyRate: "95"}
	require.NoError(t, db.Create(&row).Error)
	InvalidateSettings(ctx, 777)

	loaded, err := LoadSettings(ctx, db, 777)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "tenant-a", loaded.TenantID)

	// A direct DB edit is invisible until the cache entry is dropped.
	require.NoError(t, db.Model(&models.XeroSettings{}).
		Where("company_id = ?", 777).Update("tenant_id", "tenant-b").Error)

	cached, err := LoadSettings(ctx, db, 777)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", cached.TenantID)

	InvalidateSettings(ctx, 777)
	fresh, err := LoadSettings(ctx, db, 777)
	require.NoError(t, err)
	assert.Equal(t, "tenant-b", fresh.TenantID)
}

func TestLoadSettingsCacheKeepsSecrets(t *testing.T) {
	db, err := database.OpenTest()
	require.NoError(t, err)
	ctx := context.Background()

	row := models.XeroSettings{
		CompanyID: 888, ClientID: "client", ClientSecret: "secret",
		RefreshToken: "refresh", TenantID: "tenant", DefaultHourlyRate: "95",
	}
	require.NoError(t, db.Create(&row).Error)
	InvalidateSettings(ctx, 888)

	warm, err := LoadSettings(ctx, db, 888)
	require.NoError(t, err)
	require.Equal(t, "", ValidationReason(warm))

	// Second load comes from the cache and must still carry the secrets
	// the API shape elides.
	cached, err := LoadSettings(ctx, db, 888)
	require.NoError(t, err)
	assert.Equal(t, "secret", cached.ClientSecret)
	assert.Equal(t, "refresh", cached.RefreshToken)
	assert.Equal(t, "", ValidationReason(cached))
}

func TestBillableStatusesPersistAsList(t *testing.T) {
	db, err := database.OpenTest()
	require.NoError(t, err)

	row := models.XeroSettings{
		CompanyID:        999,
		BillableStatuses: models.StringArray{"resolved", "awaiting_billing"},
	}
	require.NoError(t, db.Create(&row).Error)

	var loaded models.XeroSettings
	require.NoError(t, db.Where("company_id = ?", 999).First(&loaded).Error)
	assert.Equal(t, []string{"resolved", "awaiting_billing"}, loaded.BillableStatuses.ToSlice())
	assert.Equal(t, []string{"resolved", "awaiting_billing"}, BillableStatuses(&loaded))

	// Rows written before the array encoding hold a bare comma string.
	var legacy models.StringArray
	require.NoError(t, legacy.Scan("closed,resolved"))
	assert.Equal(t, []string{"closed", "resolved"}, legacy.ToSlice())
}
