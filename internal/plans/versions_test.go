package plans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
)

func TestCreateVersionSupersedesSiblings(t *testing.T) {
	db := newTestDB(t)
	company, user := seedCompanyUser(t, db, models.RoleEditor)
	plan, err := GetOrCreatePlan(db, company.ID, user.ID)
	require.NoError(t, err)

	v1, err := CreateVersion(db, plan.ID, user.ID, "first", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)
	assert.Equal(t, models.VersionStatusActive, v1.Status)

	v2, err := CreateVersion(db, plan.ID, user.ID, "second", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)

	var prior models.BCPlanVersion
	require.NoError(t, db.First(&prior, v1.ID).Error)
	assert.Equal(t, models.VersionStatusSuperseded, prior.Status)

	var active int64
	require.NoError(t, db.Model(&models.BCPlanVersion{}).
		Where("plan_id = ? AND status = ?", plan.ID, models.VersionStatusActive).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)

	var reloaded models.BCPlan
	require.NoError(t, db.First(&reloaded, plan.ID).Error)
	require.NotNil(t, reloaded.CurrentVersionID)
	assert.Equal(t, v2.ID, *reloaded.CurrentVersionID)
}

func TestCreateVersionSeedsFromTemplate(t *testing.T) {
	db := newTestDB(t)
	company, user := seedCompanyUser(t, db, models.RoleEditor)

	tmpl := models.BCTemplate{
		Name:      "Standard",
		IsDefault: true,
		SchemaJSON: models.MustJSON(map[string]interface{}{
			"sections": []interface{}{
				map[string]interface{}{
					"key": "overview",
					"fields": []interface{}{
						map[string]interface{}{"key": "purpose"},
						map[string]interface{}{"key": "scope", "default_value": "whole business"},
					},
				},
			},
		}),
	}
	require.NoError(t, db.Create(&tmpl).Error)

	plan, err := GetOrCreatePlan(db, company.ID, user.ID)
	require.NoError(t, err)
	require.NotNil(t, plan.TemplateID)

	v, err := CreateVersion(db, plan.ID, user.ID, "", nil)
	require.NoError(t, err)

	content, err := DecodeContent(*v)
	require.NoError(t, err)
	overview, ok := content["overview"].(map[string]interface{})
	require.True(t, ok)
	assert.Nil(t, overview["purpose"])
	assert.Equal(t, "whole business", overview["scope"])
}

func TestActivateVersionRollsBack(t *testing.T) {
	db := newTestDB(t)
	company, user := seedCompanyUser(t, db, models.RoleEditor)
	plan, err := GetOrCreatePlan(db, company.ID, user.ID)
	require.NoError(t, err)

	v1, err := CreateVersion(db, plan.ID, user.ID, "first", nil)
	require.NoError(t, err)
	v2, err := CreateVersion(db, plan.ID, user.ID, "second", nil)
	require.NoError(t, err)

	restored, err := ActivateVersion(db, plan.ID, v1.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VersionStatusActive, restored.Status)

	var newer models.BCPlanVersion
	require.NoError(t, db.First(&newer, v2.ID).Error)
	assert.Equal(t, models.VersionStatusSuperseded, newer.Status)

	active, err := ActiveVersion(db, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, active.ID)
}

func TestActivateActiveVersionIsNoOp(t *testing.T) {
	db := newTestDB(t)
	company, user := seedCompanyUser(t, db, models.RoleEditor)
	plan, err := GetOrCreatePlan(db, company.ID, user.ID)
	require.NoError(t, err)

	v, err := CreateVersion(db, plan.ID, user.ID, "only", nil)
	require.NoError(t, err)

	var before int64
	require.NoError(t, db.Model(&models.BCAuditEntry{}).
		Where("plan_id = ? AND action = ?", plan.ID, "plan.version_activated").Count(&before).Error)

	got, err := ActivateVersion(db, plan.ID, v.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VersionStatusActive, got.Status)

	var after int64
	require.NoError(t, db.Model(&models.BCAuditEntry{}).
		Where("plan_id = ? AND action = ?", plan.ID, "plan.version_activated").Count(&after).Error)
	assert.Equal(t, before, after)
}

func TestActivateVersionWrongPlan(t *testing.T) {
	db := newTestDB(t)
	company, user := seedCompanyUser(t, db, models.RoleEditor)
	plan, err := GetOrCreatePlan(db, company.ID, user.ID)
	require.NoError(t, err)

	_, err = ActivateVersion(db, plan.ID, 9999, user.ID)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}
