package acks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"portal-backend/internal/database"
	"portal-backend/internal/models"
	"portal-backend/internal/plans"
)

type fixture struct {
	db      *gorm.DB
	company *models.Company
	plan    *models.BCPlan
	users   []models.User
}

func newFixture(t *testing.T, memberCount int) *fixture {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)

	company := models.Company{Name: "Acme Pty Ltd"}
	require.NoError(t, db.Create(&company).Error)
	plan := models.BCPlan{CompanyID: company.ID, Title: "Acme BCP", Status: models.PlanStatusDraft}
	require.NoError(t, db.Create(&plan).Error)

	f := &fixture{db: db, company: &company, plan: &plan}
	names := []string{"Alice", "Bob", "Carol", "Dave"}
	for i := 0; i < memberCount; i++ {
		user := models.User{Email: names[i] + "@acme.test", Name: names[i]}
		require.NoError(t, db.Create(&user).Error)
		require.NoError(t, db.Create(&models.CompanyMember{
			CompanyID: company.ID, UserID: user.ID, Role: models.RoleViewer,
		}).Error)
		f.users = append(f.users, user)
	}
	return f
}

func (f *fixture) newVersion(t *testing.T) *models.BCPlanVersion {
	t.Helper()
	v, err := plans.CreateVersion(f.db, f.plan.ID, f.users[0].ID, "", map[string]interface{}{})
	require.NoError(t, err)
	return v
}

func TestAcknowledgeDefaultsToActiveVersion(t *testing.T) {
	f := newFixture(t, 2)
	v := f.newVersion(t)

	ack, err := Acknowledge(f.db, f.plan.ID, f.users[0].ID, 0)
	require.NoError(t, err)
	assert.Equal(t, v.VersionNumber, ack.AckVersion)
}

func TestAcknowledgeWithoutActiveVersion(t *testing.T) {
	f := newFixture(t, 1)
	_, err := Acknowledge(f.db, f.plan.ID, f.users[0].ID, 0)
	require.Error(t, err)
}

func TestAcknowledgeKeepsOneRowPerUser(t *testing.T) {
	f := newFixture(t, 1)
	f.newVersion(t)

	first, err := Acknowledge(f.db, f.plan.ID, f.users[0].ID, 1)
	require.NoError(t, err)

	second, err := Acknowledge(f.db, f.plan.ID, f.users[0].ID, 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.AckedAt.Unix(), second.AckedAt.Unix(), "re-acknowledging the same version changes nothing")

	var count int64
	require.NoError(t, f.db.Model(&models.Acknowledgement{}).
		Where("plan_id = ? AND user_id = ?", f.plan.ID, f.users[0].ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestAcknowledgeOlderVersionNeverOverwrites(t *testing.T) {
	f := newFixture(t, 1)
	f.newVersion(t)
	f.newVersion(t)

	_, err := Acknowledge(f.db, f.plan.ID, f.users[0].ID, 2)
	require.NoError(t, err)

	ack, err := Acknowledge(f.db, f.plan.ID, f.users[0].ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, ack.AckVersion, "older acknowledgement kept the newer record")
}

// New version resets the outstanding list: everyone who acknowledged v1 is
// pending again for v2.
func TestVersionBumpResetsPending(t *testing.T) {
	f := newFixture(t, 3)
	f.newVersion(t)

	for _, user := range f.users {
		_, err := Acknowledge(f.db, f.plan.ID, user.ID, 1)
		require.NoError(t, err)
	}

	summary, err := Summarize(f.db, f.company.ID, f.plan.ID, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, summary.Total)
	assert.EqualValues(t, 3, summary.Acknowledged)
	assert.EqualValues(t, 0, summary.Pending)

	f.newVersion(t)

	summary, err = Summarize(f.db, f.company.ID, f.plan.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.VersionNumber)
	assert.EqualValues(t, 0, summary.Acknowledged)
	assert.EqualValues(t, 3, summary.Pending)

	pending, err := UsersPendingAck(f.db, f.company.ID, f.plan.ID, 2)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "Alice", pending[0].Name, "pending users sorted by name")

	_, err = Acknowledge(f.db, f.plan.ID, f.users[1].ID, 2)
	require.NoError(t, err)

	pending, err = UsersPendingAck(f.db, f.company.ID, f.plan.ID, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	for _, user := range pending {
		assert.NotEqual(t, f.users[1].ID, user.ID)
	}
}

func TestPendingExcludesSuperadmins(t *testing.T) {
	f := newFixture(t, 2)
	f.newVersion(t)

	operator := models.User{Email: "ops@portal.test", Name: "Operator", Role: models.RoleSuperAdmin}
	require.NoError(t, f.db.Create(&operator).Error)
	require.NoError(t, f.db.Create(&models.CompanyMember{
		CompanyID: f.company.ID, UserID: operator.ID, Role: models.RoleAdmin,
	}).Error)

	summary, err := Summarize(f.db, f.company.ID, f.plan.ID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.Total)

	pending, err := UsersPendingAck(f.db, f.company.ID, f.plan.ID, 1)
	require.NoError(t, err)
	for _, user := range pending {
		assert.NotEqual(t, operator.ID, user.ID)
	}
}

func TestSuperadminAckDoesNotHidePendingMembers(t *testing.T) {
	f := newFixture(t, 1)
	f.newVersion(t)

	operator := models.User{Email: "ops@portal.test", Name: "Operator", Role: models.RoleSuperAdmin}
	require.NoError(t, f.db.Create(&operator).Error)
	require.NoError(t, f.db.Create(&models.CompanyMember{
		CompanyID: f.company.ID, UserID: operator.ID, Role: models.RoleAdmin,
	}).Error)

	_, err := Acknowledge(f.db, f.plan.ID, operator.ID, 1)
	require.NoError(t, err)

	summary, err := Summarize(f.db, f.company.ID, f.plan.ID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.Total)
	assert.EqualValues(t, 0, summary.Acknowledged, "operator acks do not count toward member coverage")

	pending, err := UsersPendingAck(f.db, f.company.ID, f.plan.ID, 1)
	require.NoError(t, err)
	assert.EqualValues(t, len(pending), summary.Pending)
	assert.EqualValues(t, 1, summary.Pending)
}
