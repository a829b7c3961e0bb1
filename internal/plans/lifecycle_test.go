package plans

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"portal-backend/internal/audit"
	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/metrics"
	"portal-backend/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenTest()
	require.NoError(t, err)
	return db
}

func seedCompanyUser(t *testing.T, db *gorm.DB, role string) (*models.Company, *models.User) {
	t.Helper()
	company := models.Company{Name: "Acme Pty Ltd"}
	require.NoError(t, db.Create(&company).Error)
	user := models.User{Email: role + "@acme.test", Name: "Test " + role, Role: "user"}
	require.NoError(t, db.Create(&user).Error)
	require.NoError(t, db.Create(&models.CompanyMember{
		CompanyID: company.ID, UserID: user.ID, Role: role,
	}).Error)
	return &company, &user
}

func TestGetOrCreatePlanCreatesOnce(t *testing.T) {
	db := newTestDB(t)
	company, user := seedCompanyUser(t, db, models.RoleEditor)

	plan, err := GetOrCreatePlan(db, company.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusDraft, plan.Status)
	assert.Equal(t, "Acme Pty Ltd Business Continuity Plan", plan.Title)
	assert.Equal(t, user.ID, plan.OwnerID)

	again, err := GetOrCreatePlan(db, company.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.ID, again.ID)

	var count int64
	require.NoError(t, db.Model(&models.BCPlan{}).Where("company_id = ?", company.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestGetOrCreatePlanUnknownCompany(t *testing.T) {
	db := newTestDB(t)
	_, err := GetOrCreatePlan(db, 999, 1)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to string
		allowed  bool
	}{
		{models.PlanStatusDraft, models.PlanStatusInReview, true},
		{models.PlanStatusDraft, models.PlanStatusArchived, true},
		{models.PlanStatusDraft, models.PlanStatusApproved, false},
		{models.PlanStatusInReview, models.PlanStatusDraft, true},
		{models.PlanStatusInReview, models.PlanStatusApproved, true},
		{models.PlanStatusInReview, models.PlanStatusArchived, false},
		{models.PlanStatusApproved, models.PlanStatusArchived, true},
		{models.PlanStatusApproved, models.PlanStatusDraft, false},
		{models.PlanStatusApproved, models.PlanStatusInReview, false},
		{models.PlanStatusArchived, models.PlanStatusDraft, true},
		{models.PlanStatusArchived, models.PlanStatusApproved, false},
		{models.PlanStatusArchived, models.PlanStatusInReview, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, transitionAllowed(tc.from, tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestTransitionRejectsIllegalMove(t *testing.T) {
	db := newTestDB(t)
	company, user := seedCompanyUser(t, db, models.RoleEditor)
	plan, err := GetOrCreatePlan(db, company.ID, user.ID)
	require.NoError(t, err)

	_, err = Transition(db, plan.ID, models.PlanStatusApproved, user.ID, models.RoleApprover)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeInvalidTransition, appErr.Code)
}

func TestTransitionSameStatusIsNoOp(t *testing.T) {
	db := newTestDB(t)
	company, user := seedCompanyUser(t, db, models.RoleEditor)
	plan, err := GetOrCreatePlan(db, company.ID, user.ID)
	require.NoError(t, err)

	got, err := Transition(db, plan.ID, models.PlanStatusDraft, user.ID, models.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusDraft, got.Status)

	var audits int64
	require.NoError(t, db.Model(&models.BCAuditEntry{}).Where("plan_id = ?", plan.ID).Count(&audits).Error)
	assert.EqualValues(t, 0, audits, "no-op transitions are not audited")
}

func TestTransitionIncrementsCounter(t *testing.T) {
	db := newTestDB(t)
	company, user := seedCompanyUser(t, db, models.RoleEditor)
	plan, err := GetOrCreatePlan(db, company.ID, user.ID)
	require.NoError(t, err)

	counter := metrics.PlanTransitions.WithLabelValues(models.PlanStatusInReview)
	before := testutil.ToFloat64(counter)

	// A no-op move leaves the counter alone.
	_, err = Transition(db, plan.ID, models.PlanStatusDraft, user.ID, models.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, before, testutil.ToFloat64(counter))

	_, err = Transition(db, plan.ID, models.PlanStatusInReview, user.ID, models.RoleEditor)
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestTransitionApproveRequiresApproverAndPendingReview(t *testing.T) {
	db := newTestDB(t)
	company, editor := seedCompanyUser(t, db, models.RoleEditor)
	plan, err := GetOrCreatePlan(db, company.ID, editor.ID)
	require.NoError(t, err)

	approver := models.User{Email: "approver@acme.test", Name: "Approver"}
	require.NoError(t, db.Create(&approver).Error)

	_, err = SubmitForReview(db, plan.ID, editor.ID, models.RoleEditor, []uint{approver.ID}, "please review")
	require.NoError(t, err)

	// An editor cannot drive the approved transition.
	_, err = Transition(db, plan.ID, models.PlanStatusApproved, editor.ID, models.RoleEditor)
	require.Error(t, err)
	appErr, _ := apperrors.As(err)
	assert.Equal(t, apperrors.CodeForbidden, appErr.Code)

	got, err := Transition(db, plan.ID, models.PlanStatusApproved, approver.ID, models.RoleApprover)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusApproved, got.Status)

	var reloaded models.BCPlan
	require.NoError(t, db.First(&reloaded, plan.ID).Error)
	assert.NotNil(t, reloaded.ApprovedAt)

	var review models.BCReview
	require.NoError(t, db.Where("plan_id = ?", plan.ID).First(&review).Error)
	assert.Equal(t, models.ReviewStatusApproved, review.Status)
}

// Full lifecycle: create, edit through two versions, review, approve, archive.
func TestPlanLifecycleEndToEnd(t *testing.T) {
	db := newTestDB(t)
	company, editor := seedCompanyUser(t, db, models.RoleEditor)
	approver := models.User{Email: "approver@acme.test", Name: "Approver"}
	require.NoError(t, db.Create(&approver).Error)
	require.NoError(t, db.Create(&models.CompanyMember{
		CompanyID: company.ID, UserID: approver.ID, Role: models.RoleApprover,
	}).Error)

	plan, err := GetOrCreatePlan(db, company.ID, editor.ID)
	require.NoError(t, err)

	v1, err := CreateVersion(db, plan.ID, editor.ID, "initial draft", map[string]interface{}{
		"overview": map[string]interface{}{"purpose": "keep trading"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v1.VersionNumber)

	v2, err := CreateVersion(db, plan.ID, editor.ID, "added risks", map[string]interface{}{
		"overview": map[string]interface{}{"purpose": "keep trading"},
		"risks":    map[string]interface{}{"flood": "severe"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, v2.VersionNumber)

	reviews, err := SubmitForReview(db, plan.ID, editor.ID, models.RoleEditor, []uint{approver.ID}, "")
	require.NoError(t, err)
	require.Len(t, reviews, 1)

	_, err = ApproveReview(db, reviews[0].ID, approver.ID, models.RoleApprover, "looks good")
	require.NoError(t, err)

	var reloaded models.BCPlan
	require.NoError(t, db.First(&reloaded, plan.ID).Error)
	assert.Equal(t, models.PlanStatusApproved, reloaded.Status)

	_, err = Transition(db, plan.ID, models.PlanStatusArchived, editor.ID, models.RoleAdmin)
	require.NoError(t, err)

	wantActions := []string{
		audit.ActionVersionCreated,
		audit.ActionReviewSubmitted,
		audit.ActionApproved,
		audit.ActionStatusChanged,
	}
	for _, action := range wantActions {
		var count int64
		require.NoError(t, db.Model(&models.BCAuditEntry{}).
			Where("plan_id = ? AND action = ?", plan.ID, action).Count(&count).Error)
		assert.NotZero(t, count, "expected audit action %s", action)
	}
}
