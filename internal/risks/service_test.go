package risks

import (
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

func seedPlan(t *testing.T, db *gorm.DB) *models.BCPlan {
	t.Helper()
	company := models.Company{Name: "Acme Pty Ltd"}
	require.NoError(t, db.Create(&company).Error)
	plan := models.BCPlan{CompanyID: company.ID, Title: "Acme BCP", Status: models.PlanStatusDraft}
	require.NoError(t, db.Create(&plan).Error)
	return &plan
}

func TestCreateRiskDerivesColumns(t *testing.T) {
	db := newTestDB(t)
	plan := seedPlan(t, db)

	risk, err := CreateRisk(db, plan.ID, "Flood damages server room", 3, 4, "raise racks", "fail over to DR site")
	require.NoError(t, err)
	assert.Equal(t, 12, risk.Rating)
	assert.Equal(t, SeverityHigh, risk.Severity)

	_, err = CreateRisk(db, plan.ID, "bad scores", 0, 4, "", "")
	require.Error(t, err)
	appErr, _ := apperrors.As(err)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
}

func TestUpdateRiskRecomputes(t *testing.T) {
	db := newTestDB(t)
	plan := seedPlan(t, db)

	risk, err := CreateRisk(db, plan.ID, "Power outage", 2, 2, "", "")
	require.NoError(t, err)
	assert.Equal(t, SeverityModerate, risk.Severity)

	likelihood := 4
	impact := 4
	updated, err := UpdateRisk(db, risk.ID, nil, &likelihood, &impact, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 16, updated.Rating)
	assert.Equal(t, SeveritySevere, updated.Severity)

	bad := 5
	_, err = UpdateRisk(db, risk.ID, nil, &bad, nil, nil, nil)
	require.Error(t, err)
}

func TestListRisksFilters(t *testing.T) {
	db := newTestDB(t)
	plan := seedPlan(t, db)

	mustCreate := func(desc string, l, i int) {
		_, err := CreateRisk(db, plan.ID, desc, l, i, "", "")
		require.NoError(t, err)
	}
	mustCreate("cyber attack", 4, 4)   // 16 Severe
	mustCreate("key staff loss", 3, 3) // 9 High
	mustCreate("minor outage", 1, 2)   // 2 Low

	all, err := ListRisks(db, plan.ID, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "cyber attack", all[0].Description, "highest rating first")

	severe, err := ListRisks(db, plan.ID, Filter{Severity: SeveritySevere})
	require.NoError(t, err)
	require.Len(t, severe, 1)
	assert.Equal(t, "cyber attack", severe[0].Description)

	cell, err := ListRisks(db, plan.ID, Filter{HeatmapCell: "3,3"})
	require.NoError(t, err)
	require.Len(t, cell, 1)
	assert.Equal(t, "key staff loss", cell[0].Description)

	// Unparseable filters mean no filter.
	loose, err := ListRisks(db, plan.ID, Filter{Severity: "bogus", HeatmapCell: "9,9"})
	require.NoError(t, err)
	assert.Len(t, loose, 3)
}

func TestHeatmapAggregation(t *testing.T) {
	db := newTestDB(t)
	plan := seedPlan(t, db)

	for _, scores := range [][2]int{{4, 4}, {4, 4}, {3, 3}, {1, 2}} {
		_, err := CreateRisk(db, plan.ID, "risk", scores[0], scores[1], "", "")
		require.NoError(t, err)
	}

	hm, err := GetHeatmap(db, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"4,4": 2, "3,3": 1, "1,2": 1}, hm.Cells)
	assert.Equal(t, Legend, hm.Legend)

	for _, cell := range hm.Grid {
		if cell.Likelihood == 4 && cell.Impact == 4 {
			assert.Equal(t, 2, cell.Count)
			assert.Equal(t, 16, cell.Rating)
			assert.Equal(t, SeveritySevere, cell.Severity)
		}
	}
}
