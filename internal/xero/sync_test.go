package xero

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"portal-backend/internal/journal"
	"portal-backend/internal/models"
)

// fakeXero stands in for the token, items and invoices endpoints.
type fakeXero struct {
	t *testing.T

	invoiceStatus int
	invoiceBody   string
	itemsBody     string

	tokenCalls   int
	invoiceCalls int
	lastInvoice  map[string]interface{}
}

func (f *fakeXero) install(t *testing.T) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/connect/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","refresh_token":"next"}`))
	})
	mux.HandleFunc("/Items", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		body := f.itemsBody
		if body == "" {
			body = `{"Items":[]}`
		}
		_, _ = w.Write([]byte(body))
	})
	mux.HandleFunc("/Invoices", func(w http.ResponseWriter, r *http.Request) {
		f.invoiceCalls++
		require.Equal(f.t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(f.t, "tenant", r.Header.Get("xero-tenant-id"))

		data, _ := io.ReadAll(r.Body)
		var payload struct {
			Invoices []map[string]interface{} `json:"Invoices"`
		}
		require.NoError(f.t, json.Unmarshal(data, &payload))
		require.Len(f.t, payload.Invoices, 1)
		f.lastInvoice = payload.Invoices[0]

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(f.invoiceStatus)
		_, _ = w.Write([]byte(f.invoiceBody))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	prevToken, prevInvoices, prevItems := defaultTokenURL, defaultInvoicesURL, defaultItemsURL
	defaultTokenURL = server.URL + "/connect/token"
	defaultInvoicesURL = server.URL + "/Invoices"
	defaultItemsURL = server.URL + "/Items"
	t.Cleanup(func() {
		defaultTokenURL, defaultInvoicesURL, defaultItemsURL = prevToken, prevInvoices, prevItems
	})
}

func seedSyncFixture(t *testing.T, db *gorm.DB) *models.Company {
	t.Helper()
	company, _ := seedBillingCompany(t, db)
	InvalidateSettings(context.Background(), company.ID)
	return company
}

func TestSyncCompanySuccess(t *testing.T) {
	db := newTestDB(t)
	company := seedSyncFixture(t, db)

	remote := models.LabourType{Code: "REMOTE", Name: "Remote Support"}
	require.NoError(t, db.Create(&remote).Error)
	ticket := seedTicketWithTime(t, db, company.ID, "resolved", 60, &remote)

	require.NoError(t, db.Create(&models.RecurringInvoiceItem{
		CompanyID: company.ID, ItemCode: "MANAGED", Description: "Managed services",
		QtyExpression: "7", Active: true,
	}).Error)

	fake := &fakeXero{
		t:             t,
		invoiceStatus: http.StatusOK,
		invoiceBody:   `{"Invoices":[{"InvoiceNumber":"INV-1"}]}`,
		itemsBody:     `{"Items":[{"Code":"MANAGED","SalesDetails":{"UnitPrice":150.0}}]}`,
	}
	fake.install(t)

	result := SyncCompany(context.Background(), db, company.ID)
	require.Equal(t, SyncStatusSucceeded, result.Status, "reason: %s", result.Reason)
	assert.Equal(t, "INV-1", result.InvoiceNumber)
	assert.Equal(t, 1, result.TimeEntriesExpected)
	assert.Equal(t, 1, result.TimeEntriesRecorded)
	assert.Equal(t, 1, fake.tokenCalls)
	assert.Equal(t, 1, fake.invoiceCalls)

	lines, _ := fake.lastInvoice["LineItems"].([]interface{})
	require.Len(t, lines, 2)
	labour := lines[0].(map[string]interface{})
	assert.InDelta(t, 1.0, labour["Quantity"].(float64), 0.001)
	assert.InDelta(t, 95.0, labour["UnitAmount"].(float64), 0.001)
	managed := lines[1].(map[string]interface{})
	assert.InDelta(t, 7.0, managed["Quantity"].(float64), 0.001)
	assert.InDelta(t, 150.0, managed["UnitAmount"].(float64), 0.001, "rate enriched from the items lookup")

	// Ledger row written, ticket stamped and closed.
	var entry models.BilledTimeEntry
	require.NoError(t, db.Where("ticket_id = ?", ticket.ID).First(&entry).Error)
	assert.Equal(t, "INV-1", entry.InvoiceNumber)
	assert.Equal(t, 60, entry.Minutes)

	var stamped models.Ticket
	require.NoError(t, db.First(&stamped, ticket.ID).Error)
	assert.Equal(t, "INV-1", stamped.XeroInvoiceNumber)
	assert.Equal(t, "closed", stamped.Status)
	require.NotNil(t, stamped.BilledAt)

	// Journal records the successful call.
	require.NotEmpty(t, result.JournalEventID)
	event, err := journal.GetEvent(db, result.JournalEventID)
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusSucceeded, event.Status)
	require.Len(t, event.Attempts, 1)
	assert.Equal(t, 200, event.Attempts[0].ResponseStatus)

	// A second run has nothing left to bill.
	second := SyncCompany(context.Background(), db, company.ID)
	assert.Equal(t, SyncStatusSkipped, second.Status)
}

func TestSyncCompanyUpstreamRejection(t *testing.T) {
	db := newTestDB(t)
	company := seedSyncFixture(t, db)
	ticket := seedTicketWithTime(t, db, company.ID, "resolved", 45, nil)

	fake := &fakeXero{
		t:             t,
		invoiceStatus: http.StatusBadRequest,
		invoiceBody:   `{"Message":"A validation exception occurred"}`,
	}
	fake.install(t)

	result := SyncCompany(context.Background(), db, company.ID)
	assert.Equal(t, SyncStatusFailed, result.Status)
	assert.Equal(t, "Xero returned 400 Bad Request", result.Reason)
	assert.Equal(t, 0, result.TimeEntriesRecorded)

	// No local side effects on a rejected invoice.
	var ledger int64
	require.NoError(t, db.Model(&models.BilledTimeEntry{}).Count(&ledger).Error)
	assert.EqualValues(t, 0, ledger)

	var untouched models.Ticket
	require.NoError(t, db.First(&untouched, ticket.ID).Error)
	assert.Equal(t, "resolved", untouched.Status)
	assert.Empty(t, untouched.XeroInvoiceNumber)

	// The journal keeps the rejected request and response for replay.
	event, err := journal.GetEvent(db, result.JournalEventID)
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusFailed, event.Status)
	require.Len(t, event.Attempts, 1)
	assert.Equal(t, 400, event.Attempts[0].ResponseStatus)
	assert.Contains(t, event.Attempts[0].ResponseBody, "validation exception")
	assert.Contains(t, event.Attempts[0].RequestBody, `"Invoices"`)

	// Retrying later re-bills the same time exactly once.
	fake.invoiceStatus = http.StatusOK
	fake.invoiceBody = `{"Invoices":[{"InvoiceNumber":"INV-2"}]}`
	retry := SyncCompany(context.Background(), db, company.ID)
	require.Equal(t, SyncStatusSucceeded, retry.Status)

	require.NoError(t, db.Model(&models.BilledTimeEntry{}).Count(&ledger).Error)
	assert.EqualValues(t, 1, ledger)
}

func TestSyncCompanySkipsWithoutNetwork(t *testing.T) {
	db := newTestDB(t)

	t.Run("unknown company", func(t *testing.T) {
		result := SyncCompany(context.Background(), db, 9999)
		assert.Equal(t, SyncStatusSkipped, result.Status)
		assert.Equal(t, ReasonCompanyNotFound, result.Reason)
	})

	t.Run("unconfigured module", func(t *testing.T) {
		company := models.Company{Name: "Fresh Co"}
		require.NoError(t, db.Create(&company).Error)
		InvalidateSettings(context.Background(), company.ID)

		result := SyncCompany(context.Background(), db, company.ID)
		assert.Equal(t, SyncStatusSkipped, result.Status)
		assert.Equal(t, ReasonNotConfigured, result.Reason)
	})

	t.Run("nothing to invoice", func(t *testing.T) {
		company := seedSyncFixture(t, db)

		// No fake endpoints installed: an emptiness skip must not
		// exchange tokens or journal anything.
		result := SyncCompany(context.Background(), db, company.ID)
		assert.Equal(t, SyncStatusSkipped, result.Status)
		assert.Equal(t, ReasonNothingToInvoice, result.Reason)
		assert.Equal(t, ReasonNoUnbilledTickets, result.Diagnostics.TicketsSkippedReason)
		assert.Empty(t, result.JournalEventID)

		var events int64
		require.NoError(t, db.Model(&models.CallJournalEvent{}).Count(&events).Error)
		assert.EqualValues(t, 0, events)
	})
}

func TestSyncCompanyTransportError(t *testing.T) {
	db := newTestDB(t)
	company := seedSyncFixture(t, db)
	seedTicketWithTime(t, db, company.ID, "resolved", 30, nil)

	// Token endpoint exists, invoice endpoint is a closed server.
	fake := &fakeXero{t: t, invoiceStatus: http.StatusOK, invoiceBody: "{}"}
	fake.install(t)
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead.Close()
	prev := defaultInvoicesURL
	defaultInvoicesURL = dead.URL + "/Invoices"
	t.Cleanup(func() { defaultInvoicesURL = prev })

	result := SyncCompany(context.Background(), db, company.ID)
	assert.Equal(t, SyncStatusError, result.Status)
	require.NotEmpty(t, result.JournalEventID)

	event, err := journal.GetEvent(db, result.JournalEventID)
	require.NoError(t, err)
	assert.Equal(t, models.CallStatusError, event.Status)
	require.Len(t, event.Attempts, 1)
	assert.NotEmpty(t, event.Attempts[0].ErrorMessage)

	var ledger int64
	require.NoError(t, db.Model(&models.BilledTimeEntry{}).Count(&ledger).Error)
	assert.EqualValues(t, 0, ledger)
}

func TestSyncAllCoversEveryConfiguredCompany(t *testing.T) {
	db := newTestDB(t)
	first := seedSyncFixture(t, db)

	second := models.Company{Name: "Beta Pty Ltd"}
	require.NoError(t, db.Create(&second).Error)
	require.NoError(t, db.Create(&models.XeroSettings{CompanyID: second.ID}).Error)
	InvalidateSettings(context.Background(), second.ID)

	results := SyncAll(context.Background(), db)
	require.Len(t, results, 2)

	byCompany := map[uint]*SyncResult{}
	for _, result := range results {
		byCompany[result.CompanyID] = result
	}
	assert.Equal(t, ReasonNothingToInvoice, byCompany[first.ID].Reason)
	assert.Equal(t, ReasonNotConfigured, byCompany[second.ID].Reason)
}
