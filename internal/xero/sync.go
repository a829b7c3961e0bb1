package xero

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portal-backend/internal/journal"
	"portal-backend/internal/metrics"
	"portal-backend/internal/models"
)

// Sync statuses.
const (
	SyncStatusSucceeded = "succeeded"
	SyncStatusFailed    = "failed"
	SyncStatusError     = "error"
	SyncStatusSkipped   = "skipped"
)

// SyncResult is the structured outcome of one sync_company run. Upstream
// failures are reported here and journaled, never raised.
type SyncResult struct {
	CompanyID           uint        `json:"company_id"`
	Status              string      `json:"status"`
	Reason              string      `json:"reason,omitempty"`
	InvoiceNumber       string      `json:"invoice_number,omitempty"`
	JournalEventID      string      `json:"journal_event_id,omitempty"`
	TimeEntriesExpected int         `json:"time_entries_expected"`
	TimeEntriesRecorded int         `json:"time_entries_recorded"`
	Diagnostics         Diagnostics `json:"diagnostics"`
	Warnings            []string    `json:"warnings,omitempty"`
}

// SyncCompany builds exactly one invoice for the company and POSTs it to
// Xero, committing local side effects only after a 2xx. The double-billing
// guard is the BilledTimeEntry ledger, written after the upstream success.
func SyncCompany(ctx context.Context, db *gorm.DB, companyID uint) *SyncResult {
	started := time.Now()
	result := doSyncCompany(ctx, db, companyID)
	metrics.XeroSyncs.WithLabelValues(result.Status).Inc()
	metrics.XeroSyncDuration.Observe(time.Since(started).Seconds())
	return result
}

func doSyncCompany(ctx context.Context, db *gorm.DB, companyID uint) *SyncResult {
	result := &SyncResult{CompanyID: companyID, Status: SyncStatusSkipped}
	log := logrus.WithField("company_id", companyID)

	var company models.Company
	if err := db.First(&company, companyID).Error; err != nil {
		result.Reason = ReasonCompanyNotFound
		result.Diagnostics.TicketsSkippedReason = ReasonCompanyNotFound
		return result
	}

	settings, err := LoadSettings(ctx, db, companyID)
	if err != nil {
		result.Status = SyncStatusError
		result.Reason = err.Error()
		return result
	}
	if reason := ValidationReason(settings); reason != "" {
		result.Reason = reason
		result.Diagnostics.TicketsSkippedReason = reason
		return result
	}

	// First pass with no fetched rates decides emptiness without touching
	// the network: a skipped run must not exchange tokens or journal.
	build, err := BuildInvoice(db, &company, settings, nil)
	if err != nil {
		result.Status = SyncStatusError
		result.Reason = err.Error()
		return result
	}
	result.Diagnostics = build.Diagnostics
	result.Warnings = build.Warnings
	result.TimeEntriesExpected = len(build.ReplyLines)

	if len(build.Invoice.LineItems) == 0 {
		result.Reason = ReasonNothingToInvoice
		if result.Diagnostics.TicketsSkippedReason == "" {
			result.Diagnostics.TicketsSkippedReason = ReasonNoUnbilledTickets
		}
		return result
	}

	client := NewClient(settings)
	token, err := client.FetchAccessToken(ctx)
	if err != nil {
		log.WithError(err).Error("xero token exchange failed")
		result.Status = SyncStatusError
		result.Reason = err.Error()
		return result
	}

	// Rebuild with external item rates when the lookup yields any: rate
	// precedence is local override, then fetched, then default.
	if itemRates := client.FetchItemRates(ctx, token, candidateItemCodes(db, companyID)); len(itemRates) > 0 {
		build, err = BuildInvoice(db, &company, settings, itemRates)
		if err != nil {
			result.Status = SyncStatusError
			result.Reason = err.Error()
			return result
		}
		result.Diagnostics = build.Diagnostics
		result.Warnings = build.Warnings
		result.TimeEntriesExpected = len(build.ReplyLines)
	}

	request, err := client.BuildInvoiceRequest(token, build.Invoice)
	if err != nil {
		result.Status = SyncStatusError
		result.Reason = err.Error()
		return result
	}

	// The journal row is created before the wire call so even a crashed
	// process leaves a record of what was about to be sent.
	event, err := journal.CreateManualEvent(db, "xero.invoice", request.URL,
		request.Body, request.Headers, 1, 0)
	if err != nil {
		result.Status = SyncStatusError
		result.Reason = err.Error()
		return result
	}
	result.JournalEventID = event.ID

	response, err := client.PostInvoice(ctx, request)
	if err != nil {
		log.WithError(err).Error("xero invoice POST failed")
		if recordErr := journal.RecordManualFailure(db, event.ID, models.CallStatusError, journal.Attempt{
			Number:         1,
			ErrorMessage:   err.Error(),
			RequestHeaders: request.Headers,
			RequestBody:    request.Body,
		}); recordErr != nil {
			log.WithError(recordErr).Error("failed to journal transport error")
		}
		result.Status = SyncStatusError
		result.Reason = err.Error()
		return result
	}

	attempt := journal.Attempt{
		Number:          1,
		ResponseStatus:  response.StatusCode,
		ResponseBody:    response.Body,
		ResponseHeaders: response.Headers,
		RequestHeaders:  request.Headers,
		RequestBody:     request.Body,
	}

	if !response.OK() {
		if recordErr := journal.RecordManualFailure(db, event.ID, models.CallStatusFailed, attempt); recordErr != nil {
			log.WithError(recordErr).Error("failed to journal upstream failure")
		}
		result.Status = SyncStatusFailed
		result.Reason = "Xero returned " + describeStatus(response.StatusCode)
		return result
	}

	if err := journal.RecordManualSuccess(db, event.ID, attempt); err != nil {
		log.WithError(err).Error("failed to journal success")
	}

	invoiceNumber := response.InvoiceNumber()
	result.InvoiceNumber = invoiceNumber
	result.Status = SyncStatusSucceeded
	result.TimeEntriesRecorded = commitLocalSideEffects(db, log, build, invoiceNumber)
	return result
}

// commitLocalSideEffects writes the idempotency ledger and stamps invoiced
// tickets. Runs only after a 2xx; failures are per-reply and logged, never
// rolled back against the invoice.
func commitLocalSideEffects(db *gorm.DB, log *logrus.Entry, build *BuildResult, invoiceNumber string) int {
	now := time.Now().UTC()
	recorded := 0

	for _, line := range build.ReplyLines {
		entry := models.BilledTimeEntry{
			ReplyID:       line.ReplyID,
			TicketID:      line.TicketID,
			InvoiceNumber: invoiceNumber,
			Minutes:       line.Minutes,
			LabourTypeID:  line.LabourTypeID,
			BilledAt:      now,
		}
		if err := db.Create(&entry).Error; err != nil {
			log.WithError(err).WithField("reply_id", line.ReplyID).
				Error("failed to record billed time entry")
			continue
		}
		recorded++
	}

	for _, ticketID := range build.TicketIDs {
		err := db.Model(&models.Ticket{}).Where("id = ?", ticketID).
			Updates(map[string]interface{}{
				"xero_invoice_number": invoiceNumber,
				"billed_at":           now,
				"status":              "closed",
				"closed_at":           now,
			}).Error
		if err != nil {
			log.WithError(err).WithField("ticket_id", ticketID).
				Error("failed to stamp invoiced ticket")
		}
	}
	return recorded
}

// candidateItemCodes collects the labour-type and recurring-item codes the
// rate lookup should cover.
func candidateItemCodes(db *gorm.DB, companyID uint) []string {
	seen := map[string]bool{}
	var codes []string

	var labourCodes []string
	if err := db.Model(&models.LabourType{}).Where("code <> ''").
		Pluck("code", &labourCodes).Error; err == nil {
		for _, code := range labourCodes {
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
	}

	var itemCodes []string
	if err := db.Model(&models.RecurringInvoiceItem{}).
		Where("company_id = ? AND active = ? AND item_code <> ''", companyID, true).
		Pluck("item_code", &itemCodes).Error; err == nil {
		for _, code := range itemCodes {
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
	}
	return codes
}

// SyncAll runs the pipeline for every company with settings rows, serially
// so per-company runs never interleave.
func SyncAll(ctx context.Context, db *gorm.DB) []*SyncResult {
	var companyIDs []uint
	if err := db.Model(&models.XeroSettings{}).Pluck("company_id", &companyIDs).Error; err != nil {
		logrus.WithError(err).Error("failed to list companies for sync")
		return nil
	}

	results := make([]*SyncResult, 0, len(companyIDs))
	for _, companyID := range companyIDs {
		results = append(results, SyncCompany(ctx, db, companyID))
	}
	return results
}
