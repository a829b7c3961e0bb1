package xero

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"portal-backend/internal/models"
)

// LineItem is one Xero invoice line in wire form.
type LineItem struct {
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	AccountCode string  `json:"AccountCode,omitempty"`
	TaxType     string  `json:"TaxType,omitempty"`
	ItemCode    string  `json:"ItemCode,omitempty"`
}

// Contact identifies the invoiced party by name.
type Contact struct {
	Name string `json:"Name"`
}

// Invoice is the wire form POSTed inside {"Invoices":[...]}.
type Invoice struct {
	Type            string     `json:"Type"`
	Contact         Contact    `json:"Contact"`
	LineItems       []LineItem `json:"LineItems"`
	Status          string     `json:"Status"`
	SentToContact   bool       `json:"SentToContact,omitempty"`
	LineAmountTypes string     `json:"LineAmountTypes"`
	Reference       string     `json:"Reference,omitempty"`
}

// ReplyLine maps one invoiced reply to the ledger row written after a
// successful POST.
type ReplyLine struct {
	ReplyID      uint
	TicketID     uint
	Minutes      int
	LabourTypeID *uint
}

// Diagnostics always rides back on a sync result.
type Diagnostics struct {
	BillableTicketsFound       int      `json:"billable_tickets_found"`
	TicketLineItemsCreated     int      `json:"ticket_line_items_created"`
	LabourCodesExpected        []string `json:"labour_codes_expected"`
	LabourCodesFoundInXero     []string `json:"labour_codes_found_in_xero"`
	LabourCodesMissingFromXero []string `json:"labour_codes_missing_from_xero"`
	TicketsSkippedReason       string   `json:"tickets_skipped_reason,omitempty"`
}

// BuildResult is the assembled payload plus everything the commit phase
// needs: the replies to ledger, the tickets to stamp and the diagnostics.
type BuildResult struct {
	Invoice     *Invoice
	ReplyLines  []ReplyLine
	TicketIDs   []uint
	Diagnostics Diagnostics
	Warnings    []string
}

// labourBucket accumulates minutes per (labour_code, labour_name) within
// one ticket. The zero key is the ungrouped bucket.
type labourKey struct {
	code string
	name string
}

type labourBucket struct {
	minutes      int
	suffix       string
	rate         string // local override, empty = unset
	labourTypeID *uint
}

// BuildInvoice assembles exactly one invoice for the company: unbilled
// billable ticket time grouped by labour type, plus active recurring
// items. No writes happen here.
func BuildInvoice(db *gorm.DB, company *models.Company, settings *models.XeroSettings, itemRates map[string]float64) (*BuildResult, error) {
	result := &BuildResult{Invoice: &Invoice{
		Type:            "ACCREC",
		Contact:         Contact{Name: company.Name},
		Status:          "DRAFT",
		LineAmountTypes: lineAmountType(settings),
	}}
	if settings.AutoSend {
		result.Invoice.Status = "AUTHORISED"
		result.Invoice.SentToContact = true
	}

	defaultRate, err := decimal.NewFromString(strings.TrimSpace(settings.DefaultHourlyRate))
	if err != nil {
		return nil, fmt.Errorf("default hourly rate %q: %w", settings.DefaultHourlyRate, err)
	}

	statuses := BillableStatuses(settings)
	var tickets []models.Ticket
	if err := db.Where("company_id = ? AND LOWER(status) IN ?", company.ID, statuses).
		Order("id asc").Find(&tickets).Error; err != nil {
		return nil, err
	}

	expectedCodes := map[string]bool{}
	var invoicedTicketIDs []uint

	for _, ticket := range tickets {
		var replies []models.TicketReply
		err := db.Preload("LabourType").
			Where("ticket_id = ? AND id NOT IN (?)", ticket.ID,
				db.Model(&models.BilledTimeEntry{}).Select("reply_id")).
			Order("id asc").
			Find(&replies).Error
		if err != nil {
			return nil, err
		}

		buckets := map[labourKey]*labourBucket{}
		var order []labourKey
		ticketHasTime := false

		for _, reply := range replies {
			if !reply.IsBillable || reply.MinutesSpent <= 0 {
				continue
			}
			ticketHasTime = true

			key := labourKey{}
			bucket := &labourBucket{}
			if reply.LabourType != nil {
				key = labourKey{code: reply.LabourType.Code, name: reply.LabourType.Name}
				bucket.suffix = reply.LabourType.Suffix
				bucket.rate = strings.TrimSpace(reply.LabourType.HourlyRate)
				bucket.labourTypeID = reply.LabourTypeID
			}
			if existing, ok := buckets[key]; ok {
				bucket = existing
			} else {
				buckets[key] = bucket
				order = append(order, key)
			}
			bucket.minutes += reply.MinutesSpent

			result.ReplyLines = append(result.ReplyLines, ReplyLine{
				ReplyID:      reply.ID,
				TicketID:     ticket.ID,
				Minutes:      reply.MinutesSpent,
				LabourTypeID: reply.LabourTypeID,
			})
		}

		if !ticketHasTime {
			continue
		}
		result.Diagnostics.BillableTicketsFound++
		invoicedTicketIDs = append(invoicedTicketIDs, ticket.ID)

		for _, key := range order {
			bucket := buckets[key]
			quantity := decimal.NewFromInt(int64(bucket.minutes)).
				Div(decimal.NewFromInt(60)).Round(2)

			rate := defaultRate
			switch {
			case bucket.rate != "":
				parsed, err := decimal.NewFromString(bucket.rate)
				if err != nil {
					result.Warnings = append(result.Warnings,
						fmt.Sprintf("labour type %s: unparseable rate %q, using default", key.code, bucket.rate))
				} else {
					rate = parsed
				}
			case key.code != "":
				if fetched, ok := itemRates[key.code]; ok {
					rate = decimal.NewFromFloat(fetched)
				}
			}

			line := LineItem{
				Description: lineDescription(settings, &ticket, key, bucket),
				Quantity:    quantity.InexactFloat64(),
				UnitAmount:  rate.InexactFloat64(),
				AccountCode: settings.AccountCode,
				TaxType:     settings.TaxType,
				ItemCode:    key.code,
			}
			result.Invoice.LineItems = append(result.Invoice.LineItems, line)
			result.Diagnostics.TicketLineItemsCreated++
			if key.code != "" {
				expectedCodes[key.code] = true
			}
		}
	}

	appendRecurringItems(db, result, company, settings, itemRates)

	result.Diagnostics.LabourCodesExpected = sortedKeys(expectedCodes)
	for _, code := range result.Diagnostics.LabourCodesExpected {
		if _, ok := itemRates[code]; ok {
			result.Diagnostics.LabourCodesFoundInXero = append(result.Diagnostics.LabourCodesFoundInXero, code)
		} else {
			result.Diagnostics.LabourCodesMissingFromXero = append(result.Diagnostics.LabourCodesMissingFromXero, code)
		}
	}

	result.Invoice.Reference = buildReference(settings.ReferencePrefix, invoicedTicketIDs)
	result.TicketIDs = invoicedTicketIDs
	return result, nil
}

func lineAmountType(settings *models.XeroSettings) string {
	if settings.LineAmountType == "Inclusive" {
		return "Inclusive"
	}
	return "Exclusive"
}

func lineDescription(settings *models.XeroSettings, ticket *models.Ticket, key labourKey, bucket *labourBucket) string {
	hours := decimal.NewFromInt(int64(bucket.minutes)).
		Div(decimal.NewFromInt(60)).Round(2)
	fields := map[string]string{
		"ticket_id":      strconv.FormatUint(uint64(ticket.ID), 10),
		"ticket_subject": ticket.Subject,
		"ticket_status":  ticket.Status,
		"labour_name":    key.name,
		"labour_code":    key.code,
		"labour_minutes": strconv.Itoa(bucket.minutes),
		"labour_hours":   hours.String(),
		"labour_suffix":  bucket.suffix,
	}

	description := strings.TrimSpace(FormatMap(settings.LineItemTemplate, fields))
	if description == "" {
		description = fmt.Sprintf("Ticket %d: %s", ticket.ID, ticket.Subject)
		if key.name != "" {
			description += " · " + key.name
		}
	}
	return description
}

func appendRecurringItems(db *gorm.DB, result *BuildResult, company *models.Company, settings *models.XeroSettings, itemRates map[string]float64) {
	var items []models.RecurringInvoiceItem
	// Errors on this read degrade to an invoice without recurring lines.
	if err := db.Where("company_id = ? AND active = ?", company.ID, true).
		Order("id asc").Find(&items).Error; err != nil {
		result.Warnings = append(result.Warnings, "failed to load recurring invoice items: "+err.Error())
		return
	}

	for _, item := range items {
		qty, warning := QuantityFromExpression(item.QtyExpression, company)
		if warning != "" {
			result.Warnings = append(result.Warnings, warning)
		}

		unit := decimal.Zero
		if price := strings.TrimSpace(item.UnitPrice); price != "" {
			parsed, err := decimal.NewFromString(price)
			if err != nil {
				result.Warnings = append(result.Warnings,
					fmt.Sprintf("recurring item %s: unparseable unit price %q", item.ItemCode, price))
			} else {
				unit = parsed
			}
		} else if fetched, ok := itemRates[item.ItemCode]; ok {
			unit = decimal.NewFromFloat(fetched)
		}

		accountCode := item.AccountCode
		if accountCode == "" {
			accountCode = settings.AccountCode
		}
		result.Invoice.LineItems = append(result.Invoice.LineItems, LineItem{
			Description: item.Description,
			Quantity:    qty.InexactFloat64(),
			UnitAmount:  unit.InexactFloat64(),
			AccountCode: accountCode,
			TaxType:     settings.TaxType,
			ItemCode:    item.ItemCode,
		})
	}
}

// sortedKeys flattens a set into sorted order for stable diagnostics.
func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for key := range set {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// buildReference renders "{prefix} — Tickets n1, n2" with empty segments
// omitted.
func buildReference(prefix string, ticketIDs []uint) string {
	var segments []string
	if strings.TrimSpace(prefix) != "" {
		segments = append(segments, strings.TrimSpace(prefix))
	}
	if len(ticketIDs) > 0 {
		ids := make([]string, len(ticketIDs))
		for i, id := range ticketIDs {
			ids[i] = strconv.FormatUint(uint64(id), 10)
		}
		segments = append(segments, "Tickets "+strings.Join(ids, ", "))
	}
	return strings.Join(segments, " — ")
}

// QuantityFromExpression evaluates a recurring item's qty_expression: a
// decimal literal, or a format-map over the company context whose result
// is then parsed. Parse failure yields 1.0 with a warning.
func QuantityFromExpression(expr string, company *models.Company) (decimal.Decimal, string) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return decimal.NewFromInt(1), ""
	}
	if qty, err := decimal.NewFromString(expr); err == nil {
		return qty, ""
	}

	context := map[string]string{
		"active_agents":       strconv.Itoa(company.ActiveAgents),
		"active_workstations": strconv.Itoa(company.ActiveWorkstations),
		"active_servers":      strconv.Itoa(company.ActiveServers),
		"active_users":        strconv.Itoa(company.ActiveUsers),
		"total_assets":        strconv.Itoa(company.TotalAssets()),
		"company_name":        company.Name,
		"company_id":          strconv.FormatUint(uint64(company.ID), 10),
	}
	rendered := strings.TrimSpace(FormatMap(expr, context))
	qty, err := decimal.NewFromString(rendered)
	if err != nil {
		warning := fmt.Sprintf("qty_expression %q rendered %q: not a decimal, using 1.0", expr, rendered)
		logrus.WithField("company_id", company.ID).Warn(warning)
		return decimal.NewFromInt(1), warning
	}
	return qty, ""
}
