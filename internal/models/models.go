package models

import (
	"time"
)

// Company-level roles, ordered by privilege. RoleRank resolves ordering for
// "editor or better" style checks.
const (
	RoleViewer     = "viewer"
	RoleEditor     = "editor"
	RoleApprover   = "approver"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

var roleRanks = map[string]int{
	RoleViewer:     1,
	RoleEditor:     2,
	RoleApprover:   3,
	RoleAdmin:      4,
	RoleSuperAdmin: 5,
}

// RoleRank returns the privilege rank of a role name, 0 for unknown roles.
func RoleRank(role string) int {
	return roleRanks[role]
}

type User struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	Email      string     `json:"email" gorm:"uniqueIndex"`
	Password   string     `json:"-"`
	Name       string     `json:"name"`
	Initials   string     `json:"initials" gorm:"size:8"`
	Role       string     `json:"role" gorm:"default:'user'"` // user or superadmin (global)
	Active     bool       `json:"active" gorm:"default:true"`
	LastLogin  *time.Time `json:"last_login"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsSuperAdmin reports whether the user holds the global superadmin role.
func (u User) IsSuperAdmin() bool {
	return u.Role == RoleSuperAdmin
}

// Company is the tenant scoping entity. The asset counters feed the
// recurring-invoice quantity expression context.
type Company struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	Name               string    `json:"name"`
	ActiveAgents       int       `json:"active_agents" gorm:"default:0"`
	ActiveWorkstations int       `json:"active_workstations" gorm:"default:0"`
	ActiveServers      int       `json:"active_servers" gorm:"default:0"`
	ActiveUsers        int       `json:"active_users" gorm:"default:0"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TotalAssets is the sum of the per-kind asset counters.
func (c Company) TotalAssets() int {
	return c.ActiveAgents + c.ActiveWorkstations + c.ActiveServers + c.ActiveUsers
}

type CompanyMember struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CompanyID uint      `json:"company_id" gorm:"index;uniqueIndex:idx_member_company_user"`
	Company   Company   `json:"-" gorm:"foreignKey:CompanyID"`
	UserID    uint      `json:"user_id" gorm:"index;uniqueIndex:idx_member_company_user"`
	User      User      `json:"user" gorm:"foreignKey:UserID"`
	Role      string    `json:"role" gorm:"default:'viewer'"` // viewer, editor, approver, admin
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ticket is a support ticket; the Xero pipeline reads tickets in billable
// statuses and stamps them on successful invoicing.
type Ticket struct {
	ID                uint       `json:"id" gorm:"primaryKey"`
	CompanyID         uint       `json:"company_id" gorm:"index"`
	Company           Company    `json:"-" gorm:"foreignKey:CompanyID"`
	Subject           string     `json:"subject"`
	Status            string     `json:"status" gorm:"index;default:'open'"`
	XeroInvoiceNumber string     `json:"xero_invoice_number"`
	BilledAt          *time.Time `json:"billed_at"`
	ClosedAt          *time.Time `json:"closed_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type TicketReply struct {
	ID           uint        `json:"id" gorm:"primaryKey"`
	TicketID     uint        `json:"ticket_id" gorm:"index"`
	Ticket       Ticket      `json:"-" gorm:"foreignKey:TicketID"`
	AuthorID     *uint       `json:"author_id"`
	Body         string      `json:"body" gorm:"type:text"`
	MinutesSpent int         `json:"minutes_spent" gorm:"default:0"`
	IsBillable   bool        `json:"is_billable" gorm:"default:true"`
	LabourTypeID *uint       `json:"labour_type_id" gorm:"index"`
	LabourType   *LabourType `json:"labour_type,omitempty" gorm:"foreignKey:LabourTypeID"`
	CreatedAt    time.Time   `json:"created_at"`
}

// LabourType classifies billable time. HourlyRate is the local override;
// when empty the module's default hourly rate applies.
type LabourType struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Code       string    `json:"code" gorm:"uniqueIndex;size:64"`
	Name       string    `json:"name"`
	Suffix     string    `json:"suffix" gorm:"size:32"`
	HourlyRate string    `json:"hourly_rate" gorm:"size:32"` // decimal string, empty = unset
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// BilledTimeEntry is the idempotency ledger for invoiced ticket time. A row
// per reply means the reply is invoiced and must never be invoiced again;
// the UNIQUE constraint on ReplyID is the backstop under races.
type BilledTimeEntry struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ReplyID       uint      `json:"reply_id" gorm:"uniqueIndex;not null"`
	TicketID      uint      `json:"ticket_id" gorm:"index"`
	InvoiceNumber string    `json:"invoice_number" gorm:"index"`
	Minutes       int       `json:"minutes"`
	LabourTypeID  *uint     `json:"labour_type_id"`
	BilledAt      time.Time `json:"billed_at"`
}

// RecurringInvoiceItem is a per-company recurring line. QtyExpression is
// either a decimal literal or a format-map over the company asset counters.
type RecurringInvoiceItem struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	CompanyID     uint      `json:"company_id" gorm:"index"`
	Company       Company   `json:"-" gorm:"foreignKey:CompanyID"`
	ItemCode      string    `json:"item_code" gorm:"size:64"`
	Description   string    `json:"description"`
	QtyExpression string    `json:"qty_expression" gorm:"size:128"`
	UnitPrice     string    `json:"unit_price" gorm:"size:32"` // decimal string, empty = Xero item price
	AccountCode   string    `json:"account_code" gorm:"size:32"`
	Active        bool      `json:"active" gorm:"default:true"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// XeroSettings holds per-company module configuration for the invoice
// pipeline. Secrets are never serialized.
type XeroSettings struct {
	ID                uint        `json:"id" gorm:"primaryKey"`
	CompanyID         uint        `json:"company_id" gorm:"uniqueIndex"`
	ClientID          string      `json:"client_id"`
	ClientSecret      string      `json:"-"`
	RefreshToken      string      `json:"-"`
	TenantID          string      `json:"tenant_id"`
	BillableStatuses  StringArray `json:"billable_statuses" gorm:"type:text"` // normalized on read
	DefaultHourlyRate string      `json:"default_hourly_rate" gorm:"size:32"`
	AccountCode       string      `json:"account_code" gorm:"size:32"`
	TaxType           string      `json:"tax_type" gorm:"size:32"`
	LineAmountType    string      `json:"line_amount_type" gorm:"default:'Exclusive'"`
	ReferencePrefix   string      `json:"reference_prefix"`
	LineItemTemplate  string      `json:"line_item_description_template"`
	AutoSend          bool        `json:"auto_send" gorm:"default:false"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Call journal statuses shared by events and attempts.
const (
	CallStatusInProgress = "in_progress"
	CallStatusSucceeded  = "succeeded"
	CallStatusFailed     = "failed"
	CallStatusError      = "error"
)

// CallJournalEvent records the intent and exact request of an outbound HTTP
// call. The running Status mirrors the most recent attempt.
type CallJournalEvent struct {
	ID             string             `json:"id" gorm:"primaryKey;size:36"`
	Name           string             `json:"name"`
	TargetURL      string             `json:"target_url"`
	RequestHeaders JSON               `json:"request_headers" gorm:"type:json"`
	RequestBody    string             `json:"request_body" gorm:"type:text"`
	Status         string             `json:"status" gorm:"default:'in_progress';index"`
	MaxAttempts    int                `json:"max_attempts" gorm:"default:1"`
	BackoffSeconds int                `json:"backoff_seconds" gorm:"default:0"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	Attempts       []CallJournalAttempt `json:"attempts,omitempty" gorm:"foreignKey:EventID"`
}

// CallJournalAttempt is one try of a journaled call. Request and response
// are persisted verbatim for manual replay and debugging.
type CallJournalAttempt struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	EventID         string    `json:"event_id" gorm:"index;size:36"`
	Number          int       `json:"number"`
	Status          string    `json:"status"`
	ResponseStatus  int       `json:"response_status"`
	ResponseHeaders JSON      `json:"response_headers" gorm:"type:json"`
	ResponseBody    string    `json:"response_body" gorm:"type:text"`
	RequestHeaders  JSON      `json:"request_headers" gorm:"type:json"`
	RequestBody     string    `json:"request_body" gorm:"type:text"`
	ErrorMessage    string    `json:"error_message"`
	CreatedAt       time.Time `json:"created_at"`
}
