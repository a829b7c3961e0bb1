package models

import (
	"time"
)

// Plan statuses and the version/incident status vocabulary.
const (
	PlanStatusDraft    = "draft"
	PlanStatusInReview = "in_review"
	PlanStatusApproved = "approved"
	PlanStatusArchived = "archived"

	VersionStatusActive     = "active"
	VersionStatusSuperseded = "superseded"

	IncidentStatusActive = "active"
	IncidentStatusClosed = "closed"

	IncidentSourceManual     = "manual"
	IncidentSourceUptimeKuma = "uptime_kuma"

	ReviewStatusPending          = "pending"
	ReviewStatusApproved         = "approved"
	ReviewStatusChangesRequested = "changes_requested"

	ChecklistPhaseImmediate      = "immediate"
	ChecklistPhaseCrisisRecovery = "crisis_recovery"
	ChecklistPhaseOther          = "other"
)

// BCTemplate is a named section/field schema for plan content. The schema is
// opaque JSON to everything except content merging. Exactly one template is
// marked default.
type BCTemplate struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"uniqueIndex"`
	Description string    `json:"description"`
	SchemaJSON  JSON      `json:"schema" gorm:"type:json"`
	IsDefault   bool      `json:"is_default" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BCPlan is the one business continuity plan a company owns.
type BCPlan struct {
	ID               uint        `json:"id" gorm:"primaryKey"`
	CompanyID        uint        `json:"company_id" gorm:"uniqueIndex"`
	Company          Company     `json:"-" gorm:"foreignKey:CompanyID"`
	Title            string      `json:"title"`
	ExecutiveSummary string      `json:"executive_summary" gorm:"type:text"`
	VersionLabel     string      `json:"version_label" gorm:"size:64"`
	Status           string      `json:"status" gorm:"default:'draft';index"`
	TemplateID       *uint       `json:"template_id"`
	Template         *BCTemplate `json:"template,omitempty" gorm:"foreignKey:TemplateID"`
	CurrentVersionID *uint       `json:"current_version_id"`
	OwnerID          uint        `json:"owner_id"`
	ApprovedAt       *time.Time  `json:"approved_at"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// BCPlanVersion is a numbered snapshot of plan content. At most one sibling
// is active per plan; activation supersedes the others atomically.
type BCPlanVersion struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	PlanID        uint      `json:"plan_id" gorm:"index;uniqueIndex:idx_plan_version_number"`
	VersionNumber int       `json:"version_number" gorm:"uniqueIndex:idx_plan_version_number"`
	Status        string    `json:"status" gorm:"default:'active';index"`
	AuthorID      uint      `json:"author_id"`
	Summary       string    `json:"summary"`
	ContentJSON   JSON      `json:"content" gorm:"type:json"`
	DocxHash      string    `json:"docx_hash" gorm:"size:64"`
	PDFHash       string    `json:"pdf_hash" gorm:"size:64"`
	CreatedAt     time.Time `json:"created_at"`
}

// BCRisk carries the two scalar scores plus the derived rating and severity
// band, stored so heat-map queries and filters run in SQL.
type BCRisk struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	PlanID              uint      `json:"plan_id" gorm:"index"`
	Description         string    `json:"description"`
	Likelihood          int       `json:"likelihood"`
	Impact              int       `json:"impact"`
	Rating              int       `json:"rating" gorm:"index"`
	Severity            string    `json:"severity" gorm:"index;size:16"`
	PreventativeActions string    `json:"preventative_actions" gorm:"type:text"`
	ContingencyPlans    string    `json:"contingency_plans" gorm:"type:text"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type CriticalActivity struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PlanID     uint      `json:"plan_id" gorm:"index"`
	Name       string    `json:"name"`
	Importance int       `json:"importance" gorm:"default:0"`
	Priority   int       `json:"priority" gorm:"default:0"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ActivityImpact is the zero-or-one impact record of a critical activity.
// RTOHours is non-negative with no upper bound.
type ActivityImpact struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	ActivityID uint   `json:"activity_id" gorm:"uniqueIndex"`
	RTOHours   *int   `json:"rto_hours"`
	Notes      string `json:"notes"`
}

type RecoveryAction struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	PlanID      uint       `json:"plan_id" gorm:"index"`
	Description string     `json:"description"`
	OwnerID     *uint      `json:"owner_id"`
	DueDate     *time.Time `json:"due_date"`
	Completed   bool       `json:"completed" gorm:"default:false"`
	RTOHours    *int       `json:"rto_hours"`
	ActivityID  *uint      `json:"activity_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Overdue reports whether the action is incomplete past its due date.
func (a RecoveryAction) Overdue(now time.Time) bool {
	return !a.Completed && a.DueDate != nil && a.DueDate.Before(now)
}

type ChecklistItem struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	PlanID   uint   `json:"plan_id" gorm:"index"`
	Phase    string `json:"phase" gorm:"index;size:32"`
	Position int    `json:"position"`
	Text     string `json:"text"`
}

type ChecklistTick struct {
	ID         uint          `json:"id" gorm:"primaryKey"`
	IncidentID uint          `json:"incident_id" gorm:"index"`
	ItemID     uint          `json:"item_id" gorm:"index"`
	Item       ChecklistItem `json:"item" gorm:"foreignKey:ItemID"`
	IsDone     bool          `json:"is_done" gorm:"default:false"`
	DoneByID   *uint         `json:"done_by"`
	DoneAt     *time.Time    `json:"done_at"`
}

type Incident struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	PlanID    uint       `json:"plan_id" gorm:"index"`
	Status    string     `json:"status" gorm:"default:'active';index"`
	Source    string     `json:"source" gorm:"size:32"`
	StartedAt time.Time  `json:"started_at"`
	ClosedAt  *time.Time `json:"closed_at"`
}

// EventLogEntry is immutable after insertion.
type EventLogEntry struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	IncidentID uint      `json:"incident_id" gorm:"index"`
	PlanID     uint      `json:"plan_id" gorm:"index"`
	HappenedAt time.Time `json:"happened_at" gorm:"index"`
	Notes      string    `json:"notes" gorm:"type:text"`
	Initials   string    `json:"initials" gorm:"size:8"`
	AuthorID   *uint     `json:"author_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type BCContact struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PlanID    uint      `json:"plan_id" gorm:"index"`
	Kind      string    `json:"kind" gorm:"size:16"` // internal or external
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type BCRole struct {
	ID               uint   `json:"id" gorm:"primaryKey"`
	PlanID           uint   `json:"plan_id" gorm:"index"`
	Title            string `json:"title"`
	Responsibilities string `json:"responsibilities" gorm:"type:text"`
	AssigneeID       *uint  `json:"assignee_id"`
}

type TrainingItem struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	PlanID       uint       `json:"plan_id" gorm:"index"`
	Activity     string     `json:"activity"`
	OwnerID      *uint      `json:"owner_id"`
	ScheduledFor *time.Time `json:"scheduled_for"`
	Completed    bool       `json:"completed" gorm:"default:false"`
}

type ReviewScheduleItem struct {
	ID        uint       `json:"id" gorm:"primaryKey"`
	PlanID    uint       `json:"plan_id" gorm:"index"`
	Activity  string     `json:"activity"`
	Frequency string     `json:"frequency" gorm:"size:32"`
	NextDue   *time.Time `json:"next_due"`
}

type DistributionEntry struct {
	ID       uint       `json:"id" gorm:"primaryKey"`
	PlanID   uint       `json:"plan_id" gorm:"index"`
	Name     string     `json:"name"`
	Role     string     `json:"role"`
	IssuedAt *time.Time `json:"issued_at"`
}

type Objective struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	PlanID   uint   `json:"plan_id" gorm:"index"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

type InsurancePolicy struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	PlanID       uint       `json:"plan_id" gorm:"index"`
	PolicyType   string     `json:"policy_type"`
	Insurer      string     `json:"insurer"`
	PolicyNumber string     `json:"policy_number"`
	CoverAmount  string     `json:"cover_amount" gorm:"size:32"`
	RenewalDate  *time.Time `json:"renewal_date"`
}

type BackupItem struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	PlanID        uint   `json:"plan_id" gorm:"index"`
	DataType      string `json:"data_type"`
	Frequency     string `json:"frequency" gorm:"size:32"`
	Location      string `json:"location"`
	ResponsibleID *uint  `json:"responsible_id"`
}

type InsuranceClaim struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	PlanID      uint       `json:"plan_id" gorm:"index"`
	Insurer     string     `json:"insurer"`
	ClaimNumber string     `json:"claim_number"`
	Status      string     `json:"status" gorm:"size:32"`
	LodgedAt    *time.Time `json:"lodged_at"`
	Notes       string     `json:"notes"`
}

type MarketChange struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	PlanID   uint   `json:"plan_id" gorm:"index"`
	Change   string `json:"change"`
	Impact   string `json:"impact"`
	Response string `json:"response"`
}

// Acknowledgement maps (plan, user) to the latest acknowledged version. A
// later-versioned acknowledgement supersedes any earlier one.
type Acknowledgement struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	PlanID     uint      `json:"plan_id" gorm:"index;uniqueIndex:idx_ack_plan_user"`
	UserID     uint      `json:"user_id" gorm:"index;uniqueIndex:idx_ack_plan_user"`
	AckVersion int       `json:"ack_version"`
	AckedAt    time.Time `json:"acked_at"`
}

type BCReview struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	PlanID      uint       `json:"plan_id" gorm:"index"`
	RequesterID uint       `json:"requester_id"`
	ReviewerID  uint       `json:"reviewer_id" gorm:"index"`
	Status      string     `json:"status" gorm:"default:'pending';index"`
	Notes       string     `json:"notes"`
	RequestedAt time.Time  `json:"requested_at"`
	DecidedAt   *time.Time `json:"decided_at"`
}

// BCAuditEntry is append-only: never mutated, never deleted.
type BCAuditEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	PlanID    uint      `json:"plan_id" gorm:"index"`
	Action    string    `json:"action" gorm:"index"`
	ActorID   uint      `json:"actor_id"`
	Details   JSON      `json:"details" gorm:"type:json"`
	CreatedAt time.Time `json:"created_at"`
}

type BCAttachment struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	PlanID      uint      `json:"plan_id" gorm:"index"`
	Filename    string    `json:"filename"`
	StoragePath string    `json:"storage_path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploaderID  uint      `json:"uploader_id"`
	SHA256      string    `json:"sha256" gorm:"size:64"`
	CreatedAt   time.Time `json:"created_at"`
}

// AllModels lists every model for AutoMigrate, in dependency order.
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Company{},
		&CompanyMember{},
		&LabourType{},
		&Ticket{},
		&TicketReply{},
		&BilledTimeEntry{},
		&RecurringInvoiceItem{},
		&XeroSettings{},
		&CallJournalEvent{},
		&CallJournalAttempt{},
		&BCTemplate{},
		&BCPlan{},
		&BCPlanVersion{},
		&BCRisk{},
		&CriticalActivity{},
		&ActivityImpact{},
		&RecoveryAction{},
		&ChecklistItem{},
		&ChecklistTick{},
		&Incident{},
		&EventLogEntry{},
		&BCContact{},
		&BCRole{},
		&TrainingItem{},
		&ReviewScheduleItem{},
		&DistributionEntry{},
		&Objective{},
		&InsurancePolicy{},
		&BackupItem{},
		&InsuranceClaim{},
		&MarketChange{},
		&Acknowledgement{},
		&BCReview{},
		&BCAuditEntry{},
		&BCAttachment{},
	}
}
