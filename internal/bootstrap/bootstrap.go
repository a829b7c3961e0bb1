package bootstrap

import (
	"log"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"portal-backend/internal/models"
)

// Run wires up the default company, superadmin user and default plan
// template that a fresh database needs before first login.
func Run(db *gorm.DB) {
	if db == nil {
		log.Println("bootstrap: skipping; database not initialized")
		return
	}

	company := ensureCompany(db)
	if company == nil {
		log.Println("bootstrap: unable to ensure default company")
		return
	}

	ensureSuperAdmin(db, company)
	ensureDefaultTemplate(db)
}

func ensureCompany(db *gorm.DB) *models.Company {
	var company models.Company
	if err := db.First(&company).Error; err == nil {
		return &company
	}

	name := strings.TrimSpace(os.Getenv("BOOTSTRAP_COMPANY_NAME"))
	if name == "" {
		name = "Default Company"
	}

	company = models.Company{Name: name}
	if err := db.Create(&company).Error; err != nil {
		log.Printf("bootstrap: failed to create company %q: %v", name, err)
		return nil
	}

	log.Printf("bootstrap: created company %q (ID %d)", company.Name, company.ID)
	return &company
}

func ensureSuperAdmin(db *gorm.DB, company *models.Company) {
	email := strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
	if email == "" {
		email = "admin@portal.local"
	}

	var user models.User
	if err := db.Where("email = ?", email).First(&user).Error; err == nil {
		ensureMembership(db, company, &user)
		return
	}

	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		log.Println("bootstrap: ADMIN_PASSWORD not set, skipping admin user creation")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("bootstrap: failed to hash admin password: %v", err)
		return
	}

	name := strings.TrimSpace(os.Getenv("ADMIN_NAME"))
	if name == "" {
		name = "System Administrator"
	}

	user = models.User{
		Email:    email,
		Password: string(hashed),
		Name:     name,
		Initials: initialsFor(name),
		Role:     models.RoleSuperAdmin,
		Active:   true,
	}
	if err := db.Create(&user).Error; err != nil {
		log.Printf("bootstrap: failed to create admin user %s: %v", email, err)
		return
	}

	log.Printf("bootstrap: created admin user %s", email)
	ensureMembership(db, company, &user)
}

func ensureMembership(db *gorm.DB, company *models.Company, user *models.User) {
	var member models.CompanyMember
	err := db.Where("company_id = ? AND user_id = ?", company.ID, user.ID).First(&member).Error
	if err == nil {
		return
	}
	if err != gorm.ErrRecordNotFound {
		log.Printf("bootstrap: failed to check membership for user %d: %v", user.ID, err)
		return
	}

	member = models.CompanyMember{
		CompanyID: company.ID,
		UserID:    user.ID,
		Role:      models.RoleAdmin,
	}
	if err := db.Create(&member).Error; err != nil {
		log.Printf("bootstrap: failed to create membership for user %d: %v", user.ID, err)
	}
}

// ensureDefaultTemplate seeds the section/field schema new plans start
// from. The sections mirror the exported document order.
func ensureDefaultTemplate(db *gorm.DB) {
	var count int64
	if err := db.Model(&models.BCTemplate{}).Where("is_default = ?", true).
		Count(&count).Error; err != nil || count > 0 {
		return
	}

	schema := map[string]interface{}{
		"sections": []map[string]interface{}{
			{
				"key":   "overview",
				"title": "Plan Overview",
				"fields": []map[string]interface{}{
					{"key": "executive_summary", "type": "textarea", "label": "Executive summary"},
					{"key": "scope", "type": "textarea", "label": "Scope"},
				},
			},
			{
				"key":   "risk_management",
				"title": "Risk Management",
				"fields": []map[string]interface{}{
					{"key": "risk_appetite", "type": "textarea", "label": "Risk appetite"},
				},
			},
			{
				"key":   "impact_analysis",
				"title": "Business Impact Analysis",
				"fields": []map[string]interface{}{
					{"key": "analysis_notes", "type": "textarea", "label": "Analysis notes"},
				},
			},
			{
				"key":   "incident_response",
				"title": "Incident Response",
				"fields": []map[string]interface{}{
					{"key": "evacuation", "type": "textarea", "label": "Evacuation procedure"},
					{"key": "emergency_kit", "type": "textarea", "label": "Emergency kit location"},
				},
			},
			{
				"key":   "recovery",
				"title": "Recovery",
				"fields": []map[string]interface{}{
					{"key": "wellbeing", "type": "textarea", "label": "Staff wellbeing"},
				},
			},
			{
				"key":   "review",
				"title": "Rehearse, Maintain and Review",
				"fields": []map[string]interface{}{
					{"key": "review_notes", "type": "textarea", "label": "Review notes"},
				},
			},
		},
	}

	template := models.BCTemplate{
		Name:        "Business Continuity Plan",
		Description: "Default business continuity plan template",
		SchemaJSON:  models.MustJSON(schema),
		IsDefault:   true,
	}
	if err := db.Create(&template).Error; err != nil {
		log.Printf("bootstrap: failed to seed default template: %v", err)
		return
	}
	log.Printf("bootstrap: seeded default plan template (ID %d)", template.ID)
}

func initialsFor(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		if b.Len() >= 3 {
			break
		}
		b.WriteString(strings.ToUpper(part[:1]))
	}
	return b.String()
}
