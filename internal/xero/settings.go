package xero

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"portal-backend/internal/config"
	"portal-backend/internal/models"
)

// Skip reasons surfaced in sync diagnostics.
const (
	ReasonNotConfigured     = "Module not fully configured"
	ReasonNoTenant          = "Tenant ID not configured"
	ReasonNoHourlyRate      = "Hourly rate not configured"
	ReasonCompanyNotFound   = "Company not found"
	ReasonNoUnbilledTickets = "No tickets with unbilled time in billable status"
	ReasonNothingToInvoice  = "No active recurring invoice items or billable tickets"
)

func settingsCacheKey(companyID uint) string {
	return fmt.Sprintf("xero:settings:%d", companyID)
}

// cachedSettings is the cache wire shape. The API shape elides the secrets
// via json tags; the cache must carry them, so they are shadowed here.
type cachedSettings struct {
	models.XeroSettings
	ClientSecret string `json:"client_secret"`
	RefreshToken string `json:"refresh_token"`
}

func toCached(s models.XeroSettings) cachedSettings {
	return cachedSettings{XeroSettings: s, ClientSecret: s.ClientSecret, RefreshToken: s.RefreshToken}
}

func (c cachedSettings) settings() *models.XeroSettings {
	s := c.XeroSettings
	s.ClientSecret = c.ClientSecret
	s.RefreshToken = c.RefreshToken
	return &s
}

// LoadSettings reads a company's module configuration through the settings
// cache. A row that does not exist is returned as nil without error.
func LoadSettings(ctx context.Context, db *gorm.DB, companyID uint) (*models.XeroSettings, error) {
	key := settingsCacheKey(companyID)

	var cached cachedSettings
	if config.Cache().Get(ctx, key, &cached) {
		return cached.settings(), nil
	}

	var settings models.XeroSettings
	err := db.Where("company_id = ?", companyID).First(&settings).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	config.Cache().Set(ctx, key, toCached(settings))
	return &settings, nil
}

// InvalidateSettings drops the cached configuration after an admin edit.
func InvalidateSettings(ctx context.Context, companyID uint) {
	config.Cache().Invalidate(ctx, settingsCacheKey(companyID))
}

// ValidationReason reports why a settings row cannot drive a sync, or ""
// when it can.
func ValidationReason(s *models.XeroSettings) string {
	if s == nil || s.ClientID == "" || s.ClientSecret == "" || s.RefreshToken == "" {
		return ReasonNotConfigured
	}
	if s.TenantID == "" {
		return ReasonNoTenant
	}
	if strings.TrimSpace(s.DefaultHourlyRate) == "" {
		return ReasonNoHourlyRate
	}
	return ""
}

// NormalizeStatuses accepts a list or a comma-separated string and returns
// trimmed, lowercased, deduplicated statuses in first-seen order.
func NormalizeStatuses(raw interface{}) []string {
	var parts []string
	switch v := raw.(type) {
	case string:
		parts = strings.Split(v, ",")
	case []string:
		parts = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	}

	seen := make(map[string]bool, len(parts))
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		status := strings.ToLower(strings.TrimSpace(part))
		if status == "" || seen[status] {
			continue
		}
		seen[status] = true
		out = append(out, status)
	}
	return out
}

// BillableStatuses returns the normalized billable status set for a
// settings row, defaulting to resolved when unset.
func BillableStatuses(s *models.XeroSettings) []string {
	statuses := NormalizeStatuses(s.BillableStatuses.ToSlice())
	if len(statuses) == 0 {
		return []string{"resolved"}
	}
	return statuses
}
