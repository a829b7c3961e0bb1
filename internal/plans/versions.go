package plans

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"portal-backend/internal/audit"
	"portal-backend/internal/database"
	apperrors "portal-backend/internal/errors"
	"portal-backend/internal/models"
)

// CreateVersion inserts the next numbered version as active and supersedes
// every sibling in the same transaction, under a plan-row lock. When the plan
// has a template and content is nil, the initial content is derived from the
// template schema.
func CreateVersion(db *gorm.DB, planID, authorID uint, summary string, content map[string]interface{}) (*models.BCPlanVersion, error) {
	var version models.BCPlanVersion

	err := db.Transaction(func(tx *gorm.DB) error {
		var plan models.BCPlan
		if err := database.LockForUpdate(tx).First(&plan, planID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFound("plan")
			}
			return err
		}

		if content == nil && plan.TemplateID != nil {
			var tmpl models.BCTemplate
			if err := tx.First(&tmpl, *plan.TemplateID).Error; err == nil {
				schema, err := tmpl.SchemaJSON.AsMap()
				if err != nil {
					return apperrors.Wrap(err, apperrors.CodeValidation, "template schema is not valid JSON")
				}
				content = EmptyContentFromSchema(schema)
			}
		}
		if content == nil {
			content = map[string]interface{}{}
		}

		var maxNumber int
		row := tx.Model(&models.BCPlanVersion{}).
			Where("plan_id = ?", planID).
			Select("COALESCE(MAX(version_number), 0)").
			Row()
		if err := row.Scan(&maxNumber); err != nil {
			return err
		}

		if err := tx.Model(&models.BCPlanVersion{}).
			Where("plan_id = ? AND status = ?", planID, models.VersionStatusActive).
			Update("status", models.VersionStatusSuperseded).Error; err != nil {
			return err
		}

		version = models.BCPlanVersion{
			PlanID:        planID,
			VersionNumber: maxNumber + 1,
			Status:        models.VersionStatusActive,
			AuthorID:      authorID,
			Summary:       summary,
			ContentJSON:   models.MustJSON(content),
			CreatedAt:     time.Now().UTC(),
		}
		if err := tx.Create(&version).Error; err != nil {
			return apperrors.Wrap(err, apperrors.CodeConflict, "version number already taken")
		}

		if err := tx.Model(&plan).Update("current_version_id", version.ID).Error; err != nil {
			return err
		}

		audit.Record(tx, planID, audit.ActionVersionCreated, authorID, map[string]interface{}{
			"version_number": version.VersionNumber,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// ActivateVersion moves a superseded version back to active, superseding
// whichever was active. Activating the already-active version is a no-op.
func ActivateVersion(db *gorm.DB, planID, versionID, actorID uint) (*models.BCPlanVersion, error) {
	var version models.BCPlanVersion

	err := db.Transaction(func(tx *gorm.DB) error {
		var plan models.BCPlan
		if err := database.LockForUpdate(tx).First(&plan, planID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFound("plan")
			}
			return err
		}

		if err := tx.Where("plan_id = ?", planID).First(&version, versionID).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFound("version")
			}
			return err
		}

		if version.Status == models.VersionStatusActive &&
			plan.CurrentVersionID != nil && *plan.CurrentVersionID == version.ID {
			return nil // already active
		}

		if err := tx.Model(&models.BCPlanVersion{}).
			Where("plan_id = ? AND status = ?", planID, models.VersionStatusActive).
			Update("status", models.VersionStatusSuperseded).Error; err != nil {
			return err
		}
		if err := tx.Model(&version).Update("status", models.VersionStatusActive).Error; err != nil {
			return err
		}
		version.Status = models.VersionStatusActive

		if err := tx.Model(&plan).Update("current_version_id", version.ID).Error; err != nil {
			return err
		}

		audit.Record(tx, planID, audit.ActionVersionActivated, actorID, map[string]interface{}{
			"version_number": version.VersionNumber,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// ActiveVersion returns the single active version of a plan.
func ActiveVersion(db *gorm.DB, planID uint) (*models.BCPlanVersion, error) {
	var version models.BCPlanVersion
	err := db.Where("plan_id = ? AND status = ?", planID, models.VersionStatusActive).
		First(&version).Error
	if err == gorm.ErrRecordNotFound {
		return nil, apperrors.NotFound("active version")
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

// EmptyContentFromSchema produces initial plan content from a template
// schema: one keyed object per section, each field set to its default value
// or null.
func EmptyContentFromSchema(schema map[string]interface{}) map[string]interface{} {
	content := map[string]interface{}{}

	sections, _ := schema["sections"].([]interface{})
	for _, rawSection := range sections {
		section, ok := rawSection.(map[string]interface{})
		if !ok {
			continue
		}
		key, _ := section["key"].(string)
		if key == "" {
			continue
		}

		fieldValues := map[string]interface{}{}
		fields, _ := section["fields"].([]interface{})
		for _, rawField := range fields {
			field, ok := rawField.(map[string]interface{})
			if !ok {
				continue
			}
			fieldKey, _ := field["key"].(string)
			if fieldKey == "" {
				continue
			}
			if def, ok := field["default_value"]; ok && def != nil {
				fieldValues[fieldKey] = def
			} else {
				fieldValues[fieldKey] = nil
			}
		}
		content[key] = fieldValues
	}
	return content
}

// DecodeContent unmarshals version content into a generic map.
func DecodeContent(v models.BCPlanVersion) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(v.ContentJSON) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(v.ContentJSON, &out); err != nil {
		return nil, err
	}
	return out, nil
}
