package repositories

import (
	"context"
	"fmt"

	"skyhook/flightline/internal/constants"
	gormModels "skyhook/flightline/internal/models/gorm"

	"gorm.io/gorm"
)

type ChecklistTemplateRepository struct {
	db *gorm.DB
}

// NewChecklistTemplateRepository creates a new GORM-based template repository
func NewChecklistTemplateRepository(db *gorm.DB) *ChecklistTemplateRepository {
	return &ChecklistTemplateRepository{db: db}
}

// GetTemplateWithItems retrieves a template with items ordered by the
// official sequence.
func (r *ChecklistTemplateRepository) GetTemplateWithItems(ctx context.Context, templateID string) (*gormModels.ChecklistTemplate, error) {
	var tmpl gormModels.ChecklistTemplate

	err := r.db.WithContext(ctx).
		Preload("Items", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("official_order ASC")
		}).
		Where("id = ?", templateID).
		First(&tmpl).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("template not found: %s", templateID)
		}
		return nil, fmt.Errorf("failed to fetch template: %w", err)
	}

	return &tmpl, nil
}

// FindTypeDefault returns the default template for an aircraft type and
// phase, or nil when none is configured.
func (r *ChecklistTemplateRepository) FindTypeDefault(ctx context.Context, typeCode string, phase constants.ChecklistPhase) (*gormModels.ChecklistTemplate, error) {
	var tmpl gormModels.ChecklistTemplate

	err := r.db.WithContext(ctx).
		Where("type_code = ? AND phase = ? AND is_type_default = ?", typeCode, phase, true).
		First(&tmpl).Error

	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch type default template: %w", err)
	}

	return &tmpl, nil
}

// ListUserTemplates returns the user's own templates plus the global ones
// for a phase, personal order applied within each template elsewhere.
func (r *ChecklistTemplateRepository) ListUserTemplates(ctx context.Context, userID string, phase constants.ChecklistPhase) ([]gormModels.ChecklistTemplate, error) {
	var templates []gormModels.ChecklistTemplate

	err := r.db.WithContext(ctx).
		Where("(owner_user_id = ? OR owner_user_id IS NULL) AND phase = ?", userID, phase).
		Order("name ASC").
		Find(&templates).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}

	return templates, nil
}
