package services

import (
	"context"
	"fmt"

	"skyhook/flightline/internal/constants"
	"skyhook/flightline/internal/db/repositories"
	gormModels "skyhook/flightline/internal/models/gorm"

	"gorm.io/gorm"
)

// ChecklistTemplateService manages template editing and resolution.
type ChecklistTemplateService struct {
	db           *gorm.DB
	templateRepo *repositories.ChecklistTemplateRepository
}

func NewChecklistTemplateService(db *gorm.DB) *ChecklistTemplateService {
	return &ChecklistTemplateService{
		db:           db,
		templateRepo: repositories.NewChecklistTemplateRepository(db),
	}
}

// TemplateItemInput is one item of a full-template edit.
type TemplateItemInput struct {
	Key           string  // caller-local key, referenced by ParentKey
	ParentKey     *string // nil for top-level items
	Kind          constants.ItemKind
	Label         string
	InputType     constants.InputType
	Required      bool
	OfficialOrder int
	PersonalOrder int
}

// ReplaceTemplateItems replaces all items of a template in one transaction.
// Editing never updates items in place: delete-all-then-insert is the only
// way a template changes, so partial item sets are never observable and
// parent references cannot dangle.
func (svc *ChecklistTemplateService) ReplaceTemplateItems(ctx context.Context, templateID string, inputs []TemplateItemInput) error {
	// Validate parent keys before opening the transaction
	keys := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		if in.Label == "" {
			return fmt.Errorf("%w: item label is required", ErrMalformedInput)
		}
		if in.Kind != constants.KindSection && in.Kind != constants.KindStep {
			return fmt.Errorf("%w: unknown item kind %q", ErrMalformedInput, in.Kind)
		}
		keys[in.Key] = struct{}{}
	}
	for _, in := range inputs {
		if in.ParentKey != nil {
			if _, ok := keys[*in.ParentKey]; !ok {
				return fmt.Errorf("%w: unknown parent key %q", ErrMalformedInput, *in.ParentKey)
			}
		}
	}

	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tmpl gormModels.ChecklistTemplate
		if err := tx.Where("id = ?", templateID).First(&tmpl).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrTemplateNotFound
			}
			return fmt.Errorf("failed to fetch template: %w", err)
		}

		if err := tx.Where("template_id = ?", templateID).Delete(&gormModels.TemplateItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear template items: %w", err)
		}

		// First pass creates rows so parent ids exist for the second pass
		idByKey := make(map[string]string, len(inputs))
		created := make([]*gormModels.TemplateItem, 0, len(inputs))
		for _, in := range inputs {
			item := gormModels.TemplateItem{
				TemplateID:    templateID,
				Kind:          in.Kind,
				Label:         in.Label,
				InputType:     in.InputType,
				Required:      in.Required,
				OfficialOrder: in.OfficialOrder,
				PersonalOrder: in.PersonalOrder,
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create template item: %w", err)
			}
			idByKey[in.Key] = item.ID
			created = append(created, &item)
		}

		for i, in := range inputs {
			if in.ParentKey == nil {
				continue
			}
			parentID := idByKey[*in.ParentKey]
			if err := tx.Model(created[i]).Update("parent_id", parentID).Error; err != nil {
				return fmt.Errorf("failed to link template item parent: %w", err)
			}
		}

		return nil
	})
}

// ResolveTemplate picks the template a run should be snapshotted from:
// explicit override first, then the aircraft's per-phase assignment, then
// the type default. Returns ErrTemplateNotFound when nothing matches.
func (svc *ChecklistTemplateService) ResolveTemplate(
	ctx context.Context,
	aircraft *gormModels.Aircraft,
	phase constants.ChecklistPhase,
	overrideID *string,
) (*gormModels.ChecklistTemplate, error) {
	if overrideID != nil && *overrideID != "" {
		return svc.templateRepo.GetTemplateWithItems(ctx, *overrideID)
	}

	var assigned *string
	switch phase {
	case constants.PhasePreflight:
		assigned = aircraft.PreflightTemplateID
	case constants.PhasePostflight:
		assigned = aircraft.PostflightTemplateID
	default:
		return nil, ErrInvalidPhase
	}

	if assigned != nil && *assigned != "" {
		return svc.templateRepo.GetTemplateWithItems(ctx, *assigned)
	}

	fallback, err := svc.templateRepo.FindTypeDefault(ctx, aircraft.TypeCode, phase)
	if err != nil {
		return nil, err
	}
	if fallback == nil {
		return nil, ErrTemplateNotFound
	}

	return svc.templateRepo.GetTemplateWithItems(ctx, fallback.ID)
}

// CreateTemplate creates an empty template owned by a user. Items are added
// through ReplaceTemplateItems.
func (svc *ChecklistTemplateService) CreateTemplate(
	ctx context.Context,
	userID string,
	name string,
	phase constants.ChecklistPhase,
	typeCode string,
) (*gormModels.ChecklistTemplate, error) {
	if !phase.IsValid() {
		return nil, ErrInvalidPhase
	}
	if name == "" || typeCode == "" {
		return nil, ErrMalformedInput
	}

	tmpl := gormModels.ChecklistTemplate{
		OwnerUserID: &userID,
		Name:        name,
		Phase:       phase,
		TypeCode:    typeCode,
	}
	if err := svc.db.WithContext(ctx).Create(&tmpl).Error; err != nil {
		return nil, fmt.Errorf("failed to create template: %w", err)
	}
	return &tmpl, nil
}

// GetTemplate returns a template with items, restricted to its owner or to
// shared type defaults.
func (svc *ChecklistTemplateService) GetTemplate(ctx context.Context, templateID string, userID string) (*gormModels.ChecklistTemplate, error) {
	tmpl, err := svc.templateRepo.GetTemplateWithItems(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if tmpl.OwnerUserID != nil && *tmpl.OwnerUserID != userID {
		return nil, ErrForbidden
	}
	return tmpl, nil
}

// ListTemplates returns the user's templates for a phase.
func (svc *ChecklistTemplateService) ListTemplates(ctx context.Context, userID string, phase constants.ChecklistPhase) ([]gormModels.ChecklistTemplate, error) {
	if !phase.IsValid() {
		return nil, ErrInvalidPhase
	}
	return svc.templateRepo.ListUserTemplates(ctx, userID, phase)
}
