package gorm

import (
	"time"

	"skyhook/flightline/internal/constants"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChecklistTemplate is the editable definition of a checklist. A nil owner
// marks a global/admin template visible to every user.
type ChecklistTemplate struct {
	ID            string                   `gorm:"column:id;primaryKey"`
	OwnerUserID   *string                  `gorm:"column:owner_user_id;index"`
	Name          string                   `gorm:"column:name"`
	Phase         constants.ChecklistPhase `gorm:"column:phase;index"`
	TypeCode      string                   `gorm:"column:type_code;index"`
	IsTypeDefault bool                     `gorm:"column:is_type_default;default:false"`
	CreatedAt     time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time                `gorm:"column:updated_at;autoUpdateTime"`

	// Relationships
	Items []TemplateItem `gorm:"foreignKey:TemplateID"`
}

// TableName specifies the table name for GORM
func (ChecklistTemplate) TableName() string {
	return "checklist_templates"
}

func (t *ChecklistTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// TemplateItem is one section or step of a template. OfficialOrder is the
// authoritative sequence, PersonalOrder the user-customized one; display
// order is always re-derived by sorting on the relevant column.
type TemplateItem struct {
	ID            string              `gorm:"column:id;primaryKey"`
	TemplateID    string              `gorm:"column:template_id;index"`
	ParentID      *string             `gorm:"column:parent_id"`
	Kind          constants.ItemKind  `gorm:"column:kind"`
	Label         string              `gorm:"column:label"`
	InputType     constants.InputType `gorm:"column:input_type"`
	Required      bool                `gorm:"column:required;default:false"`
	OfficialOrder int                 `gorm:"column:official_order"`
	PersonalOrder int                 `gorm:"column:personal_order"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (TemplateItem) TableName() string {
	return "template_items"
}

func (i *TemplateItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
