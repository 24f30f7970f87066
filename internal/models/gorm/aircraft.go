package gorm

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Aircraft is a registry entry a flight is planned against. The per-phase
// template assignments feed checklist template resolution.
type Aircraft struct {
	ID                   string    `gorm:"column:id;primaryKey"`
	UserID               string    `gorm:"column:user_id;index"`
	TailNumber           string    `gorm:"column:tail_number;index"`
	TypeCode             string    `gorm:"column:type_code"`
	PreflightTemplateID  *string   `gorm:"column:preflight_template_id"`
	PostflightTemplateID *string   `gorm:"column:postflight_template_id"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Aircraft) TableName() string {
	return "aircraft"
}

func (a *Aircraft) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
