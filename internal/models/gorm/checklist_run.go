package gorm

import (
	"time"

	"skyhook/flightline/internal/constants"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChecklistRun is the signable instantiation of a template for one flight
// phase. Once Status is SIGNED the run and its items never change again.
type ChecklistRun struct {
	ID                 string                   `gorm:"column:id;primaryKey"`
	FlightID           string                   `gorm:"column:flight_id;index:idx_run_flight_phase,unique,priority:1"`
	Phase              constants.ChecklistPhase `gorm:"column:phase;index:idx_run_flight_phase,unique,priority:2"`
	TemplateID         *string                  `gorm:"column:template_id"`
	Status             constants.RunStatus      `gorm:"column:status"`
	Decision           *constants.RunDecision   `gorm:"column:decision"`
	DecisionNote       *string                  `gorm:"column:decision_note"`
	StartedAt          *time.Time               `gorm:"column:started_at"`
	SignedAt           *time.Time               `gorm:"column:signed_at"`
	SignedByUserID     *string                  `gorm:"column:signed_by_user_id"`
	SignatureName      *string                  `gorm:"column:signature_name"`
	SignatureIP        *string                  `gorm:"column:signature_ip"`
	SignatureUserAgent *string                  `gorm:"column:signature_user_agent"`
	CreatedAt          time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                `gorm:"column:updated_at;autoUpdateTime"`

	// Relationships
	Items []RunItem `gorm:"foreignKey:RunID"`
}

// TableName specifies the table name for GORM
func (ChecklistRun) TableName() string {
	return "checklist_runs"
}

func (r *ChecklistRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// IsSigned reports whether the run reached its terminal state.
func (r *ChecklistRun) IsSigned() bool {
	return r.Status == constants.RunSigned
}

// RunItem is the frozen copy of a TemplateItem taken at snapshot time, plus
// the mutable completion fields. ValueYesNo is a tri-state: nil means "not
// yet answered", which is structurally distinct from an explicit false.
type RunItem struct {
	ID             string              `gorm:"column:id;primaryKey"`
	RunID          string              `gorm:"column:run_id;index"`
	TemplateItemID string              `gorm:"column:template_item_id"`
	ParentID       *string             `gorm:"column:parent_id"`
	Kind           constants.ItemKind  `gorm:"column:kind"`
	Label          string              `gorm:"column:label"`
	InputType      constants.InputType `gorm:"column:input_type"`
	Required       bool                `gorm:"column:required"`
	OfficialOrder  int                 `gorm:"column:official_order"`
	PersonalOrder  int                 `gorm:"column:personal_order"`
	Completed      bool                `gorm:"column:completed;default:false"`
	CompletedAt    *time.Time          `gorm:"column:completed_at"`
	Notes          *string             `gorm:"column:notes"`
	ValueYesNo     *bool               `gorm:"column:value_yes_no"`
	ValueNumber    *float64            `gorm:"column:value_number"`
	ValueText      *string             `gorm:"column:value_text"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (RunItem) TableName() string {
	return "run_items"
}

func (i *RunItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// Accepted reports whether the item satisfies its input-type completion rule.
// CHECK and YES_NO require an affirmative true, not merely a touched flag.
func (i *RunItem) Accepted() bool {
	switch i.InputType {
	case constants.InputCheck, constants.InputYesNo:
		return i.ValueYesNo != nil && *i.ValueYesNo
	default:
		return i.Completed
	}
}
