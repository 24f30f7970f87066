package dtos

import "time"

// StartRunRequest starts (or restarts template selection for) a checklist run.
type StartRunRequest struct {
	TemplateID *string `json:"template_id,omitempty"` // explicit override, optional
}

// SignRunRequest covers sign and reject. Password is always re-verified
// against the stored hash; a session token alone cannot sign.
type SignRunRequest struct {
	Password string  `json:"password"`
	Note     *string `json:"note,omitempty"`
}

// ItemUpdateRequest mutates one run item. Exactly one value field is expected
// to be set, matching the item's input type.
type ItemUpdateRequest struct {
	Completed   *bool    `json:"completed,omitempty"`
	ValueYesNo  *bool    `json:"value_yes_no,omitempty"`
	ValueNumber *float64 `json:"value_number,omitempty"`
	ValueText   *string  `json:"value_text,omitempty"`
	Notes       *string  `json:"notes,omitempty"`
}

// CreateFlightRequest plans a new flight.
type CreateFlightRequest struct {
	AircraftID       string     `json:"aircraft_id"`
	PlannedStartTime *time.Time `json:"planned_start_time,omitempty"`
	PlannedEndTime   *time.Time `json:"planned_end_time,omitempty"`
}

// SearchCandidatesRequest optionally overrides the derived search window.
type SearchCandidatesRequest struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// AttachCandidateRequest attaches a specific provider flight to a local one.
type AttachCandidateRequest struct {
	ProviderFlightID string `json:"provider_flight_id"`
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// LoginRequest exchanges credentials for a session token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CreateAircraftRequest registers an aircraft.
type CreateAircraftRequest struct {
	TailNumber           string  `json:"tail_number"`
	TypeCode             string  `json:"type_code"`
	PreflightTemplateID  *string `json:"preflight_template_id,omitempty"`
	PostflightTemplateID *string `json:"postflight_template_id,omitempty"`
}

// AssignTemplatesRequest sets an aircraft's per-phase template assignments.
type AssignTemplatesRequest struct {
	PreflightTemplateID  *string `json:"preflight_template_id,omitempty"`
	PostflightTemplateID *string `json:"postflight_template_id,omitempty"`
}

// CreateTemplateRequest creates an empty checklist template.
type CreateTemplateRequest struct {
	Name     string `json:"name"`
	Phase    string `json:"phase"`
	TypeCode string `json:"type_code"`
}

// TemplateItemRequest is one item of a full-template edit. Items reference
// their parent section by the caller-local key, not by database id.
type TemplateItemRequest struct {
	Key           string  `json:"key"`
	ParentKey     *string `json:"parent_key,omitempty"`
	Kind          string  `json:"kind"`
	Label         string  `json:"label"`
	InputType     string  `json:"input_type"`
	Required      bool    `json:"required"`
	OfficialOrder int     `json:"official_order"`
	PersonalOrder int     `json:"personal_order"`
}

// ReplaceTemplateItemsRequest replaces a template's entire item set.
type ReplaceTemplateItemsRequest struct {
	Items []TemplateItemRequest `json:"items"`
}
