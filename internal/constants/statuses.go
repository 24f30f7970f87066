package constants

import (
	"database/sql/driver"
	"fmt"
)

// ChecklistPhase identifies which of the two checklist runs a flight carries.
type ChecklistPhase string

const (
	PhasePreflight  ChecklistPhase = "PREFLIGHT"
	PhasePostflight ChecklistPhase = "POSTFLIGHT"
)

func (p ChecklistPhase) String() string { return string(p) }

// IsValid reports whether the phase is one of the two known phases.
func (p ChecklistPhase) IsValid() bool {
	return p == PhasePreflight || p == PhasePostflight
}

// Scan implements the sql.Scanner interface
func (p *ChecklistPhase) Scan(src interface{}) error {
	if src == nil {
		*p = ""
		return nil
	}
	switch v := src.(type) {
	case string:
		*p = ChecklistPhase(v)
	case []byte:
		*p = ChecklistPhase(v)
	default:
		return fmt.Errorf("ChecklistPhase: cannot scan type %T", src)
	}
	return nil
}

// Value implements the driver.Valuer interface
func (p ChecklistPhase) Value() (driver.Value, error) { return string(p), nil }

// RunStatus is the checklist run lifecycle state.
type RunStatus string

const (
	RunNotAvailable RunStatus = "NOT_AVAILABLE"
	RunInProgress   RunStatus = "IN_PROGRESS"
	RunSigned       RunStatus = "SIGNED"
)

func (s RunStatus) String() string { return string(s) }

// RunDecision is the outcome recorded when a run is signed.
type RunDecision string

const (
	DecisionAccepted RunDecision = "ACCEPTED"
	DecisionRejected RunDecision = "REJECTED"
)

// ItemKind distinguishes grouping headers from actionable steps.
type ItemKind string

const (
	KindSection ItemKind = "SECTION"
	KindStep    ItemKind = "STEP"
)

// InputType selects which value field a step item carries.
type InputType string

const (
	InputCheck  InputType = "CHECK"
	InputYesNo  InputType = "YES_NO"
	InputNumber InputType = "NUMBER"
	InputText   InputType = "TEXT"
)

// FlightStatus is the flight aggregate lifecycle.
type FlightStatus string

const (
	FlightPlanned              FlightStatus = "PLANNED"
	FlightPreflightSigned      FlightStatus = "PREFLIGHT_SIGNED"
	FlightPostflightInProgress FlightStatus = "POSTFLIGHT_IN_PROGRESS"
	FlightPostflightSigned     FlightStatus = "POSTFLIGHT_SIGNED"
	FlightCompleted            FlightStatus = "COMPLETED"
)

func (s FlightStatus) String() string { return string(s) }

// ImportStatus tracks the auto-import sub-state machine on a flight.
// The zero value ("") means import has not been attempted.
type ImportStatus string

const (
	ImportIdle      ImportStatus = ""
	ImportRunning   ImportStatus = "RUNNING"
	ImportMatched   ImportStatus = "MATCHED"
	ImportAmbiguous ImportStatus = "AMBIGUOUS"
	ImportFailed    ImportStatus = "FAILED"
)

func (s ImportStatus) String() string { return string(s) }
