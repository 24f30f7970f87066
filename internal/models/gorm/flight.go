package gorm

import (
	"time"

	"skyhook/flightline/internal/constants"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Flight is the aggregate root: it owns zero-or-two checklist runs (one per
// phase) and the track points imported from the provider.
type Flight struct {
	ID               string                 `gorm:"column:id;primaryKey"`
	UserID           string                 `gorm:"column:user_id;index"`
	AircraftID       string                 `gorm:"column:aircraft_id;index"`
	TailNumber       string                 `gorm:"column:tail_number"`
	Status           constants.FlightStatus `gorm:"column:status"`
	PlannedStartTime *time.Time             `gorm:"column:planned_start_time"`
	PlannedEndTime   *time.Time             `gorm:"column:planned_end_time"`
	StartTime        *time.Time             `gorm:"column:start_time"`
	EndTime          *time.Time             `gorm:"column:end_time"`
	DurationMinutes  *int                   `gorm:"column:duration_minutes"`
	DistanceNm       *float64               `gorm:"column:distance_nm"`
	MaxAltitudeFeet  *int                   `gorm:"column:max_altitude_feet"`
	MaxGroundspeedKt *int                   `gorm:"column:max_groundspeed_kt"`
	DepartureLabel   *string                `gorm:"column:departure_label"`
	ArrivalLabel     *string                `gorm:"column:arrival_label"`
	ImportedProvider *string                `gorm:"column:imported_provider"`
	ProviderFlightID *string                `gorm:"column:provider_flight_id;index"`
	AutoImportStatus constants.ImportStatus `gorm:"column:auto_import_status;default:''"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	// Relationships
	Runs        []ChecklistRun `gorm:"foreignKey:FlightID"`
	TrackPoints []TrackPoint   `gorm:"foreignKey:FlightID"`
}

// TableName specifies the table name for GORM
func (Flight) TableName() string {
	return "flights"
}

func (f *Flight) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// RunForPhase returns the preloaded run for the given phase, if any.
func (f *Flight) RunForPhase(phase constants.ChecklistPhase) *ChecklistRun {
	for idx := range f.Runs {
		if f.Runs[idx].Phase == phase {
			return &f.Runs[idx]
		}
	}
	return nil
}

// TrackPoint is one timestamped position sample owned by exactly one flight.
// Tracks are replaced wholesale (delete-then-insert), never patched in place.
type TrackPoint struct {
	ID            string    `gorm:"column:id;primaryKey"`
	FlightID      string    `gorm:"column:flight_id;index:idx_track_flight_time,priority:1"`
	RecordedAt    time.Time `gorm:"column:recorded_at;index:idx_track_flight_time,priority:2"`
	Latitude      float64   `gorm:"column:latitude"`
	Longitude     float64   `gorm:"column:longitude"`
	AltitudeFeet  *int      `gorm:"column:altitude_feet"`
	GroundspeedKt *int      `gorm:"column:groundspeed_kt"`
	HeadingDeg    *int      `gorm:"column:heading_deg"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName specifies the table name for GORM
func (TrackPoint) TableName() string {
	return "track_points"
}

func (p *TrackPoint) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
