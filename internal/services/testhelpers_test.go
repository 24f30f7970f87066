package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"skyhook/flightline/internal/constants"
	"skyhook/flightline/internal/models/dtos"
	gormModels "skyhook/flightline/internal/models/gorm"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	err = db.AutoMigrate(
		&gormModels.User{},
		&gormModels.Aircraft{},
		&gormModels.ChecklistTemplate{},
		&gormModels.TemplateItem{},
		&gormModels.Flight{},
		&gormModels.ChecklistRun{},
		&gormModels.RunItem{},
		&gormModels.TrackPoint{},
	)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return db
}

const testPassword = "correct-horse-battery"

func createTestUser(t *testing.T, db *gorm.DB) *gormModels.User {
	t.Helper()

	svc := NewUserService(db)
	user, err := svc.CreateUser(context.Background(), "pilot@example.com", "Pat Pilot", testPassword)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createTestAircraft(t *testing.T, db *gorm.DB, userID string, pre, post *string) *gormModels.Aircraft {
	t.Helper()

	aircraft := &gormModels.Aircraft{
		UserID:               userID,
		TailNumber:           "N12345",
		TypeCode:             "C172",
		PreflightTemplateID:  pre,
		PostflightTemplateID: post,
	}
	if err := db.Create(aircraft).Error; err != nil {
		t.Fatalf("failed to create aircraft: %v", err)
	}
	return aircraft
}

// createTestTemplate builds a template with one section holding the given
// steps, all required CHECK items unless an input type is supplied.
func createTestTemplate(t *testing.T, db *gorm.DB, ownerID string, phase constants.ChecklistPhase, stepLabels []string) *gormModels.ChecklistTemplate {
	t.Helper()

	tmpl := &gormModels.ChecklistTemplate{
		OwnerUserID: &ownerID,
		Name:        "Test " + string(phase),
		Phase:       phase,
		TypeCode:    "C172",
	}
	if err := db.Create(tmpl).Error; err != nil {
		t.Fatalf("failed to create template: %v", err)
	}

	section := &gormModels.TemplateItem{
		TemplateID:    tmpl.ID,
		Kind:          constants.KindSection,
		Label:         "Cabin",
		OfficialOrder: 0,
		PersonalOrder: 0,
	}
	if err := db.Create(section).Error; err != nil {
		t.Fatalf("failed to create section: %v", err)
	}

	for i, label := range stepLabels {
		step := &gormModels.TemplateItem{
			TemplateID:    tmpl.ID,
			ParentID:      &section.ID,
			Kind:          constants.KindStep,
			Label:         label,
			InputType:     constants.InputCheck,
			Required:      true,
			OfficialOrder: i + 1,
			PersonalOrder: i + 1,
		}
		if err := db.Create(step).Error; err != nil {
			t.Fatalf("failed to create step: %v", err)
		}
	}

	return tmpl
}

func createTestFlight(t *testing.T, db *gorm.DB, userID, aircraftID string) *gormModels.Flight {
	t.Helper()

	flight := &gormModels.Flight{
		UserID:     userID,
		AircraftID: aircraftID,
		TailNumber: "N12345",
		Status:     constants.FlightPlanned,
	}
	if err := db.Create(flight).Error; err != nil {
		t.Fatalf("failed to create flight: %v", err)
	}
	return flight
}

// recordingDispatcher captures import dispatches synchronously.
type recordingDispatcher struct {
	mu       sync.Mutex
	dispatch []string
}

func (d *recordingDispatcher) Dispatch(flightID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dispatch = append(d.dispatch, flightID)
}

func (d *recordingDispatcher) dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.dispatch))
	copy(out, d.dispatch)
	return out
}

// mockTrackProvider is a hand-rolled TrackDataProvider double.
type mockTrackProvider struct {
	searchFunc func(ctx context.Context, tailNumber string, start, end time.Time) ([]dtos.FlightCandidate, error)
	getFunc    func(ctx context.Context, providerFlightID string) (*dtos.FlightCandidate, error)
}

func (m *mockTrackProvider) SearchFlights(ctx context.Context, tailNumber string, start, end time.Time) ([]dtos.FlightCandidate, error) {
	return m.searchFunc(ctx, tailNumber, start, end)
}

func (m *mockTrackProvider) GetFlight(ctx context.Context, providerFlightID string) (*dtos.FlightCandidate, error) {
	if m.getFunc == nil {
		return nil, nil
	}
	return m.getFunc(ctx, providerFlightID)
}

func (m *mockTrackProvider) GetProviderType() string {
	return "MOCK"
}
