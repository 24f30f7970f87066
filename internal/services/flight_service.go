package services

import (
	"context"
	"fmt"

	"skyhook/flightline/internal/constants"
	"skyhook/flightline/internal/db/repositories"
	"skyhook/flightline/internal/models/dtos"
	gormModels "skyhook/flightline/internal/models/gorm"

	"gorm.io/gorm"
)

// FlightService covers the flight aggregate's plain lifecycle: planning,
// lookup, and listing. The interesting transitions live in the checklist and
// import services.
type FlightService struct {
	db         *gorm.DB
	flightRepo *repositories.FlightRepository
}

func NewFlightService(db *gorm.DB) *FlightService {
	return &FlightService{
		db:         db,
		flightRepo: repositories.NewFlightRepository(db),
	}
}

// CreateFlight plans a new flight against one of the user's aircraft.
func (svc *FlightService) CreateFlight(ctx context.Context, userID string, req dtos.CreateFlightRequest) (*gormModels.Flight, error) {
	if req.AircraftID == "" {
		return nil, fmt.Errorf("%w: aircraft id is required", ErrMalformedInput)
	}
	if req.PlannedStartTime != nil && req.PlannedEndTime != nil && req.PlannedEndTime.Before(*req.PlannedStartTime) {
		return nil, fmt.Errorf("%w: planned end before planned start", ErrMalformedInput)
	}

	var aircraft gormModels.Aircraft
	err := svc.db.WithContext(ctx).Where("id = ? AND user_id = ?", req.AircraftID, userID).First(&aircraft).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("aircraft not found: %s", req.AircraftID)
		}
		return nil, fmt.Errorf("failed to fetch aircraft: %w", err)
	}

	flight := gormModels.Flight{
		UserID:           userID,
		AircraftID:       aircraft.ID,
		TailNumber:       aircraft.TailNumber,
		Status:           constants.FlightPlanned,
		PlannedStartTime: req.PlannedStartTime,
		PlannedEndTime:   req.PlannedEndTime,
	}

	if err := svc.db.WithContext(ctx).Create(&flight).Error; err != nil {
		return nil, fmt.Errorf("failed to create flight: %w", err)
	}

	return &flight, nil
}

// GetFlight returns a flight with runs and ordered track, owner-checked.
func (svc *FlightService) GetFlight(ctx context.Context, flightID string, userID string) (*gormModels.Flight, error) {
	flight, err := svc.flightRepo.GetFlightWithTrack(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if flight.UserID != userID {
		return nil, ErrForbidden
	}
	return flight, nil
}

// ListFlights returns a page of the user's flights, most recent first.
func (svc *FlightService) ListFlights(ctx context.Context, userID string, page int) ([]gormModels.Flight, error) {
	return svc.flightRepo.ListUserFlights(ctx, userID, page, 20)
}

// CreateAircraft registers an aircraft under a user.
func (svc *FlightService) CreateAircraft(
	ctx context.Context,
	userID string,
	req dtos.CreateAircraftRequest,
) (*gormModels.Aircraft, error) {
	if req.TailNumber == "" || req.TypeCode == "" {
		return nil, ErrMalformedInput
	}

	aircraft := gormModels.Aircraft{
		UserID:               userID,
		TailNumber:           req.TailNumber,
		TypeCode:             req.TypeCode,
		PreflightTemplateID:  req.PreflightTemplateID,
		PostflightTemplateID: req.PostflightTemplateID,
	}
	if err := svc.db.WithContext(ctx).Create(&aircraft).Error; err != nil {
		return nil, fmt.Errorf("failed to create aircraft: %w", err)
	}
	return &aircraft, nil
}

// ListAircraft returns all aircraft registered by a user.
func (svc *FlightService) ListAircraft(ctx context.Context, userID string) ([]gormModels.Aircraft, error) {
	var aircraft []gormModels.Aircraft
	if err := svc.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("tail_number ASC").
		Find(&aircraft).Error; err != nil {
		return nil, fmt.Errorf("failed to list aircraft: %w", err)
	}
	return aircraft, nil
}

// AssignAircraftTemplates sets the per-phase template assignments on an
// aircraft. A nil field clears the assignment back to the type default.
func (svc *FlightService) AssignAircraftTemplates(
	ctx context.Context,
	aircraftID string,
	userID string,
	preflightTemplateID *string,
	postflightTemplateID *string,
) (*gormModels.Aircraft, error) {
	var aircraft gormModels.Aircraft
	if err := svc.db.WithContext(ctx).Where("id = ?", aircraftID).First(&aircraft).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrForbidden
		}
		return nil, fmt.Errorf("failed to fetch aircraft: %w", err)
	}
	if aircraft.UserID != userID {
		return nil, ErrForbidden
	}

	updates := map[string]interface{}{
		"preflight_template_id":  preflightTemplateID,
		"postflight_template_id": postflightTemplateID,
	}
	if err := svc.db.WithContext(ctx).Model(&aircraft).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update aircraft: %w", err)
	}
	aircraft.PreflightTemplateID = preflightTemplateID
	aircraft.PostflightTemplateID = postflightTemplateID
	return &aircraft, nil
}
