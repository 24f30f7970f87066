package repositories

import (
	"context"
	"fmt"

	gormModels "skyhook/flightline/internal/models/gorm"

	"gorm.io/gorm"
)

type FlightRepository struct {
	db *gorm.DB
}

// NewFlightRepository creates a new GORM-based flight repository
func NewFlightRepository(db *gorm.DB) *FlightRepository {
	return &FlightRepository{db: db}
}

// GetFlightWithRuns retrieves a flight with both checklist runs preloaded
func (r *FlightRepository) GetFlightWithRuns(ctx context.Context, flightID string) (*gormModels.Flight, error) {
	var flight gormModels.Flight

	err := r.db.WithContext(ctx).
		Preload("Runs").
		Where("id = ?", flightID).
		First(&flight).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("flight not found: %s", flightID)
		}
		return nil, fmt.Errorf("failed to fetch flight: %w", err)
	}

	return &flight, nil
}

// GetFlightWithTrack retrieves a flight with runs and track points, track
// ordered by recording time.
func (r *FlightRepository) GetFlightWithTrack(ctx context.Context, flightID string) (*gormModels.Flight, error) {
	var flight gormModels.Flight

	err := r.db.WithContext(ctx).
		Preload("Runs").
		Preload("TrackPoints", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("recorded_at ASC")
		}).
		Where("id = ?", flightID).
		First(&flight).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("flight not found: %s", flightID)
		}
		return nil, fmt.Errorf("failed to fetch flight: %w", err)
	}

	return &flight, nil
}

// ListUserFlights returns a page of the user's flights, most recent first
func (r *FlightRepository) ListUserFlights(ctx context.Context, userID string, page int, pageSize int) ([]gormModels.Flight, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	var flights []gormModels.Flight
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&flights).Error

	if err != nil {
		return nil, fmt.Errorf("failed to list flights: %w", err)
	}

	return flights, nil
}
