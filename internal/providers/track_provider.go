package providers

import (
	"context"
	"fmt"
	"time"

	"skyhook/flightline/internal/models/dtos"
)

// TrackDataProvider defines the interface to an external ADS-B track-data
// source. Implementations may fail or return an empty list; both are valid
// outcomes the import orchestrator has to handle.
type TrackDataProvider interface {
	// SearchFlights returns candidate segments for a tail number inside a
	// time window.
	SearchFlights(ctx context.Context, tailNumber string, start time.Time, end time.Time) ([]dtos.FlightCandidate, error)

	// GetFlight fetches a single known segment by its provider flight id,
	// used when refreshing an already-attached track.
	GetFlight(ctx context.Context, providerFlightID string) (*dtos.FlightCandidate, error)

	// GetProviderType returns the provider type identifier
	GetProviderType() string
}

// ProviderError represents a provider-specific error
type ProviderError struct {
	Code    string
	Message string
	Details string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
