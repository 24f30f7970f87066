package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"skyhook/flightline/internal/constants"
	"skyhook/flightline/internal/models/dtos"
)

// ADSBProvider implements TrackDataProvider against an ADS-B aggregator's
// HTTP API.
type ADSBProvider struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// Ensure ADSBProvider implements TrackDataProvider
var _ TrackDataProvider = (*ADSBProvider)(nil)

// NewADSBProvider creates a new ADS-B track provider, reading config from
// environment variables.
func NewADSBProvider() *ADSBProvider {
	baseURL := os.Getenv("ADSB_API_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.adsb.example.com/v2" // Default
	}
	apiKey := os.Getenv("ADSB_API_KEY")

	return &ADSBProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// GetProviderType returns the provider type identifier
func (p *ADSBProvider) GetProviderType() string {
	return "adsb_exchange"
}

// SearchFlights returns every segment the aggregator reports for the tail
// number inside [start, end].
func (p *ADSBProvider) SearchFlights(ctx context.Context, tailNumber string, start time.Time, end time.Time) ([]dtos.FlightCandidate, error) {
	// Input validation
	if tailNumber == "" {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Tail number cannot be empty",
		}
	}
	if !end.After(start) {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Search window end must be after start",
		}
	}

	endpoint := fmt.Sprintf("/flights?registration=%s&start=%s&end=%s",
		url.QueryEscape(tailNumber),
		url.QueryEscape(start.UTC().Format(time.RFC3339)),
		url.QueryEscape(end.UTC().Format(time.RFC3339)),
	)

	var raw dtos.TrackSearchRawResponse
	if err := p.doGET(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	if raw.ErrorCode != 0 {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: fmt.Sprintf("provider returned errorCode %d", raw.ErrorCode),
		}
	}

	return raw.Result, nil
}

// GetFlight fetches one segment by provider flight id.
func (p *ADSBProvider) GetFlight(ctx context.Context, providerFlightID string) (*dtos.FlightCandidate, error) {
	if providerFlightID == "" {
		return nil, &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Provider flight id cannot be empty",
		}
	}

	endpoint := "/flights/" + url.PathEscape(providerFlightID)

	var raw dtos.TrackFlightRawResponse
	if err := p.doGET(ctx, endpoint, &raw); err != nil {
		return nil, err
	}

	if raw.Result == nil {
		return nil, &ProviderError{
			Code:    constants.ErrCodeFlightNotFound,
			Message: constants.GetErrorMessage(constants.ErrCodeFlightNotFound),
		}
	}

	return raw.Result, nil
}

// doGET performs a GET request with authentication
func (p *ADSBProvider) doGET(ctx context.Context, endpoint string, result interface{}) error {
	// Validate API key
	if p.APIKey == "" {
		return &ProviderError{
			Code:    constants.ErrCodeInvalidAPIKey,
			Message: "ADSB_API_KEY environment variable is not set",
		}
	}

	// Build request
	req, err := http.NewRequestWithContext(ctx, "GET", p.BaseURL+endpoint, nil)
	if err != nil {
		return &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: "Failed to create request",
			Err:     err,
		}
	}

	// Set headers
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	// Execute request
	resp, err := p.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &ProviderError{
				Code:    constants.ErrCodeQueryTimeout,
				Message: constants.GetErrorMessage(constants.ErrCodeQueryTimeout),
				Err:     err,
			}
		}
		return &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: constants.GetErrorMessage(constants.ErrCodeNetworkError),
			Err:     err,
		}
	}
	defer resp.Body.Close()

	// Handle HTTP errors
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return p.buildHTTPError(resp.StatusCode, endpoint, string(bodyBytes))
	}

	// Parse response
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &ProviderError{
			Code:    constants.ErrCodeInvalidDataFormat,
			Message: "Failed to decode response",
			Err:     err,
		}
	}

	return nil
}

// buildHTTPError creates appropriate error based on status code
func (p *ADSBProvider) buildHTTPError(statusCode int, endpoint string, body string) error {
	switch statusCode {
	case http.StatusUnauthorized:
		return &ProviderError{
			Code:    constants.ErrCodeInvalidAPIKey,
			Message: fmt.Sprintf("Authentication failed for endpoint %s", endpoint),
			Details: body,
		}
	case http.StatusNotFound:
		return &ProviderError{
			Code:    constants.ErrCodeFlightNotFound,
			Message: fmt.Sprintf("Resource not found: %s", endpoint),
			Details: body,
		}
	case http.StatusTooManyRequests:
		return &ProviderError{
			Code:    constants.ErrCodeRateLimited,
			Message: constants.GetErrorMessage(constants.ErrCodeRateLimited),
			Details: body,
		}
	default:
		return &ProviderError{
			Code:    constants.ErrCodeNetworkError,
			Message: fmt.Sprintf("HTTP %d from %s", statusCode, endpoint),
			Details: body,
		}
	}
}
