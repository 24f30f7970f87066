package constants

// Track Provider Error Codes
// These constants define specific error scenarios for the external track-data provider

const (
	ErrCodeInvalidAPIKey     = "INVALID_API_KEY"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeNetworkError      = "NETWORK_ERROR"
	ErrCodeInvalidDataFormat = "INVALID_DATA_FORMAT"
	ErrCodeFlightNotFound    = "FLIGHT_NOT_FOUND"
	ErrCodeQueryTimeout      = "QUERY_TIMEOUT"
)

// TrackProviderErrorMessages maps error codes to human-readable messages.
var TrackProviderErrorMessages = map[string]string{
	ErrCodeInvalidAPIKey:     "The track provider API key is invalid or has been revoked",
	ErrCodeRateLimited:       "Track provider rate limit exceeded. Please try again later",
	ErrCodeNetworkError:      "Unable to reach the track provider",
	ErrCodeInvalidDataFormat: "The track provider returned data in an unexpected format",
	ErrCodeFlightNotFound:    "The requested flight was not found at the track provider",
	ErrCodeQueryTimeout:      "The track provider query timed out",
}

// GetErrorMessage returns the human-readable message for an error code
func GetErrorMessage(code string) string {
	if msg, exists := TrackProviderErrorMessages[code]; exists {
		return msg
	}
	return "An unknown error occurred"
}
