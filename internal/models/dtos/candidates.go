package dtos

import "time"

// CandidateStats carries the optional performance numbers a provider reports
// for a flight segment.
type CandidateStats struct {
	MaxAltitudeFeet  *int `json:"maxAltitudeFeet,omitempty"`
	MaxGroundspeedKt *int `json:"maxGroundspeedKt,omitempty"`
}

// CandidateTrackPoint is one position sample inside a provider report.
type CandidateTrackPoint struct {
	RecordedAt    time.Time `json:"recordedAt"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	AltitudeFeet  *int      `json:"altitudeFeet,omitempty"`
	GroundspeedKt *int      `json:"groundspeedKt,omitempty"`
	HeadingDeg    *int      `json:"headingDeg,omitempty"`
}

// FlightCandidate is a provider-reported flight segment not yet attached to
// any local flight. It only becomes persistent when materialized by attach.
type FlightCandidate struct {
	ProviderFlightID string                `json:"providerFlightId"`
	TailNumber       string                `json:"tailNumber"`
	StartTime        time.Time             `json:"startTime"`
	EndTime          time.Time             `json:"endTime"`
	DurationMinutes  *int                  `json:"durationMinutes,omitempty"`
	DistanceNm       *float64              `json:"distanceNm,omitempty"`
	DepLabel         *string               `json:"depLabel,omitempty"`
	ArrLabel         *string               `json:"arrLabel,omitempty"`
	Stats            *CandidateStats       `json:"stats,omitempty"`
	Track            []CandidateTrackPoint `json:"track,omitempty"`
}

// RankedCandidate pairs a candidate with its temporal-distance score. Lower
// is better; zero means perfect containment in the reference interval.
type RankedCandidate struct {
	Candidate FlightCandidate `json:"candidate"`
	Score     float64         `json:"score"`
}

// TrackSearchRawResponse is the provider's wire shape for a search query.
type TrackSearchRawResponse struct {
	ErrorCode int               `json:"errorCode"`
	Result    []FlightCandidate `json:"result"`
}

// TrackFlightRawResponse is the provider's wire shape for a single-flight fetch.
type TrackFlightRawResponse struct {
	ErrorCode int              `json:"errorCode"`
	Result    *FlightCandidate `json:"result"`
}
