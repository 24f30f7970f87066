package services

import (
	"sort"
	"time"

	"skyhook/flightline/internal/constants"
	"skyhook/flightline/internal/models/dtos"
	gormModels "skyhook/flightline/internal/models/gorm"
)

// Interval is a closed time span.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Duration returns the interval length; zero when inverted.
func (iv Interval) Duration() time.Duration {
	if iv.End.Before(iv.Start) {
		return 0
	}
	return iv.End.Sub(iv.Start)
}

// Shift returns the interval moved by d.
func (iv Interval) Shift(d time.Duration) Interval {
	return Interval{Start: iv.Start.Add(d), End: iv.End.Add(d)}
}

// Pad returns the interval widened by d on both sides.
func (iv Interval) Pad(d time.Duration) Interval {
	return Interval{Start: iv.Start.Add(-d), End: iv.End.Add(d)}
}

// DefaultSearchPadding is how far the search window extends beyond the
// reference interval. Provider data is keyed to actual wheels-up/down, which
// can differ from signed-checklist times by taxi and delays.
const DefaultSearchPadding = 3 * time.Hour

// defaultReferenceSpan fills in a missing bound when only one side of the
// reference interval can be derived.
const defaultReferenceSpan = 2 * time.Hour

// DeriveWindows computes the scoring reference interval and the wider
// provider search interval for a flight. The reference prefers checklist
// signature timestamps, then actual flight times, then planned times.
func DeriveWindows(flight *gormModels.Flight, padding time.Duration) (ref Interval, search Interval, err error) {
	pre := flight.RunForPhase(constants.PhasePreflight)
	post := flight.RunForPhase(constants.PhasePostflight)

	var start, end *time.Time

	if pre != nil && pre.SignedAt != nil {
		start = pre.SignedAt
	} else if flight.StartTime != nil {
		start = flight.StartTime
	} else if flight.PlannedStartTime != nil {
		start = flight.PlannedStartTime
	}

	if post != nil && post.SignedAt != nil {
		end = post.SignedAt
	} else if flight.EndTime != nil {
		end = flight.EndTime
	} else if flight.PlannedEndTime != nil {
		end = flight.PlannedEndTime
	}

	if start == nil && end == nil {
		return Interval{}, Interval{}, ErrNoTimeSignals
	}
	if start == nil {
		s := end.Add(-defaultReferenceSpan)
		start = &s
	}
	if end == nil {
		e := start.Add(defaultReferenceSpan)
		end = &e
	}
	if end.Before(*start) {
		return Interval{}, Interval{}, ErrNoTimeSignals
	}

	ref = Interval{Start: *start, End: *end}
	if padding <= 0 {
		padding = DefaultSearchPadding
	}
	return ref, ref.Pad(padding), nil
}

// DedupeCandidates collapses duplicate provider reports: at most one entry
// per provider flight id, first occurrence wins, original order preserved.
// Candidates without an identifier are dropped since they could never be
// safely re-attached later.
func DedupeCandidates(candidates []dtos.FlightCandidate) []dtos.FlightCandidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]dtos.FlightCandidate, 0, len(candidates))

	for _, c := range candidates {
		if c.ProviderFlightID == "" {
			continue
		}
		if _, dup := seen[c.ProviderFlightID]; dup {
			continue
		}
		seen[c.ProviderFlightID] = struct{}{}
		out = append(out, c)
	}

	return out
}

// ScoreCandidate computes the temporal distance between a candidate segment
// and the reference interval. Zero means the candidate fully covers the
// reference; the score grows with every reference second the candidate does
// not cover, plus the gap when the two do not touch at all.
func ScoreCandidate(ref Interval, c dtos.FlightCandidate) float64 {
	overlapStart := ref.Start
	if c.StartTime.After(overlapStart) {
		overlapStart = c.StartTime
	}
	overlapEnd := ref.End
	if c.EndTime.Before(overlapEnd) {
		overlapEnd = c.EndTime
	}

	var overlap time.Duration
	if overlapEnd.After(overlapStart) {
		overlap = overlapEnd.Sub(overlapStart)
	}

	uncovered := ref.Duration() - overlap

	var gap time.Duration
	if c.StartTime.After(ref.End) {
		gap = c.StartTime.Sub(ref.End)
	} else if c.EndTime.Before(ref.Start) {
		gap = ref.Start.Sub(c.EndTime)
	}

	return (uncovered + gap).Seconds()
}

// RankCandidates scores and sorts candidates ascending by score. The sort is
// stable so ties keep their discovery order and repeated runs against the
// same data stay deterministic.
func RankCandidates(ref Interval, candidates []dtos.FlightCandidate) []dtos.RankedCandidate {
	ranked := make([]dtos.RankedCandidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, dtos.RankedCandidate{
			Candidate: c,
			Score:     ScoreCandidate(ref, c),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score < ranked[j].Score
	})

	return ranked
}
