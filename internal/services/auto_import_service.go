package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"skyhook/flightline/internal/common"
	"skyhook/flightline/internal/constants"
	"skyhook/flightline/internal/db/repositories"
	"skyhook/flightline/internal/logging"
	"skyhook/flightline/internal/metrics"
	"skyhook/flightline/internal/models/dtos"
	gormModels "skyhook/flightline/internal/models/gorm"
	"skyhook/flightline/internal/providers"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// AutoImportConfig tunes the matching policy. The ambiguity margin and the
// match threshold are deliberately explicit parameters, not hard-coded.
type AutoImportConfig struct {
	// SearchPadding widens the reference interval into the search window.
	SearchPadding time.Duration
	// MatchThreshold is the worst score still considered a plausible match,
	// in seconds of temporal distance.
	MatchThreshold float64
	// AmbiguityMargin: when the runner-up scores within this many seconds of
	// the best candidate, the result is ambiguous.
	AmbiguityMargin float64
	// QueryTimeout bounds each individual provider query attempt.
	QueryTimeout time.Duration
	// Location resolves the timezone-offset correction applied to widened
	// windows, for providers that silently localize timestamps.
	Location *time.Location
	// CandidateTTL is how long ranked candidate lists stay cached for the
	// disambiguation screen.
	CandidateTTL time.Duration
}

// NewAutoImportConfigFromEnv builds the config with env overrides.
func NewAutoImportConfigFromEnv() AutoImportConfig {
	cfg := AutoImportConfig{
		SearchPadding:   DefaultSearchPadding,
		MatchThreshold:  900,
		AmbiguityMargin: 120,
		QueryTimeout:    20 * time.Second,
		Location:        time.Local,
		CandidateTTL:    30 * time.Minute,
	}

	if v := os.Getenv("IMPORT_MATCH_THRESHOLD_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.MatchThreshold = f
		}
	}
	if v := os.Getenv("IMPORT_AMBIGUITY_MARGIN_SECONDS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			cfg.AmbiguityMargin = f
		}
	}

	return cfg
}

// escalationLadder is the fixed sequence of window widenings tried when a
// narrower window yields nothing.
var escalationLadder = []time.Duration{4 * time.Hour, 24 * time.Hour}

// AutoImportService sequences the import pipeline: derive window, query the
// provider across the escalation ladder, dedupe, score, then attach the
// winner or defer to a human.
type AutoImportService struct {
	db         *gorm.DB
	provider   providers.TrackDataProvider
	flightRepo *repositories.FlightRepository
	cache      common.CacheInterface
	metrics    *metrics.MetricsRegistry
	cfg        AutoImportConfig
	group      singleflight.Group
}

func NewAutoImportService(
	db *gorm.DB,
	provider providers.TrackDataProvider,
	cache common.CacheInterface,
	reg *metrics.MetricsRegistry,
	cfg AutoImportConfig,
) *AutoImportService {
	if cfg.SearchPadding <= 0 {
		cfg.SearchPadding = DefaultSearchPadding
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 20 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.CandidateTTL <= 0 {
		cfg.CandidateTTL = 30 * time.Minute
	}
	return &AutoImportService{
		db:         db,
		provider:   provider,
		flightRepo: repositories.NewFlightRepository(db),
		cache:      cache,
		metrics:    reg,
		cfg:        cfg,
	}
}

// ============================================================================
// Orchestration
// ============================================================================

// Run executes the full import pipeline for a flight. Concurrent triggers
// for the same flight collapse into one execution. Provider failures are
// downgraded to autoImportStatus FAILED and never returned as an error of
// the checklist operation that triggered the run.
func (svc *AutoImportService) Run(ctx context.Context, flightID string) {
	_, _, _ = svc.group.Do(flightID, func() (interface{}, error) {
		svc.run(ctx, flightID)
		return nil, nil
	})
}

func (svc *AutoImportService) run(ctx context.Context, flightID string) {
	flight, err := svc.flightRepo.GetFlightWithRuns(ctx, flightID)
	if err != nil {
		logging.Error("auto-import: flight load failed", "flight_id", flightID, "error", err.Error())
		return
	}

	log := logging.WithFlight(flight.ID, flight.UserID)

	// Eligibility gate: no state change when the flight is not ready
	post := flight.RunForPhase(constants.PhasePostflight)
	if post == nil || !post.IsSigned() {
		log.Infow("auto-import skipped, post-flight run not signed")
		return
	}
	if flight.TailNumber == "" {
		log.Infow("auto-import skipped, no tail number")
		return
	}

	svc.setImportStatus(ctx, flight, constants.ImportRunning)

	ref, search, err := DeriveWindows(flight, svc.cfg.SearchPadding)
	if err != nil {
		log.Warnw("auto-import: window derivation failed", "error", err.Error())
		svc.setImportStatus(ctx, flight, constants.ImportFailed)
		svc.countOutcome("failed")
		return
	}

	raw, err := svc.queryLadder(ctx, flight.TailNumber, ref, search)
	if err != nil {
		log.Errorw("auto-import: provider query failed", "error", err.Error())
		svc.setImportStatus(ctx, flight, constants.ImportFailed)
		svc.countOutcome("failed")
		return
	}

	ranked := RankCandidates(ref, DedupeCandidates(raw))
	svc.cacheCandidates(flight.ID, ranked)

	if len(ranked) == 0 {
		log.Infow("auto-import: no candidates found", "search_start", search.Start, "search_end", search.End)
		svc.setImportStatus(ctx, flight, constants.ImportAmbiguous)
		svc.countOutcome("empty")
		return
	}

	best := ranked[0]
	if best.Score > svc.cfg.MatchThreshold {
		log.Infow("auto-import: best candidate not plausible", "score", best.Score)
		svc.setImportStatus(ctx, flight, constants.ImportAmbiguous)
		svc.countOutcome("ambiguous")
		return
	}
	if len(ranked) > 1 && ranked[1].Score-best.Score <= svc.cfg.AmbiguityMargin {
		log.Infow("auto-import: runner-up too close", "best", best.Score, "runner_up", ranked[1].Score)
		svc.setImportStatus(ctx, flight, constants.ImportAmbiguous)
		svc.countOutcome("ambiguous")
		return
	}

	if err := svc.Attach(ctx, flight.ID, flight.UserID, best.Candidate); err != nil {
		log.Errorw("auto-import: attach failed", "error", err.Error())
		svc.setImportStatus(ctx, flight, constants.ImportFailed)
		svc.countOutcome("failed")
		return
	}

	log.Infow("auto-import: matched", "provider_flight_id", best.Candidate.ProviderFlightID, "score", best.Score)
	svc.countOutcome("matched")
}

// queryLadder runs the provider query across progressively wider windows,
// stopping at the first non-empty result. Each widened rung is retried with
// a timezone-offset-shifted variant to compensate for providers that
// silently localize timestamps.
func (svc *AutoImportService) queryLadder(ctx context.Context, tailNumber string, ref Interval, search Interval) ([]dtos.FlightCandidate, error) {
	windows := []Interval{search}
	_, offsetSeconds := ref.Start.In(svc.cfg.Location).Zone()
	tzShift := -time.Duration(offsetSeconds) * time.Second

	for _, widen := range escalationLadder {
		w := ref.Pad(widen)
		windows = append(windows, w)
		if tzShift != 0 {
			windows = append(windows, w.Shift(tzShift))
		}
	}

	var lastErr error
	for _, w := range windows {
		candidates, err := svc.query(ctx, tailNumber, w)
		if err != nil {
			lastErr = err
			continue
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (svc *AutoImportService) query(ctx context.Context, tailNumber string, w Interval) ([]dtos.FlightCandidate, error) {
	qctx, cancel := context.WithTimeout(ctx, svc.cfg.QueryTimeout)
	defer cancel()

	start := time.Now()
	candidates, err := svc.provider.SearchFlights(qctx, tailNumber, w.Start, w.End)
	if svc.metrics != nil {
		svc.metrics.ProviderQueryDuration.WithLabelValues(svc.provider.GetProviderType()).Observe(time.Since(start).Seconds())
	}
	return candidates, err
}

// ============================================================================
// Manual operations
// ============================================================================

// SearchCandidates returns the ranked candidate list for a flight, using a
// caller-supplied window when given, otherwise the derived one. Results are
// cached for the disambiguation screen.
func (svc *AutoImportService) SearchCandidates(ctx context.Context, flightID string, userID string, explicit *Interval) ([]dtos.RankedCandidate, error) {
	flight, err := svc.flightRepo.GetFlightWithRuns(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if flight.UserID != userID {
		return nil, ErrForbidden
	}
	if flight.TailNumber == "" {
		return nil, ErrNoTailNumber
	}

	ref, search, err := DeriveWindows(flight, svc.cfg.SearchPadding)
	if err != nil {
		return nil, err
	}
	if explicit != nil {
		if !explicit.End.After(explicit.Start) {
			return nil, fmt.Errorf("%w: window end must be after start", ErrMalformedInput)
		}
		search = *explicit
	}

	raw, err := svc.query(ctx, flight.TailNumber, search)
	if err != nil {
		return nil, err
	}

	ranked := RankCandidates(ref, DedupeCandidates(raw))
	svc.cacheCandidates(flight.ID, ranked)
	return ranked, nil
}

// ListCachedCandidates serves the ranked list produced by the last search or
// import run; a cache miss re-queries with the derived window. Ownership is
// checked before the cache is consulted, the list is per-user data.
func (svc *AutoImportService) ListCachedCandidates(ctx context.Context, flightID string, userID string) ([]dtos.RankedCandidate, error) {
	flight, err := svc.flightRepo.GetFlightWithRuns(ctx, flightID)
	if err != nil {
		return nil, err
	}
	if flight.UserID != userID {
		return nil, ErrForbidden
	}

	if svc.cache != nil {
		if cached := common.GetCandidatesFromCache(svc.cache, flightID); cached != nil {
			return cached, nil
		}
	}
	return svc.SearchCandidates(ctx, flightID, userID, nil)
}

// AttachByProviderFlightID resolves a candidate by its identifier (from the
// cached list, falling back to a provider fetch) and attaches it. This is
// the primitive the disambiguation screen calls once a human picks.
func (svc *AutoImportService) AttachByProviderFlightID(ctx context.Context, flightID string, userID string, providerFlightID string) error {
	if providerFlightID == "" {
		return fmt.Errorf("%w: provider flight id is required", ErrMalformedInput)
	}

	flight, err := svc.flightRepo.GetFlightWithRuns(ctx, flightID)
	if err != nil {
		return err
	}
	if flight.UserID != userID {
		return ErrForbidden
	}

	var candidate *dtos.FlightCandidate
	if svc.cache != nil {
		for _, rc := range common.GetCandidatesFromCache(svc.cache, flightID) {
			if rc.Candidate.ProviderFlightID == providerFlightID {
				c := rc.Candidate
				candidate = &c
				break
			}
		}
	}

	if candidate == nil {
		fetched, err := svc.provider.GetFlight(ctx, providerFlightID)
		if err != nil {
			return err
		}
		candidate = fetched
	}

	if err := svc.Attach(ctx, flightID, userID, *candidate); err != nil {
		return err
	}

	if svc.cache != nil {
		svc.cache.Delete(common.CandidateCacheKey(flightID))
	}
	svc.countOutcome("matched")
	return nil
}

// RefreshTrack re-fetches an already-attached flight's segment by its known
// provider flight id and replaces the stored track wholesale.
func (svc *AutoImportService) RefreshTrack(ctx context.Context, flightID string, userID string) error {
	flight, err := svc.flightRepo.GetFlightWithRuns(ctx, flightID)
	if err != nil {
		return err
	}
	if flight.UserID != userID {
		return ErrForbidden
	}
	if flight.ProviderFlightID == nil || *flight.ProviderFlightID == "" {
		return ErrNotAttached
	}

	candidate, err := svc.provider.GetFlight(ctx, *flight.ProviderFlightID)
	if err != nil {
		return err
	}

	return svc.Attach(ctx, flightID, userID, *candidate)
}

// ============================================================================
// Attach
// ============================================================================

// Attach materializes a candidate into the flight: replaces the track
// (delete-then-insert), fills the actual times and stats, and completes the
// flight, all in one transaction. A provider flight id already attached to a
// different flight of the same user is a conflict, never an overwrite.
func (svc *AutoImportService) Attach(ctx context.Context, flightID string, userID string, candidate dtos.FlightCandidate) error {
	if candidate.ProviderFlightID == "" {
		return fmt.Errorf("%w: candidate has no provider flight id", ErrMalformedInput)
	}

	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var flight gormModels.Flight
		if err := tx.Where("id = ?", flightID).First(&flight).Error; err != nil {
			return fmt.Errorf("failed to fetch flight: %w", err)
		}
		if flight.UserID != userID {
			return ErrForbidden
		}

		var conflict gormModels.Flight
		err := tx.Where("user_id = ? AND provider_flight_id = ? AND id <> ?", userID, candidate.ProviderFlightID, flightID).
			First(&conflict).Error
		if err == nil {
			return fmt.Errorf("%w: %s", ErrAttachConflict, candidate.ProviderFlightID)
		}
		if err != gorm.ErrRecordNotFound {
			return fmt.Errorf("failed to check provider flight id: %w", err)
		}

		// Replace the track wholesale so a concurrent reader never sees a
		// partially-replaced set
		if err := tx.Where("flight_id = ?", flightID).Delete(&gormModels.TrackPoint{}).Error; err != nil {
			return fmt.Errorf("failed to clear track: %w", err)
		}

		for _, p := range candidate.Track {
			point := gormModels.TrackPoint{
				FlightID:      flightID,
				RecordedAt:    p.RecordedAt,
				Latitude:      p.Latitude,
				Longitude:     p.Longitude,
				AltitudeFeet:  p.AltitudeFeet,
				GroundspeedKt: p.GroundspeedKt,
				HeadingDeg:    p.HeadingDeg,
			}
			if err := tx.Create(&point).Error; err != nil {
				return fmt.Errorf("failed to insert track point: %w", err)
			}
		}

		if svc.metrics != nil {
			svc.metrics.TrackPointsWritten.Add(float64(len(candidate.Track)))
		}

		duration := candidate.DurationMinutes
		if duration == nil {
			d := int(candidate.EndTime.Sub(candidate.StartTime).Minutes())
			duration = &d
		}

		updates := map[string]interface{}{
			"start_time":         candidate.StartTime,
			"end_time":           candidate.EndTime,
			"duration_minutes":   duration,
			"distance_nm":        candidate.DistanceNm,
			"departure_label":    candidate.DepLabel,
			"arrival_label":      candidate.ArrLabel,
			"imported_provider":  svc.provider.GetProviderType(),
			"provider_flight_id": candidate.ProviderFlightID,
			"status":             constants.FlightCompleted,
			"auto_import_status": constants.ImportMatched,
		}
		if candidate.Stats != nil {
			updates["max_altitude_feet"] = candidate.Stats.MaxAltitudeFeet
			updates["max_groundspeed_kt"] = candidate.Stats.MaxGroundspeedKt
		}

		if err := tx.Model(&flight).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update flight: %w", err)
		}

		return nil
	})
}

// ============================================================================
// Helpers
// ============================================================================

func (svc *AutoImportService) setImportStatus(ctx context.Context, flight *gormModels.Flight, status constants.ImportStatus) {
	err := svc.db.WithContext(ctx).
		Model(&gormModels.Flight{}).
		Where("id = ?", flight.ID).
		Update("auto_import_status", status).Error
	if err != nil {
		logging.Error("failed to update import status", "flight_id", flight.ID, "status", status.String(), "error", err.Error())
		return
	}
	flight.AutoImportStatus = status
}

func (svc *AutoImportService) cacheCandidates(flightID string, ranked []dtos.RankedCandidate) {
	if svc.cache == nil {
		return
	}
	svc.cache.Set(common.CandidateCacheKey(flightID), ranked, svc.cfg.CandidateTTL)
}

func (svc *AutoImportService) countOutcome(outcome string) {
	if svc.metrics == nil {
		return
	}
	svc.metrics.ImportOutcomesTotal.WithLabelValues(outcome).Inc()
}
