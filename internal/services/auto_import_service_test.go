package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"skyhook/flightline/internal/common"
	"skyhook/flightline/internal/constants"
	"skyhook/flightline/internal/models/dtos"
	gormModels "skyhook/flightline/internal/models/gorm"

	"gorm.io/gorm"
)

type importFixture struct {
	db       *gorm.DB
	svc      *AutoImportService
	provider *mockTrackProvider
	user     *gormModels.User
	flight   *gormModels.Flight
}

// newImportFixture builds a flight whose post-flight run is already signed,
// which is the state the import pipeline fires from.
func newImportFixture(t *testing.T) *importFixture {
	t.Helper()

	db := newTestDB(t)
	user := createTestUser(t, db)
	aircraft := createTestAircraft(t, db, user.ID, nil, nil)
	flight := createTestFlight(t, db, user.ID, aircraft.ID)

	signedAtPre := ts(t, "2026-03-01T09:00:00Z")
	signedAtPost := ts(t, "2026-03-01T11:00:00Z")
	decision := constants.DecisionAccepted
	runs := []gormModels.ChecklistRun{
		{FlightID: flight.ID, Phase: constants.PhasePreflight, Status: constants.RunSigned, Decision: &decision, SignedAt: &signedAtPre},
		{FlightID: flight.ID, Phase: constants.PhasePostflight, Status: constants.RunSigned, Decision: &decision, SignedAt: &signedAtPost},
	}
	for i := range runs {
		if err := db.Create(&runs[i]).Error; err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
	}
	if err := db.Model(flight).Update("status", constants.FlightPostflightSigned).Error; err != nil {
		t.Fatalf("failed to update flight status: %v", err)
	}

	provider := &mockTrackProvider{}
	svc := NewAutoImportService(db, provider, common.NewCacheService(60, 600), nil, AutoImportConfig{
		SearchPadding:   time.Hour,
		MatchThreshold:  900,
		AmbiguityMargin: 120,
		QueryTimeout:    time.Second,
		Location:        time.UTC,
	})

	return &importFixture{db: db, svc: svc, provider: provider, user: user, flight: flight}
}

func (f *importFixture) reload(t *testing.T) *gormModels.Flight {
	t.Helper()
	var flight gormModels.Flight
	if err := f.db.Preload("TrackPoints").Where("id = ?", f.flight.ID).First(&flight).Error; err != nil {
		t.Fatalf("failed to reload flight: %v", err)
	}
	return &flight
}

func candidateAt(t *testing.T, id, start, end string) dtos.FlightCandidate {
	t.Helper()
	alt := 4500
	return dtos.FlightCandidate{
		ProviderFlightID: id,
		TailNumber:       "N12345",
		StartTime:        ts(t, start),
		EndTime:          ts(t, end),
		Track: []dtos.CandidateTrackPoint{
			{RecordedAt: ts(t, start), Latitude: 47.44, Longitude: -122.3, AltitudeFeet: &alt},
			{RecordedAt: ts(t, end), Latitude: 47.9, Longitude: -122.28, AltitudeFeet: &alt},
		},
	}
}

func TestRunMatchesBestCandidate(t *testing.T) {
	f := newImportFixture(t)

	// The decoy is hours away; the good candidate brackets the signatures
	good := candidateAt(t, "seg-good", "2026-03-01T08:55:00Z", "2026-03-01T11:05:00Z")
	decoy := candidateAt(t, "seg-decoy", "2026-03-01T16:00:00Z", "2026-03-01T17:00:00Z")
	f.provider.searchFunc = func(ctx context.Context, tail string, start, end time.Time) ([]dtos.FlightCandidate, error) {
		return []dtos.FlightCandidate{decoy, good}, nil
	}

	f.svc.Run(context.Background(), f.flight.ID)

	flight := f.reload(t)
	if flight.AutoImportStatus != constants.ImportMatched {
		t.Fatalf("expected MATCHED, got %q", flight.AutoImportStatus)
	}
	if flight.Status != constants.FlightCompleted {
		t.Errorf("attach should complete the flight, got %s", flight.Status)
	}
	if flight.ProviderFlightID == nil || *flight.ProviderFlightID != "seg-good" {
		t.Errorf("wrong candidate attached: %v", flight.ProviderFlightID)
	}
	if len(flight.TrackPoints) != 2 {
		t.Errorf("expected 2 track points, got %d", len(flight.TrackPoints))
	}
	if flight.StartTime == nil || !flight.StartTime.Equal(ts(t, "2026-03-01T08:55:00Z")) {
		t.Errorf("actual start time should come from the candidate")
	}
	if flight.DurationMinutes == nil || *flight.DurationMinutes != 130 {
		t.Errorf("duration should be derived from the segment, got %v", flight.DurationMinutes)
	}
}

func TestRunAmbiguousOnCloseScores(t *testing.T) {
	f := newImportFixture(t)

	a := candidateAt(t, "seg-a", "2026-03-01T08:55:00Z", "2026-03-01T11:05:00Z")
	b := candidateAt(t, "seg-b", "2026-03-01T08:56:00Z", "2026-03-01T11:05:00Z")
	f.provider.searchFunc = func(ctx context.Context, tail string, start, end time.Time) ([]dtos.FlightCandidate, error) {
		return []dtos.FlightCandidate{a, b}, nil
	}

	f.svc.Run(context.Background(), f.flight.ID)

	flight := f.reload(t)
	if flight.AutoImportStatus != constants.ImportAmbiguous {
		t.Fatalf("expected AMBIGUOUS, got %q", flight.AutoImportStatus)
	}
	if flight.ProviderFlightID != nil {
		t.Errorf("ambiguous result must not attach anything")
	}
	if len(flight.TrackPoints) != 0 {
		t.Errorf("ambiguous result must not write track points")
	}

	// Both candidates stay available for the disambiguation screen
	cached := common.GetCandidatesFromCache(f.svc.cache, f.flight.ID)
	if len(cached) != 2 {
		t.Errorf("expected 2 cached candidates, got %d", len(cached))
	}
}

func TestRunImplausibleBestIsAmbiguous(t *testing.T) {
	f := newImportFixture(t)

	// Overlaps nothing and sits far outside the threshold
	far := candidateAt(t, "seg-far", "2026-03-02T08:00:00Z", "2026-03-02T10:00:00Z")
	f.provider.searchFunc = func(ctx context.Context, tail string, start, end time.Time) ([]dtos.FlightCandidate, error) {
		return []dtos.FlightCandidate{far}, nil
	}

	f.svc.Run(context.Background(), f.flight.ID)

	if flight := f.reload(t); flight.AutoImportStatus != constants.ImportAmbiguous {
		t.Errorf("expected AMBIGUOUS for implausible best, got %q", flight.AutoImportStatus)
	}
}

func TestRunEmptyAfterFullLadder(t *testing.T) {
	f := newImportFixture(t)

	calls := 0
	f.provider.searchFunc = func(ctx context.Context, tail string, start, end time.Time) ([]dtos.FlightCandidate, error) {
		calls++
		return nil, nil
	}

	f.svc.Run(context.Background(), f.flight.ID)

	if flight := f.reload(t); flight.AutoImportStatus != constants.ImportAmbiguous {
		t.Errorf("no results should defer to a human, got %q", flight.AutoImportStatus)
	}
	// Base window plus every ladder rung was tried (UTC location: no tz variants)
	if calls != 3 {
		t.Errorf("expected 3 ladder queries, got %d", calls)
	}
}

func TestRunEscalatesToWiderWindow(t *testing.T) {
	f := newImportFixture(t)

	good := candidateAt(t, "seg-good", "2026-03-01T08:55:00Z", "2026-03-01T11:05:00Z")
	calls := 0
	f.provider.searchFunc = func(ctx context.Context, tail string, start, end time.Time) ([]dtos.FlightCandidate, error) {
		calls++
		// Only the widest window returns anything
		if end.Sub(start) < 24*time.Hour {
			return nil, nil
		}
		return []dtos.FlightCandidate{good}, nil
	}

	f.svc.Run(context.Background(), f.flight.ID)

	flight := f.reload(t)
	if flight.AutoImportStatus != constants.ImportMatched {
		t.Fatalf("expected MATCHED after escalation, got %q", flight.AutoImportStatus)
	}
	if calls != 3 {
		t.Errorf("expected escalation through 3 windows, got %d", calls)
	}
}

func TestRunProviderFailure(t *testing.T) {
	f := newImportFixture(t)

	f.provider.searchFunc = func(ctx context.Context, tail string, start, end time.Time) ([]dtos.FlightCandidate, error) {
		return nil, errors.New("upstream is down")
	}

	f.svc.Run(context.Background(), f.flight.ID)

	flight := f.reload(t)
	if flight.AutoImportStatus != constants.ImportFailed {
		t.Errorf("expected FAILED, got %q", flight.AutoImportStatus)
	}

	// The signature that triggered the run is untouched
	var post gormModels.ChecklistRun
	if err := f.db.Where("flight_id = ? AND phase = ?", f.flight.ID, constants.PhasePostflight).First(&post).Error; err != nil {
		t.Fatalf("failed to load run: %v", err)
	}
	if post.Status != constants.RunSigned {
		t.Errorf("import failure must never touch the signed run, got %s", post.Status)
	}
}

func TestRunSkipsUnsignedPostflight(t *testing.T) {
	f := newImportFixture(t)

	if err := f.db.Model(&gormModels.ChecklistRun{}).
		Where("flight_id = ? AND phase = ?", f.flight.ID, constants.PhasePostflight).
		Update("status", constants.RunInProgress).Error; err != nil {
		t.Fatalf("failed to downgrade run: %v", err)
	}

	f.provider.searchFunc = func(ctx context.Context, tail string, start, end time.Time) ([]dtos.FlightCandidate, error) {
		t.Fatal("provider must not be queried for an unsigned flight")
		return nil, nil
	}

	f.svc.Run(context.Background(), f.flight.ID)

	if flight := f.reload(t); flight.AutoImportStatus != constants.ImportIdle {
		t.Errorf("ineligible flight should stay idle, got %q", flight.AutoImportStatus)
	}
}

func TestAttachConflict(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	other := createTestFlight(t, f.db, f.user.ID, f.flight.AircraftID)
	candidate := candidateAt(t, "seg-1", "2026-03-01T08:55:00Z", "2026-03-01T11:05:00Z")

	if err := f.svc.Attach(ctx, f.flight.ID, f.user.ID, candidate); err != nil {
		t.Fatalf("first attach failed: %v", err)
	}
	if err := f.svc.Attach(ctx, other.ID, f.user.ID, candidate); !errors.Is(err, ErrAttachConflict) {
		t.Errorf("expected ErrAttachConflict, got %v", err)
	}
}

func TestAttachReplacesTrack(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	first := candidateAt(t, "seg-1", "2026-03-01T08:55:00Z", "2026-03-01T11:05:00Z")
	if err := f.svc.Attach(ctx, f.flight.ID, f.user.ID, first); err != nil {
		t.Fatalf("attach failed: %v", err)
	}

	second := candidateAt(t, "seg-1", "2026-03-01T08:50:00Z", "2026-03-01T11:10:00Z")
	second.Track = append(second.Track, dtos.CandidateTrackPoint{
		RecordedAt: ts(t, "2026-03-01T10:00:00Z"), Latitude: 47.6, Longitude: -122.29,
	})
	if err := f.svc.Attach(ctx, f.flight.ID, f.user.ID, second); err != nil {
		t.Fatalf("re-attach failed: %v", err)
	}

	if flight := f.reload(t); len(flight.TrackPoints) != 3 {
		t.Errorf("re-attach should replace, not append: got %d points", len(flight.TrackPoints))
	}
}

func TestAttachByProviderFlightIDFallsBackToProvider(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	fetched := false
	f.provider.getFunc = func(ctx context.Context, id string) (*dtos.FlightCandidate, error) {
		fetched = true
		c := candidateAt(t, id, "2026-03-01T08:55:00Z", "2026-03-01T11:05:00Z")
		return &c, nil
	}

	if err := f.svc.AttachByProviderFlightID(ctx, f.flight.ID, f.user.ID, "seg-manual"); err != nil {
		t.Fatalf("AttachByProviderFlightID failed: %v", err)
	}
	if !fetched {
		t.Errorf("cache miss should fall back to a provider fetch")
	}
	if flight := f.reload(t); flight.ProviderFlightID == nil || *flight.ProviderFlightID != "seg-manual" {
		t.Errorf("manual attach did not record the provider flight id")
	}
}

func TestRefreshTrackRequiresAttachment(t *testing.T) {
	f := newImportFixture(t)
	if err := f.svc.RefreshTrack(context.Background(), f.flight.ID, f.user.ID); !errors.Is(err, ErrNotAttached) {
		t.Errorf("expected ErrNotAttached, got %v", err)
	}
}

func TestSearchCandidatesExplicitWindow(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	var gotStart, gotEnd time.Time
	f.provider.searchFunc = func(ctx context.Context, tail string, start, end time.Time) ([]dtos.FlightCandidate, error) {
		gotStart, gotEnd = start, end
		return []dtos.FlightCandidate{candidateAt(t, "seg-1", "2026-03-01T08:55:00Z", "2026-03-01T11:05:00Z")}, nil
	}

	window := &Interval{Start: ts(t, "2026-03-01T00:00:00Z"), End: ts(t, "2026-03-02T00:00:00Z")}
	ranked, err := f.svc.SearchCandidates(ctx, f.flight.ID, f.user.ID, window)
	if err != nil {
		t.Fatalf("SearchCandidates failed: %v", err)
	}
	if len(ranked) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(ranked))
	}
	if !gotStart.Equal(window.Start) || !gotEnd.Equal(window.End) {
		t.Errorf("explicit window not forwarded to the provider")
	}

	if _, err := f.svc.SearchCandidates(ctx, f.flight.ID, f.user.ID, &Interval{Start: window.End, End: window.Start}); !errors.Is(err, ErrMalformedInput) {
		t.Errorf("inverted explicit window should be rejected, got %v", err)
	}
}

func TestListCachedCandidatesOwnerOnly(t *testing.T) {
	f := newImportFixture(t)
	ctx := context.Background()

	f.provider.searchFunc = func(ctx context.Context, tail string, start, end time.Time) ([]dtos.FlightCandidate, error) {
		return []dtos.FlightCandidate{candidateAt(t, "seg-1", "2026-03-01T08:55:00Z", "2026-03-01T11:05:00Z")}, nil
	}
	if _, err := f.svc.SearchCandidates(ctx, f.flight.ID, f.user.ID, nil); err != nil {
		t.Fatalf("SearchCandidates failed: %v", err)
	}

	other, err := NewUserService(f.db).CreateUser(ctx, "intruder@example.com", "Izzy Intruder", testPassword)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	// The cached list is per-user data: a hit must not bypass ownership
	if _, err := f.svc.ListCachedCandidates(ctx, f.flight.ID, other.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for a non-owner, got %v", err)
	}

	ranked, err := f.svc.ListCachedCandidates(ctx, f.flight.ID, f.user.ID)
	if err != nil {
		t.Fatalf("ListCachedCandidates failed: %v", err)
	}
	if len(ranked) != 1 {
		t.Errorf("owner should see the cached candidate, got %d", len(ranked))
	}
}

func TestAttachByProviderFlightIDWithoutCache(t *testing.T) {
	f := newImportFixture(t)
	f.svc.cache = nil
	ctx := context.Background()

	f.provider.getFunc = func(ctx context.Context, id string) (*dtos.FlightCandidate, error) {
		c := candidateAt(t, id, "2026-03-01T08:55:00Z", "2026-03-01T11:05:00Z")
		return &c, nil
	}

	if err := f.svc.AttachByProviderFlightID(ctx, f.flight.ID, f.user.ID, "seg-nocache"); err != nil {
		t.Fatalf("AttachByProviderFlightID failed: %v", err)
	}
	if flight := f.reload(t); flight.ProviderFlightID == nil || *flight.ProviderFlightID != "seg-nocache" {
		t.Errorf("attach did not record the provider flight id")
	}
}
