package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"skyhook/flightline/internal/common"
	"skyhook/flightline/internal/constants"
	gormModels "skyhook/flightline/internal/models/gorm"

	"gorm.io/gorm"
)

type runFixture struct {
	db         *gorm.DB
	svc        *ChecklistRunService
	users      *UserService
	dispatcher *recordingDispatcher
	user       *gormModels.User
	aircraft   *gormModels.Aircraft
	flight     *gormModels.Flight
	preTmpl    *gormModels.ChecklistTemplate
	postTmpl   *gormModels.ChecklistTemplate
}

func newRunFixture(t *testing.T) *runFixture {
	t.Helper()

	db := newTestDB(t)
	user := createTestUser(t, db)
	preTmpl := createTestTemplate(t, db, user.ID, constants.PhasePreflight, []string{"Fuel quantity", "Controls free"})
	postTmpl := createTestTemplate(t, db, user.ID, constants.PhasePostflight, []string{"Master off", "Tie down"})
	aircraft := createTestAircraft(t, db, user.ID, &preTmpl.ID, &postTmpl.ID)
	flight := createTestFlight(t, db, user.ID, aircraft.ID)

	users := NewUserService(db)
	templates := NewChecklistTemplateService(db)
	dispatcher := &recordingDispatcher{}
	svc := NewChecklistRunService(db, users, templates, common.NewMemoryAttemptLimiter(5, time.Minute), dispatcher)

	return &runFixture{
		db:         db,
		svc:        svc,
		users:      users,
		dispatcher: dispatcher,
		user:       user,
		aircraft:   aircraft,
		flight:     flight,
		preTmpl:    preTmpl,
		postTmpl:   postTmpl,
	}
}

func (f *runFixture) runItems(t *testing.T, runID string) []gormModels.RunItem {
	t.Helper()
	var items []gormModels.RunItem
	if err := f.db.Where("run_id = ?", runID).Order("official_order ASC").Find(&items).Error; err != nil {
		t.Fatalf("failed to load run items: %v", err)
	}
	return items
}

func (f *runFixture) completeAllSteps(t *testing.T, runID string) {
	t.Helper()
	yes := true
	for _, item := range f.runItems(t, runID) {
		if item.Kind != constants.KindStep {
			continue
		}
		if _, err := f.svc.UpdateItem(context.Background(), runID, item.ID, f.user.ID, ItemUpdate{ValueYesNo: &yes}); err != nil {
			t.Fatalf("failed to complete item %q: %v", item.Label, err)
		}
	}
}

func (f *runFixture) signPreflight(t *testing.T) *gormModels.ChecklistRun {
	t.Helper()
	run, err := f.svc.StartRun(context.Background(), f.flight.ID, constants.PhasePreflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	f.completeAllSteps(t, run.ID)
	signed, err := f.svc.SignRun(context.Background(), f.flight.ID, constants.PhasePreflight, f.user.ID, testPassword, SignatureContext{Name: f.user.Name})
	if err != nil {
		t.Fatalf("SignRun failed: %v", err)
	}
	return signed
}

func TestStartRunSnapshotsTemplate(t *testing.T) {
	f := newRunFixture(t)

	run, err := f.svc.StartRun(context.Background(), f.flight.ID, constants.PhasePreflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if run.Status != constants.RunInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", run.Status)
	}

	items := f.runItems(t, run.ID)
	if len(items) != 3 {
		t.Fatalf("expected 3 snapshot items (section + 2 steps), got %d", len(items))
	}

	section := items[0]
	if section.Kind != constants.KindSection || section.ParentID != nil {
		t.Errorf("first item should be a top-level section")
	}
	for _, step := range items[1:] {
		if step.Kind != constants.KindStep {
			t.Errorf("expected step, got %s", step.Kind)
		}
		if step.ParentID == nil || *step.ParentID != section.ID {
			t.Errorf("step parent should point at the snapshotted section, not the template item")
		}
		if step.TemplateItemID == "" {
			t.Errorf("snapshot should record its source template item")
		}
	}
}

func TestStartRunEditingTemplateAfterSnapshotDoesNotChangeRun(t *testing.T) {
	f := newRunFixture(t)

	run, err := f.svc.StartRun(context.Background(), f.flight.ID, constants.PhasePreflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	// Mutate the template after the snapshot was taken
	if err := f.db.Model(&gormModels.TemplateItem{}).
		Where("template_id = ?", f.preTmpl.ID).
		Update("label", "changed").Error; err != nil {
		t.Fatalf("failed to edit template: %v", err)
	}

	for _, item := range f.runItems(t, run.ID) {
		if item.Label == "changed" {
			t.Errorf("run item label changed with the template; snapshot is not frozen")
		}
	}
}

func TestStartRunRestartReplacesSnapshot(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	run, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	other := createTestTemplate(t, f.db, f.user.ID, constants.PhasePreflight, []string{"Only step"})
	again, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, &other.ID)
	if err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if again.ID != run.ID {
		t.Errorf("restart should reuse the same run row")
	}

	items := f.runItems(t, run.ID)
	if len(items) != 2 {
		t.Errorf("expected replaced snapshot with 2 items, got %d", len(items))
	}
}

func TestStartRunRestartBlockedOnceInProgress(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	run, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	yes := true
	items := f.runItems(t, run.ID)
	if _, err := f.svc.UpdateItem(ctx, run.ID, items[1].ID, f.user.ID, ItemUpdate{ValueYesNo: &yes}); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}

	other := createTestTemplate(t, f.db, f.user.ID, constants.PhasePreflight, []string{"Only step"})
	if _, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, &other.ID); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}
}

func TestStartRunPostflightGated(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePostflight, f.user.ID, nil); !errors.Is(err, ErrPreflightPending) {
		t.Errorf("expected ErrPreflightPending, got %v", err)
	}

	f.signPreflight(t)

	run, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePostflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("post-flight StartRun failed after pre-flight signed: %v", err)
	}
	if run.Phase != constants.PhasePostflight {
		t.Errorf("expected post-flight run, got %s", run.Phase)
	}

	var flight gormModels.Flight
	if err := f.db.Where("id = ?", f.flight.ID).First(&flight).Error; err != nil {
		t.Fatalf("failed to reload flight: %v", err)
	}
	if flight.Status != constants.FlightPostflightInProgress {
		t.Errorf("flight should advance to POSTFLIGHT_IN_PROGRESS, got %s", flight.Status)
	}
}

func TestStartRunInvalidPhase(t *testing.T) {
	f := newRunFixture(t)
	if _, err := f.svc.StartRun(context.Background(), f.flight.ID, "CRUISE", f.user.ID, nil); !errors.Is(err, ErrInvalidPhase) {
		t.Errorf("expected ErrInvalidPhase, got %v", err)
	}
}

func TestUpdateItemCheckSemantics(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	run, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	items := f.runItems(t, run.ID)

	// Section items carry no values
	if _, err := f.svc.UpdateItem(ctx, run.ID, items[0].ID, f.user.ID, ItemUpdate{ValueYesNo: boolPtr(true)}); !errors.Is(err, ErrSectionNotMutable) {
		t.Errorf("expected ErrSectionNotMutable, got %v", err)
	}

	// Explicit false is recorded but does not accept the item
	updated, err := f.svc.UpdateItem(ctx, run.ID, items[1].ID, f.user.ID, ItemUpdate{ValueYesNo: boolPtr(false)})
	if err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	if updated.ValueYesNo == nil || *updated.ValueYesNo {
		t.Errorf("explicit false should be stored")
	}
	if updated.Accepted() {
		t.Errorf("false answer must not count as accepted")
	}

	updated, err = f.svc.UpdateItem(ctx, run.ID, items[1].ID, f.user.ID, ItemUpdate{ValueYesNo: boolPtr(true)})
	if err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}
	if !updated.Accepted() || updated.CompletedAt == nil {
		t.Errorf("true answer should accept and timestamp the item")
	}
}

func TestSignRunRequiresAllRequiredItems(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	run, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	// One item answered false, one untouched: both block signing
	items := f.runItems(t, run.ID)
	if _, err := f.svc.UpdateItem(ctx, run.ID, items[1].ID, f.user.ID, ItemUpdate{ValueYesNo: boolPtr(false)}); err != nil {
		t.Fatalf("UpdateItem failed: %v", err)
	}

	if _, err := f.svc.SignRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, testPassword, SignatureContext{}); !errors.Is(err, ErrItemsIncomplete) {
		t.Errorf("expected ErrItemsIncomplete, got %v", err)
	}

	f.completeAllSteps(t, run.ID)

	signed, err := f.svc.SignRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, testPassword, SignatureContext{Name: f.user.Name})
	if err != nil {
		t.Fatalf("SignRun failed: %v", err)
	}
	if signed.Status != constants.RunSigned || signed.Decision == nil || *signed.Decision != constants.DecisionAccepted {
		t.Errorf("run should be SIGNED/ACCEPTED")
	}
	if signed.SignedAt == nil || signed.SignedByUserID == nil || *signed.SignedByUserID != f.user.ID {
		t.Errorf("signature fields incomplete")
	}

	var flight gormModels.Flight
	if err := f.db.Where("id = ?", f.flight.ID).First(&flight).Error; err != nil {
		t.Fatalf("failed to reload flight: %v", err)
	}
	if flight.Status != constants.FlightPreflightSigned {
		t.Errorf("flight should advance to PREFLIGHT_SIGNED, got %s", flight.Status)
	}
}

func TestSignRunWrongPassword(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	run, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	f.completeAllSteps(t, run.ID)

	if _, err := f.svc.SignRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, "wrong", SignatureContext{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}

	var current gormModels.ChecklistRun
	if err := f.db.Where("id = ?", run.ID).First(&current).Error; err != nil {
		t.Fatalf("failed to reload run: %v", err)
	}
	if current.Status != constants.RunInProgress {
		t.Errorf("failed signature must leave the run IN_PROGRESS, got %s", current.Status)
	}
}

func TestSignRunAttemptLimiter(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	// Tight limiter: two attempts per window
	f.svc.limiter = common.NewMemoryAttemptLimiter(2, time.Minute)

	run, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	f.completeAllSteps(t, run.ID)

	for i := 0; i < 2; i++ {
		if _, err := f.svc.SignRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, "wrong", SignatureContext{}); !errors.Is(err, ErrForbidden) {
			t.Fatalf("expected ErrForbidden on bad password, got %v", err)
		}
	}

	// Correct password, but the account is now throttled
	if _, err := f.svc.SignRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, testPassword, SignatureContext{}); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected throttled attempt to fail, got %v", err)
	}
}

func TestSignedRunIsImmutable(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	signed := f.signPreflight(t)
	items := f.runItems(t, signed.ID)

	if _, err := f.svc.UpdateItem(ctx, signed.ID, items[1].ID, f.user.ID, ItemUpdate{ValueYesNo: boolPtr(false)}); !errors.Is(err, ErrRunSigned) {
		t.Errorf("expected ErrRunSigned on item mutation, got %v", err)
	}
	if _, err := f.svc.SignRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, testPassword, SignatureContext{}); !errors.Is(err, ErrRunSigned) {
		t.Errorf("expected ErrRunSigned on re-sign, got %v", err)
	}
	if _, err := f.svc.RejectRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, testPassword, "note", SignatureContext{}); !errors.Is(err, ErrRunSigned) {
		t.Errorf("expected ErrRunSigned on reject, got %v", err)
	}
	if _, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, nil); !errors.Is(err, ErrRunSigned) {
		t.Errorf("expected ErrRunSigned on restart, got %v", err)
	}
}

func TestRejectRunRequiresNote(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	if _, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, nil); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if _, err := f.svc.RejectRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, testPassword, "", SignatureContext{}); !errors.Is(err, ErrNoteRequired) {
		t.Errorf("expected ErrNoteRequired, got %v", err)
	}

	rejected, err := f.svc.RejectRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, testPassword, "mag drop out of limits", SignatureContext{})
	if err != nil {
		t.Fatalf("RejectRun failed: %v", err)
	}
	if rejected.Status != constants.RunSigned || rejected.Decision == nil || *rejected.Decision != constants.DecisionRejected {
		t.Errorf("rejected run should be SIGNED/REJECTED")
	}
	if rejected.DecisionNote == nil || *rejected.DecisionNote != "mag drop out of limits" {
		t.Errorf("rejection note not recorded")
	}

	// Rejection still advances the workflow
	var flight gormModels.Flight
	if err := f.db.Where("id = ?", f.flight.ID).First(&flight).Error; err != nil {
		t.Fatalf("failed to reload flight: %v", err)
	}
	if flight.Status != constants.FlightPreflightSigned {
		t.Errorf("rejection should unblock the flight, got %s", flight.Status)
	}
}

func TestSkipRunLazilyCreatesRun(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	skipped, err := f.svc.SkipRun(ctx, f.flight.ID, constants.PhasePreflight, f.user.ID, testPassword, SignatureContext{})
	if err != nil {
		t.Fatalf("SkipRun failed: %v", err)
	}
	if skipped.Status != constants.RunSigned || skipped.Decision == nil || *skipped.Decision != constants.DecisionRejected {
		t.Errorf("skipped run should be SIGNED/REJECTED")
	}
	if skipped.DecisionNote == nil || *skipped.DecisionNote != constants.MsgSkippedByPilot {
		t.Errorf("skip should synthesize its note")
	}

	items := f.runItems(t, skipped.ID)
	if len(items) != 0 {
		t.Errorf("a skipped, never-started run should carry no items, got %d", len(items))
	}
}

func TestCloseRunNoPassword(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	f.signPreflight(t)
	if _, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePostflight, f.user.ID, nil); err != nil {
		t.Fatalf("post-flight StartRun failed: %v", err)
	}

	closed, err := f.svc.CloseRun(ctx, f.flight.ID, f.user.ID, SignatureContext{Name: f.user.Name})
	if err != nil {
		t.Fatalf("CloseRun failed: %v", err)
	}
	if closed.Status != constants.RunSigned || closed.Decision == nil || *closed.Decision != constants.DecisionRejected {
		t.Errorf("closed run should be SIGNED/REJECTED")
	}
	if closed.DecisionNote == nil || *closed.DecisionNote != constants.MsgClosedDanglingRun {
		t.Errorf("close should synthesize its note")
	}
}

func TestCloseRunRequiresPostflightRun(t *testing.T) {
	f := newRunFixture(t)
	if _, err := f.svc.CloseRun(context.Background(), f.flight.ID, f.user.ID, SignatureContext{}); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestPostflightSignDispatchesImport(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	f.signPreflight(t)
	if got := f.dispatcher.dispatched(); len(got) != 0 {
		t.Fatalf("pre-flight signature must not dispatch an import, got %v", got)
	}

	run, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePostflight, f.user.ID, nil)
	if err != nil {
		t.Fatalf("post-flight StartRun failed: %v", err)
	}
	f.completeAllSteps(t, run.ID)
	if _, err := f.svc.SignRun(ctx, f.flight.ID, constants.PhasePostflight, f.user.ID, testPassword, SignatureContext{}); err != nil {
		t.Fatalf("post-flight SignRun failed: %v", err)
	}

	got := f.dispatcher.dispatched()
	if len(got) != 1 || got[0] != f.flight.ID {
		t.Errorf("post-flight signature should dispatch exactly one import, got %v", got)
	}
}

func TestRunOwnerOnly(t *testing.T) {
	f := newRunFixture(t)
	ctx := context.Background()

	other, err := f.users.CreateUser(ctx, "other@example.com", "Other", testPassword)
	if err != nil {
		t.Fatalf("failed to create second user: %v", err)
	}

	if _, err := f.svc.StartRun(ctx, f.flight.ID, constants.PhasePreflight, other.ID, nil); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for non-owner, got %v", err)
	}
}

func boolPtr(b bool) *bool { return &b }
