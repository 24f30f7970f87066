package services

import (
	"context"
	"fmt"
	"time"

	"skyhook/flightline/internal/common"
	"skyhook/flightline/internal/constants"
	"skyhook/flightline/internal/logging"
	gormModels "skyhook/flightline/internal/models/gorm"

	"gorm.io/gorm"
)

// SignatureContext carries the best-effort client metadata recorded with
// every signature decision.
type SignatureContext struct {
	Name      string
	IP        *string
	UserAgent *string
}

// ImportDispatcher is the post-commit hook that hands a flight to the
// auto-import pipeline. Dispatch must never block or fail the signing
// request: the checklist transition has already committed when it is called.
type ImportDispatcher interface {
	Dispatch(flightID string)
}

// ChecklistRunService governs the run lifecycle: snapshotting templates into
// runs, item mutation under the lock predicate, and the four transitions
// into SIGNED (sign, reject, skip, close).
type ChecklistRunService struct {
	db         *gorm.DB
	users      *UserService
	templates  *ChecklistTemplateService
	limiter    common.AttemptLimiter
	dispatcher ImportDispatcher
}

func NewChecklistRunService(
	db *gorm.DB,
	users *UserService,
	templates *ChecklistTemplateService,
	limiter common.AttemptLimiter,
	dispatcher ImportDispatcher,
) *ChecklistRunService {
	return &ChecklistRunService{
		db:         db,
		users:      users,
		templates:  templates,
		limiter:    limiter,
		dispatcher: dispatcher,
	}
}

// ============================================================================
// Template snapshot
// ============================================================================

// snapshotTemplate copies a template's items into frozen run items, carrying
// both orderings and remapping parent references to the new rows. Runs inside
// the caller's transaction so a partial snapshot is never observable.
func snapshotTemplate(tx *gorm.DB, runID string, tmpl *gormModels.ChecklistTemplate) error {
	idByTemplateItem := make(map[string]string, len(tmpl.Items))
	created := make([]*gormModels.RunItem, 0, len(tmpl.Items))

	for idx := range tmpl.Items {
		src := &tmpl.Items[idx]
		item := gormModels.RunItem{
			RunID:          runID,
			TemplateItemID: src.ID,
			Kind:           src.Kind,
			Label:          src.Label,
			InputType:      src.InputType,
			Required:       src.Required,
			OfficialOrder:  src.OfficialOrder,
			PersonalOrder:  src.PersonalOrder,
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to snapshot item: %w", err)
		}
		idByTemplateItem[src.ID] = item.ID
		created = append(created, &item)
	}

	for idx := range tmpl.Items {
		src := &tmpl.Items[idx]
		if src.ParentID == nil {
			continue
		}
		parentRunItemID, ok := idByTemplateItem[*src.ParentID]
		if !ok {
			return fmt.Errorf("template item %s references parent outside template", src.ID)
		}
		if err := tx.Model(created[idx]).Update("parent_id", parentRunItemID).Error; err != nil {
			return fmt.Errorf("failed to link snapshot parent: %w", err)
		}
	}

	return nil
}

// replaceRunItems clears a run's items and re-snapshots from a new template.
// Refused once any STEP item is completed: the run is already in progress.
func replaceRunItems(tx *gorm.DB, run *gormModels.ChecklistRun, tmpl *gormModels.ChecklistTemplate) error {
	var completedSteps int64
	err := tx.Model(&gormModels.RunItem{}).
		Where("run_id = ? AND kind = ? AND completed = ?", run.ID, constants.KindStep, true).
		Count(&completedSteps).Error
	if err != nil {
		return fmt.Errorf("failed to count completed steps: %w", err)
	}
	if completedSteps > 0 {
		return ErrRunInProgress
	}

	if err := tx.Where("run_id = ?", run.ID).Delete(&gormModels.RunItem{}).Error; err != nil {
		return fmt.Errorf("failed to clear run items: %w", err)
	}

	return snapshotTemplate(tx, run.ID, tmpl)
}

// ============================================================================
// Start
// ============================================================================

// StartRun transitions a run NOT_AVAILABLE -> IN_PROGRESS, creating it and
// the item snapshot on the way. Re-selecting a template on an unstarted run
// replaces the snapshot; any completed step blocks replacement.
func (svc *ChecklistRunService) StartRun(
	ctx context.Context,
	flightID string,
	phase constants.ChecklistPhase,
	userID string,
	overrideTemplateID *string,
) (*gormModels.ChecklistRun, error) {
	if !phase.IsValid() {
		return nil, ErrInvalidPhase
	}

	flight, aircraft, err := svc.loadFlightForUser(ctx, flightID, userID)
	if err != nil {
		return nil, err
	}

	if phase == constants.PhasePostflight {
		if err := postflightEligible(flight); err != nil {
			return nil, err
		}
	}

	tmpl, err := svc.templates.ResolveTemplate(ctx, aircraft, phase, overrideTemplateID)
	if err != nil {
		return nil, err
	}
	if countSteps(tmpl) == 0 {
		return nil, ErrTemplateEmpty
	}

	var run *gormModels.ChecklistRun
	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing := flight.RunForPhase(phase)
		now := time.Now().UTC()

		if existing == nil {
			run = &gormModels.ChecklistRun{
				FlightID:   flight.ID,
				Phase:      phase,
				TemplateID: &tmpl.ID,
				Status:     constants.RunInProgress,
				StartedAt:  &now,
			}
			if err := tx.Create(run).Error; err != nil {
				return fmt.Errorf("failed to create run: %w", err)
			}
			if err := snapshotTemplate(tx, run.ID, tmpl); err != nil {
				return err
			}
		} else {
			if existing.IsSigned() {
				return ErrRunSigned
			}
			run = existing
			if err := replaceRunItems(tx, run, tmpl); err != nil {
				return err
			}
			updates := map[string]interface{}{
				"template_id": tmpl.ID,
				"status":      constants.RunInProgress,
				"started_at":  now,
			}
			if err := tx.Model(run).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update run: %w", err)
			}
			run.TemplateID = &tmpl.ID
			run.Status = constants.RunInProgress
			run.StartedAt = &now
		}

		// Starting the post-flight checklist moves the flight forward
		if phase == constants.PhasePostflight && flight.Status == constants.FlightPreflightSigned {
			if err := tx.Model(flight).Update("status", constants.FlightPostflightInProgress).Error; err != nil {
				return fmt.Errorf("failed to advance flight status: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return run, nil
}

// postflightEligible enforces the post-flight phase gate: the pre-flight run
// must be signed, or the flight already completed / carrying an end time.
func postflightEligible(flight *gormModels.Flight) error {
	pre := flight.RunForPhase(constants.PhasePreflight)
	if pre != nil && pre.IsSigned() {
		return nil
	}
	if flight.Status == constants.FlightCompleted || flight.EndTime != nil {
		return nil
	}
	return ErrPreflightPending
}

func countSteps(tmpl *gormModels.ChecklistTemplate) int {
	steps := 0
	for _, item := range tmpl.Items {
		if item.Kind == constants.KindStep {
			steps++
		}
	}
	return steps
}

// ============================================================================
// Item mutation
// ============================================================================

// ItemUpdate is the set of changes a caller may apply to one run item.
type ItemUpdate struct {
	Completed   *bool
	ValueYesNo  *bool
	ValueNumber *float64
	ValueText   *string
	Notes       *string
}

// UpdateItem applies a mutation to one run item after evaluating the lock
// predicate: a SIGNED run rejects every mutation, and so does a run that is
// not available. Both are state errors, distinct from "not found".
func (svc *ChecklistRunService) UpdateItem(
	ctx context.Context,
	runID string,
	itemID string,
	userID string,
	update ItemUpdate,
) (*gormModels.RunItem, error) {
	var item *gormModels.RunItem

	err := svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var run gormModels.ChecklistRun
		if err := tx.Where("id = ?", runID).First(&run).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrRunNotFound
			}
			return fmt.Errorf("failed to fetch run: %w", err)
		}

		var flight gormModels.Flight
		if err := tx.Where("id = ?", run.FlightID).First(&flight).Error; err != nil {
			return fmt.Errorf("failed to fetch flight: %w", err)
		}
		if flight.UserID != userID {
			return ErrForbidden
		}

		// Lock predicate, evaluated fresh on every mutation
		if run.IsSigned() {
			return ErrRunSigned
		}
		if run.Status != constants.RunInProgress {
			return ErrRunUnavailable
		}

		var found gormModels.RunItem
		if err := tx.Where("id = ? AND run_id = ?", itemID, runID).First(&found).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrItemNotFound
			}
			return fmt.Errorf("failed to fetch item: %w", err)
		}

		if found.Kind == constants.KindSection {
			return ErrSectionNotMutable
		}

		applyItemUpdate(&found, update)

		if err := tx.Save(&found).Error; err != nil {
			return fmt.Errorf("failed to save item: %w", err)
		}

		item = &found
		return nil
	})
	if err != nil {
		return nil, err
	}

	return item, nil
}

// applyItemUpdate writes the value matching the item's input type and keeps
// the completed flag consistent with it.
func applyItemUpdate(item *gormModels.RunItem, update ItemUpdate) {
	now := time.Now().UTC()

	switch item.InputType {
	case constants.InputCheck, constants.InputYesNo:
		if update.ValueYesNo != nil {
			item.ValueYesNo = update.ValueYesNo
			accepted := *update.ValueYesNo
			item.Completed = accepted
			if accepted {
				item.CompletedAt = &now
			} else {
				item.CompletedAt = nil
			}
		}
	case constants.InputNumber:
		if update.ValueNumber != nil {
			item.ValueNumber = update.ValueNumber
			item.Completed = true
			item.CompletedAt = &now
		}
	case constants.InputText:
		if update.ValueText != nil {
			item.ValueText = update.ValueText
			item.Completed = true
			item.CompletedAt = &now
		}
	}

	// Explicit completed toggle for number/text items (e.g., clearing a value)
	if update.Completed != nil && (item.InputType == constants.InputNumber || item.InputType == constants.InputText) {
		item.Completed = *update.Completed
		if *update.Completed {
			if item.CompletedAt == nil {
				item.CompletedAt = &now
			}
		} else {
			item.CompletedAt = nil
		}
	}

	if update.Notes != nil {
		item.Notes = update.Notes
	}
}

// ============================================================================
// Transitions into SIGNED
// ============================================================================

// SignRun completes a run with decision ACCEPTED. Every required STEP item
// must satisfy its input-type completion rule and the signer's password is
// re-verified before anything is written.
func (svc *ChecklistRunService) SignRun(
	ctx context.Context,
	flightID string,
	phase constants.ChecklistPhase,
	userID string,
	password string,
	sig SignatureContext,
) (*gormModels.ChecklistRun, error) {
	if !phase.IsValid() {
		return nil, ErrInvalidPhase
	}

	flight, _, err := svc.loadFlightForUser(ctx, flightID, userID)
	if err != nil {
		return nil, err
	}

	run := flight.RunForPhase(phase)
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.IsSigned() {
		return nil, ErrRunSigned
	}
	if run.Status != constants.RunInProgress {
		return nil, ErrRunUnavailable
	}

	if err := svc.checkRequiredItems(ctx, run.ID); err != nil {
		return nil, err
	}

	if err := svc.verifySigner(ctx, userID, password); err != nil {
		return nil, err
	}

	if err := svc.finalizeRun(ctx, flight, run, constants.DecisionAccepted, nil, userID, sig); err != nil {
		return nil, err
	}

	svc.afterSigned(flight, phase)
	return run, nil
}

// RejectRun signs a run with decision REJECTED. Items need not be complete,
// but a non-empty note and the signer's password are required. Rejecting
// unblocks the workflow rather than halting it.
func (svc *ChecklistRunService) RejectRun(
	ctx context.Context,
	flightID string,
	phase constants.ChecklistPhase,
	userID string,
	password string,
	note string,
	sig SignatureContext,
) (*gormModels.ChecklistRun, error) {
	if !phase.IsValid() {
		return nil, ErrInvalidPhase
	}
	if note == "" {
		return nil, ErrNoteRequired
	}

	flight, _, err := svc.loadFlightForUser(ctx, flightID, userID)
	if err != nil {
		return nil, err
	}

	run := flight.RunForPhase(phase)
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.IsSigned() {
		return nil, ErrRunSigned
	}
	if run.Status != constants.RunInProgress {
		return nil, ErrRunUnavailable
	}

	if err := svc.verifySigner(ctx, userID, password); err != nil {
		return nil, err
	}

	if err := svc.finalizeRun(ctx, flight, run, constants.DecisionRejected, &note, userID, sig); err != nil {
		return nil, err
	}

	svc.afterSigned(flight, phase)
	return run, nil
}

// SkipRun bypasses completion entirely, recording decision REJECTED with a
// synthesized note. It lazily creates the run when none exists yet, so a
// phase can be skipped without ever having been started.
func (svc *ChecklistRunService) SkipRun(
	ctx context.Context,
	flightID string,
	phase constants.ChecklistPhase,
	userID string,
	password string,
	sig SignatureContext,
) (*gormModels.ChecklistRun, error) {
	if !phase.IsValid() {
		return nil, ErrInvalidPhase
	}

	flight, _, err := svc.loadFlightForUser(ctx, flightID, userID)
	if err != nil {
		return nil, err
	}

	if phase == constants.PhasePostflight {
		if err := postflightEligible(flight); err != nil {
			return nil, err
		}
	}

	run := flight.RunForPhase(phase)
	if run != nil && run.IsSigned() {
		return nil, ErrRunSigned
	}

	if err := svc.verifySigner(ctx, userID, password); err != nil {
		return nil, err
	}

	note := constants.MsgSkippedByPilot

	err = svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if run == nil {
			run = &gormModels.ChecklistRun{
				FlightID: flight.ID,
				Phase:    phase,
				Status:   constants.RunNotAvailable,
			}
			if err := tx.Create(run).Error; err != nil {
				return fmt.Errorf("failed to create run: %w", err)
			}
		}
		return svc.finalizeRunTx(tx, flight, run, constants.DecisionRejected, &note, userID, sig)
	})
	if err != nil {
		return nil, err
	}

	svc.afterSigned(flight, phase)
	return run, nil
}

// CloseRun force-closes a dangling in-progress post-flight run. Same effect
// as reject but without password re-entry.
func (svc *ChecklistRunService) CloseRun(
	ctx context.Context,
	flightID string,
	userID string,
	sig SignatureContext,
) (*gormModels.ChecklistRun, error) {
	flight, _, err := svc.loadFlightForUser(ctx, flightID, userID)
	if err != nil {
		return nil, err
	}

	run := flight.RunForPhase(constants.PhasePostflight)
	if run == nil {
		return nil, ErrRunNotFound
	}
	if run.IsSigned() {
		return nil, ErrRunSigned
	}
	if run.Status != constants.RunInProgress {
		return nil, ErrRunUnavailable
	}

	note := constants.MsgClosedDanglingRun
	if err := svc.finalizeRun(ctx, flight, run, constants.DecisionRejected, &note, userID, sig); err != nil {
		return nil, err
	}

	svc.afterSigned(flight, constants.PhasePostflight)
	return run, nil
}

// ============================================================================
// Internals
// ============================================================================

// verifySigner throttles and re-verifies the acting user's password. A
// session token alone can never sign.
func (svc *ChecklistRunService) verifySigner(ctx context.Context, userID string, password string) error {
	if svc.limiter != nil {
		allowed, err := svc.limiter.Allow(ctx, userID)
		if err != nil {
			logging.Warn("attempt limiter unavailable, failing closed", "user_id", userID, "error", err.Error())
			return ErrForbidden
		}
		if !allowed {
			return ErrForbidden
		}
	}

	if err := svc.users.VerifyPassword(ctx, userID, password); err != nil {
		return err
	}

	if svc.limiter != nil {
		_ = svc.limiter.Reset(ctx, userID)
	}
	return nil
}

// checkRequiredItems verifies every required STEP satisfies its completion
// rule. CHECK and YES_NO items count only when affirmatively true.
func (svc *ChecklistRunService) checkRequiredItems(ctx context.Context, runID string) error {
	var items []gormModels.RunItem
	err := svc.db.WithContext(ctx).
		Where("run_id = ? AND kind = ? AND required = ?", runID, constants.KindStep, true).
		Find(&items).Error
	if err != nil {
		return fmt.Errorf("failed to fetch required items: %w", err)
	}

	for idx := range items {
		if !items[idx].Accepted() {
			return fmt.Errorf("%w: %q", ErrItemsIncomplete, items[idx].Label)
		}
	}
	return nil
}

// finalizeRun commits the transition into SIGNED together with the flight
// status advance, in one transaction.
func (svc *ChecklistRunService) finalizeRun(
	ctx context.Context,
	flight *gormModels.Flight,
	run *gormModels.ChecklistRun,
	decision constants.RunDecision,
	note *string,
	userID string,
	sig SignatureContext,
) error {
	return svc.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return svc.finalizeRunTx(tx, flight, run, decision, note, userID, sig)
	})
}

func (svc *ChecklistRunService) finalizeRunTx(
	tx *gorm.DB,
	flight *gormModels.Flight,
	run *gormModels.ChecklistRun,
	decision constants.RunDecision,
	note *string,
	userID string,
	sig SignatureContext,
) error {
	// Re-read inside the transaction: signing an already-signed run must
	// fail loudly, never silently succeed.
	var current gormModels.ChecklistRun
	if err := tx.Where("id = ?", run.ID).First(&current).Error; err != nil {
		return fmt.Errorf("failed to re-read run: %w", err)
	}
	if current.IsSigned() {
		return ErrRunSigned
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":               constants.RunSigned,
		"decision":             decision,
		"signed_at":            now,
		"signed_by_user_id":    userID,
		"signature_name":       sig.Name,
		"signature_ip":         sig.IP,
		"signature_user_agent": sig.UserAgent,
	}
	if note != nil {
		updates["decision_note"] = *note
	}

	if err := tx.Model(run).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to sign run: %w", err)
	}

	run.Status = constants.RunSigned
	run.Decision = &decision
	run.DecisionNote = note
	run.SignedAt = &now
	run.SignedByUserID = &userID
	run.SignatureName = &sig.Name
	run.SignatureIP = sig.IP
	run.SignatureUserAgent = sig.UserAgent

	next := nextFlightStatus(flight.Status, run.Phase)
	if next != flight.Status {
		if err := tx.Model(flight).Update("status", next).Error; err != nil {
			return fmt.Errorf("failed to advance flight status: %w", err)
		}
		flight.Status = next
	}

	return nil
}

// nextFlightStatus advances the flight when a phase reaches SIGNED. Already
// completed or imported flights stay where they are.
func nextFlightStatus(current constants.FlightStatus, phase constants.ChecklistPhase) constants.FlightStatus {
	switch phase {
	case constants.PhasePreflight:
		if current == constants.FlightPlanned {
			return constants.FlightPreflightSigned
		}
	case constants.PhasePostflight:
		if current == constants.FlightPlanned ||
			current == constants.FlightPreflightSigned ||
			current == constants.FlightPostflightInProgress {
			return constants.FlightPostflightSigned
		}
	}
	return current
}

// afterSigned fires the post-commit import dispatch. The signature is
// already durable; whatever happens to the import must not undo it.
func (svc *ChecklistRunService) afterSigned(flight *gormModels.Flight, phase constants.ChecklistPhase) {
	if phase != constants.PhasePostflight || svc.dispatcher == nil {
		return
	}
	svc.dispatcher.Dispatch(flight.ID)
}

// loadFlightForUser fetches a flight with both runs preloaded and enforces
// single-owner access.
func (svc *ChecklistRunService) loadFlightForUser(ctx context.Context, flightID string, userID string) (*gormModels.Flight, *gormModels.Aircraft, error) {
	var flight gormModels.Flight
	err := svc.db.WithContext(ctx).
		Preload("Runs").
		Where("id = ?", flightID).
		First(&flight).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, fmt.Errorf("flight not found: %s", flightID)
		}
		return nil, nil, fmt.Errorf("failed to fetch flight: %w", err)
	}

	if flight.UserID != userID {
		return nil, nil, ErrForbidden
	}

	var aircraft gormModels.Aircraft
	err = svc.db.WithContext(ctx).Where("id = ?", flight.AircraftID).First(&aircraft).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, fmt.Errorf("aircraft not found: %s", flight.AircraftID)
		}
		return nil, nil, fmt.Errorf("failed to fetch aircraft: %w", err)
	}

	return &flight, &aircraft, nil
}
