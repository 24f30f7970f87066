package services

import "errors"

// Error taxonomy. Validation and state errors abort the enclosing transaction
// entirely; provider errors are isolated to the import sub-flow and never
// fail the checklist operation that triggered them.

// Validation errors: rejected before touching the datastore.
var (
	ErrInvalidPhase   = errors.New("invalid checklist phase")
	ErrMalformedInput = errors.New("malformed request input")
	ErrNoteRequired   = errors.New("rejection note is required")
)

// State errors: the entity exists but is in the wrong state for the
// requested transition. Always distinct from "not found".
var (
	ErrRunNotFound       = errors.New("checklist run not found")
	ErrRunSigned         = errors.New("checklist run is signed and immutable")
	ErrRunUnavailable    = errors.New("checklist run is not available")
	ErrRunInProgress     = errors.New("checklist run already has completed items")
	ErrItemsIncomplete   = errors.New("required checklist items not complete")
	ErrItemNotFound      = errors.New("run item not found")
	ErrSectionNotMutable = errors.New("section items carry no values")
	ErrTemplateNotFound  = errors.New("no checklist template could be resolved")
	ErrTemplateEmpty     = errors.New("template has no steps")
	ErrPreflightPending  = errors.New("pre-flight run must be signed first")
	ErrNotAttached       = errors.New("flight has no attached provider track")
	ErrNoTailNumber      = errors.New("flight has no usable tail number")
	ErrNoTimeSignals     = errors.New("flight has no timestamps to derive a window from")
)

// Authorization errors: surfaced identically to "forbidden" so callers can't
// distinguish a wrong password from a missing account.
var (
	ErrForbidden = errors.New("forbidden")
)

// Conflict errors: distinguishable from "not found".
var (
	ErrAttachConflict = errors.New("provider flight already attached to another flight")
)
