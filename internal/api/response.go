package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"skyhook/flightline/internal/models/dtos/responses"
	"skyhook/flightline/internal/services"
)

func respondWithSuccess[T any](w http.ResponseWriter, statusCode int, data *T) {
	resp := responses.APIResponse[T]{
		Status:    "success",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	w.Header().Set("Content-Type", "application/json")

	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	resp := responses.APIResponse[any]{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	_ = json.NewEncoder(w).Encode(resp)
}

// respondWithServiceError maps the service error taxonomy onto HTTP status
// codes. Validation -> 400, missing -> 404, wrong state -> 409, forbidden
// -> 403, anything unrecognized -> 500.
func respondWithServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidPhase),
		errors.Is(err, services.ErrMalformedInput),
		errors.Is(err, services.ErrNoteRequired):
		respondWithError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, services.ErrRunNotFound),
		errors.Is(err, services.ErrItemNotFound),
		errors.Is(err, services.ErrTemplateNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, services.ErrForbidden):
		respondWithError(w, http.StatusForbidden, err.Error())

	case errors.Is(err, services.ErrRunSigned),
		errors.Is(err, services.ErrRunUnavailable),
		errors.Is(err, services.ErrRunInProgress),
		errors.Is(err, services.ErrItemsIncomplete),
		errors.Is(err, services.ErrSectionNotMutable),
		errors.Is(err, services.ErrTemplateEmpty),
		errors.Is(err, services.ErrPreflightPending),
		errors.Is(err, services.ErrNotAttached),
		errors.Is(err, services.ErrNoTailNumber),
		errors.Is(err, services.ErrNoTimeSignals),
		errors.Is(err, services.ErrAttachConflict):
		respondWithError(w, http.StatusConflict, err.Error())

	default:
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}
