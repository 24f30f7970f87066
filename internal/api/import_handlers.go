package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"skyhook/flightline/internal/models/dtos"
	"skyhook/flightline/internal/services"
	"skyhook/flightline/internal/workers"
)

// TriggerImport handles POST /api/v1/flights/{flightId}/import
// Queues an auto-import run; the response only acknowledges the dispatch.
func (h *Handlers) TriggerImport() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")

		// Ownership check; the worker itself runs without a caller.
		if _, err := h.deps.Services.Flight.GetFlight(r.Context(), flightID, callerID(r)); err != nil {
			respondWithServiceError(w, err)
			return
		}

		workers.QueueDispatcher{}.Dispatch(flightID)

		status := "queued"
		respondWithSuccess(w, http.StatusAccepted, &status)
	}
}

// SearchCandidates handles POST /api/v1/flights/{flightId}/import/search
// Runs a provider query with an optional explicit window and returns ranked
// candidates without attaching anything.
func (h *Handlers) SearchCandidates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")

		var req dtos.SearchCandidatesRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondWithError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		var explicit *services.Interval
		if req.Start != nil && req.End != nil {
			explicit = &services.Interval{Start: *req.Start, End: *req.End}
		}

		ranked, err := h.deps.Services.Import.SearchCandidates(r.Context(), flightID, callerID(r), explicit)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, &ranked)
	}
}

// ListImportCandidates handles GET /api/v1/flights/{flightId}/import/candidates
// Returns the ranked candidates cached by the last pipeline run.
func (h *Handlers) ListImportCandidates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")

		ranked, err := h.deps.Services.Import.ListCachedCandidates(r.Context(), flightID, callerID(r))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, &ranked)
	}
}

// AttachCandidate handles POST /api/v1/flights/{flightId}/import/attach
func (h *Handlers) AttachCandidate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")

		var req dtos.AttachCandidateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.ProviderFlightID == "" {
			respondWithError(w, http.StatusBadRequest, "provider_flight_id is required")
			return
		}

		if err := h.deps.Services.Import.AttachByProviderFlightID(r.Context(), flightID, callerID(r), req.ProviderFlightID); err != nil {
			respondWithServiceError(w, err)
			return
		}

		flight, err := h.deps.Services.Flight.GetFlight(r.Context(), flightID, callerID(r))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, flight)
	}
}

// RefreshTrack handles POST /api/v1/flights/{flightId}/track/refresh
// Re-fetches the attached provider flight and replaces the stored track.
func (h *Handlers) RefreshTrack() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")

		if err := h.deps.Services.Import.RefreshTrack(r.Context(), flightID, callerID(r)); err != nil {
			respondWithServiceError(w, err)
			return
		}

		flight, err := h.deps.Services.Flight.GetFlight(r.Context(), flightID, callerID(r))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, flight)
	}
}
