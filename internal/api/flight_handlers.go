package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"skyhook/flightline/internal/models/dtos"
)

// CreateFlight handles POST /api/v1/flights
func (h *Handlers) CreateFlight() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dtos.CreateFlightRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		flight, err := h.deps.Services.Flight.CreateFlight(r.Context(), callerID(r), req)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusCreated, flight)
	}
}

// GetFlight handles GET /api/v1/flights/{flightId}
func (h *Handlers) GetFlight() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")

		flight, err := h.deps.Services.Flight.GetFlight(r.Context(), flightID, callerID(r))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, flight)
	}
}

// ListFlights handles GET /api/v1/flights
func (h *Handlers) ListFlights() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}

		flights, err := h.deps.Services.Flight.ListFlights(r.Context(), callerID(r), page)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, &flights)
	}
}

// CreateAircraft handles POST /api/v1/aircraft
func (h *Handlers) CreateAircraft() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dtos.CreateAircraftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		aircraft, err := h.deps.Services.Flight.CreateAircraft(r.Context(), callerID(r), req)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusCreated, aircraft)
	}
}

// ListAircraft handles GET /api/v1/aircraft
func (h *Handlers) ListAircraft() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aircraft, err := h.deps.Services.Flight.ListAircraft(r.Context(), callerID(r))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, &aircraft)
	}
}

// AssignAircraftTemplates handles PUT /api/v1/aircraft/{aircraftId}/templates
func (h *Handlers) AssignAircraftTemplates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		aircraftID := chi.URLParam(r, "aircraftId")

		var req dtos.AssignTemplatesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		aircraft, err := h.deps.Services.Flight.AssignAircraftTemplates(
			r.Context(),
			aircraftID,
			callerID(r),
			req.PreflightTemplateID,
			req.PostflightTemplateID,
		)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, aircraft)
	}
}
