package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"skyhook/flightline/internal/constants"
	"skyhook/flightline/internal/models/dtos"
	"skyhook/flightline/internal/services"
)

func phaseParam(r *http.Request) constants.ChecklistPhase {
	return constants.ChecklistPhase(strings.ToUpper(chi.URLParam(r, "phase")))
}

func (h *Handlers) countTransition(phase constants.ChecklistPhase, transition string) {
	h.deps.Metrics.ChecklistTransitionsTotal.WithLabelValues(string(phase), transition).Inc()
}

// StartRun handles POST /api/v1/flights/{flightId}/runs/{phase}
func (h *Handlers) StartRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")
		phase := phaseParam(r)

		var req dtos.StartRunRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				respondWithError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		run, err := h.deps.Services.Run.StartRun(r.Context(), flightID, phase, callerID(r), req.TemplateID)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		h.countTransition(phase, "started")
		respondWithSuccess(w, http.StatusCreated, run)
	}
}

// UpdateRunItem handles PATCH /api/v1/runs/{runId}/items/{itemId}
func (h *Handlers) UpdateRunItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runID := chi.URLParam(r, "runId")
		itemID := chi.URLParam(r, "itemId")

		var req dtos.ItemUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		item, err := h.deps.Services.Run.UpdateItem(r.Context(), runID, itemID, callerID(r), services.ItemUpdate{
			Completed:   req.Completed,
			ValueYesNo:  req.ValueYesNo,
			ValueNumber: req.ValueNumber,
			ValueText:   req.ValueText,
			Notes:       req.Notes,
		})
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, item)
	}
}

// SignRun handles POST /api/v1/flights/{flightId}/runs/{phase}/sign
func (h *Handlers) SignRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")
		phase := phaseParam(r)
		userID := callerID(r)

		var req dtos.SignRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		run, err := h.deps.Services.Run.SignRun(r.Context(), flightID, phase, userID, req.Password, h.signatureContext(r, userID))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		h.countTransition(phase, "signed")
		respondWithSuccess(w, http.StatusOK, run)
	}
}

// RejectRun handles POST /api/v1/flights/{flightId}/runs/{phase}/reject
func (h *Handlers) RejectRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")
		phase := phaseParam(r)
		userID := callerID(r)

		var req dtos.SignRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		note := ""
		if req.Note != nil {
			note = *req.Note
		}

		run, err := h.deps.Services.Run.RejectRun(r.Context(), flightID, phase, userID, req.Password, note, h.signatureContext(r, userID))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		h.countTransition(phase, "rejected")
		respondWithSuccess(w, http.StatusOK, run)
	}
}

// SkipRun handles POST /api/v1/flights/{flightId}/runs/{phase}/skip
func (h *Handlers) SkipRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")
		phase := phaseParam(r)
		userID := callerID(r)

		var req dtos.SignRunRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		run, err := h.deps.Services.Run.SkipRun(r.Context(), flightID, phase, userID, req.Password, h.signatureContext(r, userID))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		h.countTransition(phase, "skipped")
		respondWithSuccess(w, http.StatusOK, run)
	}
}

// CloseRun handles POST /api/v1/flights/{flightId}/runs/postflight/close
// Closing a dangling post-flight run needs no password: it records that the
// pilot walked away, not that they vouched for the checklist.
func (h *Handlers) CloseRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flightID := chi.URLParam(r, "flightId")
		userID := callerID(r)

		run, err := h.deps.Services.Run.CloseRun(r.Context(), flightID, userID, h.signatureContext(r, userID))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		h.countTransition(constants.PhasePostflight, "closed")
		respondWithSuccess(w, http.StatusOK, run)
	}
}
