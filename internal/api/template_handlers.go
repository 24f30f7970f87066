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

// CreateTemplate handles POST /api/v1/templates
func (h *Handlers) CreateTemplate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dtos.CreateTemplateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		tmpl, err := h.deps.Services.Template.CreateTemplate(
			r.Context(),
			callerID(r),
			req.Name,
			constants.ChecklistPhase(strings.ToUpper(req.Phase)),
			req.TypeCode,
		)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusCreated, tmpl)
	}
}

// GetTemplate handles GET /api/v1/templates/{templateId}
func (h *Handlers) GetTemplate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateID := chi.URLParam(r, "templateId")

		tmpl, err := h.deps.Services.Template.GetTemplate(r.Context(), templateID, callerID(r))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, tmpl)
	}
}

// ListTemplates handles GET /api/v1/templates?phase=PREFLIGHT
func (h *Handlers) ListTemplates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phase := constants.ChecklistPhase(strings.ToUpper(r.URL.Query().Get("phase")))

		templates, err := h.deps.Services.Template.ListTemplates(r.Context(), callerID(r), phase)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, &templates)
	}
}

// ReplaceTemplateItems handles PUT /api/v1/templates/{templateId}/items
func (h *Handlers) ReplaceTemplateItems() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templateID := chi.URLParam(r, "templateId")

		var req dtos.ReplaceTemplateItemsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		// Ownership check before the edit touches anything.
		if _, err := h.deps.Services.Template.GetTemplate(r.Context(), templateID, callerID(r)); err != nil {
			respondWithServiceError(w, err)
			return
		}

		inputs := make([]services.TemplateItemInput, 0, len(req.Items))
		for _, item := range req.Items {
			inputs = append(inputs, services.TemplateItemInput{
				Key:           item.Key,
				ParentKey:     item.ParentKey,
				Kind:          constants.ItemKind(strings.ToUpper(item.Kind)),
				Label:         item.Label,
				InputType:     constants.InputType(strings.ToUpper(item.InputType)),
				Required:      item.Required,
				OfficialOrder: item.OfficialOrder,
				PersonalOrder: item.PersonalOrder,
			})
		}

		if err := h.deps.Services.Template.ReplaceTemplateItems(r.Context(), templateID, inputs); err != nil {
			respondWithServiceError(w, err)
			return
		}

		tmpl, err := h.deps.Services.Template.GetTemplate(r.Context(), templateID, callerID(r))
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, tmpl)
	}
}
