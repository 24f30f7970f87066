package routes

import (
	"skyhook/flightline/internal/api"
	"skyhook/flightline/internal/metrics"
	"skyhook/flightline/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// RegisterAPIRoutes registers all API v1 routes and handlers
// This keeps API route registration separate from the main router setup
func RegisterAPIRoutes(r chi.Router, metricsReg *metrics.MetricsRegistry, handlers *api.Handlers) {

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Use(middleware.MetricsMiddleware(metricsReg))

		// Session endpoints are the only unauthenticated routes
		v1.Post("/auth/register", handlers.RegisterUser())
		v1.Post("/auth/login", handlers.Login())

		v1.Group(func(authed chi.Router) {
			authed.Use(middleware.AuthMiddleware())

			// Aircraft registry
			authed.Post("/aircraft", handlers.CreateAircraft())
			authed.Get("/aircraft", handlers.ListAircraft())
			authed.Put("/aircraft/{aircraftId}/templates", handlers.AssignAircraftTemplates())

			// Checklist templates
			authed.Post("/templates", handlers.CreateTemplate())
			authed.Get("/templates", handlers.ListTemplates())
			authed.Get("/templates/{templateId}", handlers.GetTemplate())
			authed.Put("/templates/{templateId}/items", handlers.ReplaceTemplateItems())

			// Flights
			authed.Post("/flights", handlers.CreateFlight())
			authed.Get("/flights", handlers.ListFlights())
			authed.Get("/flights/{flightId}", handlers.GetFlight())

			// Checklist runs
			authed.Post("/flights/{flightId}/runs/{phase}", handlers.StartRun())
			authed.Post("/flights/{flightId}/runs/{phase}/sign", handlers.SignRun())
			authed.Post("/flights/{flightId}/runs/{phase}/reject", handlers.RejectRun())
			authed.Post("/flights/{flightId}/runs/{phase}/skip", handlers.SkipRun())
			authed.Post("/flights/{flightId}/runs/postflight/close", handlers.CloseRun())
			authed.Patch("/runs/{runId}/items/{itemId}", handlers.UpdateRunItem())

			// Track import
			authed.Post("/flights/{flightId}/import", handlers.TriggerImport())
			authed.Post("/flights/{flightId}/import/search", handlers.SearchCandidates())
			authed.Get("/flights/{flightId}/import/candidates", handlers.ListImportCandidates())
			authed.Post("/flights/{flightId}/import/attach", handlers.AttachCandidate())
			authed.Post("/flights/{flightId}/track/refresh", handlers.RefreshTrack())
		})
	})
}
