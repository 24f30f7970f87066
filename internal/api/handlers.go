package api

import (
	"net/http"

	"skyhook/flightline/internal/auth"
	"skyhook/flightline/internal/common"
	"skyhook/flightline/internal/services"
)

type Handlers struct {
	deps *Dependencies
}

// NewHandlers creates a new handlers instance with injected dependencies
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		deps: deps,
	}
}

// signatureContext builds the per-request signature metadata recorded on
// sign/reject/skip transitions.
func (h *Handlers) signatureContext(r *http.Request, userID string) services.SignatureContext {
	name := ""
	if user, err := h.deps.Services.User.GetUser(r.Context(), userID); err == nil {
		name = user.Name
	}
	return services.SignatureContext{
		Name:      name,
		IP:        common.ClientIP(r),
		UserAgent: common.UserAgent(r),
	}
}

// callerID pulls the authenticated user out of the request context. The
// auth middleware guarantees it is set on protected routes.
func callerID(r *http.Request) string {
	return auth.UserIDFromContext(r.Context())
}
