package api

import (
	"encoding/json"
	"net/http"
	"time"

	"skyhook/flightline/internal/auth"
	"skyhook/flightline/internal/models/dtos"
)

type sessionResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// RegisterUser handles POST /api/v1/auth/register
func (h *Handlers) RegisterUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dtos.RegisterRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := h.deps.Services.User.CreateUser(r.Context(), req.Email, req.Name, req.Password)
		if err != nil {
			respondWithServiceError(w, err)
			return
		}

		token, err := auth.IssueToken(user.ID, user.Email, 24*time.Hour)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to issue session token")
			return
		}

		respondWithSuccess(w, http.StatusCreated, &sessionResponse{
			Token:  token,
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.Name,
		})
	}
}

// Login handles POST /api/v1/auth/login
func (h *Handlers) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dtos.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		user, err := h.deps.Services.User.Authenticate(r.Context(), req.Email, req.Password)
		if err != nil {
			respondWithError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		token, err := auth.IssueToken(user.ID, user.Email, 24*time.Hour)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "failed to issue session token")
			return
		}

		respondWithSuccess(w, http.StatusOK, &sessionResponse{
			Token:  token,
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.Name,
		})
	}
}
