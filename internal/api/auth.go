package api

import (
	"net/http"

	"github.com/SigNoz/storefront-api/internal/middleware"
	"github.com/SigNoz/storefront-api/internal/models"
)

// RegisterHandler handles POST /api/auth/register
func (a *App) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeJSON(w, r, &req) || !a.validate(w, &req) {
		return
	}

	resp, err := a.userService.Register(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// LoginHandler handles POST /api/auth/login
func (a *App) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeJSON(w, r, &req) || !a.validate(w, &req) {
		return
	}

	resp, err := a.userService.Login(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// MeHandler handles GET /api/auth/me
func (a *App) MeHandler(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.UserFromContext(r.Context())

	profile, err := a.userService.GetProfile(r.Context(), user.ID)
	if err != nil {
		a.writeServiceError(w, r, err, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
