package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	app_errors "localchat/backend/internal/errors"
	"localchat/backend/internal/interfaces"
	"localchat/backend/internal/service"
)

// AuthHandler handles HTTP requests for registration, login, and sessions.
type AuthHandler struct {
	service interfaces.AuthService
	limiter *service.RateLimiter
}

func NewAuthHandler(svc interfaces.AuthService, limiter *service.RateLimiter) *AuthHandler {
	return &AuthHandler{service: svc, limiter: limiter}
}

// RegisterRequest is the DTO for local account creation.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6,max=100"`
}

// LoginRequest is the DTO for local login.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// GoogleAuthRequest carries a Google ID token credential.
type GoogleAuthRequest struct {
	Credential string `json:"credential" validate:"required"`
}

// Register godoc
// @Summary      Register a new account
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body  RegisterRequest  true  "Credentials"
// @Success      200  {object}  model.User
// @Failure      400  {object}  ErrorResponse
// @Failure      409  {object}  ErrorResponse
// @Failure      429  {object}  ErrorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.Allow("register:" + clientIP(r)) {
		respondWithError(w, fmt.Errorf("%w: too many registration attempts, try again later", app_errors.ErrRateLimited))
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", app_errors.ErrValidation))
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}

	user, token, err := h.service.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		respondWithError(w, err)
		return
	}
	h.setAuthCookie(w, token)
	respondWithJSON(w, http.StatusOK, user)
}

// Login godoc
// @Summary      Log in with username and password
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body  LoginRequest  true  "Credentials"
// @Success      200  {object}  model.User
// @Failure      401  {object}  ErrorResponse
// @Failure      429  {object}  ErrorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", app_errors.ErrValidation))
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}

	// Keyed by address and username so an attacker cannot lock out a user
	// from everywhere, nor probe many accounts from one address.
	identifier := "login:" + clientIP(r) + ":" + req.Username
	if !h.limiter.Allow(identifier) {
		w.Header().Set("Retry-After", "60")
		respondWithError(w, fmt.Errorf("%w: too many login attempts, try again later", app_errors.ErrRateLimited))
		return
	}

	user, token, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respondWithError(w, err)
		return
	}

	h.limiter.Reset(identifier)
	h.setAuthCookie(w, token)
	respondWithJSON(w, http.StatusOK, user)
}

// Logout godoc
// @Summary      Log out
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	respondWithJSON(w, http.StatusOK, StatusResponse{Message: "Logged out"})
}

// GoogleAuth godoc
// @Summary      Log in with a Google ID token
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request  body  GoogleAuthRequest  true  "Google credential"
// @Success      200  {object}  model.User
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/google [post]
func (h *AuthHandler) GoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req GoogleAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", app_errors.ErrValidation))
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}

	user, token, err := h.service.LoginWithGoogle(r.Context(), req.Credential)
	if err != nil {
		respondWithError(w, err)
		return
	}
	h.setAuthCookie(w, token)
	respondWithJSON(w, http.StatusOK, user)
}

// Me godoc
// @Summary      Get the authenticated account
// @Tags         Auth
// @Produce      json
// @Success      200  {object}  model.User
// @Failure      401  {object}  ErrorResponse
// @Router       /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, userFromContext(r.Context()))
}

func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.service.TokenExpiry().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
