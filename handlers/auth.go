package handlers

import (
	"errors"
	"net/http"

	"structura/apperr"
	"structura/auth"
	"structura/models"
)

// loginFailed is the single message for every credential failure.
const loginFailed = "Invalid email or password"

type AuthHandler struct {
	resolver *auth.Resolver
}

func NewAuthHandler(resolver *auth.Resolver) *AuthHandler {
	return &AuthHandler{resolver: resolver}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	User    *models.Identity `json:"user,omitempty"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	identity, err := h.resolver.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, loginResponse{Success: true, Message: "Login successful", User: identity})
	case errors.Is(err, apperr.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, loginResponse{Message: loginFailed})
	case errors.Is(err, apperr.ErrAuthNotFound):
		writeJSON(w, http.StatusNotFound, loginResponse{Message: loginFailed})
	default:
		writeError(w, r, err)
	}
}
