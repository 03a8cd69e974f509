package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/padronlabs/padron/models"
	"github.com/padronlabs/padron/web/auth"
)

// Register creates credentials with the external identity provider.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderJSON(w, http.StatusUnprocessableEntity, models.APIError{Code: http.StatusUnprocessableEntity, Message: err.Error()})

		return
	}

	if req.Email == "" || req.Password == "" {
		renderJSON(w, http.StatusBadRequest, models.APIError{Code: http.StatusBadRequest, Message: "email and password are required"})

		return
	}

	uid, err := h.Deps.Provider.CreateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		status := auth.StatusForProviderError(err)

		h.Deps.Logger.Warn("registration failed", zap.Int("status", status), zap.Error(err))
		renderJSON(w, status, models.APIError{Code: status, Message: err.Error()})

		return
	}

	renderJSON(w, http.StatusOK, models.AuthResponse{UID: uid, Message: "Usuario registrado exitosamente"})
}

// Login verifies a provider-issued token and echoes the user id.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderJSON(w, http.StatusUnprocessableEntity, models.APIError{Code: http.StatusUnprocessableEntity, Message: err.Error()})

		return
	}

	uid, err := h.Deps.Provider.VerifyToken(req.Token)
	if err != nil {
		renderJSON(w, http.StatusUnauthorized, models.APIError{Code: http.StatusUnauthorized, Message: "invalid token"})

		return
	}

	renderJSON(w, http.StatusOK, models.AuthResponse{UID: uid, Message: "Inicio de sesión exitoso"})
}
