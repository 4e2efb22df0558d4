package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/upb/calendar-api/middleware"
	"github.com/upb/calendar-api/models"
	"github.com/upb/calendar-api/services"
	"github.com/upb/calendar-api/utils"
	"go.uber.org/zap"
)

// AuthService defines the account operations used by AuthHandler
type AuthService interface {
	Register(ctx context.Context, input services.RegisterInput) error
	Login(ctx context.Context, input services.LoginInput) (*services.LoginResult, error)
	Logout(ctx context.Context, token string, expiresAt time.Time) error
}

// LoginResponse is the body of a successful login
type LoginResponse struct {
	Message string            `json:"message"`
	Token   string            `json:"token"`
	User    models.PublicUser `json:"user"`
}

// AuthHandler handles registration, login and logout
type AuthHandler struct {
	service AuthService
	body    *utils.BodyReader
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, body *utils.BodyReader, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		body:    body,
		logger:  logger,
	}
}

// HandleRegister handles POST /api/users/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var input services.RegisterInput
	if err := h.body.DecodeJSON(w, r, &input); err != nil {
		HandleBodyError(w, err, h.logger)
		return
	}

	if err := h.service.Register(r.Context(), input); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteMessage(w, http.StatusCreated, "User registered successfully"); err != nil {
		h.logger.Error("failed to write register response", zap.Error(err))
	}
}

// HandleLogin handles POST /api/users/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := h.body.DecodeJSON(w, r, &input); err != nil {
		HandleBodyError(w, err, h.logger)
		return
	}

	result, err := h.service.Login(r.Context(), input)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	response := LoginResponse{
		Message: "Login successful!",
		Token:   result.Token,
		User:    result.User,
	}
	if err := utils.WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to write login response", zap.Error(err))
	}
}

// HandleLogout handles POST /api/users/logout. The route is protected, so the
// presented token has already been verified.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := middleware.GetTokenFromContext(r.Context())
	if token == nil {
		HandleServiceError(w, services.ErrUnauthorized, h.logger)
		return
	}

	if err := h.service.Logout(r.Context(), token.Raw, token.ExpiresAt); err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteMessage(w, http.StatusOK, "Logout successful"); err != nil {
		h.logger.Error("failed to write logout response", zap.Error(err))
	}
}
