package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/sprintium/internal/apperror"
	"github.com/sakif/sprintium/internal/auth"
	"github.com/sakif/sprintium/internal/service"
)

// AuthHandler serves the /auth endpoints.
//
//   - HandleRegister        POST /auth/register
//   - HandleLogin           POST /auth/login
//   - HandleForgotPassword  POST /auth/forgot-password
//   - HandleResetPassword   POST /auth/reset-password
//   - HandleLogout          POST /auth/logout   (bearer)
//   - HandleMe              GET  /auth/me       (bearer)
type AuthHandler struct {
	svc    *service.AuthService
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, logger: logger}
}

type registerRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse follows the OAuth2 token response shape.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ForgotPasswordResponse carries the reset token. ResetToken is empty when
// the e-mail is unknown; the shape is the same either way.
type ForgotPasswordResponse struct {
	Message    string `json:"message"`
	ResetToken string `json:"reset_token"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"        validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: res.AccessToken,
		TokenType:   "bearer",
		ExpiresIn:   int(res.ExpiresIn.Seconds()),
	})
}

func (h *AuthHandler) HandleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	token, err := h.svc.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ForgotPasswordResponse{
		Message:    "If the email is registered, a reset token has been issued",
		ResetToken: token,
	})
}

func (h *AuthHandler) HandleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Password has been reset"})
}

// HandleLogout revokes the bearer token the request was made with.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, h.logger, apperror.Unauthenticated("valid authentication required"))
		return
	}
	if err := h.svc.Logout(r.Context(), claims); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	email, err := callerEmail(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.svc.Me(r.Context(), email)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
