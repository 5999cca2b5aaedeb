package handlers

import (
	"context"
	"net/http"

	"github.com/johkker/delice/internal/services"
	"github.com/johkker/delice/internal/verification"
	pkghttp "github.com/johkker/delice/pkg/http"
)

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*services.AuthResponse, error)
}

// RegistrationServiceInterface defines the interface for phone-gated signup
type RegistrationServiceInterface interface {
	Start(ctx context.Context, in services.RegistrationInput) (*services.VerificationStarted, error)
	VerifyChannel(ctx context.Context, token string, channel verification.Channel, code string) (*services.RegistrationVerification, error)
	Resend(ctx context.Context, token string, target services.ResendTarget) (*services.ResendResult, error)
}

// AuthHandler handles the public /auth endpoints
type AuthHandler struct {
	service      AuthServiceInterface
	registration RegistrationServiceInterface
}

func NewAuthHandler(service AuthServiceInterface, registration RegistrationServiceInterface) *AuthHandler {
	return &AuthHandler{
		service:      service,
		registration: registration,
	}
}

// Request DTOs

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone" validate:"required,phone"`
	Document string `json:"document" validate:"required,max=18"`
	Role     string `json:"role,omitempty" validate:"omitempty,oneof=customer producer"`
}

type VerifyCodeRequest struct {
	Token string `json:"token" validate:"required"`
	Code  string `json:"code" validate:"required,numeric,min=4,max=10"`
}

type ResendCodeRequest struct {
	Token string `json:"token" validate:"required"`
	Type  string `json:"type" validate:"required,oneof=email phone both"`
}

// Register starts a registration and sends the phone code
// @Summary Start registration
// @Accept json
// @Param request body RegisterRequest true "Register request"
// @Produce json
// @Success 202 {object} services.VerificationStarted
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	started, err := h.registration.Start(r.Context(), services.RegistrationInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Phone:    req.Phone,
		Document: req.Document,
		Role:     req.Role,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusAccepted, started)
}

// VerifyPhone confirms the phone code and creates the account
// @Summary Verify registration phone
// @Accept json
// @Param request body VerifyCodeRequest true "Verification code"
// @Produce json
// @Success 201 {object} services.RegistrationVerification
// @Failure 410 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /auth/verify-phone [post]
func (h *AuthHandler) VerifyPhone(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, verification.ChannelPhone)
}

// VerifyEmail confirms the optional email code
// @Summary Verify registration email
// @Accept json
// @Param request body VerifyCodeRequest true "Verification code"
// @Produce json
// @Success 200 {object} services.RegistrationVerification
// @Failure 410 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	h.verify(w, r, verification.ChannelEmail)
}

func (h *AuthHandler) verify(w http.ResponseWriter, r *http.Request, channel verification.Channel) {
	var req VerifyCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.registration.VerifyChannel(r.Context(), req.Token, channel, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusOK
	if result.Auth != nil {
		status = http.StatusCreated
	}
	pkghttp.WriteJSON(w, status, result)
}

// ResendCode re-sends registration codes
// @Summary Resend registration codes
// @Accept json
// @Param request body ResendCodeRequest true "Resend request"
// @Produce json
// @Success 200 {object} services.ResendResult
// @Failure 410 {object} ErrorResponse
// @Router /auth/resend-code [post]
func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req ResendCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.registration.Resend(r.Context(), req.Token, services.ResendTarget(req.Type))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// Login handles user login
// @Summary User login
// @Accept json
// @Param request body LoginRequest true "Login request"
// @Produce json
// @Success 200 {object} services.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// decodeAndValidate writes the error response itself and reports whether
// the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := pkghttp.DecodeJSON(w, r, dst); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteValidationError(w, err.Error())
		return false
	}
	return true
}
