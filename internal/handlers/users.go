package handlers

import (
	"context"
	"net/http"

	"github.com/johkker/delice/internal/auth"
	"github.com/johkker/delice/internal/services"
	pkghttp "github.com/johkker/delice/pkg/http"
)

// UserService defines the interface for profile reads and updates
type UserService interface {
	GetProfile(ctx context.Context, userID string) (*services.UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, in services.UpdateProfileInput) (*services.UserResponse, error)
}

// ProfileChangeService defines the interface for verified profile changes
type ProfileChangeService interface {
	InitiateEmailChange(ctx context.Context, userID, newEmail, currentPassword string) (*services.VerificationStarted, error)
	InitiatePhoneChange(ctx context.Context, userID, newPhone, currentPassword string) (*services.VerificationStarted, error)
	InitiatePasswordChange(ctx context.Context, userID, newPassword string) (*services.VerificationStarted, error)
	Complete(ctx context.Context, userID, token, code string) (*services.ChangeResult, error)
	Resend(ctx context.Context, userID, token string) (*services.VerificationStarted, error)
}

// UserHandler handles the authenticated /users/me endpoints
type UserHandler struct {
	users   UserService
	changes ProfileChangeService
}

func NewUserHandler(users UserService, changes ProfileChangeService) *UserHandler {
	return &UserHandler{
		users:   users,
		changes: changes,
	}
}

type UpdateProfileRequest struct {
	Name      *string `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=2048"`
}

type ChangeEmailRequest struct {
	NewEmail        string `json:"new_email" validate:"required,email,max=254"`
	CurrentPassword string `json:"current_password" validate:"required"`
}

type ChangePhoneRequest struct {
	NewPhone        string `json:"new_phone" validate:"required,phone"`
	CurrentPassword string `json:"current_password" validate:"required"`
}

type ChangePasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required"`
}

type ResendChangeRequest struct {
	Token string `json:"token" validate:"required"`
}

// GetMe returns the authenticated user's profile
// @Summary Get own profile
// @Produce json
// @Success 200 {object} services.UserResponse
// @Failure 401 {object} ErrorResponse
// @Router /users/me [get]
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.users.GetProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// UpdateMe changes name and avatar
// @Summary Update own profile
// @Accept json
// @Param request body UpdateProfileRequest true "Profile fields"
// @Produce json
// @Success 200 {object} services.UserResponse
// @Router /users/me [patch]
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), userID, services.UpdateProfileInput{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, user)
}

// RequestEmailChange sends a code to the new address
// @Summary Request email change
// @Accept json
// @Param request body ChangeEmailRequest true "New email"
// @Produce json
// @Success 202 {object} services.VerificationStarted
// @Failure 401 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /users/me/email [post]
func (h *UserHandler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req ChangeEmailRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	started, err := h.changes.InitiateEmailChange(r.Context(), userID, req.NewEmail, req.CurrentPassword)
	writeStarted(w, started, err)
}

// RequestPhoneChange sends a code to the new phone
// @Summary Request phone change
// @Accept json
// @Param request body ChangePhoneRequest true "New phone"
// @Produce json
// @Success 202 {object} services.VerificationStarted
// @Router /users/me/phone [post]
func (h *UserHandler) RequestPhoneChange(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req ChangePhoneRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	started, err := h.changes.InitiatePhoneChange(r.Context(), userID, req.NewPhone, req.CurrentPassword)
	writeStarted(w, started, err)
}

// RequestPasswordChange sends a confirmation code to the current email
// @Summary Request password change
// @Accept json
// @Param request body ChangePasswordRequest true "New password"
// @Produce json
// @Success 202 {object} services.VerificationStarted
// @Router /users/me/password [post]
func (h *UserHandler) RequestPasswordChange(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req ChangePasswordRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	started, err := h.changes.InitiatePasswordChange(r.Context(), userID, req.NewPassword)
	writeStarted(w, started, err)
}

// VerifyChange applies a pending change
// @Summary Confirm profile change
// @Accept json
// @Param request body VerifyCodeRequest true "Verification code"
// @Produce json
// @Success 200 {object} services.ChangeResult
// @Failure 410 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /users/me/verify-change [post]
func (h *UserHandler) VerifyChange(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req VerifyCodeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.changes.Complete(r.Context(), userID, req.Token, req.Code)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// ResendChange re-sends the pending change code
// @Summary Resend profile change code
// @Accept json
// @Param request body ResendChangeRequest true "Token"
// @Produce json
// @Success 200 {object} services.VerificationStarted
// @Router /users/me/resend-change [post]
func (h *UserHandler) ResendChange(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req ResendChangeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	started, err := h.changes.Resend(r.Context(), userID, req.Token)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, started)
}

func currentUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims := auth.GetUserFromContext(r)
	if claims == nil || claims.UserID == "" {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return "", false
	}
	return claims.UserID, true
}

func writeStarted(w http.ResponseWriter, started *services.VerificationStarted, err error) {
	if err != nil {
		writeServiceError(w, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusAccepted, started)
}
