package handlers

import (
	"errors"
	"net/http"

	"github.com/johkker/delice/internal/models"
	pkghttp "github.com/johkker/delice/pkg/http"
)

// writeServiceError maps service sentinels to the JSON error envelope.
// Anything unrecognised is reported as a generic internal error.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		pkghttp.WriteGone(w, "Verification token invalid or expired")
	case errors.Is(err, models.ErrInvalidCode):
		pkghttp.WriteUnprocessable(w, "invalid_code", "Invalid verification code")
	case errors.Is(err, models.ErrAlreadyVerified):
		pkghttp.WriteError(w, http.StatusConflict, "already_verified", "Channel already verified")

	case errors.Is(err, models.ErrEmailInUse):
		pkghttp.WriteError(w, http.StatusConflict, "email_in_use", "Email already registered")
	case errors.Is(err, models.ErrPhoneInUse):
		pkghttp.WriteError(w, http.StatusConflict, "phone_in_use", "Phone already registered")
	case errors.Is(err, models.ErrDocumentInUse):
		pkghttp.WriteError(w, http.StatusConflict, "document_in_use", "Document already registered")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")

	case errors.Is(err, models.ErrInvalidDocument):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_document", "Invalid CPF or CNPJ")
	case errors.Is(err, models.ErrInvalidPassword):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_password",
			"Password must be 8 to 72 characters with at least one letter and one digit")
	case errors.Is(err, models.ErrInvalidEmail):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_email", "Invalid email address")
	case errors.Is(err, models.ErrInvalidPhone):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_phone", "Phone must be in E.164 format")
	case errors.Is(err, models.ErrInvalidRole):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_role", "Role cannot be self-assigned")
	case errors.Is(err, models.ErrSameValue):
		pkghttp.WriteError(w, http.StatusBadRequest, "same_value", "New value equals the current one")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, "Invalid request")

	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication failed")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "User not found")
	case errors.Is(err, models.ErrDeliveryFailed):
		pkghttp.WriteBadGateway(w, "Verification code could not be delivered, try again")
	default:
		pkghttp.WriteInternalError(w, "Internal server error")
	}
}
