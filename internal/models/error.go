package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
)

// Verification errors
var (
	// ErrSessionNotFound covers tokens that never existed, were consumed, or expired.
	ErrSessionNotFound = errors.New("verification token invalid or expired")
	ErrInvalidCode     = errors.New("invalid verification code")
	ErrAlreadyVerified = errors.New("channel already verified")
	ErrDeliveryFailed  = errors.New("verification code could not be delivered")
)

// Identity conflicts
var (
	ErrEmailInUse    = fmt.Errorf("email already registered: %w", ErrConflict)
	ErrPhoneInUse    = fmt.Errorf("phone already registered: %w", ErrConflict)
	ErrDocumentInUse = fmt.Errorf("document already registered: %w", ErrConflict)
)

// Validation errors
var (
	ErrInvalidDocument = fmt.Errorf("invalid CPF or CNPJ: %w", ErrBadRequest)
	ErrInvalidPassword = fmt.Errorf("password does not meet requirements: %w", ErrBadRequest)
	ErrInvalidEmail    = fmt.Errorf("invalid email address: %w", ErrBadRequest)
	ErrInvalidPhone    = fmt.Errorf("invalid phone number: %w", ErrBadRequest)
	ErrInvalidRole     = fmt.Errorf("role cannot be self-assigned: %w", ErrBadRequest)
	ErrSameValue       = fmt.Errorf("new value equals the current one: %w", ErrBadRequest)
)
