package services

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/johkker/delice/internal/models"
	"github.com/johkker/delice/pkg/document"
	"github.com/johkker/delice/pkg/phone"
)

var validate = validator.New()

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return "", models.ErrInvalidEmail
	}
	return email, nil
}

// normalizePhone accepts E.164 numbers with the leading + only.
func normalizePhone(number string) (string, error) {
	number = strings.TrimSpace(number)
	if !phone.Valid(number) {
		return "", models.ErrInvalidPhone
	}
	return number, nil
}

func normalizeDocument(doc string) (string, error) {
	formatted, err := document.Format(doc)
	if err != nil {
		return "", models.ErrInvalidDocument
	}
	return formatted, nil
}

// normalizeRoles maps the requested signup role to the stored role set.
// Admin is never self-assigned.
func normalizeRoles(role string) ([]string, error) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "", models.RoleCustomer:
		return []string{models.RoleCustomer}, nil
	case models.RoleProducer:
		return []string{models.RoleCustomer, models.RoleProducer}, nil
	default:
		return nil, models.ErrInvalidRole
	}
}
