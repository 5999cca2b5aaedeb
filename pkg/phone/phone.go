// Package phone validates international phone numbers.
package phone

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Tag is the validator tag registered by RegisterValidation.
const Tag = "phone"

// E.164 with the leading + required, so the same number cannot be stored
// in two spellings. validator's own e164 tag treats the + as optional.
var e164 = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// Valid reports whether s is a strict E.164 number.
func Valid(s string) bool {
	return e164.MatchString(s)
}

// RegisterValidation adds the "phone" tag to v.
func RegisterValidation(v *validator.Validate) error {
	return v.RegisterValidation(Tag, func(fl validator.FieldLevel) bool {
		return Valid(fl.Field().String())
	})
}
