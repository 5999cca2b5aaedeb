package verification

import (
	"encoding/json"
	"fmt"
)

// Payload is the pending data a session carries until completion.
// The set of implementations is closed: RegistrationPayload,
// EmailChangePayload, PhoneChangePayload and PasswordChangePayload.
type Payload interface {
	Kind() Kind
	sealed()
}

// ChangePayload is implemented by payloads that mutate an existing account.
type ChangePayload interface {
	Payload
	TargetUserID() string
}

// RegistrationPayload holds a new account, password already hashed.
type RegistrationPayload struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"password_hash"`
	Phone        string   `json:"phone"`
	Document     string   `json:"document"`
	Roles        []string `json:"roles"`
}

type EmailChangePayload struct {
	UserID   string `json:"user_id"`
	NewEmail string `json:"new_email"`
}

type PhoneChangePayload struct {
	UserID   string `json:"user_id"`
	NewPhone string `json:"new_phone"`
}

type PasswordChangePayload struct {
	UserID       string `json:"user_id"`
	PasswordHash string `json:"password_hash"`
}

func (RegistrationPayload) Kind() Kind   { return KindRegistration }
func (EmailChangePayload) Kind() Kind    { return KindEmailChange }
func (PhoneChangePayload) Kind() Kind    { return KindPhoneChange }
func (PasswordChangePayload) Kind() Kind { return KindPasswordChange }

func (RegistrationPayload) sealed()   {}
func (EmailChangePayload) sealed()    {}
func (PhoneChangePayload) sealed()    {}
func (PasswordChangePayload) sealed() {}

func (p EmailChangePayload) TargetUserID() string    { return p.UserID }
func (p PhoneChangePayload) TargetUserID() string    { return p.UserID }
func (p PasswordChangePayload) TargetUserID() string { return p.UserID }

func decodePayload(kind Kind, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)

	switch kind {
	case KindRegistration:
		var v RegistrationPayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindEmailChange:
		var v EmailChangePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindPhoneChange:
		var v PhoneChangePayload
		err = json.Unmarshal(raw, &v)
		p = v
	case KindPasswordChange:
		var v PasswordChangePayload
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("unknown session kind %q", kind)
	}

	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return p, nil
}
