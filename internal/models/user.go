package models

import "time"

const (
	RoleCustomer = "customer"
	RoleProducer = "producer"
	RoleAdmin    = "admin"
)

type User struct {
	ID                string
	Name              string
	Email             string
	PasswordHash      string
	Phone             string
	Document          string
	AvatarURL         *string
	Roles             []string
	EmailVerified     bool
	PhoneVerified     bool
	PasswordChangedAt *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
