// Package domain contains the core concepts of the chat system:
// users, two-party conversations and their messages.
package domain

import "time"

type Status string

const (
	// StatusPending is assigned at registration, before OTP verification.
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
)

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Avatar       string    `json:"avatar,omitempty"`
	Role         Role      `json:"role"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Public strips fields that must never cross the wire.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}
