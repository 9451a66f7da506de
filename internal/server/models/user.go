// Package models holds the persistent records of the auth domain.
package models

import (
	"strconv"
	"time"
)

// User is an account identified by a normalized email.
// PasswordHash is a self-describing digest and must never leave the server.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	IsSuperuser  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Subject is the token subject identifying this user.
func (u *User) Subject() string {
	return strconv.FormatInt(u.ID, 10)
}

// PublicUser is the outbound view of a User.
type PublicUser struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	IsActive    bool      `json:"is_active"`
	IsSuperuser bool      `json:"is_superuser"`
	CreatedAt   time.Time `json:"created_at"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt,
	}
}
