package auth

import "time"

// Account represents a user account able to sign in to the admin surface.
type Account struct {
	ID           int64
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
