// Package auth owns the login and session lifecycle: credential checks,
// token issuance, logout and password changes.
package auth

import "time"

// User is an account row. PasswordHash is bcrypt.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	Role         string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
