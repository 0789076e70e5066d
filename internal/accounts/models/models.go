package models

import "time"

// Account is a principal that can sign in with email and password.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Verified     bool
	Active       bool
	CreatedAt    time.Time
}

// CanSignIn reports whether the account is allowed past credential verification.
func (a *Account) CanSignIn() bool {
	return a.Active && a.Verified
}
