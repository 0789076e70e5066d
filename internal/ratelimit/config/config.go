package config

import (
	"time"

	"gatekeeper/internal/ratelimit/models"
)

// Policy names.
const (
	PolicyAuth          = "auth"
	PolicyRegister      = "register"
	PolicyAPI           = "api"
	PolicyPasswordReset = "password_reset"
)

// Policy is one named fixed-window limit and the way its key is derived from a request.
type Policy struct {
	Name        string
	Window      time.Duration
	MaxRequests int
	// Message is returned to the client on rejection.
	Message string
	Prefix  models.KeyPrefix
	// KeyByEmail adds the "email" field of the request body to the key.
	KeyByEmail bool
}

// Key builds the counter key for a request from ip (and email when the policy uses it).
func (p Policy) Key(ip, email string) string {
	return models.NewKey(p.Prefix, ip, p.KeyByEmail, email)
}

// Config holds rate limiting configuration.
type Config struct {
	Auth          Policy
	Register      Policy
	API           Policy
	PasswordReset Policy

	// MaxKeys caps the number of live windows per store; 0 means unbounded.
	MaxKeys int
}

// DefaultConfig returns the four standard policies.
func DefaultConfig() *Config {
	return &Config{
		Auth: Policy{
			Name:        PolicyAuth,
			Window:      15 * time.Minute,
			MaxRequests: 5,
			Message:     "Too many login attempts, please try again in 15 minutes",
			Prefix:      models.KeyPrefixAuth,
			KeyByEmail:  true,
		},
		Register: Policy{
			Name:        PolicyRegister,
			Window:      time.Hour,
			MaxRequests: 3,
			Message:     "Too many registration attempts, please try again later",
			Prefix:      models.KeyPrefixRegister,
		},
		API: Policy{
			Name:        PolicyAPI,
			Window:      time.Minute,
			MaxRequests: 100,
			Message:     "Too many requests, please slow down",
			Prefix:      models.KeyPrefixNone,
		},
		PasswordReset: Policy{
			Name:        PolicyPasswordReset,
			Window:      time.Hour,
			MaxRequests: 3,
			Message:     "Too many password reset attempts",
			Prefix:      models.KeyPrefixReset,
			KeyByEmail:  true,
		},
	}
}

// Policies lists the configured policies in a stable order.
func (c *Config) Policies() []Policy {
	return []Policy{c.Auth, c.Register, c.API, c.PasswordReset}
}
