package models

import (
	"strings"
	"unicode"
)

// MinPasswordLength is the shortest password accepted at registration and reset.
const MinPasswordLength = 8

// PasswordSpecialChars lists the characters a password must contain at least one of.
const PasswordSpecialChars = `!@#$%^&*(),.?":{}|<>`

var weakPasswords = map[string]struct{}{
	"password":    {},
	"12345678":    {},
	"qwerty":      {},
	"abc123":      {},
	"password123": {},
}

// ValidatePasswordStrength returns the unmet password rules, or nil when password is acceptable.
func ValidatePasswordStrength(password string) []string {
	var problems []string
	if len(password) < MinPasswordLength {
		problems = append(problems, "Password must be at least 8 characters long")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			special = true
		}
	}
	if !upper {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !lower {
		problems = append(problems, "Password must contain at least one lowercase letter")
	}
	if !digit {
		problems = append(problems, "Password must contain at least one number")
	}
	if !special {
		problems = append(problems, "Password must contain at least one special character")
	}
	if _, weak := weakPasswords[strings.ToLower(password)]; weak {
		problems = append(problems, "Password is too common, please choose a stronger password")
	}
	return problems
}
