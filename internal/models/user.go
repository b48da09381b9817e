package models

import (
	"regexp"
	"strings"
	"time"
)

// Account owns a set of sources and follows other accounts by username.
type Account struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Sources   []Source  `json:"sources"`
	Following []string  `json:"following"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateAccountParams is the input for registering an account.
type CreateAccountParams struct {
	Username string `json:"username"`
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

// ValidateUsername validates a username
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if len(username) < 3 {
		return &ValidationError{Field: "username", Message: "username must be at least 3 characters"}
	}
	if len(username) > 32 {
		return &ValidationError{Field: "username", Message: "username must be at most 32 characters"}
	}
	if !usernameRegex.MatchString(username) {
		return &ValidationError{Field: "username", Message: "username can only contain letters, numbers, underscores, and hyphens"}
	}
	return nil
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AuthToken is a signed access token issued for an account.
type AuthToken struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int    `json:"expiresIn"`
}
