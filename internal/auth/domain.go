package auth

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned for missing, malformed, expired or wrongly
	// signed bearer tokens.
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrInactiveUser is returned when the token subject is disabled.
	ErrInactiveUser = errors.New("user account is inactive")
)

// User represents an account allowed to operate the POS.
type User struct {
	ID       int64
	Name     string
	Email    string
	IsActive bool
}

// Claims is the bearer token payload. The subject carries the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}
