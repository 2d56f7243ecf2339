package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RegisterRequest creates a new account.
type RegisterRequest struct {
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Username *string `json:"username" validate:"omitempty,max=64"`
}

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// ClientMeta identifies the client presenting a refresh secret.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// Session is the outcome of a login or a rotation. RefreshToken is the raw secret and only ever
// leaves the process inside the refresh cookie.
type Session struct {
	AccessToken      string    `json:"accessToken"`
	TokenType        string    `json:"tokenType"`
	ExpiresIn        int64     `json:"expiresIn"`
	RefreshToken     string    `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
	User             *UserInfo `json:"user,omitempty"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string  `json:"id"`
	Email    string  `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
}

// JWTClaims represents the access-token payload. The subject carries the user ID.
type JWTClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the identity encoded in the token.
func (c *JWTClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
