package models

import "time"

// TokenState is the lifecycle position of a refresh token row.
type TokenState string

const (
	TokenActive  TokenState = "active"
	TokenExpired TokenState = "expired"
	TokenRevoked TokenState = "revoked"
)

// RefreshToken represents a persisted refresh session. Only the SHA-256 hash of the secret is stored.
// Rows are never deleted; revocation keeps the audit trail.
type RefreshToken struct {
	ID         string     `db:"id" json:"id"`
	UserID     string     `db:"user_id" json:"user_id"`
	TokenHash  string     `db:"token_hash" json:"-"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	ReplacedBy *string    `db:"replaced_by" json:"-"`
	IPAddress  string     `db:"ip_address" json:"ip_address"`
	UserAgent  string     `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// State reports the token state at the given instant. Revocation wins over expiry.
func (t *RefreshToken) State(now time.Time) TokenState {
	if t.RevokedAt != nil {
		return TokenRevoked
	}
	if !now.Before(t.ExpiresAt) {
		return TokenExpired
	}
	return TokenActive
}
