package token

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken is a Ledger record. The raw token string is never stored, only
// its digest.
type RefreshToken struct {
	ID        uuid.UUID
	TokenHash string
	UserID    uuid.UUID
	ExpiresAt time.Time
	Revoked   bool
	UserAgent string
	ClientIP  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Valid reports whether the record may still be exchanged for an access token.
func (t *RefreshToken) Valid(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// Metadata describes the client a refresh token was issued to. It is
// advisory and never used to reject a token.
type Metadata struct {
	UserAgent string
	ClientIP  string
}
