package token

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by FindValid for unknown, revoked and expired tokens alike.
var ErrNotFound = errors.New("refresh token not found")

// Ledger is the authority on whether a refresh token is still usable. A token
// that verifies cryptographically but has no valid record must be rejected.
type Ledger interface {
	// Issue records a freshly minted refresh token and returns the record id.
	Issue(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time, meta Metadata) (uuid.UUID, error)

	// FindValid returns the record only if it is neither revoked nor expired.
	FindValid(ctx context.Context, token string) (*RefreshToken, error)

	// Revoke marks a single record revoked. Unknown tokens are not an error.
	Revoke(ctx context.Context, token string) error

	// RevokeAllForUser revokes every non-revoked record owned by userID and
	// returns how many were affected.
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)

	// PurgeExpired physically removes records that expired before the given
	// time. Validity never depends on it.
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// Digest is the lookup key stored for a token string.
func Digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
