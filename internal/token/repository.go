package token

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TokenRepository is the PostgreSQL Ledger. Each method runs a single
// statement, so per-record atomicity comes from the database.
type TokenRepository struct {
	db        *sql.DB
	opTimeout time.Duration
	now       func() time.Time
}

func NewTokenRepository(db *sql.DB, opTimeout time.Duration) *TokenRepository {
	return &TokenRepository{db: db, opTimeout: opTimeout, now: time.Now}
}

var _ Ledger = (*TokenRepository)(nil)

func (r *TokenRepository) Issue(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time, meta Metadata) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	id := uuid.New()
	now := r.now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, token_hash, user_id, expires_at, revoked, user_agent, client_ip, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, $5, $6, $7, $7)`,
		id, Digest(token), userID, expiresAt, meta.UserAgent, meta.ClientIP, now,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert refresh token: %w", err)
	}
	return id, nil
}

func (r *TokenRepository) FindValid(ctx context.Context, token string) (*RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	var rt RefreshToken
	err := r.db.QueryRowContext(ctx, `
		SELECT id, token_hash, user_id, expires_at, revoked, user_agent, client_ip, created_at, updated_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND revoked = FALSE AND expires_at > $2`,
		Digest(token), r.now(),
	).Scan(&rt.ID, &rt.TokenHash, &rt.UserID, &rt.ExpiresAt, &rt.Revoked, &rt.UserAgent, &rt.ClientIP, &rt.CreatedAt, &rt.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select refresh token: %w", err)
	}
	return &rt, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, updated_at = $2 WHERE token_hash = $1 AND revoked = FALSE`,
		Digest(token), r.now(),
	)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = TRUE, updated_at = $2 WHERE user_id = $1 AND revoked = FALSE`,
		userID, r.now(),
	)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return n, nil
}

func (r *TokenRepository) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge refresh tokens: %w", err)
	}
	return n, nil
}
