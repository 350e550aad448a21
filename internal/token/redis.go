package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLedger keeps one hash per refresh token (rt:<digest>) that expires with
// the token, plus a set per user (rt:user:<id>) used for bulk revocation. The
// user sets carry no TTL; dangling members are pruned by RevokeAllForUser and
// PurgeExpired. The revoke-all script derives record keys at run time, so the
// ledger needs a single Redis node rather than a Cluster.
type RedisLedger struct {
	rdb       *redis.Client
	prefix    string
	opTimeout time.Duration
	now       func() time.Time
}

func NewRedisLedger(rdb *redis.Client, prefix string, opTimeout time.Duration) *RedisLedger {
	if prefix == "" {
		prefix = "rt"
	}
	return &RedisLedger{rdb: rdb, prefix: prefix, opTimeout: opTimeout, now: time.Now}
}

var _ Ledger = (*RedisLedger)(nil)

const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  redis.call("HSET", KEYS[1], "revoked", "1", "updated_at", ARGV[1])
  return 1
end
return 0
`

var revokeLua = redis.NewScript(revokeScript)

// ARGV[2] is the record key prefix; stale set members are dropped on the way.
const revokeAllScript = `
local members = redis.call("SMEMBERS", KEYS[1])
local revoked = 0
for _, digest in ipairs(members) do
  local key = ARGV[2] .. digest
  if redis.call("EXISTS", key) == 1 then
    if redis.call("HGET", key, "revoked") ~= "1" then
      redis.call("HSET", key, "revoked", "1", "updated_at", ARGV[1])
      revoked = revoked + 1
    end
  else
    redis.call("SREM", KEYS[1], digest)
  end
end
return revoked
`

var revokeAllLua = redis.NewScript(revokeAllScript)

func (l *RedisLedger) recordKey(digest string) string { return l.prefix + ":" + digest }

func (l *RedisLedger) userKey(userID uuid.UUID) string { return l.prefix + ":user:" + userID.String() }

func (l *RedisLedger) Issue(ctx context.Context, token string, userID uuid.UUID, expiresAt time.Time, meta Metadata) (uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	id := uuid.New()
	digest := Digest(token)
	now := formatTime(l.now())
	key := l.recordKey(digest)
	userKey := l.userKey(userID)

	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"id":         id.String(),
			"user_id":    userID.String(),
			"expires_at": formatTime(expiresAt),
			"revoked":    "0",
			"user_agent": meta.UserAgent,
			"client_ip":  meta.ClientIP,
			"created_at": now,
			"updated_at": now,
		})
		pipe.ExpireAt(ctx, key, expiresAt)
		pipe.SAdd(ctx, userKey, digest)
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("redis issue refresh token: %w", err)
	}
	return id, nil
}

func (l *RedisLedger) FindValid(ctx context.Context, token string) (*RefreshToken, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	digest := Digest(token)
	fields, err := l.rdb.HGetAll(ctx, l.recordKey(digest)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis find refresh token: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	rt, err := decodeRecord(digest, fields)
	if err != nil {
		return nil, err
	}
	if !rt.Valid(l.now()) {
		return nil, ErrNotFound
	}
	return rt, nil
}

func (l *RedisLedger) Revoke(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	key := l.recordKey(Digest(token))
	if err := revokeLua.Run(ctx, l.rdb, []string{key}, formatTime(l.now())).Err(); err != nil {
		return fmt.Errorf("redis revoke refresh token: %w", err)
	}
	return nil
}

func (l *RedisLedger) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	n, err := revokeAllLua.Run(ctx, l.rdb, []string{l.userKey(userID)}, formatTime(l.now()), l.prefix+":").Int64()
	if err != nil {
		return 0, fmt.Errorf("redis revoke user refresh tokens: %w", err)
	}
	return n, nil
}

// PurgeExpired drops records whose expiry passed but whose key TTL has not
// fired yet, and prunes dangling members from the per-user sets.
func (l *RedisLedger) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.opTimeout)
	defer cancel()

	var purged int64
	iter := l.rdb.Scan(ctx, 0, l.prefix+":user:*", 100).Iterator()
	for iter.Next(ctx) {
		userKey := iter.Val()
		digests, err := l.rdb.SMembers(ctx, userKey).Result()
		if err != nil {
			return purged, fmt.Errorf("redis purge refresh tokens: %w", err)
		}
		for _, digest := range digests {
			key := l.recordKey(digest)
			raw, err := l.rdb.HGet(ctx, key, "expires_at").Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return purged, fmt.Errorf("redis purge refresh tokens: %w", err)
			}
			if err == nil {
				expiresAt, perr := time.Parse(time.RFC3339Nano, raw)
				if perr == nil && expiresAt.After(before) {
					continue
				}
				if err := l.rdb.Del(ctx, key).Err(); err != nil {
					return purged, fmt.Errorf("redis purge refresh tokens: %w", err)
				}
				purged++
			}
			if err := l.rdb.SRem(ctx, userKey, digest).Err(); err != nil {
				return purged, fmt.Errorf("redis purge refresh tokens: %w", err)
			}
		}
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("redis purge refresh tokens: %w", err)
	}
	return purged, nil
}

func decodeRecord(digest string, fields map[string]string) (*RefreshToken, error) {
	rt := &RefreshToken{
		TokenHash: digest,
		UserAgent: fields["user_agent"],
		ClientIP:  fields["client_ip"],
	}
	var err error
	if rt.ID, err = uuid.Parse(fields["id"]); err != nil {
		return nil, fmt.Errorf("redis refresh token %s: bad id: %w", digest, err)
	}
	if rt.UserID, err = uuid.Parse(fields["user_id"]); err != nil {
		return nil, fmt.Errorf("redis refresh token %s: bad user_id: %w", digest, err)
	}
	if rt.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expires_at"]); err != nil {
		return nil, fmt.Errorf("redis refresh token %s: bad expires_at: %w", digest, err)
	}
	if rt.Revoked, err = strconv.ParseBool(fields["revoked"]); err != nil {
		return nil, fmt.Errorf("redis refresh token %s: bad revoked flag: %w", digest, err)
	}
	// Timestamps are informational; tolerate records written without them.
	rt.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	rt.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return rt, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }
