package token

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisLedgerTest(t *testing.T) (*RedisLedger, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	return NewRedisLedger(rdb, "rt", time.Second), mr
}

func TestRedisLedger_IssueAndFindValid(t *testing.T) {
	l, mr := newRedisLedgerTest(t)
	ctx := context.Background()
	userID := uuid.New()
	expiresAt := time.Now().Add(time.Hour)

	id, err := l.Issue(ctx, "tok-1", userID, expiresAt, Metadata{UserAgent: "curl/8", ClientIP: "10.0.0.1"})
	require.NoError(t, err)

	got, err := l.FindValid(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, userID, got.UserID)
	assert.Equal(t, Digest("tok-1"), got.TokenHash)
	assert.Equal(t, "curl/8", got.UserAgent)
	assert.WithinDuration(t, expiresAt, got.ExpiresAt, time.Millisecond)
	assert.False(t, got.Revoked)

	assert.True(t, mr.Exists("rt:"+Digest("tok-1")))
	assert.False(t, mr.Exists("rt:tok-1"), "raw token must not be used as a key")
	assert.Greater(t, mr.TTL("rt:"+Digest("tok-1")), time.Duration(0))
}

func TestRedisLedger_FindValid_Unknown(t *testing.T) {
	l, _ := newRedisLedgerTest(t)

	_, err := l.FindValid(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisLedger_FindValid_Expired(t *testing.T) {
	l, mr := newRedisLedgerTest(t)
	ctx := context.Background()

	_, err := l.Issue(ctx, "tok-1", uuid.New(), time.Now().Add(time.Minute), Metadata{})
	require.NoError(t, err)

	// The ledger's clock passes expiry before redis evicts the key.
	l.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = l.FindValid(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)

	// And once redis evicts it, it is simply gone.
	l.now = time.Now
	mr.FastForward(2 * time.Minute)
	_, err = l.FindValid(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisLedger_RevokeIsIdempotent(t *testing.T) {
	l, mr := newRedisLedgerTest(t)
	ctx := context.Background()

	_, err := l.Issue(ctx, "tok-1", uuid.New(), time.Now().Add(time.Hour), Metadata{})
	require.NoError(t, err)

	require.NoError(t, l.Revoke(ctx, "tok-1"))
	require.NoError(t, l.Revoke(ctx, "tok-1"))
	require.NoError(t, l.Revoke(ctx, "never-issued"))

	_, err = l.FindValid(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, mr.Exists("rt:"+Digest("never-issued")), "revoking an unknown token must not create a record")
}

func TestRedisLedger_RevokeAllForUser(t *testing.T) {
	l, _ := newRedisLedgerTest(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	exp := time.Now().Add(time.Hour)

	for _, tok := range []string{"a1", "a2", "a3"} {
		_, err := l.Issue(ctx, tok, alice, exp, Metadata{})
		require.NoError(t, err)
	}
	_, err := l.Issue(ctx, "b1", bob, exp, Metadata{})
	require.NoError(t, err)
	require.NoError(t, l.Revoke(ctx, "a3"))

	n, err := l.RevokeAllForUser(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, tok := range []string{"a1", "a2", "a3"} {
		_, err := l.FindValid(ctx, tok)
		assert.ErrorIs(t, err, ErrNotFound, tok)
	}
	_, err = l.FindValid(ctx, "b1")
	assert.NoError(t, err)

	n, err = l.RevokeAllForUser(ctx, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestRedisLedger_RevokeAllUsesConfiguredPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedisLedger(rdb, "sess", time.Second)
	ctx := context.Background()
	userID := uuid.New()

	_, err := l.Issue(ctx, "t1", userID, time.Now().Add(time.Hour), Metadata{})
	require.NoError(t, err)
	require.True(t, mr.Exists("sess:"+Digest("t1")))

	n, err := l.RevokeAllForUser(ctx, userID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, "1", mr.HGet("sess:"+Digest("t1"), "revoked"))
}

func TestRedisLedger_TokenIssuedAfterRevokeAllStaysValid(t *testing.T) {
	l, _ := newRedisLedgerTest(t)
	ctx := context.Background()
	userID := uuid.New()
	exp := time.Now().Add(time.Hour)

	_, err := l.Issue(ctx, "old", userID, exp, Metadata{})
	require.NoError(t, err)
	_, err = l.RevokeAllForUser(ctx, userID)
	require.NoError(t, err)
	_, err = l.Issue(ctx, "new", userID, exp, Metadata{})
	require.NoError(t, err)

	_, err = l.FindValid(ctx, "old")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = l.FindValid(ctx, "new")
	assert.NoError(t, err)
}

func TestRedisLedger_PurgeExpired(t *testing.T) {
	l, mr := newRedisLedgerTest(t)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now()

	_, err := l.Issue(ctx, "short", userID, now.Add(time.Minute), Metadata{})
	require.NoError(t, err)
	_, err = l.Issue(ctx, "long", userID, now.Add(time.Hour), Metadata{})
	require.NoError(t, err)

	n, err := l.PurgeExpired(ctx, now.Add(10*time.Minute))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.False(t, mr.Exists("rt:"+Digest("short")))
	assert.True(t, mr.Exists("rt:"+Digest("long")))

	members, err := mr.Members("rt:user:" + userID.String())
	require.NoError(t, err)
	assert.Equal(t, []string{Digest("long")}, members)
}
