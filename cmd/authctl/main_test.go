package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/AntonTsoy/auth-service/internal/logging"
	"github.com/AntonTsoy/auth-service/internal/token"
	"github.com/AntonTsoy/auth-service/internal/user"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDeps(t *testing.T) (commandDeps, *bytes.Buffer) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	out := &bytes.Buffer{}
	return commandDeps{
		users:  user.NewMemoryStore(),
		ledger: token.NewRedisLedger(rdb, "rt", time.Second),
		log:    logging.Discard(),
		out:    out,
		now:    time.Now,
	}, out
}

func addUser(t *testing.T, d commandDeps, email string) *user.User {
	t.Helper()
	u := user.New(email, "Test", time.Now())
	u.PasswordHash = "$2a$hash"
	require.NoError(t, d.users.Create(context.Background(), u))
	return u
}

func TestExecute_Usage(t *testing.T) {
	d, _ := newDeps(t)
	for _, args := range [][]string{nil, {"nope"}, {"activate"}, {"deactivate", "a", "b"}, {"purge", "extra"}} {
		assert.ErrorIs(t, execute(context.Background(), d, args), errUsage, "%v", args)
	}
}

func TestExecute_DeactivateAndActivate(t *testing.T) {
	d, out := newDeps(t)
	ctx := context.Background()
	u := addUser(t, d, "a@x.com")

	require.NoError(t, execute(ctx, d, []string{"deactivate", "A@X.com"}))
	got, err := d.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Contains(t, out.String(), "a@x.com: active=false")

	require.NoError(t, execute(ctx, d, []string{"activate", "a@x.com"}))
	got, err = d.users.FindByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)
}

func TestExecute_UnknownEmail(t *testing.T) {
	d, _ := newDeps(t)
	err := execute(context.Background(), d, []string{"deactivate", "ghost@x.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost@x.com")
}

func TestExecute_LogoutAll(t *testing.T) {
	d, out := newDeps(t)
	ctx := context.Background()
	u := addUser(t, d, "a@x.com")
	other := uuid.New()

	for _, owner := range []uuid.UUID{u.ID, u.ID, other} {
		_, err := d.ledger.Issue(ctx, uuid.NewString(), owner, time.Now().Add(time.Hour), token.Metadata{})
		require.NoError(t, err)
	}

	require.NoError(t, execute(ctx, d, []string{"logout-all", "a@x.com"}))
	assert.Contains(t, out.String(), "revoked 2 refresh tokens")
}

func TestExecute_Purge(t *testing.T) {
	d, out := newDeps(t)
	ctx := context.Background()
	issued := time.Now()
	_, err := d.ledger.Issue(ctx, "old", uuid.New(), issued.Add(time.Minute), token.Metadata{})
	require.NoError(t, err)
	_, err = d.ledger.Issue(ctx, "fresh", uuid.New(), issued.Add(time.Hour), token.Metadata{})
	require.NoError(t, err)

	d.now = func() time.Time { return issued.Add(10 * time.Minute) }
	require.NoError(t, execute(ctx, d, []string{"purge"}))
	assert.Contains(t, out.String(), "purged 1 expired refresh tokens")
}
