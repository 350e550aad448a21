package user

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@x.com", NormalizeEmail("  A@X.Com "))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestNew(t *testing.T) {
	now := time.Now()
	u := New(" Alice@Example.COM", "  Alice ", now)

	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "Alice", u.Name)
	assert.True(t, u.IsActive)
	assert.Equal(t, now, u.CreatedAt)
	assert.Empty(t, u.PasswordHash)
}

func TestSetPassword_NeverStoresPlaintext(t *testing.T) {
	u := New("a@x.com", "A", time.Now())
	require.NoError(t, u.SetPassword("secret1", bcrypt.MinCost))

	assert.NotEqual(t, "secret1", u.PasswordHash)
	assert.NotContains(t, u.PasswordHash, "secret1")
	assert.True(t, u.VerifyPassword("secret1"))
	assert.False(t, u.VerifyPassword("secret2"))
	assert.False(t, u.VerifyPassword(""))
}

func TestSetPassword_RehashesEachTime(t *testing.T) {
	u := New("a@x.com", "A", time.Now())
	require.NoError(t, u.SetPassword("secret1", bcrypt.MinCost))
	first := u.PasswordHash
	require.NoError(t, u.SetPassword("secret1", bcrypt.MinCost))

	assert.NotEqual(t, first, u.PasswordHash, "bcrypt salts every hash")
	assert.True(t, u.VerifyPassword("secret1"))
}

func TestSetPassword_LimitCountsBytes(t *testing.T) {
	u := New("a@x.com", "A", time.Now())

	// 36 two-byte runes fit exactly; 37 do not.
	require.NoError(t, u.SetPassword(strings.Repeat("é", 36), bcrypt.MinCost))
	err := u.SetPassword(strings.Repeat("é", 37), bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.True(t, u.VerifyPassword(strings.Repeat("é", 36)), "failed call keeps the previous hash")
}

func TestVerifyPassword_NoHash(t *testing.T) {
	u := &User{}
	assert.False(t, u.VerifyPassword(""))
}

func TestJSON_OmitsPasswordHash(t *testing.T) {
	u := New("a@x.com", "A", time.Now())
	require.NoError(t, u.SetPassword("secret1", bcrypt.MinCost))

	for _, v := range []any{u, u.Public()} {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "password")
		assert.NotContains(t, string(raw), u.PasswordHash)
		assert.Contains(t, string(raw), `"email":"a@x.com"`)
	}
}
