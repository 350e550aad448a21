package config

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":       "postgres://service:password@db:5432/auth?sslmode=disable",
		"JWT_ACCESS_SECRET":  "access-secret",
		"JWT_REFRESH_SECRET": "refresh-secret",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envMap(baseEnv()))
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 5*time.Second, cfg.DBOpTimeout)
	assert.Equal(t, LedgerPostgres, cfg.LedgerBackend)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.Equal(t, http.SameSiteStrictMode, cfg.CookieSameSite)
	assert.False(t, cfg.CookieSecure)
	assert.Equal(t, time.Hour, cfg.ReaperInterval)
}

func TestFromEnv_ProductionDefaultsToSecureCookie(t *testing.T) {
	env := baseEnv()
	env["APP_ENV"] = EnvProduction

	cfg, err := FromEnv(envMap(env))
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.CookieSecure)
}

func TestFromEnv_Overrides(t *testing.T) {
	env := baseEnv()
	env["JWT_ACCESS_EXPIRY"] = "5m"
	env["JWT_REFRESH_EXPIRY"] = "24h"
	env["LEDGER_BACKEND"] = "Redis"
	env["REDIS_DB"] = "3"
	env["COOKIE_SAME_SITE"] = "lax"
	env["COOKIE_SECURE"] = "true"

	cfg, err := FromEnv(envMap(env))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, LedgerRedis, cfg.LedgerBackend)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, http.SameSiteLaxMode, cfg.CookieSameSite)
	assert.True(t, cfg.CookieSecure)
}

func TestFromEnv_ReportsAllProblems(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"JWT_ACCESS_EXPIRY": "soon",
		"BCRYPT_COST":       "twelve",
	}))
	require.Error(t, err)
	assert.Nil(t, cfg)

	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL")
	assert.Contains(t, msg, "JWT_ACCESS_SECRET")
	assert.Contains(t, msg, "JWT_REFRESH_SECRET")
	assert.Contains(t, msg, "invalid duration for JWT_ACCESS_EXPIRY")
	assert.Contains(t, msg, "invalid int for BCRYPT_COST")
}

func TestFromEnv_RejectsSharedSecret(t *testing.T) {
	env := baseEnv()
	env["JWT_REFRESH_SECRET"] = env["JWT_ACCESS_SECRET"]

	_, err := FromEnv(envMap(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
}

func TestFromEnv_RejectsBcryptCostOutOfRange(t *testing.T) {
	for _, cost := range []string{"3", "32"} {
		env := baseEnv()
		env["BCRYPT_COST"] = cost

		_, err := FromEnv(envMap(env))
		require.Error(t, err, cost)
		assert.Contains(t, err.Error(), "BCRYPT_COST must be between 4 and 31")
	}

	env := baseEnv()
	env["BCRYPT_COST"] = "31"
	cfg, err := FromEnv(envMap(env))
	require.NoError(t, err)
	assert.Equal(t, 31, cfg.BcryptCost)
}

func TestFromEnv_RejectsUnknownLedger(t *testing.T) {
	env := baseEnv()
	env["LEDGER_BACKEND"] = "mongo"

	_, err := FromEnv(envMap(env))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LEDGER_BACKEND")
}
