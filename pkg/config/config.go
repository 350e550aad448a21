package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	LedgerPostgres = "postgres"
	LedgerRedis    = "redis"
)

// Config is built once at startup and passed explicitly to the components
// that need it. Nothing else in the service reads the environment.
type Config struct {
	Env        string
	ListenAddr string
	LogLevel   string

	DatabaseURL string
	DBOpTimeout time.Duration

	LedgerBackend string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	BcryptCost int

	CookieSecure   bool
	CookieSameSite http.SameSite

	ReaperInterval time.Duration
}

func (c *Config) IsProduction() bool { return c.Env == EnvProduction }

// Load reads an optional .env file and then the process environment. All
// missing or malformed variables are reported together.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		Env:        r.str("APP_ENV", EnvDevelopment),
		ListenAddr: r.str("LISTEN_ADDR", ":8080"),
		LogLevel:   r.str("LOG_LEVEL", "info"),

		DatabaseURL: r.required("DATABASE_URL"),
		DBOpTimeout: r.duration("DB_OP_TIMEOUT", 5*time.Second),

		LedgerBackend: strings.ToLower(r.str("LEDGER_BACKEND", LedgerPostgres)),
		RedisAddr:     r.str("REDIS_ADDR", "localhost:6379"),
		RedisPassword: r.str("REDIS_PASSWORD", ""),
		RedisDB:       r.int("REDIS_DB", 0),

		AccessSecret:  r.required("JWT_ACCESS_SECRET"),
		RefreshSecret: r.required("JWT_REFRESH_SECRET"),
		AccessTTL:     r.duration("JWT_ACCESS_EXPIRY", 15*time.Minute),
		RefreshTTL:    r.duration("JWT_REFRESH_EXPIRY", 7*24*time.Hour),

		BcryptCost: r.int("BCRYPT_COST", 12),

		ReaperInterval: r.duration("REAPER_INTERVAL", time.Hour),
	}
	cfg.CookieSecure = r.bool("COOKIE_SECURE", cfg.IsProduction())
	cfg.CookieSameSite = r.sameSite("COOKIE_SAME_SITE", http.SameSiteStrictMode)

	if cfg.AccessSecret != "" && cfg.AccessSecret == cfg.RefreshSecret {
		r.fail("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		r.fail("token expiries must be positive")
	}
	if cfg.BcryptCost < bcrypt.MinCost || cfg.BcryptCost > bcrypt.MaxCost {
		r.fail(fmt.Sprintf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cfg.BcryptCost))
	}
	if cfg.LedgerBackend != LedgerPostgres && cfg.LedgerBackend != LedgerRedis {
		r.fail(fmt.Sprintf("LEDGER_BACKEND must be %q or %q, got %q", LedgerPostgres, LedgerRedis, cfg.LedgerBackend))
	}

	if err := errors.Join(r.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

type reader struct {
	getenv func(string) string
	errs   []error
}

func (r *reader) fail(msg string) {
	r.errs = append(r.errs, errors.New(msg))
}

func (r *reader) str(key, def string) string {
	value := strings.TrimSpace(r.getenv(key))
	if value == "" {
		return def
	}
	return value
}

func (r *reader) required(key string) string {
	value := strings.TrimSpace(r.getenv(key))
	if value == "" {
		r.fail("missing required environment variable: " + key)
	}
	return value
}

func (r *reader) int(key string, def int) int {
	valueStr := r.str(key, "")
	if valueStr == "" {
		return def
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		r.fail(fmt.Sprintf("invalid int for %s: %s", key, valueStr))
		return def
	}
	return value
}

func (r *reader) bool(key string, def bool) bool {
	valueStr := r.str(key, "")
	if valueStr == "" {
		return def
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		r.fail(fmt.Sprintf("invalid bool for %s: %s", key, valueStr))
		return def
	}
	return value
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	valueStr := r.str(key, "")
	if valueStr == "" {
		return def
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		r.fail(fmt.Sprintf("invalid duration for %s: %s", key, valueStr))
		return def
	}
	return value
}

func (r *reader) sameSite(key string, def http.SameSite) http.SameSite {
	switch strings.ToLower(r.str(key, "")) {
	case "":
		return def
	case "strict":
		return http.SameSiteStrictMode
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		r.fail("COOKIE_SAME_SITE must be strict, lax or none")
		return def
	}
}
