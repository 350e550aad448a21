package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	// ErrTokenExpired means the signature is valid but the token is past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed covers every other verification failure.
	ErrTokenMalformed = errors.New("token malformed or signature invalid")
)

var signingMethod = jwt.SigningMethodHS512

type AccessClaims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	UserID    string `json:"userId"`
	TokenType string `json:"tokenType"`
	jwt.RegisteredClaims
}

// UserUUID returns the user id the claims were minted for.
func (c *AccessClaims) UserUUID() (uuid.UUID, error) { return uuid.Parse(c.UserID) }

func (c *RefreshClaims) UserUUID() (uuid.UUID, error) { return uuid.Parse(c.UserID) }

type CodecConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Codec signs and verifies access and refresh tokens. Each token type has its
// own secret and lifetime, so leaking one secret does not compromise the other.
type Codec struct {
	cfg CodecConfig
	now func() time.Time
}

type CodecOption func(*Codec)

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

func NewCodec(cfg CodecConfig, opts ...CodecOption) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: both access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token: TTLs must be positive")
	}
	c := &Codec{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// SignAccess mints an access token and returns it with its expiry.
func (c *Codec) SignAccess(userID uuid.UUID, email string) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.cfg.AccessTTL)
	claims := AccessClaims{
		UserID:           userID.String(),
		Email:            email,
		TokenType:        TypeAccess,
		RegisteredClaims: registered(now, expiresAt),
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.cfg.AccessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expiresAt, nil
}

// SignRefresh mints a refresh token. The caller must record it in the Ledger
// before handing it out.
func (c *Codec) SignRefresh(userID uuid.UUID) (string, time.Time, error) {
	now := c.now()
	expiresAt := now.Add(c.cfg.RefreshTTL)
	claims := RefreshClaims{
		UserID:           userID.String(),
		TokenType:        TypeRefresh,
		RegisteredClaims: registered(now, expiresAt),
	}
	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(c.cfg.RefreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return signed, expiresAt, nil
}

func (c *Codec) VerifyAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenString, claims, c.cfg.AccessSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrTokenMalformed
	}
	if _, err := claims.UserUUID(); err != nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (c *Codec) VerifyRefresh(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenString, claims, c.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrTokenMalformed
	}
	if _, err := claims.UserUUID(); err != nil {
		return nil, ErrTokenMalformed
	}
	return claims, nil
}

func (c *Codec) parse(tokenString string, claims jwt.Claims, secret []byte) error {
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err == nil {
		return nil
	}
	// jwt checks the signature before the time-based claims, so an expired
	// error implies the signature was valid.
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
}

func registered(now, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}
