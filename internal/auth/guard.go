package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/AntonTsoy/auth-service/internal/apperr"
	"github.com/AntonTsoy/auth-service/internal/token"
	"github.com/AntonTsoy/auth-service/internal/user"
	"github.com/gin-gonic/gin"
)

const userContextKey = "auth.user"

const (
	msgNoToken       = "Not authorized, no token provided"
	msgTokenExpired  = "Access token expired, please refresh token"
	msgInvalidAccess = "Invalid access token"
	msgUserGone      = "User no longer exists"
	msgUserInactive  = "User account is deactivated"
)

// Guard resolves an access token to an active user. The user is re-read on
// every request, so deactivation takes effect before the token expires.
type Guard struct {
	codec *token.Codec
	users user.Store
}

func NewGuard(codec *token.Codec, users user.Store) *Guard {
	return &Guard{codec: codec, users: users}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. Any other shape yields "".
func BearerToken(header string) string {
	scheme, tok, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	tok = strings.TrimSpace(tok)
	if tok == "" || strings.ContainsAny(tok, " \t") {
		return ""
	}
	return tok
}

func (g *Guard) Authenticate(ctx context.Context, authorization string) (*user.User, error) {
	raw := BearerToken(authorization)
	if raw == "" {
		return nil, apperr.Unauthorized(msgNoToken)
	}

	claims, err := g.codec.VerifyAccess(raw)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, apperr.Unauthorized(msgTokenExpired).Wrap(err)
		}
		return nil, apperr.Unauthorized(msgInvalidAccess).Wrap(err)
	}
	userID, err := claims.UserUUID()
	if err != nil {
		return nil, apperr.Unauthorized(msgInvalidAccess).Wrap(err)
	}

	u, err := g.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperr.Unauthorized(msgUserGone)
		}
		return nil, apperr.Internal(err)
	}
	if !u.IsActive {
		return nil, apperr.Forbidden(msgUserInactive)
	}
	return u, nil
}

// Required rejects the request unless it carries a valid access token of an
// active user.
func (g *Guard) Required() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := g.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.Set(userContextKey, u)
		c.Next()
	}
}

// Optional attaches the user when the token checks out and otherwise lets the
// request through anonymously.
func (g *Guard) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if u, err := g.Authenticate(c.Request.Context(), c.GetHeader("Authorization")); err == nil {
			c.Set(userContextKey, u)
		}
		c.Next()
	}
}

// CurrentUser returns the user attached by Required or Optional.
func CurrentUser(c *gin.Context) (*user.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*user.User)
	return u, ok && u != nil
}
