package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AntonTsoy/auth-service/internal/apperr"
	"github.com/AntonTsoy/auth-service/internal/email"
	"github.com/AntonTsoy/auth-service/internal/logging"
	"github.com/AntonTsoy/auth-service/internal/metrics"
	"github.com/AntonTsoy/auth-service/internal/token"
	"github.com/AntonTsoy/auth-service/internal/user"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	msgEmailTaken         = "Email already registered"
	msgInvalidCredentials = "Invalid email or password"
	msgAccountDeactivated = "Account is deactivated"
	msgInvalidRefresh     = "Invalid or expired refresh token"
	msgPasswordTooLong    = "password must be at most 72 bytes long"
)

type SignupInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

// Session is what a successful signup or login hands back to the client.
type Session struct {
	User             user.PublicUser
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Service drives the session protocol: Anonymous -> Authenticated ->
// (Refreshed)* -> LoggedOut. It holds no per-session state; the credential
// store and the ledger are re-read on every call.
type Service struct {
	users      user.Store
	codec      *token.Codec
	ledger     token.Ledger
	notifier   email.Notifier
	log        *slog.Logger
	metrics    *metrics.Metrics
	bcryptCost int
	now        func() time.Time
}

type Option func(*Service)

func WithNotifier(n email.Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithLogger(log *slog.Logger) Option { return func(s *Service) { s.log = log } }

func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

func WithBcryptCost(cost int) Option { return func(s *Service) { s.bcryptCost = cost } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func NewService(users user.Store, codec *token.Codec, ledger token.Ledger, opts ...Option) *Service {
	s := &Service{
		users:      users,
		codec:      codec,
		ledger:     ledger,
		log:        logging.Discard(),
		bcryptCost: bcrypt.DefaultCost,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Signup(ctx context.Context, in SignupInput, meta token.Metadata) (_ *Session, err error) {
	defer func() { s.metrics.Observe("signup", err) }()

	emailAddr := user.NormalizeEmail(in.Email)
	if _, err := s.users.FindByEmail(ctx, emailAddr); err == nil {
		return nil, apperr.Conflict(msgEmailTaken)
	} else if !errors.Is(err, user.ErrNotFound) {
		return nil, apperr.Internal(err)
	}

	u := user.New(emailAddr, in.Name, s.now())
	if err := u.SetPassword(in.Password, s.bcryptCost); err != nil {
		if errors.Is(err, user.ErrPasswordTooLong) {
			return nil, apperr.Validation(msgPasswordTooLong).Wrap(err)
		}
		return nil, apperr.Internal(err)
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, apperr.Conflict(msgEmailTaken)
		}
		return nil, apperr.Internal(err)
	}

	sess, err := s.issueSession(ctx, u, meta)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user signed up", "user_id", u.ID)
	return sess, nil
}

// Login checks the password before the active flag, so a deactivated account
// is only revealed to a caller who already knows its password.
func (s *Service) Login(ctx context.Context, in LoginInput, meta token.Metadata) (_ *Session, err error) {
	defer func() { s.metrics.Observe("login", err) }()

	u, err := s.users.FindByEmail(ctx, user.NormalizeEmail(in.Email))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, apperr.Unauthorized(msgInvalidCredentials)
		}
		return nil, apperr.Internal(err)
	}
	if !u.VerifyPassword(in.Password) {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}
	if !u.IsActive {
		return nil, apperr.Forbidden(msgAccountDeactivated)
	}

	sess, err := s.issueSession(ctx, u, meta)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return sess, nil
}

// Refresh exchanges a refresh token for a new access token. The refresh token
// itself is not rotated. Unknown, revoked, expired and forged tokens all fail
// the same way.
func (s *Service) Refresh(ctx context.Context, refreshToken string, meta token.Metadata) (_ string, err error) {
	defer func() { s.metrics.Observe("refresh", err) }()

	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		s.log.WarnContext(ctx, "refresh token rejected", "reason", err)
		return "", apperr.Unauthorized(msgInvalidRefresh).Wrap(err)
	}

	rec, err := s.ledger.FindValid(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) {
			s.log.WarnContext(ctx, "refresh token rejected", "reason", "no valid ledger record", "user_id", claims.UserID)
			return "", apperr.Unauthorized(msgInvalidRefresh).Wrap(err)
		}
		return "", apperr.Internal(err)
	}
	if rec.UserID.String() != claims.UserID {
		return "", apperr.Unauthorized(msgInvalidRefresh)
	}

	u, err := s.users.FindByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", apperr.Unauthorized(msgInvalidRefresh).Wrap(err)
		}
		return "", apperr.Internal(err)
	}
	if !u.IsActive {
		return "", apperr.Unauthorized(msgInvalidRefresh)
	}

	access, _, err := s.codec.SignAccess(u.ID, u.Email)
	if err != nil {
		return "", apperr.Internal(err)
	}

	if s.notifier != nil && rec.ClientIP != "" && meta.ClientIP != "" && rec.ClientIP != meta.ClientIP {
		notice := email.IPChangeNotice{
			UserID:     u.ID,
			Email:      u.Email,
			PreviousIP: rec.ClientIP,
			NewIP:      meta.ClientIP,
			UserAgent:  meta.UserAgent,
			At:         s.now(),
		}
		go s.notifier.IPChanged(context.WithoutCancel(ctx), notice)
	}
	return access, nil
}

// Logout revokes a single refresh token. Missing or unknown tokens are fine.
func (s *Service) Logout(ctx context.Context, refreshToken string) (err error) {
	defer func() { s.metrics.Observe("logout", err) }()

	if refreshToken == "" {
		return nil
	}
	if err := s.ledger.Revoke(ctx, refreshToken); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// LogoutAll revokes every refresh token of the user. Access tokens already
// issued stay valid until they expire.
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) (err error) {
	defer func() { s.metrics.Observe("logout_all", err) }()

	n, err := s.ledger.RevokeAllForUser(ctx, userID)
	if err != nil {
		return apperr.Internal(err)
	}
	s.log.InfoContext(ctx, "user logged out from all devices", "user_id", userID, "revoked", n)
	return nil
}

func (s *Service) CurrentUser(u *user.User) user.PublicUser {
	return u.Public()
}

func (s *Service) RefreshTTL() time.Duration { return s.codec.RefreshTTL() }

func (s *Service) issueSession(ctx context.Context, u *user.User, meta token.Metadata) (*Session, error) {
	access, _, err := s.codec.SignAccess(u.ID, u.Email)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	refresh, refreshExp, err := s.codec.SignRefresh(u.ID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if _, err := s.ledger.Issue(ctx, refresh, u.ID, refreshExp, meta); err != nil {
		return nil, apperr.Internal(err)
	}
	return &Session{
		User:             u.Public(),
		AccessToken:      access,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}
