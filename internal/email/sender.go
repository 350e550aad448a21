// Package email delivers advisory security notices to account owners.
package email

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// IPChangeNotice is sent when a refresh token is presented from a different
// IP address than the one it was issued to. The request is not rejected.
type IPChangeNotice struct {
	UserID     uuid.UUID
	Email      string
	PreviousIP string
	NewIP      string
	UserAgent  string
	At         time.Time
}

type Notifier interface {
	IPChanged(ctx context.Context, n IPChangeNotice)
}

// LogSender stands in for a mail relay: it waits for the simulated delivery
// delay and writes the notice to the log.
type LogSender struct {
	log   *slog.Logger
	delay time.Duration
}

func NewLogSender(log *slog.Logger, delay time.Duration) *LogSender {
	return &LogSender{log: log, delay: delay}
}

func (s *LogSender) IPChanged(ctx context.Context, n IPChangeNotice) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			s.log.Warn("ip change notice dropped", "user_id", n.UserID, "error", ctx.Err())
			return
		case <-timer.C:
		}
	}
	s.log.Warn("email notification: refresh token used from a new IP address",
		"user_id", n.UserID,
		"email", n.Email,
		"previous_ip", n.PreviousIP,
		"new_ip", n.NewIP,
		"user_agent", n.UserAgent,
		"at", n.At,
	)
}
