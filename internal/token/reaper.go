package token

import (
	"context"
	"log/slog"
	"time"

	"github.com/AntonTsoy/auth-service/internal/metrics"
)

// Reaper periodically removes expired Ledger records to keep storage bounded.
type Reaper struct {
	ledger   Ledger
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewReaper(ledger Ledger, interval time.Duration, log *slog.Logger, m *metrics.Metrics) *Reaper {
	return &Reaper{ledger: ledger, interval: interval, log: log, metrics: m, now: time.Now}
}

// Run sweeps once per interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.log.Info("refresh token reaper disabled")
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.Error("refresh token purge failed", "error", err)
			}
		}
	}
}

func (r *Reaper) Sweep(ctx context.Context) (int64, error) {
	n, err := r.ledger.PurgeExpired(ctx, r.now())
	r.metrics.Purged(n)
	if err != nil {
		return n, err
	}
	if n > 0 {
		r.log.Info("purged expired refresh tokens", "count", n)
	}
	return n, nil
}
